/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

// schema is portable across SQLite and Postgres. Statements are split on ';'.
const schema = `
	CREATE TABLE IF NOT EXISTS wallets (
		address TEXT PRIMARY KEY,
		encrypted_key TEXT NOT NULL,
		key_salt TEXT NOT NULL,
		campaign_count BIGINT NOT NULL DEFAULT 0 CHECK (campaign_count >= 0),
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_wallets_active ON wallets(active);

	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		wallet_address TEXT NOT NULL,
		action TEXT NOT NULL,
		tx_hash TEXT,
		metadata TEXT NOT NULL DEFAULT '{}',
		performed_by TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_audit_wallet_created ON audit_log(wallet_address, created_at);
	CREATE INDEX IF NOT EXISTS idx_audit_tx_hash ON audit_log(tx_hash);

	CREATE TABLE IF NOT EXISTS pending_transactions (
		id TEXT PRIMARY KEY,
		tx_hash TEXT NOT NULL UNIQUE,
		wallet_address TEXT NOT NULL,
		kind TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'PENDING',
		metadata TEXT NOT NULL,
		block_number BIGINT,
		gas_used BIGINT,
		error_message TEXT,
		failure_kind TEXT,
		created_at TIMESTAMP NOT NULL,
		confirmed_at TIMESTAMP,
		finalized_at TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_pending_status_created ON pending_transactions(status, created_at);
	CREATE INDEX IF NOT EXISTS idx_pending_wallet_status ON pending_transactions(wallet_address, status);
	CREATE INDEX IF NOT EXISTS idx_pending_finalized ON pending_transactions(finalized_at);

	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		amount_usd TEXT NOT NULL,
		campaign_address TEXT NOT NULL,
		processor_tx_id TEXT,
		donation_tx_hash TEXT,
		error_reason TEXT,
		conversion TEXT,
		claimed_by TEXT,
		claimed_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_payments_claimable ON payments(status, claimed_by);

	CREATE TABLE IF NOT EXISTS ledger_transactions (
		reference TEXT PRIMARY KEY,
		payment_id TEXT NOT NULL,
		tx_hash TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS journal_entries (
		id TEXT PRIMARY KEY,
		reference TEXT NOT NULL REFERENCES ledger_transactions(reference),
		account_type TEXT NOT NULL,
		account_id TEXT NOT NULL,
		asset TEXT NOT NULL,
		debit_amount TEXT NOT NULL DEFAULT '0',
		credit_amount TEXT NOT NULL DEFAULT '0',
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_journal_reference ON journal_entries(reference);
	CREATE INDEX IF NOT EXISTS idx_journal_account ON journal_entries(account_type, account_id);

	CREATE TABLE IF NOT EXISTS wallet_leases (
		wallet_address TEXT PRIMARY KEY,
		holder TEXT NOT NULL,
		expires_at TIMESTAMP NOT NULL
	)
`

const (
	// Wallet queries
	queryInsertWallet = `
		INSERT INTO wallets (address, encrypted_key, key_salt, campaign_count, active, created_at, updated_at)
		VALUES (?, ?, ?, 0, ?, ?, ?)`

	queryGetWallet = `
		SELECT address, encrypted_key, key_salt, campaign_count, active, created_at, updated_at
		FROM wallets
		WHERE address = ?`

	queryListWallets = `
		SELECT address, encrypted_key, key_salt, campaign_count, active, created_at, updated_at
		FROM wallets
		ORDER BY created_at, address`

	queryListActiveWallets = `
		SELECT address, encrypted_key, key_salt, campaign_count, active, created_at, updated_at
		FROM wallets
		WHERE active = ?
		ORDER BY created_at, address`

	querySetWalletActive = `
		UPDATE wallets SET active = ?, updated_at = ?
		WHERE address = ? AND active <> ?`

	queryIncrementCampaignCount = `
		UPDATE wallets SET campaign_count = campaign_count + 1, updated_at = ?
		WHERE address = ?`

	queryDeleteUnusedWallet = `
		DELETE FROM wallets
		WHERE address = ? AND campaign_count = 0`

	queryCountWalletPending = `
		SELECT COUNT(*) FROM pending_transactions
		WHERE wallet_address = ? AND status = 'PENDING'`

	// Audit queries
	queryInsertAudit = `
		INSERT INTO audit_log (id, wallet_address, action, tx_hash, metadata, performed_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	queryListAudit = `
		SELECT id, wallet_address, action, tx_hash, metadata, performed_by, created_at
		FROM audit_log
		WHERE wallet_address = ?
		ORDER BY created_at DESC, id
		LIMIT ? OFFSET ?`

	// Pending transaction queries
	queryInsertPending = `
		INSERT INTO pending_transactions (id, tx_hash, wallet_address, kind, status, metadata, created_at)
		VALUES (?, ?, ?, ?, 'PENDING', ?, ?)`

	pendingColumns = `id, tx_hash, wallet_address, kind, status, metadata, block_number, gas_used,
		error_message, failure_kind, created_at, confirmed_at, finalized_at`

	queryGetPending = `
		SELECT ` + pendingColumns + `
		FROM pending_transactions
		WHERE tx_hash = ?`

	queryListPendingByStatus = `
		SELECT ` + pendingColumns + `
		FROM pending_transactions
		WHERE status = ?
		ORDER BY created_at
		LIMIT ?`

	queryConfirmPending = `
		UPDATE pending_transactions
		SET status = 'CONFIRMED', block_number = ?, gas_used = ?, metadata = ?, confirmed_at = ?, finalized_at = ?
		WHERE tx_hash = ? AND status = 'PENDING'`

	queryFailPending = `
		UPDATE pending_transactions
		SET status = 'FAILED', block_number = ?, gas_used = ?, error_message = ?, failure_kind = ?, finalized_at = ?
		WHERE tx_hash = ? AND status = 'PENDING'`

	queryDeleteTerminalBefore = `
		DELETE FROM pending_transactions
		WHERE status IN ('CONFIRMED', 'FAILED') AND finalized_at < ?`

	// Payment queries
	paymentColumns = `id, status, amount_usd, campaign_address, processor_tx_id, donation_tx_hash,
		error_reason, conversion, claimed_by, claimed_at, created_at, updated_at`

	queryInsertPayment = `
		INSERT INTO payments (id, status, amount_usd, campaign_address, created_at, updated_at)
		VALUES (?, 'pending', ?, ?, ?, ?)`

	queryGetPayment = `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE id = ?`

	queryMarkPaymentProcessing = `
		UPDATE payments SET status = 'processing', processor_tx_id = ?, updated_at = ?
		WHERE id = ? AND status = 'pending'`

	queryListClaimablePayments = `
		SELECT id FROM payments
		WHERE status = 'processing' AND claimed_by IS NULL
		ORDER BY created_at, id
		LIMIT ?`

	queryCountPaymentsByStatus = `
		SELECT COUNT(*) FROM payments WHERE status = ?`

	queryClaimPayment = `
		UPDATE payments SET claimed_by = ?, claimed_at = ?, updated_at = ?
		WHERE id = ? AND status = 'processing' AND claimed_by IS NULL`

	queryAttachDonation = `
		UPDATE payments SET donation_tx_hash = ?, conversion = ?, updated_at = ?
		WHERE id = ? AND status = 'processing'`

	queryCompletePayment = `
		UPDATE payments SET status = 'completed', donation_tx_hash = ?, updated_at = ?
		WHERE id = ? AND status = 'processing'`

	queryFailPayment = `
		UPDATE payments SET status = 'failed', error_reason = ?, updated_at = ?
		WHERE id = ? AND status = 'processing'`

	// Wallet lease queries. The conflict branch only takes over an expired lease or renews our own.
	queryAcquireWalletLease = `
		INSERT INTO wallet_leases (wallet_address, holder, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT (wallet_address) DO UPDATE
		SET holder = excluded.holder, expires_at = excluded.expires_at
		WHERE wallet_leases.expires_at < ? OR wallet_leases.holder = excluded.holder`

	queryReleaseWalletLease = `
		DELETE FROM wallet_leases
		WHERE wallet_address = ? AND holder = ?`

	// Journal queries
	queryInsertLedgerTransaction = `
		INSERT INTO ledger_transactions (reference, payment_id, tx_hash, created_at)
		VALUES (?, ?, ?, ?)`

	queryInsertJournalEntry = `
		INSERT INTO journal_entries (id, reference, account_type, account_id, asset, debit_amount, credit_amount, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetJournalEntries = `
		SELECT account_type, account_id, asset, debit_amount, credit_amount
		FROM journal_entries
		WHERE reference = ?
		ORDER BY account_type, account_id`
)
