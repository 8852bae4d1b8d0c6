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

import (
	"context"
	"fmt"
	"time"

	"wallet-custody-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	assetNative = "ETH"
	assetUSD    = "USD"
)

// JournalEntry is one side of a double-entry posting
type JournalEntry struct {
	AccountType  string          `db:"account_type"`
	AccountId    string          `db:"account_id"`
	Asset        string          `db:"asset"`
	DebitAmount  decimal.Decimal `db:"debit_amount"`
	CreditAmount decimal.Decimal `db:"credit_amount"`
}

func donationReference(paymentId string) string {
	return "donation-" + paymentId
}

// RecordDonation posts a settled donation as balanced journal entries. Posting the same payment twice is a no-op.
func (s *Service) RecordDonation(ctx context.Context, entry store.DonationEntry) error {
	entries, err := donationJournal(entry)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	reference := donationReference(entry.PaymentId)
	settledAt := entry.SettledAt
	if settledAt.IsZero() {
		settledAt = time.Now().UTC()
	}

	_, err = tx.ExecContext(ctx, tx.Rebind(queryInsertLedgerTransaction), reference, entry.PaymentId, entry.TxHash, settledAt)
	if err != nil {
		if isUniqueViolation(err) {
			zap.L().Info("Donation already recorded in journal",
				zap.String("payment_id", entry.PaymentId),
				zap.String("reference", reference))
			return nil
		}
		return fmt.Errorf("failed to insert ledger transaction: %w", err)
	}

	for _, e := range entries {
		_, err := tx.ExecContext(ctx, tx.Rebind(queryInsertJournalEntry),
			newId(), reference, e.AccountType, e.AccountId, e.Asset,
			e.DebitAmount.String(), e.CreditAmount.String(), settledAt)
		if err != nil {
			return fmt.Errorf("failed to insert journal entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	zap.L().Info("Donation recorded in journal",
		zap.String("payment_id", entry.PaymentId),
		zap.String("tx_hash", entry.TxHash),
		zap.String("net_wei", entry.NetWei))
	return nil
}

// GetJournalEntries returns the postings made under a donation's reference
func (s *Service) GetJournalEntries(ctx context.Context, paymentId string) ([]JournalEntry, error) {
	entries := []JournalEntry{}
	if err := s.db.SelectContext(ctx, &entries, s.q(queryGetJournalEntries), donationReference(paymentId)); err != nil {
		return nil, fmt.Errorf("failed to get journal entries: %w", err)
	}
	return entries, nil
}

// donationJournal builds the postings for a settled donation.
// Native leg: the treasury pays value plus network gas; the campaign receives the net amount.
// Fiat leg: the captured USD moves from processor clearing to the campaign's donations.
func donationJournal(entry store.DonationEntry) ([]JournalEntry, error) {
	net, err := decimal.NewFromString(entry.NetWei)
	if err != nil {
		return nil, fmt.Errorf("invalid net amount %q: %w", entry.NetWei, err)
	}
	gas, err := decimal.NewFromString(entry.GasWei)
	if err != nil {
		return nil, fmt.Errorf("invalid gas amount %q: %w", entry.GasWei, err)
	}
	usd, err := decimal.NewFromString(entry.AmountUSD)
	if err != nil {
		return nil, fmt.Errorf("invalid USD amount %q: %w", entry.AmountUSD, err)
	}

	return []JournalEntry{
		{"campaign_asset", entry.CampaignAddress, assetNative, net, decimal.Zero},
		{"network_fees", "gas", assetNative, gas, decimal.Zero},
		{"treasury_asset", "treasury", assetNative, decimal.Zero, net.Add(gas)},
		{"processor_clearing", "payments", assetUSD, usd, decimal.Zero},
		{"campaign_donations", entry.CampaignAddress, assetUSD, decimal.Zero, usd},
	}, nil
}
