package store

import (
	"context"
	"errors"
	"time"

	"wallet-custody-go/internal/models"
)

// Sentinel errors shared by all backends
var (
	ErrNotFound       = errors.New("record not found")
	ErrDuplicate      = errors.New("record already exists")
	ErrAlreadyFinal   = errors.New("transaction already in a terminal state")
	ErrNotClaimable   = errors.New("payment is not claimable")
	ErrWalletInUse    = errors.New("wallet has campaigns or pending transactions")
	ErrInvalidPayment = errors.New("payment is not in the expected state")
)

// CreatePendingParams contains the parameters for recording a broadcast transaction
type CreatePendingParams struct {
	TxHash        string
	WalletAddress string
	Metadata      models.TxMetadata
	PerformedBy   string
}

// ConfirmParams carries the receipt data written when a transaction confirms
type ConfirmParams struct {
	TxHash      string
	BlockNumber uint64
	GasUsed     uint64
	// Metadata replaces the stored payload, carrying identifiers decoded from receipt logs
	Metadata models.TxMetadata
}

// FailParams carries the reason a transaction failed
type FailParams struct {
	TxHash      string
	Reason      string
	Kind        models.FailureKind
	BlockNumber *uint64
	GasUsed     *uint64
}

// CreatePaymentParams is used by the payment intake to register an expected payment
type CreatePaymentParams struct {
	Id              string
	AmountUSD       string
	CampaignAddress string
}

// DonationEntry is the accounting record of a settled donation
type DonationEntry struct {
	PaymentId       string
	CampaignAddress string
	TxHash          string
	AmountUSD       string
	GrossWei        string
	FeeWei          string
	GasWei          string
	NetWei          string
	SettledAt       time.Time
}

// WalletStore persists custodial wallets. Every mutation writes its audit entry in the same transaction.
type WalletStore interface {
	CreateWallet(ctx context.Context, wallet models.CustodialWallet, performedBy string) (*models.CustodialWallet, error)
	GetWallet(ctx context.Context, address string) (*models.CustodialWallet, error)
	ListWallets(ctx context.Context, activeOnly bool) ([]models.CustodialWallet, error)
	SetWalletActive(ctx context.Context, address string, active bool, performedBy string) (*models.CustodialWallet, error)
	DeleteWallet(ctx context.Context, address string, performedBy string) error
}

// AuditStore is read-only here. Entries are appended by the store method that makes the audited change.
type AuditStore interface {
	ListAudit(ctx context.Context, walletAddress string, limit, offset int) ([]models.AuditLogEntry, error)
}

// PendingStore tracks submitted transactions. Terminal transitions are compare-and-set on PENDING.
type PendingStore interface {
	CreatePending(ctx context.Context, params CreatePendingParams) (*models.PendingTransaction, error)
	GetPending(ctx context.Context, txHash string) (*models.PendingTransaction, error)
	ListPendingByStatus(ctx context.Context, status models.TxStatus, limit int) ([]models.PendingTransaction, error)
	ConfirmPending(ctx context.Context, params ConfirmParams) (*models.PendingTransaction, error)
	FailPending(ctx context.Context, params FailParams) (*models.PendingTransaction, error)
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// PaymentStore exposes the subset of payment state transitions this service owns
type PaymentStore interface {
	CreatePayment(ctx context.Context, params CreatePaymentParams) (*models.Payment, error)
	GetPayment(ctx context.Context, id string) (*models.Payment, error)
	MarkPaymentProcessing(ctx context.Context, id, processorTxId string) (*models.Payment, error)
	ListClaimablePayments(ctx context.Context, limit int) ([]string, error)
	CountPaymentsByStatus(ctx context.Context, status models.PaymentStatus) (int, error)
	ClaimPayment(ctx context.Context, id, claimToken string) (*models.Payment, error)
	AttachDonation(ctx context.Context, id, txHash string, conversion models.ConversionResult) error
	CompletePayment(ctx context.Context, id, txHash string) error
	FailPayment(ctx context.Context, id, reason string) error
}

// JournalStore records donation settlements as double-entry journal rows
type JournalStore interface {
	RecordDonation(ctx context.Context, entry DonationEntry) error
}

// LeaseStore grants short-lived exclusive leases on a wallet to one holder across processes.
// An expired lease can be taken over by any holder.
type LeaseStore interface {
	AcquireWalletLease(ctx context.Context, walletAddress, holder string, ttl time.Duration) (bool, error)
	ReleaseWalletLease(ctx context.Context, walletAddress, holder string) error
}

// Store is the full persistence contract implemented by the SQL backend
type Store interface {
	WalletStore
	AuditStore
	PendingStore
	PaymentStore
	JournalStore
	LeaseStore
	Close()
}
