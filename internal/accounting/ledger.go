package accounting

import (
	"context"
	"fmt"

	"wallet-custody-go/internal/models"
	"wallet-custody-go/internal/store"

	"go.uber.org/zap"
)

const (
	BackendSQL      = "sql"
	BackendFormance = "formance"
)

// Ledger records settled donations as double-entry postings. Recording the same payment twice is a no-op.
type Ledger interface {
	RecordDonation(ctx context.Context, entry store.DonationEntry) error
}

// NewLedger selects the accounting backend. The SQL journal is used unless Formance is configured.
func NewLedger(ctx context.Context, cfg models.LedgerConfig, journal store.JournalStore) (Ledger, error) {
	switch cfg.Backend {
	case "", BackendSQL:
		zap.L().Info("Using SQL accounting journal")
		return journal, nil
	case BackendFormance:
		return NewFormanceLedger(ctx, cfg.Formance)
	default:
		return nil, fmt.Errorf("unsupported ledger backend %q", cfg.Backend)
	}
}
