package audit

import (
	"context"

	"wallet-custody-go/internal/apperr"
	"wallet-custody-go/internal/chain"
	"wallet-custody-go/internal/models"
	"wallet-custody-go/internal/store"
)

const maxPageSize = 500

// Trail reads the append-only audit log. Writes happen inside the store transaction of the audited change.
type Trail struct {
	store store.AuditStore
}

func NewTrail(s store.AuditStore) *Trail {
	return &Trail{store: s}
}

// List returns entries for a wallet, newest first. Entries survive wallet deletion.
func (t *Trail) List(ctx context.Context, walletAddress string, limit, offset int) ([]models.AuditLogEntry, error) {
	_, normalized, err := chain.ParseAddress(walletAddress)
	if err != nil {
		return nil, apperr.Validation(err.Error())
	}
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		return nil, apperr.Validation("offset cannot be negative")
	}

	entries, err := t.store.ListAudit(ctx, normalized, limit, offset)
	if err != nil {
		return nil, apperr.Internal("failed to list audit entries", err)
	}
	return entries, nil
}
