package database

import (
	"context"
	"fmt"
	"time"

	"wallet-custody-go/internal/models"

	"github.com/jmoiron/sqlx"
)

func (s *Service) ListAudit(ctx context.Context, walletAddress string, limit, offset int) ([]models.AuditLogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	entries := []models.AuditLogEntry{}
	if err := s.db.SelectContext(ctx, &entries, s.q(queryListAudit), walletAddress, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	return entries, nil
}

func (s *Service) appendAuditTx(ctx context.Context, tx *sqlx.Tx, entry models.AuditLogEntry) error {
	if entry.Id == "" {
		entry.Id = newId()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.PerformedBy == "" {
		entry.PerformedBy = models.PerformedBySystem
	}

	_, err := tx.ExecContext(ctx, tx.Rebind(queryInsertAudit),
		entry.Id, entry.WalletAddress, string(entry.Action), entry.TxHash,
		entry.Metadata, entry.PerformedBy, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append %s audit entry: %w", entry.Action, err)
	}
	return nil
}
