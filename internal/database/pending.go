package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"wallet-custody-go/internal/models"
	"wallet-custody-go/internal/store"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

type pendingRow struct {
	Id            string         `db:"id"`
	TxHash        string         `db:"tx_hash"`
	WalletAddress string         `db:"wallet_address"`
	Kind          string         `db:"kind"`
	Status        string         `db:"status"`
	Metadata      string         `db:"metadata"`
	BlockNumber   sql.NullInt64  `db:"block_number"`
	GasUsed       sql.NullInt64  `db:"gas_used"`
	ErrorMessage  sql.NullString `db:"error_message"`
	FailureKind   sql.NullString `db:"failure_kind"`
	CreatedAt     time.Time      `db:"created_at"`
	ConfirmedAt   sql.NullTime   `db:"confirmed_at"`
	FinalizedAt   sql.NullTime   `db:"finalized_at"`
}

func (r pendingRow) toModel() (*models.PendingTransaction, error) {
	kind := models.TxKind(r.Kind)
	metadata, err := models.DecodeTxMetadata(kind, []byte(r.Metadata))
	if err != nil {
		return nil, fmt.Errorf("pending transaction %s: %w", r.TxHash, err)
	}

	p := &models.PendingTransaction{
		Id:            r.Id,
		TxHash:        r.TxHash,
		WalletAddress: r.WalletAddress,
		Kind:          kind,
		Status:        models.TxStatus(r.Status),
		Metadata:      metadata,
		CreatedAt:     r.CreatedAt,
	}
	if r.BlockNumber.Valid {
		v := uint64(r.BlockNumber.Int64)
		p.BlockNumber = &v
	}
	if r.GasUsed.Valid {
		v := uint64(r.GasUsed.Int64)
		p.GasUsed = &v
	}
	if r.ErrorMessage.Valid {
		p.ErrorMessage = &r.ErrorMessage.String
	}
	if r.FailureKind.Valid {
		p.FailureKind = models.FailureKind(r.FailureKind.String)
	}
	if r.ConfirmedAt.Valid {
		p.ConfirmedAt = &r.ConfirmedAt.Time
	}
	if r.FinalizedAt.Valid {
		p.FinalizedAt = &r.FinalizedAt.Time
	}
	return p, nil
}

// CreatePending records a broadcast transaction and its TRANSACTION_SIGNED audit entry atomically
func (s *Service) CreatePending(ctx context.Context, params store.CreatePendingParams) (*models.PendingTransaction, error) {
	metadata, err := models.EncodeTxMetadata(params.Metadata)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	id := newId()
	kind := params.Metadata.Kind()
	_, err = tx.ExecContext(ctx, s.q(queryInsertPending),
		id, params.TxHash, params.WalletAddress, string(kind), metadata, time.Now().UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: transaction %s", store.ErrDuplicate, params.TxHash)
		}
		return nil, fmt.Errorf("failed to insert pending transaction: %w", err)
	}

	txHash := params.TxHash
	if err := s.appendAuditTx(ctx, tx, models.AuditLogEntry{
		WalletAddress: params.WalletAddress,
		Action:        models.AuditTransactionSigned,
		TxHash:        &txHash,
		Metadata:      models.AuditMetadata{"kind": string(kind), "pending_id": id},
		PerformedBy:   params.PerformedBy,
	}); err != nil {
		return nil, err
	}

	pending, err := s.getPendingTx(ctx, tx, params.TxHash)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return pending, nil
}

func (s *Service) GetPending(ctx context.Context, txHash string) (*models.PendingTransaction, error) {
	var row pendingRow
	err := s.db.GetContext(ctx, &row, s.q(queryGetPending), txHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: transaction %s", store.ErrNotFound, txHash)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pending transaction: %w", err)
	}
	return row.toModel()
}

func (s *Service) ListPendingByStatus(ctx context.Context, status models.TxStatus, limit int) ([]models.PendingTransaction, error) {
	if limit <= 0 {
		limit = 1000
	}
	var rows []pendingRow
	if err := s.db.SelectContext(ctx, &rows, s.q(queryListPendingByStatus), string(status), limit); err != nil {
		return nil, fmt.Errorf("failed to list pending transactions: %w", err)
	}

	out := make([]models.PendingTransaction, 0, len(rows))
	for _, row := range rows {
		p, err := row.toModel()
		if err != nil {
			zap.L().Error("Skipping undecodable pending transaction",
				zap.String("tx_hash", row.TxHash),
				zap.Error(err))
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

// ConfirmPending moves a PENDING transaction to CONFIRMED, bumps the wallet campaign counter for
// campaign creations, and appends the outcome audit entry. A row that is already terminal is left
// untouched and ErrAlreadyFinal is returned.
func (s *Service) ConfirmPending(ctx context.Context, params store.ConfirmParams) (*models.PendingTransaction, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	current, err := s.getPendingTx(ctx, tx, params.TxHash)
	if err != nil {
		return nil, err
	}
	if current.Status != models.TxPending {
		return nil, fmt.Errorf("%w: transaction %s is %s", store.ErrAlreadyFinal, params.TxHash, current.Status)
	}

	metadata := current.Metadata
	if params.Metadata != nil {
		if params.Metadata.Kind() != current.Kind {
			return nil, fmt.Errorf("metadata kind %s does not match transaction kind %s", params.Metadata.Kind(), current.Kind)
		}
		metadata = params.Metadata
	}
	encoded, err := models.EncodeTxMetadata(metadata)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx, s.q(queryConfirmPending),
		int64(params.BlockNumber), int64(params.GasUsed), encoded, now, now, params.TxHash)
	if err != nil {
		return nil, fmt.Errorf("failed to confirm pending transaction: %w", err)
	}
	if err := expectOneRow(result, params.TxHash); err != nil {
		return nil, err
	}

	auditMeta := models.AuditMetadata{
		"kind":         string(current.Kind),
		"block_number": strconv.FormatUint(params.BlockNumber, 10),
		"gas_used":     strconv.FormatUint(params.GasUsed, 10),
	}

	switch m := metadata.(type) {
	case models.CampaignCreation:
		if _, err := tx.ExecContext(ctx, s.q(queryIncrementCampaignCount), now, current.WalletAddress); err != nil {
			return nil, fmt.Errorf("failed to increment campaign count: %w", err)
		}
		if m.CampaignAddress != nil {
			auditMeta["campaign_address"] = *m.CampaignAddress
		}
	case models.MilestoneCreation:
		auditMeta["campaign_address"] = m.CampaignAddress
	case models.Withdrawal:
		auditMeta["campaign_address"] = m.CampaignAddress
		auditMeta["amount_wei"] = m.AmountWei
	case models.Donation:
		auditMeta["campaign_address"] = m.CampaignAddress
		auditMeta["payment_id"] = m.PaymentId
		auditMeta["amount_wei"] = m.AmountWei
	}

	txHash := params.TxHash
	if err := s.appendAuditTx(ctx, tx, models.AuditLogEntry{
		WalletAddress: current.WalletAddress,
		Action:        metadata.ConfirmedAction(),
		TxHash:        &txHash,
		Metadata:      auditMeta,
		PerformedBy:   models.PerformedBySystem,
	}); err != nil {
		return nil, err
	}

	confirmed, err := s.getPendingTx(ctx, tx, params.TxHash)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return confirmed, nil
}

// FailPending moves a PENDING transaction to FAILED and appends TRANSACTION_FAILED
func (s *Service) FailPending(ctx context.Context, params store.FailParams) (*models.PendingTransaction, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	current, err := s.getPendingTx(ctx, tx, params.TxHash)
	if err != nil {
		return nil, err
	}
	if current.Status != models.TxPending {
		return nil, fmt.Errorf("%w: transaction %s is %s", store.ErrAlreadyFinal, params.TxHash, current.Status)
	}

	var blockNumber, gasUsed sql.NullInt64
	if params.BlockNumber != nil {
		blockNumber = sql.NullInt64{Int64: int64(*params.BlockNumber), Valid: true}
	}
	if params.GasUsed != nil {
		gasUsed = sql.NullInt64{Int64: int64(*params.GasUsed), Valid: true}
	}

	var failureKind sql.NullString
	if params.Kind != "" {
		failureKind = sql.NullString{String: string(params.Kind), Valid: true}
	}

	result, err := tx.ExecContext(ctx, s.q(queryFailPending),
		blockNumber, gasUsed, params.Reason, failureKind, time.Now().UTC(), params.TxHash)
	if err != nil {
		return nil, fmt.Errorf("failed to mark pending transaction failed: %w", err)
	}
	if err := expectOneRow(result, params.TxHash); err != nil {
		return nil, err
	}

	auditMeta := models.AuditMetadata{"kind": string(current.Kind), "reason": params.Reason}
	if params.Kind != "" {
		auditMeta["failure_kind"] = string(params.Kind)
	}

	txHash := params.TxHash
	if err := s.appendAuditTx(ctx, tx, models.AuditLogEntry{
		WalletAddress: current.WalletAddress,
		Action:        models.AuditTransactionFailed,
		TxHash:        &txHash,
		Metadata:      auditMeta,
		PerformedBy:   models.PerformedBySystem,
	}); err != nil {
		return nil, err
	}

	failed, err := s.getPendingTx(ctx, tx, params.TxHash)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return failed, nil
}

// DeleteTerminalBefore reclaims storage for rows that reached a terminal status before cutoff.
// Audit entries are not touched.
func (s *Service) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, s.q(queryDeleteTerminalBefore), cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete terminal transactions: %w", err)
	}
	return result.RowsAffected()
}

func (s *Service) getPendingTx(ctx context.Context, tx *sqlx.Tx, txHash string) (*models.PendingTransaction, error) {
	var row pendingRow
	err := tx.GetContext(ctx, &row, tx.Rebind(queryGetPending), txHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: transaction %s", store.ErrNotFound, txHash)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pending transaction: %w", err)
	}
	return row.toModel()
}

// expectOneRow turns a lost compare-and-set into ErrAlreadyFinal
func expectOneRow(result sql.Result, txHash string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: transaction %s", store.ErrAlreadyFinal, txHash)
	}
	return nil
}
