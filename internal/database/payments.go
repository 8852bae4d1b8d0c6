package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"wallet-custody-go/internal/models"
	"wallet-custody-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func (s *Service) CreatePayment(ctx context.Context, params store.CreatePaymentParams) (*models.Payment, error) {
	amount, err := decimal.NewFromString(params.AmountUSD)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", params.AmountUSD, err)
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, s.q(queryInsertPayment), params.Id, amount.String(), params.CampaignAddress, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: payment %s", store.ErrDuplicate, params.Id)
		}
		return nil, fmt.Errorf("failed to insert payment: %w", err)
	}
	return s.GetPayment(ctx, params.Id)
}

func (s *Service) GetPayment(ctx context.Context, id string) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.GetContext(ctx, &payment, s.q(queryGetPayment), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: payment %s", store.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return &payment, nil
}

// MarkPaymentProcessing moves a captured payment from pending to processing.
// Repeating it for a payment that already moved on returns the current row.
func (s *Service) MarkPaymentProcessing(ctx context.Context, id, processorTxId string) (*models.Payment, error) {
	result, err := s.db.ExecContext(ctx, s.q(queryMarkPaymentProcessing), processorTxId, time.Now().UTC(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to mark payment processing: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check rows affected: %w", err)
	}

	payment, err := s.GetPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	if rowsAffected == 0 {
		switch payment.Status {
		case models.PaymentProcessing, models.PaymentCompleted:
			zap.L().Debug("Payment already captured", zap.String("payment_id", id), zap.String("status", string(payment.Status)))
		default:
			return nil, fmt.Errorf("%w: payment %s is %s", store.ErrInvalidPayment, id, payment.Status)
		}
	}
	return payment, nil
}

func (s *Service) ListClaimablePayments(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	ids := []string{}
	if err := s.db.SelectContext(ctx, &ids, s.q(queryListClaimablePayments), limit); err != nil {
		return nil, fmt.Errorf("failed to list claimable payments: %w", err)
	}
	return ids, nil
}

func (s *Service) CountPaymentsByStatus(ctx context.Context, status models.PaymentStatus) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, s.q(queryCountPaymentsByStatus), string(status)); err != nil {
		return 0, fmt.Errorf("failed to count payments: %w", err)
	}
	return count, nil
}

// ClaimPayment marks a processing payment as owned by claimToken. Only one caller can win the claim.
func (s *Service) ClaimPayment(ctx context.Context, id, claimToken string) (*models.Payment, error) {
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, s.q(queryClaimPayment), claimToken, now, now, id)
	if err != nil {
		return nil, fmt.Errorf("failed to claim payment: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, fmt.Errorf("%w: payment %s", store.ErrNotClaimable, id)
	}
	return s.GetPayment(ctx, id)
}

// AttachDonation records the donation handle and the conversion snapshot on a claimed payment
func (s *Service) AttachDonation(ctx context.Context, id, txHash string, conversion models.ConversionResult) error {
	result, err := s.db.ExecContext(ctx, s.q(queryAttachDonation), txHash, conversion, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to attach donation: %w", err)
	}
	return expectPaymentRow(result, id)
}

func (s *Service) CompletePayment(ctx context.Context, id, txHash string) error {
	result, err := s.db.ExecContext(ctx, s.q(queryCompletePayment), txHash, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to complete payment: %w", err)
	}
	return expectPaymentRow(result, id)
}

func (s *Service) FailPayment(ctx context.Context, id, reason string) error {
	result, err := s.db.ExecContext(ctx, s.q(queryFailPayment), reason, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to fail payment: %w", err)
	}
	return expectPaymentRow(result, id)
}

func expectPaymentRow(result sql.Result, id string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: payment %s is not processing", store.ErrInvalidPayment, id)
	}
	return nil
}
