package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"wallet-custody-go/internal/apperr"
	"wallet-custody-go/internal/chain"
	"wallet-custody-go/internal/models"
	"wallet-custody-go/internal/store"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Processor statuses that mean the money was captured
const (
	statusCapture    = "capture"
	statusSettlement = "settlement"
	fraudAccept      = "accept"
)

// Verifier re-reads a transaction from the payment processor. *coreapi.Client satisfies it.
type Verifier interface {
	CheckTransaction(orderId string) (*coreapi.TransactionStatusResponse, *midtrans.Error)
}

// NewMidtransVerifier builds a Core API client for the given environment ("production" or sandbox)
func NewMidtransVerifier(serverKey, environment string) (*coreapi.Client, error) {
	if serverKey == "" {
		return nil, fmt.Errorf("midtrans server key cannot be empty")
	}
	env := midtrans.Sandbox
	if strings.EqualFold(environment, "production") {
		env = midtrans.Production
	}
	var c coreapi.Client
	c.New(serverKey, env)
	return &c, nil
}

// RegisterParams describes a payment the processor is expected to capture
type RegisterParams struct {
	OrderId         string
	AmountUSD       decimal.Decimal
	CampaignAddress string
}

// NotificationResult reports what a webhook delivery did
type NotificationResult struct {
	OrderId         string          `json:"order_id"`
	ProcessorStatus string          `json:"processor_status"`
	Accepted        bool            `json:"accepted"`
	Payment         *models.Payment `json:"payment,omitempty"`
}

// Intake moves payments from pending to processing on verified capture notifications
type Intake struct {
	payments store.PaymentStore
	verifier Verifier
}

func NewIntake(payments store.PaymentStore, verifier Verifier) *Intake {
	return &Intake{payments: payments, verifier: verifier}
}

// Register records a pending payment for an order so its capture can be matched later
func (i *Intake) Register(ctx context.Context, params RegisterParams) (*models.Payment, error) {
	orderId := strings.TrimSpace(params.OrderId)
	if orderId == "" {
		return nil, apperr.Validation("order id is required")
	}
	if !params.AmountUSD.IsPositive() {
		return nil, apperr.Validation("amount must be positive")
	}
	if !params.AmountUSD.Equal(params.AmountUSD.Truncate(2)) {
		return nil, apperr.Validation("amount cannot have more than 2 decimal places")
	}
	_, campaign, err := chain.ParseAddress(params.CampaignAddress)
	if err != nil {
		return nil, apperr.Validation(err.Error())
	}

	payment, err := i.payments.CreatePayment(ctx, store.CreatePaymentParams{
		Id:              orderId,
		AmountUSD:       params.AmountUSD.String(),
		CampaignAddress: campaign,
	})
	if errors.Is(err, store.ErrDuplicate) {
		return nil, apperr.Conflict(fmt.Sprintf("payment %s already exists", orderId))
	}
	if err != nil {
		return nil, apperr.Internal("failed to register payment", err)
	}

	zap.L().Info("Payment registered",
		zap.String("order_id", orderId),
		zap.String("amount_usd", params.AmountUSD.String()),
		zap.String("campaign", campaign))
	return payment, nil
}

// HandleNotification re-verifies a webhook with the processor and marks the payment processing
// once it is captured. The notification body is never trusted on its own. Repeated deliveries are idempotent.
func (i *Intake) HandleNotification(ctx context.Context, notification coreapi.TransactionStatusResponse) (*NotificationResult, error) {
	orderId := strings.TrimSpace(notification.OrderID)
	if orderId == "" {
		return nil, apperr.Validation("notification has no order id")
	}

	verified, merr := i.verifier.CheckTransaction(orderId)
	if verified == nil {
		var cause error
		if merr != nil {
			cause = merr
		}
		zap.L().Warn("Payment verification failed", zap.String("order_id", orderId), zap.Error(cause))
		return nil, apperr.Submission("failed to verify transaction with payment processor", cause)
	}
	if merr != nil {
		zap.L().Debug("Processor returned a status with an error",
			zap.String("order_id", orderId),
			zap.String("error", merr.Error()))
	}

	result := &NotificationResult{OrderId: orderId, ProcessorStatus: verified.TransactionStatus}
	if !isCaptured(verified) {
		zap.L().Info("Ignoring non-captured payment notification",
			zap.String("order_id", orderId),
			zap.String("status", verified.TransactionStatus),
			zap.String("fraud_status", verified.FraudStatus))
		return result, nil
	}

	payment, err := i.payments.GetPayment(ctx, orderId)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound(fmt.Sprintf("payment %s not found", orderId))
	}
	if err != nil {
		return nil, apperr.Internal("failed to load payment", err)
	}

	gross, err := decimal.NewFromString(verified.GrossAmount)
	if err != nil || !gross.Equal(payment.AmountUSD) {
		zap.L().Warn("Captured amount does not match payment",
			zap.String("order_id", orderId),
			zap.String("gross_amount", verified.GrossAmount),
			zap.String("expected", payment.AmountUSD.String()))
		return nil, apperr.Validation(fmt.Sprintf("captured amount %q does not match expected %s", verified.GrossAmount, payment.AmountUSD))
	}

	updated, err := i.payments.MarkPaymentProcessing(ctx, orderId, verified.TransactionID)
	if errors.Is(err, store.ErrInvalidPayment) {
		return nil, apperr.Conflict(fmt.Sprintf("payment %s is %s", orderId, payment.Status))
	}
	if err != nil {
		return nil, apperr.Internal("failed to update payment", err)
	}

	zap.L().Info("Payment captured",
		zap.String("order_id", orderId),
		zap.String("processor_tx_id", verified.TransactionID),
		zap.String("status", string(updated.Status)))
	result.Accepted = true
	result.Payment = updated
	return result, nil
}

func isCaptured(s *coreapi.TransactionStatusResponse) bool {
	switch s.TransactionStatus {
	case statusSettlement:
		return true
	case statusCapture:
		return s.FraudStatus == "" || s.FraudStatus == fraudAccept
	default:
		return false
	}
}
