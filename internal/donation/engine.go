package donation

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"wallet-custody-go/internal/accounting"
	"wallet-custody-go/internal/apperr"
	"wallet-custody-go/internal/chain"
	"wallet-custody-go/internal/models"
	"wallet-custody-go/internal/store"
	"wallet-custody-go/internal/submitter"
	"wallet-custody-go/internal/tracker"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	batchSize   = 500
	weiDecimals = 18
)

// Converter prices a USD amount in native coin
type Converter interface {
	Convert(ctx context.Context, usd decimal.Decimal) (*models.ConversionResult, error)
}

// Submitter signs and broadcasts from a custodial wallet
type Submitter interface {
	Submit(ctx context.Context, call submitter.Call) (*submitter.Submission, error)
	Balance(ctx context.Context, address common.Address) (*big.Int, error)
}

// Tracker records broadcast transactions and reports their outcomes
type Tracker interface {
	Track(ctx context.Context, params tracker.TrackParams) (*models.Acceptance, error)
	OnOutcome(kind models.TxKind, fn tracker.OutcomeHandler)
}

// Config contains the collaborators of Engine
type Config struct {
	Payments  store.PaymentStore
	Converter Converter
	Submitter Submitter
	Tracker   Tracker
	Contracts *chain.Contracts
	Ledger    accounting.Ledger
	Treasury  models.TreasuryConfig
}

// Engine turns captured fiat payments into on-chain donations funded by the treasury wallet.
// Each payment is claimed with a compare-and-set before any external call, so concurrent runs
// never donate the same payment twice.
type Engine struct {
	payments  store.PaymentStore
	converter Converter
	submitter Submitter
	tracker   Tracker
	contracts *chain.Contracts
	ledger    accounting.Ledger

	treasury        common.Address
	treasuryAddress string
	minimumBalance  decimal.Decimal
}

// NewEngine validates the treasury address and registers the donation outcome handler on the tracker
func NewEngine(cfg Config) (*Engine, error) {
	addr, lower, err := chain.ParseAddress(cfg.Treasury.Address)
	if err != nil {
		return nil, fmt.Errorf("invalid treasury address: %w", err)
	}
	if cfg.Contracts == nil {
		return nil, fmt.Errorf("contracts are required")
	}

	e := &Engine{
		payments:        cfg.Payments,
		converter:       cfg.Converter,
		submitter:       cfg.Submitter,
		tracker:         cfg.Tracker,
		contracts:       cfg.Contracts,
		ledger:          cfg.Ledger,
		treasury:        addr,
		treasuryAddress: lower,
		minimumBalance:  cfg.Treasury.MinimumBalance,
	}
	cfg.Tracker.OnOutcome(models.KindDonation, e.handleOutcome)
	return e, nil
}

// ExecutePending submits one donation for every claimable processing payment
func (e *Engine) ExecutePending(ctx context.Context) (*models.DonationReport, error) {
	ids, err := e.payments.ListClaimablePayments(ctx, batchSize)
	if err != nil {
		return nil, apperr.Internal("failed to list claimable payments", err)
	}

	report := &models.DonationReport{Outcomes: make([]models.DonationOutcome, 0, len(ids))}
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		outcome := e.execute(ctx, id)
		switch outcome.Status {
		case models.DonationSubmitted:
			report.ExecutedCount++
		case models.DonationFailed:
			report.FailedCount++
		case models.DonationSkipped:
			report.SkippedCount++
		}
		report.Outcomes = append(report.Outcomes, outcome)
	}

	zap.L().Info("Donation batch finished",
		zap.Int("candidates", len(ids)),
		zap.Int("executed", report.ExecutedCount),
		zap.Int("failed", report.FailedCount),
		zap.Int("skipped", report.SkippedCount))
	return report, nil
}

func (e *Engine) execute(ctx context.Context, paymentId string) models.DonationOutcome {
	outcome := models.DonationOutcome{PaymentId: paymentId}

	payment, err := e.payments.ClaimPayment(ctx, paymentId, uuid.New().String())
	if errors.Is(err, store.ErrNotClaimable) {
		zap.L().Debug("Payment claimed elsewhere", zap.String("payment_id", paymentId))
		outcome.Status = models.DonationSkipped
		return outcome
	}
	if err != nil {
		zap.L().Error("Failed to claim payment", zap.String("payment_id", paymentId), zap.Error(err))
		outcome.Status = models.DonationFailed
		outcome.Error = "claim failed"
		return outcome
	}

	campaign, campaignLower, err := chain.ParseAddress(payment.CampaignAddress)
	if err != nil {
		return e.failPayment(ctx, outcome, fmt.Sprintf("invalid campaign address: %v", err))
	}

	conversion, err := e.converter.Convert(ctx, payment.AmountUSD)
	if err != nil {
		return e.failPayment(ctx, outcome, errorReason(err))
	}
	value, ok := new(big.Int).SetString(conversion.NetWei, 10)
	if !ok {
		return e.failPayment(ctx, outcome, fmt.Sprintf("invalid net amount %q", conversion.NetWei))
	}

	data, err := e.contracts.PackDonate()
	if err != nil {
		return e.failPayment(ctx, outcome, fmt.Sprintf("failed to encode donation: %v", err))
	}

	sub, err := e.submitter.Submit(ctx, submitter.Call{
		Wallet: e.treasuryAddress,
		To:     campaign,
		Data:   data,
		Value:  value,
	})
	if err != nil {
		return e.failPayment(ctx, outcome, errorReason(err))
	}
	outcome.TxHash = sub.TxHash

	// Attach before tracking so a fast confirmation always finds the snapshot
	if err := e.payments.AttachDonation(ctx, paymentId, sub.TxHash, *conversion); err != nil {
		zap.L().Error("Failed to attach donation to payment",
			zap.String("payment_id", paymentId),
			zap.String("tx_hash", sub.TxHash),
			zap.Error(err))
		outcome.Error = fmt.Sprintf("conversion snapshot not attached: %v", err)
	}

	_, err = e.tracker.Track(models.WithPrincipal(ctx, models.PerformedBySystem), tracker.TrackParams{
		Submission: sub,
		Metadata: models.Donation{
			PaymentId:       paymentId,
			CampaignAddress: campaignLower,
			AmountWei:       conversion.NetWei,
			AmountUSD:       payment.AmountUSD.String(),
			GasPriceWei:     sub.GasPrice.String(),
		},
	})
	if err != nil {
		// The donation is on the wire; the payment stays claimed for reconciliation
		outcome.Status = models.DonationFailed
		outcome.Error = errorReason(err)
		return outcome
	}

	zap.L().Info("Donation submitted",
		zap.String("payment_id", paymentId),
		zap.String("tx_hash", sub.TxHash),
		zap.String("campaign", campaignLower),
		zap.String("net_wei", conversion.NetWei),
		zap.String("price_source", string(conversion.PriceSource)))
	outcome.Status = models.DonationSubmitted
	return outcome
}

func (e *Engine) failPayment(ctx context.Context, outcome models.DonationOutcome, reason string) models.DonationOutcome {
	if err := e.payments.FailPayment(ctx, outcome.PaymentId, reason); err != nil {
		zap.L().Error("Failed to mark payment failed",
			zap.String("payment_id", outcome.PaymentId),
			zap.Error(err))
	}
	zap.L().Warn("Donation not submitted",
		zap.String("payment_id", outcome.PaymentId),
		zap.String("reason", reason))
	outcome.Status = models.DonationFailed
	outcome.Error = reason
	return outcome
}

// handleOutcome settles the payment once its donation transaction is final
func (e *Engine) handleOutcome(ctx context.Context, tx models.PendingTransaction) error {
	donation, ok := tx.Metadata.(models.Donation)
	if !ok {
		return fmt.Errorf("unexpected metadata %T for donation %s", tx.Metadata, tx.TxHash)
	}

	switch tx.Status {
	case models.TxConfirmed:
		err := e.payments.CompletePayment(ctx, donation.PaymentId, tx.TxHash)
		if err != nil && !errors.Is(err, store.ErrInvalidPayment) {
			return fmt.Errorf("failed to complete payment %s: %w", donation.PaymentId, err)
		}
		entry, err := e.donationEntry(ctx, tx, donation)
		if err != nil {
			return err
		}
		if err := e.ledger.RecordDonation(ctx, entry); err != nil {
			return fmt.Errorf("failed to record donation %s: %w", donation.PaymentId, err)
		}
		zap.L().Info("Donation settled",
			zap.String("payment_id", donation.PaymentId),
			zap.String("tx_hash", tx.TxHash))
		return nil

	case models.TxFailed:
		reason := "donation transaction failed"
		if tx.ErrorMessage != nil {
			reason += ": " + *tx.ErrorMessage
		}
		if tx.FailureKind.NeedsReconciliation() {
			reason += fmt.Sprintf(" [%s, needs reconciliation]", tx.FailureKind)
			zap.L().Warn("Donation outcome unknown, payment needs reconciliation",
				zap.String("payment_id", donation.PaymentId),
				zap.String("tx_hash", tx.TxHash),
				zap.String("failure_kind", string(tx.FailureKind)))
		}
		if err := e.payments.FailPayment(ctx, donation.PaymentId, reason); err != nil {
			return fmt.Errorf("failed to fail payment %s: %w", donation.PaymentId, err)
		}
		return nil

	default:
		return fmt.Errorf("donation %s is not final", tx.TxHash)
	}
}

func (e *Engine) donationEntry(ctx context.Context, tx models.PendingTransaction, donation models.Donation) (store.DonationEntry, error) {
	payment, err := e.payments.GetPayment(ctx, donation.PaymentId)
	if err != nil {
		return store.DonationEntry{}, fmt.Errorf("failed to load payment %s: %w", donation.PaymentId, err)
	}

	entry := store.DonationEntry{
		PaymentId:       donation.PaymentId,
		CampaignAddress: donation.CampaignAddress,
		TxHash:          tx.TxHash,
		AmountUSD:       donation.AmountUSD,
		NetWei:          donation.AmountWei,
		GrossWei:        "0",
		FeeWei:          "0",
		GasWei:          "0",
	}
	if tx.ConfirmedAt != nil {
		entry.SettledAt = *tx.ConfirmedAt
	}
	if c := payment.Conversion; c != nil {
		entry.GrossWei = toWei(c.GrossAmount)
		entry.FeeWei = toWei(c.PlatformFee)
		entry.GasWei = toWei(c.EstimatedGas)
	}

	gasPrice, ok := new(big.Int).SetString(donation.GasPriceWei, 10)
	if ok && tx.GasUsed != nil {
		entry.GasWei = new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(*tx.GasUsed)).String()
	}
	return entry, nil
}

// TreasuryStatus reports the treasury balance against the configured minimum
func (e *Engine) TreasuryStatus(ctx context.Context) (*models.TreasuryStatus, error) {
	balanceWei, err := e.submitter.Balance(ctx, e.treasury)
	if err != nil {
		return nil, apperr.Submission("failed to read treasury balance", err)
	}
	processing, err := e.payments.CountPaymentsByStatus(ctx, models.PaymentProcessing)
	if err != nil {
		return nil, apperr.Internal("failed to count processing payments", err)
	}

	balance := decimal.NewFromBigInt(balanceWei, -weiDecimals)
	return &models.TreasuryStatus{
		Address:            e.treasuryAddress,
		Balance:            balance,
		BalanceWei:         balanceWei.String(),
		MinimumBalance:     e.minimumBalance,
		SufficientBalance:  balance.GreaterThanOrEqual(e.minimumBalance),
		ProcessingPayments: processing,
	}, nil
}

func toWei(amount decimal.Decimal) string {
	return amount.Shift(weiDecimals).Floor().String()
}

func errorReason(err error) string {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return fmt.Sprintf("%s: %s", appErr.Kind, appErr.Message)
	}
	return err.Error()
}
