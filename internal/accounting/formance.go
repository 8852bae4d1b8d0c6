package accounting

import (
	"context"
	"errors"
	"fmt"

	"wallet-custody-go/internal/models"
	"wallet-custody-go/internal/store"

	v3 "github.com/formancehq/formance-sdk-go/v3"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/operations"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/sdkerrors"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var _ Ledger = (*FormanceLedger)(nil)

// assetPrecision maps asset symbols to their decimal precision
var assetPrecision = map[string]int{
	"USD": 2,
	"ETH": 18,
}

// numscriptDonationSettled moves the net amount and the gas from the treasury, and the captured
// fiat from processor clearing to the campaign's donations account.
const numscriptDonationSettled = `vars {
  asset $native
  number $net
  number $gas
  asset $fiat
  number $usd
  account $campaign
  string $payment_id
  string $tx_hash
  string $gross_wei
  string $fee_wei
}

send [$native $net] (
  source = @treasury:native allowing unbounded overdraft
  destination = @campaigns:$campaign:native
)

send [$native $gas] (
  source = @treasury:native allowing unbounded overdraft
  destination = @fees:network
)

send [$fiat $usd] (
  source = @processor:clearing allowing unbounded overdraft
  destination = @campaigns:$campaign:donations
)

set_tx_meta("type", "donation_settled")
set_tx_meta("payment_id", $payment_id)
set_tx_meta("tx_hash", $tx_hash)
set_tx_meta("gross_wei", $gross_wei)
set_tx_meta("fee_wei", $fee_wei)
`

// FormanceLedger posts donations to a Formance Stack ledger
type FormanceLedger struct {
	client *v3.Formance
	ledger string
}

// NewFormanceLedger connects to the stack and creates the ledger if it doesn't already exist
func NewFormanceLedger(ctx context.Context, cfg models.FormanceConfig) (*FormanceLedger, error) {
	if cfg.StackURL == "" || cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("formance config requires StackURL, ClientID, and ClientSecret")
	}
	if cfg.LedgerName == "" {
		cfg.LedgerName = "wallet-custody"
	}

	zap.L().Info("Connecting to Formance Stack",
		zap.String("stack_url", cfg.StackURL),
		zap.String("ledger", cfg.LedgerName))

	client := v3.New(
		v3.WithServerURL(cfg.StackURL),
		v3.WithSecurity(shared.Security{
			ClientID:     v3.Pointer(cfg.ClientID),
			ClientSecret: v3.Pointer(cfg.ClientSecret),
		}),
	)

	l := &FormanceLedger{client: client, ledger: cfg.LedgerName}
	if err := l.ensureLedger(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure ledger exists: %w", err)
	}

	zap.L().Info("Formance ledger initialized", zap.String("ledger", cfg.LedgerName))
	return l, nil
}

func (l *FormanceLedger) ensureLedger(ctx context.Context) error {
	_, err := l.client.Ledger.V2.CreateLedger(ctx, operations.V2CreateLedgerRequest{
		Ledger: l.ledger,
		V2CreateLedgerRequest: shared.V2CreateLedgerRequest{
			Metadata: map[string]string{
				"application": "wallet-custody",
			},
		},
	})
	if err != nil {
		var apiErr *sdkerrors.V2ErrorResponse
		if errors.As(err, &apiErr) && apiErr.ErrorCode == shared.V2ErrorsEnumLedgerAlreadyExists {
			zap.L().Info("Ledger already exists", zap.String("ledger", l.ledger))
			return nil
		}
		return err
	}
	zap.L().Info("Ledger created", zap.String("ledger", l.ledger))
	return nil
}

func (l *FormanceLedger) RecordDonation(ctx context.Context, entry store.DonationEntry) error {
	vars, err := donationVars(entry)
	if err != nil {
		return err
	}

	postTx := shared.V2PostTransaction{
		Reference: strPtr(donationReference(entry.PaymentId)),
		Script: &shared.V2PostTransactionScript{
			Plain: numscriptDonationSettled,
			Vars:  vars,
		},
	}
	if !entry.SettledAt.IsZero() {
		settledAt := entry.SettledAt
		postTx.Timestamp = &settledAt
	}

	_, err = l.client.Ledger.V2.CreateTransaction(ctx, operations.V2CreateTransactionRequest{
		Ledger:            l.ledger,
		V2PostTransaction: postTx,
	})
	if err != nil {
		if isConflictError(err) {
			zap.L().Info("Donation already recorded in Formance", zap.String("payment_id", entry.PaymentId))
			return nil
		}
		return fmt.Errorf("error recording donation: %w", err)
	}

	zap.L().Info("Donation recorded in Formance",
		zap.String("payment_id", entry.PaymentId),
		zap.String("tx_hash", entry.TxHash),
		zap.String("net_wei", entry.NetWei))
	return nil
}

func donationReference(paymentId string) string {
	return "donation-" + paymentId
}

func donationVars(entry store.DonationEntry) (map[string]string, error) {
	usd, err := decimal.NewFromString(entry.AmountUSD)
	if err != nil {
		return nil, fmt.Errorf("invalid USD amount %q: %w", entry.AmountUSD, err)
	}
	for name, v := range map[string]string{"net": entry.NetWei, "gas": entry.GasWei} {
		if _, err := decimal.NewFromString(v); err != nil {
			return nil, fmt.Errorf("invalid %s amount %q: %w", name, v, err)
		}
	}

	return map[string]string{
		"native":     formanceAsset("ETH"),
		"net":        entry.NetWei,
		"gas":        entry.GasWei,
		"fiat":       formanceAsset("USD"),
		"usd":        usd.Shift(int32(precisionFor("USD"))).Floor().BigInt().String(),
		"campaign":   entry.CampaignAddress,
		"payment_id": entry.PaymentId,
		"tx_hash":    entry.TxHash,
		"gross_wei":  entry.GrossWei,
		"fee_wei":    entry.FeeWei,
	}, nil
}

// formanceAsset returns the Formance UMN notation, e.g. "ETH/18"
func formanceAsset(symbol string) string {
	return fmt.Sprintf("%s/%d", symbol, precisionFor(symbol))
}

func precisionFor(symbol string) int {
	if p, ok := assetPrecision[symbol]; ok {
		return p
	}
	return 6
}

// isConflictError checks whether a Formance SDK error is a CONFLICT (duplicate reference)
func isConflictError(err error) bool {
	var apiErr *sdkerrors.V2ErrorResponse
	return errors.As(err, &apiErr) && apiErr.ErrorCode == shared.V2ErrorsEnumConflict
}

func strPtr(s string) *string { return &s }
