package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentProcessing PaymentStatus = "processing"
	PaymentCompleted  PaymentStatus = "completed"
	PaymentFailed     PaymentStatus = "failed"
	PaymentRefunded   PaymentStatus = "refunded"
)

// Payment is a fiat payment captured by the processor and destined for a campaign
type Payment struct {
	Id              string            `db:"id" json:"id"`
	Status          PaymentStatus     `db:"status" json:"status"`
	AmountUSD       decimal.Decimal   `db:"amount_usd" json:"amount_usd"`
	CampaignAddress string            `db:"campaign_address" json:"campaign_address"`
	ProcessorTxId   *string           `db:"processor_tx_id" json:"processor_transaction_id,omitempty"`
	DonationTxHash  *string           `db:"donation_tx_hash" json:"donation_transaction_hash,omitempty"`
	ErrorReason     *string           `db:"error_reason" json:"error_reason,omitempty"`
	Conversion      *ConversionResult `db:"conversion" json:"conversion,omitempty"`
	ClaimedBy       *string           `db:"claimed_by" json:"-"`
	ClaimedAt       *time.Time        `db:"claimed_at" json:"-"`
	CreatedAt       time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time         `db:"updated_at" json:"updated_at"`
}

type PriceSource string

const (
	PriceFromFeed     PriceSource = "feed"
	PriceFromCache    PriceSource = "cache"
	PriceFromFallback PriceSource = "fallback"
)

// ConversionResult is the fee- and gas-aware breakdown of a USD amount in native coin units.
// It is persisted only as a snapshot on the payment that consumed it.
type ConversionResult struct {
	AmountUSD    decimal.Decimal `json:"amount_usd"`
	PriceUSD     decimal.Decimal `json:"price_usd"`
	PriceSource  PriceSource     `json:"price_source"`
	GrossAmount  decimal.Decimal `json:"gross_amount"`
	PlatformFee  decimal.Decimal `json:"platform_fee"`
	EstimatedGas decimal.Decimal `json:"estimated_gas"`
	NetAmount    decimal.Decimal `json:"net_amount"`
	NetWei       string          `json:"net_wei"`
}

func (c ConversionResult) Value() (driver.Value, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (c *ConversionResult) Scan(src any) error {
	switch v := src.(type) {
	case string:
		return json.Unmarshal([]byte(v), c)
	case []byte:
		return json.Unmarshal(v, c)
	default:
		return fmt.Errorf("unsupported conversion snapshot type %T", src)
	}
}

// TreasuryStatus reports whether the donation treasury can cover upcoming donations
type TreasuryStatus struct {
	Address            string          `json:"address"`
	Balance            decimal.Decimal `json:"balance"`
	BalanceWei         string          `json:"balance_wei"`
	MinimumBalance     decimal.Decimal `json:"minimum_balance"`
	SufficientBalance  bool            `json:"sufficient_balance"`
	ProcessingPayments int             `json:"processing_payments"`
}

type DonationOutcomeStatus string

const (
	DonationSubmitted DonationOutcomeStatus = "submitted"
	DonationFailed    DonationOutcomeStatus = "failed"
	DonationSkipped   DonationOutcomeStatus = "skipped"
)

type DonationOutcome struct {
	PaymentId string                `json:"payment_id"`
	Status    DonationOutcomeStatus `json:"status"`
	TxHash    string                `json:"transaction_hash,omitempty"`
	Error     string                `json:"error,omitempty"`
}

// DonationReport summarizes one execution batch
type DonationReport struct {
	ExecutedCount int               `json:"executed_count"`
	FailedCount   int               `json:"failed_count"`
	SkippedCount  int               `json:"skipped_count"`
	Outcomes      []DonationOutcome `json:"outcomes"`
}
