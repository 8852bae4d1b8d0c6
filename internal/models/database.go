package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// PerformedBySystem is the principal recorded for automated actions
const PerformedBySystem = "SYSTEM"

// CustodialWallet is a platform-held signing wallet. Key fields never leave the store and registry.
type CustodialWallet struct {
	Address       string    `db:"address"`
	EncryptedKey  string    `db:"encrypted_key"`
	KeySalt       string    `db:"key_salt"`
	CampaignCount int64     `db:"campaign_count"`
	Active        bool      `db:"active"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

// Summary strips key material
func (w CustodialWallet) Summary() WalletSummary {
	return WalletSummary{
		Address:       w.Address,
		CampaignCount: w.CampaignCount,
		Active:        w.Active,
		CreatedAt:     w.CreatedAt,
		UpdatedAt:     w.UpdatedAt,
	}
}

// WalletSummary is the read view of a custodial wallet
type WalletSummary struct {
	Address       string    `json:"address"`
	CampaignCount int64     `json:"campaign_count"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type AuditAction string

const (
	AuditCreated             AuditAction = "CREATED"
	AuditCampaignCreated     AuditAction = "CAMPAIGN_CREATED"
	AuditMilestoneCreated    AuditAction = "MILESTONE_CREATED"
	AuditWithdrawalConfirmed AuditAction = "WITHDRAWAL_CONFIRMED"
	AuditDonationConfirmed   AuditAction = "DONATION_CONFIRMED"
	AuditTransactionFailed   AuditAction = "TRANSACTION_FAILED"
	AuditDeactivated         AuditAction = "DEACTIVATED"
	AuditReactivated         AuditAction = "REACTIVATED"
	AuditTransactionSigned   AuditAction = "TRANSACTION_SIGNED"
	AuditDeleted             AuditAction = "DELETED"
)

// AuditLogEntry is an append-only record of a wallet lifecycle or transaction event
type AuditLogEntry struct {
	Id            string        `db:"id" json:"id"`
	WalletAddress string        `db:"wallet_address" json:"wallet_address"`
	Action        AuditAction   `db:"action" json:"action"`
	TxHash        *string       `db:"tx_hash" json:"transaction_hash,omitempty"`
	Metadata      AuditMetadata `db:"metadata" json:"metadata,omitempty"`
	PerformedBy   string        `db:"performed_by" json:"performed_by"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
}

// AuditMetadata is stored as a JSON object column
type AuditMetadata map[string]string

func (m AuditMetadata) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(map[string]string(m))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *AuditMetadata) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*m = nil
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("unsupported audit metadata type %T", src)
	}
	out := map[string]string{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("failed to decode audit metadata: %w", err)
	}
	*m = out
	return nil
}
