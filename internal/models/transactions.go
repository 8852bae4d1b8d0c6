/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// TxKind tags the operation a pending transaction performs
type TxKind string

const (
	KindCampaignCreation  TxKind = "CAMPAIGN_CREATION"
	KindMilestoneCreation TxKind = "MILESTONE_CREATION"
	KindWithdrawal        TxKind = "WITHDRAWAL"
	KindDonation          TxKind = "DONATION"
)

type TxStatus string

const (
	TxPending   TxStatus = "PENDING"
	TxConfirmed TxStatus = "CONFIRMED"
	TxFailed    TxStatus = "FAILED"
)

// FailureKind classifies why a transaction ended FAILED
type FailureKind string

const (
	// FailureReverted is a definite on-chain failure
	FailureReverted FailureKind = "REVERTED"
	// FailureConfirmationTimeout and FailureReceiptLookup leave the on-chain outcome unknown
	FailureConfirmationTimeout FailureKind = "CONFIRMATION_TIMEOUT"
	FailureReceiptLookup       FailureKind = "RECEIPT_LOOKUP"
)

// NeedsReconciliation is true when the transaction may still have been mined
func (k FailureKind) NeedsReconciliation() bool {
	return k == FailureConfirmationTimeout || k == FailureReceiptLookup
}

var ErrUnknownTxKind = errors.New("unknown transaction kind")

// TxMetadata is the kind-specific payload of a pending transaction.
// Implementations are the four structs below; DecodeTxMetadata switches on all of them.
type TxMetadata interface {
	Kind() TxKind
	ConfirmedAction() AuditAction
}

type CampaignCreation struct {
	ContentRef   string `json:"content_ref"`
	Category     string `json:"category"`
	Title        string `json:"title"`
	GoalWei      string `json:"goal_wei"`
	DurationDays int    `json:"duration_days"`
	// Set from the creation event once confirmed, nil when no matching log was found
	CampaignAddress *string `json:"campaign_address"`
}

func (CampaignCreation) Kind() TxKind                 { return KindCampaignCreation }
func (CampaignCreation) ConfirmedAction() AuditAction { return AuditCampaignCreated }

type MilestoneCreation struct {
	CampaignAddress string `json:"campaign_address"`
	Title           string `json:"title"`
	ContentRef      string `json:"content_ref"`
	TargetWei       string `json:"target_wei"`
}

func (MilestoneCreation) Kind() TxKind                 { return KindMilestoneCreation }
func (MilestoneCreation) ConfirmedAction() AuditAction { return AuditMilestoneCreated }

type Withdrawal struct {
	CampaignAddress string `json:"campaign_address"`
	AmountWei       string `json:"amount_wei"`
}

func (Withdrawal) Kind() TxKind                 { return KindWithdrawal }
func (Withdrawal) ConfirmedAction() AuditAction { return AuditWithdrawalConfirmed }

type Donation struct {
	PaymentId       string `json:"payment_id"`
	CampaignAddress string `json:"campaign_address"`
	AmountWei       string `json:"amount_wei"`
	AmountUSD       string `json:"amount_usd"`
	// Gas price the donation was signed with, used to book the actual network fee
	GasPriceWei     string `json:"gas_price_wei,omitempty"`
}

func (Donation) Kind() TxKind                 { return KindDonation }
func (Donation) ConfirmedAction() AuditAction { return AuditDonationConfirmed }

// EncodeTxMetadata serializes the payload for the metadata column
func EncodeTxMetadata(m TxMetadata) (string, error) {
	if m == nil {
		return "", fmt.Errorf("transaction metadata is required")
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to encode %s metadata: %w", m.Kind(), err)
	}
	return string(b), nil
}

// DecodeTxMetadata restores the typed payload stored under kind
func DecodeTxMetadata(kind TxKind, raw []byte) (TxMetadata, error) {
	var err error
	switch kind {
	case KindCampaignCreation:
		var m CampaignCreation
		if err = json.Unmarshal(raw, &m); err == nil {
			return m, nil
		}
	case KindMilestoneCreation:
		var m MilestoneCreation
		if err = json.Unmarshal(raw, &m); err == nil {
			return m, nil
		}
	case KindWithdrawal:
		var m Withdrawal
		if err = json.Unmarshal(raw, &m); err == nil {
			return m, nil
		}
	case KindDonation:
		var m Donation
		if err = json.Unmarshal(raw, &m); err == nil {
			return m, nil
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTxKind, kind)
	}
	return nil, fmt.Errorf("failed to decode %s metadata: %w", kind, err)
}

// PendingTransaction tracks a submitted transaction until it reaches a terminal status
type PendingTransaction struct {
	Id            string
	TxHash        string
	WalletAddress string
	Kind          TxKind
	Status        TxStatus
	Metadata      TxMetadata
	BlockNumber   *uint64
	GasUsed       *uint64
	ErrorMessage  *string
	FailureKind   FailureKind
	CreatedAt     time.Time
	ConfirmedAt   *time.Time
	FinalizedAt   *time.Time
}

// TransactionStatus is the read view returned for a transaction handle
type TransactionStatus struct {
	TxHash              string      `json:"transaction_hash"`
	WalletAddress       string      `json:"wallet_address"`
	Kind                TxKind      `json:"kind"`
	Status              TxStatus    `json:"status"`
	Metadata            TxMetadata  `json:"metadata"`
	BlockNumber         *uint64     `json:"block_number,omitempty"`
	GasUsed             *uint64     `json:"gas_used,omitempty"`
	ErrorMessage        *string     `json:"error_message,omitempty"`
	FailureKind         FailureKind `json:"failure_kind,omitempty"`
	NeedsReconciliation bool        `json:"needs_reconciliation,omitempty"`
	CreatedAt           time.Time   `json:"created_at"`
	ConfirmedAt         *time.Time  `json:"confirmed_at,omitempty"`
}

func (p PendingTransaction) View() TransactionStatus {
	return TransactionStatus{
		TxHash:              p.TxHash,
		WalletAddress:       p.WalletAddress,
		Kind:                p.Kind,
		Status:              p.Status,
		Metadata:            p.Metadata,
		BlockNumber:         p.BlockNumber,
		GasUsed:             p.GasUsed,
		ErrorMessage:        p.ErrorMessage,
		FailureKind:         p.FailureKind,
		NeedsReconciliation: p.FailureKind.NeedsReconciliation(),
		CreatedAt:           p.CreatedAt,
		ConfirmedAt:         p.ConfirmedAt,
	}
}

// Acceptance is returned to the caller as soon as a transaction is broadcast
type Acceptance struct {
	TxHash    string `json:"transaction_hash"`
	PendingId string `json:"pending_record_id"`
}
