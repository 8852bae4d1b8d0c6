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
	"github.com/shopspring/decimal"
)

// ImportWalletRequest is the body of POST /api/wallets
type ImportWalletRequest struct {
	PrivateKey      string `json:"private_key" binding:"required"`
	ExpectedAddress string `json:"expected_address"`
}

// SetActiveRequest is the body of PATCH /api/wallets/:address
type SetActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// CreateCampaignRequest carries the goal in native coin units
type CreateCampaignRequest struct {
	ContentRef   string          `json:"content_ref" binding:"required"`
	Category     string          `json:"category" binding:"required"`
	Title        string          `json:"title" binding:"required"`
	Goal         decimal.Decimal `json:"goal"`
	DurationDays int             `json:"duration_days" binding:"required"`
}

type CreateMilestoneRequest struct {
	CampaignAddress string          `json:"campaign_address" binding:"required"`
	Title           string          `json:"title" binding:"required"`
	ContentRef      string          `json:"content_ref" binding:"required"`
	Target          decimal.Decimal `json:"target"`
}

type WithdrawRequest struct {
	CampaignAddress string          `json:"campaign_address" binding:"required"`
	Amount          decimal.Decimal `json:"amount"`
}

// RegisterPaymentRequest records the order a processor checkout was opened for
type RegisterPaymentRequest struct {
	OrderId         string          `json:"order_id" binding:"required"`
	AmountUSD       decimal.Decimal `json:"amount_usd"`
	CampaignAddress string          `json:"campaign_address" binding:"required"`
}

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}
