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

package api

import (
	"net/http"

	"wallet-custody-go/internal/models"
	"wallet-custody-go/internal/payment"

	"github.com/gin-gonic/gin"
	"github.com/midtrans/midtrans-go/coreapi"
	"go.uber.org/zap"
)

func (s *Server) transactionStatus(c *gin.Context) {
	status, err := s.cfg.Transactions.Status(c.Request.Context(), c.Param("hash"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) executeDonations(c *gin.Context) {
	report, err := s.cfg.Donations.ExecutePending(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) treasuryStatus(c *gin.Context) {
	status, err := s.cfg.Donations.TreasuryStatus(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) registerPayment(c *gin.Context) {
	var req models.RegisterPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, bindError(err))
		return
	}

	p, err := s.cfg.Payments.Register(c.Request.Context(), payment.RegisterParams{
		OrderId:         req.OrderId,
		AmountUSD:       req.AmountUSD,
		CampaignAddress: req.CampaignAddress,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// paymentWebhook takes processor notifications. The body is only a hint; the intake re-verifies with the processor.
func (s *Server) paymentWebhook(c *gin.Context) {
	var notification coreapi.TransactionStatusResponse
	if err := c.ShouldBindJSON(&notification); err != nil {
		zap.L().Warn("Failed to bind payment notification", zap.Error(err))
		writeError(c, bindError(err))
		return
	}

	result, err := s.cfg.Payments.HandleNotification(c.Request.Context(), notification)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
