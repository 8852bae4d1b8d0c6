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
	"context"
	"errors"
	"fmt"
	"net/http"

	"wallet-custody-go/internal/campaign"
	"wallet-custody-go/internal/models"
	"wallet-custody-go/internal/payment"
	"wallet-custody-go/internal/wallet"

	"github.com/gin-gonic/gin"
	"github.com/midtrans/midtrans-go/coreapi"
	"go.uber.org/zap"
)

type WalletService interface {
	Import(ctx context.Context, params wallet.ImportParams) (*models.WalletSummary, error)
	List(ctx context.Context, activeOnly bool) ([]models.WalletSummary, error)
	Get(ctx context.Context, address string) (*models.WalletSummary, error)
	SetActive(ctx context.Context, address string, active bool) (*models.WalletSummary, error)
	Delete(ctx context.Context, address string) error
}

type AuditService interface {
	List(ctx context.Context, walletAddress string, limit, offset int) ([]models.AuditLogEntry, error)
}

type CampaignService interface {
	CreateCampaign(ctx context.Context, p campaign.CreateCampaignParams) (*models.Acceptance, error)
	CreateMilestone(ctx context.Context, p campaign.CreateMilestoneParams) (*models.Acceptance, error)
	Withdraw(ctx context.Context, p campaign.WithdrawParams) (*models.Acceptance, error)
}

type StatusService interface {
	Status(ctx context.Context, txHash string) (*models.TransactionStatus, error)
}

type DonationService interface {
	ExecutePending(ctx context.Context) (*models.DonationReport, error)
	TreasuryStatus(ctx context.Context) (*models.TreasuryStatus, error)
}

type PaymentService interface {
	Register(ctx context.Context, params payment.RegisterParams) (*models.Payment, error)
	HandleNotification(ctx context.Context, notification coreapi.TransactionStatusResponse) (*payment.NotificationResult, error)
}

type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Config wires the services behind the HTTP API
type Config struct {
	Wallets       WalletService
	Audit         AuditService
	Campaigns     CampaignService
	Transactions  StatusService
	Donations     DonationService
	Payments      PaymentService
	Health        HealthChecker
	JWTSecret     string
	TriggerSecret string
}

// Server exposes the custody services over JSON/HTTP
type Server struct {
	cfg    Config
	engine *gin.Engine
}

func NewServer(cfg Config) (*Server, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT secret cannot be empty")
	}
	if cfg.TriggerSecret == "" {
		return nil, errors.New("trigger secret cannot be empty")
	}
	if cfg.Wallets == nil || cfg.Audit == nil || cfg.Campaigns == nil || cfg.Transactions == nil ||
		cfg.Donations == nil || cfg.Payments == nil || cfg.Health == nil {
		return nil, fmt.Errorf("all services must be configured")
	}

	s := &Server{cfg: cfg}
	s.engine = s.routes()
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(requestLogger(), gin.Recovery())

	r.GET("/health", s.health)

	api := r.Group("/api")
	{
		api.POST("/webhooks/payment", s.paymentWebhook)

		trigger := api.Group("/")
		trigger.Use(TriggerAuth(s.cfg.TriggerSecret))
		{
			trigger.POST("/donations/execute", s.executeDonations)
		}

		operator := api.Group("/")
		operator.Use(OperatorAuth(s.cfg.JWTSecret))
		{
			operator.POST("/wallets", s.importWallet)
			operator.GET("/wallets", s.listWallets)
			operator.GET("/wallets/:address", s.getWallet)
			operator.PATCH("/wallets/:address", s.setWalletActive)
			operator.DELETE("/wallets/:address", s.deleteWallet)
			operator.GET("/wallets/:address/audit", s.walletAudit)

			operator.POST("/wallets/:address/campaigns", s.createCampaign)
			operator.POST("/wallets/:address/milestones", s.createMilestone)
			operator.POST("/wallets/:address/withdrawals", s.withdraw)

			operator.GET("/transactions/:hash", s.transactionStatus)
			operator.GET("/treasury", s.treasuryStatus)
			operator.POST("/payments", s.registerPayment)
		}
	}
	return r
}

func (s *Server) health(c *gin.Context) {
	if err := s.cfg.Health.Ping(c.Request.Context()); err != nil {
		zap.L().Error("Health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, models.HealthResponse{Status: "degraded", Database: "unreachable"})
		return
	}
	c.JSON(http.StatusOK, models.HealthResponse{Status: "ok", Database: "ok"})
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", status),
		}
		if status >= http.StatusInternalServerError {
			zap.L().Warn("Request failed", fields...)
			return
		}
		zap.L().Debug("Request served", fields...)
	}
}
