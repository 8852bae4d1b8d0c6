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

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wallet-custody-go/internal/api"
	"wallet-custody-go/internal/common"
	"wallet-custody-go/internal/config"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	zap.L().Info("Starting wallet custody API")

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	gin.SetMode(gin.ReleaseMode)
	server, err := api.NewServer(api.Config{
		Wallets:       services.Registry,
		Audit:         services.Audit,
		Campaigns:     services.Campaigns,
		Transactions:  services.Tracker,
		Donations:     services.Donations,
		Payments:      services.Intake,
		Health:        services.DbService,
		JWTSecret:     cfg.Server.JWTSecret,
		TriggerSecret: cfg.Server.TriggerSecret,
	})
	if err != nil {
		zap.L().Fatal("Failed to configure API", zap.Error(err))
	}

	if err := services.Tracker.Start(ctx); err != nil {
		zap.L().Fatal("Failed to start confirmation watcher", zap.Error(err))
	}

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zap.L().Info("HTTP server listening", zap.String("addr", cfg.Server.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	zap.L().Info("Shutdown signal received, draining requests...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zap.L().Warn("Forced HTTP shutdown after timeout", zap.Error(err))
	}

	// Rows still PENDING are picked up again on the next start
	done := make(chan struct{})
	go func() {
		services.Tracker.Stop()
		close(done)
	}()

	select {
	case <-done:
		zap.L().Info("Confirmation watcher stopped gracefully")
	case <-shutdownCtx.Done():
		zap.L().Warn("Forced shutdown after timeout")
	}
}
