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
	"os"
	"os/signal"
	"syscall"

	"wallet-custody-go/internal/common"
	"wallet-custody-go/internal/config"
	"wallet-custody-go/internal/scheduler"

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

	zap.L().Info("Starting donation worker")

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	// Donations submitted here settle through this process's watcher
	if err := services.Tracker.Start(ctx); err != nil {
		zap.L().Fatal("Failed to start confirmation watcher", zap.Error(err))
	}

	runner, err := scheduler.NewRunner(cfg.Scheduler, services.Donations)
	if err != nil {
		zap.L().Fatal("Failed to configure scheduler", zap.Error(err))
	}
	if err := runner.Start(); err != nil {
		zap.L().Fatal("Failed to start scheduler", zap.Error(err))
	}

	zap.L().Info("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	zap.L().Info("Shutdown signal received, stopping worker...")
	runner.Stop()
	services.Tracker.Stop()
}
