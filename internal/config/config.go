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

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"wallet-custody-go/internal/models"

	"github.com/shopspring/decimal"
)

var ErrMissingMasterSecret = errors.New("KEY_VAULT_MASTER_SECRET must be set")

func Load() (*models.Config, error) {
	masterSecret := os.Getenv("KEY_VAULT_MASTER_SECRET")
	if masterSecret == "" {
		return nil, ErrMissingMasterSecret
	}

	d := durationReader{}
	connMaxLifetime := d.read("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	connMaxIdleTime := d.read("DB_CONN_MAX_IDLE_TIME", 30*time.Second)
	pingTimeout := d.read("DB_PING_TIMEOUT", 5*time.Second)
	dialTimeout := d.read("CHAIN_DIAL_TIMEOUT", 10*time.Second)
	confirmationTimeout := d.read("WATCHER_CONFIRMATION_TIMEOUT", 2*time.Minute)
	pollInterval := d.read("WATCHER_POLL_INTERVAL", 2*time.Second)
	resumeInterval := d.read("WATCHER_RESUME_INTERVAL", 30*time.Second)
	retention := d.read("PENDING_RETENTION", 7*24*time.Hour)
	cleanupInterval := d.read("WATCHER_CLEANUP_INTERVAL", time.Hour)
	cacheTTL := d.read("PRICE_CACHE_TTL", time.Minute)
	requestTimeout := d.read("PRICE_REQUEST_TIMEOUT", 5*time.Second)
	shutdownTimeout := d.read("SERVER_SHUTDOWN_TIMEOUT", 15*time.Second)
	if d.err != nil {
		return nil, d.err
	}

	n := decimalReader{}
	fallbackPrice := n.read("PRICE_FALLBACK_USD", "2000")
	feeRate := n.read("PLATFORM_FEE_RATE", "0.05")
	gasMultiplier := n.read("GAS_SAFETY_MULTIPLIER", "1.5")
	fallbackGas := n.read("FALLBACK_GAS_PRICE_GWEI", "20")
	minimumBalance := n.read("TREASURY_MINIMUM_BALANCE", "0.1")
	if n.err != nil {
		return nil, n.err
	}

	chainId, err := getEnvInt64("CHAIN_ID", 0)
	if err != nil {
		return nil, err
	}

	return &models.Config{
		Database: models.DatabaseConfig{
			Driver:          getEnvString("DATABASE_DRIVER", "sqlite3"),
			DSN:             getEnvString("DATABASE_DSN", "custody.db"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: connMaxLifetime,
			ConnMaxIdleTime: connMaxIdleTime,
			PingTimeout:     pingTimeout,
		},
		Chain: models.ChainConfig{
			RPCURL:        getEnvString("CHAIN_RPC_URL", "http://localhost:8545"),
			ChainId:       chainId,
			DialTimeout:   dialTimeout,
			ContractsFile: getEnvString("CONTRACTS_FILE", "contracts.yaml"),
		},
		Vault: models.VaultConfig{
			MasterSecret: masterSecret,
		},
		Watcher: models.WatcherConfig{
			ConfirmationTimeout: confirmationTimeout,
			PollInterval:        pollInterval,
			Workers:             getEnvInt("WATCHER_WORKERS", 4),
			QueueSize:           getEnvInt("WATCHER_QUEUE_SIZE", 256),
			ResumeInterval:      resumeInterval,
			PendingRetention:    retention,
			CleanupInterval:     cleanupInterval,
		},
		Pricing: models.PricingConfig{
			FeedURL:              getEnvString("PRICE_FEED_URL", "https://api.coingecko.com/api/v3/simple/price"),
			CoinId:               getEnvString("PRICE_COIN_ID", "ethereum"),
			CacheTTL:             cacheTTL,
			RequestTimeout:       requestTimeout,
			FallbackPriceUSD:     fallbackPrice,
			PlatformFeeRate:      feeRate,
			DonationGasUnits:     uint64(getEnvInt("DONATION_GAS_UNITS", 100000)),
			GasSafetyMultiplier:  gasMultiplier,
			FallbackGasPriceGwei: fallbackGas,
		},
		Treasury: models.TreasuryConfig{
			Address:        os.Getenv("TREASURY_ADDRESS"),
			MinimumBalance: minimumBalance,
		},
		Server: models.ServerConfig{
			Addr:            getEnvString("SERVER_ADDR", ":8080"),
			JWTSecret:       os.Getenv("JWT_SECRET"),
			TriggerSecret:   os.Getenv("DONATION_TRIGGER_SECRET"),
			ShutdownTimeout: shutdownTimeout,
		},
		Payment: models.PaymentConfig{
			MidtransServerKey: os.Getenv("MIDTRANS_SERVER_KEY"),
			Environment:       getEnvString("MIDTRANS_ENVIRONMENT", "sandbox"),
		},
		Ledger: models.LedgerConfig{
			Backend: getEnvString("LEDGER_BACKEND", "sql"),
			Formance: models.FormanceConfig{
				StackURL:     os.Getenv("FORMANCE_STACK_URL"),
				ClientID:     os.Getenv("FORMANCE_CLIENT_ID"),
				ClientSecret: os.Getenv("FORMANCE_CLIENT_SECRET"),
				LedgerName:   getEnvString("FORMANCE_LEDGER_NAME", "custody"),
			},
		},
		Scheduler: models.SchedulerConfig{
			RedisAddr:     os.Getenv("REDIS_ADDR"),
			RedisPassword: os.Getenv("REDIS_PASSWORD"),
			RedisDB:       getEnvInt("REDIS_DB", 0),
			Schedule:      getEnvString("DONATION_SCHEDULE", "@every 1m"),
			Concurrency:   getEnvInt("SCHEDULER_CONCURRENCY", 1),
		},
	}, nil
}

// durationReader keeps the first parse error so Load can read every key before checking
type durationReader struct {
	err error
}

func (r *durationReader) read(key string, def time.Duration) time.Duration {
	v, err := getEnvDuration(key, def)
	if err != nil && r.err == nil {
		r.err = err
	}
	return v
}

type decimalReader struct {
	err error
}

func (r *decimalReader) read(key, def string) decimal.Decimal {
	v, err := getEnvDecimal(key, decimal.RequireFromString(def))
	if err != nil && r.err == nil {
		r.err = err
	}
	return v
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		if duration <= 0 {
			return 0, fmt.Errorf("duration for %s must be positive, got %q", key, value)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) (decimal.Decimal, error) {
	if value := os.Getenv(key); value != "" {
		d, err := decimal.NewFromString(value)
		if err != nil {
			return decimal.Zero, fmt.Errorf("invalid decimal for %s: %q (%w)", key, value, err)
		}
		return d, nil
	}
	return defaultValue, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) (int64, error) {
	if value := os.Getenv(key); value != "" {
		v, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid integer for %s: %q (%w)", key, value, err)
		}
		return v, nil
	}
	return defaultValue, nil
}
