package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Config represents the application configuration
type Config struct {
	Database  DatabaseConfig
	Chain     ChainConfig
	Vault     VaultConfig
	Watcher   WatcherConfig
	Pricing   PricingConfig
	Treasury  TreasuryConfig
	Server    ServerConfig
	Payment   PaymentConfig
	Ledger    LedgerConfig
	Scheduler SchedulerConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver          string // sqlite3 or pgx
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

// ChainConfig holds the JSON-RPC endpoint and contract file location
type ChainConfig struct {
	RPCURL        string
	ChainId       int64 // 0 means ask the node
	DialTimeout   time.Duration
	ContractsFile string
}

// VaultConfig holds the key vault master secret
type VaultConfig struct {
	MasterSecret string
}

// WatcherConfig holds confirmation watcher settings
type WatcherConfig struct {
	ConfirmationTimeout time.Duration
	PollInterval        time.Duration
	Workers             int
	QueueSize           int
	ResumeInterval      time.Duration
	PendingRetention    time.Duration
	CleanupInterval     time.Duration
}

// PricingConfig holds conversion calculator settings
type PricingConfig struct {
	FeedURL              string
	CoinId               string
	CacheTTL             time.Duration
	RequestTimeout       time.Duration
	FallbackPriceUSD     decimal.Decimal
	PlatformFeeRate      decimal.Decimal
	DonationGasUnits     uint64
	GasSafetyMultiplier  decimal.Decimal
	FallbackGasPriceGwei decimal.Decimal
}

// TreasuryConfig identifies the custodial wallet that funds donations
type TreasuryConfig struct {
	Address        string
	MinimumBalance decimal.Decimal
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Addr            string
	JWTSecret       string
	TriggerSecret   string
	ShutdownTimeout time.Duration
}

// PaymentConfig holds payment processor credentials
type PaymentConfig struct {
	MidtransServerKey string
	Environment       string // sandbox or production
}

// LedgerConfig selects the accounting backend
type LedgerConfig struct {
	Backend  string // sql or formance
	Formance FormanceConfig
}

// FormanceConfig holds Formance Stack connection settings
type FormanceConfig struct {
	StackURL     string
	ClientID     string
	ClientSecret string
	LedgerName   string
}

// SchedulerConfig holds asynq settings for the donation trigger
type SchedulerConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Schedule      string
	Concurrency   int
}
