package common

import (
	"context"
	"fmt"
	"log"
	"strings"

	"wallet-custody-go/internal/accounting"
	"wallet-custody-go/internal/audit"
	"wallet-custody-go/internal/campaign"
	"wallet-custody-go/internal/chain"
	"wallet-custody-go/internal/database"
	"wallet-custody-go/internal/donation"
	"wallet-custody-go/internal/keyvault"
	"wallet-custody-go/internal/models"
	"wallet-custody-go/internal/payment"
	"wallet-custody-go/internal/pricing"
	"wallet-custody-go/internal/submitter"
	"wallet-custody-go/internal/tracker"
	"wallet-custody-go/internal/wallet"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// Environment variables can also be set via shell export, docker, etc.
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
	} else {
		log.Println("✓ Loaded environment variables from .env file")
	}
}

type Services struct {
	DbService  *database.Service
	Chain      *ethclient.Client
	Registry   *wallet.Registry
	Audit      *audit.Trail
	Submitter  *submitter.Submitter
	Tracker    *tracker.Tracker
	Campaigns  *campaign.Service
	Calculator *pricing.Calculator
	Intake     *payment.Intake
	Donations  *donation.Engine
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

// InitializeServices wires the full custody stack. The tracker is returned unstarted.
func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	contracts, err := LoadContracts(cfg.Chain.ContractsFile)
	if err != nil {
		return nil, err
	}

	dbService, registry, err := InitializeWallets(ctx, cfg)
	if err != nil {
		return nil, err
	}
	services := &Services{DbService: dbService, Registry: registry, Audit: audit.NewTrail(dbService)}

	fail := func(err error) (*Services, error) {
		services.Close()
		return nil, err
	}

	dialCtx, cancel := context.WithTimeout(ctx, cfg.Chain.DialTimeout)
	client, err := chain.Dial(dialCtx, cfg.Chain.RPCURL)
	cancel()
	if err != nil {
		return fail(err)
	}
	services.Chain = client

	services.Submitter, err = submitter.New(ctx, client, registry, dbService, cfg.Chain.ChainId)
	if err != nil {
		return fail(err)
	}

	services.Tracker = tracker.New(tracker.Config{
		Store:     dbService,
		Backend:   client,
		Contracts: contracts,
		Settings:  cfg.Watcher,
	})
	services.Campaigns = campaign.NewService(services.Submitter, services.Tracker, contracts)

	feed, err := pricing.NewHTTPFeed(cfg.Pricing.FeedURL, cfg.Pricing.CoinId, cfg.Pricing.RequestTimeout)
	if err != nil {
		return fail(err)
	}
	services.Calculator, err = pricing.NewCalculator(
		pricing.NewCachedFeed(feed, cfg.Pricing.CacheTTL, cfg.Pricing.FallbackPriceUSD),
		pricing.NewGasPricer(client, cfg.Pricing.FallbackGasPriceGwei),
		pricing.CalculatorConfig{
			PlatformFeeRate:     cfg.Pricing.PlatformFeeRate,
			GasUnits:            cfg.Pricing.DonationGasUnits,
			GasSafetyMultiplier: cfg.Pricing.GasSafetyMultiplier,
		})
	if err != nil {
		return fail(err)
	}

	verifier, err := payment.NewMidtransVerifier(cfg.Payment.MidtransServerKey, cfg.Payment.Environment)
	if err != nil {
		return fail(err)
	}
	services.Intake = payment.NewIntake(dbService, verifier)

	ledger, err := accounting.NewLedger(ctx, cfg.Ledger, dbService)
	if err != nil {
		return fail(err)
	}

	services.Donations, err = donation.NewEngine(donation.Config{
		Payments:  dbService,
		Converter: services.Calculator,
		Submitter: services.Submitter,
		Tracker:   services.Tracker,
		Contracts: contracts,
		Ledger:    ledger,
		Treasury:  cfg.Treasury,
	})
	if err != nil {
		return fail(fmt.Errorf("failed to initialize donation engine: %w", err))
	}

	zap.L().Info("Custody services initialized",
		zap.String("factory", contracts.Factory.Hex()),
		zap.String("ledger_backend", cfg.Ledger.Backend))
	return services, nil
}

// InitializeWallets opens the store and the key vault without touching the chain.
// Useful for wallet administration from the command line.
func InitializeWallets(ctx context.Context, cfg *models.Config) (*database.Service, *wallet.Registry, error) {
	vault, err := keyvault.New(cfg.Vault.MasterSecret)
	if err != nil {
		return nil, nil, err
	}
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return dbService, wallet.NewRegistry(dbService, vault), nil
}

func (cs *Services) Close() {
	if cs.Tracker != nil {
		cs.Tracker.Stop()
	}
	if cs.Chain != nil {
		cs.Chain.Close()
	}
	if cs.DbService != nil {
		cs.DbService.Close()
	}
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
