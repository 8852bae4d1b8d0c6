package main

import (
	"context"
	"fmt"
	"os"

	"wallet-custody-go/internal/common"
	"wallet-custody-go/internal/config"

	"go.uber.org/zap"
)

// setup applies the schema and checks that every integration input is usable before the
// server and worker are started: contracts file, chain RPC, processor key and treasury wallet.
func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	common.PrintHeader("WALLET CUSTODY SETUP", common.DefaultWidth)

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()
	fmt.Println("✓ Database schema applied")
	fmt.Println("✓ Contracts file loaded:", cfg.Chain.ContractsFile)
	fmt.Println("✓ Chain RPC reachable:", cfg.Chain.RPCURL)

	if _, err := services.Registry.Get(ctx, cfg.Treasury.Address); err != nil {
		fmt.Fprintf(os.Stderr, "✗ Treasury wallet is not a custodial wallet: %v\n", err)
		fmt.Fprintln(os.Stderr, "  Import its key with: wallets -expect", cfg.Treasury.Address, "import")
	}

	treasury, err := services.Donations.TreasuryStatus(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ Treasury check failed: %v\n", err)
		services.Close()
		loggerCleanup()
		os.Exit(1)
	}
	fmt.Printf("✓ Treasury %s balance %s (minimum %s)\n",
		treasury.Address, treasury.Balance.String(), treasury.MinimumBalance.String())

	if !treasury.SufficientBalance {
		common.PrintFooter("⚠ Treasury balance is below the configured minimum; donations will fail until it is funded", common.DefaultWidth)
		return
	}
	common.PrintFooter("Setup complete", common.DefaultWidth)
}
