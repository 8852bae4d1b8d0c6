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
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"wallet-custody-go/internal/audit"
	"wallet-custody-go/internal/common"
	"wallet-custody-go/internal/config"
	"wallet-custody-go/internal/models"
	"wallet-custody-go/internal/wallet"

	"go.uber.org/zap"
)

const usage = `usage: wallets [flags] <command> [address]

commands:
  import               import a private key (WALLET_PRIVATE_KEY or stdin)
  list                 list custodial wallets
  activate <address>   allow the wallet to sign
  deactivate <address> block the wallet from signing
  delete <address>     delete a wallet with no campaigns or pending transactions
  audit <address>      show the wallet's audit trail
`

// readPrivateKey takes the key from the environment first so it never lands in shell history
func readPrivateKey(stdin io.Reader) (string, error) {
	if key := os.Getenv("WALLET_PRIVATE_KEY"); key != "" {
		return key, nil
	}
	fmt.Fprint(os.Stderr, "Private key (hex): ")
	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read private key: %w", err)
	}
	key := strings.TrimSpace(line)
	if key == "" {
		return "", fmt.Errorf("private key cannot be empty")
	}
	return key, nil
}

func requireAddress(args []string) (string, error) {
	if len(args) < 2 || args[1] == "" {
		return "", fmt.Errorf("%s requires a wallet address", args[0])
	}
	return args[1], nil
}

func run(ctx context.Context, registry *wallet.Registry, trail *audit.Trail, args []string, expected string, activeOnly bool) error {
	switch args[0] {
	case "import":
		key, err := readPrivateKey(os.Stdin)
		if err != nil {
			return err
		}
		summary, err := registry.Import(ctx, wallet.ImportParams{PrivateKey: key, ExpectedAddress: expected})
		if err != nil {
			return err
		}
		fmt.Printf("✓ Imported custodial wallet %s\n", summary.Address)

	case "list":
		wallets, err := registry.List(ctx, activeOnly)
		if err != nil {
			return err
		}
		common.PrintHeader(fmt.Sprintf("CUSTODIAL WALLETS (%d)", len(wallets)), common.DefaultWidth)
		common.PrintWallets(wallets)

	case "activate", "deactivate":
		address, err := requireAddress(args)
		if err != nil {
			return err
		}
		summary, err := registry.SetActive(ctx, address, args[0] == "activate")
		if err != nil {
			return err
		}
		fmt.Printf("✓ Wallet %s active=%t\n", summary.Address, summary.Active)

	case "delete":
		address, err := requireAddress(args)
		if err != nil {
			return err
		}
		if err := registry.Delete(ctx, address); err != nil {
			return err
		}
		fmt.Printf("✓ Deleted wallet %s\n", address)

	case "audit":
		address, err := requireAddress(args)
		if err != nil {
			return err
		}
		entries, err := trail.List(ctx, address, 0, 0)
		if err != nil {
			return err
		}
		common.PrintHeader(fmt.Sprintf("AUDIT TRAIL %s (%d entries)", address, len(entries)), common.WideWidth)
		common.PrintAuditEntries(entries)

	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
	return nil
}

func main() {
	operator := flag.String("operator", "cli", "Operator identity recorded in audit entries")
	expected := flag.String("expect", "", "Address the imported key must control")
	activeOnly := flag.Bool("active", false, "List only active wallets")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx := models.WithPrincipal(context.Background(), *operator)

	dbService, registry, err := common.InitializeWallets(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize wallet registry", zap.Error(err))
	}
	defer dbService.Close()

	if err := run(ctx, registry, audit.NewTrail(dbService), args, *expected, *activeOnly); err != nil {
		fmt.Fprintf(os.Stderr, "✗ %v\n", err)
		dbService.Close()
		loggerCleanup()
		os.Exit(1)
	}
}
