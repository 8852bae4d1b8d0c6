package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// Backend is the slice of the JSON-RPC client the service depends on
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

var _ Backend = (*ethclient.Client)(nil)

// Dial connects to the JSON-RPC endpoint and logs the chain it reports
func Dial(ctx context.Context, rpcURL string) (*ethclient.Client, error) {
	if rpcURL == "" {
		return nil, fmt.Errorf("chain RPC URL cannot be empty")
	}
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("unable to dial chain RPC: %w", err)
	}
	chainId, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("unable to read chain id: %w", err)
	}
	zap.L().Info("Connected to chain RPC", zap.String("chain_id", chainId.String()))
	return client, nil
}

// ParseAddress validates a hex address and returns it with its lowercase form
func ParseAddress(s string) (common.Address, string, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, "", fmt.Errorf("invalid address %q", s)
	}
	addr := common.HexToAddress(s)
	return addr, strings.ToLower(addr.Hex()), nil
}

// HashHex renders a transaction hash as the lowercase handle used in storage
func HashHex(h common.Hash) string {
	return strings.ToLower(h.Hex())
}
