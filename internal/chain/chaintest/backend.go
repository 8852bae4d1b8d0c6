// Package chaintest provides an in-memory chain.Backend for tests.
package chaintest

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var DefaultChainID = big.NewInt(1337)

// Backend records sent transactions and serves balances and receipts set by the test
type Backend struct {
	mu sync.Mutex

	Chain       *big.Int
	GasPrice    *big.Int
	GasEstimate uint64

	EstimateErr error
	SendErr     error
	ReceiptErr  error
	BalanceErr  error

	// SendDelay stalls every broadcast before the nonce is consumed, like a slow node
	SendDelay time.Duration

	balances map[common.Address]*big.Int
	nonces   map[common.Address]uint64
	receipts map[common.Hash]*types.Receipt
	sent     []*types.Transaction

	// AutoReceipt, when set, builds a receipt for every sent transaction
	AutoReceipt func(tx *types.Transaction) *types.Receipt
}

func NewBackend() *Backend {
	return &Backend{
		Chain:       DefaultChainID,
		GasPrice:    big.NewInt(1_000_000_000),
		GasEstimate: 100_000,
		balances:    map[common.Address]*big.Int{},
		nonces:      map[common.Address]uint64{},
		receipts:    map[common.Hash]*types.Receipt{},
	}
}

func (b *Backend) SetBalance(addr common.Address, wei *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balances[addr] = new(big.Int).Set(wei)
}

func (b *Backend) SetReceipt(hash common.Hash, receipt *types.Receipt) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.receipts[hash] = receipt
}

// Sent returns a copy of the transactions broadcast so far
func (b *Backend) Sent() []*types.Transaction {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*types.Transaction(nil), b.sent...)
}

func (b *Backend) ChainID(_ context.Context) (*big.Int, error) {
	return b.Chain, nil
}

func (b *Backend) BalanceAt(_ context.Context, account common.Address, _ *big.Int) (*big.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.BalanceErr != nil {
		return nil, b.BalanceErr
	}
	if bal, ok := b.balances[account]; ok {
		return new(big.Int).Set(bal), nil
	}
	return big.NewInt(0), nil
}

func (b *Backend) PendingNonceAt(_ context.Context, account common.Address) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nonces[account], nil
}

func (b *Backend) SuggestGasPrice(_ context.Context) (*big.Int, error) {
	return new(big.Int).Set(b.GasPrice), nil
}

func (b *Backend) EstimateGas(_ context.Context, _ ethereum.CallMsg) (uint64, error) {
	if b.EstimateErr != nil {
		return 0, b.EstimateErr
	}
	return b.GasEstimate, nil
}

func (b *Backend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	b.mu.Lock()
	delay := b.SendDelay
	b.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.SendErr != nil {
		return b.SendErr
	}

	signer := types.LatestSignerForChainID(b.Chain)
	from, err := types.Sender(signer, tx)
	if err != nil {
		return err
	}
	b.nonces[from] = tx.Nonce() + 1
	b.sent = append(b.sent, tx)
	if b.AutoReceipt != nil {
		if r := b.AutoReceipt(tx); r != nil {
			b.receipts[tx.Hash()] = r
		}
	}
	return nil
}

func (b *Backend) TransactionReceipt(_ context.Context, txHash common.Hash) (*types.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ReceiptErr != nil {
		return nil, b.ReceiptErr
	}
	r, ok := b.receipts[txHash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return r, nil
}

// SuccessReceipt builds a successful receipt carrying the given logs
func SuccessReceipt(txHash common.Hash, block uint64, logs ...*types.Log) *types.Receipt {
	return &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      txHash,
		BlockNumber: new(big.Int).SetUint64(block),
		GasUsed:     21_000,
		Logs:        logs,
	}
}

// RevertedReceipt builds a receipt for a transaction that reverted on-chain
func RevertedReceipt(txHash common.Hash, block uint64) *types.Receipt {
	return &types.Receipt{
		Status:      types.ReceiptStatusFailed,
		TxHash:      txHash,
		BlockNumber: new(big.Int).SetUint64(block),
		GasUsed:     21_000,
	}
}
