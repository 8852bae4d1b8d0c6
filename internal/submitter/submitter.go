package submitter

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"wallet-custody-go/internal/apperr"
	"wallet-custody-go/internal/chain"
	"wallet-custody-go/internal/store"
	"wallet-custody-go/internal/wallet"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	intrinsicGas      = 21_000
	gasHeadroomPct    = 120
	gasHeadroomPctDiv = 100

	// leaseTTL bounds how long a crashed holder can block a wallet
	leaseTTL          = 2 * time.Minute
	leasePollInterval = 25 * time.Millisecond
)

// SignerSource resolves a custodial wallet to its decrypted key
type SignerSource interface {
	Signer(ctx context.Context, address string) (*wallet.Signer, error)
}

// Call describes a contract call to be signed by a custodial wallet
type Call struct {
	Wallet string
	To     common.Address
	Data   []byte
	Value  *big.Int
}

// Submission is the result of a successful broadcast
type Submission struct {
	TxHash   string
	Wallet   string
	Nonce    uint64
	GasLimit uint64
	GasPrice *big.Int
	Value    *big.Int
}

// GasCost is the maximum fee the transaction can spend
func (s Submission) GasCost() *big.Int {
	return new(big.Int).Mul(s.GasPrice, new(big.Int).SetUint64(s.GasLimit))
}

// Submitter signs and broadcasts transactions, one at a time per wallet.
// Serialization spans processes: every submission holds the wallet's lease in the shared store
// from nonce read to broadcast. Apart from the lease it writes no state, so a failed submission
// leaves nothing behind and can be retried.
type Submitter struct {
	backend chain.Backend
	signers SignerSource
	leases  store.LeaseStore
	holder  string
	chainId *big.Int
	signer  types.Signer

	locks keyedMutex
}

// New builds a Submitter. A zero chainId is resolved from the backend.
func New(ctx context.Context, backend chain.Backend, signers SignerSource, leases store.LeaseStore, chainId int64) (*Submitter, error) {
	if leases == nil {
		return nil, fmt.Errorf("lease store cannot be nil")
	}
	id := big.NewInt(chainId)
	if chainId == 0 {
		var err error
		id, err = backend.ChainID(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read chain id: %w", err)
		}
	}
	return &Submitter{
		backend: backend,
		signers: signers,
		leases:  leases,
		holder:  uuid.NewString(),
		chainId: id,
		signer:  types.LatestSignerForChainID(id),
		locks:   keyedMutex{entries: map[string]*keyedEntry{}},
	}, nil
}

// lockWallet serializes goroutines in this process first, then waits for the shared lease
// so that submitters in other processes are excluded too.
func (s *Submitter) lockWallet(ctx context.Context, address string) (func(), error) {
	key := strings.ToLower(address)
	unlockLocal := s.locks.lock(key)

	for {
		ok, err := s.leases.AcquireWalletLease(ctx, key, s.holder, leaseTTL)
		if err != nil {
			unlockLocal()
			return nil, apperr.Submission("failed to lock wallet", err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			unlockLocal()
			return nil, apperr.Submission("timed out waiting for wallet lock", ctx.Err())
		case <-time.After(leasePollInterval):
		}
	}

	return func() {
		if err := s.leases.ReleaseWalletLease(context.WithoutCancel(ctx), key, s.holder); err != nil {
			zap.L().Warn("Failed to release wallet lease; it will expire",
				zap.String("wallet", key),
				zap.Duration("ttl", leaseTTL),
				zap.Error(err))
		}
		unlockLocal()
	}, nil
}

// Submit runs the pre-flight checks, signs and broadcasts call.
// Submissions from the same wallet are serialized so nonces never collide.
func (s *Submitter) Submit(ctx context.Context, call Call) (*Submission, error) {
	unlock, err := s.lockWallet(ctx, call.Wallet)
	if err != nil {
		return nil, err
	}
	defer unlock()

	signer, err := s.signers.Signer(ctx, call.Wallet)
	if err != nil {
		return nil, err
	}
	if !signer.Active {
		return nil, apperr.Validation(fmt.Sprintf("wallet %s is inactive", strings.ToLower(signer.Address.Hex())))
	}
	from := signer.Address
	value := call.Value
	if value == nil {
		value = new(big.Int)
	}

	balance, err := s.backend.BalanceAt(ctx, from, nil)
	if err != nil {
		return nil, apperr.Submission("failed to read wallet balance", err)
	}
	gasPrice, err := s.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, apperr.Submission("failed to read gas price", err)
	}

	if err := checkFunds(balance, value, intrinsicGas, gasPrice); err != nil {
		return nil, err
	}

	to := call.To
	estimate, err := s.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:     from,
		To:       &to,
		GasPrice: gasPrice,
		Value:    value,
		Data:     call.Data,
	})
	if err != nil {
		return nil, apperr.Submission("gas estimation failed", err)
	}
	gasLimit := estimate * gasHeadroomPct / gasHeadroomPctDiv

	if err := checkFunds(balance, value, gasLimit, gasPrice); err != nil {
		return nil, err
	}

	nonce, err := s.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, apperr.Submission("failed to read nonce", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gasLimit,
		To:       &to,
		Value:    value,
		Data:     call.Data,
	})
	signed, err := types.SignTx(tx, s.signer, signer.Key)
	if err != nil {
		return nil, apperr.Submission("failed to sign transaction", err)
	}

	if err := s.backend.SendTransaction(ctx, signed); err != nil {
		zap.L().Warn("Transaction broadcast rejected",
			zap.String("wallet", call.Wallet),
			zap.Uint64("nonce", nonce),
			zap.Error(err))
		return nil, apperr.Submission("transaction broadcast failed", err)
	}

	submission := &Submission{
		TxHash:   chain.HashHex(signed.Hash()),
		Wallet:   strings.ToLower(from.Hex()),
		Nonce:    nonce,
		GasLimit: gasLimit,
		GasPrice: gasPrice,
		Value:    value,
	}

	zap.L().Info("Transaction broadcast",
		zap.String("tx_hash", submission.TxHash),
		zap.String("wallet", submission.Wallet),
		zap.String("to", strings.ToLower(to.Hex())),
		zap.Uint64("nonce", nonce),
		zap.Uint64("gas_limit", gasLimit),
		zap.String("gas_price", gasPrice.String()),
		zap.String("value", value.String()))
	return submission, nil
}

// Balance returns the wallet's current balance in wei
func (s *Submitter) Balance(ctx context.Context, address common.Address) (*big.Int, error) {
	return s.backend.BalanceAt(ctx, address, nil)
}

func checkFunds(balance, value *big.Int, gas uint64, gasPrice *big.Int) error {
	required := new(big.Int).Mul(new(big.Int).SetUint64(gas), gasPrice)
	required.Add(required, value)
	if balance.Cmp(required) < 0 {
		return apperr.InsufficientFunds(fmt.Sprintf("balance %s wei is below required %s wei", balance, required))
	}
	return nil
}

// keyedMutex hands out one mutex per key and drops it when the last holder or waiter leaves
type keyedMutex struct {
	mu      sync.Mutex
	entries map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &keyedEntry{}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.entries, key)
		}
		k.mu.Unlock()
	}
}
