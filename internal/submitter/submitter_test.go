package submitter

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"wallet-custody-go/internal/apperr"
	"wallet-custody-go/internal/chain/chaintest"
	"wallet-custody-go/internal/database"
	"wallet-custody-go/internal/models"
	"wallet-custody-go/internal/testutil"
	"wallet-custody-go/internal/wallet"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

var target = common.HexToAddress("0x00000000000000000000000000000000000000fa")

type fixture struct {
	db       *database.Service
	backend  *chaintest.Backend
	registry *wallet.Registry
	sub      *Submitter
}

func newFixture(t *testing.T) *fixture {
	testutil.QuietLogger(t)
	db := testutil.NewStore(t)
	registry := wallet.NewRegistry(db, testutil.NewVault(t))
	backend := chaintest.NewBackend()

	_, err := registry.Import(context.Background(), wallet.ImportParams{PrivateKey: testutil.KeyA})
	require.NoError(t, err)

	sub, err := New(context.Background(), backend, registry, db, 0)
	require.NoError(t, err)
	return &fixture{db: db, backend: backend, registry: registry, sub: sub}
}

func oneEther() *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
}

func TestSubmit_Success(t *testing.T) {
	f := newFixture(t)
	f.backend.SetBalance(common.HexToAddress(testutil.AddressA), oneEther())

	sub, err := f.sub.Submit(context.Background(), Call{Wallet: testutil.AddressA, To: target, Data: []byte{1, 2, 3, 4}})
	require.NoError(t, err)
	require.Equal(t, testutil.AddressA, sub.Wallet)
	require.Equal(t, uint64(0), sub.Nonce)
	require.Equal(t, uint64(120_000), sub.GasLimit)

	sent := f.backend.Sent()
	require.Len(t, sent, 1)
	require.Equal(t, sub.TxHash, "0x"+common.Bytes2Hex(sent[0].Hash().Bytes()))
	require.Zero(t, chaintest.DefaultChainID.Cmp(sent[0].ChainId()))
}

func TestSubmit_InsufficientFunds(t *testing.T) {
	f := newFixture(t)
	// Enough for the intrinsic fee but not for the estimated gas
	f.backend.SetBalance(common.HexToAddress(testutil.AddressA), big.NewInt(50_000*1_000_000_000))

	_, err := f.sub.Submit(context.Background(), Call{Wallet: testutil.AddressA, To: target})
	require.True(t, apperr.Is(err, apperr.KindInsufficientFunds), "got %v", err)
	require.Empty(t, f.backend.Sent())

	pending, err := f.db.ListPendingByStatus(context.Background(), models.TxPending, 10)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestSubmit_ValueCountsTowardsRequirement(t *testing.T) {
	f := newFixture(t)
	f.backend.SetBalance(common.HexToAddress(testutil.AddressA), oneEther())

	_, err := f.sub.Submit(context.Background(), Call{Wallet: testutil.AddressA, To: target, Value: oneEther()})
	require.True(t, apperr.Is(err, apperr.KindInsufficientFunds), "got %v", err)
}

func TestSubmit_Failures(t *testing.T) {
	f := newFixture(t)
	f.backend.SetBalance(common.HexToAddress(testutil.AddressA), oneEther())

	f.backend.EstimateErr = errors.New("execution reverted")
	_, err := f.sub.Submit(context.Background(), Call{Wallet: testutil.AddressA, To: target})
	require.True(t, apperr.Is(err, apperr.KindSubmission), "got %v", err)

	f.backend.EstimateErr = nil
	f.backend.SendErr = errors.New("nonce too low")
	_, err = f.sub.Submit(context.Background(), Call{Wallet: testutil.AddressA, To: target})
	require.True(t, apperr.Is(err, apperr.KindSubmission), "got %v", err)

	_, err = f.sub.Submit(context.Background(), Call{Wallet: testutil.AddressB, To: target})
	require.True(t, apperr.Is(err, apperr.KindNotFound), "got %v", err)
}

func TestSubmit_InactiveWallet(t *testing.T) {
	f := newFixture(t)
	f.backend.SetBalance(common.HexToAddress(testutil.AddressA), oneEther())
	_, err := f.registry.SetActive(context.Background(), testutil.AddressA, false)
	require.NoError(t, err)

	_, err = f.sub.Submit(context.Background(), Call{Wallet: testutil.AddressA, To: target})
	require.True(t, apperr.Is(err, apperr.KindValidation), "got %v", err)
}

func TestSubmit_SerializesPerWallet(t *testing.T) {
	f := newFixture(t)
	f.backend.SetBalance(common.HexToAddress(testutil.AddressA), oneEther())

	const n = 5
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.sub.Submit(context.Background(), Call{Wallet: testutil.AddressA, To: target})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	nonces := map[uint64]bool{}
	for _, tx := range f.backend.Sent() {
		nonces[tx.Nonce()] = true
	}
	require.Len(t, nonces, n)
}

func TestSubmit_SerializesAcrossSubmitters(t *testing.T) {
	f := newFixture(t)
	f.backend.SetBalance(common.HexToAddress(testutil.AddressA), oneEther())
	f.backend.SendDelay = 5 * time.Millisecond

	// A second process sharing the database and the node
	other, err := New(context.Background(), f.backend, f.registry, f.db, 0)
	require.NoError(t, err)

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		s := f.sub
		if i%2 == 1 {
			s = other
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Submit(context.Background(), Call{Wallet: testutil.AddressA, To: target})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	sent := f.backend.Sent()
	require.Len(t, sent, n)
	nonces := map[uint64]bool{}
	for _, tx := range sent {
		nonces[tx.Nonce()] = true
	}
	require.Len(t, nonces, n)
}

func TestSubmit_WaitsForForeignLease(t *testing.T) {
	f := newFixture(t)
	f.backend.SetBalance(common.HexToAddress(testutil.AddressA), oneEther())

	ok, err := f.db.AcquireWalletLease(context.Background(), testutil.AddressA, "other-process", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = f.sub.Submit(ctx, Call{Wallet: testutil.AddressA, To: target})
	require.True(t, apperr.Is(err, apperr.KindSubmission), "got %v", err)
	require.Empty(t, f.backend.Sent())

	require.NoError(t, f.db.ReleaseWalletLease(context.Background(), testutil.AddressA, "other-process"))
	_, err = f.sub.Submit(context.Background(), Call{Wallet: testutil.AddressA, To: target})
	require.NoError(t, err)
	require.Len(t, f.backend.Sent(), 1)
}

func TestSubmit_ReleasesWalletLocks(t *testing.T) {
	f := newFixture(t)
	f.backend.SetBalance(common.HexToAddress(testutil.AddressA), oneEther())

	_, err := f.sub.Submit(context.Background(), Call{Wallet: testutil.AddressA, To: target})
	require.NoError(t, err)
	_, err = f.sub.Submit(context.Background(), Call{Wallet: testutil.AddressB, To: target})
	require.Error(t, err)

	f.sub.locks.mu.Lock()
	require.Empty(t, f.sub.locks.entries)
	f.sub.locks.mu.Unlock()

	// The lease is free for anyone else
	ok, err := f.db.AcquireWalletLease(context.Background(), testutil.AddressA, "other-process", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
}
