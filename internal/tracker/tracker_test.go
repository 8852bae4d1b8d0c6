package tracker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"wallet-custody-go/internal/apperr"
	"wallet-custody-go/internal/chain"
	"wallet-custody-go/internal/chain/chaintest"
	"wallet-custody-go/internal/database"
	"wallet-custody-go/internal/models"
	"wallet-custody-go/internal/store"
	"wallet-custody-go/internal/submitter"
	"wallet-custody-go/internal/testutil"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
)

var (
	factoryAddress  = common.HexToAddress("0x5fbdb2315678afecb367f032d93f642f64180aa3")
	createdTopic    = common.HexToHash("0x1111111111111111111111111111111111111111111111111111111111111111")
	campaignAddress = common.HexToAddress("0xe7f1725e7734ce288f8367e1bb143e90bb3f0512")
)

type fixture struct {
	db      *database.Service
	backend *chaintest.Backend
	tracker *Tracker

	mu       sync.Mutex
	outcomes []models.PendingTransaction
}

func newFixture(t *testing.T, settings models.WatcherConfig) *fixture {
	testutil.QuietLogger(t)
	db := testutil.NewStore(t)

	_, err := db.CreateWallet(context.Background(), models.CustodialWallet{
		Address:      testutil.AddressA,
		EncryptedKey: "sealed",
		KeySalt:      "salt",
	}, "tester")
	require.NoError(t, err)

	contracts, err := chain.NewContracts(factoryAddress, createdTopic)
	require.NoError(t, err)

	if settings.PollInterval == 0 {
		settings.PollInterval = 5 * time.Millisecond
	}
	if settings.ConfirmationTimeout == 0 {
		settings.ConfirmationTimeout = 5 * time.Second
	}

	f := &fixture{db: db, backend: chaintest.NewBackend()}
	f.tracker = New(Config{Store: db, Backend: f.backend, Contracts: contracts, Settings: settings})
	record := func(_ context.Context, tx models.PendingTransaction) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.outcomes = append(f.outcomes, tx)
		return nil
	}
	for _, kind := range []models.TxKind{models.KindCampaignCreation, models.KindWithdrawal} {
		f.tracker.OnOutcome(kind, record)
	}
	t.Cleanup(f.tracker.Stop)
	return f
}

func (f *fixture) outcomeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.outcomes)
}

func hashOf(s string) string {
	return chain.HashHex(common.BytesToHash([]byte(s)))
}

func campaignMetadata() models.CampaignCreation {
	return models.CampaignCreation{ContentRef: "bafy", Category: "health", Title: "Clinic", GoalWei: "1000", DurationDays: 30}
}

func (f *fixture) track(t *testing.T, seed string, metadata models.TxMetadata) string {
	t.Helper()
	hash := hashOf(seed)
	acc, err := f.tracker.Track(models.WithPrincipal(context.Background(), "operator-1"), TrackParams{
		Submission: &submitter.Submission{TxHash: hash, Wallet: testutil.AddressA},
		Metadata:   metadata,
	})
	require.NoError(t, err)
	require.Equal(t, hash, acc.TxHash)
	require.NotEmpty(t, acc.PendingId)
	return hash
}

func (f *fixture) waitFor(t *testing.T, hash string, status models.TxStatus) *models.TransactionStatus {
	t.Helper()
	var view *models.TransactionStatus
	require.Eventually(t, func() bool {
		v, err := f.tracker.Status(context.Background(), hash)
		if err != nil {
			return false
		}
		view = v
		return v.Status == status
	}, 3*time.Second, 5*time.Millisecond)
	return view
}

func createdLog() *types.Log {
	return &types.Log{
		Address: factoryAddress,
		Topics:  []common.Hash{createdTopic, common.BytesToHash(campaignAddress.Bytes())},
	}
}

func TestTrack_WritesPendingAndSignedAudit(t *testing.T) {
	f := newFixture(t, models.WatcherConfig{})
	hash := f.track(t, "tx-1", campaignMetadata())

	view, err := f.tracker.Status(context.Background(), hash)
	require.NoError(t, err)
	require.Equal(t, models.TxPending, view.Status)
	require.Equal(t, models.KindCampaignCreation, view.Kind)

	entries, err := f.db.ListAudit(context.Background(), testutil.AddressA, 10, 0)
	require.NoError(t, err)
	require.Equal(t, models.AuditTransactionSigned, entries[0].Action)
	require.Equal(t, "operator-1", entries[0].PerformedBy)
}

func TestWatcher_ConfirmsCampaignCreation(t *testing.T) {
	f := newFixture(t, models.WatcherConfig{})
	hash := f.track(t, "tx-1", campaignMetadata())
	f.backend.SetReceipt(common.HexToHash(hash), chaintest.SuccessReceipt(common.HexToHash(hash), 42, createdLog()))

	require.NoError(t, f.tracker.Start(context.Background()))
	view := f.waitFor(t, hash, models.TxConfirmed)

	require.Equal(t, uint64(42), *view.BlockNumber)
	m := view.Metadata.(models.CampaignCreation)
	require.NotNil(t, m.CampaignAddress)
	require.Equal(t, "0xe7f1725e7734ce288f8367e1bb143e90bb3f0512", *m.CampaignAddress)

	wallet, err := f.db.GetWallet(context.Background(), testutil.AddressA)
	require.NoError(t, err)
	require.Equal(t, int64(1), wallet.CampaignCount)

	require.Eventually(t, func() bool { return f.outcomeCount() == 1 }, time.Second, 5*time.Millisecond)
}

func TestWatcher_NoMatchingTopicLeavesAddressNull(t *testing.T) {
	f := newFixture(t, models.WatcherConfig{})
	hash := f.track(t, "tx-1", campaignMetadata())
	other := &types.Log{
		Address: factoryAddress,
		Topics:  []common.Hash{common.HexToHash("0x22"), common.BytesToHash(campaignAddress.Bytes())},
	}
	f.backend.SetReceipt(common.HexToHash(hash), chaintest.SuccessReceipt(common.HexToHash(hash), 7, other))

	require.NoError(t, f.tracker.Start(context.Background()))
	view := f.waitFor(t, hash, models.TxConfirmed)
	require.Nil(t, view.Metadata.(models.CampaignCreation).CampaignAddress)
}

func TestWatcher_RevertedMarksFailed(t *testing.T) {
	f := newFixture(t, models.WatcherConfig{})
	hash := f.track(t, "tx-1", models.Withdrawal{CampaignAddress: campaignAddress.Hex(), AmountWei: "5"})
	f.backend.SetReceipt(common.HexToHash(hash), chaintest.RevertedReceipt(common.HexToHash(hash), 9))

	require.NoError(t, f.tracker.Start(context.Background()))
	view := f.waitFor(t, hash, models.TxFailed)
	require.Equal(t, "transaction reverted", *view.ErrorMessage)
	require.Equal(t, models.FailureReverted, view.FailureKind)
	require.False(t, view.NeedsReconciliation)

	entries, err := f.db.ListAudit(context.Background(), testutil.AddressA, 10, 0)
	require.NoError(t, err)
	require.Equal(t, models.AuditTransactionFailed, entries[0].Action)
	require.Eventually(t, func() bool { return f.outcomeCount() == 1 }, time.Second, 5*time.Millisecond)
}

func TestWatcher_TimeoutMarksFailed(t *testing.T) {
	f := newFixture(t, models.WatcherConfig{ConfirmationTimeout: 50 * time.Millisecond})
	hash := f.track(t, "tx-1", campaignMetadata())

	require.NoError(t, f.tracker.Start(context.Background()))
	view := f.waitFor(t, hash, models.TxFailed)
	require.Contains(t, *view.ErrorMessage, "timed out")
	require.Equal(t, models.FailureConfirmationTimeout, view.FailureKind)
	require.True(t, view.NeedsReconciliation)

	entries, err := f.db.ListAudit(context.Background(), testutil.AddressA, 10, 0)
	require.NoError(t, err)
	require.Equal(t, models.AuditTransactionFailed, entries[0].Action)
	require.Equal(t, string(models.FailureConfirmationTimeout), entries[0].Metadata["failure_kind"])
}

func TestWatcher_ReceiptLookupErrorMarksFailed(t *testing.T) {
	f := newFixture(t, models.WatcherConfig{})
	hash := f.track(t, "tx-1", campaignMetadata())
	f.backend.ReceiptErr = errors.New("connection refused")

	require.NoError(t, f.tracker.Start(context.Background()))
	view := f.waitFor(t, hash, models.TxFailed)
	require.Equal(t, "receipt lookup failed: connection refused", *view.ErrorMessage)
	require.Equal(t, models.FailureReceiptLookup, view.FailureKind)
	require.True(t, view.NeedsReconciliation)
}

func TestWatcher_StopLeavesPending(t *testing.T) {
	f := newFixture(t, models.WatcherConfig{ConfirmationTimeout: time.Hour})
	hash := f.track(t, "tx-1", campaignMetadata())

	require.NoError(t, f.tracker.Start(context.Background()))
	time.Sleep(20 * time.Millisecond)
	f.tracker.Stop()

	view, err := f.tracker.Status(context.Background(), hash)
	require.NoError(t, err)
	require.Equal(t, models.TxPending, view.Status)
}

func TestWatcher_RecoversPendingOnStart(t *testing.T) {
	f := newFixture(t, models.WatcherConfig{})
	hash := hashOf("recovered")
	_, err := f.db.CreatePending(context.Background(), store.CreatePendingParams{
		TxHash:        hash,
		WalletAddress: testutil.AddressA,
		Metadata:      models.Withdrawal{CampaignAddress: campaignAddress.Hex(), AmountWei: "1"},
	})
	require.NoError(t, err)
	f.backend.SetReceipt(common.HexToHash(hash), chaintest.SuccessReceipt(common.HexToHash(hash), 3))

	require.NoError(t, f.tracker.Start(context.Background()))
	f.waitFor(t, hash, models.TxConfirmed)
}

func TestResolve_IsIdempotent(t *testing.T) {
	f := newFixture(t, models.WatcherConfig{})
	hash := f.track(t, "tx-1", campaignMetadata())
	receipt := chaintest.SuccessReceipt(common.HexToHash(hash), 42, createdLog())

	f.tracker.resolve(context.Background(), hash, receipt)
	f.tracker.resolve(context.Background(), hash, receipt)
	f.tracker.fail(context.Background(), hash, errors.New("late failure"), nil, nil)

	require.Equal(t, 1, f.outcomeCount())

	wallet, err := f.db.GetWallet(context.Background(), testutil.AddressA)
	require.NoError(t, err)
	require.Equal(t, int64(1), wallet.CampaignCount)

	entries, err := f.db.ListAudit(context.Background(), testutil.AddressA, 100, 0)
	require.NoError(t, err)
	created := 0
	for _, e := range entries {
		require.NotEqual(t, models.AuditTransactionFailed, e.Action)
		if e.Action == models.AuditCampaignCreated {
			created++
		}
	}
	require.Equal(t, 1, created)
}

func TestReclaim_DeletesTerminalRowsKeepsAudit(t *testing.T) {
	f := newFixture(t, models.WatcherConfig{PendingRetention: time.Nanosecond})
	failed := f.track(t, "tx-1", campaignMetadata())
	pending := f.track(t, "tx-2", campaignMetadata())

	f.tracker.fail(context.Background(), failed, errReverted, nil, nil)
	time.Sleep(5 * time.Millisecond)

	deleted, err := f.tracker.Reclaim(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), deleted)

	_, err = f.tracker.Status(context.Background(), failed)
	require.True(t, apperr.Is(err, apperr.KindNotFound))
	_, err = f.tracker.Status(context.Background(), pending)
	require.NoError(t, err)

	entries, err := f.db.ListAudit(context.Background(), testutil.AddressA, 100, 0)
	require.NoError(t, err)
	require.Len(t, entries, 4)
}

func TestStatus_Errors(t *testing.T) {
	f := newFixture(t, models.WatcherConfig{})

	_, err := f.tracker.Status(context.Background(), "0x1234")
	require.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = f.tracker.Status(context.Background(), hashOf("missing"))
	require.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestEnqueue_FullQueueDefers(t *testing.T) {
	f := newFixture(t, models.WatcherConfig{QueueSize: 1})

	require.True(t, f.tracker.enqueue(hashOf("a")))
	require.False(t, f.tracker.enqueue(hashOf("a")))
	require.False(t, f.tracker.enqueue(hashOf("b")))
	require.False(t, f.tracker.isInFlight(hashOf("b")))
}
