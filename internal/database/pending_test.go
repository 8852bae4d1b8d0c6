package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"wallet-custody-go/internal/models"
	"wallet-custody-go/internal/store"
)

func createCampaignPending(t *testing.T, s *Service, txHash string) *models.PendingTransaction {
	t.Helper()
	pending, err := s.CreatePending(context.Background(), store.CreatePendingParams{
		TxHash:        txHash,
		WalletAddress: testWallet,
		Metadata: models.CampaignCreation{
			ContentRef:   "bafy123",
			Category:     "education",
			Title:        "School roof",
			GoalWei:      "1000000000000000000",
			DurationDays: 30,
		},
		PerformedBy: "operator",
	})
	if err != nil {
		t.Fatalf("CreatePending failed: %v", err)
	}
	return pending
}

func TestCreatePending(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()
	ctx := context.Background()
	insertTestWallet(t, service, testWallet)

	pending := createCampaignPending(t, service, "0xabc")
	if pending.Status != models.TxPending {
		t.Errorf("expected PENDING, got %s", pending.Status)
	}
	if pending.Kind != models.KindCampaignCreation {
		t.Errorf("expected campaign creation kind, got %s", pending.Kind)
	}
	meta, ok := pending.Metadata.(models.CampaignCreation)
	if !ok || meta.Title != "School roof" || meta.CampaignAddress != nil {
		t.Errorf("unexpected metadata %+v", pending.Metadata)
	}

	entries, _ := service.ListAudit(ctx, testWallet, 10, 0)
	if len(entries) != 2 || entries[0].Action != models.AuditTransactionSigned {
		t.Fatalf("expected TRANSACTION_SIGNED as newest entry, got %+v", entries)
	}
	if entries[0].TxHash == nil || *entries[0].TxHash != "0xabc" {
		t.Errorf("audit entry missing tx hash")
	}

	if _, err := service.CreatePending(ctx, store.CreatePendingParams{
		TxHash: "0xabc", WalletAddress: testWallet, Metadata: models.Withdrawal{},
	}); !errors.Is(err, store.ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}
}

func TestConfirmPending_CampaignCreation(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()
	ctx := context.Background()
	insertTestWallet(t, service, testWallet)
	createCampaignPending(t, service, "0xabc")

	campaign := "0x00000000000000000000000000000000000000c1"
	confirmed, err := service.ConfirmPending(ctx, store.ConfirmParams{
		TxHash:      "0xabc",
		BlockNumber: 42,
		GasUsed:     210000,
		Metadata: models.CampaignCreation{
			ContentRef: "bafy123", Category: "education", Title: "School roof",
			GoalWei: "1000000000000000000", DurationDays: 30, CampaignAddress: &campaign,
		},
	})
	if err != nil {
		t.Fatalf("ConfirmPending failed: %v", err)
	}
	if confirmed.Status != models.TxConfirmed || confirmed.ConfirmedAt == nil {
		t.Errorf("expected CONFIRMED with timestamp, got %+v", confirmed)
	}
	if confirmed.BlockNumber == nil || *confirmed.BlockNumber != 42 {
		t.Errorf("block number not stored")
	}
	meta := confirmed.Metadata.(models.CampaignCreation)
	if meta.CampaignAddress == nil || *meta.CampaignAddress != campaign {
		t.Errorf("campaign address not stored")
	}

	wallet, _ := service.GetWallet(ctx, testWallet)
	if wallet.CampaignCount != 1 {
		t.Errorf("expected campaign count 1, got %d", wallet.CampaignCount)
	}
}

func TestConfirmPending_Idempotent(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()
	ctx := context.Background()
	insertTestWallet(t, service, testWallet)
	createCampaignPending(t, service, "0xabc")

	params := store.ConfirmParams{TxHash: "0xabc", BlockNumber: 1, GasUsed: 1}
	if _, err := service.ConfirmPending(ctx, params); err != nil {
		t.Fatalf("first confirm failed: %v", err)
	}
	if _, err := service.ConfirmPending(ctx, params); !errors.Is(err, store.ErrAlreadyFinal) {
		t.Fatalf("expected ErrAlreadyFinal, got %v", err)
	}
	if _, err := service.FailPending(ctx, store.FailParams{TxHash: "0xabc", Reason: "late"}); !errors.Is(err, store.ErrAlreadyFinal) {
		t.Fatalf("expected ErrAlreadyFinal, got %v", err)
	}

	wallet, _ := service.GetWallet(ctx, testWallet)
	if wallet.CampaignCount != 1 {
		t.Errorf("counter incremented twice: %d", wallet.CampaignCount)
	}
	entries, _ := service.ListAudit(ctx, testWallet, 10, 0)
	confirmedEntries := 0
	for _, e := range entries {
		if e.Action == models.AuditCampaignCreated || e.Action == models.AuditTransactionFailed {
			confirmedEntries++
		}
	}
	if confirmedEntries != 1 {
		t.Errorf("expected one outcome audit entry, got %d", confirmedEntries)
	}
}

func TestFailPending(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()
	ctx := context.Background()
	insertTestWallet(t, service, testWallet)
	createCampaignPending(t, service, "0xabc")

	failed, err := service.FailPending(ctx, store.FailParams{TxHash: "0xabc", Reason: "execution reverted", Kind: models.FailureReverted})
	if err != nil {
		t.Fatalf("FailPending failed: %v", err)
	}
	if failed.Status != models.TxFailed || failed.ErrorMessage == nil || *failed.ErrorMessage != "execution reverted" {
		t.Errorf("unexpected failed row %+v", failed)
	}
	if failed.FailureKind != models.FailureReverted {
		t.Errorf("expected failure kind %s, got %q", models.FailureReverted, failed.FailureKind)
	}

	wallet, _ := service.GetWallet(ctx, testWallet)
	if wallet.CampaignCount != 0 {
		t.Errorf("failed creation must not count, got %d", wallet.CampaignCount)
	}

	if _, err := service.FailPending(ctx, store.FailParams{TxHash: "0xmissing"}); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListPendingAndReclaim(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()
	ctx := context.Background()
	insertTestWallet(t, service, testWallet)
	createCampaignPending(t, service, "0x01")
	createCampaignPending(t, service, "0x02")

	if _, err := service.FailPending(ctx, store.FailParams{TxHash: "0x01", Reason: "timeout"}); err != nil {
		t.Fatalf("FailPending failed: %v", err)
	}

	pending, err := service.ListPendingByStatus(ctx, models.TxPending, 10)
	if err != nil {
		t.Fatalf("ListPendingByStatus failed: %v", err)
	}
	if len(pending) != 1 || pending[0].TxHash != "0x02" {
		t.Fatalf("expected only 0x02 pending, got %+v", pending)
	}

	// Cutoff in the past keeps fresh terminal rows
	n, err := service.DeleteTerminalBefore(ctx, time.Now().Add(-time.Hour))
	if err != nil || n != 0 {
		t.Fatalf("expected nothing reclaimed, got %d (%v)", n, err)
	}

	n, err = service.DeleteTerminalBefore(ctx, time.Now().Add(time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("expected one row reclaimed, got %d (%v)", n, err)
	}
	if _, err := service.GetPending(ctx, "0x01"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("reclaimed row should be gone, got %v", err)
	}
	if _, err := service.GetPending(ctx, "0x02"); err != nil {
		t.Errorf("pending row must survive reclaim: %v", err)
	}

	// Audit survives reclaim
	entries, _ := service.ListAudit(ctx, testWallet, 10, 0)
	if len(entries) != 4 {
		t.Errorf("expected 4 audit entries, got %d", len(entries))
	}
}

func TestFailPending_TimeoutNeedsReconciliation(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()
	ctx := context.Background()
	insertTestWallet(t, service, testWallet)
	createCampaignPending(t, service, "0xabc")

	if _, err := service.FailPending(ctx, store.FailParams{
		TxHash: "0xabc",
		Reason: "confirmation timed out after 2m0s",
		Kind:   models.FailureConfirmationTimeout,
	}); err != nil {
		t.Fatalf("FailPending failed: %v", err)
	}

	stored, err := service.GetPending(ctx, "0xabc")
	if err != nil {
		t.Fatalf("GetPending failed: %v", err)
	}
	view := stored.View()
	if view.FailureKind != models.FailureConfirmationTimeout || !view.NeedsReconciliation {
		t.Errorf("timeout must be flagged for reconciliation, got %+v", view)
	}

	entries, err := service.ListAudit(ctx, testWallet, 1, 0)
	if err != nil {
		t.Fatalf("ListAudit failed: %v", err)
	}
	if entries[0].Metadata["failure_kind"] != string(models.FailureConfirmationTimeout) {
		t.Errorf("audit entry should carry the failure kind, got %v", entries[0].Metadata)
	}
}
