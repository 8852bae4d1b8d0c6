package database

import (
	"context"
	"testing"
	"time"
)

func acquire(t *testing.T, s *Service, holder string, ttl time.Duration) bool {
	t.Helper()
	ok, err := s.AcquireWalletLease(context.Background(), testWallet, holder, ttl)
	if err != nil {
		t.Fatalf("AcquireWalletLease(%s) failed: %v", holder, err)
	}
	return ok
}

func TestWalletLease_Exclusive(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()

	if !acquire(t, service, "server", time.Minute) {
		t.Fatal("First holder should get the lease")
	}
	if acquire(t, service, "worker", time.Minute) {
		t.Fatal("Second holder must not get a live lease")
	}
	if !acquire(t, service, "server", time.Minute) {
		t.Fatal("Holder should be able to renew its own lease")
	}

	// Releasing someone else's lease is a no-op
	if err := service.ReleaseWalletLease(context.Background(), testWallet, "worker"); err != nil {
		t.Fatalf("ReleaseWalletLease failed: %v", err)
	}
	if acquire(t, service, "worker", time.Minute) {
		t.Fatal("Lease must survive a release by a non-holder")
	}

	if err := service.ReleaseWalletLease(context.Background(), testWallet, "server"); err != nil {
		t.Fatalf("ReleaseWalletLease failed: %v", err)
	}
	if !acquire(t, service, "worker", time.Minute) {
		t.Fatal("Released lease should be free")
	}
}

func TestWalletLease_ExpiredTakeover(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()

	if !acquire(t, service, "crashed", 10*time.Millisecond) {
		t.Fatal("First holder should get the lease")
	}
	time.Sleep(30 * time.Millisecond)
	if !acquire(t, service, "worker", time.Minute) {
		t.Fatal("Expired lease should be taken over")
	}
}

func TestWalletLease_InvalidTTL(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()

	if _, err := service.AcquireWalletLease(context.Background(), testWallet, "server", 0); err == nil {
		t.Fatal("Expected error for zero ttl")
	}
}
