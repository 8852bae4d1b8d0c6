package database

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// AcquireWalletLease takes the lease on walletAddress for holder until now+ttl.
// It reports false without error while another holder's lease is still live.
func (s *Service) AcquireWalletLease(ctx context.Context, walletAddress, holder string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, fmt.Errorf("lease ttl must be positive, got %v", ttl)
	}
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, s.q(queryAcquireWalletLease),
		strings.ToLower(walletAddress), holder, now.Add(ttl), now)
	if err != nil {
		return false, fmt.Errorf("failed to acquire lease on wallet %s: %w", walletAddress, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check lease result: %w", err)
	}
	return rows == 1, nil
}

func (s *Service) ReleaseWalletLease(ctx context.Context, walletAddress, holder string) error {
	if _, err := s.db.ExecContext(ctx, s.q(queryReleaseWalletLease), strings.ToLower(walletAddress), holder); err != nil {
		return fmt.Errorf("failed to release lease on wallet %s: %w", walletAddress, err)
	}
	return nil
}
