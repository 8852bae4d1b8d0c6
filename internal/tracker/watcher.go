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

package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wallet-custody-go/internal/apperr"
	"wallet-custody-go/internal/chain"
	"wallet-custody-go/internal/models"
	"wallet-custody-go/internal/store"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Start runs startup recovery and launches the watch workers, the resume sweep and the reclaim loop
func (t *Tracker) Start(ctx context.Context) error {
	zap.L().Info("Starting confirmation watcher")

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	recovered, err := t.resume(ctx)
	if err != nil {
		cancel()
		return fmt.Errorf("startup recovery failed: %w", err)
	}

	g := &errgroup.Group{}
	for i := 0; i < t.workers; i++ {
		g.Go(func() error {
			t.worker(ctx)
			return nil
		})
	}
	g.Go(func() error {
		t.resumeLoop(ctx)
		return nil
	})
	g.Go(func() error {
		t.cleanupLoop(ctx)
		return nil
	})
	t.group = g

	zap.L().Info("Confirmation watcher started",
		zap.Int("workers", t.workers),
		zap.Int("recovered", recovered),
		zap.Duration("confirmation_timeout", t.confirmationTimeout),
		zap.Duration("poll_interval", t.pollInterval))
	return nil
}

// Stop cancels in-flight watches and waits for the workers. Rows still PENDING are resumed on next start.
func (t *Tracker) Stop() {
	t.stopOnce.Do(func() {
		zap.L().Info("Stopping confirmation watcher")
		close(t.stopChan)
		if t.cancel != nil {
			t.cancel()
		}
		if t.group != nil {
			_ = t.group.Wait()
		}
		zap.L().Info("Confirmation watcher stopped")
	})
}

func (t *Tracker) worker(ctx context.Context) {
	for {
		select {
		case txHash := <-t.jobs:
			t.watch(ctx, txHash)
			t.release(txHash)
		case <-t.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// watch polls for the receipt until it arrives or the confirmation timeout elapses
func (t *Tracker) watch(ctx context.Context, txHash string) {
	waitCtx, cancel := context.WithTimeout(ctx, t.confirmationTimeout)
	defer cancel()

	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

	hash := common.HexToHash(txHash)
	for {
		receipt, err := t.backend.TransactionReceipt(waitCtx, hash)
		switch {
		case err == nil:
			t.resolve(ctx, txHash, receipt)
			return
		case ctx.Err() != nil:
			zap.L().Debug("Watch interrupted by shutdown, leaving transaction pending", zap.String("tx_hash", txHash))
			return
		case waitCtx.Err() != nil:
			t.fail(ctx, txHash, t.timeoutError(), nil, nil)
			return
		case !errors.Is(err, ethereum.NotFound):
			t.fail(ctx, txHash, apperr.Submission("receipt lookup failed", err), nil, nil)
			return
		}

		select {
		case <-ticker.C:
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				zap.L().Debug("Watch interrupted by shutdown, leaving transaction pending", zap.String("tx_hash", txHash))
				return
			}
			t.fail(ctx, txHash, t.timeoutError(), nil, nil)
			return
		}
	}
}

func (t *Tracker) timeoutError() *apperr.Error {
	return apperr.ConfirmationTimeout(fmt.Sprintf("confirmation timed out after %s", t.confirmationTimeout))
}

var errReverted = errors.New("transaction reverted")

// failureOf maps a watch error to the persisted failure kind and reason.
// Anything that is not a timeout or a lookup error came from a mined receipt.
func failureOf(cause error) (models.FailureKind, string) {
	var e *apperr.Error
	if !errors.As(cause, &e) {
		return models.FailureReverted, cause.Error()
	}
	reason := e.Message
	if e.Err != nil {
		reason += ": " + e.Err.Error()
	}
	switch e.Kind {
	case apperr.KindConfirmationTimeout:
		return models.FailureConfirmationTimeout, reason
	case apperr.KindSubmission:
		return models.FailureReceiptLookup, reason
	}
	return models.FailureReverted, reason
}

// resolve applies a mined receipt to the pending row
func (t *Tracker) resolve(ctx context.Context, txHash string, receipt *types.Receipt) {
	var blockNumber uint64
	if receipt.BlockNumber != nil {
		blockNumber = receipt.BlockNumber.Uint64()
	}
	gasUsed := receipt.GasUsed

	if receipt.Status != types.ReceiptStatusSuccessful {
		t.fail(ctx, txHash, errReverted, &blockNumber, &gasUsed)
		return
	}

	current, err := t.store.GetPending(ctx, txHash)
	if err != nil {
		zap.L().Error("Failed to load pending transaction", zap.String("tx_hash", txHash), zap.Error(err))
		return
	}
	if current.Status != models.TxPending {
		return
	}

	metadata := current.Metadata
	if m, ok := metadata.(models.CampaignCreation); ok {
		m.CampaignAddress = chain.CampaignAddressFromReceipt(receipt, t.topic, t.emitter)
		if m.CampaignAddress == nil {
			zap.L().Warn("No campaign creation event in receipt", zap.String("tx_hash", txHash))
		}
		metadata = m
	}

	confirmed, err := t.store.ConfirmPending(ctx, store.ConfirmParams{
		TxHash:      txHash,
		BlockNumber: blockNumber,
		GasUsed:     gasUsed,
		Metadata:    metadata,
	})
	if errors.Is(err, store.ErrAlreadyFinal) {
		zap.L().Debug("Transaction already final", zap.String("tx_hash", txHash))
		return
	}
	if err != nil {
		zap.L().Error("Failed to confirm transaction", zap.String("tx_hash", txHash), zap.Error(err))
		return
	}

	zap.L().Info("Transaction confirmed",
		zap.String("tx_hash", txHash),
		zap.String("kind", string(confirmed.Kind)),
		zap.Uint64("block_number", blockNumber),
		zap.Uint64("gas_used", gasUsed))
	t.dispatch(ctx, *confirmed)
}

func (t *Tracker) fail(ctx context.Context, txHash string, cause error, blockNumber, gasUsed *uint64) {
	kind, reason := failureOf(cause)
	failed, err := t.store.FailPending(ctx, store.FailParams{
		TxHash:      txHash,
		Reason:      reason,
		Kind:        kind,
		BlockNumber: blockNumber,
		GasUsed:     gasUsed,
	})
	if errors.Is(err, store.ErrAlreadyFinal) {
		zap.L().Debug("Transaction already final", zap.String("tx_hash", txHash))
		return
	}
	if err != nil {
		zap.L().Error("Failed to mark transaction failed", zap.String("tx_hash", txHash), zap.Error(err))
		return
	}

	zap.L().Warn("Transaction failed",
		zap.String("tx_hash", txHash),
		zap.String("kind", string(failed.Kind)),
		zap.String("failure_kind", string(kind)),
		zap.Bool("needs_reconciliation", kind.NeedsReconciliation()),
		zap.String("reason", reason))
	t.dispatch(ctx, *failed)
}

// dispatch runs the handlers for a persisted outcome. Handlers are not cut short by shutdown.
func (t *Tracker) dispatch(ctx context.Context, tx models.PendingTransaction) {
	t.handlersMu.RLock()
	handlers := append([]OutcomeHandler(nil), t.handlers[tx.Kind]...)
	t.handlersMu.RUnlock()

	hctx := context.WithoutCancel(ctx)
	for _, fn := range handlers {
		if err := fn(hctx, tx); err != nil {
			zap.L().Error("Outcome handler failed",
				zap.String("tx_hash", tx.TxHash),
				zap.String("kind", string(tx.Kind)),
				zap.String("status", string(tx.Status)),
				zap.Error(err))
		}
	}
}

// resume queues every PENDING row that is not already being watched
func (t *Tracker) resume(ctx context.Context) (int, error) {
	pending, err := t.store.ListPendingByStatus(ctx, models.TxPending, 0)
	if err != nil {
		return 0, err
	}
	queued := 0
	for _, p := range pending {
		if t.isInFlight(p.TxHash) {
			continue
		}
		if t.enqueue(p.TxHash) {
			queued++
		}
	}
	if queued > 0 {
		zap.L().Info("Resumed pending transactions", zap.Int("queued", queued), zap.Int("pending", len(pending)))
	}
	return queued, nil
}

func (t *Tracker) resumeLoop(ctx context.Context) {
	ticker := time.NewTicker(t.resumeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := t.resume(ctx); err != nil && ctx.Err() == nil {
				zap.L().Error("Resume sweep failed", zap.Error(err))
			}
		case <-t.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// cleanupLoop periodically reclaims terminal rows past retention
func (t *Tracker) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(t.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := t.Reclaim(ctx); err != nil && ctx.Err() == nil {
				zap.L().Error("Reclaim failed", zap.Error(err))
			}
		case <-t.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Reclaim deletes terminal rows finalized before the retention window. Audit entries are kept.
func (t *Tracker) Reclaim(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-t.pendingRetention)
	deleted, err := t.store.DeleteTerminalBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to reclaim terminal transactions: %w", err)
	}
	if deleted > 0 {
		zap.L().Debug("Reclaimed terminal transactions",
			zap.Int64("deleted", deleted),
			zap.Time("cutoff", cutoff))
	}
	return deleted, nil
}
