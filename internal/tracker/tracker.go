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
	"strings"
	"sync"
	"time"

	"wallet-custody-go/internal/apperr"
	"wallet-custody-go/internal/chain"
	"wallet-custody-go/internal/models"
	"wallet-custody-go/internal/store"
	"wallet-custody-go/internal/submitter"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultConfirmationTimeout = 2 * time.Minute
	defaultPollInterval        = 2 * time.Second
	defaultWorkers             = 4
	defaultQueueSize           = 256
	defaultResumeInterval      = 30 * time.Second
	defaultPendingRetention    = 7 * 24 * time.Hour
	defaultCleanupInterval     = time.Hour
)

// Config contains configuration for Tracker
type Config struct {
	Store     store.PendingStore
	Backend   chain.Backend
	Contracts *chain.Contracts
	Settings  models.WatcherConfig
}

// OutcomeHandler is called once a transaction of the registered kind has reached a terminal status
type OutcomeHandler func(ctx context.Context, tx models.PendingTransaction) error

// TrackParams describes a broadcast transaction to be recorded and watched
type TrackParams struct {
	Submission *submitter.Submission
	Metadata   models.TxMetadata
}

// Tracker records submitted transactions and watches them until they confirm or fail
type Tracker struct {
	store   store.PendingStore
	backend chain.Backend
	topic   common.Hash
	emitter common.Address

	confirmationTimeout time.Duration
	pollInterval        time.Duration
	workers             int
	resumeInterval      time.Duration
	pendingRetention    time.Duration
	cleanupInterval     time.Duration

	jobs chan string

	// Hashes queued or being watched
	inFlight map[string]time.Time
	mutex    sync.Mutex

	handlers   map[models.TxKind][]OutcomeHandler
	handlersMu sync.RWMutex

	// Control
	stopChan chan struct{}
	stopOnce sync.Once
	cancel   context.CancelFunc
	group    *errgroup.Group
}

// New creates a tracker. Zero settings fall back to defaults.
func New(cfg Config) *Tracker {
	s := cfg.Settings
	t := &Tracker{
		store:               cfg.Store,
		backend:             cfg.Backend,
		confirmationTimeout: orDuration(s.ConfirmationTimeout, defaultConfirmationTimeout),
		pollInterval:        orDuration(s.PollInterval, defaultPollInterval),
		workers:             orInt(s.Workers, defaultWorkers),
		resumeInterval:      orDuration(s.ResumeInterval, defaultResumeInterval),
		pendingRetention:    orDuration(s.PendingRetention, defaultPendingRetention),
		cleanupInterval:     orDuration(s.CleanupInterval, defaultCleanupInterval),
		jobs:                make(chan string, orInt(s.QueueSize, defaultQueueSize)),
		inFlight:            make(map[string]time.Time),
		handlers:            make(map[models.TxKind][]OutcomeHandler),
		stopChan:            make(chan struct{}),
	}
	if cfg.Contracts != nil {
		t.topic = cfg.Contracts.CampaignCreatedTopic
		t.emitter = cfg.Contracts.Factory
	}
	return t
}

// OnOutcome registers fn for terminal outcomes of kind. Register before Start.
func (t *Tracker) OnOutcome(kind models.TxKind, fn OutcomeHandler) {
	t.handlersMu.Lock()
	defer t.handlersMu.Unlock()
	t.handlers[kind] = append(t.handlers[kind], fn)
}

// Track writes the PENDING row with its TRANSACTION_SIGNED audit entry and queues the hash for watching.
// It never waits for confirmation.
func (t *Tracker) Track(ctx context.Context, params TrackParams) (*models.Acceptance, error) {
	if params.Submission == nil || params.Metadata == nil {
		return nil, apperr.Internal("submission and metadata are required", nil)
	}
	sub := params.Submission

	pending, err := t.store.CreatePending(ctx, store.CreatePendingParams{
		TxHash:        sub.TxHash,
		WalletAddress: sub.Wallet,
		Metadata:      params.Metadata,
		PerformedBy:   models.PrincipalFrom(ctx),
	})
	if err != nil {
		// The transaction is already on the wire; only an operator can reconcile it now
		zap.L().Error("Failed to record broadcast transaction",
			zap.String("tx_hash", sub.TxHash),
			zap.String("wallet", sub.Wallet),
			zap.String("kind", string(params.Metadata.Kind())),
			zap.Error(err))
		return nil, apperr.Internal("transaction was broadcast but could not be recorded", err)
	}

	t.enqueue(pending.TxHash)

	return &models.Acceptance{TxHash: pending.TxHash, PendingId: pending.Id}, nil
}

// Status returns the current state of a tracked transaction
func (t *Tracker) Status(ctx context.Context, txHash string) (*models.TransactionStatus, error) {
	hash, err := normalizeHash(txHash)
	if err != nil {
		return nil, err
	}
	pending, err := t.store.GetPending(ctx, hash)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound(fmt.Sprintf("transaction %s not found", hash))
	}
	if err != nil {
		return nil, apperr.Internal("failed to load transaction", err)
	}
	view := pending.View()
	return &view, nil
}

// enqueue hands a hash to the workers without blocking. A full queue leaves the row for the resume sweep.
func (t *Tracker) enqueue(txHash string) bool {
	t.mutex.Lock()
	if _, ok := t.inFlight[txHash]; ok {
		t.mutex.Unlock()
		return false
	}
	t.inFlight[txHash] = time.Now()
	t.mutex.Unlock()

	select {
	case t.jobs <- txHash:
		return true
	default:
		t.release(txHash)
		zap.L().Warn("Watch queue full, deferring to resume sweep", zap.String("tx_hash", txHash))
		return false
	}
}

func (t *Tracker) release(txHash string) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	delete(t.inFlight, txHash)
}

func (t *Tracker) isInFlight(txHash string) bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	_, ok := t.inFlight[txHash]
	return ok
}

func normalizeHash(txHash string) (string, error) {
	h := strings.ToLower(strings.TrimSpace(txHash))
	if len(h) != 66 || !strings.HasPrefix(h, "0x") {
		return "", apperr.Validation(fmt.Sprintf("invalid transaction hash %q", txHash))
	}
	for _, c := range h[2:] {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return "", apperr.Validation(fmt.Sprintf("invalid transaction hash %q", txHash))
		}
	}
	return h, nil
}

func orDuration(v, def time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return def
}

func orInt(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
