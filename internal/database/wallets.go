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

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"wallet-custody-go/internal/models"
	"wallet-custody-go/internal/store"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// CreateWallet stores a new custodial wallet and its CREATED audit entry atomically
func (s *Service) CreateWallet(ctx context.Context, wallet models.CustodialWallet, performedBy string) (*models.CustodialWallet, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx, s.q(queryInsertWallet),
		wallet.Address, wallet.EncryptedKey, wallet.KeySalt, true, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: wallet %s", store.ErrDuplicate, wallet.Address)
		}
		return nil, fmt.Errorf("failed to insert wallet: %w", err)
	}

	if err := s.appendAuditTx(ctx, tx, models.AuditLogEntry{
		WalletAddress: wallet.Address,
		Action:        models.AuditCreated,
		PerformedBy:   performedBy,
	}); err != nil {
		return nil, err
	}

	created, err := s.getWalletTx(ctx, tx, wallet.Address)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	zap.L().Info("Custodial wallet created",
		zap.String("address", wallet.Address),
		zap.String("performed_by", performedBy))
	return created, nil
}

func (s *Service) GetWallet(ctx context.Context, address string) (*models.CustodialWallet, error) {
	var wallet models.CustodialWallet
	err := s.db.GetContext(ctx, &wallet, s.q(queryGetWallet), address)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: wallet %s", store.ErrNotFound, address)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return &wallet, nil
}

func (s *Service) ListWallets(ctx context.Context, activeOnly bool) ([]models.CustodialWallet, error) {
	wallets := []models.CustodialWallet{}
	var err error
	if activeOnly {
		err = s.db.SelectContext(ctx, &wallets, s.q(queryListActiveWallets), true)
	} else {
		err = s.db.SelectContext(ctx, &wallets, s.q(queryListWallets))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list wallets: %w", err)
	}
	return wallets, nil
}

// SetWalletActive flips the active flag. Setting the current value is a no-op with no audit entry.
func (s *Service) SetWalletActive(ctx context.Context, address string, active bool, performedBy string) (*models.CustodialWallet, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	result, err := tx.ExecContext(ctx, s.q(querySetWalletActive), active, time.Now().UTC(), address, active)
	if err != nil {
		return nil, fmt.Errorf("failed to update wallet: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check rows affected: %w", err)
	}

	if rowsAffected > 0 {
		action := models.AuditDeactivated
		if active {
			action = models.AuditReactivated
		}
		if err := s.appendAuditTx(ctx, tx, models.AuditLogEntry{
			WalletAddress: address,
			Action:        action,
			PerformedBy:   performedBy,
		}); err != nil {
			return nil, err
		}
	}

	wallet, err := s.getWalletTx(ctx, tx, address)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	if rowsAffected > 0 {
		zap.L().Info("Custodial wallet activation changed",
			zap.String("address", address),
			zap.Bool("active", active),
			zap.String("performed_by", performedBy))
	}
	return wallet, nil
}

// DeleteWallet appends the DELETED audit entry and removes the row in one transaction.
// Wallets that created campaigns or still have pending transactions are kept.
func (s *Service) DeleteWallet(ctx context.Context, address string, performedBy string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	wallet, err := s.getWalletTx(ctx, tx, address)
	if err != nil {
		return err
	}
	if wallet.CampaignCount > 0 {
		return fmt.Errorf("%w: wallet %s created %d campaigns", store.ErrWalletInUse, address, wallet.CampaignCount)
	}

	var pending int
	if err := tx.GetContext(ctx, &pending, tx.Rebind(queryCountWalletPending), address); err != nil {
		return fmt.Errorf("failed to count pending transactions: %w", err)
	}
	if pending > 0 {
		return fmt.Errorf("%w: wallet %s has %d pending transactions", store.ErrWalletInUse, address, pending)
	}

	if err := s.appendAuditTx(ctx, tx, models.AuditLogEntry{
		WalletAddress: address,
		Action:        models.AuditDeleted,
		PerformedBy:   performedBy,
		Metadata:      models.AuditMetadata{"active": strconv.FormatBool(wallet.Active)},
	}); err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx, s.q(queryDeleteUnusedWallet), address)
	if err != nil {
		return fmt.Errorf("failed to delete wallet: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: wallet %s changed during delete", store.ErrWalletInUse, address)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	zap.L().Info("Custodial wallet deleted",
		zap.String("address", address),
		zap.String("performed_by", performedBy))
	return nil
}

func (s *Service) getWalletTx(ctx context.Context, tx *sqlx.Tx, address string) (*models.CustodialWallet, error) {
	var wallet models.CustodialWallet
	err := tx.GetContext(ctx, &wallet, tx.Rebind(queryGetWallet), address)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: wallet %s", store.ErrNotFound, address)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return &wallet, nil
}

func newId() string {
	return uuid.New().String()
}
