package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"

	"wallet-custody-go/internal/apperr"
	"wallet-custody-go/internal/chain"
	"wallet-custody-go/internal/keyvault"
	"wallet-custody-go/internal/models"
	"wallet-custody-go/internal/store"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Registry manages the custodial wallet lifecycle
type Registry struct {
	store store.WalletStore
	vault *keyvault.Vault
}

func NewRegistry(s store.WalletStore, vault *keyvault.Vault) *Registry {
	return &Registry{store: s, vault: vault}
}

// ImportParams contains the parameters for importing a custodial wallet
type ImportParams struct {
	PrivateKey string
	// ExpectedAddress, when set, must match the address derived from PrivateKey
	ExpectedAddress string
}

// Signer is a decrypted wallet key ready for signing
type Signer struct {
	Address common.Address
	Key     *ecdsa.PrivateKey
	Active  bool
}

func (r *Registry) Import(ctx context.Context, params ImportParams) (*models.WalletSummary, error) {
	key, err := keyvault.ValidatePrivateKey(params.PrivateKey)
	if err != nil {
		return nil, err
	}
	address := keyvault.DeriveAddress(key)

	if params.ExpectedAddress != "" {
		_, expected, err := chain.ParseAddress(params.ExpectedAddress)
		if err != nil {
			return nil, apperr.Validation(err.Error())
		}
		if expected != address {
			return nil, apperr.Validation(fmt.Sprintf("private key controls %s, not %s", address, expected))
		}
	}

	sealed, err := r.vault.Encrypt(key)
	if err != nil {
		return nil, apperr.Internal("failed to encrypt private key", err)
	}

	// The stored ciphertext must decrypt back to the same address before it is persisted
	check, err := r.vault.Decrypt(sealed)
	if err != nil || keyvault.DeriveAddress(check) != address {
		return nil, apperr.Internal("encrypted key failed round-trip verification", err)
	}

	created, err := r.store.CreateWallet(ctx, models.CustodialWallet{
		Address:      address,
		EncryptedKey: sealed.Ciphertext,
		KeySalt:      sealed.Salt,
	}, models.PrincipalFrom(ctx))
	if err != nil {
		return nil, mapStoreError(err, address)
	}

	zap.L().Info("Custodial wallet imported", zap.String("address", address))
	summary := created.Summary()
	return &summary, nil
}

func (r *Registry) List(ctx context.Context, activeOnly bool) ([]models.WalletSummary, error) {
	wallets, err := r.store.ListWallets(ctx, activeOnly)
	if err != nil {
		return nil, apperr.Internal("failed to list wallets", err)
	}
	summaries := make([]models.WalletSummary, 0, len(wallets))
	for _, w := range wallets {
		summaries = append(summaries, w.Summary())
	}
	return summaries, nil
}

func (r *Registry) Get(ctx context.Context, address string) (*models.WalletSummary, error) {
	wallet, err := r.load(ctx, address)
	if err != nil {
		return nil, err
	}
	summary := wallet.Summary()
	return &summary, nil
}

func (r *Registry) SetActive(ctx context.Context, address string, active bool) (*models.WalletSummary, error) {
	normalized, err := normalize(address)
	if err != nil {
		return nil, err
	}
	wallet, err := r.store.SetWalletActive(ctx, normalized, active, models.PrincipalFrom(ctx))
	if err != nil {
		return nil, mapStoreError(err, normalized)
	}
	summary := wallet.Summary()
	return &summary, nil
}

func (r *Registry) Delete(ctx context.Context, address string) error {
	normalized, err := normalize(address)
	if err != nil {
		return err
	}
	if err := r.store.DeleteWallet(ctx, normalized, models.PrincipalFrom(ctx)); err != nil {
		return mapStoreError(err, normalized)
	}
	return nil
}

// Signer resolves and decrypts the wallet key. The caller decides whether an inactive wallet may sign.
func (r *Registry) Signer(ctx context.Context, address string) (*Signer, error) {
	wallet, err := r.load(ctx, address)
	if err != nil {
		return nil, err
	}

	key, err := r.vault.Decrypt(keyvault.Sealed{Ciphertext: wallet.EncryptedKey, Salt: wallet.KeySalt})
	if err != nil {
		zap.L().Error("Failed to decrypt custodial wallet key", zap.String("address", wallet.Address), zap.Error(err))
		return nil, apperr.Internal("failed to decrypt wallet key", err)
	}
	if keyvault.DeriveAddress(key) != wallet.Address {
		return nil, apperr.Internal("decrypted key does not match wallet address", nil)
	}

	return &Signer{
		Address: common.HexToAddress(wallet.Address),
		Key:     key,
		Active:  wallet.Active,
	}, nil
}

func (r *Registry) load(ctx context.Context, address string) (*models.CustodialWallet, error) {
	normalized, err := normalize(address)
	if err != nil {
		return nil, err
	}
	wallet, err := r.store.GetWallet(ctx, normalized)
	if err != nil {
		return nil, mapStoreError(err, normalized)
	}
	return wallet, nil
}

func normalize(address string) (string, error) {
	_, lower, err := chain.ParseAddress(address)
	if err != nil {
		return "", apperr.Validation(err.Error())
	}
	return lower, nil
}

func mapStoreError(err error, address string) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return apperr.NotFound(fmt.Sprintf("wallet %s not found", address))
	case errors.Is(err, store.ErrDuplicate):
		return apperr.Conflict(fmt.Sprintf("wallet %s already exists", address))
	case errors.Is(err, store.ErrWalletInUse):
		return apperr.Conflict(fmt.Sprintf("wallet %s has campaigns or pending transactions and cannot be deleted", address))
	default:
		return apperr.Internal("wallet store failure", err)
	}
}
