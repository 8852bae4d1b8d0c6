package testutil

import (
	"testing"

	"wallet-custody-go/internal/keyvault"

	"github.com/stretchr/testify/require"
)

// Development keys with publicly known addresses. Never fund them outside a local chain.
const (
	KeyA     = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	AddressA = "0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266"
	KeyB     = "59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d"
	AddressB = "0x70997970c51812dc3a010c7d01b50e0d17dc79c8"

	MasterSecret = "test-master-secret-0123456789abcdef"
)

// NewVault returns a vault with a cheap key-derivation cost
func NewVault(t *testing.T) *keyvault.Vault {
	t.Helper()
	v, err := keyvault.New(MasterSecret, keyvault.WithScryptCost(1<<10))
	require.NoError(t, err)
	return v
}
