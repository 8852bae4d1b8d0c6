package wallet

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"wallet-custody-go/internal/apperr"
	"wallet-custody-go/internal/models"
	"wallet-custody-go/internal/testutil"

	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) (*Registry, context.Context) {
	testutil.QuietLogger(t)
	db := testutil.NewStore(t)
	ctx := models.WithPrincipal(context.Background(), "ops@example.com")
	return NewRegistry(db, testutil.NewVault(t)), ctx
}

func TestImportAndList(t *testing.T) {
	r, ctx := newTestRegistry(t)

	summary, err := r.Import(ctx, ImportParams{PrivateKey: "0x" + testutil.KeyA})
	require.NoError(t, err)
	require.Equal(t, testutil.AddressA, summary.Address)
	require.True(t, summary.Active)

	list, err := r.List(ctx, false)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, testutil.AddressA, list[0].Address)

	raw, err := json.Marshal(list)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "encrypted")
	require.NotContains(t, string(raw), "salt")
	require.NotContains(t, string(raw), testutil.KeyA)
}

func TestImportRejectsDuplicate(t *testing.T) {
	r, ctx := newTestRegistry(t)

	_, err := r.Import(ctx, ImportParams{PrivateKey: testutil.KeyA})
	require.NoError(t, err)

	_, err = r.Import(ctx, ImportParams{PrivateKey: "0x" + testutil.KeyA})
	require.True(t, apperr.Is(err, apperr.KindConflict), "got %v", err)
}

func TestImportRejectsAddressMismatch(t *testing.T) {
	r, ctx := newTestRegistry(t)

	_, err := r.Import(ctx, ImportParams{PrivateKey: testutil.KeyA, ExpectedAddress: testutil.AddressB})
	require.True(t, apperr.Is(err, apperr.KindValidation), "got %v", err)
	require.Contains(t, err.Error(), testutil.AddressA)

	// The same pairing is accepted once the key matches
	_, err = r.Import(ctx, ImportParams{PrivateKey: testutil.KeyB, ExpectedAddress: testutil.AddressB})
	require.NoError(t, err)
	require.NoError(t, r.Delete(ctx, testutil.AddressB))

	_, err = r.Import(ctx, ImportParams{PrivateKey: "1234"})
	require.True(t, apperr.Is(err, apperr.KindValidation), "got %v", err)

	list, err := r.List(ctx, false)
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestSignerRoundTrip(t *testing.T) {
	r, ctx := newTestRegistry(t)
	_, err := r.Import(ctx, ImportParams{PrivateKey: testutil.KeyB, ExpectedAddress: testutil.AddressB})
	require.NoError(t, err)

	signer, err := r.Signer(ctx, "0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	require.NoError(t, err)
	require.Equal(t, testutil.AddressB, strings.ToLower(signer.Address.Hex()))
	require.True(t, signer.Active)

	_, err = r.Signer(ctx, testutil.AddressA)
	require.True(t, apperr.Is(err, apperr.KindNotFound), "got %v", err)
}

func TestSetActiveAndDelete(t *testing.T) {
	r, ctx := newTestRegistry(t)
	_, err := r.Import(ctx, ImportParams{PrivateKey: testutil.KeyA})
	require.NoError(t, err)

	summary, err := r.SetActive(ctx, testutil.AddressA, false)
	require.NoError(t, err)
	require.False(t, summary.Active)

	active, err := r.List(ctx, true)
	require.NoError(t, err)
	require.Empty(t, active)

	require.NoError(t, r.Delete(ctx, testutil.AddressA))

	_, err = r.Get(ctx, testutil.AddressA)
	require.True(t, apperr.Is(err, apperr.KindNotFound), "got %v", err)

	err = r.Delete(ctx, testutil.AddressA)
	require.True(t, apperr.Is(err, apperr.KindNotFound), "got %v", err)

	err = r.Delete(ctx, "garbage")
	require.True(t, apperr.Is(err, apperr.KindValidation), "got %v", err)
}
