package audit

import (
	"context"
	"testing"

	"wallet-custody-go/internal/apperr"
	"wallet-custody-go/internal/models"
	"wallet-custody-go/internal/testutil"
	"wallet-custody-go/internal/wallet"

	"github.com/stretchr/testify/require"
)

func TestTrailRecordsLifecycle(t *testing.T) {
	testutil.QuietLogger(t)
	db := testutil.NewStore(t)
	registry := wallet.NewRegistry(db, testutil.NewVault(t))
	trail := NewTrail(db)
	ctx := models.WithPrincipal(context.Background(), "ops@example.com")

	_, err := registry.Import(ctx, wallet.ImportParams{PrivateKey: testutil.KeyA})
	require.NoError(t, err)
	_, err = registry.SetActive(ctx, testutil.AddressA, false)
	require.NoError(t, err)
	_, err = registry.SetActive(ctx, testutil.AddressA, true)
	require.NoError(t, err)
	require.NoError(t, registry.Delete(ctx, testutil.AddressA))

	entries, err := trail.List(ctx, testutil.AddressA, 0, 0)
	require.NoError(t, err)

	actions := make([]models.AuditAction, 0, len(entries))
	for _, e := range entries {
		actions = append(actions, e.Action)
		require.Equal(t, "ops@example.com", e.PerformedBy)
	}
	require.Equal(t, []models.AuditAction{
		models.AuditDeleted,
		models.AuditReactivated,
		models.AuditDeactivated,
		models.AuditCreated,
	}, actions)
}

func TestTrailValidatesInput(t *testing.T) {
	trail := NewTrail(testutil.NewStore(t))

	_, err := trail.List(context.Background(), "nope", 10, 0)
	require.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = trail.List(context.Background(), testutil.AddressA, 10, -1)
	require.True(t, apperr.Is(err, apperr.KindValidation))
}
