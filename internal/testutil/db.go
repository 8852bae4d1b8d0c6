package testutil

import (
	"context"
	"testing"
	"time"

	"wallet-custody-go/internal/database"
	"wallet-custody-go/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// NewStore opens an isolated in-memory SQLite store that is closed when the test ends.
// A single connection keeps the shared-cache database alive and serializes writers.
func NewStore(t *testing.T) *database.Service {
	t.Helper()

	db, err := database.NewService(context.Background(), models.DatabaseConfig{
		Driver:       database.DriverSQLite,
		DSN:          "file:" + uuid.New().String() + "?mode=memory&cache=shared",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		PingTimeout:  5 * time.Second,
	})
	require.NoError(t, err)

	t.Cleanup(db.Close)
	return db
}

// QuietLogger replaces the global logger with a no-op for the duration of the test
func QuietLogger(t *testing.T) {
	t.Helper()
	restore := zap.ReplaceGlobals(zap.NewNop())
	t.Cleanup(restore)
}
