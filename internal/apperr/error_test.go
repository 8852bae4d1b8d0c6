package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestKindOfWrapped(t *testing.T) {
	base := NotFound("wallet 0xabc not found")
	wrapped := fmt.Errorf("resolve signer: %w", base)

	require.Equal(t, KindNotFound, KindOf(wrapped))
	require.True(t, Is(wrapped, KindNotFound))
	require.False(t, Is(wrapped, KindConflict))
}

func TestKindOfUnclassified(t *testing.T) {
	require.Equal(t, KindInternal, KindOf(errors.New("boom")))
	require.False(t, Is(nil, KindInternal))
}

func TestErrorMessageIncludesCause(t *testing.T) {
	err := Submission("broadcast failed", errors.New("nonce too low"))
	require.Equal(t, "[SUBMISSION] broadcast failed: nonce too low", err.Error())
	require.EqualError(t, errors.Unwrap(err), "nonce too low")
}

func TestJSONCarriesMinimumHint(t *testing.T) {
	err := Conversion("amount too small", WithMinimumUSD(decimal.RequireFromString("1.5")))
	body := err.JSON()["error"].(map[string]any)

	require.Equal(t, KindConversion, body["kind"])
	require.Equal(t, "1.50", body["minimum_usd"])
}
