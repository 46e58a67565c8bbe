//go:build google

package google

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/nga-flood-trigger/internal/domain"
	"github.com/couchcryptid/nga-flood-trigger/internal/observability"
)

// These tests hit the real Flood Forecasting API and require GOOGLE_API_KEY.
// Run with: go test -tags=google ./internal/adapter/google/ -v -count=1

func smokeClient(t *testing.T) *Client {
	t.Helper()
	key := os.Getenv("GOOGLE_API_KEY")
	if key == "" {
		t.Fatal("GOOGLE_API_KEY must be set to run smoke tests")
	}
	return NewClient(key, testGauge, 20*time.Second, observability.NewMetricsForTesting(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSmoke_FetchForecasts(t *testing.T) {
	c := smokeClient(t)

	rows, err := c.FetchForecasts(context.Background(), time.Now().UTC().AddDate(0, 0, -1))
	require.NoError(t, err)
	for _, r := range rows {
		assert.Equal(t, domain.SourceGoogle, r.Source)
		assert.False(t, r.IssuedTime.IsZero())
	}
}
