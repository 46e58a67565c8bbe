package google

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/nga-flood-trigger/internal/domain"
	"github.com/couchcryptid/nga-flood-trigger/internal/observability"
)

type countingFetcher struct {
	calls int
	rows  []domain.ForecastRow
	err   error
}

func (f *countingFetcher) FetchForecasts(_ context.Context, _ time.Time) ([]domain.ForecastRow, error) {
	f.calls++
	return f.rows, f.err
}

func sampleRows() []domain.ForecastRow {
	return []domain.ForecastRow{{MonitoringDate: testDate, Source: domain.SourceGoogle, Station: testGauge, Value: 1000}}
}

func TestCachedClient_Hit(t *testing.T) {
	inner := &countingFetcher{rows: sampleRows()}
	cached := newCachedClient(inner, 10, observability.NewMetricsForTesting())

	r1, err := cached.FetchForecasts(context.Background(), testDate)
	require.NoError(t, err)
	r2, err := cached.FetchForecasts(context.Background(), testDate.Add(5*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, r1, r2)
	assert.Equal(t, 1, inner.calls, "should only call inner once per date")
	assert.Equal(t, "google", cached.Name())
}

func TestCachedClient_EmptyNotCached(t *testing.T) {
	inner := &countingFetcher{}
	cached := newCachedClient(inner, 10, observability.NewMetricsForTesting())

	_, err := cached.FetchForecasts(context.Background(), testDate)
	require.NoError(t, err)
	_, err = cached.FetchForecasts(context.Background(), testDate)
	require.NoError(t, err)

	assert.Equal(t, 2, inner.calls)
}

func TestCachedClient_ErrorNotCached(t *testing.T) {
	inner := &countingFetcher{err: errors.New("boom")}
	cached := newCachedClient(inner, 10, observability.NewMetricsForTesting())

	_, err := cached.FetchForecasts(context.Background(), testDate)
	require.Error(t, err)

	inner.err = nil
	inner.rows = sampleRows()
	rows, err := cached.FetchForecasts(context.Background(), testDate)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, 2, inner.calls)
}

func TestLRUCache_Eviction(t *testing.T) {
	c := newLRUCache(2)
	c.put("a", sampleRows())
	c.put("b", sampleRows())

	_, ok := c.get("a") // a becomes most recent
	require.True(t, ok)

	c.put("c", sampleRows())
	assert.Equal(t, 2, c.size())

	_, ok = c.get("b")
	assert.False(t, ok, "b should have been evicted")
	_, ok = c.get("a")
	assert.True(t, ok)
	_, ok = c.get("c")
	assert.True(t, ok)
}

func TestLRUCache_UpdateExisting(t *testing.T) {
	c := newLRUCache(2)
	c.put("a", nil)
	c.put("a", sampleRows())

	rows, ok := c.get("a")
	require.True(t, ok)
	assert.Len(t, rows, 1)
	assert.Equal(t, 1, c.size())
}
