package dashboard_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OmniLens/OmniLens-sub000/pkg/dashboard"
)

// fakeClock is a manually advanced clock for TTL tests.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestReportCache_GetSet(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
	cache := dashboard.NewReportCache(10*time.Minute, clock.Now)

	key := dashboard.UsageKey("acme-widget", dashboard.DateRange{
		Start: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 3, 14, 23, 59, 59, 0, time.UTC),
	})
	assert.Equal(t, "acme-widget|2026-03-01|2026-03-14", key)

	_, ok := cache.Get(key)
	assert.False(t, ok, "empty cache must miss")

	report := dashboard.UsageReport{
		Summary: dashboard.UsageSummary{TotalMinutes: 42},
	}
	cache.Set(key, report)

	got, ok := cache.Get(key)
	require.True(t, ok)
	assert.Equal(t, report, got)

	// Just inside the TTL still hits.
	clock.Advance(10 * time.Minute)

	_, ok = cache.Get(key)
	assert.True(t, ok)

	// Past the TTL the entry lazily expires on access.
	clock.Advance(time.Second)

	_, ok = cache.Get(key)
	assert.False(t, ok)
	assert.Zero(t, cache.Len(), "expired entry is removed on access")
}

func TestReportCache_SetRefreshesTTL(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
	cache := dashboard.NewReportCache(10*time.Minute, clock.Now)

	cache.Set("k", dashboard.UsageReport{})
	clock.Advance(8 * time.Minute)
	cache.Set("k", dashboard.UsageReport{})
	clock.Advance(8 * time.Minute)

	_, ok := cache.Get("k")
	assert.True(t, ok, "second Set must restart the TTL")
}

func TestReportCache_EvictExpired(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
	cache := dashboard.NewReportCache(time.Minute, clock.Now)

	cache.Set("a", dashboard.UsageReport{})
	cache.Set("b", dashboard.UsageReport{})
	clock.Advance(2 * time.Minute)
	cache.Set("c", dashboard.UsageReport{})

	assert.Equal(t, 2, cache.EvictExpired())
	assert.Equal(t, 1, cache.Len())

	_, ok := cache.Get("c")
	assert.True(t, ok)
}

func TestReportCache_Defaults(t *testing.T) {
	// Nil clock and non-positive TTL fall back to sane defaults.
	cache := dashboard.NewReportCache(0, nil)

	cache.Set("k", dashboard.UsageReport{})

	_, ok := cache.Get("k")
	assert.True(t, ok)
}
