package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/subscriber-analytics/internal/domain"
)

func TestMonthlyEngagementSeriesZeroFills(t *testing.T) {
	opens := []domain.OpenEvent{
		{Email: "a@x.com", PostID: 1, Timestamp: day(2025, 1, 5)},
		{Email: "a@x.com", PostID: 2, Timestamp: day(2025, 1, 20)}, // same email, same month
		{Email: "b@x.com", PostID: 1, Timestamp: day(2025, 1, 5)},
	}
	delivers := []domain.DeliverEvent{
		{Email: "a@x.com", PostID: 1, Timestamp: day(2025, 1, 5)},
		{Email: "b@x.com", PostID: 1, Timestamp: day(2025, 1, 5)},
		// February has deliveries but no opens: the month must still appear.
		{Email: "a@x.com", PostID: 3, Timestamp: day(2025, 2, 5)},
	}

	got := MonthlyEngagementSeries(opens, delivers)
	require.Len(t, got, 2)

	assert.Equal(t, "2025-01", got[0].Month)
	assert.Equal(t, 2, got[0].Opens) // unique emails, not rows
	assert.Equal(t, 2, got[0].Delivers)
	assert.InDelta(t, 1.0, got[0].OpenRate, 1e-9)

	assert.Equal(t, "2025-02", got[1].Month)
	assert.Zero(t, got[1].Opens)
	assert.Equal(t, 1, got[1].Delivers)
	assert.Zero(t, got[1].OpenRate)
}

func TestMonthlyEngagementSeriesSorted(t *testing.T) {
	opens := []domain.OpenEvent{
		{Email: "a@x.com", PostID: 1, Timestamp: day(2025, 3, 1)},
		{Email: "a@x.com", PostID: 2, Timestamp: day(2024, 11, 1)},
		{Email: "a@x.com", PostID: 3, Timestamp: day(2025, 1, 1)},
	}
	delivers := []domain.DeliverEvent{
		{Email: "a@x.com", PostID: 1, Timestamp: day(2025, 3, 1)},
	}

	got := MonthlyEngagementSeries(opens, delivers)
	require.Len(t, got, 3)
	assert.Equal(t, "2024-11", got[0].Month)
	assert.Equal(t, "2025-01", got[1].Month)
	assert.Equal(t, "2025-03", got[2].Month)
}

func TestActiveRatio30d(t *testing.T) {
	ref := day(2025, 6, 30)
	subs := []domain.Subscriber{
		{Email: "a@x.com", CreatedAt: day(2025, 1, 1)},
		{Email: "b@x.com", CreatedAt: day(2025, 1, 1)},
		{Email: "c@x.com", CreatedAt: day(2025, 1, 1)},
		{Email: "d@x.com", CreatedAt: day(2025, 1, 1)},
	}
	opens := []domain.OpenEvent{
		// Exactly at the cutoff: counts.
		{Email: "a@x.com", PostID: 1, Timestamp: ref.Add(-30 * 24 * time.Hour)},
		{Email: "b@x.com", PostID: 1, Timestamp: day(2025, 6, 20)},
		{Email: "b@x.com", PostID: 2, Timestamp: day(2025, 6, 25)}, // same person twice
		// Too old.
		{Email: "c@x.com", PostID: 1, Timestamp: day(2025, 4, 1)},
		// After the reference instant (future rows in a stale export).
		{Email: "d@x.com", PostID: 1, Timestamp: day(2025, 7, 15)},
	}

	ratio, recent, total := ActiveRatio30d(opens, subs, ref)
	assert.Equal(t, 2, recent)
	assert.Equal(t, 4, total)
	assert.InDelta(t, 0.5, ratio, 1e-9)
}

func TestCumulativeSubscribersMonotonic(t *testing.T) {
	subs := []domain.Subscriber{
		{Email: "a@x.com", CreatedAt: day(2025, 1, 10)},
		{Email: "b@x.com", CreatedAt: day(2025, 1, 20)},
		{Email: "c@x.com", CreatedAt: day(2025, 3, 5)},
	}

	got := CumulativeSubscribers(subs)
	require.Len(t, got, 2)
	assert.Equal(t, MonthCount{Month: "2025-01", Count: 2}, got[0])
	assert.Equal(t, MonthCount{Month: "2025-03", Count: 3}, got[1])
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i].Count, got[i-1].Count)
	}
}

func TestAnalyzeTrends(t *testing.T) {
	ref := day(2025, 6, 30)
	ds := &domain.Dataset{
		Subscribers: []domain.Subscriber{
			{Email: "a@x.com", CreatedAt: day(2025, 1, 1)},
			{Email: "b@x.com", CreatedAt: day(2025, 2, 1)},
		},
		Opens: []domain.OpenEvent{
			{Email: "a@x.com", PostID: 1, Timestamp: day(2025, 6, 20)},
		},
		Delivers: []domain.DeliverEvent{
			{Email: "a@x.com", PostID: 1, Timestamp: day(2025, 6, 20)},
			{Email: "b@x.com", PostID: 1, Timestamp: day(2025, 6, 20)},
		},
	}

	got := AnalyzeTrends(ds, ref)
	assert.Equal(t, 1, got.RecentOpeners)
	assert.Equal(t, 2, got.TotalSubscribers)
	assert.InDelta(t, 0.5, got.ActiveRatio30d, 1e-9)
	assert.Equal(t, "50.0%", got.ActiveRatio30dPct)
	assert.NotEmpty(t, got.MonthlyEngagement)
	assert.NotEmpty(t, got.CumulativeSubscribers)
}

func TestAnalyzeTrendsNoEngagementData(t *testing.T) {
	ds := &domain.Dataset{
		Subscribers: []domain.Subscriber{{Email: "a@x.com", CreatedAt: day(2025, 1, 1)}},
	}

	got := AnalyzeTrends(ds, day(2025, 6, 30))
	assert.Equal(t, "No engagement data available", got.Summary)
	assert.Equal(t, 1, got.TotalSubscribers)
	assert.Empty(t, got.MonthlyEngagement)
}
