package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/subscriber-analytics/internal/analytics"
	"github.com/ignite/subscriber-analytics/internal/domain"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sampleAnalysis(t *testing.T) *analytics.Analysis {
	t.Helper()

	paid := day(2025, 4, 10)
	ts := day(2025, 3, 1)

	var opens []domain.OpenEvent
	var delivers []domain.DeliverEvent
	for i := 0; i < 60; i++ {
		email := string(rune('a'+i%26)) + string(rune('a'+i/26)) + "@x.com"
		delivers = append(delivers, domain.DeliverEvent{Email: email, PostID: 1, Timestamp: ts})
		if i < 30 {
			opens = append(opens, domain.OpenEvent{Email: email, PostID: 1, Timestamp: ts})
		}
	}
	// Credit the conversion to post 1.
	opens = append(opens, domain.OpenEvent{Email: "buyer@x.com", PostID: 1, Timestamp: day(2025, 4, 8)})

	ds := &domain.Dataset{
		Subscribers: []domain.Subscriber{
			{Email: "buyer@x.com", CreatedAt: day(2025, 1, 1), FirstPaymentAt: &paid, ActiveSubscription: true, Plan: domain.PlanMonthly},
			{Email: "free@x.com", CreatedAt: day(2025, 6, 1), Plan: domain.PlanFree},
		},
		Posts: []domain.Post{
			{PostID: 1, Title: "The Big Feature Story", PostDate: ts, Audience: domain.AudienceAll},
		},
		Opens:    opens,
		Delivers: delivers,
	}
	return analytics.Run(ds, day(2025, 7, 1), analytics.Options{})
}

func TestRender(t *testing.T) {
	gen, err := NewGenerator()
	require.NoError(t, err)

	out, err := gen.Render(sampleAnalysis(t))
	require.NoError(t, err)

	assert.Contains(t, out, "# Newsletter Analytics Report")
	assert.Contains(t, out, "## 1. Metrics Baseline")
	assert.Contains(t, out, "The Big Feature Story")
	assert.Contains(t, out, "## Recommendations")
	assert.Contains(t, out, "*Generated: July 1, 2025*")
	// The template must never leak unresolved tags.
	assert.NotContains(t, out, "{{")
	assert.NotContains(t, out, "{%")
}

func TestRecommendationsThresholds(t *testing.T) {
	a := sampleAnalysis(t)

	a.Metrics.OpenRate.Value = 0.25
	a.Metrics.ConversionRate.Value = 0.01
	a.Metrics.ListGrowth1Mo.Value = 0.01
	recs := Recommendations(a)
	require.GreaterOrEqual(t, len(recs), 3)
	assert.Contains(t, recs[0], "A/B testing subject lines")
	assert.Contains(t, recs[1], "room to improve")
	assert.Contains(t, recs[2], "cross-promotion")

	a.Metrics.OpenRate.Value = 0.40
	a.Metrics.ConversionRate.Value = 0.05
	a.Metrics.ListGrowth1Mo.Value = 0.03
	recs = Recommendations(a)
	assert.Contains(t, recs[0], "Keep doing what you're doing")
	assert.Contains(t, recs[1], "performing well")
	assert.Contains(t, recs[2], "Focus on retention")
}

func TestRecommendationsTopContent(t *testing.T) {
	a := sampleAnalysis(t)
	a.Engagement.TopPerformers = []analytics.PostEngagement{
		{Title: "A very long post title that keeps going and going until it exceeds sixty characters"},
	}

	recs := Recommendations(a)
	last := recs[len(recs)-1]
	assert.Contains(t, last, "Top Performing Content")
	assert.Contains(t, last, "...")
}
