package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/subscriber-analytics/internal/domain"
)

func TestAttributeConversionsWindow(t *testing.T) {
	converted := day(2025, 4, 10)
	ds := &domain.Dataset{
		Subscribers: []domain.Subscriber{
			{Email: "buyer@x.com", CreatedAt: day(2025, 1, 1), FirstPaymentAt: &converted},
		},
		Posts: []domain.Post{
			{PostID: 1, Title: "In window", PostDate: day(2025, 4, 6)},
			{PostID: 2, Title: "Too early", PostDate: day(2025, 4, 1)},
			{PostID: 3, Title: "After payment", PostDate: day(2025, 4, 12)},
		},
		Opens: []domain.OpenEvent{
			// 4 days before the conversion: inside the 7-day window.
			{Email: "buyer@x.com", PostID: 1, Timestamp: day(2025, 4, 6)},
			// 8 days before: outside.
			{Email: "buyer@x.com", PostID: 2, Timestamp: day(2025, 4, 2)},
			// 2 days after the payment: outside.
			{Email: "buyer@x.com", PostID: 3, Timestamp: day(2025, 4, 12)},
		},
		Delivers: []domain.DeliverEvent{
			{Email: "buyer@x.com", PostID: 1, Timestamp: day(2025, 4, 6)},
			{Email: "other@x.com", PostID: 1, Timestamp: day(2025, 4, 6)},
		},
	}

	got := AttributeConversions(ds, 0)
	require.Len(t, got.Posts, 1)
	assert.Equal(t, int64(1), got.Posts[0].PostID)
	assert.Equal(t, 1, got.Posts[0].Conversions)
	assert.Equal(t, 2, got.Posts[0].Delivered)
	require.NotNil(t, got.Posts[0].ConversionRate)
	assert.InDelta(t, 50.0, *got.Posts[0].ConversionRate, 1e-9)
	assert.Equal(t, "In window", got.TopConverter)
	assert.Equal(t, 1, got.TotalConversionsTracked)
}

func TestAttributeConversionsWindowEndpointsInclusive(t *testing.T) {
	converted := day(2025, 4, 10)
	ds := &domain.Dataset{
		Subscribers: []domain.Subscriber{
			{Email: "buyer@x.com", CreatedAt: day(2025, 1, 1), FirstPaymentAt: &converted},
		},
		Opens: []domain.OpenEvent{
			{Email: "buyer@x.com", PostID: 1, Timestamp: converted.Add(-7 * 24 * time.Hour)},
			{Email: "buyer@x.com", PostID: 2, Timestamp: converted},
		},
	}

	got := AttributeConversions(ds, 7)
	assert.Equal(t, 2, got.PostsWithAttribution)
}

func TestAttributeConversionsCapsPerSubscriberPost(t *testing.T) {
	converted := day(2025, 4, 10)
	ds := &domain.Dataset{
		Subscribers: []domain.Subscriber{
			{Email: "buyer@x.com", CreatedAt: day(2025, 1, 1), FirstPaymentAt: &converted},
		},
		Opens: []domain.OpenEvent{
			{Email: "buyer@x.com", PostID: 1, Timestamp: day(2025, 4, 8)},
			{Email: "buyer@x.com", PostID: 1, Timestamp: day(2025, 4, 9)},
			{Email: "buyer@x.com", PostID: 1, Timestamp: day(2025, 4, 10)},
		},
	}

	got := AttributeConversions(ds, 0)
	require.Len(t, got.Posts, 1)
	assert.Equal(t, 1, got.Posts[0].Conversions)
}

func TestAttributeConversionsNilRateWhenUndelivered(t *testing.T) {
	converted := day(2025, 4, 10)
	ds := &domain.Dataset{
		Subscribers: []domain.Subscriber{
			{Email: "buyer@x.com", CreatedAt: day(2025, 1, 1), FirstPaymentAt: &converted},
		},
		Opens: []domain.OpenEvent{
			{Email: "buyer@x.com", PostID: 9, Timestamp: day(2025, 4, 9)},
		},
	}

	got := AttributeConversions(ds, 0)
	require.Len(t, got.Posts, 1)
	assert.Nil(t, got.Posts[0].ConversionRate)
	// Missing post metadata keeps the ID with an empty title.
	assert.Equal(t, int64(9), got.Posts[0].PostID)
	assert.Empty(t, got.Posts[0].Title)
}

func TestAttributeConversionsDeterministicOrder(t *testing.T) {
	converted := day(2025, 4, 10)
	ds := &domain.Dataset{
		Subscribers: []domain.Subscriber{
			{Email: "a@x.com", CreatedAt: day(2025, 1, 1), FirstPaymentAt: &converted},
			{Email: "b@x.com", CreatedAt: day(2025, 1, 1), FirstPaymentAt: &converted},
		},
		Opens: []domain.OpenEvent{
			{Email: "a@x.com", PostID: 5, Timestamp: day(2025, 4, 9)},
			{Email: "b@x.com", PostID: 5, Timestamp: day(2025, 4, 9)},
			{Email: "a@x.com", PostID: 3, Timestamp: day(2025, 4, 9)},
			{Email: "a@x.com", PostID: 2, Timestamp: day(2025, 4, 9)},
		},
	}

	got := AttributeConversions(ds, 0)
	require.Len(t, got.Posts, 3)
	assert.Equal(t, int64(5), got.Posts[0].PostID) // 2 conversions first
	assert.Equal(t, int64(2), got.Posts[1].PostID) // ties break by post id
	assert.Equal(t, int64(3), got.Posts[2].PostID)
}

func TestAttributeConversionsEmptySentinels(t *testing.T) {
	got := AttributeConversions(&domain.Dataset{}, 0)
	assert.Equal(t, "No paid subscribers or engagement data available", got.Summary)
	assert.Empty(t, got.Posts)

	converted := day(2025, 4, 10)
	ds := &domain.Dataset{
		Subscribers: []domain.Subscriber{
			{Email: "buyer@x.com", CreatedAt: day(2025, 1, 1), FirstPaymentAt: &converted},
		},
		Opens: []domain.OpenEvent{
			// Only open is far outside the window.
			{Email: "buyer@x.com", PostID: 1, Timestamp: day(2025, 1, 5)},
		},
	}
	got = AttributeConversions(ds, 0)
	assert.Equal(t, "No posts found in conversion windows", got.Summary)
	assert.Equal(t, 1, got.TotalConversionsTracked)
}

func TestEngagementScore(t *testing.T) {
	assert.Zero(t, EngagementScore(0.5, 0))
	// Same rate, bigger reach scores higher.
	assert.Greater(t, EngagementScore(0.4, 1000), EngagementScore(0.4, 100))
	// Higher rate wins at equal reach.
	assert.Greater(t, EngagementScore(0.5, 100), EngagementScore(0.4, 100))
}

func TestAnalyzeEngagementPerformerSplit(t *testing.T) {
	ts := day(2025, 3, 1)
	posts := []domain.Post{
		{PostID: 1, Title: "Hot", PostDate: ts},
		{PostID: 2, Title: "Mid", PostDate: ts},
		{PostID: 3, Title: "Cold", PostDate: ts},
		{PostID: 4, Title: "Tiny sample", PostDate: ts},
	}

	var opens []domain.OpenEvent
	var delivers []domain.DeliverEvent
	addPost := func(postID int64, delivered, opened int) {
		for i := 0; i < delivered; i++ {
			email := string(rune('a'+i%26)) + string(rune('a'+i/26)) + "@x.com"
			delivers = append(delivers, domain.DeliverEvent{Email: email, PostID: postID, Timestamp: ts})
			if i < opened {
				opens = append(opens, domain.OpenEvent{Email: email, PostID: postID, Timestamp: ts})
			}
		}
	}
	addPost(1, 100, 60) // 60%
	addPost(2, 100, 40) // 40%
	addPost(3, 100, 10) // 10%, below 70% of the 36.7% average
	addPost(4, 5, 5)    // 100% but only 5 delivered: not significant

	got := AnalyzeEngagement(posts, opens, delivers, 0)
	require.Len(t, got.AllPosts, 4)
	assert.Equal(t, int64(4), got.AllPosts[0].PostID) // ranked by raw open rate
	require.Len(t, got.SignificantPosts, 3)

	require.Len(t, got.TopPerformers, 2)
	assert.Equal(t, int64(1), got.TopPerformers[0].PostID)
	assert.Equal(t, int64(2), got.TopPerformers[1].PostID)
	require.Len(t, got.LowPerformers, 1)
	assert.Equal(t, int64(3), got.LowPerformers[0].PostID)
}

func TestAnalyzeEngagementNoSignificantPosts(t *testing.T) {
	ts := day(2025, 3, 1)
	posts := []domain.Post{{PostID: 1, Title: "Small", PostDate: ts}}
	delivers := []domain.DeliverEvent{{Email: "a@x.com", PostID: 1, Timestamp: ts}}

	got := AnalyzeEngagement(posts, nil, delivers, 0)
	assert.Len(t, got.AllPosts, 1)
	assert.Empty(t, got.SignificantPosts)
	assert.Zero(t, got.AvgOpenRate)
	assert.Empty(t, got.TopPerformers)
}
