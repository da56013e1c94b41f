package analytics

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/ignite/subscriber-analytics/internal/domain"
)

// DefaultAttributionWindowDays is the trailing window before a conversion
// within which an open is credited toward that conversion.
const DefaultAttributionWindowDays = 7

// MinSignificantDelivered is the minimum delivery count for a post to
// qualify for benchmark comparison (top/low performer classification).
const MinSignificantDelivered = 50

// PostConversion is one row of the conversion attribution table.
type PostConversion struct {
	PostID   int64           `json:"post_id"`
	Title    string          `json:"title"`
	PostDate time.Time       `json:"post_date"`
	Audience domain.Audience `json:"audience"`
	// Conversions is the count of distinct subscribers who opened this post
	// within their conversion window. Each (subscriber, post) pair counts
	// at most once regardless of re-opens.
	Conversions int `json:"conversions"`
	Delivered   int `json:"delivered"`
	// ConversionRate is conversions/delivered as a percentage, rounded to
	// two decimals. Nil when the post has no recorded deliveries; callers
	// must guard before display.
	ConversionRate *float64 `json:"conversion_rate,omitempty"`
}

// ConversionAttribution is the result of AttributeConversions.
type ConversionAttribution struct {
	Posts                   []PostConversion `json:"conversion_posts"`
	TotalConversionsTracked int              `json:"total_conversions_tracked"`
	PostsWithAttribution    int              `json:"posts_with_attribution"`
	TopConverter            string           `json:"top_converter,omitempty"`
	Summary                 string           `json:"summary"`
}

// AttributeConversions credits paid conversions to the posts each
// subscriber opened in the trailing window before their first payment
// (inclusive on both ends). windowDays <= 0 uses the default of 7.
//
// Posts never delivered carry a nil conversion rate. The result is sorted
// by conversions descending, then post_id ascending for determinism.
func AttributeConversions(ds *domain.Dataset, windowDays int) *ConversionAttribution {
	if windowDays <= 0 {
		windowDays = DefaultAttributionWindowDays
	}

	paidCount := 0
	for i := range ds.Subscribers {
		if ds.Subscribers[i].IsPaid() {
			paidCount++
		}
	}

	if paidCount == 0 || len(ds.Opens) == 0 {
		return &ConversionAttribution{
			Summary: "No paid subscribers or engagement data available",
		}
	}

	opensByEmail := make(map[string][]domain.OpenEvent)
	for _, e := range ds.Opens {
		opensByEmail[e.Email] = append(opensByEmail[e.Email], e)
	}

	window := time.Duration(windowDays) * 24 * time.Hour

	// conversions[postID] is the set of subscribers credited to that post.
	conversions := make(map[int64]map[string]struct{})
	for i := range ds.Subscribers {
		s := &ds.Subscribers[i]
		if s.FirstPaymentAt == nil {
			continue
		}
		convertedAt := *s.FirstPaymentAt
		windowStart := convertedAt.Add(-window)

		for _, open := range opensByEmail[s.Email] {
			if open.Timestamp.Before(windowStart) || open.Timestamp.After(convertedAt) {
				continue
			}
			set, ok := conversions[open.PostID]
			if !ok {
				set = make(map[string]struct{})
				conversions[open.PostID] = set
			}
			set[s.Email] = struct{}{}
		}
	}

	if len(conversions) == 0 {
		return &ConversionAttribution{
			TotalConversionsTracked: paidCount,
			Summary:                 "No posts found in conversion windows",
		}
	}

	postsByID := make(map[int64]*domain.Post, len(ds.Posts))
	for i := range ds.Posts {
		postsByID[ds.Posts[i].PostID] = &ds.Posts[i]
	}
	deliversByPost := uniqueDeliveriesByPost(ds.Delivers)

	rows := make([]PostConversion, 0, len(conversions))
	for postID, emails := range conversions {
		row := PostConversion{
			PostID:      postID,
			Conversions: len(emails),
			Delivered:   len(deliversByPost[postID]),
		}
		// Left join against post metadata: attributions to posts missing
		// from posts.csv keep their ID with empty metadata.
		if p, ok := postsByID[postID]; ok {
			row.Title = p.Title
			row.PostDate = p.PostDate
			row.Audience = p.Audience
		}
		if row.Delivered > 0 {
			rate := math.Round(float64(row.Conversions)/float64(row.Delivered)*100*100) / 100
			row.ConversionRate = &rate
		}
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Conversions != rows[j].Conversions {
			return rows[i].Conversions > rows[j].Conversions
		}
		return rows[i].PostID < rows[j].PostID
	})

	return &ConversionAttribution{
		Posts:                   rows,
		TotalConversionsTracked: paidCount,
		PostsWithAttribution:    len(rows),
		TopConverter:            rows[0].Title,
		Summary: fmt.Sprintf("Analyzed %d paid subscribers, attributed conversions to %d posts",
			paidCount, len(rows)),
	}
}

// PostEngagement is one row of the per-post engagement ranking.
type PostEngagement struct {
	PostID          int64           `json:"post_id"`
	Title           string          `json:"title"`
	PostDate        time.Time       `json:"post_date"`
	Audience        domain.Audience `json:"audience"`
	Type            string          `json:"type"`
	Delivered       int             `json:"delivered"`
	UniqueOpens     int             `json:"unique_opens"`
	OpenRate        float64         `json:"open_rate"`
	OpenRatePct     string          `json:"open_rate_pct"`
	EngagementScore float64         `json:"engagement_score"`
}

// EngagementAnalysis is the result of AnalyzeEngagement.
type EngagementAnalysis struct {
	AllPosts         []PostEngagement `json:"all_posts"`
	SignificantPosts []PostEngagement `json:"significant_posts"`
	AvgOpenRate      float64          `json:"avg_open_rate"`
	AvgOpenRatePct   string           `json:"avg_open_rate_pct"`
	TopPerformers    []PostEngagement `json:"top_performers"`
	LowPerformers    []PostEngagement `json:"low_performers"`
	Summary          string           `json:"summary"`
}

// EngagementScore rewards both rate and absolute reach:
// openRate * ln(1 + delivered). Used for internal ranking only, never
// displayed as a rate.
func EngagementScore(openRate float64, delivered int) float64 {
	return openRate * math.Log1p(float64(delivered))
}

// AnalyzeEngagement ranks every post by open rate and splits the posts with
// a meaningful delivery count (>= minDelivered; <= 0 uses the default of
// 50) into top performers (above the qualifying average) and low performers
// (below 70% of it).
func AnalyzeEngagement(posts []domain.Post, opens []domain.OpenEvent, delivers []domain.DeliverEvent, minDelivered int) *EngagementAnalysis {
	if minDelivered <= 0 {
		minDelivered = MinSignificantDelivered
	}

	opensByPost := uniqueEmailsByPost(opens)
	deliversByPost := uniqueDeliveriesByPost(delivers)

	all := make([]PostEngagement, 0, len(posts))
	for _, p := range posts {
		uniqueOpens := len(opensByPost[p.PostID])
		delivered := len(deliversByPost[p.PostID])

		rate := 0.0
		if delivered > 0 {
			rate = float64(uniqueOpens) / float64(delivered)
		}

		all = append(all, PostEngagement{
			PostID:          p.PostID,
			Title:           p.Title,
			PostDate:        p.PostDate,
			Audience:        p.Audience,
			Type:            p.Type,
			Delivered:       delivered,
			UniqueOpens:     uniqueOpens,
			OpenRate:        rate,
			OpenRatePct:     formatPct(rate, 1),
			EngagementScore: math.Round(EngagementScore(rate, delivered)*100) / 100,
		})
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].OpenRate != all[j].OpenRate {
			return all[i].OpenRate > all[j].OpenRate
		}
		return all[i].PostID < all[j].PostID
	})

	var significant []PostEngagement
	for _, p := range all {
		if p.Delivered >= minDelivered {
			significant = append(significant, p)
		}
	}

	result := &EngagementAnalysis{AllPosts: all, SignificantPosts: significant}

	if len(significant) > 0 {
		sum := 0.0
		for _, p := range significant {
			sum += p.OpenRate
		}
		avg := sum / float64(len(significant))
		result.AvgOpenRate = avg

		for _, p := range significant {
			if p.OpenRate > avg {
				result.TopPerformers = append(result.TopPerformers, p)
			}
			if p.OpenRate < avg*0.7 {
				result.LowPerformers = append(result.LowPerformers, p)
			}
		}
	}

	result.AvgOpenRatePct = formatPct(result.AvgOpenRate, 1)
	result.Summary = fmt.Sprintf("Average open rate: %s, %d top performers, %d underperformers",
		result.AvgOpenRatePct, len(result.TopPerformers), len(result.LowPerformers))
	return result
}
