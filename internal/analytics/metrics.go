package analytics

import (
	"fmt"
	"time"

	"github.com/ignite/subscriber-analytics/internal/domain"
)

// OpenRateResult is the overall (or per-post) open rate with its inputs.
type OpenRateResult struct {
	Metric         string  `json:"metric"`
	Value          float64 `json:"value"`
	Percentage     string  `json:"percentage"`
	UniqueOpens    int     `json:"unique_opens"`
	TotalDelivered int     `json:"total_delivered"`
	Rating         Rating  `json:"rating"`
	Benchmark      string  `json:"benchmark"`
}

// ConversionResult is the free-to-paid conversion rate across the full list.
type ConversionResult struct {
	Metric              string  `json:"metric"`
	Value               float64 `json:"value"`
	Percentage          string  `json:"percentage"`
	TotalSubscribers    int     `json:"total_subscribers"`
	EverPaid            int     `json:"ever_paid"`
	CurrentlyActivePaid int     `json:"currently_active_paid"`
	Rating              Rating  `json:"rating"`
	Benchmark           string  `json:"benchmark"`
}

// GrowthResult is the list growth rate over a trailing window.
type GrowthResult struct {
	Metric             string  `json:"metric"`
	WindowMonths       int     `json:"window_months"`
	Value              float64 `json:"value"`
	Percentage         string  `json:"percentage"`
	SubscribersAtStart int     `json:"subscribers_at_start"`
	NewSubscribers     int     `json:"new_subscribers"`
	EmailDisabledTotal int     `json:"email_disabled_total"`
	Rating             Rating  `json:"rating"`
	Benchmark          string  `json:"benchmark"`
}

// ChurnResult is the paid subscriber churn rate.
type ChurnResult struct {
	Metric       string  `json:"metric"`
	Value        float64 `json:"value"`
	Percentage   string  `json:"percentage"`
	TotalEverPaid int    `json:"total_ever_paid"`
	Churned      int     `json:"churned"`
	Retained     int     `json:"retained"`
	Rating       Rating  `json:"rating"`
	Benchmark    string  `json:"benchmark"`
}

// PostMetrics is the per-post engagement row of the post metrics table.
type PostMetrics struct {
	PostID      int64           `json:"post_id"`
	Title       string          `json:"title"`
	PostDate    time.Time       `json:"post_date"`
	Audience    domain.Audience `json:"audience"`
	Type        string          `json:"type"`
	Delivered   int             `json:"delivered"`
	UniqueOpens int             `json:"unique_opens"`
	OpenRate    float64         `json:"open_rate"`
	OpenRatePct string          `json:"open_rate_pct"`
	Rating      Rating          `json:"rating"`
}

// Metrics bundles the headline metrics computed by AllMetrics.
type Metrics struct {
	OpenRate       OpenRateResult   `json:"open_rate"`
	ConversionRate ConversionResult `json:"conversion_rate"`
	ListGrowth1Mo  GrowthResult     `json:"list_growth_1mo"`
	ListGrowth3Mo  GrowthResult     `json:"list_growth_3mo"`
	PaidChurn      ChurnResult      `json:"paid_churn"`
	PostMetrics    []PostMetrics    `json:"post_metrics"`
}

// OpenRate computes unique opens / unique deliveries. When postID is
// non-nil, both event tables are filtered to that post first. Uniqueness is
// by email: duplicate open rows for the same subscriber never inflate the
// rate. A zero delivered count yields rate 0, never an error.
func OpenRate(opens []domain.OpenEvent, delivers []domain.DeliverEvent, postID *int64) OpenRateResult {
	openSet := make(map[string]struct{})
	for _, e := range opens {
		if postID != nil && e.PostID != *postID {
			continue
		}
		openSet[e.Email] = struct{}{}
	}
	deliverSet := make(map[string]struct{})
	for _, e := range delivers {
		if postID != nil && e.PostID != *postID {
			continue
		}
		deliverSet[e.Email] = struct{}{}
	}

	rate := 0.0
	if len(deliverSet) > 0 {
		rate = float64(len(openSet)) / float64(len(deliverSet))
	}

	return OpenRateResult{
		Metric:         "Open Rate",
		Value:          rate,
		Percentage:     formatPct(rate, 1),
		UniqueOpens:    len(openSet),
		TotalDelivered: len(deliverSet),
		Rating:         Classify(MetricOpenRate, rate),
		Benchmark:      Benchmark(MetricOpenRate),
	}
}

// ConversionRate computes ever-paid subscribers over all subscribers.
func ConversionRate(subscribers []domain.Subscriber) ConversionResult {
	total := len(subscribers)
	everPaid := 0
	activePaid := 0
	for i := range subscribers {
		if subscribers[i].IsPaid() {
			everPaid++
		}
		if subscribers[i].IsActivePaid() {
			activePaid++
		}
	}

	rate := 0.0
	if total > 0 {
		rate = float64(everPaid) / float64(total)
	}

	return ConversionResult{
		Metric:              "Free-to-Paid Conversion Rate",
		Value:               rate,
		Percentage:          formatPct(rate, 2),
		TotalSubscribers:    total,
		EverPaid:            everPaid,
		CurrentlyActivePaid: activePaid,
		Rating:              Classify(MetricConversion, rate),
		Benchmark:           Benchmark(MetricConversion),
	}
}

// ListGrowthRate computes new subscribers over subscribers-at-start for a
// trailing window of months*30 days. The reference "now" is the maximum
// created_at in the table, not the wall clock, so a stale export still
// reports the growth of its own final period. Unsubscribes are not netted
// out: the export carries no unsubscribe timestamps, so this is a
// documented approximation, not an oversight.
func ListGrowthRate(subscribers []domain.Subscriber, months int) GrowthResult {
	result := GrowthResult{
		Metric:       fmt.Sprintf("List Growth Rate (%dmo)", months),
		WindowMonths: months,
		Benchmark:    Benchmark(MetricListGrowth),
	}

	var now time.Time
	disabled := 0
	for i := range subscribers {
		if subscribers[i].CreatedAt.After(now) {
			now = subscribers[i].CreatedAt
		}
		if subscribers[i].EmailDisabled {
			disabled++
		}
	}
	result.EmailDisabledTotal = disabled

	if len(subscribers) == 0 {
		result.Percentage = formatPct(0, 1)
		result.Rating = Classify(MetricListGrowth, 0)
		return result
	}

	periodStart := now.Add(-time.Duration(months) * 30 * 24 * time.Hour)

	atStart := 0
	newInPeriod := 0
	for i := range subscribers {
		created := subscribers[i].CreatedAt
		if !created.After(periodStart) {
			atStart++
		} else if !created.After(now) {
			newInPeriod++
		}
	}

	rate := 0.0
	if atStart > 0 {
		rate = float64(newInPeriod) / float64(atStart)
	}

	result.Value = rate
	result.Percentage = formatPct(rate, 1)
	result.SubscribersAtStart = atStart
	result.NewSubscribers = newInPeriod
	result.Rating = Classify(MetricListGrowth, rate)
	return result
}

// PaidChurn computes churned paid subscribers over all ever-paid
// subscribers. Churned means: ever paid, subscription no longer active, and
// the expiry is present and before the reference instant.
func PaidChurn(subscribers []domain.Subscriber, now time.Time) ChurnResult {
	everPaid := 0
	churned := 0
	for i := range subscribers {
		s := &subscribers[i]
		if !s.IsPaid() {
			continue
		}
		everPaid++
		if !s.ActiveSubscription && s.Expiry != nil && s.Expiry.Before(now) {
			churned++
		}
	}

	rate := 0.0
	if everPaid > 0 {
		rate = float64(churned) / float64(everPaid)
	}

	return ChurnResult{
		Metric:        "Paid Subscriber Churn",
		Value:         rate,
		Percentage:    formatPct(rate, 1),
		TotalEverPaid: everPaid,
		Churned:       churned,
		Retained:      everPaid - churned,
		Rating:        Classify(MetricPaidChurn, rate),
		Benchmark:     Benchmark(MetricPaidChurn),
	}
}

// PerPostMetrics computes delivered / unique opens / open rate for every
// post. Posts with zero deliveries are carried through with rate 0 rather
// than filtered; filtering is a caller concern.
func PerPostMetrics(posts []domain.Post, opens []domain.OpenEvent, delivers []domain.DeliverEvent) []PostMetrics {
	opensByPost := uniqueEmailsByPost(opens)
	deliversByPost := uniqueDeliveriesByPost(delivers)

	out := make([]PostMetrics, 0, len(posts))
	for _, p := range posts {
		uniqueOpens := len(opensByPost[p.PostID])
		delivered := len(deliversByPost[p.PostID])

		rate := 0.0
		if delivered > 0 {
			rate = float64(uniqueOpens) / float64(delivered)
		}

		out = append(out, PostMetrics{
			PostID:      p.PostID,
			Title:       p.Title,
			PostDate:    p.PostDate,
			Audience:    p.Audience,
			Type:        p.Type,
			Delivered:   delivered,
			UniqueOpens: uniqueOpens,
			OpenRate:    rate,
			OpenRatePct: formatPct(rate, 1),
			Rating:      Classify(MetricOpenRate, rate),
		})
	}
	return out
}

// AllMetrics computes the full headline metric set, using 1-month and
// 3-month growth windows. now is the reference instant for churn; growth
// uses the dataset's own time axis.
func AllMetrics(ds *domain.Dataset, now time.Time) *Metrics {
	return &Metrics{
		OpenRate:       OpenRate(ds.Opens, ds.Delivers, nil),
		ConversionRate: ConversionRate(ds.Subscribers),
		ListGrowth1Mo:  ListGrowthRate(ds.Subscribers, 1),
		ListGrowth3Mo:  ListGrowthRate(ds.Subscribers, 3),
		PaidChurn:      PaidChurn(ds.Subscribers, now),
		PostMetrics:    PerPostMetrics(ds.Posts, ds.Opens, ds.Delivers),
	}
}

func uniqueEmailsByPost(events []domain.OpenEvent) map[int64]map[string]struct{} {
	byPost := make(map[int64]map[string]struct{})
	for _, e := range events {
		set, ok := byPost[e.PostID]
		if !ok {
			set = make(map[string]struct{})
			byPost[e.PostID] = set
		}
		set[e.Email] = struct{}{}
	}
	return byPost
}

func uniqueDeliveriesByPost(events []domain.DeliverEvent) map[int64]map[string]struct{} {
	byPost := make(map[int64]map[string]struct{})
	for _, e := range events {
		set, ok := byPost[e.PostID]
		if !ok {
			set = make(map[string]struct{})
			byPost[e.PostID] = set
		}
		set[e.Email] = struct{}{}
	}
	return byPost
}

// formatPct renders a fraction as a percentage string with the given number
// of decimals, e.g. formatPct(0.356, 1) == "35.6%".
func formatPct(rate float64, decimals int) string {
	return fmt.Sprintf("%.*f%%", decimals, rate*100)
}
