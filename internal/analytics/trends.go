package analytics

import (
	"fmt"
	"sort"
	"time"

	"github.com/ignite/subscriber-analytics/internal/domain"
)

// MonthlyEngagement is one calendar month of the engagement trend series.
// Opens and Delivers count distinct emails with at least one event that
// month; a month present in only one of the two event tables is zero-filled
// on the other side, never dropped.
type MonthlyEngagement struct {
	Month    string  `json:"month"` // "2006-01"
	Opens    int     `json:"opens"`
	Delivers int     `json:"delivers"`
	OpenRate float64 `json:"open_rate"`
}

// MonthCount is a (calendar month, count) pair used by the signup series.
type MonthCount struct {
	Month string `json:"month"`
	Count int    `json:"count"`
}

// TrendAnalysis is the result of AnalyzeTrends.
type TrendAnalysis struct {
	MonthlyEngagement     []MonthlyEngagement `json:"monthly_engagement"`
	CumulativeSubscribers []MonthCount        `json:"cumulative_subscribers"`
	ActiveRatio30d        float64             `json:"active_ratio_30d"`
	ActiveRatio30dPct     string              `json:"active_ratio_30d_pct"`
	RecentOpeners         int                 `json:"recent_openers"`
	TotalSubscribers      int                 `json:"total_subscribers"`
	Summary               string              `json:"summary"`
}

const monthKey = "2006-01"

// MonthlyEngagementSeries aggregates opens and delivers into a per-month
// unique-email series, sorted chronologically.
func MonthlyEngagementSeries(opens []domain.OpenEvent, delivers []domain.DeliverEvent) []MonthlyEngagement {
	openMonths := make(map[string]map[string]struct{})
	for _, e := range opens {
		addMonthEmail(openMonths, e.Timestamp, e.Email)
	}
	deliverMonths := make(map[string]map[string]struct{})
	for _, e := range delivers {
		addMonthEmail(deliverMonths, e.Timestamp, e.Email)
	}

	months := make(map[string]struct{})
	for m := range openMonths {
		months[m] = struct{}{}
	}
	for m := range deliverMonths {
		months[m] = struct{}{}
	}

	series := make([]MonthlyEngagement, 0, len(months))
	for m := range months {
		row := MonthlyEngagement{
			Month:    m,
			Opens:    len(openMonths[m]),
			Delivers: len(deliverMonths[m]),
		}
		if row.Delivers > 0 {
			row.OpenRate = float64(row.Opens) / float64(row.Delivers)
		}
		series = append(series, row)
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Month < series[j].Month })
	return series
}

// ActiveRatio30d computes the share of subscribers with an open event in
// the 30 days up to ref (inclusive). ref is explicit so tests can pin it;
// callers normally pass the evaluation wall-clock time.
func ActiveRatio30d(opens []domain.OpenEvent, subscribers []domain.Subscriber, ref time.Time) (ratio float64, recentOpeners, total int) {
	cutoff := ref.Add(-30 * 24 * time.Hour)
	openers := make(map[string]struct{})
	for _, e := range opens {
		if e.Timestamp.Before(cutoff) || e.Timestamp.After(ref) {
			continue
		}
		openers[e.Email] = struct{}{}
	}

	total = len(subscribers)
	recentOpeners = len(openers)
	if total > 0 {
		ratio = float64(recentOpeners) / float64(total)
	}
	return ratio, recentOpeners, total
}

// CumulativeSubscribers returns the running subscriber total by signup
// month. Strictly non-decreasing by construction.
func CumulativeSubscribers(subscribers []domain.Subscriber) []MonthCount {
	perMonth := make(map[string]int)
	for i := range subscribers {
		perMonth[subscribers[i].CreatedAt.Format(monthKey)]++
	}

	months := make([]string, 0, len(perMonth))
	for m := range perMonth {
		months = append(months, m)
	}
	sort.Strings(months)

	out := make([]MonthCount, 0, len(months))
	running := 0
	for _, m := range months {
		running += perMonth[m]
		out = append(out, MonthCount{Month: m, Count: running})
	}
	return out
}

// AnalyzeTrends computes the monthly engagement series, cumulative
// subscriber growth, and the 30-day active ratio relative to ref.
func AnalyzeTrends(ds *domain.Dataset, ref time.Time) *TrendAnalysis {
	if len(ds.Opens) == 0 || len(ds.Delivers) == 0 {
		return &TrendAnalysis{
			TotalSubscribers:  len(ds.Subscribers),
			ActiveRatio30dPct: formatPct(0, 1),
			Summary:           "No engagement data available",
		}
	}

	ratio, recent, total := ActiveRatio30d(ds.Opens, ds.Subscribers, ref)

	return &TrendAnalysis{
		MonthlyEngagement:     MonthlyEngagementSeries(ds.Opens, ds.Delivers),
		CumulativeSubscribers: CumulativeSubscribers(ds.Subscribers),
		ActiveRatio30d:        ratio,
		ActiveRatio30dPct:     formatPct(ratio, 1),
		RecentOpeners:         recent,
		TotalSubscribers:      total,
		Summary: fmt.Sprintf("%s of subscribers opened an email in the last 30 days",
			formatPct(ratio, 1)),
	}
}

func addMonthEmail(byMonth map[string]map[string]struct{}, ts time.Time, email string) {
	m := ts.Format(monthKey)
	set, ok := byMonth[m]
	if !ok {
		set = make(map[string]struct{})
		byMonth[m] = set
	}
	set[email] = struct{}{}
}
