package analytics

import (
	"fmt"
	"math"
	"sort"

	"github.com/ignite/subscriber-analytics/internal/domain"
)

// AcquisitionAnalysis summarizes acquisition patterns: plan mix, signup
// timing, and time-to-conversion. The export carries no explicit channel
// data, so timing and plan distribution stand in for channel analysis.
type AcquisitionAnalysis struct {
	PlanDistribution      map[domain.Plan]int `json:"plan_distribution"`
	MonthlySignups        []MonthCount        `json:"monthly_signups"`
	MonthlyPaidSignups    []MonthCount        `json:"monthly_paid_signups"`
	DayOfWeekDistribution map[string]int      `json:"dow_distribution"`
	AvgDaysToConvert      float64             `json:"avg_days_to_convert"`
	MedianDaysToConvert   float64             `json:"median_days_to_convert"`
	Summary               string              `json:"summary"`
}

// AnalyzeAcquisition computes the acquisition summary from the subscriber
// table alone.
func AnalyzeAcquisition(subscribers []domain.Subscriber) *AcquisitionAnalysis {
	result := &AcquisitionAnalysis{
		PlanDistribution:      make(map[domain.Plan]int),
		DayOfWeekDistribution: make(map[string]int),
	}

	signups := make(map[string]int)
	paidSignups := make(map[string]int)
	var daysToConvert []float64

	for i := range subscribers {
		s := &subscribers[i]
		result.PlanDistribution[s.Plan]++
		result.DayOfWeekDistribution[s.CreatedAt.Weekday().String()]++

		month := s.CreatedAt.Format(monthKey)
		signups[month]++
		if s.IsPaid() {
			paidSignups[month]++
		}
		if days, ok := s.DaysToConvert(); ok {
			daysToConvert = append(daysToConvert, float64(days))
		}
	}

	result.MonthlySignups = toMonthSeries(signups)
	result.MonthlyPaidSignups = toMonthSeries(paidSignups)

	if len(daysToConvert) > 0 {
		sum := 0.0
		for _, d := range daysToConvert {
			sum += d
		}
		result.AvgDaysToConvert = round1(sum / float64(len(daysToConvert)))
		result.MedianDaysToConvert = round1(median(daysToConvert))
	}

	result.Summary = fmt.Sprintf("Avg time to convert: %.1f days, Median: %.1f days",
		result.AvgDaysToConvert, result.MedianDaysToConvert)
	return result
}

func toMonthSeries(perMonth map[string]int) []MonthCount {
	months := make([]string, 0, len(perMonth))
	for m := range perMonth {
		months = append(months, m)
	}
	sort.Strings(months)

	out := make([]MonthCount, 0, len(months))
	for _, m := range months {
		out = append(out, MonthCount{Month: m, Count: perMonth[m]})
	}
	return out
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
