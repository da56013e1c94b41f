package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyOpenRate(t *testing.T) {
	tests := []struct {
		name string
		rate float64
		want Rating
	}{
		{"excellent at boundary", 0.45, RatingExcellent},
		{"good just below excellent", 0.4499, RatingGood},
		{"good at boundary", 0.30, RatingGood},
		{"average at boundary", 0.20, RatingAverage},
		{"poor below average", 0.1999, RatingPoor},
		{"poor at zero", 0, RatingPoor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(MetricOpenRate, tt.rate))
		})
	}
}

func TestClassifyConversion(t *testing.T) {
	tests := []struct {
		rate float64
		want Rating
	}{
		{0.10, RatingExcellentNiche},
		{0.05, RatingVeryGood},
		{0.02, RatingRealisticGood},
		{0.0199, RatingBelowAverage},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(MetricConversion, tt.rate), "rate %v", tt.rate)
	}
}

func TestClassifyListGrowth(t *testing.T) {
	assert.Equal(t, RatingExcellent, Classify(MetricListGrowth, 0.05))
	assert.Equal(t, RatingGood, Classify(MetricListGrowth, 0.02))
	assert.Equal(t, RatingSlow, Classify(MetricListGrowth, 0))
	assert.Equal(t, RatingNegativeGrowth, Classify(MetricListGrowth, -0.01))
}

func TestClassifyInvertedLadders(t *testing.T) {
	// Churn and unsubscribe rate ladders read lower-is-better.
	assert.Equal(t, RatingExcellent, Classify(MetricPaidChurn, 0.009))
	assert.Equal(t, RatingGood, Classify(MetricPaidChurn, 0.01))
	assert.Equal(t, RatingAverage, Classify(MetricPaidChurn, 0.03))
	assert.Equal(t, RatingPoor, Classify(MetricPaidChurn, 0.05))

	assert.Equal(t, RatingExcellent, Classify(MetricUnsubPerEmail, 0.0009))
	assert.Equal(t, RatingGood, Classify(MetricUnsubPerEmail, 0.001))
	assert.Equal(t, RatingAcceptable, Classify(MetricUnsubPerEmail, 0.002))
	assert.Equal(t, RatingAuditNeeded, Classify(MetricUnsubPerEmail, 0.0025))
}

func TestBenchmarkStringsCoverEveryKind(t *testing.T) {
	kinds := []MetricKind{
		MetricOpenRate, MetricCTR, MetricCTOR, MetricConversion,
		MetricListGrowth, MetricPaidChurn, MetricUnsubPerEmail,
	}
	for _, k := range kinds {
		assert.NotEmpty(t, Benchmark(k), "kind %s", k)
	}
}
