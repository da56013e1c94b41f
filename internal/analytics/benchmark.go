// Package analytics implements the metrics, attribution, trend, and
// segmentation engines over the loaded record tables. Every function here
// is a pure transformation: no I/O, no shared mutable state, and any
// time-dependent calculation takes an explicit reference instant.
package analytics

// MetricKind identifies which benchmark ladder applies to a rate.
type MetricKind string

const (
	MetricOpenRate      MetricKind = "open_rate"
	MetricCTR           MetricKind = "click_through_rate"
	MetricCTOR          MetricKind = "click_to_open_rate"
	MetricConversion    MetricKind = "free_to_paid_conversion"
	MetricListGrowth    MetricKind = "list_growth"
	MetricPaidChurn     MetricKind = "paid_churn"
	MetricUnsubPerEmail MetricKind = "unsubscribe_per_email"
)

// Rating is a qualitative benchmark label. The set is closed; the exact
// strings are part of the output contract consumed by the dashboard.
type Rating string

const (
	RatingExcellent      Rating = "Excellent"
	RatingGood           Rating = "Good"
	RatingAverage        Rating = "Average"
	RatingPoor           Rating = "Poor"
	RatingBelowTarget    Rating = "Below target"
	RatingExcellentNiche Rating = "Excellent (niche-level)"
	RatingVeryGood       Rating = "Very Good"
	RatingRealisticGood  Rating = "Realistic/Good"
	RatingBelowAverage   Rating = "Below average"
	RatingSlow           Rating = "Slow"
	RatingNegativeGrowth Rating = "Negative growth"
	RatingAcceptable     Rating = "Acceptable"
	RatingAuditNeeded    Rating = "Audit needed"
)

// Classify maps a rate (fraction, 0-1) to its benchmark rating for the
// given metric kind. Evaluation is highest threshold met, in descending
// order, falling through to the metric's floor label. Churn and
// unsubscribe ladders invert: lower is better.
func Classify(kind MetricKind, rate float64) Rating {
	switch kind {
	case MetricOpenRate:
		switch {
		case rate >= 0.45:
			return RatingExcellent
		case rate >= 0.30:
			return RatingGood
		case rate >= 0.20:
			return RatingAverage
		}
		return RatingPoor
	case MetricCTR:
		switch {
		case rate >= 0.05:
			return RatingExcellent
		case rate >= 0.03:
			return RatingGood
		case rate >= 0.02:
			return RatingAverage
		}
		return RatingPoor
	case MetricCTOR:
		switch {
		case rate >= 0.15:
			return RatingExcellent
		case rate >= 0.10:
			return RatingGood
		}
		return RatingBelowTarget
	case MetricConversion:
		switch {
		case rate >= 0.10:
			return RatingExcellentNiche
		case rate >= 0.05:
			return RatingVeryGood
		case rate >= 0.02:
			return RatingRealisticGood
		}
		return RatingBelowAverage
	case MetricListGrowth:
		switch {
		case rate >= 0.05:
			return RatingExcellent
		case rate >= 0.02:
			return RatingGood
		case rate >= 0:
			return RatingSlow
		}
		return RatingNegativeGrowth
	case MetricPaidChurn:
		switch {
		case rate < 0.01:
			return RatingExcellent
		case rate < 0.03:
			return RatingGood
		case rate < 0.05:
			return RatingAverage
		}
		return RatingPoor
	case MetricUnsubPerEmail:
		switch {
		case rate < 0.001:
			return RatingExcellent
		case rate < 0.0017:
			return RatingGood
		case rate < 0.0025:
			return RatingAcceptable
		}
		return RatingAuditNeeded
	}
	return RatingPoor
}

// Benchmark returns the human-readable benchmark description shown next to
// each rating in the dashboard and report.
func Benchmark(kind MetricKind) string {
	switch kind {
	case MetricOpenRate:
		return "Excellent: 45%+, Good: 30-45%, Average: 20-30%"
	case MetricCTR:
		return "Excellent: 5%+, Good: 3-5%, Average: 2-3%"
	case MetricCTOR:
		return "Target: 10-15% or higher"
	case MetricConversion:
		return "Realistic: 2-5%, Political/niche: 10-15%, Tech/general: 2-3%"
	case MetricListGrowth:
		return "Target: 2-5% monthly growth"
	case MetricPaidChurn:
		return "Excellent: <1%, Good: 1-3%, Average: 3-5%"
	case MetricUnsubPerEmail:
		return "Excellent: <0.1%, Good: 0.1-0.17%, Acceptable: 0.17-0.25%"
	}
	return ""
}
