package analytics

import (
	"time"

	"github.com/ignite/subscriber-analytics/internal/domain"
)

// Options tunes the full analysis run. Zero values select the defaults.
type Options struct {
	AttributionWindowDays   int
	MinSignificantDelivered int
}

// Analysis bundles every engine's output for one dataset evaluation.
// Detail-derived sections (Tiers from events, Cleaning from the enriched
// detail table) are nil when their input table is absent.
type Analysis struct {
	GeneratedAt time.Time              `json:"generated_at"`
	Metrics     *Metrics               `json:"metrics"`
	Conversion  *ConversionAttribution `json:"conversion_attribution"`
	Engagement  *EngagementAnalysis    `json:"engagement"`
	Acquisition *AcquisitionAnalysis   `json:"acquisition"`
	Trends      *TrendAnalysis         `json:"trends"`
	Tiers       *TierAnalysis          `json:"tiers"`
	Cleaning    *CleaningAnalysis      `json:"cleaning,omitempty"`
}

// Run executes every analysis engine over the dataset. now is the single
// reference instant shared by churn, the 30-day active ratio, and the
// cleaning day counters, so one run is internally consistent and tests can
// pin it.
func Run(ds *domain.Dataset, now time.Time, opts Options) *Analysis {
	a := &Analysis{
		GeneratedAt: now,
		Metrics:     AllMetrics(ds, now),
		Conversion:  AttributeConversions(ds, opts.AttributionWindowDays),
		Engagement:  AnalyzeEngagement(ds.Posts, ds.Opens, ds.Delivers, opts.MinSignificantDelivered),
		Acquisition: AnalyzeAcquisition(ds.Subscribers),
		Trends:      AnalyzeTrends(ds, now),
		Tiers:       SegmentEngagementTiers(ds.Opens, ds.Delivers, ds.Subscribers),
	}
	if ds.HasDetails() {
		a.Cleaning = AnalyzeListCleaning(ds.Details, now)
	}
	return a
}
