package analytics

import (
	"fmt"
	"sort"
	"time"

	"github.com/ignite/subscriber-analytics/internal/domain"
)

// Engagement tier thresholds (tier classification, pass A).
const (
	// MinPostsDelivered is the eligibility gate: subscribers with fewer
	// delivered posts have too small a sample to classify.
	MinPostsDelivered = 5
	// SuperEngagerOpenRate is the lower bound for the super engager tier.
	SuperEngagerOpenRate = 0.8
	// AtRiskOpenRate is the upper bound (exclusive) for the at-risk tier.
	AtRiskOpenRate = 0.2
)

// List-cleaning thresholds (pass B).
const (
	// MinEmailsReceived is the hard volume gate: a subscriber must have
	// received strictly more than this many emails in the 6-month window
	// to be considered for any cleaning category.
	MinEmailsReceived = 8
	// NewSubscriberDays protects recent signups from inactivity labels.
	NewSubscriberDays = 30
	// LapsedDays is how long since the last open before a previously
	// engaged subscriber counts as lapsed.
	LapsedDays = 30
	// ReengagementOpenRate is the historical 6-month open rate that marks
	// a lapsed subscriber as worth a win-back campaign.
	ReengagementOpenRate = 0.30
)

// EngagementTier classifies a subscriber's open behavior.
type EngagementTier string

const (
	TierSuperEngager EngagementTier = "super_engager"
	TierAverage      EngagementTier = "average"
	TierAtRisk       EngagementTier = "at_risk"
)

// SubscriberEngagement is one eligible subscriber's per-subscriber open
// metrics and assigned tier.
type SubscriberEngagement struct {
	Email          string         `json:"email"`
	PostsOpened    int            `json:"posts_opened"`
	PostsDelivered int            `json:"posts_delivered"`
	OpenRate       float64        `json:"open_rate"`
	Tier           EngagementTier `json:"tier"`
	IsPaid         bool           `json:"is_paid"`
	CreatedAt      *time.Time     `json:"created_at,omitempty"`
}

// TierAnalysis is the result of SegmentEngagementTiers.
type TierAnalysis struct {
	// Subscribers holds every eligible subscriber (>= MinPostsDelivered
	// delivered posts), sorted by open rate descending.
	Subscribers         []SubscriberEngagement `json:"subscribers"`
	SuperEngagers       []SubscriberEngagement `json:"super_engagers"`
	SuperEngagerCount   int                    `json:"super_engager_count"`
	SuperEngagerPaidPct float64                `json:"super_engager_paid_pct"`
	AtRiskCount         int                    `json:"at_risk_count"`
	TotalAnalyzed       int                    `json:"total_analyzed"`
	Summary             string                 `json:"summary"`
}

// SegmentEngagementTiers classifies subscribers by distinct-post open rate.
// Only subscribers with at least MinPostsDelivered delivered posts are
// classified; the rest are excluded from both buckets and from every
// denominator. For every eligible subscriber exactly one tier holds.
func SegmentEngagementTiers(opens []domain.OpenEvent, delivers []domain.DeliverEvent, subscribers []domain.Subscriber) *TierAnalysis {
	if len(opens) == 0 || len(delivers) == 0 {
		return &TierAnalysis{Summary: "No engagement data available"}
	}

	postsOpened := uniquePostsByEmail(opensToPairs(opens))
	postsDelivered := uniquePostsByEmail(deliversToPairs(delivers))

	subsByEmail := make(map[string]*domain.Subscriber, len(subscribers))
	for i := range subscribers {
		subsByEmail[subscribers[i].Email] = &subscribers[i]
	}

	var eligible []SubscriberEngagement
	for email, delivered := range postsDelivered {
		if len(delivered) < MinPostsDelivered {
			continue
		}
		opened := len(postsOpened[email])
		rate := float64(opened) / float64(len(delivered))

		se := SubscriberEngagement{
			Email:          email,
			PostsOpened:    opened,
			PostsDelivered: len(delivered),
			OpenRate:       rate,
			Tier:           classifyTier(rate),
		}
		// Left join against the subscriber table for context; event rows
		// for emails missing from the roster keep zero-value context.
		if s, ok := subsByEmail[email]; ok {
			se.IsPaid = s.IsPaid()
			created := s.CreatedAt
			se.CreatedAt = &created
		}
		eligible = append(eligible, se)
	}

	sort.Slice(eligible, func(i, j int) bool {
		if eligible[i].OpenRate != eligible[j].OpenRate {
			return eligible[i].OpenRate > eligible[j].OpenRate
		}
		return eligible[i].Email < eligible[j].Email
	})

	result := &TierAnalysis{Subscribers: eligible, TotalAnalyzed: len(eligible)}

	paidSupers := 0
	for _, se := range eligible {
		switch se.Tier {
		case TierSuperEngager:
			result.SuperEngagers = append(result.SuperEngagers, se)
			if se.IsPaid {
				paidSupers++
			}
		case TierAtRisk:
			result.AtRiskCount++
		}
	}
	result.SuperEngagerCount = len(result.SuperEngagers)
	if result.SuperEngagerCount > 0 {
		result.SuperEngagerPaidPct = float64(paidSupers) / float64(result.SuperEngagerCount) * 100
	}

	result.Summary = fmt.Sprintf("%d super engagers (80%%+ open rate), %d at-risk subscribers",
		result.SuperEngagerCount, result.AtRiskCount)
	return result
}

func classifyTier(rate float64) EngagementTier {
	switch {
	case rate >= SuperEngagerOpenRate:
		return TierSuperEngager
	case rate < AtRiskOpenRate:
		return TierAtRisk
	default:
		return TierAverage
	}
}

// CleaningCategory is a list-cleaning bin. A subscriber can hold more than
// one category: the inactive and re-engagement predicates overlap by
// construction, and membership is kept as a set rather than resolved by a
// silent precedence rule.
type CleaningCategory string

const (
	CategoryNeverOpened    CleaningCategory = "never_opened"
	CategoryInactiveLapsed CleaningCategory = "inactive_lapsed"
	CategoryReengagement   CleaningCategory = "reengagement_candidate"
)

// CleaningRecord is one subscriber's cleaning evaluation.
type CleaningRecord struct {
	Email             string             `json:"email"`
	StartDate         *time.Time         `json:"start_date,omitempty"`
	DaysSinceSignup   *int               `json:"days_since_signup,omitempty"`
	DaysSinceLastOpen *int               `json:"days_since_last_open,omitempty"`
	EmailsReceived6Mo int                `json:"emails_received_6mo"`
	TotalEmailsOpened int                `json:"total_emails_opened"`
	OpenRate6Mo       float64            `json:"open_rate_6mo"`
	LinksClicked      int                `json:"links_clicked"`
	PostViews         int                `json:"post_views"`
	Comments          int                `json:"comments"`
	Shares            int                `json:"shares"`
	IsPaid            bool               `json:"is_paid"`
	IsNew             bool               `json:"is_new"`
	SufficientEmails  bool               `json:"sufficient_emails"`
	OtherEngagement   bool               `json:"other_engagement"`
	Categories        []CleaningCategory `json:"categories,omitempty"`
}

// InCategory reports whether the record carries the given category.
func (r *CleaningRecord) InCategory(c CleaningCategory) bool {
	for _, have := range r.Categories {
		if have == c {
			return true
		}
	}
	return false
}

// CleaningAnalysis is the result of AnalyzeListCleaning.
type CleaningAnalysis struct {
	// Records holds every detail row that survived the tracking
	// pre-filter, with flags and categories evaluated.
	Records []CleaningRecord `json:"records"`

	ExcludedNoDelivery int `json:"excluded_no_delivery"`
	ExcludedNew        int `json:"excluded_new"`
	ExcludedFewEmails  int `json:"excluded_few_emails"`
	EligibleCount      int `json:"eligible_count"`

	// NeverOpenedCount is the raw flag count. NeverOpenedClean is the
	// removal list actually shown to the user: free subscribers with no
	// other engagement signal. NeverOpenedOtherEngagement counts the
	// data-quality warning cases (zero email opens but clicks, comments,
	// shares, or post views on record).
	NeverOpenedCount           int              `json:"never_opened_count"`
	NeverOpenedClean           []CleaningRecord `json:"never_opened_clean"`
	NeverOpenedOtherEngagement int              `json:"never_opened_other_engagement"`

	Inactive     []CleaningRecord `json:"inactive"`
	Reengagement []CleaningRecord `json:"reengagement"`
	// OverlapCount is how many subscribers match both the inactive and
	// re-engagement bins; the overlap is preserved, not resolved.
	OverlapCount int `json:"overlap_count"`

	ActiveCount int    `json:"active_count"`
	Summary     string `json:"summary"`
}

// AnalyzeListCleaning runs the layered eligibility and exclusion pipeline
// over the enriched detail table. now is the reference instant for the
// days-since calculations.
//
// Pipeline order matters: the tracking pre-filter drops rows with a
// missing or zero 6-month received count before anything else; the volume
// gate requires strictly more than MinEmailsReceived emails received;
// subscribers newer than NewSubscriberDays and paid subscribers are never
// placed in a removal bin.
func AnalyzeListCleaning(details []domain.SubscriberDetail, now time.Time) *CleaningAnalysis {
	if len(details) == 0 {
		return &CleaningAnalysis{Summary: "No subscriber detail data available"}
	}

	result := &CleaningAnalysis{}
	for i := range details {
		d := &details[i]
		if d.EmailsReceived6Mo == nil || *d.EmailsReceived6Mo == 0 {
			result.ExcludedNoDelivery++
			continue
		}

		rec := CleaningRecord{
			Email:             d.Email,
			StartDate:         d.StartDate,
			EmailsReceived6Mo: *d.EmailsReceived6Mo,
			TotalEmailsOpened: d.TotalEmailsOpened,
			OpenRate6Mo:       d.OpenRate6Mo(),
			LinksClicked:      d.LinksClicked,
			PostViews:         d.PostViews,
			Comments:          d.Comments,
			Shares:            d.Shares,
			IsPaid:            d.IsPaid(),
			OtherEngagement:   d.OtherEngagement(),
			SufficientEmails:  *d.EmailsReceived6Mo > MinEmailsReceived,
		}
		if d.StartDate != nil {
			days := wholeDays(now.Sub(*d.StartDate))
			rec.DaysSinceSignup = &days
			rec.IsNew = days <= NewSubscriberDays
		}
		if d.LastEmailOpen != nil {
			days := wholeDays(now.Sub(*d.LastEmailOpen))
			rec.DaysSinceLastOpen = &days
		}

		evaluateCategories(&rec)
		result.Records = append(result.Records, rec)
	}

	for i := range result.Records {
		rec := &result.Records[i]
		if rec.IsNew {
			result.ExcludedNew++
		}
		if !rec.SufficientEmails {
			result.ExcludedFewEmails++
			continue
		}
		result.EligibleCount++

		if rec.InCategory(CategoryNeverOpened) {
			result.NeverOpenedCount++
			if !rec.IsPaid && !rec.OtherEngagement {
				result.NeverOpenedClean = append(result.NeverOpenedClean, *rec)
			} else if rec.OtherEngagement {
				result.NeverOpenedOtherEngagement++
			}
		}
		inactive := rec.InCategory(CategoryInactiveLapsed)
		reengage := rec.InCategory(CategoryReengagement)
		if inactive {
			result.Inactive = append(result.Inactive, *rec)
		}
		if reengage {
			result.Reengagement = append(result.Reengagement, *rec)
		}
		if inactive && reengage {
			result.OverlapCount++
		}
		if !rec.IsNew && rec.DaysSinceLastOpen != nil && *rec.DaysSinceLastOpen <= LapsedDays {
			result.ActiveCount++
		}
	}

	// Inactive list reads most-lapsed first; re-engagement list reads
	// best-history first.
	sort.Slice(result.Inactive, func(i, j int) bool {
		return daysOrZero(result.Inactive[i].DaysSinceLastOpen) > daysOrZero(result.Inactive[j].DaysSinceLastOpen)
	})
	sort.Slice(result.Reengagement, func(i, j int) bool {
		return result.Reengagement[i].OpenRate6Mo > result.Reengagement[j].OpenRate6Mo
	})

	result.Summary = fmt.Sprintf(
		"%d never opened, %d inactive (lapsed), %d re-engagement candidates out of %d eligible",
		result.NeverOpenedCount, len(result.Inactive), len(result.Reengagement), result.EligibleCount)
	return result
}

// evaluateCategories applies the three bin predicates to a record. The
// never-opened flag keeps paid subscribers (the clean removal list filters
// them later); the inactive and re-engagement bins exclude paid outright.
func evaluateCategories(rec *CleaningRecord) {
	if !rec.SufficientEmails {
		return
	}

	if rec.TotalEmailsOpened == 0 && !rec.IsNew {
		rec.Categories = append(rec.Categories, CategoryNeverOpened)
		return
	}

	if rec.TotalEmailsOpened == 0 || rec.IsNew || rec.IsPaid {
		return
	}
	// A missing last-open timestamp cannot satisfy the lapsed window.
	if rec.DaysSinceLastOpen == nil || *rec.DaysSinceLastOpen <= LapsedDays {
		return
	}

	if rec.LinksClicked == 0 && rec.Shares == 0 && rec.Comments == 0 {
		rec.Categories = append(rec.Categories, CategoryInactiveLapsed)
	}
	if rec.OpenRate6Mo >= ReengagementOpenRate {
		rec.Categories = append(rec.Categories, CategoryReengagement)
	}
}

// RemovalSet selects which cleaning bins a removal simulation covers.
type RemovalSet string

const (
	RemovalNeverOpened RemovalSet = "never_opened"
	RemovalInactive    RemovalSet = "inactive"
	RemovalBoth        RemovalSet = "both"
)

// CleaningImpact is the projected effect of removing a cleaning bin.
type CleaningImpact struct {
	RemovalSet        RemovalSet `json:"removal_set"`
	Removed           int        `json:"removed"`
	RemovedPct        float64    `json:"removed_pct"`
	RemainingListSize int        `json:"remaining_list_size"`
	// ActiveRatePct is the 30-day active share recomputed against the
	// remaining population; CurrentActiveRatePct is the pre-removal
	// baseline. Both are percentages.
	ActiveRatePct        float64 `json:"active_rate_pct"`
	CurrentActiveRatePct float64 `json:"current_active_rate_pct"`
	ActiveRateDeltaPct   float64 `json:"active_rate_delta_pct"`
}

// SimulateRemoval projects list health after removing the chosen bin(s).
// Only free, non-new subscribers past the volume gate are ever removed;
// the removal sets exclude active subscribers by construction, so the
// active count is unchanged and the ratio improves via the denominator.
func (a *CleaningAnalysis) SimulateRemoval(set RemovalSet) CleaningImpact {
	removal := make(map[string]struct{})
	for i := range a.Records {
		rec := &a.Records[i]
		if rec.IsPaid || rec.IsNew || !rec.SufficientEmails {
			continue
		}
		switch set {
		case RemovalNeverOpened:
			if rec.InCategory(CategoryNeverOpened) && !rec.OtherEngagement {
				removal[rec.Email] = struct{}{}
			}
		case RemovalInactive:
			if rec.InCategory(CategoryInactiveLapsed) {
				removal[rec.Email] = struct{}{}
			}
		case RemovalBoth:
			if (rec.InCategory(CategoryNeverOpened) && !rec.OtherEngagement) ||
				rec.InCategory(CategoryInactiveLapsed) {
				removal[rec.Email] = struct{}{}
			}
		}
	}

	total := len(a.Records)
	removed := len(removal)
	remaining := total - removed

	active := 0
	for i := range a.Records {
		if d := a.Records[i].DaysSinceLastOpen; d != nil && *d <= LapsedDays {
			active++
		}
	}

	impact := CleaningImpact{
		RemovalSet:        set,
		Removed:           removed,
		RemainingListSize: remaining,
	}
	if total > 0 {
		impact.RemovedPct = float64(removed) / float64(total) * 100
		impact.CurrentActiveRatePct = float64(active) / float64(total) * 100
	}
	if remaining > 0 {
		impact.ActiveRatePct = float64(active) / float64(remaining) * 100
	}
	impact.ActiveRateDeltaPct = impact.ActiveRatePct - impact.CurrentActiveRatePct
	return impact
}

func wholeDays(d time.Duration) int {
	return int(d.Hours() / 24)
}

func daysOrZero(d *int) int {
	if d == nil {
		return 0
	}
	return *d
}

type emailPost struct {
	email  string
	postID int64
}

func opensToPairs(events []domain.OpenEvent) []emailPost {
	out := make([]emailPost, len(events))
	for i, e := range events {
		out[i] = emailPost{e.Email, e.PostID}
	}
	return out
}

func deliversToPairs(events []domain.DeliverEvent) []emailPost {
	out := make([]emailPost, len(events))
	for i, e := range events {
		out[i] = emailPost{e.Email, e.PostID}
	}
	return out
}

func uniquePostsByEmail(pairs []emailPost) map[string]map[int64]struct{} {
	byEmail := make(map[string]map[int64]struct{})
	for _, p := range pairs {
		set, ok := byEmail[p.email]
		if !ok {
			set = make(map[int64]struct{})
			byEmail[p.email] = set
		}
		set[p.postID] = struct{}{}
	}
	return byEmail
}
