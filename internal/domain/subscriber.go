// Package domain defines the canonical in-memory record tables produced by
// the export loader and consumed by the analytics engines. All tables are
// immutable snapshots for the duration of one analysis run; the engines only
// read them.
package domain

import "time"

// Plan is the subscription plan category from the export, as a closed set.
type Plan string

const (
	PlanFree     Plan = "free"
	PlanMonthly  Plan = "monthly"
	PlanYearly   Plan = "yearly"
	PlanFounding Plan = "founding"
	PlanComp     Plan = "comp"
	PlanGift     Plan = "gift"
	// PlanOther is the fallback for plan strings the export uses that we
	// don't recognize. Unrecognized input must never be dropped.
	PlanOther Plan = "other"
)

// ParsePlan normalizes a raw plan string from the export into a Plan.
func ParsePlan(raw string) Plan {
	switch normalize(raw) {
	case "", "free", "none":
		return PlanFree
	case "monthly", "month":
		return PlanMonthly
	case "yearly", "annual", "year":
		return PlanYearly
	case "founding", "founder":
		return PlanFounding
	case "comp", "complimentary":
		return PlanComp
	case "gift", "gifted":
		return PlanGift
	default:
		return PlanOther
	}
}

// Subscriber is one row per person who ever subscribed, keyed by email.
type Subscriber struct {
	Email              string     `json:"email"`
	CreatedAt          time.Time  `json:"created_at"`
	FirstPaymentAt     *time.Time `json:"first_payment_at,omitempty"`
	Expiry             *time.Time `json:"expiry,omitempty"`
	Plan               Plan       `json:"plan"`
	EmailDisabled      bool       `json:"email_disabled"`
	ActiveSubscription bool       `json:"active_subscription"`
}

// IsPaid reports whether the subscriber ever converted to paid.
func (s *Subscriber) IsPaid() bool { return s.FirstPaymentAt != nil }

// IsActivePaid reports whether the subscriber currently holds an active
// paid subscription.
func (s *Subscriber) IsActivePaid() bool { return s.ActiveSubscription }

// DaysToConvert returns the number of whole days between signup and first
// payment, or false if the subscriber never paid.
func (s *Subscriber) DaysToConvert() (int, bool) {
	if s.FirstPaymentAt == nil {
		return 0, false
	}
	return int(s.FirstPaymentAt.Sub(s.CreatedAt).Hours() / 24), true
}
