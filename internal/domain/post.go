package domain

import (
	"strings"
	"time"
)

// Audience is the post's delivery audience, as a closed set.
type Audience string

const (
	AudienceAll  Audience = "everyone"
	AudiencePaid Audience = "only_paid"
	AudienceFree Audience = "only_free"
	// AudienceOther is the fallback for audience strings we don't recognize.
	AudienceOther Audience = "other"
)

// ParseAudience normalizes a raw audience string from posts.csv.
func ParseAudience(raw string) Audience {
	switch normalize(raw) {
	case "", "everyone", "all":
		return AudienceAll
	case "only_paid", "paid", "only paid":
		return AudiencePaid
	case "only_free", "free", "only free":
		return AudienceFree
	default:
		return AudienceOther
	}
}

// Post is one row per published, emailed post. Static reference data for
// the analysis period.
type Post struct {
	PostID   int64     `json:"post_id"`
	Title    string    `json:"title"`
	PostDate time.Time `json:"post_date"`
	Audience Audience  `json:"audience"`
	Type     string    `json:"type"`
	// CanonicalURL is filled by the optional feed enricher; empty when the
	// publication feed was not fetched or the post had no feed match.
	CanonicalURL string `json:"canonical_url,omitempty"`
}

// OpenEvent is one row per (subscriber, post) open. Multiple rows per pair
// are possible (re-opens); counting code must dedupe by (email, post_id).
type OpenEvent struct {
	Email     string    `json:"email"`
	PostID    int64     `json:"post_id"`
	Timestamp time.Time `json:"timestamp"`
}

// DeliverEvent is one row per (subscriber, post) delivery. A post's
// delivered count is the unique-email count of its rows, not the row count.
type DeliverEvent struct {
	Email     string    `json:"email"`
	PostID    int64     `json:"post_id"`
	Timestamp time.Time `json:"timestamp"`
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
