package domain

import (
	"strings"
	"time"
)

// SubscriberDetail is the optional enriched subscriber record
// (subscriber_details.csv), keyed by email, 1:0-or-1 with Subscriber.
// Counts are lifetime totals unless suffixed with a window.
type SubscriberDetail struct {
	Email     string     `json:"email"`
	Name      string     `json:"name,omitempty"`
	StartDate *time.Time `json:"start_date,omitempty"`

	// EmailsReceived6Mo is a pointer because the export distinguishes
	// "no tracking data" (missing) from a genuine zero; the list-cleaning
	// pre-filter drops both but reports them as a tracking exclusion.
	EmailsReceived6Mo *int `json:"emails_received_6mo,omitempty"`
	EmailsDropped6Mo  int  `json:"emails_dropped_6mo"`

	TotalEmailsOpened int        `json:"total_emails_opened"`
	EmailsOpened6Mo   int        `json:"emails_opened_6mo"`
	EmailsOpened30d   int        `json:"emails_opened_30d"`
	EmailsOpened7d    int        `json:"emails_opened_7d"`
	LastEmailOpen     *time.Time `json:"last_email_open,omitempty"`

	LinksClicked int `json:"links_clicked"`
	PostViews    int `json:"post_views"`
	PostViews30d int `json:"post_views_30d"`
	Comments     int `json:"comments"`
	Comments30d  int `json:"comments_30d"`
	Shares       int `json:"shares"`
	Shares30d    int `json:"shares_30d"`

	Country        string  `json:"country,omitempty"`
	SourceFree     string  `json:"source_free,omitempty"`
	SourcePaid     string  `json:"source_paid,omitempty"`
	SubscriberType string  `json:"subscriber_type"`
	Revenue        float64 `json:"revenue"`
}

// IsPaid reports whether the detail record belongs to a paying subscriber.
// The export uses "Subscriber" (optionally qualified) for paid and "Free"
// for free signups.
func (d *SubscriberDetail) IsPaid() bool {
	return strings.Contains(strings.ToLower(d.SubscriberType), "subscriber")
}

// IsFree reports whether the record is a free signup.
func (d *SubscriberDetail) IsFree() bool {
	return strings.EqualFold(strings.TrimSpace(d.SubscriberType), "free")
}

// HasOpened reports whether the subscriber ever opened an email.
func (d *SubscriberDetail) HasOpened() bool { return d.TotalEmailsOpened > 0 }

// IsEngaged30d reports whether the subscriber opened any email in the last
// 30 days of the export window.
func (d *SubscriberDetail) IsEngaged30d() bool { return d.EmailsOpened30d > 0 }

// OpenRate6Mo is opened/received over the 6-month window, 0 when the
// received count is missing or zero.
func (d *SubscriberDetail) OpenRate6Mo() float64 {
	if d.EmailsReceived6Mo == nil || *d.EmailsReceived6Mo == 0 {
		return 0
	}
	return float64(d.EmailsOpened6Mo) / float64(*d.EmailsReceived6Mo)
}

// DeliverabilityRate is 1 - dropped/(received+dropped), 1 when there is no
// delivery signal at all.
func (d *SubscriberDetail) DeliverabilityRate() float64 {
	received := 0
	if d.EmailsReceived6Mo != nil {
		received = *d.EmailsReceived6Mo
	}
	total := received + d.EmailsDropped6Mo
	if total == 0 {
		return 1
	}
	return 1 - float64(d.EmailsDropped6Mo)/float64(total)
}

// OtherEngagement reports engagement signals outside email opens: clicks,
// comments, shares, or post views. Used as a data-quality check on
// never-opened subscribers.
func (d *SubscriberDetail) OtherEngagement() bool {
	return d.LinksClicked > 0 || d.Comments > 0 || d.Shares > 0 || d.PostViews > 0
}
