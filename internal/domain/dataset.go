package domain

// Dataset bundles the five record tables for one analysis run. The loader
// produces it; the engines read it and never retain references between
// calls.
type Dataset struct {
	Subscribers []Subscriber       `json:"subscribers"`
	Details     []SubscriberDetail `json:"subscriber_details"`
	Posts       []Post             `json:"posts"`
	Opens       []OpenEvent        `json:"opens"`
	Delivers    []DeliverEvent     `json:"delivers"`
}

// HasDetails reports whether the optional enriched detail table is present.
func (d *Dataset) HasDetails() bool { return len(d.Details) > 0 }

// HasEngagement reports whether any open or deliver events were loaded.
func (d *Dataset) HasEngagement() bool { return len(d.Opens) > 0 || len(d.Delivers) > 0 }
