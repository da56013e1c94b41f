package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ignite/subscriber-analytics/internal/domain"
)

// LoadSubscriberDetails reads the optional subscriber_details.csv. A
// missing file returns an empty table, not an error. The export uses
// display-style column headers ("Emails received (6mo)"); readCSV has
// already lowercased them.
func LoadSubscriberDetails(dir string) ([]domain.SubscriberDetail, error) {
	path := filepath.Join(dir, "subscriber_details.csv")
	if _, err := os.Stat(path); err != nil {
		return nil, nil
	}

	rows, header, err := readCSV(path)
	if err != nil {
		return nil, fmt.Errorf("read subscriber_details.csv: %w", err)
	}
	if _, ok := header["email"]; !ok {
		return nil, fmt.Errorf("read subscriber_details.csv: no Email column")
	}

	details := make([]domain.SubscriberDetail, 0, len(rows))
	for _, row := range rows {
		email := strings.TrimSpace(field(row, header, "email"))
		if email == "" {
			continue
		}

		d := domain.SubscriberDetail{
			Email:             email,
			Name:              strings.TrimSpace(field(row, header, "name")),
			EmailsDropped6Mo:  parseInt(field(row, header, "emails dropped (6mo)")),
			TotalEmailsOpened: parseInt(field(row, header, "num_emails_opened")),
			EmailsOpened6Mo:   parseInt(field(row, header, "emails opened (6mo)")),
			EmailsOpened30d:   parseInt(field(row, header, "emails opened (30d)")),
			EmailsOpened7d:    parseInt(field(row, header, "emails opened (7d)")),
			LinksClicked:      parseInt(field(row, header, "links clicked")),
			PostViews:         parseInt(field(row, header, "post views")),
			PostViews30d:      parseInt(field(row, header, "post views (30d)")),
			Comments:          parseInt(field(row, header, "comments")),
			Comments30d:       parseInt(field(row, header, "comments (30d)")),
			Shares:            parseInt(field(row, header, "shares")),
			Shares30d:         parseInt(field(row, header, "shares (30d)")),
			Country:           strings.TrimSpace(field(row, header, "country")),
			SourceFree:        strings.TrimSpace(field(row, header, "subscription source (free)")),
			SourcePaid:        strings.TrimSpace(field(row, header, "subscription source (paid)")),
			SubscriberType:    strings.TrimSpace(field(row, header, "type")),
			Revenue:           parseRevenue(field(row, header, "revenue")),
		}
		// Received count stays nil when the column is blank: downstream
		// list cleaning treats missing tracking data differently from a
		// real zero.
		if raw := strings.TrimSpace(field(row, header, "emails received (6mo)")); raw != "" {
			n := parseInt(raw)
			d.EmailsReceived6Mo = &n
		}
		if ts, ok := parseTime(field(row, header, "start date")); ok {
			d.StartDate = &ts
		}
		if ts, ok := parseTime(field(row, header, "last email open")); ok {
			d.LastEmailOpen = &ts
		}
		details = append(details, d)
	}
	return details, nil
}

func parseInt(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		// Some exports render counts as floats ("3.0").
		if f, ferr := strconv.ParseFloat(raw, 64); ferr == nil {
			return int(f)
		}
		return 0
	}
	return n
}

// parseRevenue strips currency symbols and thousands separators before
// parsing ("$1,234.50" and "€12.00" both appear in exports).
func parseRevenue(raw string) float64 {
	cleaned := strings.NewReplacer("$", "", "€", "", "£", "", ",", "", " ", "").Replace(raw)
	if cleaned == "" {
		return 0
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return v
}
