// Package loader parses a newsletter export directory into the in-memory
// record tables. An export holds email_list*.csv, posts.csv, per-post event
// files under posts/, and optionally subscriber_details.csv.
package loader

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ignite/subscriber-analytics/internal/domain"
)

// emailListPatterns are the filename globs tried, in order, to locate the
// subscriber list. Exports name it inconsistently across versions.
var emailListPatterns = []string{"email_list*.csv", "email-list*.csv", "subscribers*.csv"}

// Load reads every table of the export directory. The subscriber list and
// posts.csv are required; event files and subscriber_details.csv are
// optional. All timestamps are normalized to UTC.
func Load(dir string) (*domain.Dataset, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("open export directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("open export directory: %s is not a directory", dir)
	}

	subscribers, err := LoadSubscribers(dir)
	if err != nil {
		return nil, err
	}
	log.Printf("Loaded %d subscribers", len(subscribers))

	posts, err := LoadPosts(dir)
	if err != nil {
		return nil, err
	}
	log.Printf("Loaded %d published posts", len(posts))

	opens, delivers, err := LoadEngagement(dir)
	if err != nil {
		return nil, err
	}
	log.Printf("Loaded %d open events, %d delivery events", len(opens), len(delivers))

	details, err := LoadSubscriberDetails(dir)
	if err != nil {
		return nil, err
	}
	if len(details) > 0 {
		log.Printf("Loaded %d subscriber detail records", len(details))
	}

	return &domain.Dataset{
		Subscribers: subscribers,
		Details:     details,
		Posts:       posts,
		Opens:       opens,
		Delivers:    delivers,
	}, nil
}

// FindEmailListFile locates the subscriber list CSV in dir, trying each
// known naming pattern in order. Returns "" when none match.
func FindEmailListFile(dir string) string {
	for _, pattern := range emailListPatterns {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err == nil && len(matches) > 0 {
			return matches[0]
		}
	}
	return ""
}

// LoadSubscribers reads the subscriber list.
func LoadSubscribers(dir string) ([]domain.Subscriber, error) {
	path := FindEmailListFile(dir)
	if path == "" {
		return nil, fmt.Errorf("no email list file found in %s (expected email_list*.csv)", dir)
	}

	rows, header, err := readCSV(path)
	if err != nil {
		return nil, fmt.Errorf("read email list: %w", err)
	}
	if _, ok := header["email"]; !ok {
		return nil, fmt.Errorf("read email list: %s has no email column", filepath.Base(path))
	}

	subscribers := make([]domain.Subscriber, 0, len(rows))
	for i, row := range rows {
		email := strings.TrimSpace(field(row, header, "email"))
		if email == "" {
			continue
		}

		createdAt, ok := parseTime(field(row, header, "created_at"))
		if !ok {
			return nil, fmt.Errorf("read email list: row %d (%s): unparseable created_at %q",
				i+2, email, field(row, header, "created_at"))
		}

		s := domain.Subscriber{
			Email:              email,
			CreatedAt:          createdAt,
			Plan:               domain.ParsePlan(field(row, header, "plan")),
			EmailDisabled:      parseBool(field(row, header, "email_disabled")),
			ActiveSubscription: parseBool(field(row, header, "active_subscription")),
		}
		if ts, ok := parseTime(field(row, header, "first_payment_at")); ok {
			s.FirstPaymentAt = &ts
		}
		if ts, ok := parseTime(field(row, header, "expiry")); ok {
			s.Expiry = &ts
		}
		subscribers = append(subscribers, s)
	}
	return subscribers, nil
}

// LoadPosts reads posts.csv, keeping only published posts. The export's
// post_id column is a composite "id.slug" string; only the numeric prefix
// is kept.
func LoadPosts(dir string) ([]domain.Post, error) {
	path := filepath.Join(dir, "posts.csv")
	rows, header, err := readCSV(path)
	if err != nil {
		return nil, fmt.Errorf("read posts.csv: %w", err)
	}
	if _, ok := header["post_id"]; !ok {
		return nil, fmt.Errorf("read posts.csv: no post_id column")
	}

	posts := make([]domain.Post, 0, len(rows))
	for i, row := range rows {
		if !parseBool(field(row, header, "is_published")) {
			continue
		}

		postID, err := ParseCompositePostID(field(row, header, "post_id"))
		if err != nil {
			return nil, fmt.Errorf("read posts.csv: row %d: %w", i+2, err)
		}

		p := domain.Post{
			PostID:   postID,
			Title:    strings.TrimSpace(field(row, header, "title")),
			Audience: domain.ParseAudience(field(row, header, "audience")),
			Type:     strings.TrimSpace(field(row, header, "type")),
		}
		if ts, ok := parseTime(field(row, header, "post_date")); ok {
			p.PostDate = ts
		}
		posts = append(posts, p)
	}
	return posts, nil
}

// ParseCompositePostID extracts the numeric prefix from a composite post id
// like "179800700.my-title-slug".
func ParseCompositePostID(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	prefix, _, _ := strings.Cut(raw, ".")
	id, err := strconv.ParseInt(prefix, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable post id %q", raw)
	}
	return id, nil
}

// LoadEngagement reads every posts/*.opens.csv and posts/*.delivers.csv
// file. Empty or header-only files are skipped. The post id comes from the
// file's post_id column when present, else from the filename prefix.
func LoadEngagement(dir string) ([]domain.OpenEvent, []domain.DeliverEvent, error) {
	postsDir := filepath.Join(dir, "posts")
	if _, err := os.Stat(postsDir); err != nil {
		// No event directory means no events, not a broken export.
		return nil, nil, nil
	}

	var opens []domain.OpenEvent
	openFiles, _ := filepath.Glob(filepath.Join(postsDir, "*.opens.csv"))
	for _, path := range openFiles {
		events, err := loadEventFile(path, ".opens.csv")
		if err != nil {
			return nil, nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
		}
		for _, e := range events {
			opens = append(opens, domain.OpenEvent(e))
		}
	}

	var delivers []domain.DeliverEvent
	deliverFiles, _ := filepath.Glob(filepath.Join(postsDir, "*.delivers.csv"))
	for _, path := range deliverFiles {
		events, err := loadEventFile(path, ".delivers.csv")
		if err != nil {
			return nil, nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
		}
		for _, e := range events {
			delivers = append(delivers, domain.DeliverEvent(e))
		}
	}
	return opens, delivers, nil
}

type rawEvent struct {
	Email     string
	PostID    int64
	Timestamp time.Time
}

func loadEventFile(path, suffix string) ([]rawEvent, error) {
	rows, header, err := readCSV(path)
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	// Filename like "179800700.slug.opens.csv": the numeric prefix is the
	// post id fallback when the column is absent.
	var filePostID int64
	base := strings.TrimSuffix(filepath.Base(path), suffix)
	if id, err := ParseCompositePostID(base); err == nil {
		filePostID = id
	}

	events := make([]rawEvent, 0, len(rows))
	for _, row := range rows {
		email := strings.TrimSpace(field(row, header, "email"))
		if email == "" {
			continue
		}

		postID := filePostID
		if raw := field(row, header, "post_id"); raw != "" {
			if id, err := ParseCompositePostID(raw); err == nil {
				postID = id
			}
		}

		ts, _ := parseTime(field(row, header, "timestamp"))
		events = append(events, rawEvent{Email: email, PostID: postID, Timestamp: ts})
	}
	return events, nil
}

// readCSV reads a whole CSV file into rows plus a lowercased header index.
// An empty file returns io.EOF.
func readCSV(path string) ([][]string, map[string]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	headerRow, err := r.Read()
	if err != nil {
		return nil, nil, err
	}
	header := make(map[string]int, len(headerRow))
	for i, name := range headerRow {
		header[strings.ToLower(strings.TrimSpace(name))] = i
	}

	var rows [][]string
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		rows = append(rows, row)
	}
	return rows, header, nil
}

// field returns the named column of a row, "" when the column is absent or
// the row is short.
func field(row []string, header map[string]int, name string) string {
	idx, ok := header[name]
	if !ok || idx >= len(row) {
		return ""
	}
	return row[idx]
}

// timeLayouts are tried in order. Exports have shipped all of these.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999-07",
	"2006-01-02 15:04:05.999999 MST",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTime parses a timestamp in any known export layout and normalizes it
// to UTC. Empty or unparseable input returns ok=false.
func parseTime(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}

func parseBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "t", "1", "yes":
		return true
	}
	return false
}
