package loader

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/subscriber-analytics/internal/domain"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func writeExport(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	writeFile(t, filepath.Join(dir, "email_list_export.csv"),
		"email,created_at,first_payment_at,expiry,plan,email_disabled,active_subscription\n"+
			"a@x.com,2025-01-01T10:00:00+02:00,2025-02-01T00:00:00Z,,monthly,false,true\n"+
			"b@x.com,2025-03-05,,,,true,false\n"+
			",2025-03-05,,,,,\n") // blank email dropped

	writeFile(t, filepath.Join(dir, "posts.csv"),
		"post_id,title,post_date,is_published,audience,type\n"+
			"179800700.first-post,First Post,2025-02-01,true,everyone,newsletter\n"+
			"179800701.draft,Draft,2025-02-02,false,everyone,newsletter\n")

	writeFile(t, filepath.Join(dir, "posts", "179800700.first-post.opens.csv"),
		"email,timestamp\n"+
			"a@x.com,2025-02-01T12:00:00Z\n"+
			"b@x.com,2025-02-01T13:00:00Z\n")
	writeFile(t, filepath.Join(dir, "posts", "179800700.first-post.delivers.csv"),
		"email,timestamp\n"+
			"a@x.com,2025-02-01T11:00:00Z\n"+
			"b@x.com,2025-02-01T11:00:00Z\n")
	// Header-only file must be skipped, not fail the load.
	writeFile(t, filepath.Join(dir, "posts", "179800702.empty.opens.csv"), "email,timestamp\n")

	return dir
}

func TestLoad(t *testing.T) {
	dir := writeExport(t)

	ds, err := Load(dir)
	require.NoError(t, err)

	require.Len(t, ds.Subscribers, 2)
	a := ds.Subscribers[0]
	assert.Equal(t, "a@x.com", a.Email)
	// Offset timestamps are normalized to UTC.
	assert.Equal(t, time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC), a.CreatedAt)
	require.NotNil(t, a.FirstPaymentAt)
	assert.Nil(t, a.Expiry)
	assert.Equal(t, domain.PlanMonthly, a.Plan)
	assert.True(t, a.ActiveSubscription)
	assert.True(t, ds.Subscribers[1].EmailDisabled)

	// Unpublished posts are filtered; composite ids lose their slug.
	require.Len(t, ds.Posts, 1)
	assert.Equal(t, int64(179800700), ds.Posts[0].PostID)
	assert.Equal(t, "First Post", ds.Posts[0].Title)
	assert.Equal(t, domain.AudienceAll, ds.Posts[0].Audience)

	require.Len(t, ds.Opens, 2)
	assert.Equal(t, int64(179800700), ds.Opens[0].PostID)
	require.Len(t, ds.Delivers, 2)
	assert.False(t, ds.HasDetails())
}

func TestLoadMissingEmailList(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "posts.csv"), "post_id,title,is_published\n")

	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no email list file found")
}

func TestLoadMissingDirectory(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}

func TestFindEmailListFilePatterns(t *testing.T) {
	for _, name := range []string{"email_list.csv", "email-list-2025.csv", "subscribers_full.csv"} {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, filepath.Join(dir, name), "email,created_at\n")
			assert.Equal(t, filepath.Join(dir, name), FindEmailListFile(dir))
		})
	}
	assert.Empty(t, FindEmailListFile(t.TempDir()))
}

func TestParseCompositePostID(t *testing.T) {
	id, err := ParseCompositePostID("179800700.my-title-slug")
	require.NoError(t, err)
	assert.Equal(t, int64(179800700), id)

	id, err = ParseCompositePostID("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	_, err = ParseCompositePostID("not-a-number.slug")
	assert.Error(t, err)
}

func TestLoadSubscribersBadCreatedAt(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "email_list.csv"),
		"email,created_at\na@x.com,not-a-date\n")

	_, err := LoadSubscribers(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unparseable created_at")
}

func TestLoadEngagementWithoutPostsDir(t *testing.T) {
	opens, delivers, err := LoadEngagement(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, opens)
	assert.Empty(t, delivers)
}

func TestLoadSubscriberDetails(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "subscriber_details.csv"),
		"Email,Name,Start date,Emails received (6mo),num_emails_opened,Emails opened (6mo),Last email open,Links clicked,Revenue,Type\n"+
			"a@x.com,Ann,2024-06-01,24,40,12,2025-06-20T08:00:00Z,3,\"$1,234.50\",Subscriber\n"+
			"b@x.com,Ben,2025-01-15,,0,0,,0,,Free\n")

	details, err := LoadSubscriberDetails(dir)
	require.NoError(t, err)
	require.Len(t, details, 2)

	a := details[0]
	require.NotNil(t, a.EmailsReceived6Mo)
	assert.Equal(t, 24, *a.EmailsReceived6Mo)
	assert.Equal(t, 40, a.TotalEmailsOpened)
	assert.InDelta(t, 1234.50, a.Revenue, 1e-9)
	assert.True(t, a.IsPaid())
	require.NotNil(t, a.LastEmailOpen)

	// A blank received count stays nil: missing tracking data, not zero.
	b := details[1]
	assert.Nil(t, b.EmailsReceived6Mo)
	assert.True(t, b.IsFree())
}

func TestLoadSubscriberDetailsMissingFile(t *testing.T) {
	details, err := LoadSubscriberDetails(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, details)
}

func TestParseRevenue(t *testing.T) {
	assert.InDelta(t, 1234.5, parseRevenue("$1,234.50"), 1e-9)
	assert.InDelta(t, 12.0, parseRevenue("€12.00"), 1e-9)
	assert.Zero(t, parseRevenue(""))
	assert.Zero(t, parseRevenue("n/a"))
}
