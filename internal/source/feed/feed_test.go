package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/event-harvester/internal/models"
	"github.com/event-harvester/pkg/logger"
	"github.com/event-harvester/pkg/ratelimit"
)

var feedNow = time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

func rssDoc(items string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Stadtportal Events</title>` + items + `</channel></rss>`
}

func rssItem(title, link, pubDate, category string) string {
	return fmt.Sprintf(
		`<item><title>%s</title><link>%s</link><pubDate>%s</pubDate><category>%s</category><description>Doors open 19:00</description></item>`,
		title, link, pubDate, category,
	)
}

func serveFeed(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestSource(t *testing.T, url string) *Source {
	t.Helper()
	s := New(Feed{Name: "stadtportal-feed", URL: url, Website: "stadtportal"}, ratelimit.NewDefaultLimiter(), logger.Default())
	s.now = func() time.Time { return feedNow }
	return s
}

func TestFetchConvertsUpcomingItems(t *testing.T) {
	upcoming := feedNow.Add(10 * 24 * time.Hour)
	srv := serveFeed(t, rssDoc(
		rssItem("Jazz &lt;b&gt;Night&lt;/b&gt;", "https://stadtportal.example/jazz", upcoming.Format(time.RFC1123Z), "music")+
			rssItem("Old Concert", "https://stadtportal.example/old", feedNow.Add(-24*time.Hour).Format(time.RFC1123Z), "music")+
			`<item><title>Undated Post</title><link>https://stadtportal.example/post</link></item>`,
	))

	events, err := newTestSource(t, srv.URL).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1, "past and undated items are dropped")

	event := events[0]
	assert.Equal(t, "Jazz Night", event.Name, "markup stripped from the title")
	assert.Equal(t, "2026-09-11-jazz-night", event.Slug)
	assert.True(t, event.StartAt.Equal(upcoming))
	assert.Equal(t, "stadtportal", event.Source)
	assert.False(t, event.IsChatSourced())
	assert.Equal(t, models.StringSlice{"stadtportal-feed"}, event.Rooms)
	assert.Equal(t, models.StringSlice{"music"}, event.Tags)
	assert.Equal(t, "https://stadtportal.example/jazz", event.Contact)
	assert.Equal(t, "Doors open 19:00", event.Description)
}

func TestFetchUnreachableFeed(t *testing.T) {
	srv := serveFeed(t, "not a feed at all")
	_, err := newTestSource(t, srv.URL).Fetch(context.Background())
	assert.Error(t, err)
}

func TestWebsiteDefaultsToName(t *testing.T) {
	s := New(Feed{Name: "kultur", URL: "https://example.com/feed"}, ratelimit.NewDefaultLimiter(), logger.Default())
	assert.Equal(t, "kultur", s.Website())
}

type memStore struct {
	events    map[string]*models.Event
	createErr error
}

func (m *memStore) FindEventBySlug(_ context.Context, slug string) (*models.Event, error) {
	return m.events[slug], nil
}

func (m *memStore) CreateEvent(_ context.Context, event *models.Event) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.events[event.Slug] = event
	return nil
}

type memMerger struct {
	merges int
}

func (m *memMerger) MergeBySlug(_ context.Context, existing *models.Event, _ *models.Event) (*models.Event, error) {
	m.merges++
	return existing, nil
}

func TestIngestorUpsertsBySlug(t *testing.T) {
	upcoming := feedNow.Add(5 * 24 * time.Hour)
	srv := serveFeed(t, rssDoc(
		rssItem("Jazz Night", "https://stadtportal.example/jazz", upcoming.Format(time.RFC1123Z), "music")+
			rssItem("Open Stage", "https://stadtportal.example/stage", upcoming.Format(time.RFC1123Z), "music"),
	))

	store := &memStore{events: map[string]*models.Event{
		"2026-09-06-jazz-night": {ID: 1, Slug: "2026-09-06-jazz-night", Name: "Jazz Night"},
	}}
	merger := &memMerger{}
	ingestor := NewIngestor([]*Source{newTestSource(t, srv.URL)}, store, merger, logger.Default())

	stats, err := ingestor.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Feeds)
	assert.Equal(t, 1, stats.Created)
	assert.Equal(t, 1, stats.Merged)
	assert.Zero(t, stats.Failed)
	assert.Equal(t, 1, merger.merges)
	assert.Contains(t, store.events, "2026-09-06-open-stage")
}

func TestIngestorSurvivesFailingFeed(t *testing.T) {
	good := serveFeed(t, rssDoc(rssItem("Jazz Night", "https://x.example/jazz", feedNow.Add(time.Hour).Format(time.RFC1123Z), "music")))
	bad := serveFeed(t, "garbage")

	store := &memStore{events: map[string]*models.Event{}}
	ingestor := NewIngestor(
		[]*Source{newTestSource(t, bad.URL), newTestSource(t, good.URL)},
		store, &memMerger{}, logger.Default(),
	)

	stats, err := ingestor.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.Created)
}
