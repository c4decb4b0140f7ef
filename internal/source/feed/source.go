// Package feed ingests website event feeds. Feed items become events
// with a website source identifier, so they take part in merge priority
// as website scrapes rather than chat announcements.
package feed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/event-harvester/internal/builder"
	"github.com/event-harvester/internal/models"
	"github.com/event-harvester/pkg/logger"
	"github.com/event-harvester/pkg/ratelimit"
)

// Feed describes one website feed to poll
type Feed struct {
	Name    string // Display name, lands in Event.Rooms
	URL     string // RSS or Atom feed URL
	Website string // Source identifier used for merge priority ranking
}

// Source polls a single website feed
type Source struct {
	feed    Feed
	parser  *gofeed.Parser
	limiter *ratelimit.MultiLimiter
	log     *logger.Logger
	now     func() time.Time
}

// New creates a feed source
func New(feed Feed, limiter *ratelimit.MultiLimiter, log *logger.Logger) *Source {
	if feed.Website == "" {
		feed.Website = feed.Name
	}
	return &Source{
		feed:    feed,
		parser:  gofeed.NewParser(),
		limiter: limiter,
		log:     log.WithComponent("feed").WithFeed(feed.Name),
		now:     time.Now,
	}
}

// NewMultiple creates feed sources from config entries
func NewMultiple(feeds []Feed, limiter *ratelimit.MultiLimiter, log *logger.Logger) []*Source {
	sources := make([]*Source, 0, len(feeds))
	for _, f := range feeds {
		sources = append(sources, New(f, limiter, log))
	}
	return sources
}

// Name returns the feed's display name
func (s *Source) Name() string {
	return s.feed.Name
}

// Website returns the feed's source identifier
func (s *Source) Website() string {
	return s.feed.Website
}

// Fetch polls the feed and converts upcoming items to draft events.
// Items without a parsable date, or dated in the past, are dropped:
// archives and news posts are not events to ingest.
func (s *Source) Fetch(ctx context.Context) ([]*models.Event, error) {
	if err := s.limiter.Wait(ctx, ratelimit.LimiterFeeds); err != nil {
		return nil, err
	}

	parsed, err := s.parser.ParseURLWithContext(s.feed.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", s.feed.Name, err)
	}

	now := s.now()
	events := make([]*models.Event, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		event, ok := s.convert(item, now)
		if !ok {
			continue
		}
		events = append(events, event)
	}

	s.log.Info().Int("items", len(parsed.Items)).Int("events", len(events)).Msg("Fetched feed")
	return events, nil
}

// HealthCheck verifies the feed is reachable and parses
func (s *Source) HealthCheck(ctx context.Context) error {
	_, err := s.parser.ParseURLWithContext(s.feed.URL, ctx)
	return err
}

// convert maps one feed item to an event. Event portals publish items
// dated with the event's start; pubDate doubles as the start timestamp.
func (s *Source) convert(item *gofeed.Item, now time.Time) (*models.Event, bool) {
	name := cleanText(item.Title)
	if name == "" {
		return nil, false
	}
	if item.PublishedParsed == nil {
		s.log.Debug().Str("title", name).Msg("Item has no date, dropping")
		return nil, false
	}
	start := item.PublishedParsed.UTC()
	if start.Before(now) {
		return nil, false
	}

	event := &models.Event{
		Slug:        builder.Slug(name, start, nil),
		Name:        name,
		Description: strings.TrimSpace(item.Description),
		StartAt:     start,
		Contact:     item.Link,
		Tags:        models.StringSlice(item.Categories),
		Source:      s.feed.Website,
		Rooms:       models.StringSlice{s.feed.Name},
	}
	if item.Image != nil && item.Image.URL != "" {
		event.ImageURLs = models.StringSlice{item.Image.URL}
	}
	return event, true
}

// cleanText strips markup and collapses whitespace in feed titles
func cleanText(text string) string {
	var b strings.Builder
	inTag := false
	for _, r := range text {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
