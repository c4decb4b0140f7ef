package feed

import (
	"context"
	"fmt"

	"github.com/event-harvester/internal/models"
	"github.com/event-harvester/pkg/logger"
)

// Store is the slice of the event store the ingestor writes through
type Store interface {
	FindEventBySlug(ctx context.Context, slug string) (*models.Event, error)
	CreateEvent(ctx context.Context, event *models.Event) error
}

// Merger reconciles a feed event with the persisted event owning the
// same slug
type Merger interface {
	MergeBySlug(ctx context.Context, existing *models.Event, candidate *models.Event) (*models.Event, error)
}

// Stats summarizes one ingestion run across all feeds
type Stats struct {
	Feeds   int
	Failed  int
	Created int
	Merged  int
}

// Ingestor polls all configured feeds and persists their events. A
// failing feed is logged and counted; the remaining feeds still run.
type Ingestor struct {
	sources []*Source
	store   Store
	merger  Merger
	log     *logger.Logger
}

// NewIngestor creates a feed ingestor over the given sources
func NewIngestor(sources []*Source, store Store, merger Merger, log *logger.Logger) *Ingestor {
	return &Ingestor{
		sources: sources,
		store:   store,
		merger:  merger,
		log:     log.WithComponent("feed-ingest"),
	}
}

// Run fetches every feed and upserts its events by slug
func (i *Ingestor) Run(ctx context.Context) (*Stats, error) {
	stats := &Stats{Feeds: len(i.sources)}

	for _, src := range i.sources {
		events, err := src.Fetch(ctx)
		if err != nil {
			stats.Failed++
			i.log.Error().Err(err).Str("feed", src.Name()).Msg("Feed fetch failed")
			continue
		}
		for _, event := range events {
			if err := i.persist(ctx, event, stats); err != nil {
				return stats, err
			}
		}
	}

	i.log.Info().
		Int("feeds", stats.Feeds).
		Int("created", stats.Created).
		Int("merged", stats.Merged).
		Int("failed", stats.Failed).
		Msg("Feed ingestion completed")
	return stats, nil
}

func (i *Ingestor) persist(ctx context.Context, event *models.Event, stats *Stats) error {
	existing, err := i.store.FindEventBySlug(ctx, event.Slug)
	if err != nil {
		return fmt.Errorf("lookup slug %s: %w", event.Slug, err)
	}
	if existing == nil {
		if err := i.store.CreateEvent(ctx, event); err != nil {
			return fmt.Errorf("create event %s: %w", event.Slug, err)
		}
		stats.Created++
		return nil
	}
	if _, err := i.merger.MergeBySlug(ctx, existing, event); err != nil {
		return fmt.Errorf("merge into %s: %w", event.Slug, err)
	}
	stats.Merged++
	return nil
}
