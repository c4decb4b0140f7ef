package storage

import (
	"context"
	"time"

	"github.com/event-harvester/internal/models"
)

// Repository defines the interface for data persistence.
// Lookup methods that take a key return (nil, nil) when no record exists.
type Repository interface {
	// Source operations
	CreateSource(ctx context.Context, source *models.Source) error
	GetSourceByChatID(ctx context.Context, chatID int64) (*models.Source, error)
	ListSources(ctx context.Context) ([]*models.Source, error)
	UpdateSource(ctx context.Context, source *models.Source) error

	// Event operations
	CreateEvent(ctx context.Context, event *models.Event) error
	FindEventByID(ctx context.Context, id uint) (*models.Event, error)
	FindEventBySlug(ctx context.Context, slug string) (*models.Event, error)
	ListEvents(ctx context.Context, filter EventFilter) ([]*models.Event, error)
	UpdateEvent(ctx context.Context, event *models.Event) error
	DeleteEvent(ctx context.Context, id uint) error

	// Bulk queries for the batch dedup pass
	FindEventsWithImages(ctx context.Context) ([]*models.Event, error)
	FindSharedStartTimes(ctx context.Context) ([]time.Time, error)
	FindEventsByStartAt(ctx context.Context, start time.Time) ([]*models.Event, error)

	// AllImageURLs returns every image URL referenced by any event,
	// used by the unused-image cleanup job
	AllImageURLs(ctx context.Context) ([]string, error)

	// Maintenance
	Close() error
	Migrate() error
}

// EventFilter defines filtering options for event listings
type EventFilter struct {
	Source    *string
	Tag       *string
	From      *time.Time
	Until     *time.Time
	Limit     int
	Offset    int
	OrderBy   string // "start_at", "created_at"
	OrderDesc bool
}

// DefaultEventFilter returns a filter with sensible defaults
func DefaultEventFilter() EventFilter {
	return EventFilter{
		Limit:   100,
		OrderBy: "start_at",
	}
}
