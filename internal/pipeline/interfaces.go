package pipeline

import (
	"context"
	"time"

	"github.com/event-harvester/internal/models"
)

// ChatClient is the slice of the messaging gateway the pipeline consumes
type ChatClient interface {
	FetchMessages(ctx context.Context, chatID int64, afterID int64) ([]models.Message, error)
	DownloadMedia(ctx context.Context, ref string) ([]byte, error)
}

// Extractor turns combined announcement text plus flyer images into
// structured event fields
type Extractor interface {
	Extract(ctx context.Context, text string, referenceDate time.Time, images [][]byte) (*models.Fields, error)
}

// Uploader stores an image under the event slug and fingerprint token
type Uploader interface {
	Upload(ctx context.Context, data []byte, slug, fingerprintToken string) (string, error)
}

// Merger reconciles a fresh candidate with the persisted event that
// already owns the same slug
type Merger interface {
	MergeBySlug(ctx context.Context, existing *models.Event, candidate *models.Event) (*models.Event, error)
}

// Store is the slice of the event store the pipeline writes through
type Store interface {
	FindEventBySlug(ctx context.Context, slug string) (*models.Event, error)
	CreateEvent(ctx context.Context, event *models.Event) error
	UpdateSource(ctx context.Context, source *models.Source) error
}
