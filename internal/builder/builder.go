// Package builder turns extracted event fields plus correlator output
// into a validated draft event record.
package builder

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/event-harvester/internal/geo"
	"github.com/event-harvester/internal/models"
	"github.com/event-harvester/pkg/logger"
)

// ErrSkip is the base class of all "no candidate" outcomes. A skip is
// not a failure: the message simply does not yield a usable event and
// the pipeline moves on.
var ErrSkip = errors.New("no candidate")

var (
	ErrCanonicalSource = fmt.Errorf("content tracked at its canonical source: %w", ErrSkip)
	ErrNoEventData     = fmt.Errorf("no event data found: %w", ErrSkip)
	ErrNoName          = fmt.Errorf("missing event name: %w", ErrSkip)
	ErrNoStart         = fmt.Errorf("missing start date: %w", ErrSkip)
	ErrStartInPast     = fmt.Errorf("start date in the past: %w", ErrSkip)
	ErrNoAddress       = fmt.Errorf("no address and source has no default: %w", ErrSkip)
	ErrNoContact       = fmt.Errorf("author has no resolvable handle: %w", ErrSkip)
)

// Candidate is a draft event together with every message ID consumed to
// produce it (trigger plus correlated), so the caller can mark them all
// as processed.
type Candidate struct {
	Event       models.Event
	ConsumedIDs []int64
}

// Input carries everything one trigger message produced
type Input struct {
	Fields      models.Fields
	Description string // rendered markup of the combined text
	Trigger     models.Message
	Source      *models.Source
	AdjacentIDs []int64
}

// Builder validates extraction output and constructs event candidates
type Builder struct {
	geocoder geo.Geocoder
	log      *logger.Logger
	now      func() time.Time
}

// New creates a new candidate builder
func New(geocoder geo.Geocoder, log *logger.Logger) *Builder {
	return &Builder{
		geocoder: geocoder,
		log:      log.WithComponent("builder"),
		now:      time.Now,
	}
}

// Build validates the extracted fields in order, short-circuiting on the
// first skip condition, then assembles the draft event. Every returned
// error wraps ErrSkip except genuine collaborator failures.
func (b *Builder) Build(ctx context.Context, in Input) (*Candidate, error) {
	f := in.Fields

	if f.CanonicalSource != "" {
		return nil, fmt.Errorf("%q: %w", f.CanonicalSource, ErrCanonicalSource)
	}
	if !f.HasEventData {
		return nil, ErrNoEventData
	}
	if f.Name == "" {
		return nil, ErrNoName
	}
	if f.StartAt == nil {
		return nil, ErrNoStart
	}
	if f.StartAt.Before(b.now()) {
		return nil, fmt.Errorf("%s: %w", f.StartAt.Format(time.RFC3339), ErrStartInPast)
	}

	address := f.AddressLines()
	if len(address) == 0 {
		address = in.Source.DefaultAddress
	}
	if len(address) == 0 {
		return nil, ErrNoAddress
	}

	event := models.Event{
		Slug:        Slug(f.Name, *f.StartAt, f.EndAt),
		Name:        f.Name,
		Description: in.Description,
		Summary:     f.Summary,
		StartAt:     *f.StartAt,
		EndAt:       f.EndAt,
		Address:     address,
		Price:       f.Price,
		Tags:        f.Tags,
		Source:      fmt.Sprintf("%s%d", models.ChatSourcePrefix, in.Source.ChatID),
		Rooms:       models.StringSlice{in.Source.Name},
	}

	if point, err := b.geocoder.Geocode(ctx, address); err != nil {
		b.log.Warn().Err(err).Strs("address", address).Msg("Geocoding failed, keeping event without coordinates")
	} else if point != nil {
		event.Lat = &point.Lat
		event.Lng = &point.Lng
	}

	contact, err := b.resolveContact(f, in.Trigger.Author)
	if err != nil {
		return nil, err
	}
	event.Contact = contact

	event.HostName = in.Trigger.Author.DisplayName
	event.HostLink = authorLink(in.Trigger.Author)

	consumed := append([]int64{in.Trigger.ID}, in.AdjacentIDs...)
	sort.Slice(consumed, func(i, j int) bool { return consumed[i] < consumed[j] })

	return &Candidate{Event: event, ConsumedIDs: consumed}, nil
}

// resolveContact picks the canonical contact link: an explicit contact
// string normalized, or the author's own profile link when the
// announcement says to ask the author.
func (b *Builder) resolveContact(f models.Fields, author models.Author) (string, error) {
	if f.ContactIsAuthor {
		if author.Handle == "" {
			return "", ErrNoContact
		}
		return "https://t.me/" + author.Handle, nil
	}
	return NormalizeContact(f.Contact), nil
}

func authorLink(a models.Author) string {
	if a.Handle != "" {
		return "https://t.me/" + a.Handle
	}
	if a.ID != 0 {
		return fmt.Sprintf("tg://user?id=%d", a.ID)
	}
	return ""
}
