package dedup

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/event-harvester/internal/imagehash"
	"github.com/event-harvester/internal/models"
	"github.com/event-harvester/pkg/logger"
)

// Store is the slice of the event store the dedup engine needs.
// FindEventByID returns (nil, nil) when the event no longer exists.
type Store interface {
	FindEventByID(ctx context.Context, id uint) (*models.Event, error)
	FindEventsWithImages(ctx context.Context) ([]*models.Event, error)
	FindSharedStartTimes(ctx context.Context) ([]time.Time, error)
	FindEventsByStartAt(ctx context.Context, start time.Time) ([]*models.Event, error)
	UpdateEvent(ctx context.Context, event *models.Event) error
	DeleteEvent(ctx context.Context, id uint) error
}

// Pair is one duplicate candidate found by a search strategy
type Pair struct {
	AID      uint
	BID      uint
	Score    float64 // similarity for text pairs, Hamming distance for image pairs
	Strategy string  // "image" or "text"
}

// Stats summarizes one batch reconciliation run
type Stats struct {
	ImagePairs int
	TextPairs  int
	Merged     int
	Skipped    int
}

// Engine runs the duplicate search strategies and applies the merge policy
type Engine struct {
	store Store
	cfg   Config
	log   *logger.Logger
}

// NewEngine creates a new dedup engine
func NewEngine(store Store, cfg Config, log *logger.Logger) *Engine {
	return &Engine{
		store: store,
		cfg:   cfg,
		log:   log.WithComponent("dedup"),
	}
}

// FindImageDuplicates flags every pair of events that share a start
// timestamp and carry at least one near-identical image fingerprint.
func (e *Engine) FindImageDuplicates(ctx context.Context) ([]Pair, error) {
	events, err := e.store.FindEventsWithImages(ctx)
	if err != nil {
		return nil, fmt.Errorf("load events with images: %w", err)
	}

	var pairs []Pair
	for _, group := range groupByStart(events) {
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				if dist, ok := closestImageDistance(group[i], group[j]); ok && dist <= e.cfg.ImageThreshold {
					pairs = append(pairs, Pair{
						AID:      group[i].ID,
						BID:      group[j].ID,
						Score:    float64(dist),
						Strategy: "image",
					})
				}
			}
		}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Score < pairs[j].Score })
	return pairs, nil
}

// FindTextDuplicates flags every ordered pair of events sharing a start
// timestamp whose descriptions are similar enough, ranked by score
// descending.
func (e *Engine) FindTextDuplicates(ctx context.Context) ([]Pair, error) {
	starts, err := e.store.FindSharedStartTimes(ctx)
	if err != nil {
		return nil, fmt.Errorf("load shared start times: %w", err)
	}

	var pairs []Pair
	for _, start := range starts {
		group, err := e.store.FindEventsByStartAt(ctx, start)
		if err != nil {
			return nil, fmt.Errorf("load events at %s: %w", start, err)
		}
		sort.Slice(group, func(i, j int) bool { return group[i].ID < group[j].ID })
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				score := Similarity(group[i].Description, group[j].Description)
				if score >= e.cfg.TextThreshold {
					pairs = append(pairs, Pair{
						AID:      group[i].ID,
						BID:      group[j].ID,
						Score:    score,
						Strategy: "text",
					})
				}
			}
		}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Score > pairs[j].Score })
	return pairs, nil
}

// Run executes the batch reconciliation pass: both search strategies
// over the whole store, merge policy applied to every flagged pair.
func (e *Engine) Run(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	imagePairs, err := e.FindImageDuplicates(ctx)
	if err != nil {
		return nil, err
	}
	stats.ImagePairs = len(imagePairs)

	textPairs, err := e.FindTextDuplicates(ctx)
	if err != nil {
		return nil, err
	}
	stats.TextPairs = len(textPairs)

	for _, pair := range append(imagePairs, textPairs...) {
		merged, err := e.apply(ctx, pair)
		if err != nil {
			// Hard stop of this merge only; the pass continues
			e.log.Error().Err(err).
				Uint("a", pair.AID).
				Uint("b", pair.BID).
				Str("strategy", pair.Strategy).
				Msg("Merge aborted")
			stats.Skipped++
			continue
		}
		if merged {
			stats.Merged++
		} else {
			stats.Skipped++
		}
	}

	e.log.Info().
		Int("image_pairs", stats.ImagePairs).
		Int("text_pairs", stats.TextPairs).
		Int("merged", stats.Merged).
		Int("skipped", stats.Skipped).
		Msg("Batch dedup completed")

	return stats, nil
}

// apply re-fetches both sides of a pair and applies the merge policy.
// Events can vanish between search and merge when an earlier pair
// already consumed them; that aborts this merge only.
func (e *Engine) apply(ctx context.Context, pair Pair) (bool, error) {
	a, err := e.store.FindEventByID(ctx, pair.AID)
	if err != nil {
		return false, fmt.Errorf("load event %d: %w", pair.AID, err)
	}
	b, err := e.store.FindEventByID(ctx, pair.BID)
	if err != nil {
		return false, fmt.Errorf("load event %d: %w", pair.BID, err)
	}
	if a == nil || b == nil {
		e.log.Debug().
			Uint("a", pair.AID).
			Uint("b", pair.BID).
			Msg("Pair no longer complete, skipping")
		return false, nil
	}

	res := Resolve(a, b, e.cfg)
	if res.Survivor == nil {
		return false, nil
	}

	if res.FieldsMerged {
		if err := e.store.UpdateEvent(ctx, res.Survivor); err != nil {
			return false, fmt.Errorf("update survivor %d: %w", res.Survivor.ID, err)
		}
	}
	if err := e.store.DeleteEvent(ctx, res.Loser.ID); err != nil {
		return false, fmt.Errorf("delete loser %d: %w", res.Loser.ID, err)
	}

	e.log.Info().
		Uint("survivor", res.Survivor.ID).
		Uint("loser", res.Loser.ID).
		Str("strategy", pair.Strategy).
		Msg("Merged duplicate pair")
	return true, nil
}

// MergeBySlug merges a freshly built candidate into the persisted event
// that already owns the same slug. No search strategy is needed: the key
// match already establishes the duplicate. The survivor keeps the
// existing row's identity.
func (e *Engine) MergeBySlug(ctx context.Context, existing *models.Event, candidate *models.Event) (*models.Event, error) {
	res := Resolve(existing, candidate, e.cfg)
	if res.Survivor == nil {
		return existing, nil
	}

	merged := res.Survivor
	merged.ID = existing.ID
	merged.Slug = existing.Slug
	merged.CreatedAt = existing.CreatedAt

	if err := e.store.UpdateEvent(ctx, merged); err != nil {
		return nil, fmt.Errorf("update event %d: %w", existing.ID, err)
	}
	return merged, nil
}

func groupByStart(events []*models.Event) map[int64][]*models.Event {
	groups := make(map[int64][]*models.Event)
	for _, ev := range events {
		key := ev.StartAt.UTC().Unix()
		groups[key] = append(groups[key], ev)
	}
	for _, group := range groups {
		sort.Slice(group, func(i, j int) bool { return group[i].ID < group[j].ID })
	}
	return groups
}

// closestImageDistance returns the smallest Hamming distance between any
// image fingerprint of a and any of b.
func closestImageDistance(a, b *models.Event) (int, bool) {
	best := -1
	for _, ua := range a.ImageURLs {
		ta, ok := imagehash.TokenFromURL(ua)
		if !ok {
			continue
		}
		for _, ub := range b.ImageURLs {
			tb, ok := imagehash.TokenFromURL(ub)
			if !ok {
				continue
			}
			d, err := imagehash.Distance(ta, tb)
			if err != nil {
				continue
			}
			if best < 0 || d < best {
				best = d
			}
		}
	}
	return best, best >= 0
}
