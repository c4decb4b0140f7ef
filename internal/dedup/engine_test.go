package dedup

import (
	"context"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/event-harvester/internal/models"
	"github.com/event-harvester/pkg/logger"
)

// fakeStore is an in-memory Store for engine tests
type fakeStore struct {
	events  map[uint]*models.Event
	deleted []uint
}

func newFakeStore(events ...*models.Event) *fakeStore {
	s := &fakeStore{events: make(map[uint]*models.Event)}
	for _, ev := range events {
		s.events[ev.ID] = ev
	}
	return s
}

func (s *fakeStore) FindEventByID(_ context.Context, id uint) (*models.Event, error) {
	ev, ok := s.events[id]
	if !ok {
		return nil, nil
	}
	c := *ev
	return &c, nil
}

func (s *fakeStore) FindEventsWithImages(_ context.Context) ([]*models.Event, error) {
	var out []*models.Event
	for _, ev := range s.events {
		if len(ev.ImageURLs) > 0 {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *fakeStore) FindSharedStartTimes(_ context.Context) ([]time.Time, error) {
	counts := make(map[int64]int)
	times := make(map[int64]time.Time)
	for _, ev := range s.events {
		key := ev.StartAt.UTC().Unix()
		counts[key]++
		times[key] = ev.StartAt
	}
	var out []time.Time
	for key, n := range counts {
		if n > 1 {
			out = append(out, times[key])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

func (s *fakeStore) FindEventsByStartAt(_ context.Context, start time.Time) ([]*models.Event, error) {
	var out []*models.Event
	for _, ev := range s.events {
		if ev.StartAt.Equal(start) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *fakeStore) UpdateEvent(_ context.Context, event *models.Event) error {
	s.events[event.ID] = event
	return nil
}

func (s *fakeStore) DeleteEvent(_ context.Context, id uint) error {
	delete(s.events, id)
	s.deleted = append(s.deleted, id)
	return nil
}

var start = time.Date(2026, 6, 3, 18, 0, 0, 0, time.UTC)

func storedEvent(id uint, desc string, images ...string) *models.Event {
	return &models.Event{
		ID:          id,
		Slug:        "2026-06-03-test",
		Name:        "Test",
		Description: desc,
		StartAt:     start,
		Source:      "chat:-100123",
		ImageURLs:   images,
	}
}

func TestFindImageDuplicates(t *testing.T) {
	a := storedEvent(1, "a", imgURL("a", 0xAAAA0000FFFF1234))
	b := storedEvent(2, "b", imgURL("b", 0xAAAA0000FFFF1236)) // distance 1
	c := storedEvent(3, "c", imgURL("c", 0x0000FFFF00003333)) // unrelated
	far := storedEvent(4, "d", imgURL("d", 0xAAAA0000FFFF1234))
	far.StartAt = start.Add(time.Hour) // identical image, different start: not a pair

	engine := NewEngine(newFakeStore(a, b, c, far), testConfig(), logger.Default())

	pairs, err := engine.FindImageDuplicates(context.Background())
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, uint(1), pairs[0].AID)
	assert.Equal(t, uint(2), pairs[0].BID)
	assert.Equal(t, "image", pairs[0].Strategy)
}

func TestFindTextDuplicates(t *testing.T) {
	desc := strings.Repeat("Großes Sommerfest im Hof mit Musik und Essen. ", 3)
	a := storedEvent(1, desc)
	b := storedEvent(2, desc+" Kommt alle vorbei!")
	c := storedEvent(3, "Etwas völlig anderes: Schachturnier im Vereinsheim am Nachmittag")

	engine := NewEngine(newFakeStore(a, b, c), testConfig(), logger.Default())

	pairs, err := engine.FindTextDuplicates(context.Background())
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, uint(1), pairs[0].AID)
	assert.Equal(t, uint(2), pairs[0].BID)
	assert.GreaterOrEqual(t, pairs[0].Score, 0.5)
}

func TestRunMergesAndDeletes(t *testing.T) {
	long := storedEvent(1, strings.Repeat("Ausführliche Beschreibung des Fests. ", 8))
	short := storedEvent(2, strings.Repeat("Ausführliche Beschreibung des Fests. ", 2))
	short.Price = "3€"

	store := newFakeStore(long, short)
	engine := NewEngine(store, testConfig(), logger.Default())

	stats, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Merged)
	assert.Equal(t, []uint{2}, store.deleted)

	survivor := store.events[1]
	require.NotNil(t, survivor)
	assert.Equal(t, "3€", survivor.Price)
}

func TestRunSkipsVanishedPairs(t *testing.T) {
	// Both strategies flag the same pair; the second application finds
	// the loser already gone and skips without error.
	desc := strings.Repeat("Gleicher Text für beide Veranstaltungen hier. ", 4)
	a := storedEvent(1, desc, imgURL("a", 0x1234))
	b := storedEvent(2, desc, imgURL("b", 0x1234))

	store := newFakeStore(a, b)
	engine := NewEngine(store, testConfig(), logger.Default())

	stats, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Merged)
	assert.Equal(t, 1, stats.Skipped)
	assert.Len(t, store.deleted, 1)
}

func TestMergeBySlug(t *testing.T) {
	existing := storedEvent(7, "kurz")
	existing.CreatedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	candidate := &models.Event{
		Slug:        existing.Slug,
		Name:        "Test",
		Description: strings.Repeat("viel längere Beschreibung ", 10),
		StartAt:     start,
		Source:      "chat:-100999",
		Rooms:       models.StringSlice{"other-room"},
	}

	store := newFakeStore(existing)
	engine := NewEngine(store, testConfig(), logger.Default())

	merged, err := engine.MergeBySlug(context.Background(), existing, candidate)
	require.NoError(t, err)

	// The candidate's longer description wins but the row identity stays
	assert.Equal(t, uint(7), merged.ID)
	assert.Equal(t, existing.Slug, merged.Slug)
	assert.Equal(t, existing.CreatedAt, merged.CreatedAt)
	assert.Equal(t, candidate.Description, merged.Description)
	assert.Contains(t, merged.Rooms, "other-room")
	assert.Equal(t, merged, store.events[7])
}
