package dedup

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/event-harvester/internal/imagehash"
	"github.com/event-harvester/internal/models"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.WebsitePriority = []string{"stadtportal", "kulturserver"}
	return cfg
}

func chatEvent(id uint, desc string) *models.Event {
	return &models.Event{
		ID:          id,
		Slug:        "2026-06-03-test",
		Name:        "Test",
		Description: desc,
		StartAt:     time.Date(2026, 6, 3, 18, 0, 0, 0, time.UTC),
		Source:      "chat:-100123",
	}
}

func TestResolveSameWebsiteSourceIsNoop(t *testing.T) {
	a := chatEvent(1, "a")
	a.Source = "stadtportal"
	b := chatEvent(2, "b")
	b.Source = "stadtportal"

	res := Resolve(a, b, testConfig())
	assert.Nil(t, res.Survivor)
}

func TestResolveWebsitePriority(t *testing.T) {
	a := chatEvent(1, "short")
	a.Source = "stadtportal"
	a.Price = ""
	b := chatEvent(2, strings.Repeat("long description ", 20))
	b.Source = "kulturserver"
	b.Price = "10€"

	// kulturserver comes later in the priority list, so it wins even
	// though deletion order or description length would say otherwise.
	res := Resolve(a, b, testConfig())
	require.NotNil(t, res.Survivor)
	assert.Equal(t, uint(2), res.Survivor.ID)
	assert.Equal(t, uint(1), res.Loser.ID)
	assert.False(t, res.FieldsMerged)

	// And symmetric
	res = Resolve(b, a, testConfig())
	assert.Equal(t, uint(2), res.Survivor.ID)
}

func TestResolveWebsiteBeatsMessaging(t *testing.T) {
	web := chatEvent(1, "x")
	web.Source = "stadtportal"
	chat := chatEvent(2, strings.Repeat("very detailed chat description ", 10))
	chat.Price = "5€"

	res := Resolve(chat, web, testConfig())
	require.NotNil(t, res.Survivor)
	assert.Equal(t, uint(1), res.Survivor.ID)
	assert.False(t, res.FieldsMerged)
	// No absorption: the website record keeps its own empty price
	assert.Empty(t, res.Survivor.Price)
}

func TestResolveLongerDescriptionWins(t *testing.T) {
	long := chatEvent(1, strings.Repeat("x", 200))
	short := chatEvent(2, strings.Repeat("y", 50))
	short.Price = "12€"
	short.Summary = "short summary"
	short.Tags = models.StringSlice{"music", "free"}
	long.Tags = models.StringSlice{"music"}
	short.Rooms = models.StringSlice{"room-b"}
	long.Rooms = models.StringSlice{"room-a"}

	res := Resolve(long, short, testConfig())
	require.NotNil(t, res.Survivor)
	assert.Equal(t, uint(1), res.Survivor.ID)
	assert.True(t, res.FieldsMerged)

	// Empty fields absorbed from the loser
	assert.Equal(t, "12€", res.Survivor.Price)
	assert.Equal(t, "short summary", res.Survivor.Summary)
	// Arrays unioned without duplicates
	assert.Equal(t, models.StringSlice{"music", "free"}, res.Survivor.Tags)
	assert.Equal(t, models.StringSlice{"room-a", "room-b"}, res.Survivor.Rooms)
	// Inputs not mutated
	assert.Equal(t, models.StringSlice{"music"}, long.Tags)
}

func TestResolveTieFavorsFirst(t *testing.T) {
	a := chatEvent(1, "same length!")
	b := chatEvent(2, "same length?")

	res := Resolve(a, b, testConfig())
	assert.Equal(t, uint(1), res.Survivor.ID)
}

func TestResolveKeepsLongerAddress(t *testing.T) {
	a := chatEvent(1, strings.Repeat("x", 100))
	a.Address = models.StringSlice{"München"}
	b := chatEvent(2, "y")
	b.Address = models.StringSlice{"Kulturzentrum", "Beispielweg 1", "80331 München"}

	res := Resolve(a, b, testConfig())
	assert.Equal(t, models.StringSlice{"Kulturzentrum", "Beispielweg 1", "80331 München"}, res.Survivor.Address)
}

func imgURL(slug string, hash uint64) string {
	return "https://img.example.org/" + slug + "/" + imagehash.EncodeToken(hash) + ".jpg"
}

func TestUnionImagesSkipsNearDuplicates(t *testing.T) {
	existing := []string{imgURL("a", 0xFF00FF00FF00FF00)}
	candidates := []string{
		imgURL("b", 0xFF00FF00FF00FF03), // distance 2: near-duplicate, skipped
		imgURL("c", 0x00FF00FF00FF00FF), // far away, appended
		existing[0],                     // exact duplicate, skipped
	}

	out := UnionImages(existing, candidates, 5)
	require.Len(t, out, 2)
	assert.Equal(t, existing[0], out[0])
	assert.Equal(t, candidates[1], out[1])
}

func TestUnionImagesKeepsURLsWithoutTokens(t *testing.T) {
	out := UnionImages(
		[]string{imgURL("a", 1)},
		[]string{"https://img.example.org/a/cover.jpg"},
		5,
	)
	assert.Len(t, out, 2)
}
