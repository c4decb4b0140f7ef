package correlate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/event-harvester/internal/models"
)

var base = time.Date(2026, 6, 12, 18, 0, 0, 0, time.UTC)

func msg(id int64, authorID int64, offset time.Duration, text, media string) models.Message {
	return models.Message{
		ID:       id,
		Author:   models.Author{ID: authorID},
		SentAt:   base.Add(offset),
		Text:     text,
		MediaRef: media,
	}
}

func TestGatherWindowLimit(t *testing.T) {
	trigger := msg(10, 1, 0, "Konzert heute Abend im Hinterhof, Eintritt frei!", "")
	window := []models.Message{
		trigger,
		msg(11, 1, 120*time.Second, "", "photo-a"), // within window, no text between
		msg(12, 1, 400*time.Second, "", "photo-b"), // outside the 5 minute window
	}

	r := Gather(trigger, window)

	require.Len(t, r.Images, 1)
	assert.Equal(t, int64(11), r.Images[0].ID)
	assert.Empty(t, r.Texts)
	assert.Equal(t, []int64{11}, r.ConsumedIDs())
}

func TestGatherInterleavingTextBlocksImage(t *testing.T) {
	trigger := msg(20, 1, 0, "Flohmarkt am Samstag ab 10 Uhr auf dem Platz", "")
	blocker := msg(21, 1, 60*time.Second, "Ganz anderes Thema: wer hat noch Kisten für den Umzug übrig?", "")
	window := []models.Message{
		trigger,
		blocker,
		msg(22, 1, 120*time.Second, "", "photo-c"),
	}

	r := Gather(trigger, window)

	// The flyer after an unrelated announcement stays out, but the
	// blocker itself still qualifies as adjacent text.
	assert.Empty(t, r.Images)
	require.Len(t, r.Texts, 1)
	assert.Equal(t, blocker.ID, r.Texts[0].ID)
}

func TestGatherShortTextDoesNotBlock(t *testing.T) {
	trigger := msg(30, 1, 0, "Lesung am Donnerstag", "")
	window := []models.Message{
		trigger,
		msg(31, 1, 30*time.Second, "siehe Flyer", ""), // short, not meaningful
		msg(32, 1, 90*time.Second, "", "photo-d"),
	}

	r := Gather(trigger, window)

	require.Len(t, r.Images, 1)
	assert.Equal(t, int64(32), r.Images[0].ID)
	assert.Equal(t, []int64{31, 32}, r.ConsumedIDs())
}

func TestGatherOtherAuthorIgnored(t *testing.T) {
	trigger := msg(40, 1, 0, "Offenes Singen im Park", "")
	window := []models.Message{
		trigger,
		msg(41, 2, 30*time.Second, "Klingt super, bin dabei! Soll ich noch jemanden mitbringen?", ""),
		msg(42, 2, 60*time.Second, "", "photo-e"),
		msg(43, 1, 90*time.Second, "", "photo-f"),
	}

	r := Gather(trigger, window)

	// Another author's chatter neither joins the candidate nor blocks
	// the trigger author's own follow-up image.
	require.Len(t, r.Images, 1)
	assert.Equal(t, int64(43), r.Images[0].ID)
	assert.Empty(t, r.Texts)
}

func TestGatherImageTriggerPicksEarlierText(t *testing.T) {
	text := msg(50, 1, 0, "Workshop: Siebdruck für Anfänger, Anmeldung per DM", "")
	trigger := msg(51, 1, 45*time.Second, "", "photo-g")
	window := []models.Message{text, trigger}

	r := Gather(trigger, window)

	require.Len(t, r.Texts, 1)
	assert.Equal(t, text.ID, r.Texts[0].ID)
	assert.Equal(t, "Workshop: Siebdruck für Anfänger, Anmeldung per DM", r.CombinedText(trigger.Text))
}

func TestCombinedText(t *testing.T) {
	trigger := msg(60, 1, 0, "Teil eins", "")
	window := []models.Message{
		trigger,
		msg(61, 1, 20*time.Second, "Teil zwei", ""),
		msg(62, 1, 40*time.Second, "Teil drei", ""),
	}

	r := Gather(trigger, window)
	assert.Equal(t, "Teil eins\n\nTeil zwei\n\nTeil drei", r.CombinedText(trigger.Text))
}
