// Package correlate reassembles an event announcement that an author
// spread across several adjacent messages (extra text, extra flyer
// images) around one trigger message.
package correlate

import (
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/event-harvester/internal/models"
)

const (
	// Window is the maximum time distance between the trigger and an
	// adjacent message for the two to belong to the same announcement.
	Window = 5 * time.Minute

	// meaningfulTextLen is the text length above which an intervening
	// message counts as a separate announcement and blocks image
	// correlation across it.
	meaningfulTextLen = 30
)

// Related holds the adjacent messages that belong to one trigger.
type Related struct {
	Texts  []models.Message // qualifying adjacent text, chronological
	Images []models.Message // qualifying adjacent images, chronological
}

// ConsumedIDs returns the IDs of all adjacent messages pulled into the
// candidate, deduplicated and sorted. The trigger itself is not included.
func (r Related) ConsumedIDs() []int64 {
	seen := make(map[int64]bool)
	var ids []int64
	for _, m := range r.Texts {
		if !seen[m.ID] {
			seen[m.ID] = true
			ids = append(ids, m.ID)
		}
	}
	for _, m := range r.Images {
		if !seen[m.ID] {
			seen[m.ID] = true
			ids = append(ids, m.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// CombinedText concatenates the trigger text with all qualifying adjacent
// text, blank-line separated, for the extraction call.
func (r Related) CombinedText(triggerText string) string {
	parts := make([]string, 0, len(r.Texts)+1)
	if strings.TrimSpace(triggerText) != "" {
		parts = append(parts, triggerText)
	}
	for _, m := range r.Texts {
		parts = append(parts, m.Text)
	}
	return strings.Join(parts, "\n\n")
}

// Gather finds the messages in the fetched window that plausibly belong
// to the same announcement as the trigger: same author, within Window of
// the trigger, and — for images — with no meaningful text from that
// author strictly between the trigger and the candidate. The last rule
// keeps a flyer that belongs to a different, intervening announcement
// from being pulled in.
func Gather(trigger models.Message, window []models.Message) Related {
	msgs := make([]models.Message, len(window))
	copy(msgs, window)
	// Message IDs increase monotonically per source, so ID order is
	// chronological order.
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].ID < msgs[j].ID })

	var r Related
	for _, m := range msgs {
		if m.ID == trigger.ID {
			continue
		}
		if m.Author.ID != trigger.Author.ID {
			continue
		}
		if absDelta(m.SentAt, trigger.SentAt) > Window {
			continue
		}
		if strings.TrimSpace(m.Text) != "" {
			r.Texts = append(r.Texts, m)
		}
		if m.HasImage() && !meaningfulTextBetween(msgs, trigger, m) {
			r.Images = append(r.Images, m)
		}
	}
	return r
}

// meaningfulTextBetween reports whether the trigger's author wrote a
// message with more than meaningfulTextLen characters strictly between
// the two messages in chronological order.
func meaningfulTextBetween(sorted []models.Message, a, b models.Message) bool {
	lo, hi := a.ID, b.ID
	if lo > hi {
		lo, hi = hi, lo
	}
	for _, m := range sorted {
		if m.ID <= lo {
			continue
		}
		if m.ID >= hi {
			break
		}
		if m.Author.ID == a.Author.ID && utf8.RuneCountInString(m.Text) > meaningfulTextLen {
			return true
		}
	}
	return false
}

func absDelta(a, b time.Time) time.Duration {
	d := a.Sub(b)
	if d < 0 {
		return -d
	}
	return d
}
