package markup

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf16"

	"github.com/event-harvester/internal/models"
)

// Render converts a message's plain text plus its style annotations into
// a single markup string. Annotation offsets are UTF-16 code unit
// positions, as the messaging platform reports them. Annotations may
// overlap or nest; the output is always well-nested because still-active
// annotations are closed and immediately reopened at a boundary where an
// interleaved annotation ends.
//
// Render is pure: same inputs always produce the same output.
func Render(text string, entities []models.Entity) string {
	if len(entities) == 0 {
		return collapseBreaks(text)
	}

	units := utf16.Encode([]rune(text))

	spans := buildSpans(units, entities)
	if len(spans) == 0 {
		return collapseBreaks(text)
	}

	// Distinct boundary positions: every span start and end
	seen := make(map[int]bool)
	var boundaries []int
	for _, sp := range spans {
		if !seen[sp.start] {
			seen[sp.start] = true
			boundaries = append(boundaries, sp.start)
		}
		if !seen[sp.end] {
			seen[sp.end] = true
			boundaries = append(boundaries, sp.end)
		}
	}
	sort.Ints(boundaries)

	var b strings.Builder
	var stack []*span
	prev := 0

	for _, pos := range boundaries {
		b.WriteString(string(utf16.Decode(units[prev:pos])))
		prev = pos

		// Close everything ending here, in reverse opening order.
		// Still-active spans popped along the way are reopened so the
		// output stays well-nested.
		if endingInStack(stack, pos) {
			var reopen []*span
			for len(stack) > 0 && endingInStack(stack, pos) {
				top := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				b.WriteString(top.close)
				if top.end != pos {
					reopen = append(reopen, top)
				}
			}
			for i := len(reopen) - 1; i >= 0; i-- {
				b.WriteString(reopen[i].open)
				stack = append(stack, reopen[i])
			}
		}

		// Open spans starting here, in the order they were given
		for _, sp := range spans {
			if sp.start == pos {
				b.WriteString(sp.open)
				stack = append(stack, sp)
			}
		}
	}
	b.WriteString(string(utf16.Decode(units[prev:])))

	return collapseBreaks(b.String())
}

// span is one annotation with its rendered tag pair, clamped to the text
type span struct {
	start, end  int
	open, close string
}

func buildSpans(units []uint16, entities []models.Entity) []*span {
	var spans []*span
	for _, e := range entities {
		if e.Length <= 0 || e.Offset < 0 || e.Offset >= len(units) {
			continue
		}
		end := e.Offset + e.Length
		if end > len(units) {
			end = len(units)
		}
		covered := string(utf16.Decode(units[e.Offset:end]))
		open, close, ok := tagsFor(e, covered)
		if !ok {
			continue
		}
		spans = append(spans, &span{start: e.Offset, end: end, open: open, close: close})
	}
	return spans
}

func endingInStack(stack []*span, pos int) bool {
	for _, sp := range stack {
		if sp.end == pos {
			return true
		}
	}
	return false
}

// tagsFor maps an annotation type to its opening and closing tag. All
// link-like types close with the same </a>; they differ only in how the
// href is built from the annotation and the covered text.
func tagsFor(e models.Entity, covered string) (string, string, bool) {
	switch e.Type {
	case models.EntityBold:
		return "<b>", "</b>", true
	case models.EntityItalic:
		return "<i>", "</i>", true
	case models.EntityUnderline:
		return "<u>", "</u>", true
	case models.EntityStrikethrough:
		return "<s>", "</s>", true
	case models.EntityCode:
		return "<code>", "</code>", true
	case models.EntityBlockquote:
		return "<blockquote>", "</blockquote>", true
	case models.EntitySpoiler:
		return `<span class="spoiler">`, "</span>", true
	case models.EntityTextLink:
		return fmt.Sprintf(`<a href="%s">`, e.URL), "</a>", true
	case models.EntityTextMention:
		return fmt.Sprintf(`<a href="tg://user?id=%d">`, e.UserID), "</a>", true
	case models.EntityMention:
		handle := strings.TrimPrefix(covered, "@")
		return fmt.Sprintf(`<a href="https://t.me/%s">`, handle), "</a>", true
	case models.EntityHashtag:
		tag := strings.TrimPrefix(covered, "#")
		return fmt.Sprintf(`<a href="/events?tag=%s">`, tag), "</a>", true
	case models.EntityEmail:
		return fmt.Sprintf(`<a href="mailto:%s">`, covered), "</a>", true
	case models.EntityPhone:
		return fmt.Sprintf(`<a href="tel:%s">`, strings.ReplaceAll(covered, " ", "")), "</a>", true
	}
	return "", "", false
}

// Runs of three or more break markers, possibly with whitespace between
// them, collapse to exactly two.
var breakRun = regexp.MustCompile(`(?:<br/>\s*){3,}`)

func collapseBreaks(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\n", "<br/>")
	return breakRun.ReplaceAllString(s, "<br/><br/>")
}
