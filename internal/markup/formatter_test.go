package markup

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/event-harvester/internal/models"
)

func TestRenderNoEntities(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Yoga in the park", "Yoga in the park"},
		{"single break", "line one\nline two", "line one<br/>line two"},
		{"double break kept", "a\n\nb", "a<br/><br/>b"},
		{"triple break collapsed", "a\n\n\nb", "a<br/><br/>b"},
		{"many breaks collapsed", "a\n\n\n\n\n\nb", "a<br/><br/>b"},
		{"breaks with spaces between", "a\n \n \nb", "a<br/><br/>b"},
		{"crlf normalized", "a\r\nb", "a<br/>b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Render(tt.in, nil))
		})
	}
}

func TestRenderNested(t *testing.T) {
	out := Render("Hello world", []models.Entity{
		{Type: models.EntityBold, Offset: 0, Length: 11},
		{Type: models.EntityItalic, Offset: 0, Length: 5},
	})
	assert.Equal(t, "<b><i>Hello</i> world</b>", out)
}

func TestRenderOverlapReopens(t *testing.T) {
	// Bold covers "Hello", italic covers "lo wor": the italic span must be
	// closed and reopened at the bold boundary so the output stays nested.
	out := Render("Hello world", []models.Entity{
		{Type: models.EntityBold, Offset: 0, Length: 5},
		{Type: models.EntityItalic, Offset: 3, Length: 6},
	})
	assert.Equal(t, "<b>Hel<i>lo</i></b><i> wor</i>ld", out)
	assertWellFormed(t, out)
}

func TestRenderLinkTypes(t *testing.T) {
	tests := []struct {
		name string
		text string
		ent  models.Entity
		want string
	}{
		{
			"text link",
			"see here",
			models.Entity{Type: models.EntityTextLink, Offset: 4, Length: 4, URL: "https://example.org"},
			`see <a href="https://example.org">here</a>`,
		},
		{
			"mention by id",
			"ask Ana",
			models.Entity{Type: models.EntityTextMention, Offset: 4, Length: 3, UserID: 42},
			`ask <a href="tg://user?id=42">Ana</a>`,
		},
		{
			"mention by handle",
			"ping @ana",
			models.Entity{Type: models.EntityMention, Offset: 5, Length: 4},
			`ping <a href="https://t.me/ana">@ana</a>`,
		},
		{
			"hashtag",
			"#yoga time",
			models.Entity{Type: models.EntityHashtag, Offset: 0, Length: 5},
			`<a href="/events?tag=yoga">#yoga</a> time`,
		},
		{
			"email",
			"mail a@b.de now",
			models.Entity{Type: models.EntityEmail, Offset: 5, Length: 6},
			`mail <a href="mailto:a@b.de">a@b.de</a> now`,
		},
		{
			"phone",
			"call +49 89 1234",
			models.Entity{Type: models.EntityPhone, Offset: 5, Length: 11},
			`call <a href="tel:+49891234">+49 89 1234</a>`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Render(tt.text, []models.Entity{tt.ent}))
		})
	}
}

func TestRenderUTF16Offsets(t *testing.T) {
	// The party popper emoji occupies two UTF-16 code units, so "Party"
	// starts at offset 3 as the platform counts it.
	out := Render("🎉 Party", []models.Entity{
		{Type: models.EntityBold, Offset: 3, Length: 5},
	})
	assert.Equal(t, "🎉 <b>Party</b>", out)
}

func TestRenderIgnoresInvalidSpans(t *testing.T) {
	out := Render("short", []models.Entity{
		{Type: models.EntityBold, Offset: 0, Length: 0},
		{Type: models.EntityItalic, Offset: 99, Length: 3},
		{Type: models.EntityBold, Offset: 2, Length: 50}, // clamped to text end
	})
	assert.Equal(t, "sh<b>ort</b>", out)
}

func TestRenderDeterministic(t *testing.T) {
	text := "Konzert am Freitag\n\n\nEintritt frei"
	ents := []models.Entity{
		{Type: models.EntityBold, Offset: 0, Length: 7},
		{Type: models.EntityItalic, Offset: 3, Length: 10},
	}
	first := Render(text, ents)
	for i := 0; i < 10; i++ {
		require.Equal(t, first, Render(text, ents))
	}
}

// assertWellFormed checks that every opening tag has a matching closing
// tag and that tags close in proper nesting order.
func assertWellFormed(t *testing.T, s string) {
	t.Helper()
	var stack []string
	for i := 0; i < len(s); i++ {
		if s[i] != '<' {
			continue
		}
		end := strings.IndexByte(s[i:], '>')
		require.Greater(t, end, 0, "unterminated tag in %q", s)
		tag := s[i+1 : i+end]
		if strings.HasPrefix(tag, "/") {
			require.NotEmpty(t, stack, "closing %q with empty stack in %q", tag, s)
			open := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			name := strings.Fields(open)[0]
			require.Equal(t, name, tag[1:], "mismatched close in %q", s)
		} else {
			stack = append(stack, tag)
		}
		i += end
	}
	require.Empty(t, stack, "unclosed tags %v in %q", stack, s)
}
