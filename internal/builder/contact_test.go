package builder

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeContact(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"@eventhost", "https://t.me/eventhost"},
		{"host@example.org", "mailto:host@example.org"},
		{"+49 89 123456", "tel:+4989123456"},
		{"089/123456", "tel:089123456"},
		{"https://tickets.example.org/abc", "https://tickets.example.org/abc"},
		{"t.me/eventhost", "https://t.me/eventhost"},
		{"www.example.org", "https://www.example.org"},
		{"example.org/events", "https://example.org/events"},
		{"mailto:a@b.de", "mailto:a@b.de"},
		{"  @spacy  ", "https://t.me/spacy"},
		{"", ""},
		{"just some words", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeContact(tt.in))
		})
	}
}
