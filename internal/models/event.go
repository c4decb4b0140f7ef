package models

import (
	"strings"
	"time"
)

// Event represents a persisted, deduplicated real-world event record.
// The slug is derived from (name, start date, end date) and is the
// natural key used for conflict resolution at ingestion time.
type Event struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	Slug        string      `gorm:"uniqueIndex;not null" json:"slug"`
	Name        string      `gorm:"not null" json:"name"`
	Description string      `gorm:"type:text" json:"description"` // Rendered markup
	Summary     string      `json:"summary"`
	StartAt     time.Time   `gorm:"index;not null" json:"start_at"`
	EndAt       *time.Time  `json:"end_at"`
	Address     StringSlice `gorm:"type:json" json:"address"`
	Lat         *float64    `json:"lat"`
	Lng         *float64    `json:"lng"`
	Price       string      `json:"price"`
	Contact     string      `json:"contact"` // Canonical scheme-prefixed contact link
	HostName    string      `json:"host_name"`
	HostLink    string      `json:"host_link"`
	Tags        StringSlice `gorm:"type:json" json:"tags"`
	ImageURLs   StringSlice `gorm:"type:json" json:"image_urls"`
	Source      string      `gorm:"index" json:"source"`          // "chat:<id>" or a website identifier
	Rooms       StringSlice `gorm:"type:json" json:"rooms"`       // All source rooms this event was seen in
	CreatedAt   time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

// ChatSourcePrefix marks events that originate from the messaging platform
const ChatSourcePrefix = "chat:"

// IsChatSourced reports whether the event came from a messaging source
// rather than a website scrape.
func (e *Event) IsChatSourced() bool {
	return strings.HasPrefix(e.Source, ChatSourcePrefix)
}

// Fields is the structured output of the extraction service for one
// combined message text. All attributes are optional; HasEventData
// signals whether the text described a real-world event at all.
type Fields struct {
	HasEventData    bool       `json:"has_event_data"`
	CanonicalSource string     `json:"canonical_source,omitempty"` // Set when the message reposts content tracked at its origin
	Name            string     `json:"name,omitempty"`
	Summary         string     `json:"summary,omitempty"`
	StartAt         *time.Time `json:"start_at,omitempty"`
	EndAt           *time.Time `json:"end_at,omitempty"`
	Venue           string     `json:"venue,omitempty"`
	Street          string     `json:"street,omitempty"`
	City            string     `json:"city,omitempty"`
	Price           string     `json:"price,omitempty"`
	Contact         string     `json:"contact,omitempty"`
	ContactIsAuthor bool       `json:"contact_is_author,omitempty"` // "ask the author" style announcements
	Tags            []string   `json:"tags,omitempty"`
}

// AddressLines assembles the non-empty address parts, venue first.
func (f *Fields) AddressLines() []string {
	var lines []string
	for _, part := range []string{f.Venue, f.Street, f.City} {
		if strings.TrimSpace(part) != "" {
			lines = append(lines, strings.TrimSpace(part))
		}
	}
	return lines
}
