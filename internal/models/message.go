package models

import (
	"time"
)

// EntityType identifies one style annotation kind on a message
type EntityType string

const (
	EntityBold          EntityType = "bold"
	EntityItalic        EntityType = "italic"
	EntityUnderline     EntityType = "underline"
	EntityStrikethrough EntityType = "strikethrough"
	EntityCode          EntityType = "code"
	EntityBlockquote    EntityType = "blockquote"
	EntitySpoiler       EntityType = "spoiler"
	EntityTextLink      EntityType = "text_link"
	EntityMention       EntityType = "mention"      // @handle in the text itself
	EntityTextMention   EntityType = "text_mention" // mention of a user without a handle, by ID
	EntityHashtag       EntityType = "hashtag"
	EntityEmail         EntityType = "email"
	EntityPhone         EntityType = "phone_number"
)

// Entity is one style annotation spanning [Offset, Offset+Length) of a
// message's text, measured in UTF-16 code units as the platform reports them.
type Entity struct {
	Type   EntityType `json:"type"`
	Offset int        `json:"offset"`
	Length int        `json:"length"`
	URL    string     `json:"url,omitempty"`     // text_link target
	UserID int64      `json:"user_id,omitempty"` // text_mention target
}

// Author identifies the sender of a message
type Author struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name"`
	Handle      string `json:"handle,omitempty"`
}

// Message is a single unit fetched from a source. Messages are not
// persisted by the pipeline; they are fetched fresh each run.
type Message struct {
	ID       int64     `json:"id"`
	ChatID   int64     `json:"chat_id"`
	TopicID  int64     `json:"topic_id,omitempty"`
	Author   Author    `json:"author"`
	SentAt   time.Time `json:"sent_at"`
	Text     string    `json:"text"`
	Entities []Entity  `json:"entities,omitempty"`
	MediaRef string    `json:"media_ref,omitempty"` // Opaque handle for downloading an attached image
}

// HasImage reports whether the message carries an image attachment
func (m *Message) HasImage() bool {
	return m.MediaRef != ""
}
