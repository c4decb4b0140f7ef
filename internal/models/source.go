package models

import (
	"time"
)

// Source represents one monitored messaging-platform location
// (chat, channel or forum topic) together with its checkpoint state.
type Source struct {
	ID               uint        `gorm:"primaryKey" json:"id"`
	ChatID           int64       `gorm:"uniqueIndex;not null" json:"chat_id"`
	Name             string      `gorm:"not null" json:"name"`
	TopicIDs         Int64Slice  `gorm:"type:json" json:"topic_ids"`        // Forum-style sources: which topics to read
	DefaultAddress   StringSlice `gorm:"type:json" json:"default_address"`  // Used when a message carries no location
	LastMessageID    int64       `json:"last_message_id"`                   // Cursor: advances monotonically, never rewound
	LastMessageAt    *time.Time  `json:"last_message_at"`
	MessagesConsumed int64       `json:"messages_consumed"`
	LastError        string      `json:"last_error"`
	LastRunAt        *time.Time  `json:"last_run_at"`
	CreatedAt        time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

// Advance moves the cursor forward to the given message. Cursors are
// monotonic: a smaller message ID than the current one is ignored.
func (s *Source) Advance(messageID int64, at time.Time) {
	if messageID <= s.LastMessageID {
		return
	}
	s.LastMessageID = messageID
	t := at
	s.LastMessageAt = &t
}
