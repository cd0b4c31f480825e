package domain

import (
	"encoding/json"
	"time"
)

// Principal is the identity behind a verified token.
type Principal struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// ChatMessage is one accepted chat line. Ordering within a room is the
// order in which messages were appended to history, not SentAt.
type ChatMessage struct {
	ID     string    `json:"id"`
	Room   string    `json:"room"`
	Author Principal `json:"author"`
	Text   string    `json:"text"`
	SentAt time.Time `json:"-"`
}

type chatMessageJSON struct {
	ID     string    `json:"id"`
	Room   string    `json:"room"`
	Author Principal `json:"author"`
	Text   string    `json:"text"`
	SentAt int64     `json:"sent_at"`
}

// MarshalJSON encodes SentAt as unix milliseconds.
func (m ChatMessage) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.wire())
}

func (m ChatMessage) wire() chatMessageJSON {
	return chatMessageJSON{
		ID:     m.ID,
		Room:   m.Room,
		Author: m.Author,
		Text:   m.Text,
		SentAt: m.SentAt.UnixMilli(),
	}
}

// UnmarshalJSON decodes SentAt from unix milliseconds.
func (m *ChatMessage) UnmarshalJSON(data []byte) error {
	var raw chatMessageJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.ID = raw.ID
	m.Room = raw.Room
	m.Author = raw.Author
	m.Text = raw.Text
	m.SentAt = time.UnixMilli(raw.SentAt).UTC()
	return nil
}
