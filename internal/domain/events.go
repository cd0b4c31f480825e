package domain

import "encoding/json"

// Server -> client event types.
const (
	EventTypeHistory = "history"
	EventTypeMessage = "message"
)

// HistoryEvent is sent once per connection, right after joining.
type HistoryEvent struct {
	Type     string        `json:"type"`
	Room     string        `json:"room"`
	Messages []ChatMessage `json:"messages"`
}

// NewHistoryEvent wraps a snapshot. A nil snapshot is sent as an empty list.
func NewHistoryEvent(room string, messages []ChatMessage) *HistoryEvent {
	if messages == nil {
		messages = []ChatMessage{}
	}
	return &HistoryEvent{
		Type:     EventTypeHistory,
		Room:     room,
		Messages: messages,
	}
}

// MessageEvent is a live chat message fanned out to a room.
type MessageEvent struct {
	Type string `json:"type"`
	ChatMessage
}

// MarshalJSON flattens the message fields next to the type tag.
func (e MessageEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"type"`
		chatMessageJSON
	}{
		Type:            e.Type,
		chatMessageJSON: e.ChatMessage.wire(),
	})
}

// NewMessageEvent wraps msg for delivery.
func NewMessageEvent(msg ChatMessage) *MessageEvent {
	return &MessageEvent{
		Type:        EventTypeMessage,
		ChatMessage: msg,
	}
}
