package history

import (
	"context"

	"github.com/weiawesome/wes-io-chat/internal/domain"
)

// Store is a capped, per-room, append-only message log.
//
// Append leaves at most the configured bound of entries for the room,
// newest included. Snapshot returns up to that many entries oldest-first
// and returns an empty slice, not an error, for rooms with no history.
// Failures wrap domain.ErrStorageUnavailable.
type Store interface {
	Append(ctx context.Context, room string, msg domain.ChatMessage) error
	Snapshot(ctx context.Context, room string) ([]domain.ChatMessage, error)
	Limit() int
	Close() error
}
