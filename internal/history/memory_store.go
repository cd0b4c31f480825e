package history

import (
	"context"
	"sync"

	"github.com/weiawesome/wes-io-chat/internal/domain"
)

// MemoryStore is a process-local Store for development and tests.
// Contents are lost on restart.
type MemoryStore struct {
	mu    sync.RWMutex
	rooms map[string][]domain.ChatMessage
	limit int
}

func NewMemoryStore(limit int) *MemoryStore {
	if limit < 1 {
		limit = 1
	}
	return &MemoryStore{
		rooms: make(map[string][]domain.ChatMessage),
		limit: limit,
	}
}

func (s *MemoryStore) Append(ctx context.Context, room string, msg domain.ChatMessage) error {
	if err := ctx.Err(); err != nil {
		return wrapCtxErr(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	window := append(s.rooms[room], msg)
	if over := len(window) - s.limit; over > 0 {
		// Copy so the evicted prefix can be collected.
		window = append([]domain.ChatMessage(nil), window[over:]...)
	}
	s.rooms[room] = window
	return nil
}

func (s *MemoryStore) Snapshot(ctx context.Context, room string) ([]domain.ChatMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrapCtxErr(err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.ChatMessage, len(s.rooms[room]))
	copy(out, s.rooms[room])
	return out, nil
}

func (s *MemoryStore) Limit() int {
	return s.limit
}

func (s *MemoryStore) Close() error {
	return nil
}
