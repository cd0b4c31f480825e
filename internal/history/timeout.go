package history

import (
	"context"
	"fmt"
	"time"

	"github.com/weiawesome/wes-io-chat/internal/domain"
)

// WithTimeout bounds every call on next by d. An expired call fails with
// domain.ErrStorageUnavailable like any other storage error.
func WithTimeout(next Store, d time.Duration) Store {
	if d <= 0 {
		return next
	}
	return &timeoutStore{next: next, timeout: d}
}

type timeoutStore struct {
	next    Store
	timeout time.Duration
}

func (s *timeoutStore) Append(ctx context.Context, room string, msg domain.ChatMessage) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.next.Append(ctx, room, msg)
}

func (s *timeoutStore) Snapshot(ctx context.Context, room string) ([]domain.ChatMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.next.Snapshot(ctx, room)
}

func (s *timeoutStore) Limit() int {
	return s.next.Limit()
}

func (s *timeoutStore) Close() error {
	return s.next.Close()
}

func wrapCtxErr(err error) error {
	return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
}
