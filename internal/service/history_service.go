package service

import (
	"context"
	"fmt"

	"github.com/weiawesome/wes-io-chat/internal/domain"
	"github.com/weiawesome/wes-io-chat/internal/history"
	"golang.org/x/sync/singleflight"
)

type historyService struct {
	store history.Store
	sf    singleflight.Group
}

func NewHistoryService(store history.Store) HistoryService {
	return &historyService{store: store}
}

// Recent returns the room's history window oldest-first. Concurrent reads
// of the same room share one store call and the returned slice, which
// callers must not modify. The shared call ignores the first caller's
// cancellation; the store timeout still bounds it.
func (s *historyService) Recent(ctx context.Context, room string) ([]domain.ChatMessage, error) {
	shared := context.WithoutCancel(ctx)
	result, err, _ := s.sf.Do(room, func() (interface{}, error) {
		return s.store.Snapshot(shared, room)
	})
	if err != nil {
		return nil, err
	}

	messages, ok := result.([]domain.ChatMessage)
	if !ok {
		return nil, fmt.Errorf("unexpected result type from singleflight")
	}
	if messages == nil {
		messages = []domain.ChatMessage{}
	}
	return messages, nil
}
