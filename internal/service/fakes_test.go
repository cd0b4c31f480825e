package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/weiawesome/wes-io-chat/internal/domain"
	"github.com/weiawesome/wes-io-chat/internal/history"
)

type fakeVerifier struct {
	tokens map[string]domain.Principal
}

func (v *fakeVerifier) Verify(_ context.Context, token string) (domain.Principal, error) {
	p, ok := v.tokens[token]
	if !ok {
		return domain.Principal{}, errors.New("signature mismatch")
	}
	return p, nil
}

type event struct {
	Type     string               `json:"type"`
	ID       string               `json:"id"`
	Room     string               `json:"room"`
	Text     string               `json:"text"`
	Author   domain.Principal     `json:"author"`
	Messages []domain.ChatMessage `json:"messages"`
}

type fakeConn struct {
	id      string
	session *domain.Session

	mu         sync.Mutex
	events     []event
	historyErr error
	closeCode  int
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id, session: domain.NewSession(id)}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Session() *domain.Session { return c.session }

func (c *fakeConn) Deliver(data []byte) error {
	var e event
	if err := json.Unmarshal(data, &e); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

func (c *fakeConn) SendHistory(h *domain.HistoryEvent) error {
	if c.historyErr != nil {
		return c.historyErr
	}
	data, err := json.Marshal(h)
	if err != nil {
		return err
	}
	return c.Deliver(data)
}

func (c *fakeConn) Close(code int, _ string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeCode = code
}

func (c *fakeConn) received() []event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]event(nil), c.events...)
}

// flakyStore fails every call while down is set.
type flakyStore struct {
	history.Store
	down atomic.Bool
}

func (s *flakyStore) Append(ctx context.Context, room string, msg domain.ChatMessage) error {
	if s.down.Load() {
		return domain.ErrStorageUnavailable
	}
	return s.Store.Append(ctx, room, msg)
}

func (s *flakyStore) Snapshot(ctx context.Context, room string) ([]domain.ChatMessage, error) {
	if s.down.Load() {
		return nil, domain.ErrStorageUnavailable
	}
	return s.Store.Snapshot(ctx, room)
}
