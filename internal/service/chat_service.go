package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/weiawesome/wes-io-chat/internal/archive"
	"github.com/weiawesome/wes-io-chat/internal/audit"
	"github.com/weiawesome/wes-io-chat/internal/auth"
	"github.com/weiawesome/wes-io-chat/internal/domain"
	"github.com/weiawesome/wes-io-chat/internal/history"
	"github.com/weiawesome/wes-io-chat/internal/hub"
	"github.com/weiawesome/wes-io-chat/pkg/log"
)

type chatService struct {
	verifier    auth.TokenVerifier
	store       history.Store
	registry    *hub.Registry
	broadcaster *hub.Broadcaster
	archiver    archive.Archiver
	locks       roomLocks
	now         func() time.Time
}

func NewChatService(
	verifier auth.TokenVerifier,
	store history.Store,
	registry *hub.Registry,
	archiver archive.Archiver,
) ChatService {
	if archiver == nil {
		archiver = archive.Noop{}
	}
	return &chatService{
		verifier:    verifier,
		store:       store,
		registry:    registry,
		broadcaster: hub.NewBroadcaster(registry),
		archiver:    archiver,
		now:         time.Now,
	}
}

func (s *chatService) Connect(ctx context.Context, c Conn, room, token string) (context.Context, error) {
	sess := c.Session()
	if room == "" || token == "" {
		sess.Transition(domain.StateRejected)
		return ctx, domain.ErrMissingParams
	}
	ctx = log.With(ctx, log.FieldRoomID, room)

	sess.Transition(domain.StateAuthenticating)
	principal, err := s.verifier.Verify(ctx, token)
	if err != nil {
		sess.Transition(domain.StateRejected)
		audit.LogWithDetail(ctx, audit.ActionAuthFailed, "", room, err.Error(), "authentication failed")
		if !errors.Is(err, domain.ErrUnauthenticated) {
			err = fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
		}
		return ctx, err
	}
	ctx = log.With(ctx, log.FieldUserID, principal.ID, log.FieldUsername, principal.DisplayName)
	audit.Log(ctx, audit.ActionAuth, principal.ID, "", "authenticated")

	if !sess.Join(principal, room) {
		return ctx, domain.ErrSessionClosed
	}
	if err := s.registry.Join(room, c); err != nil {
		sess.Transition(domain.StateClosed)
		return ctx, fmt.Errorf("failed to register member: %w", err)
	}
	audit.Log(ctx, audit.ActionJoinRoom, principal.ID, room, "joined room")

	// Snapshot after joining: a message racing the join may show up twice,
	// but none is lost.
	messages, err := s.store.Snapshot(ctx, room)
	if err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Msg("history unavailable, sending empty history")
		messages = nil
	}

	if err := c.SendHistory(domain.NewHistoryEvent(room, messages)); err != nil {
		s.Disconnect(ctx, c)
		return ctx, fmt.Errorf("failed to deliver history: %w", err)
	}
	return ctx, nil
}

func (s *chatService) HandleMessage(ctx context.Context, c Conn, frame []byte) {
	sess := c.Session()
	if !sess.IsJoined() {
		return
	}
	if len(bytes.TrimSpace(frame)) == 0 {
		return
	}

	principal := sess.Principal()
	room := sess.Room()
	msg := domain.ChatMessage{
		ID:     ulid.Make().String(),
		Room:   room,
		Author: principal,
		Text:   string(frame),
		SentAt: s.now().UTC(),
	}
	ctx = log.With(ctx, log.FieldMessageID, msg.ID)

	if !s.commit(ctx, msg) {
		return
	}

	if err := s.archiver.Archive(ctx, msg); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Msg("failed to archive message")
	}
}

// commit appends msg to history and, only if that worked, publishes it.
// Both happen under the room lock so every member sees messages in the
// order history stored them.
func (s *chatService) commit(ctx context.Context, msg domain.ChatMessage) bool {
	mu := s.locks.forRoom(msg.Room)
	mu.Lock()
	defer mu.Unlock()

	if err := s.store.Append(ctx, msg.Room, msg); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Msg("history append failed, message dropped")
		audit.LogWithDetail(ctx, audit.ActionMessageDropped, msg.Author.ID, msg.Room, "storage unavailable", "message dropped")
		return false
	}

	delivered, err := s.broadcaster.Publish(ctx, msg.Room, domain.NewMessageEvent(msg))
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Msg("failed to publish message")
		return true
	}

	l := log.Ctx(ctx)
	l.Debug().Int(log.FieldMembers, delivered).Msg("message delivered")
	audit.Log(ctx, audit.ActionSendMessage, msg.Author.ID, msg.Room, "message sent")
	return true
}

func (s *chatService) Disconnect(ctx context.Context, c Conn) {
	sess := c.Session()
	sess.Transition(domain.StateClosed)

	room, ok := s.registry.Leave(c)
	if !ok {
		return
	}
	userID := sess.Principal().ID
	audit.Log(ctx, audit.ActionLeaveRoom, userID, room, "left room")
	audit.Log(ctx, audit.ActionDisconnect, userID, room, "disconnected")
}

func (s *chatService) MemberCount(room string) int {
	return s.registry.Count(room)
}
