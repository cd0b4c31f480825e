package service

import (
	"context"

	"github.com/weiawesome/wes-io-chat/internal/domain"
	"github.com/weiawesome/wes-io-chat/internal/hub"
)

// Conn is the gateway's view of one client connection.
type Conn interface {
	hub.Member
	Session() *domain.Session
	SendHistory(event *domain.HistoryEvent) error
}

// ChatService runs the connection lifecycle: connect, authenticate, join,
// replay history, accept messages and leave.
type ChatService interface {
	// Connect authenticates c and joins it to room. The returned context
	// carries a logger tagged with the room and user.
	Connect(ctx context.Context, c Conn, room, token string) (context.Context, error)
	// HandleMessage processes one inbound frame. Failures are logged, never
	// returned: the connection stays open.
	HandleMessage(ctx context.Context, c Conn, frame []byte)
	// Disconnect releases the room membership of c. Safe to call more than once.
	Disconnect(ctx context.Context, c Conn)
	MemberCount(room string) int
}

// HistoryService serves history snapshots outside the WebSocket protocol.
type HistoryService interface {
	Recent(ctx context.Context, room string) ([]domain.ChatMessage, error)
}
