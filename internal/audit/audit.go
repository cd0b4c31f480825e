package audit

import (
	"context"

	"github.com/weiawesome/wes-io-chat/pkg/log"
)

// Audit actions for the chat gateway.
const (
	ActionAuth           = "chat.auth"
	ActionAuthFailed     = "chat.auth_failed"
	ActionJoinRoom       = "chat.join_room"
	ActionLeaveRoom      = "chat.leave_room"
	ActionSendMessage    = "chat.send_message"
	ActionMessageDropped = "chat.message_dropped"
	ActionDisconnect     = "chat.disconnect"
)

const (
	FieldAction = "action"
	FieldDetail = "detail"
)

// Log emits a structured audit entry through the context logger.
// room may be empty for events that happen before a join.
func Log(ctx context.Context, action, userID, room, msg string) {
	l := log.Ctx(ctx)
	evt := l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldUserID, userID)
	if room != "" {
		evt = evt.Str(log.FieldRoomID, room)
	}
	evt.Msg(msg)
}

// LogWithDetail is Log with an extra free-form detail field.
func LogWithDetail(ctx context.Context, action, userID, room, detail, msg string) {
	l := log.Ctx(ctx)
	evt := l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldUserID, userID).
		Str(FieldDetail, detail)
	if room != "" {
		evt = evt.Str(log.FieldRoomID, room)
	}
	evt.Msg(msg)
}
