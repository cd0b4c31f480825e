package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/weiawesome/wes-io-chat/internal/domain"
	"github.com/weiawesome/wes-io-chat/internal/service"
	"github.com/weiawesome/wes-io-chat/pkg/log"
	"github.com/weiawesome/wes-io-chat/pkg/middleware"
	"github.com/weiawesome/wes-io-chat/pkg/response"
)

// Handler serves the HTTP side of the gateway: health, history reads,
// member counts and the WebSocket endpoint.
type Handler struct {
	chatService    service.ChatService
	historyService service.HistoryService
	authMiddleware *middleware.AuthMiddleware
	ws             *WSHandler
	wsPath         string
}

func NewHandler(
	chatService service.ChatService,
	historyService service.HistoryService,
	authMiddleware *middleware.AuthMiddleware,
	ws *WSHandler,
	wsPath string,
) *Handler {
	if wsPath == "" {
		wsPath = "/"
	}
	return &Handler{
		chatService:    chatService,
		historyService: historyService,
		authMiddleware: authMiddleware,
		ws:             ws,
		wsPath:         wsPath,
	}
}

// RegisterRoutes registers all routes.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)
	r.GET(h.wsPath, h.ws.HandleWebSocket)

	api := r.Group("/api/v1")
	{
		rooms := api.Group("/rooms")
		{
			rooms.GET("/:room/members/count", h.GetMemberCount)
			rooms.GET("/:room/messages", h.authMiddleware.RequireAuth(), h.GetMessages)
		}
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "service": "chat"})
}

// GetMessages returns the room's history window, oldest first.
func (h *Handler) GetMessages(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)
	room := c.Param("room")

	messages, err := h.historyService.Recent(ctx, room)
	if err != nil {
		if errors.Is(err, domain.ErrStorageUnavailable) {
			l.Warn().Err(err).Str(log.FieldRoomID, room).Msg("history unavailable")
			response.StorageUnavailable(c, "history is temporarily unavailable")
			return
		}
		l.Error().Err(err).Str(log.FieldRoomID, room).Msg("failed to read history")
		response.InternalError(c, "failed to read history")
		return
	}

	l.Debug().
		Str(log.FieldUserID, middleware.GetUserID(c)).
		Str(log.FieldUsername, middleware.GetUsername(c)).
		Str(log.FieldRoomID, room).
		Int("count", len(messages)).
		Msg("history read")

	response.Success(c, gin.H{
		"room":     room,
		"messages": messages,
	})
}

// GetMemberCount reports how many connections are joined to the room.
func (h *Handler) GetMemberCount(c *gin.Context) {
	room := c.Param("room")
	response.Success(c, gin.H{
		"room":    room,
		"members": h.chatService.MemberCount(room),
	})
}
