package handler

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/weiawesome/wes-io-chat/internal/config"
	"github.com/weiawesome/wes-io-chat/internal/domain"
	"github.com/weiawesome/wes-io-chat/internal/hub"
	"github.com/weiawesome/wes-io-chat/internal/service"
	"github.com/weiawesome/wes-io-chat/pkg/log"
)

// WSHandler upgrades chat connections and runs each one until it closes.
type WSHandler struct {
	service  service.ChatService
	wsCfg    config.WebSocketConfig
	upgrader websocket.Upgrader
	conns    sync.WaitGroup
}

func NewWSHandler(svc service.ChatService, wsCfg config.WebSocketConfig) *WSHandler {
	h := &WSHandler{
		service: svc,
		wsCfg:   wsCfg,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// checkOrigin allows everything when no origins are configured. Requests
// without an Origin header come from non-browser clients and are allowed.
func (h *WSHandler) checkOrigin(r *http.Request) bool {
	if len(h.wsCfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.wsCfg.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// HandleWebSocket reads room and token from the query string. The
// connection is always upgraded first so rejections arrive as close codes.
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	room := c.Query("room")
	token := c.Query("token")
	l := log.Ctx(c.Request.Context())

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		l.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	clientID := uuid.New().String()
	logger := l.With().Str(log.FieldClientID, clientID).Logger()
	client := hub.NewClient(clientID, conn, h.wsCfg, logger)

	// The request context ends when this handler returns.
	ctx := log.WithLogger(context.Background(), logger)

	h.conns.Add(1)
	go client.WritePump()
	go h.serve(ctx, client, room, token)
}

func (h *WSHandler) serve(ctx context.Context, client *hub.Client, room, token string) {
	defer h.conns.Done()

	ctx, err := h.service.Connect(ctx, client, room, token)
	if err != nil {
		code, reason := domain.CloseFor(err)
		l := log.Ctx(ctx)
		l.Info().Err(err).Int("close_code", code).Msg("connection rejected")
		client.Close(code, reason)
		return
	}

	l := log.Ctx(ctx)
	l.Info().Msg("client connected")

	client.ReadPump(func(c *hub.Client, message []byte) {
		h.service.HandleMessage(ctx, c, message)
	})

	h.service.Disconnect(ctx, client)
	client.Close(domain.CloseNormal, "")

	sess := client.Session()
	l.Info().
		Dur("session_duration", sess.Age()).
		Time("last_active_at", sess.LastActiveAt()).
		Msg("client disconnected")
}

// Wait blocks until every connection has finished or ctx ends.
func (h *WSHandler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.conns.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
