package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiawesome/wes-io-chat/internal/auth"
	"github.com/weiawesome/wes-io-chat/internal/config"
	"github.com/weiawesome/wes-io-chat/internal/domain"
	"github.com/weiawesome/wes-io-chat/internal/history"
	"github.com/weiawesome/wes-io-chat/internal/hub"
	"github.com/weiawesome/wes-io-chat/internal/service"
	"github.com/weiawesome/wes-io-chat/pkg/jwt"
	"github.com/weiawesome/wes-io-chat/pkg/middleware"
)

const testSecret = "test-secret"

type testServer struct {
	srv      *httptest.Server
	mr       *miniredis.Miniredis
	store    history.Store
	registry *hub.Registry
	signer   *jwt.Signer
}

func newTestServer(t *testing.T, opts ...func(*config.WebSocketConfig)) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	client, err := history.NewRedisClient(config.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	store := history.WithTimeout(history.NewRedisStore(client, "room", 50), time.Second)

	verifier, err := auth.NewJWTVerifier(testSecret, "", 0)
	require.NoError(t, err)
	signer, err := jwt.NewSigner(testSecret, "", time.Minute)
	require.NoError(t, err)

	wsCfg := config.WebSocketConfig{
		Path:           "/",
		PingInterval:   30 * time.Second,
		PongWait:       time.Minute,
		WriteWait:      5 * time.Second,
		MaxMessageSize: 4096,
		SendBuffer:     64,
	}
	for _, opt := range opts {
		opt(&wsCfg)
	}

	registry := hub.NewRegistry()
	chat := service.NewChatService(verifier, store, registry, nil)
	ws := NewWSHandler(chat, wsCfg)
	h := NewHandler(chat, service.NewHistoryService(store),
		middleware.NewAuthMiddleware(auth.ValidateFunc(verifier)), ws, wsCfg.Path)

	r := gin.New()
	h.RegisterRoutes(r)
	srv := httptest.NewServer(r)

	t.Cleanup(func() {
		registry.CloseAll(domain.CloseGoingAway, domain.ReasonShutdown)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		ws.Wait(ctx)
		srv.Close()
		store.Close()
	})

	return &testServer{srv: srv, mr: mr, store: store, registry: registry, signer: signer}
}

func (s *testServer) token(t *testing.T, userID, name string) string {
	t.Helper()
	token, err := s.signer.Sign(userID, name)
	require.NoError(t, err)
	return token
}

func (s *testServer) dial(t *testing.T, room, token string, header http.Header) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	q := url.Values{}
	if room != "" {
		q.Set("room", room)
	}
	if token != "" {
		q.Set("token", token)
	}
	u := "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/?" + q.Encode()
	conn, resp, err := websocket.DefaultDialer.Dial(u, header)
	if err == nil {
		t.Cleanup(func() { conn.Close() })
	}
	return conn, resp, err
}

func (s *testServer) join(t *testing.T, room, userID, name string) (*websocket.Conn, wireEvent) {
	t.Helper()
	conn, _, err := s.dial(t, room, s.token(t, userID, name), nil)
	require.NoError(t, err)
	ev := readEvent(t, conn)
	require.Equal(t, domain.EventTypeHistory, ev.Type)
	return conn, ev
}

type wireEvent struct {
	Type     string               `json:"type"`
	ID       string               `json:"id"`
	Room     string               `json:"room"`
	Text     string               `json:"text"`
	SentAt   int64                `json:"sent_at"`
	Author   domain.Principal     `json:"author"`
	Messages []domain.ChatMessage `json:"messages"`
}

func readEvent(t *testing.T, conn *websocket.Conn) wireEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var ev wireEvent
	require.NoError(t, json.Unmarshal(data, &ev))
	return ev
}

func expectClose(t *testing.T, conn *websocket.Conn, code int, reason string) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, _, err := conn.ReadMessage()
	var ce *websocket.CloseError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, code, ce.Code)
	assert.Equal(t, reason, ce.Text)
}

func send(t *testing.T, conn *websocket.Conn, text string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(text)))
}

func TestLobbyEndToEnd(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		require.NoError(t, s.store.Append(ctx, "lobby", domain.ChatMessage{
			ID:     fmt.Sprintf("old-%d", i),
			Room:   "lobby",
			Author: domain.Principal{ID: "u0", DisplayName: "zed"},
			Text:   fmt.Sprintf("old %d", i),
			SentAt: time.UnixMilli(int64(i)),
		}))
	}

	a, replay := s.join(t, "lobby", "u-a", "alice")
	require.Len(t, replay.Messages, 3)
	assert.Equal(t, "lobby", replay.Room)
	assert.Equal(t, "old 1", replay.Messages[0].Text)
	assert.Equal(t, "old 3", replay.Messages[2].Text)

	b, _ := s.join(t, "lobby", "u-b", "bob")
	send(t, b, "hi")

	for _, conn := range []*websocket.Conn{a, b} {
		ev := readEvent(t, conn)
		assert.Equal(t, domain.EventTypeMessage, ev.Type)
		assert.Equal(t, "lobby", ev.Room)
		assert.Equal(t, "hi", ev.Text)
		assert.Equal(t, domain.Principal{ID: "u-b", DisplayName: "bob"}, ev.Author)
		assert.NotEmpty(t, ev.ID)
		assert.NotZero(t, ev.SentAt)
	}

	stored, err := s.store.Snapshot(ctx, "lobby")
	require.NoError(t, err)
	assert.Len(t, stored, 4)
}

func TestRejectsMissingParams(t *testing.T) {
	s := newTestServer(t)

	conn, _, err := s.dial(t, "lobby", "", nil)
	require.NoError(t, err)
	expectClose(t, conn, domain.ClosePolicyViolation, domain.ReasonMissingParams)

	conn, _, err = s.dial(t, "", s.token(t, "u1", "alice"), nil)
	require.NoError(t, err)
	expectClose(t, conn, domain.ClosePolicyViolation, domain.ReasonMissingParams)

	assert.Zero(t, s.registry.RoomCount())
}

func TestRejectsBadToken(t *testing.T) {
	s := newTestServer(t)

	other, err := jwt.NewSigner("some-other-secret", "", time.Minute)
	require.NoError(t, err)
	forged, err := other.Sign("u1", "alice")
	require.NoError(t, err)

	for _, token := range []string{"garbage", forged} {
		conn, _, err := s.dial(t, "lobby", token, nil)
		require.NoError(t, err)
		expectClose(t, conn, domain.CloseUnauthorized, domain.ReasonUnauthorized)
	}
	assert.Zero(t, s.registry.Count("lobby"))
}

func TestBlankFramesProduceNothing(t *testing.T) {
	s := newTestServer(t)
	a, _ := s.join(t, "lobby", "u-a", "alice")

	send(t, a, "   ")
	send(t, a, "\n\t")
	send(t, a, "real")

	ev := readEvent(t, a)
	assert.Equal(t, "real", ev.Text)

	stored, err := s.store.Snapshot(context.Background(), "lobby")
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestStorageOutageKeepsConnectionOpen(t *testing.T) {
	s := newTestServer(t)
	a, _ := s.join(t, "lobby", "u-a", "alice")

	s.mr.SetError("ERR injected outage")
	send(t, a, "lost")
	// Let the dropped frame be processed before storage comes back.
	time.Sleep(100 * time.Millisecond)
	s.mr.SetError("")

	send(t, a, "back")
	ev := readEvent(t, a)
	assert.Equal(t, domain.EventTypeMessage, ev.Type)
	assert.Equal(t, "back", ev.Text)

	stored, err := s.store.Snapshot(context.Background(), "lobby")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "back", stored[0].Text)
}

func TestDisconnectRemovesMembership(t *testing.T) {
	s := newTestServer(t)
	a, _ := s.join(t, "lobby", "u-a", "alice")
	require.Equal(t, 1, s.registry.Count("lobby"))

	require.NoError(t, a.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")))
	a.Close()

	assert.Eventually(t, func() bool {
		return s.registry.Count("lobby") == 0
	}, 3*time.Second, 20*time.Millisecond)
}

func TestOriginAllowList(t *testing.T) {
	s := newTestServer(t, func(c *config.WebSocketConfig) {
		c.AllowedOrigins = []string{"https://chat.example.com"}
	})
	token := s.token(t, "u1", "alice")

	_, resp, err := s.dial(t, "lobby", token, http.Header{"Origin": {"https://evil.example.com"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := s.dial(t, "lobby", token, http.Header{"Origin": {"https://chat.example.com"}})
	require.NoError(t, err)
	assert.Equal(t, domain.EventTypeHistory, readEvent(t, conn).Type)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	resp, err := http.Get(s.srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "chat", body["service"])
}

type messagesResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Room     string               `json:"room"`
		Messages []domain.ChatMessage `json:"messages"`
	} `json:"data"`
	Error *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func (s *testServer) getMessages(t *testing.T, room, token string) (int, messagesResponse) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, s.srv.URL+"/api/v1/rooms/"+room+"/messages", nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body messagesResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestMessagesAPI(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t, "u1", "alice")

	status, _ := s.getMessages(t, "lobby", "")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body := s.getMessages(t, "lobby", token)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, body.Success)
	assert.Empty(t, body.Data.Messages)

	a, _ := s.join(t, "lobby", "u1", "alice")
	send(t, a, "hello")
	readEvent(t, a)

	status, body = s.getMessages(t, "lobby", token)
	assert.Equal(t, http.StatusOK, status)
	require.Len(t, body.Data.Messages, 1)
	assert.Equal(t, "hello", body.Data.Messages[0].Text)

	s.mr.SetError("ERR injected outage")
	status, body = s.getMessages(t, "lobby", token)
	s.mr.SetError("")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	require.NotNil(t, body.Error)
	assert.Equal(t, "STORAGE_UNAVAILABLE", body.Error.Code)
}

func TestMemberCount(t *testing.T) {
	s := newTestServer(t)
	s.join(t, "lobby", "u1", "alice")
	s.join(t, "lobby", "u2", "bob")

	resp, err := http.Get(s.srv.URL + "/api/v1/rooms/lobby/members/count")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body struct {
		Data struct {
			Members int `json:"members"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 2, body.Data.Members)
}

func TestShutdownClosesConnections(t *testing.T) {
	s := newTestServer(t)
	a, _ := s.join(t, "lobby", "u1", "alice")

	s.registry.CloseAll(domain.CloseGoingAway, domain.ReasonShutdown)
	expectClose(t, a, domain.CloseGoingAway, domain.ReasonShutdown)

	assert.Eventually(t, func() bool {
		return s.registry.Count("lobby") == 0
	}, 3*time.Second, 20*time.Millisecond)
}
