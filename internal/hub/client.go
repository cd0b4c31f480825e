package hub

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/weiawesome/wes-io-chat/internal/config"
	"github.com/weiawesome/wes-io-chat/internal/domain"
)

const (
	closeSlowConsumer  = 1013
	reasonSlowConsumer = "slow consumer"
)

// Client is one WebSocket connection. The read pump runs on the owning
// goroutine; the write pump owns every write to the socket.
//
// Live messages delivered before the history event are parked and flushed
// right behind it, so a client always sees history first.
type Client struct {
	id      string
	session *domain.Session

	conn   *websocket.Conn
	send   chan []byte
	config config.WebSocketConfig
	logger zerolog.Logger

	mu      sync.Mutex
	ready   bool
	pending [][]byte

	done        chan struct{}
	closeOnce   sync.Once
	closeCode   int
	closeReason string
}

func NewClient(id string, conn *websocket.Conn, cfg config.WebSocketConfig, logger zerolog.Logger) *Client {
	buf := cfg.SendBuffer
	if buf < 1 {
		buf = 256
	}
	return &Client{
		id:      id,
		session: domain.NewSession(id),
		conn:    conn,
		send:    make(chan []byte, buf),
		config:  cfg,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

func (c *Client) ID() string {
	return c.id
}

func (c *Client) Session() *domain.Session {
	return c.session
}

// Done is closed once the client starts closing.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Deliver queues a live message. It never blocks: a full queue closes the
// client as a slow consumer.
func (c *Client) Deliver(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.ready {
		// Leave one slot for the history event itself.
		if len(c.pending) >= cap(c.send)-1 {
			c.Close(closeSlowConsumer, reasonSlowConsumer)
			return domain.ErrDeliveryFailed
		}
		c.pending = append(c.pending, data)
		return nil
	}
	return c.enqueue(data)
}

// SendHistory queues the history event followed by anything that was
// delivered while history was being fetched. It may only be called once.
func (c *Client) SendHistory(event *domain.HistoryEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ready {
		return errors.New("history already sent")
	}
	if err := c.enqueue(data); err != nil {
		return err
	}
	for _, p := range c.pending {
		if err := c.enqueue(p); err != nil {
			return err
		}
	}
	c.pending = nil
	c.ready = true
	return nil
}

// enqueue must be called with c.mu held.
func (c *Client) enqueue(data []byte) error {
	select {
	case <-c.done:
		return domain.ErrSessionClosed
	default:
	}

	select {
	case c.send <- data:
		return nil
	default:
		c.Close(closeSlowConsumer, reasonSlowConsumer)
		return domain.ErrDeliveryFailed
	}
}

// Close starts closing the connection with the given close code. Only the
// first call decides the code; later calls are no-ops.
func (c *Client) Close(code int, reason string) {
	c.closeOnce.Do(func() {
		c.closeCode = code
		c.closeReason = reason
		close(c.done)
	})
}

// ReadPump reads frames until the connection fails, times out or starts
// closing, calling handler for each frame in arrival order.
func (c *Client) ReadPump(handler func(c *Client, message []byte)) {
	c.conn.SetReadLimit(c.config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				c.logger.Debug().Err(err).Msg("websocket read error")
			}
			return
		}

		select {
		case <-c.done:
			return
		default:
		}

		c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
		c.session.UpdateActivity()
		handler(c, message)
	}
}

// WritePump drains the send queue and pings the peer. When the client
// closes it sends the close frame and tears the socket down, which also
// unblocks ReadPump.
func (c *Client) WritePump() {
	interval := c.config.PingInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.Close(domain.CloseInternalError, domain.ReasonInternal)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close(domain.CloseGoingAway, "")
				return
			}

		case <-c.done:
			c.drain()
			frame := websocket.FormatCloseMessage(c.closeCode, c.closeReason)
			c.conn.WriteControl(websocket.CloseMessage, frame, time.Now().Add(c.config.WriteWait))
			return
		}
	}
}

// drain flushes messages that were queued before the close started, so a
// rejected client still gets everything it was sent.
func (c *Client) drain() {
	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		default:
			return
		}
	}
}
