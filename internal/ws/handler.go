package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/example/courierlive/internal/relay"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = 30 * time.Second
	maxMessageSize = 8192
	sendBuffer     = 64
)

var errSlowConsumer = errors.New("send queue full")
var errConnClosed = errors.New("connection closed")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Gate authorizes a handshake before the connection may join rooms or
// publish. nil means no authorization.
type Gate func(r *http.Request) error

// Handler upgrades HTTP requests and bridges each connection to the
// relay service.
type Handler struct {
	svc    *relay.Service
	gate   Gate
	logger *zap.Logger
}

// NewHandler constructs the websocket handler.
func NewHandler(svc *relay.Service, gate Gate, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, gate: gate, logger: logger}
}

// ServeHTTP performs the upgrade and runs the connection pumps. The
// read pump owns cleanup: any read error, including the peer closing,
// removes the connection from its rooms.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.gate != nil {
		if err := h.gate(r); err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	c := &client{
		id:     uuid.NewString(),
		conn:   conn,
		send:   make(chan relay.Event, sendBuffer),
		svc:    h.svc,
		logger: h.logger,
	}
	go c.writePump()
	c.readPump()
}

// client is one websocket connection. It implements relay.Conn.
type client struct {
	id     string
	conn   *websocket.Conn
	send   chan relay.Event
	svc    *relay.Service
	logger *zap.Logger

	mu     sync.Mutex
	closed bool
}

// ID returns the connection identifier.
func (c *client) ID() string { return c.id }

// Send enqueues an event without blocking. A full queue drops the
// frame instead of stalling the broadcasting room; a stale position is
// worthless by the time a slow consumer drains it.
func (c *client) Send(event relay.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errConnClosed
	}
	select {
	case c.send <- event:
		return nil
	default:
		return errSlowConsumer
	}
}

func (c *client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func (c *client) readPump() {
	defer func() {
		c.svc.HandleDisconnect(c)
		c.closeSend()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("websocket read failed", zap.String("conn_id", c.id), zap.Error(err))
			}
			return
		}
		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.logger.Debug("unparsable frame", zap.String("conn_id", c.id), zap.Error(err))
			continue
		}
		switch env.Type {
		case relay.EventJoinOrder:
			var payload relay.JoinOrder
			_ = json.Unmarshal(env.Data, &payload)
			if payload.OrderID == "" {
				continue
			}
			c.svc.HandleJoin(c, payload.OrderID)
		case relay.EventUpdateLocation:
			var payload relay.UpdateLocation
			_ = json.Unmarshal(env.Data, &payload)
			if payload.OrderID == "" {
				continue
			}
			c.svc.HandleLocationUpdate(context.Background(), payload.OrderID, payload.Report())
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case event, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
