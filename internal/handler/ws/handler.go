// Package ws serves chat turns over a websocket so clients can stop a
// turn that is still waiting on the model.
package ws

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	assistantHandler "github.com/zhouzirui/lifesync/backend/internal/handler/assistant"
	"github.com/zhouzirui/lifesync/backend/internal/middleware"
	assistantService "github.com/zhouzirui/lifesync/backend/internal/service/assistant"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
	writeTimeout = 10 * time.Second
)

// Frame types.
const (
	TypeMessage    = "message"
	TypeStop       = "stop"
	TypeNewSession = "new-session"
	TypeReply      = "reply"
	TypeError      = "error"
	TypeStopped    = "stopped"
	TypeConnected  = "connected"
)

// ChatService is the part of the assistant service the socket drives.
type ChatService interface {
	HandleChatTurn(ctx context.Context, ownerID, chatID, text string) (assistantService.Reply, error)
	NewSession(ownerID string)
}

type inboundFrame struct {
	Type   string `json:"type"`
	Prompt string `json:"prompt"`
	ChatID string `json:"chatId"`
}

type outgoingFrame struct {
	Type      string `json:"type"`
	Message   string `json:"message,omitempty"`
	ChatID    string `json:"chatId,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// Handler upgrades requests and runs one turn at a time per connection.
type Handler struct {
	svc      ChatService
	log      logrus.FieldLogger
	upgrader websocket.Upgrader
}

// New returns a websocket handler for svc.
func New(svc ChatService, log logrus.FieldLogger) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{
		svc: svc,
		log: log.WithField("component", "ws"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts the socket endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ai/ws", h.handleWebSocket)
}

// connection holds the per-socket state. gorilla allows a single writer, so
// every write goes through send.
type connection struct {
	conn    *websocket.Conn
	owner   string
	log     logrus.FieldLogger
	writeMu sync.Mutex

	mu       sync.Mutex
	cancel   context.CancelFunc
	inflight sync.WaitGroup
}

// handleWebSocket runs the read loop for one authenticated client.
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	owner, ok := middleware.OwnerFromContext(r.Context())
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	c := &connection{conn: conn, owner: owner, log: h.log.WithField("owner", owner)}
	defer c.inflight.Wait()
	defer c.stop()

	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})
	go c.pingLoop(ctx)

	c.send(outgoingFrame{Type: TypeConnected})

	for {
		var frame inboundFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.WithError(err).Debug("read failed")
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

		switch frame.Type {
		case TypeMessage:
			h.startTurn(ctx, c, frame)
		case TypeStop:
			c.stop()
		case TypeNewSession:
			c.stop()
			c.inflight.Wait()
			h.svc.NewSession(owner)
			c.send(outgoingFrame{Type: TypeReply, Message: "New session started"})
		default:
			c.send(outgoingFrame{Type: TypeError, Error: "unknown frame type"})
		}
	}
}

// startTurn runs frame as the connection's only in-flight turn.
func (h *Handler) startTurn(ctx context.Context, c *connection, frame inboundFrame) {
	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		c.send(outgoingFrame{Type: TypeError, Error: "a reply is already in progress"})
		return
	}
	turnCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.inflight.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.inflight.Done()
		defer cancel()

		reply, err := h.svc.HandleChatTurn(turnCtx, c.owner, frame.ChatID, frame.Prompt)
		c.mu.Lock()
		c.cancel = nil
		c.mu.Unlock()

		switch {
		case err == nil:
			c.send(outgoingFrame{Type: TypeReply, Message: reply.Text, ChatID: reply.ChatID})
		case errors.Is(err, context.Canceled):
			c.send(outgoingFrame{Type: TypeStopped})
		default:
			status, message := assistantHandler.StatusFor(err)
			if status >= http.StatusInternalServerError {
				c.log.WithError(err).Warn("chat turn failed")
			}
			c.send(outgoingFrame{Type: TypeError, Error: message})
		}
	}()
}

// stop cancels the in-flight turn, if any.
func (c *connection) stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
}

func (c *connection) send(frame outgoingFrame) {
	frame.Timestamp = time.Now().Unix()
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteJSON(frame); err != nil {
		c.log.WithError(err).Debug("write failed")
	}
}

func (c *connection) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
