// Package ws implements a browser chat channel over WebSocket. Each socket
// is bound to the user named in its ?user= query parameter; replies and
// notifications for that user fan out to every socket they have open.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/soyeahso/agendabot/internal/domain"
	"github.com/soyeahso/agendabot/internal/logging"
)

const (
	maxUserLen   = 64
	maxFrameSize = 16 * 1024
	writeTimeout = 10 * time.Second
)

// ErrNoConnection is returned by Send when the user has no open socket.
var ErrNoConnection = errors.New("ws: user has no open connection")

// Frame types sent to the browser.
const (
	FrameReply        = "reply"
	FrameNotification = "notification"
	FrameError        = "error"
)

// Frame is the JSON message exchanged with clients. Clients only send Text.
type Frame struct {
	Type string `json:"type,omitempty"`
	Text string `json:"text"`
}

type conn struct {
	id     string
	user   string
	socket *websocket.Conn

	mu     sync.Mutex
	closed bool
}

func (c *conn) send(f Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return websocket.ErrCloseSent
	}
	c.socket.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.socket.WriteJSON(f)
}

func (c *conn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.socket.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
	c.socket.Close()
}

// Channel is a domain.Channel and an http.Handler.
type Channel struct {
	upgrader websocket.Upgrader
	log      *logging.Logger

	mu      sync.RWMutex
	conns   map[string]map[string]*conn // user -> conn id -> conn
	handler func(msg domain.InboundMessage)
	running bool
}

// New creates a WebSocket channel. allowedOrigins lists browser origins
// allowed to connect; requests without an Origin header are always allowed.
func New(allowedOrigins []string, log *logging.Logger) *Channel {
	return &Channel{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin(allowedOrigins),
		},
		log:   log.Sub("ws"),
		conns: make(map[string]map[string]*conn),
	}
}

func checkOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}

func (c *Channel) ID() string { return "ws" }

func (c *Channel) OnMessage(handler func(msg domain.InboundMessage)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = handler
}

// Start marks the channel running and blocks until ctx is done. Sockets are
// accepted by ServeHTTP, which the gateway mounts.
func (c *Channel) Start(ctx context.Context) error {
	c.mu.Lock()
	c.running = true
	c.mu.Unlock()

	<-ctx.Done()
	c.closeAll()
	return nil
}

// Stop closes every open socket.
func (c *Channel) Stop(_ context.Context) error {
	c.closeAll()
	return nil
}

func (c *Channel) closeAll() {
	c.mu.Lock()
	all := c.conns
	c.conns = make(map[string]map[string]*conn)
	c.running = false
	c.mu.Unlock()

	for _, byID := range all {
		for _, cn := range byID {
			cn.close()
		}
	}
}

// Status reports whether the channel is accepting sockets.
func (c *Channel) Status() domain.ChannelStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return domain.ChannelStatus{
		ChannelID: "ws",
		Running:   c.running,
		Connected: c.running,
	}
}

// Connections returns the number of open sockets.
func (c *Channel) Connections() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, byID := range c.conns {
		n += len(byID)
	}
	return n
}

// Send writes msg to every socket of msg.To.
func (c *Channel) Send(_ context.Context, msg domain.OutboundMessage) error {
	c.mu.RLock()
	targets := make([]*conn, 0, len(c.conns[msg.To]))
	for _, cn := range c.conns[msg.To] {
		targets = append(targets, cn)
	}
	c.mu.RUnlock()

	if len(targets) == 0 {
		return fmt.Errorf("%w: %s", ErrNoConnection, msg.To)
	}

	frame := Frame{Type: FrameReply, Text: msg.Body}
	if msg.Notification {
		frame.Type = FrameNotification
	}
	var delivered int
	var errs []error
	for _, cn := range targets {
		if err := cn.send(frame); err != nil {
			errs = append(errs, err)
			continue
		}
		delivered++
	}
	if delivered == 0 {
		return fmt.Errorf("ws send to %s: %w", msg.To, errors.Join(errs...))
	}
	return nil
}

// ServeHTTP upgrades the request and serves the socket until it closes.
func (c *Channel) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user := strings.TrimSpace(r.URL.Query().Get("user"))
	if user == "" || utf8.RuneCountInString(user) > maxUserLen {
		http.Error(w, "missing or invalid user", http.StatusBadRequest)
		return
	}

	c.mu.RLock()
	running := c.running
	c.mu.RUnlock()
	if !running {
		http.Error(w, "chat unavailable", http.StatusServiceUnavailable)
		return
	}

	socket, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}
	socket.SetReadLimit(maxFrameSize)

	cn := &conn{id: uuid.New().String(), user: user, socket: socket}
	c.add(cn)
	defer func() {
		c.remove(cn)
		cn.close()
	}()

	c.readLoop(cn)
}

func (c *Channel) add(cn *conn) {
	c.mu.Lock()
	if c.conns[cn.user] == nil {
		c.conns[cn.user] = make(map[string]*conn)
	}
	c.conns[cn.user][cn.id] = cn
	c.mu.Unlock()
	c.log.Info().Str("connId", cn.id).Str("user", cn.user).Msg("client connected")
}

func (c *Channel) remove(cn *conn) {
	c.mu.Lock()
	if byID := c.conns[cn.user]; byID != nil {
		delete(byID, cn.id)
		if len(byID) == 0 {
			delete(c.conns, cn.user)
		}
	}
	c.mu.Unlock()
	c.log.Info().Str("connId", cn.id).Str("user", cn.user).Msg("client disconnected")
}

func (c *Channel) readLoop(cn *conn) {
	for {
		_, data, err := cn.socket.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debug().Str("connId", cn.id).Msg("client closed connection")
			} else {
				c.log.Debug().Err(err).Str("connId", cn.id).Msg("read error")
			}
			return
		}

		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			cn.send(Frame{Type: FrameError, Text: "invalid frame"})
			continue
		}
		body := strings.TrimSpace(f.Text)
		if body == "" {
			continue
		}

		c.mu.RLock()
		handler := c.handler
		c.mu.RUnlock()
		if handler == nil {
			continue
		}
		handler(domain.InboundMessage{
			ID:        uuid.New().String(),
			ChannelID: "ws",
			From:      cn.user,
			FromName:  cn.user,
			ChatID:    cn.user,
			ChatType:  domain.ChatTypeDM,
			Body:      body,
			Timestamp: time.Now(),
		})
	}
}
