package echoapi

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/trezcool/presence/core"
	"github.com/trezcool/presence/core/attendance"
	"github.com/trezcool/presence/core/capture"
	"github.com/trezcool/presence/core/gate"
	"github.com/trezcool/presence/core/monitor"
	"github.com/trezcool/presence/core/session"
	"github.com/trezcool/presence/core/user"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 64
)

// Event types
const (
	EventTick     = "tick"
	EventPeriod   = "period"
	EventGate     = "gate"
	EventCapture  = "capture"
	EventRecord   = "record"
	EventGeofence = "geofence"
	EventBehavior = "behavior"
	EventPresence = "presence"
)

// Message is what the /events stream sends.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type client struct {
	usr  user.User
	send chan Message
}

// canSee reports whether a message about subject may be sent to the client.
func (c *client) canSee(subject string) bool {
	return c.usr.CanViewAttendance(subject)
}

// hub fans the events of every service out to the websocket clients.
type hub struct {
	auth     *authenticator
	users    *user.Directory
	deps     Deps
	logger   core.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool
	unsubs  []func()
}

func newHub(auth *authenticator, frontendURL string, deps Deps, logger core.Logger) *hub {
	h := &hub{
		auth:    auth,
		users:   deps.Users,
		deps:    deps,
		logger:  logger,
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origin == frontendURL
			},
		},
	}

	if deps.Clock != nil {
		h.unsubs = append(h.unsubs,
			deps.Clock.Subscribe(func(t session.Tick) {
				h.broadcast(Message{Type: EventTick, Data: t}, "")
			}),
			deps.Clock.OnPeriodChange(func(pc session.PeriodChange) {
				h.broadcast(Message{Type: EventPeriod, Data: pc}, "")
			}),
		)
	}
	if deps.Gate != nil {
		h.unsubs = append(h.unsubs, deps.Gate.Subscribe(func(st gate.State) {
			h.broadcast(Message{Type: EventGate, Data: st}, "")
		}))
	}
	if deps.Captures != nil {
		h.unsubs = append(h.unsubs, deps.Captures.Subscribe(func(ev capture.Event) {
			h.broadcast(Message{Type: EventCapture, Data: ev}, ev.Status.Subject)
		}))
	}
	if deps.Attendance != nil {
		h.unsubs = append(h.unsubs, deps.Attendance.Subscribe(func(rec attendance.Record) {
			h.broadcast(Message{Type: EventRecord, Data: rec}, rec.Subject)
		}))
	}
	if deps.Geofence != nil {
		h.unsubs = append(h.unsubs, deps.Geofence.Subscribe(func(snap monitor.GeofenceSnapshot) {
			h.broadcast(Message{Type: EventGeofence, Data: snap}, "")
		}))
	}
	if deps.Behavior != nil {
		h.unsubs = append(h.unsubs, deps.Behavior.Subscribe(func(snap monitor.BehaviorSnapshot) {
			h.broadcast(Message{Type: EventBehavior, Data: snap}, "")
		}))
	}
	if deps.Presence != nil {
		h.unsubs = append(h.unsubs, deps.Presence.Subscribe(func(snap monitor.PresenceSnapshot) {
			h.broadcast(Message{Type: EventPresence, Data: snap}, snap.Subject)
		}))
	}
	return h
}

// broadcast queues msg for every client allowed to see subject; an empty
// subject is public. Slow clients lose the message.
func (h *hub) broadcast(msg Message, subject string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	for c := range h.clients {
		if subject != "" && !c.canSee(subject) {
			continue
		}
		select {
		case c.send <- msg:
		default:
			h.logger.Debug(fmt.Sprintf("events: dropping %s message for user %d", msg.Type, c.usr.ID))
		}
	}
}

func (h *hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// close disconnects every client and stops listening to the services.
func (h *hub) close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	unsubs := h.unsubs
	h.unsubs = nil
	h.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
}

// serve upgrades an authenticated request to a websocket streaming events.
// Browsers cannot set headers on websocket requests, so the token comes in the query string.
func (h *hub) serve(ctx echo.Context) error {
	claims, err := h.auth.parseToken(ctx.QueryParam("token"))
	if err != nil {
		return err
	}
	usr, err := h.users.GetByID(claims.UserID)
	if err != nil {
		return errUnauthorized
	}

	conn, err := h.upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		h.logger.Debug(fmt.Sprintf("events: upgrading connection: %v", err))
		return nil // the upgrader has already replied
	}

	c := &client{usr: usr, send: make(chan Message, sendBuffer)}
	for _, msg := range h.greeting(c) {
		c.send <- msg
	}
	if !h.register(c) {
		_ = conn.Close()
		return nil
	}

	go h.writePump(conn, c)
	h.readPump(conn, c)
	return nil
}

// greeting is the current state sent to a client when it connects.
func (h *hub) greeting(c *client) []Message {
	var msgs []Message
	if h.deps.Clock != nil {
		msgs = append(msgs, Message{Type: EventTick, Data: h.deps.Clock.Snapshot()})
	}
	if h.deps.Gate != nil {
		msgs = append(msgs, Message{Type: EventGate, Data: h.deps.Gate.State()})
	}
	if h.deps.Captures != nil && c.usr.IsStudent() {
		msgs = append(msgs, Message{Type: EventCapture, Data: capture.Event{Status: h.deps.Captures.Status(c.usr.RollNo)}})
	}
	return msgs
}

// readPump discards incoming messages; it only watches the connection.
func (h *hub) readPump(conn *websocket.Conn, c *client) {
	defer func() {
		h.unregister(c)
		_ = conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug(fmt.Sprintf("events: reading: %v", err))
			}
			return
		}
	}
}

func (h *hub) writePump(conn *websocket.Conn, c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debug(fmt.Sprintf("events: writing %s: %v", msg.Type, err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
