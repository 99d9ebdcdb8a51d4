// Package realtime hosts websocket clients grouped into named rooms.
package realtime

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/charlesng35/authhub/pkg/logger"
	"github.com/charlesng35/authhub/pkg/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 << 10

	defaultBufferSize = 64

	defaultRate  = rate.Limit(10)
	defaultBurst = 20
)

// Client events.
const (
	EventJoinRoom  = "join-room"
	EventLeaveRoom = "leave-room"
	EventPing      = "ping"

	EventJoined = "joined"
	EventLeft   = "left"
	EventPong   = "pong"
)

// Message is the JSON frame exchanged with clients.
type Message struct {
	Event string `json:"event"`
	Room  string `json:"room,omitempty"`
	Data  any    `json:"data,omitempty"`
}

type controlMessage struct {
	Event string `json:"event"`
	Room  string `json:"room"`
}

// Adapter fans room broadcasts out to other nodes.
type Adapter interface {
	Publish(ctx context.Context, room string, message Message) error
	Run(ctx context.Context, deliver func(room string, message Message)) error
}

// Option customises a Hub.
type Option func(*Hub)

// WithAllowedOrigins restricts websocket upgrades to the given origins. "*" allows any.
func WithAllowedOrigins(origins []string) Option {
	return func(h *Hub) {
		h.origins = nil
		for _, origin := range origins {
			if origin = strings.TrimSpace(origin); origin != "" {
				h.origins = append(h.origins, strings.TrimRight(origin, "/"))
			}
		}
	}
}

// WithRateLimit bounds inbound control messages per connection.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(h *Hub) {
		if limit > 0 && burst > 0 {
			h.limit = limit
			h.burst = burst
		}
	}
}

// WithAdapter distributes broadcasts through adapter.
func WithAdapter(adapter Adapter) Option {
	return func(h *Hub) {
		h.adapter = adapter
	}
}

// Hub tracks room membership of connected clients.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*connection]struct{}

	upgrader websocket.Upgrader
	origins  []string
	limit    rate.Limit
	burst    int
	adapter  Adapter
	log      *zap.Logger
}

// NewHub constructs a realtime hub.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		rooms: make(map[string]map[*connection]struct{}),
		limit: defaultRate,
		burst: defaultBurst,
		log:   logger.WithModule("realtime"),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// Run consumes broadcasts from the adapter until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	if h.adapter == nil {
		<-ctx.Done()
		return nil
	}
	return h.adapter.Run(ctx, h.deliver)
}

// Serve upgrades the request and blocks until the client disconnects.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request) {
	socket, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("upgrade failed", zap.Error(err))
		return
	}

	client := &connection{
		id:      uuid.NewString(),
		hub:     h,
		socket:  socket,
		rooms:   make(map[string]struct{}),
		send:    make(chan Message, defaultBufferSize),
		limiter: rate.NewLimiter(h.limit, h.burst),
	}
	metrics.RealtimeConnections.Inc()
	h.log.Info("client connected", zap.String("connection_id", client.id))

	go client.writeLoop()
	client.readLoop()
}

// BroadcastRoom delivers message to every member of room across all nodes.
func (h *Hub) BroadcastRoom(ctx context.Context, room string, message Message) {
	room = normalizeRoom(room)
	if room == "" {
		return
	}
	message.Room = room

	if h.adapter != nil {
		err := h.adapter.Publish(ctx, room, message)
		if err == nil {
			return
		}
		h.log.Warn("adapter publish failed, delivering locally", zap.String("room", room), zap.Error(err))
	}
	h.deliver(room, message)
}

// RoomSize reports the number of local members in room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[normalizeRoom(room)])
}

func (h *Hub) deliver(room string, message Message) {
	h.mu.RLock()
	targets := make([]*connection, 0, len(h.rooms[room]))
	for client := range h.rooms[room] {
		targets = append(targets, client)
	}
	h.mu.RUnlock()

	message.Room = room
	for _, client := range targets {
		client.enqueue(message)
	}
}

func (h *Hub) join(client *connection, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*connection]struct{})
	}
	h.rooms[room][client] = struct{}{}
	client.rooms[room] = struct{}{}
}

func (h *Hub) leave(client *connection, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(client, room)
}

func (h *Hub) unregister(client *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for room := range client.rooms {
		h.removeLocked(client, room)
	}
}

func (h *Hub) removeLocked(client *connection, room string) {
	members := h.rooms[room]
	delete(members, client)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
	delete(client.rooms, room)
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := strings.TrimRight(r.Header.Get("Origin"), "/")
	if origin == "" {
		return true
	}
	for _, allowed := range h.origins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	originHost := hostWithoutPort(origin)
	return originHost == hostWithoutPort(r.Host) || isLoopback(originHost)
}

type connection struct {
	id      string
	hub     *Hub
	socket  *websocket.Conn
	rooms   map[string]struct{}
	send    chan Message
	limiter *rate.Limiter

	mu     sync.Mutex
	closed bool
	once   sync.Once
}

func (c *connection) readLoop() {
	defer c.close()

	c.socket.SetReadLimit(maxMessageSize)
	_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
	c.socket.SetPongHandler(func(string) error {
		_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, payload, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Warn("unexpected close", zap.String("connection_id", c.id), zap.Error(err))
			}
			return
		}
		if len(payload) == 0 {
			continue
		}
		if !c.limiter.Allow() {
			c.hub.log.Debug("dropping control message over rate limit", zap.String("connection_id", c.id))
			continue
		}

		var ctrl controlMessage
		if err := json.Unmarshal(payload, &ctrl); err != nil {
			c.hub.log.Debug("invalid control payload", zap.String("connection_id", c.id), zap.Error(err))
			continue
		}
		c.handle(ctrl)
	}
}

func (c *connection) handle(ctrl controlMessage) {
	room := normalizeRoom(ctrl.Room)

	switch strings.ToLower(strings.TrimSpace(ctrl.Event)) {
	case EventJoinRoom:
		if room == "" {
			return
		}
		c.hub.join(c, room)
		c.hub.log.Info("client joined room", zap.String("connection_id", c.id), zap.String("room", room))
		c.enqueue(Message{Event: EventJoined, Room: room})
	case EventLeaveRoom:
		if room == "" {
			return
		}
		c.hub.leave(c, room)
		c.enqueue(Message{Event: EventLeft, Room: room})
	case EventPing:
		c.enqueue(Message{Event: EventPong})
	default:
		c.hub.log.Debug("unsupported event", zap.String("connection_id", c.id), zap.String("event", ctrl.Event))
	}
}

func (c *connection) enqueue(message Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	select {
	case c.send <- message:
	default:
		c.hub.log.Warn("dropping slow client", zap.String("connection_id", c.id))
		c.closed = true
		close(c.send)
	}
}

func (c *connection) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.socket.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.socket.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.socket.WriteJSON(message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *connection) close() {
	c.once.Do(func() {
		c.hub.unregister(c)

		c.mu.Lock()
		if !c.closed {
			c.closed = true
			close(c.send)
		}
		c.mu.Unlock()

		_ = c.socket.Close()
		metrics.RealtimeConnections.Dec()
		c.hub.log.Info("client disconnected", zap.String("connection_id", c.id))
	})
}

func hostWithoutPort(host string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		return ""
	}

	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		if parsed, err := url.Parse(host); err == nil {
			return parsed.Hostname()
		}
	}

	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

func isLoopback(host string) bool {
	ip := net.ParseIP(host)
	if ip != nil {
		return ip.IsLoopback()
	}
	return strings.EqualFold(host, "localhost")
}

func normalizeRoom(room string) string {
	return strings.TrimSpace(room)
}
