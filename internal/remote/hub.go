package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/bus"
	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/scheduler"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 64
)

// Publisher receives renderer connection events.
type Publisher interface {
	Publish(event bus.Event)
}

// Config configures the hub.
type Config struct {
	LoadTimeout    time.Duration
	AllowedOrigins []string
}

func DefaultConfig() Config {
	return Config{LoadTimeout: 10 * time.Second}
}

// Hub serves renderer connections. Clip loads and weights are issued from
// the loop goroutine; acknowledgements are posted back to it.
type Hub struct {
	loop     scheduler.Poster
	clock    scheduler.Clock
	cfg      Config
	upgrader websocket.Upgrader
	events   Publisher
	logger   zerolog.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}

	// loop-owned
	pending   map[string]*pendingLoad
	dirty     map[string]float64
	onConnect func()
}

type pendingLoad struct {
	clip   string
	future *scheduler.Future
	timer  scheduler.Timer
	stop   func() bool
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

// NewHub creates a hub. events may be nil.
func NewHub(loop scheduler.Poster, clock scheduler.Clock, cfg Config, events Publisher, logger zerolog.Logger) *Hub {
	if cfg.LoadTimeout <= 0 {
		cfg.LoadTimeout = DefaultConfig().LoadTimeout
	}
	h := &Hub{
		loop:    loop,
		clock:   clock,
		cfg:     cfg,
		events:  events,
		logger:  logger.With().Str("component", "remote").Logger(),
		clients: make(map[*client]struct{}),
		pending: make(map[string]*pendingLoad),
		dirty:   make(map[string]float64),
	}
	h.upgrader = websocket.Upgrader{CheckOrigin: h.checkOrigin}
	return h
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	if len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, o := range h.cfg.AllowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

// OnConnect registers fn to run on the loop whenever a renderer connects.
// Must be called before serving.
func (h *Hub) OnConnect(fn func()) {
	h.onConnect = fn
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and serves the renderer until it goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	h.logger.Info().Str("client", c.id).Str("remote", r.RemoteAddr).Msg("renderer connected")
	h.publish(bus.EventTypeRendererConnected, map[string]any{"client": c.id})
	if h.onConnect != nil {
		h.loop.Post(h.onConnect)
	}

	go h.writePump(c)
	h.readPump(c)

	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
	conn.Close()

	h.logger.Info().Str("client", c.id).Msg("renderer disconnected")
	h.publish(bus.EventTypeRendererDisconnected, map[string]any{"client": c.id})
}

func (h *Hub) readPump(c *client) {
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn().Err(err).Str("client", c.id).Msg("read error")
			}
			return
		}

		switch msg.Type {
		case TypeClipLoaded:
			id := msg.ID
			h.loop.Post(func() { h.settle(id, nil) })
		case TypeClipFailed:
			id, reason := msg.ID, msg.Error
			h.loop.Post(func() { h.settle(id, fmt.Errorf("%w: %s", ErrRenderer, reason)) })
		case TypeHello:
			h.logger.Debug().Str("client", c.id).Msg("renderer hello")
		default:
			h.logger.Debug().Str("type", msg.Type).Msg("ignoring message")
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Warn().Err(err).Str("client", c.id).Msg("write failed")
				c.conn.Close()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.conn.Close()
				return
			}
		}
	}
}

func (h *Hub) LoadSkeletalClip(ctx context.Context, path string) *scheduler.Future {
	return h.load(ctx, KindSkeletal, path)
}

func (h *Hub) LoadPoseClip(ctx context.Context, path string) *scheduler.Future {
	return h.load(ctx, KindPose, path)
}

func (h *Hub) load(ctx context.Context, kind, path string) *scheduler.Future {
	f := scheduler.NewFuture()
	if h.ClientCount() == 0 {
		f.Resolve(ErrNoRenderer)
		return f
	}

	id := uuid.NewString()
	p := &pendingLoad{clip: path, future: f}
	h.pending[id] = p
	p.timer = h.clock.AfterFunc(h.cfg.LoadTimeout, func() {
		h.settle(id, fmt.Errorf("%w: %s", ErrLoadTimeout, path))
	})
	p.stop = context.AfterFunc(ctx, func() {
		h.loop.Post(func() { h.settle(id, ctx.Err()) })
	})

	if err := h.broadcast(Message{Type: TypeLoadClip, ID: id, Kind: kind, Clip: path}); err != nil {
		h.settle(id, err)
	}
	return f
}

func (h *Hub) settle(id string, err error) {
	p, ok := h.pending[id]
	if !ok {
		return
	}
	delete(h.pending, id)
	p.timer.Stop()
	p.stop()
	p.future.Resolve(err)
}

// Pending returns the number of unacknowledged loads.
func (h *Hub) Pending() int {
	return len(h.pending)
}

// SetWeight buffers a weight until the next Flush.
func (h *Hub) SetWeight(id string, weight float64) {
	h.dirty[id] = weight
}

// Flush sends the weights changed since the last flush in one message.
func (h *Hub) Flush() {
	if len(h.dirty) == 0 {
		return
	}
	weights := h.dirty
	h.dirty = make(map[string]float64, len(weights))
	if err := h.broadcast(Message{Type: TypeWeights, Weights: weights}); err != nil && err != ErrNoRenderer {
		h.logger.Debug().Err(err).Msg("weights not sent")
	}
}

// Broadcast forwards a bus event to every renderer. Safe from any
// goroutine.
func (h *Hub) Broadcast(event bus.Event) {
	e := event
	if err := h.broadcast(Message{Type: TypeEvent, Event: &e}); err != nil && err != ErrNoRenderer {
		h.logger.Debug().Err(err).Msg("event not sent")
	}
}

func (h *Hub) broadcast(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", msg.Type, err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.clients) == 0 {
		return ErrNoRenderer
	}
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.logger.Warn().Str("client", c.id).Str("type", msg.Type).Msg("send buffer full, dropping message")
		}
	}
	return nil
}

// Close disconnects every renderer.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(time.Second))
		c.close()
		c.conn.Close()
	}
}

func (h *Hub) publish(t bus.EventType, data map[string]any) {
	if h.events == nil {
		return
	}
	h.events.Publish(bus.Event{Type: t, Data: data})
}
