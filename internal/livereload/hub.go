// Package livereload pushes reload, stylesheet and notice events to browsers
// over server-sent events.
package livereload

import (
	"bufio"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"git.home.luguber.info/inful/sitepipe/internal/logfields"
	"git.home.luguber.info/inful/sitepipe/internal/metrics"
)

// Endpoint paths served by the dev server.
const (
	EventsPath = "/__sitepipe/livereload"
	ScriptPath = "/__sitepipe/livereload.js"
)

// Event kinds.
const (
	KindReload = "reload"
	KindCSS    = "css"
	KindNotify = "notify"
)

const (
	clientBuffer      = 8
	heartbeatInterval = 30 * time.Second
)

// Event is the JSON payload of one SSE message.
type Event struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Path    string `json:"path,omitempty"`
	Seq     uint64 `json:"seq"`
}

// Hub manages SSE clients and fans events out to them.
type Hub struct {
	mu       sync.RWMutex
	nextID   int
	seq      uint64
	clients  map[int]*client
	closed   bool
	recorder metrics.Recorder
	logger   *slog.Logger
}

type client struct {
	id   int
	ch   chan Event
	done chan struct{}
}

// Option customizes a Hub.
type Option func(*Hub)

// WithRecorder reports broadcasts and client counts into r.
func WithRecorder(r metrics.Recorder) Option {
	return func(h *Hub) {
		if r != nil {
			h.recorder = r
		}
	}
}

// WithLogger sets the hub's logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHub returns an empty hub.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		clients:  map[int]*client{},
		recorder: metrics.NoopRecorder{},
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Reload asks every browser to reload the page.
func (h *Hub) Reload() { h.broadcast(Event{Type: KindReload}) }

// InjectCSS asks every browser to refresh stylesheets matching path without a page reload.
func (h *Hub) InjectCSS(path string) { h.broadcast(Event{Type: KindCSS, Path: path}) }

// Notify shows a transient message in every browser. message may contain HTML.
func (h *Hub) Notify(message string) { h.broadcast(Event{Type: KindNotify, Message: message}) }

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP implements the SSE endpoint.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}
	c := &client{ch: make(chan Event, clientBuffer), done: make(chan struct{})}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		http.Error(w, "livereload shutting down", http.StatusServiceUnavailable)
		return
	}
	c.id = h.nextID
	h.nextID++
	h.clients[c.id] = c
	n := len(h.clients)
	h.mu.Unlock()
	h.recorder.SetLiveReloadClients(n)
	defer h.removeClient(c.id)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	bw := bufio.NewWriter(w)
	flush := func() bool {
		if err := bw.Flush(); err != nil {
			h.logger.Debug("livereload write", logfields.Error(err))
			return false
		}
		flusher.Flush()
		return true
	}
	if _, err := bw.WriteString(": connected\n\n"); err != nil || !flush() {
		return
	}

	hb := time.NewTicker(heartbeatInterval)
	defer hb.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-c.done:
			return
		case <-hb.C:
			if _, err := bw.WriteString(": ping\n\n"); err != nil || !flush() {
				return
			}
		case ev := <-c.ch:
			payload, err := json.Marshal(ev)
			if err != nil {
				h.logger.Error("livereload encode", logfields.Error(err))
				continue
			}
			if _, err := bw.WriteString("data: " + string(payload) + "\n\n"); err != nil || !flush() {
				return
			}
		}
	}
}

func (h *Hub) removeClient(id int) {
	h.mu.Lock()
	c, ok := h.clients[id]
	if ok {
		delete(h.clients, id)
		close(c.done)
	}
	n := len(h.clients)
	h.mu.Unlock()
	if ok {
		h.recorder.SetLiveReloadClients(n)
	}
}

// broadcast sends ev to all clients, dropping those whose buffers are full.
func (h *Hub) broadcast(ev Event) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.seq++
	ev.Seq = h.seq
	snapshot := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		snapshot = append(snapshot, c)
	}
	h.mu.Unlock()

	dropped := 0
	for _, c := range snapshot {
		select {
		case c.ch <- ev:
		default:
			dropped++
			h.removeClient(c.id)
		}
	}
	h.recorder.IncReloadBroadcast(ev.Type)
	h.logger.Debug("livereload broadcast",
		slog.String("type", ev.Type),
		logfields.Clients(len(snapshot)),
		slog.Int("dropped", dropped))
}

// Shutdown disconnects all clients and ignores later broadcasts.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	clients := h.clients
	h.clients = map[int]*client{}
	h.mu.Unlock()
	for _, c := range clients {
		close(c.done)
	}
	h.recorder.SetLiveReloadClients(0)
}
