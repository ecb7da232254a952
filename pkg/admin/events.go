package admin

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vango-dev/minirest/pkg/server"
)

// ConnEvent is sent to watchers for every connection the loop closes.
type ConnEvent struct {
	Type       string    `json:"type"`
	Remote     string    `json:"remote"`
	Outcome    string    `json:"outcome"`
	BytesIn    int       `json:"bytesIn"`
	BytesOut   int       `json:"bytesOut"`
	DurationUS int64     `json:"durationUs"`
	At         time.Time `json:"at"`
}

const (
	eventTypeConn = "conn"

	// eventBuffer is how many events a watcher may fall behind before
	// events to it are dropped.
	eventBuffer = 64

	eventWriteTimeout = 5 * time.Second
)

type watcher struct {
	conn *websocket.Conn
	send chan []byte
}

// EventHub streams connection events to WebSocket watchers. It implements
// server.Observer and never blocks the loop: a watcher whose buffer is
// full misses events.
type EventHub struct {
	mu       sync.RWMutex
	watchers map[*watcher]struct{}
	upgrader websocket.Upgrader
	logger   *slog.Logger
	dropped  int64
}

// NewEventHub creates an empty hub.
func NewEventHub(logger *slog.Logger) *EventHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventHub{
		watchers: make(map[*watcher]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger,
	}
}

// ConnAccepted implements server.Observer.
func (h *EventHub) ConnAccepted() {}

// ConnClosed implements server.Observer.
func (h *EventHub) ConnClosed(stats server.ConnStats) {
	h.broadcast(ConnEvent{
		Type:       eventTypeConn,
		Remote:     stats.Remote,
		Outcome:    stats.Outcome.String(),
		BytesIn:    stats.BytesIn,
		BytesOut:   stats.BytesOut,
		DurationUS: stats.Duration.Microseconds(),
		At:         time.Now().UTC(),
	})
}

// ServeHTTP upgrades the request and streams events until the watcher
// disconnects or the hub is closed.
func (h *EventHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	wt := &watcher{conn: conn, send: make(chan []byte, eventBuffer)}
	h.mu.Lock()
	h.watchers[wt] = struct{}{}
	h.mu.Unlock()

	go h.writeLoop(wt)

	// Watchers send nothing; reading detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.remove(wt)
}

func (h *EventHub) writeLoop(wt *watcher) {
	for data := range wt.send {
		_ = wt.conn.SetWriteDeadline(time.Now().Add(eventWriteTimeout))
		if err := wt.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.remove(wt)
			_ = wt.conn.Close()
			return
		}
	}
	_ = wt.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	_ = wt.conn.Close()
}

// remove unregisters wt and stops its writer. Safe to call twice.
func (h *EventHub) remove(wt *watcher) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.watchers[wt]; !ok {
		return
	}
	delete(h.watchers, wt)
	close(wt.send)
}

func (h *EventHub) broadcast(ev ConnEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for wt := range h.watchers {
		select {
		case wt.send <- data:
		default:
			h.dropped++
		}
	}
}

// WatcherCount returns the number of connected watchers.
func (h *EventHub) WatcherCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.watchers)
}

// Dropped returns how many events were skipped for slow watchers.
func (h *EventHub) Dropped() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dropped
}

// Close disconnects every watcher.
func (h *EventHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for wt := range h.watchers {
		delete(h.watchers, wt)
		close(wt.send)
	}
}

var _ server.Observer = (*EventHub)(nil)
