package inspector

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/reactor/pkg/timeline"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// stream pushes recorder events to websocket clients. Each connection owns a
// recorder subscription. With ?backlog=true the retained events are sent
// first; live events already covered by the backlog are skipped by sequence
// number.
type stream struct {
	recorder *timeline.Recorder
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]func()
	closed  bool
}

func newStream(rec *timeline.Recorder, logger *slog.Logger, checkOrigin func(*http.Request) bool) *stream {
	return &stream{
		recorder: rec,
		logger:   logger,
		clients:  make(map[*websocket.Conn]func()),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
	}
}

// ServeHTTP upgrades the connection and streams events until the client
// disconnects or the stream is closed.
func (s *stream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("inspector websocket upgrade failed", "error", err)
		return
	}

	events, cancel := s.recorder.Subscribe(0)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		cancel()
		conn.Close()
		return
	}
	s.clients[conn] = cancel
	s.mu.Unlock()

	defer s.remove(conn)

	// The read loop only exists to process control frames and notice a
	// client going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	var last uint64
	if r.URL.Query().Get("backlog") == "true" {
		for _, ev := range s.recorder.Events() {
			if err := s.write(conn, ev); err != nil {
				return
			}
			last = ev.Seq
		}
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
					time.Now().Add(writeWait))
				return
			}
			if ev.Seq <= last {
				continue
			}
			if err := s.write(conn, ev); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (s *stream) write(conn *websocket.Conn, ev timeline.Event) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(ev)
}

func (s *stream) remove(conn *websocket.Conn) {
	s.mu.Lock()
	cancel, ok := s.clients[conn]
	delete(s.clients, conn)
	s.mu.Unlock()

	if ok {
		cancel()
	}
	conn.Close()
}

// ClientCount returns the number of connected clients.
func (s *stream) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Close ends every subscription, which makes each connection send a close
// frame and return. Later upgrades are refused.
func (s *stream) Close() {
	s.mu.Lock()
	s.closed = true
	cancels := make([]func(), 0, len(s.clients))
	for _, cancel := range s.clients {
		cancels = append(cancels, cancel)
	}
	s.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}
