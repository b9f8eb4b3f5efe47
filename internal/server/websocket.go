// File: internal/server/websocket.go
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pilot-cli/internal/agent"
)

// Constants for WebSocket timeouts and limits (based on Gorilla WebSocket examples).
const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The API is bound to localhost by default and carries no credentials.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsClient streams one run's events to one connection.
type wsClient struct {
	conn   *websocket.Conn
	logger *zap.Logger
}

// handleRunEvents upgrades the connection and replays the run's events,
// then follows it live until it finishes or the peer goes away.
func (s *Server) handleRunEvents() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runID := chi.URLParam(r, "runID")
		if _, ok := s.runner.Get(runID); !ok {
			http.Error(w, "Run ID not found.", http.StatusNotFound)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already sent an HTTP error response.
			s.logger.Error("Failed to upgrade connection to WebSocket", zap.Error(err))
			return
		}
		s.logger.Debug("WebSocket event stream opened.", zap.String("run_id", runID), zap.String("remoteAddr", r.RemoteAddr))

		past, live, unsubscribe := s.runner.Bus().Subscribe(runID)
		defer unsubscribe()

		client := &wsClient{conn: conn, logger: s.logger.With(zap.String("run_id", runID))}
		gone := make(chan struct{})
		go client.readPump(gone)
		client.writePump(past, live, gone)
	}
}

// readPump discards client messages and handles control frames. It closes
// gone when the peer disconnects.
func (c *wsClient) readPump(gone chan<- struct{}) {
	defer close(gone)

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error("Failed to set initial read deadline", zap.Error(err))
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.NextReader(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Warn("WebSocket closed unexpectedly", zap.Error(err))
			}
			return
		}
	}
}

// writePump sends the replayed history, then live events, then a normal
// close once the run's stream ends. All writes happen here.
func (c *wsClient) writePump(past []agent.Event, live <-chan agent.Event, gone <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for _, e := range past {
		if !c.write(e) {
			return
		}
	}

	for {
		select {
		case e, ok := <-live:
			if !ok {
				c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run finished"))
				return
			}
			if !c.write(e) {
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("Error sending PING message to WebSocket", zap.Error(err))
				return
			}

		case <-gone:
			return
		}
	}
}

func (c *wsClient) write(e agent.Event) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return false
	}
	if err := c.conn.WriteJSON(e); err != nil {
		c.logger.Debug("Error writing event to WebSocket", zap.Error(err))
		return false
	}
	return true
}
