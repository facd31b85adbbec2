// ABOUTME: WebSocket endpoint streaming canvas events to connected clients
// ABOUTME: One writer goroutine per connection; the reader loop only watches for close

package events

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeTimeout = 5 * time.Second
	readTimeout  = 60 * time.Second
)

// WSServer upgrades HTTP requests and streams broadcaster events over
// WebSocket connections.
type WSServer struct {
	broadcaster *Broadcaster
	logger      *slog.Logger
	upgrader    websocket.Upgrader
}

// NewWSServer creates a WebSocket event server over the broadcaster.
func NewWSServer(b *Broadcaster, logger *slog.Logger) *WSServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSServer{
		broadcaster: b,
		logger:      logger.With("component", "ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 4 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

// Handler returns the HTTP handler for the event stream endpoint.
func (s *WSServer) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()

		ctx := r.Context()
		ch, subID := s.broadcaster.Subscribe(ctx)
		defer s.broadcaster.Unsubscribe(subID)

		s.logger.Debug("client connected", "sub_id", subID, "remote", r.RemoteAddr)

		done := make(chan struct{})

		// Writer goroutine.
		go func() {
			defer close(done)
			for {
				select {
				case <-ctx.Done():
					return
				case ev, ok := <-ch:
					if !ok {
						return
					}
					payload, err := json.Marshal(ev)
					if err != nil {
						continue
					}
					_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
					if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
						return
					}
				}
			}
		}()

		// Reader loop. Clients send nothing meaningful; this only detects
		// disconnects and control frames.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}

		_ = conn.Close()
		<-done
		s.logger.Debug("client disconnected", "sub_id", subID)
	}
}
