package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const statusStreamInterval = time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The API surface is trusted (same-host dashboard); origins are not
	// restricted, matching the permissive CORS policy.
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleStatusStream pushes the kernel snapshot to the dashboard once per
// second, replacing HTTP polling for clients that support it.
func (s *Server) handleStatusStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	// Drain (and discard) client frames so closes are noticed promptly.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(statusStreamInterval)
	defer ticker.Stop()

	for {
		if err := conn.WriteJSON(s.ctrl.Snapshot()); err != nil {
			return
		}
		select {
		case <-ticker.C:
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}
