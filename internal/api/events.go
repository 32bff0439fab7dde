package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// eventPollInterval is how often the feed re-reads the job between pushes.
const eventPollInterval = 250 * time.Millisecond

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Status snapshots carry no secrets; allow browser clients.
		return true
	},
}

// handleEvents handles GET /api/events/{id}: a WebSocket feed of job
// snapshots, pushed on every observable change until the job turns terminal.
// A poll-based client sees the same data through GET /api/job/{id}; this is
// the push flavor for clients that want progress without hammering the API.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if _, err := s.store.Get(id); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(ErrorResponse{Error: "job not found"})
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "job_id", id, "error", err)
		return
	}
	defer conn.Close()

	s.logger.Debug("event feed opened", "job_id", id)

	ticker := time.NewTicker(eventPollInterval)
	defer ticker.Stop()

	var lastStatus string
	lastProgress := -1

	for {
		j, err := s.store.Get(id)
		if err != nil {
			// Expired mid-feed; tell the client and stop.
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "job expired"),
				time.Now().Add(time.Second))
			return
		}

		if string(j.Status) != lastStatus || j.Progress != lastProgress {
			if err := conn.WriteJSON(j); err != nil {
				s.logger.Debug("event feed write failed", "job_id", id, "error", err)
				return
			}
			lastStatus = string(j.Status)
			lastProgress = j.Progress
		}

		if j.Status.Terminal() {
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "job finished"),
				time.Now().Add(time.Second))
			return
		}

		<-ticker.C
	}
}
