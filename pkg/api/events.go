package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dd0wney/cluso-graphmetrics/pkg/logging"
)

// handleEvents streams progress events as server-sent events. With
// ?request=<id> only that computation is streamed and the stream ends after
// its final event; without it every computation is streamed until the client
// leaves.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	requestID := r.URL.Query().Get("request")

	rc := http.NewResponseController(w)
	// the stream outlives the server's write timeout
	_ = rc.SetWriteDeadline(time.Time{})

	sub, err := s.gateway.Subscribe(r.Context(), requestID)
	if err != nil {
		s.respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	defer sub.Unsubscribe()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		logging.FromContext(r.Context()).Warn("event stream unsupported", logging.Error(err))
		return
	}

	heartbeat := time.NewTicker(s.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case ev, ok := <-sub.Channel():
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			name := "progress"
			if ev.Done {
				name = "done"
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
			if ev.Done && requestID != "" {
				return
			}

		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}

		case <-s.closing:
			return
		case <-r.Context().Done():
			return
		}
	}
}
