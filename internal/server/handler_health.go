package server

import (
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	st := s.sched.Stats()
	respondOK(w, reqID, map[string]any{
		"status":  "healthy",
		"version": "0.1.0",
		"uptime":  time.Since(s.startTime).Round(time.Second).String(),
		"since":   humanize.Time(s.startTime),
		"queued":  st.Queued(),
	})
}
