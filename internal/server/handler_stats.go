package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"coopsched/internal/sched"
)

// StatsView is the payload of GET /api/v1/stats.
type StatsView struct {
	sched.Stats
	Queued  int    `json:"queued"`
	Summary string `json:"summary"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	st := s.sched.Stats()
	respondOK(w, reqID, StatsView{
		Stats:  st,
		Queued: st.Queued(),
		Summary: humanize.Comma(int64(st.Executed)) + " executed, " +
			humanize.Comma(int64(st.Failed)) + " failed, " +
			humanize.Comma(int64(st.Queued())) + " queued",
	})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	respondOK(w, RequestIDFromContext(r.Context()), s.sched.Config())
}

func (s *Server) handlePatchConfig(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var patch sched.ConfigPatch
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&patch); err != nil {
		respondError(w, reqID, http.StatusBadRequest, codeValidation, "invalid JSON: "+err.Error())
		return
	}

	if err := s.sched.UpdateConfig(patch); err != nil {
		if errors.Is(err, sched.ErrInvalidConfig) {
			respondError(w, reqID, http.StatusBadRequest, codeValidation, err.Error())
			return
		}
		s.logger.Error("update config", zap.Error(err))
		respondError(w, reqID, http.StatusInternalServerError, "INTERNAL", err.Error())
		return
	}
	respondOK(w, reqID, s.sched.Config())
}
