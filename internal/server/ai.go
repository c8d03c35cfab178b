package server

import (
	"net/http"

	"go.uber.org/zap"
)

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	p, err := s.engine.Summarize(r.Context(), user(r), param(r, "personID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.view(*p))
}

type noteRequest struct {
	Note           string `json:"note" validate:"required,max=8000"`
	LogInteraction bool   `json:"log_interaction"`
}

func (s *Server) handleExtractNote(w http.ResponseWriter, r *http.Request) {
	var req noteRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.engine.ExtractNote(r.Context(), user(r), param(r, "personID"), req.Note, req.LogInteraction)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleBriefing(w http.ResponseWriter, r *http.Request) {
	m, err := s.engine.Brief(r.Context(), user(r), param(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleListRescue(w http.ResponseWriter, r *http.Request) {
	list, err := s.db.ListRescueSuggestions(user(r), boolQuery(r, "all"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, nonNil(list))
}

func (s *Server) handleDismissRescue(w http.ResponseWriter, r *http.Request) {
	if err := s.db.DismissRescueSuggestion(user(r), param(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCronRescue runs the weekly rescue inline; the scheduler calling it
// waits for the report.
func (s *Server) handleCronRescue(w http.ResponseWriter, r *http.Request) {
	report, err := s.engine.WeeklyRescue(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("cron rescue finished",
		zap.Int("users", report.Users),
		zap.Int("suggested", report.Suggested),
		zap.Int("failed", report.Failed))
	s.writeJSON(w, http.StatusOK, report)
}
