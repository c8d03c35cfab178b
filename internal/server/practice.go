package server

import (
	"net/http"

	"github.com/rememberme/rememberme/internal/model"
	"github.com/rememberme/rememberme/internal/practice"
)

func (s *Server) handleQuiz(w http.ResponseWriter, r *http.Request) {
	persons, err := s.activePersons(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	quiz, err := practice.NewQuiz(persons, intQuery(r, "n", 10, practice.MaxQuestions), s.rng())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, quiz)
}

type gradeRequest struct {
	Answers []practice.Answer `json:"answers" validate:"required,min=1,max=20,dive"`
}

// handleGrade scores the answers and records the session.
func (s *Server) handleGrade(w http.ResponseWriter, r *http.Request) {
	var req gradeRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	persons, err := s.activePersons(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res := practice.Grade(persons, req.Answers)

	session := &model.PracticeSession{
		UserID:      user(r),
		Game:        practice.Game,
		Score:       res.Score,
		Total:       res.Total,
		CompletedAt: s.now(),
	}
	if err := s.db.RecordPracticeSession(session); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"result": res, "session": session})
}

func (s *Server) handlePracticeStats(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.db.ListPracticeSessions(user(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, practice.ComputeStats(sessions, s.now()))
}
