package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/rememberme/rememberme/internal/model"
)

type nameRequest struct {
	Name string `json:"name" validate:"required,max=60"`
}

func (s *Server) handleListInterests(w http.ResponseWriter, r *http.Request) {
	list, err := s.db.ListInterests(user(r), param(r, "personID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, nonNil(list))
}

func (s *Server) handleAddInterest(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	in, err := s.db.AddInterest(user(r), param(r, "personID"), req.Name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, in)
}

func (s *Server) handleDeleteInterest(w http.ResponseWriter, r *http.Request) {
	if err := s.db.DeleteInterest(user(r), param(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type memoryRequest struct {
	Content    string     `json:"content" validate:"required,max=2000"`
	OccurredAt *time.Time `json:"occurred_at"`
}

func (s *Server) handleListMemories(w http.ResponseWriter, r *http.Request) {
	list, err := s.db.ListMemories(user(r), param(r, "personID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, nonNil(list))
}

func (s *Server) handleAddMemory(w http.ResponseWriter, r *http.Request) {
	var req memoryRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	m := &model.SharedMemory{PersonID: param(r, "personID"), Content: req.Content, OccurredAt: req.OccurredAt}
	if err := s.db.AddMemory(user(r), m); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handleDeleteMemory(w http.ResponseWriter, r *http.Request) {
	if err := s.db.DeleteMemory(user(r), param(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := s.db.ListTags(user(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, nonNil(tags))
}

func (s *Server) handleCreateTag(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	tag, err := s.db.EnsureTag(user(r), req.Name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, tag)
}

func (s *Server) handleDeleteTag(w http.ResponseWriter, r *http.Request) {
	if err := s.db.DeleteTag(user(r), param(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddPersonTag(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	tag, err := s.db.AddPersonTag(user(r), param(r, "personID"), req.Name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, tag)
}

func (s *Server) handleRemovePersonTag(w http.ResponseWriter, r *http.Request) {
	if err := s.db.RemovePersonTag(user(r), param(r, "personID"), param(r, "tagID")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type relationshipRequest struct {
	PersonID        string `json:"person_id" validate:"required"`
	RelatedPersonID string `json:"related_person_id" validate:"required"`
	Label           string `json:"label" validate:"required,max=60"`
}

func (s *Server) handleListRelationships(w http.ResponseWriter, r *http.Request) {
	list, err := s.db.ListRelationships(user(r), param(r, "personID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, nonNil(list))
}

func (s *Server) handleCreateRelationship(w http.ResponseWriter, r *http.Request) {
	var req relationshipRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	rel := &model.Relationship{
		UserID:          user(r),
		PersonID:        req.PersonID,
		RelatedPersonID: req.RelatedPersonID,
		Label:           strings.TrimSpace(req.Label),
	}
	if err := s.db.CreateRelationship(rel); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, rel)
}

func (s *Server) handleDeleteRelationship(w http.ResponseWriter, r *http.Request) {
	if err := s.db.DeleteRelationship(user(r), param(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
