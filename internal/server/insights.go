package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/rememberme/rememberme/internal/contacts"
	"github.com/rememberme/rememberme/internal/garden"
	"github.com/rememberme/rememberme/internal/model"
	"github.com/rememberme/rememberme/internal/store"
)

const (
	attentionLimit = 10
	birthdayWindow = 30
	meetingWindow  = 7 * 24 * time.Hour
)

func (s *Server) activePersons(r *http.Request) ([]model.Person, error) {
	return s.db.ListPersons(user(r), store.PersonFilter{})
}

func (s *Server) handleDuplicates(w http.ResponseWriter, r *http.Request) {
	groups, err := s.engine.FindDuplicates(user(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, nonNil(groups))
}

type mergeRequest struct {
	KeeperID     string   `json:"keeper_id" validate:"required"`
	DuplicateIDs []string `json:"duplicate_ids" validate:"required,min=1,max=50,dive,required"`
}

func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	var req mergeRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.engine.MergeDuplicates(r.Context(), user(r), req.KeeperID, req.DuplicateIDs)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.view(*p))
}

type dashboard struct {
	TotalContacts     int                          `json:"total_contacts"`
	Health            map[contacts.HealthState]int `json:"health"`
	NeedsAttention    []contacts.AttentionItem     `json:"needs_attention"`
	UpcomingBirthdays []contacts.UpcomingBirthday  `json:"upcoming_birthdays"`
	UpcomingMeetings  []model.Meeting              `json:"upcoming_meetings"`
	OpenSuggestions   int                          `json:"open_suggestions"`
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	persons, err := s.activePersons(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	now := s.now()
	meetings, err := s.db.ListMeetings(user(r), now, now.Add(meetingWindow))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	suggestions, err := s.db.ListRescueSuggestions(user(r), false)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, dashboard{
		TotalContacts:     len(persons),
		Health:            contacts.HealthCounts(persons, now),
		NeedsAttention:    nonNil(contacts.NeedsAttention(persons, now, attentionLimit)),
		UpcomingBirthdays: nonNil(contacts.UpcomingBirthdays(persons, now, intQuery(r, "birthday_days", birthdayWindow, 366))),
		UpcomingMeetings:  nonNil(meetings),
		OpenSuggestions:   len(suggestions),
	})
}

func (s *Server) handleGarden(w http.ResponseWriter, r *http.Request) {
	persons, err := s.activePersons(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	opts := garden.DefaultOptions()
	if seed, err := strconv.ParseInt(r.URL.Query().Get("seed"), 10, 64); err == nil {
		opts.Seed = seed
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"options": opts,
		"plants":  nonNil(garden.Layout(persons, s.now(), opts)),
	})
}

func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	persons, err := s.activePersons(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, nonNil(garden.Tree(persons, s.now())))
}
