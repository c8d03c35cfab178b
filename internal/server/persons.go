package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/rememberme/rememberme/internal/apperr"
	"github.com/rememberme/rememberme/internal/contacts"
	"github.com/rememberme/rememberme/internal/model"
	"github.com/rememberme/rememberme/internal/store"
)

// personView is a person with its computed health.
type personView struct {
	model.Person
	Health contacts.PersonHealth `json:"health"`
}

func (s *Server) view(p model.Person) personView {
	return personView{Person: p, Health: contacts.HealthOf(p, s.now())}
}

// personRequest is the create and update body. On update, tags replace the
// person's tribes when present and are left alone when omitted.
type personRequest struct {
	FirstName           string           `json:"first_name" validate:"required,max=100"`
	LastName            string           `json:"last_name" validate:"max=100"`
	Email               string           `json:"email" validate:"omitempty,email,max=254"`
	Phone               string           `json:"phone" validate:"max=40"`
	PhotoURL            string           `json:"photo_url" validate:"omitempty,url,max=2048"`
	Birthday            string           `json:"birthday" validate:"max=10"`
	WhereMet            string           `json:"where_met" validate:"max=1000"`
	WhyStayInContact    string           `json:"why_stay_in_contact" validate:"max=1000"`
	MostImportantToKnow string           `json:"most_important_to_know" validate:"max=1000"`
	Importance          model.Importance `json:"importance" validate:"omitempty,importance"`
	TargetFrequencyDays int              `json:"target_frequency_days" validate:"min=0,max=3650"`
	Tags                []string         `json:"tags" validate:"max=20,dive,required,max=50"`
}

func (req *personRequest) apply(p *model.Person) error {
	if req.Birthday != "" {
		b, err := contacts.ParseBirthday(req.Birthday)
		if err != nil {
			return apperr.Validation("%v", err)
		}
		req.Birthday = b.String()
	}
	p.FirstName = strings.TrimSpace(req.FirstName)
	p.LastName = strings.TrimSpace(req.LastName)
	p.Email = strings.TrimSpace(req.Email)
	p.Phone = strings.TrimSpace(req.Phone)
	p.PhotoURL = req.PhotoURL
	p.Birthday = req.Birthday
	p.WhereMet = strings.TrimSpace(req.WhereMet)
	p.WhyStayInContact = strings.TrimSpace(req.WhyStayInContact)
	p.MostImportantToKnow = strings.TrimSpace(req.MostImportantToKnow)
	p.Importance = req.Importance
	if p.Importance == "" {
		p.Importance = model.ImportanceMedium
	}
	p.TargetFrequencyDays = req.TargetFrequencyDays
	return nil
}

func (s *Server) handleListPersons(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	persons, err := s.db.ListPersons(user(r), store.PersonFilter{
		Query:           q.Get("q"),
		Tag:             q.Get("tag"),
		IncludeArchived: boolQuery(r, "archived"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]personView, 0, len(persons))
	for _, p := range persons {
		out = append(out, s.view(p))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreatePerson(w http.ResponseWriter, r *http.Request) {
	var req personRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	p := &model.Person{UserID: user(r)}
	if err := req.apply(p); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.db.CreatePersonWithTags(p, req.Tags); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.metrics.ContactCreated()

	created, err := s.db.RequirePerson(p.UserID, p.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, s.view(*created))
}

func (s *Server) handleGetPerson(w http.ResponseWriter, r *http.Request) {
	p, err := s.db.RequirePerson(user(r), param(r, "personID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.view(*p))
}

func (s *Server) handleUpdatePerson(w http.ResponseWriter, r *http.Request) {
	var req personRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.db.RequirePerson(user(r), param(r, "personID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := req.apply(p); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.db.UpdatePersonWithTags(p, req.Tags); err != nil {
		s.writeError(w, r, err)
		return
	}
	updated, err := s.db.RequirePerson(p.UserID, p.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.view(*updated))
}

func (s *Server) handleDeletePerson(w http.ResponseWriter, r *http.Request) {
	if err := s.db.DeletePerson(user(r), param(r, "personID")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleArchive(archived bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, id := user(r), param(r, "personID")
		if err := s.db.SetArchived(userID, id, archived); err != nil {
			s.writeError(w, r, err)
			return
		}
		p, err := s.db.RequirePerson(userID, id)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, s.view(*p))
	}
}

type interactionRequest struct {
	Kind       model.InteractionKind `json:"kind" validate:"required,oneof=call text email meeting social other"`
	Notes      string                `json:"notes" validate:"max=5000"`
	OccurredAt *time.Time            `json:"occurred_at"`
}

func (s *Server) handleLogInteraction(w http.ResponseWriter, r *http.Request) {
	var req interactionRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	in := &model.Interaction{
		UserID:   user(r),
		PersonID: param(r, "personID"),
		Kind:     req.Kind,
		Notes:    strings.TrimSpace(req.Notes),
	}
	if req.OccurredAt != nil {
		if req.OccurredAt.After(s.now().Add(time.Minute)) {
			s.writeError(w, r, apperr.Validation("occurred_at cannot be in the future"))
			return
		}
		in.OccurredAt = req.OccurredAt.UTC()
	}
	if err := s.db.LogInteraction(in); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, in)
}

func (s *Server) handleListInteractions(w http.ResponseWriter, r *http.Request) {
	userID, personID := user(r), param(r, "personID")
	if _, err := s.db.RequirePerson(userID, personID); err != nil {
		s.writeError(w, r, err)
		return
	}
	list, err := s.db.ListInteractions(userID, personID, intQuery(r, "limit", 50, 500))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, nonNil(list))
}

func (s *Server) handleDeleteInteraction(w http.ResponseWriter, r *http.Request) {
	if err := s.db.DeleteInteraction(user(r), param(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// nonNil turns a nil slice into an empty one so lists encode as [].
func nonNil[T any](list []T) []T {
	if list == nil {
		return []T{}
	}
	return list
}
