package server

import (
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/rememberme/rememberme/internal/apperr"
	"github.com/rememberme/rememberme/internal/model"
)

func (s *Server) requireCalendar(w http.ResponseWriter, r *http.Request) bool {
	if s.calendar == nil {
		s.writeError(w, r, apperr.Unavailable("calendar integration is not configured", nil))
		return false
	}
	return true
}

func (s *Server) handleListConnections(w http.ResponseWriter, r *http.Request) {
	conns, err := s.db.ListConnections(user(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var available []model.CalendarProvider
	if s.calendar != nil {
		available = s.calendar.Providers()
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"connections": nonNil(conns),
		"available":   nonNil(available),
	})
}

func (s *Server) handleCalendarConnect(w http.ResponseWriter, r *http.Request) {
	if !s.requireCalendar(w, r) {
		return
	}
	u, err := s.calendar.AuthURL(user(r), model.CalendarProvider(param(r, "provider")))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"url": u})
}

// handleCalendarCallback is hit by the provider's redirect, so it is not
// behind auth; the signed state identifies the user. The browser is sent
// back to the app with the outcome in the query string.
func (s *Server) handleCalendarCallback(w http.ResponseWriter, r *http.Request) {
	if !s.requireCalendar(w, r) {
		return
	}
	q := r.URL.Query()
	provider := param(r, "provider")

	result := url.Values{"provider": {provider}}
	if e := q.Get("error"); e != "" {
		result.Set("calendar", "error")
		result.Set("reason", e)
	} else if _, err := s.calendar.Callback(r.Context(), q.Get("state"), q.Get("code")); err != nil {
		s.logger.Warn("calendar callback failed", zap.String("provider", provider), zap.Error(err))
		result.Set("calendar", "error")
		result.Set("reason", apperr.PublicMessage(err))
	} else {
		result.Set("calendar", "connected")
	}

	if s.appURL == "" {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": result.Get("calendar"), "reason": result.Get("reason")})
		return
	}
	http.Redirect(w, r, s.appURL+"/settings?"+result.Encode(), http.StatusFound)
}

func (s *Server) handleCalendarDisconnect(w http.ResponseWriter, r *http.Request) {
	if !s.requireCalendar(w, r) {
		return
	}
	if err := s.calendar.Disconnect(user(r), model.CalendarProvider(param(r, "provider"))); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCalendarSync(w http.ResponseWriter, r *http.Request) {
	if !s.requireCalendar(w, r) {
		return
	}
	days := intQuery(r, "days", 7, 60)
	res, err := s.calendar.Sync(r.Context(), user(r), time.Duration(days)*24*time.Hour)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	prefs, err := s.db.GetPreferences(user(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, prefs)
}

type preferencesRequest struct {
	Enabled             bool `json:"enabled"`
	BriefingLeadMinutes int  `json:"briefing_lead_minutes" validate:"min=0,max=1440"`
	OnlyKnownContacts   bool `json:"only_known_contacts"`
}

func (s *Server) handleSavePreferences(w http.ResponseWriter, r *http.Request) {
	var req preferencesRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	prefs := model.CalendarPreferences{
		UserID:              user(r),
		Enabled:             req.Enabled,
		BriefingLeadMinutes: req.BriefingLeadMinutes,
		OnlyKnownContacts:   req.OnlyKnownContacts,
	}
	if err := s.db.SavePreferences(prefs); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, prefs)
}

func (s *Server) handleListMeetings(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	from := now.Add(-24 * time.Hour)
	to := now.Add(time.Duration(intQuery(r, "days", 7, 60)) * 24 * time.Hour)
	meetings, err := s.db.ListMeetings(user(r), from, to)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, nonNil(meetings))
}
