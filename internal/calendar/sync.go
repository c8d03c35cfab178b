package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/rememberme/rememberme/internal/apperr"
	"github.com/rememberme/rememberme/internal/model"
	"github.com/rememberme/rememberme/internal/store"
)

// DefaultWindow is how far ahead Sync looks when no window is given.
const DefaultWindow = 7 * 24 * time.Hour

// maxPages bounds pagination against a misbehaving API.
const maxPages = 20

// Event is a provider-neutral calendar event.
type Event struct {
	ExternalID string
	Title      string
	StartsAt   time.Time
	EndsAt     time.Time
	Attendees  []string
}

// SyncResult tallies one Sync call.
type SyncResult struct {
	Fetched int `json:"fetched"`
	Stored  int `json:"stored"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Sync pulls events between now and now+window from every connected
// provider and stores them as meetings. Attendees are matched to contacts
// by email; with only_known_contacts set, unmatched events are skipped. A
// failing provider is logged and counted, and the others still sync.
func (s *Service) Sync(ctx context.Context, userID string, window time.Duration) (SyncResult, error) {
	var res SyncResult
	if window <= 0 {
		window = DefaultWindow
	}
	ctx, span := tracer.Start(ctx, "calendar.Sync", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	prefs, err := s.DB.GetPreferences(userID)
	if err != nil {
		return res, err
	}
	if !prefs.Enabled {
		return res, nil
	}
	conns, err := s.DB.ListConnections(userID)
	if err != nil {
		return res, err
	}
	if len(conns) == 0 {
		return res, apperr.NotFound("no calendar connected")
	}

	persons, err := s.DB.ListPersons(userID, store.PersonFilter{})
	if err != nil {
		return res, err
	}
	byEmail := make(map[string]string, len(persons))
	for _, p := range persons {
		if e := normalizeEmail(p.Email); e != "" {
			byEmail[e] = p.ID
		}
	}

	from := s.now()
	to := from.Add(window)
	for _, conn := range conns {
		events, err := s.fetch(ctx, userID, conn.Provider, from, to)
		s.Metrics.ObserveSync(string(conn.Provider), err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			s.Logger.Warn("calendar: sync failed",
				zap.String("user", userID), zap.String("provider", string(conn.Provider)), zap.Error(err))
			res.Failed++
			continue
		}
		res.Fetched += len(events)

		self := normalizeEmail(conn.AccountEmail)
		for _, ev := range events {
			personID := matchAttendee(ev.Attendees, self, byEmail)
			if personID == "" && prefs.OnlyKnownContacts {
				res.Skipped++
				continue
			}
			m := &model.Meeting{
				UserID:         userID,
				Provider:       conn.Provider,
				ExternalID:     ev.ExternalID,
				Title:          ev.Title,
				StartsAt:       ev.StartsAt,
				EndsAt:         ev.EndsAt,
				AttendeeEmails: ev.Attendees,
				PersonID:       personID,
			}
			if err := s.DB.UpsertMeeting(m); err != nil {
				return res, err
			}
			res.Stored++
		}
	}

	span.SetAttributes(attribute.Int("sync.stored", res.Stored), attribute.Int("sync.failed", res.Failed))
	s.Logger.Info("calendar synced",
		zap.String("user", userID),
		zap.Int("fetched", res.Fetched),
		zap.Int("stored", res.Stored),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed))
	return res, nil
}

func (s *Service) fetch(ctx context.Context, userID string, p model.CalendarProvider, from, to time.Time) ([]Event, error) {
	prov, err := s.provider(p)
	if err != nil {
		return nil, err
	}
	tok, err := s.Token(ctx, userID, p)
	if err != nil {
		return nil, err
	}
	ctx = s.httpContext(ctx)
	return prov.fetch(ctx, oauth2.NewClient(ctx, oauth2.StaticTokenSource(tok)), prov.apiBase, from, to)
}

// matchAttendee returns the first contact among the attendees, ignoring
// the calendar owner.
func matchAttendee(attendees []string, self string, byEmail map[string]string) string {
	for _, a := range attendees {
		a = normalizeEmail(a)
		if a == "" || a == self {
			continue
		}
		if id, ok := byEmail[a]; ok {
			return id
		}
	}
	return ""
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func getJSON(ctx context.Context, c *http.Client, rawURL string, header http.Header, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("calendar API %s (status %d): %s", req.URL.Path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type googleTime struct {
	DateTime string `json:"dateTime"`
	Date     string `json:"date"`
}

func (t googleTime) parse() (time.Time, error) {
	if t.DateTime != "" {
		return time.Parse(time.RFC3339, t.DateTime)
	}
	return time.Parse("2006-01-02", t.Date)
}

type googleEvents struct {
	Items []struct {
		ID        string     `json:"id"`
		Status    string     `json:"status"`
		Summary   string     `json:"summary"`
		Start     googleTime `json:"start"`
		End       googleTime `json:"end"`
		Attendees []struct {
			Email string `json:"email"`
		} `json:"attendees"`
	} `json:"items"`
	NextPageToken string `json:"nextPageToken"`
}

func fetchGoogle(ctx context.Context, c *http.Client, base string, from, to time.Time) ([]Event, error) {
	var out []Event
	pageToken := ""
	for page := 0; page < maxPages; page++ {
		q := url.Values{}
		q.Set("timeMin", from.Format(time.RFC3339))
		q.Set("timeMax", to.Format(time.RFC3339))
		q.Set("singleEvents", "true")
		q.Set("orderBy", "startTime")
		q.Set("maxResults", "250")
		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}
		var body googleEvents
		if err := getJSON(ctx, c, base+"/calendars/primary/events?"+q.Encode(), nil, &body); err != nil {
			return nil, err
		}
		for _, it := range body.Items {
			if it.Status == "cancelled" {
				continue
			}
			start, err := it.Start.parse()
			if err != nil {
				continue
			}
			end, err := it.End.parse()
			if err != nil {
				end = start
			}
			ev := Event{ExternalID: it.ID, Title: it.Summary, StartsAt: start.UTC(), EndsAt: end.UTC()}
			for _, a := range it.Attendees {
				ev.Attendees = append(ev.Attendees, a.Email)
			}
			out = append(out, ev)
		}
		if body.NextPageToken == "" {
			break
		}
		pageToken = body.NextPageToken
	}
	return out, nil
}

func googleAccount(ctx context.Context, c *http.Client, base string) (string, error) {
	var cal struct {
		ID string `json:"id"`
	}
	if err := getJSON(ctx, c, base+"/calendars/primary", nil, &cal); err != nil {
		return "", err
	}
	return cal.ID, nil
}

// graphTimeLayout is how Graph renders dateTime when asked for UTC.
const graphTimeLayout = "2006-01-02T15:04:05.9999999"

type graphTime struct {
	DateTime string `json:"dateTime"`
}

type graphEvents struct {
	Value []struct {
		ID          string    `json:"id"`
		Subject     string    `json:"subject"`
		IsCancelled bool      `json:"isCancelled"`
		Start       graphTime `json:"start"`
		End         graphTime `json:"end"`
		Attendees   []struct {
			EmailAddress struct {
				Address string `json:"address"`
			} `json:"emailAddress"`
		} `json:"attendees"`
	} `json:"value"`
	NextLink string `json:"@odata.nextLink"`
}

func fetchMicrosoft(ctx context.Context, c *http.Client, base string, from, to time.Time) ([]Event, error) {
	q := url.Values{}
	q.Set("startDateTime", from.Format(time.RFC3339))
	q.Set("endDateTime", to.Format(time.RFC3339))
	q.Set("$top", "100")
	next := base + "/me/calendarView?" + q.Encode()
	header := http.Header{"Prefer": []string{`outlook.timezone="UTC"`}}

	var out []Event
	for page := 0; page < maxPages && next != ""; page++ {
		var body graphEvents
		if err := getJSON(ctx, c, next, header, &body); err != nil {
			return nil, err
		}
		for _, it := range body.Value {
			if it.IsCancelled {
				continue
			}
			start, err := time.ParseInLocation(graphTimeLayout, it.Start.DateTime, time.UTC)
			if err != nil {
				continue
			}
			end, err := time.ParseInLocation(graphTimeLayout, it.End.DateTime, time.UTC)
			if err != nil {
				end = start
			}
			ev := Event{ExternalID: it.ID, Title: it.Subject, StartsAt: start, EndsAt: end}
			for _, a := range it.Attendees {
				ev.Attendees = append(ev.Attendees, a.EmailAddress.Address)
			}
			out = append(out, ev)
		}
		next = body.NextLink
	}
	return out, nil
}

func microsoftAccount(ctx context.Context, c *http.Client, base string) (string, error) {
	var me struct {
		Mail              string `json:"mail"`
		UserPrincipalName string `json:"userPrincipalName"`
	}
	if err := getJSON(ctx, c, base+"/me", nil, &me); err != nil {
		return "", err
	}
	if me.Mail != "" {
		return me.Mail, nil
	}
	return me.UserPrincipalName, nil
}
