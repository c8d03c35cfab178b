package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rememberme/rememberme/internal/apperr"
	"github.com/rememberme/rememberme/internal/model"
)

// UpsertConnection saves sealed tokens for a user's provider, replacing any
// previous connection to the same provider.
func (db *DB) UpsertConnection(c *model.CalendarConnection) error {
	now := time.Now().UTC()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	_, err := db.Exec(`
		INSERT INTO calendar_connections (id, user_id, provider, account_email, sealed_access_token,
			sealed_refresh_token, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, provider) DO UPDATE SET
			account_email = CASE WHEN excluded.account_email = '' THEN account_email ELSE excluded.account_email END,
			sealed_access_token = excluded.sealed_access_token,
			sealed_refresh_token = excluded.sealed_refresh_token,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at
	`, c.ID, c.UserID, string(c.Provider), c.AccountEmail, c.SealedAccessToken,
		c.SealedRefreshToken, nullMillis(c.ExpiresAt), millis(now), millis(now))
	if err != nil {
		return fmt.Errorf("upsert calendar connection: %w", err)
	}
	c.UpdatedAt = fromMillis(millis(now))
	return nil
}

const connectionColumns = `id, user_id, provider, account_email, sealed_access_token, sealed_refresh_token,
	expires_at, created_at, updated_at`

func scanConnection(s scanner) (*model.CalendarConnection, error) {
	var c model.CalendarConnection
	var provider string
	var expires sql.NullInt64
	var created, updated int64
	if err := s.Scan(&c.ID, &c.UserID, &provider, &c.AccountEmail, &c.SealedAccessToken, &c.SealedRefreshToken,
		&expires, &created, &updated); err != nil {
		return nil, err
	}
	c.Provider = model.CalendarProvider(provider)
	c.ExpiresAt = timePtr(expires)
	c.CreatedAt = fromMillis(created)
	c.UpdatedAt = fromMillis(updated)
	return &c, nil
}

// GetConnection returns the user's connection to a provider, or nil.
func (db *DB) GetConnection(userID string, provider model.CalendarProvider) (*model.CalendarConnection, error) {
	c, err := scanConnection(db.QueryRow(`SELECT `+connectionColumns+`
		FROM calendar_connections WHERE user_id = ? AND provider = ?`, userID, string(provider)))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get calendar connection: %w", err)
	}
	return c, nil
}

// ListConnections returns every calendar a user has connected.
func (db *DB) ListConnections(userID string) ([]model.CalendarConnection, error) {
	rows, err := db.Query(`SELECT `+connectionColumns+`
		FROM calendar_connections WHERE user_id = ? ORDER BY provider`, userID)
	if err != nil {
		return nil, fmt.Errorf("list calendar connections: %w", err)
	}
	defer rows.Close()

	var out []model.CalendarConnection
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, fmt.Errorf("scan calendar connection: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// DeleteConnection forgets a provider's tokens.
func (db *DB) DeleteConnection(userID string, provider model.CalendarProvider) error {
	res, err := db.Exec(`DELETE FROM calendar_connections WHERE user_id = ? AND provider = ?`, userID, string(provider))
	if err != nil {
		return fmt.Errorf("delete calendar connection: %w", err)
	}
	return expectRow(res, "calendar connection", string(provider))
}

// DefaultPreferences apply to users who never saved their own.
func DefaultPreferences(userID string) model.CalendarPreferences {
	return model.CalendarPreferences{
		UserID:              userID,
		Enabled:             true,
		BriefingLeadMinutes: 30,
		OnlyKnownContacts:   true,
	}
}

// GetPreferences returns the user's calendar preferences or the defaults.
func (db *DB) GetPreferences(userID string) (model.CalendarPreferences, error) {
	p := model.CalendarPreferences{UserID: userID}
	var enabled, onlyKnown int
	err := db.QueryRow(`
		SELECT enabled, briefing_lead_minutes, only_known_contacts FROM calendar_preferences WHERE user_id = ?
	`, userID).Scan(&enabled, &p.BriefingLeadMinutes, &onlyKnown)
	if err == sql.ErrNoRows {
		return DefaultPreferences(userID), nil
	}
	if err != nil {
		return p, fmt.Errorf("get calendar preferences: %w", err)
	}
	p.Enabled = enabled != 0
	p.OnlyKnownContacts = onlyKnown != 0
	return p, nil
}

// SavePreferences stores the user's calendar preferences.
func (db *DB) SavePreferences(p model.CalendarPreferences) error {
	_, err := db.Exec(`
		INSERT INTO calendar_preferences (user_id, enabled, briefing_lead_minutes, only_known_contacts)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			enabled = excluded.enabled,
			briefing_lead_minutes = excluded.briefing_lead_minutes,
			only_known_contacts = excluded.only_known_contacts
	`, p.UserID, boolInt(p.Enabled), p.BriefingLeadMinutes, boolInt(p.OnlyKnownContacts))
	if err != nil {
		return fmt.Errorf("save calendar preferences: %w", err)
	}
	return nil
}

const meetingColumns = `id, user_id, provider, external_id, title, starts_at, ends_at, attendee_emails,
	person_id, briefing, briefing_generated_at`

func scanMeeting(s scanner) (*model.Meeting, error) {
	var m model.Meeting
	var provider, attendees string
	var personID sql.NullString
	var starts, ends int64
	var briefed sql.NullInt64
	if err := s.Scan(&m.ID, &m.UserID, &provider, &m.ExternalID, &m.Title, &starts, &ends, &attendees,
		&personID, &m.Briefing, &briefed); err != nil {
		return nil, err
	}
	m.Provider = model.CalendarProvider(provider)
	m.StartsAt = fromMillis(starts)
	m.EndsAt = fromMillis(ends)
	m.PersonID = personID.String
	m.BriefingGeneratedAt = timePtr(briefed)
	if err := json.Unmarshal([]byte(attendees), &m.AttendeeEmails); err != nil {
		return nil, fmt.Errorf("decode attendees: %w", err)
	}
	return &m, nil
}

// UpsertMeeting inserts or refreshes a synced event keyed by
// (user, provider, external id). An existing briefing is kept.
func (db *DB) UpsertMeeting(m *model.Meeting) error {
	attendees, err := json.Marshal(m.AttendeeEmails)
	if err != nil {
		return fmt.Errorf("encode attendees: %w", err)
	}
	if m.AttendeeEmails == nil {
		attendees = []byte("[]")
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	var personID any
	if m.PersonID != "" {
		personID = m.PersonID
	}
	err = db.QueryRow(`
		INSERT INTO meetings (id, user_id, provider, external_id, title, starts_at, ends_at, attendee_emails, person_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, provider, external_id) DO UPDATE SET
			title = excluded.title,
			starts_at = excluded.starts_at,
			ends_at = excluded.ends_at,
			attendee_emails = excluded.attendee_emails,
			person_id = excluded.person_id
		RETURNING id
	`, m.ID, m.UserID, string(m.Provider), m.ExternalID, m.Title, millis(m.StartsAt), millis(m.EndsAt),
		string(attendees), personID).Scan(&m.ID)
	if err != nil {
		return fmt.Errorf("upsert meeting: %w", err)
	}
	return nil
}

// GetMeeting returns one meeting, or nil.
func (db *DB) GetMeeting(userID, id string) (*model.Meeting, error) {
	m, err := scanMeeting(db.QueryRow(`SELECT `+meetingColumns+` FROM meetings WHERE user_id = ? AND id = ?`, userID, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get meeting: %w", err)
	}
	return m, nil
}

// ListMeetings returns meetings starting in [from, to), earliest first.
func (db *DB) ListMeetings(userID string, from, to time.Time) ([]model.Meeting, error) {
	rows, err := db.Query(`SELECT `+meetingColumns+` FROM meetings
		WHERE user_id = ? AND starts_at >= ? AND starts_at < ? ORDER BY starts_at`,
		userID, millis(from), millis(to))
	if err != nil {
		return nil, fmt.Errorf("list meetings: %w", err)
	}
	defer rows.Close()

	var out []model.Meeting
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, fmt.Errorf("scan meeting: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// SetBriefing stores a generated pre-meeting briefing.
func (db *DB) SetBriefing(userID, id, briefing string, at time.Time) error {
	res, err := db.Exec(`UPDATE meetings SET briefing = ?, briefing_generated_at = ? WHERE user_id = ? AND id = ?`,
		briefing, millis(at), userID, id)
	if err != nil {
		return fmt.Errorf("set briefing: %w", err)
	}
	return expectRow(res, "meeting", id)
}

// RequireMeeting is GetMeeting with a missing row reported as not-found.
func (db *DB) RequireMeeting(userID, id string) (*model.Meeting, error) {
	m, err := db.GetMeeting(userID, id)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, apperr.NotFound("meeting %s not found", id)
	}
	return m, nil
}
