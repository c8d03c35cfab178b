package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rememberme/rememberme/internal/model"
)

// RecordPracticeSession stores a finished practice game.
func (db *DB) RecordPracticeSession(s *model.PracticeSession) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CompletedAt.IsZero() {
		s.CompletedAt = time.Now().UTC()
	}
	_, err := db.Exec(`
		INSERT INTO practice_sessions (id, user_id, game, score, total, completed_at) VALUES (?, ?, ?, ?, ?, ?)
	`, s.ID, s.UserID, s.Game, s.Score, s.Total, millis(s.CompletedAt))
	if err != nil {
		return fmt.Errorf("record practice session: %w", err)
	}
	return nil
}

// ListPracticeSessions returns a user's sessions, most recent first.
func (db *DB) ListPracticeSessions(userID string) ([]model.PracticeSession, error) {
	rows, err := db.Query(`
		SELECT id, user_id, game, score, total, completed_at FROM practice_sessions
		WHERE user_id = ? ORDER BY completed_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list practice sessions: %w", err)
	}
	defer rows.Close()

	var out []model.PracticeSession
	for rows.Next() {
		var s model.PracticeSession
		var completed int64
		if err := rows.Scan(&s.ID, &s.UserID, &s.Game, &s.Score, &s.Total, &completed); err != nil {
			return nil, fmt.Errorf("scan practice session: %w", err)
		}
		s.CompletedAt = fromMillis(completed)
		out = append(out, s)
	}
	return out, rows.Err()
}

// CreateRescueSuggestion stores a drafted reconnect message.
func (db *DB) CreateRescueSuggestion(s *model.RescueSuggestion) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	_, err := db.Exec(`
		INSERT INTO rescue_suggestions (id, user_id, person_id, message, created_at) VALUES (?, ?, ?, ?, ?)
	`, s.ID, s.UserID, s.PersonID, s.Message, millis(s.CreatedAt))
	if err != nil {
		return fmt.Errorf("create rescue suggestion: %w", err)
	}
	return nil
}

// ListRescueSuggestions returns suggestions newest first. Dismissed ones
// are included only when asked for.
func (db *DB) ListRescueSuggestions(userID string, includeDismissed bool) ([]model.RescueSuggestion, error) {
	q := `SELECT id, user_id, person_id, message, created_at, dismissed_at FROM rescue_suggestions WHERE user_id = ?`
	if !includeDismissed {
		q += ` AND dismissed_at IS NULL`
	}
	q += ` ORDER BY created_at DESC`

	rows, err := db.Query(q, userID)
	if err != nil {
		return nil, fmt.Errorf("list rescue suggestions: %w", err)
	}
	defer rows.Close()

	var out []model.RescueSuggestion
	for rows.Next() {
		var s model.RescueSuggestion
		var created int64
		var dismissed sql.NullInt64
		if err := rows.Scan(&s.ID, &s.UserID, &s.PersonID, &s.Message, &created, &dismissed); err != nil {
			return nil, fmt.Errorf("scan rescue suggestion: %w", err)
		}
		s.CreatedAt = fromMillis(created)
		s.DismissedAt = timePtr(dismissed)
		out = append(out, s)
	}
	return out, rows.Err()
}

// DismissRescueSuggestion marks a suggestion as handled.
func (db *DB) DismissRescueSuggestion(userID, id string) error {
	res, err := db.Exec(`
		UPDATE rescue_suggestions SET dismissed_at = ? WHERE user_id = ? AND id = ? AND dismissed_at IS NULL
	`, millis(time.Now()), userID, id)
	if err != nil {
		return fmt.Errorf("dismiss rescue suggestion: %w", err)
	}
	return expectRow(res, "rescue suggestion", id)
}

// HasOpenSuggestionSince reports whether the person has an undismissed
// suggestion created at or after since.
func (db *DB) HasOpenSuggestionSince(userID, personID string, since time.Time) (bool, error) {
	var n int
	err := db.QueryRow(`
		SELECT COUNT(*) FROM rescue_suggestions
		WHERE user_id = ? AND person_id = ? AND dismissed_at IS NULL AND created_at >= ?
	`, userID, personID, millis(since)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check open suggestion: %w", err)
	}
	return n > 0, nil
}
