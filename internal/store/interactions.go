package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rememberme/rememberme/internal/apperr"
	"github.com/rememberme/rememberme/internal/model"
)

// LogInteraction records a touchpoint and advances the person's
// last_interaction_at when the new one is more recent.
func (db *DB) LogInteraction(in *model.Interaction) error {
	now := time.Now().UTC()
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	if in.OccurredAt.IsZero() {
		in.OccurredAt = now
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin log interaction: %w", err)
	}
	defer tx.Rollback()

	if err := ownsPerson(tx, in.UserID, in.PersonID); err != nil {
		return err
	}
	if _, err := tx.Exec(`
		INSERT INTO interactions (id, user_id, person_id, kind, notes, occurred_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, in.ID, in.UserID, in.PersonID, string(in.Kind), in.Notes, millis(in.OccurredAt), millis(now)); err != nil {
		return fmt.Errorf("insert interaction: %w", err)
	}
	if _, err := tx.Exec(`
		UPDATE persons SET last_interaction_at = ?, updated_at = ?
		WHERE id = ? AND (last_interaction_at IS NULL OR last_interaction_at < ?)
	`, millis(in.OccurredAt), millis(now), in.PersonID, millis(in.OccurredAt)); err != nil {
		return fmt.Errorf("advance last interaction: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit log interaction: %w", err)
	}
	in.CreatedAt = fromMillis(millis(now))
	return nil
}

// ListInteractions returns a person's interactions, newest first. A
// non-positive limit returns all of them.
func (db *DB) ListInteractions(userID, personID string, limit int) ([]model.Interaction, error) {
	q := `SELECT id, user_id, person_id, kind, notes, occurred_at, created_at
		FROM interactions WHERE user_id = ? AND person_id = ? ORDER BY occurred_at DESC, created_at DESC`
	args := []any{userID, personID}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("list interactions: %w", err)
	}
	defer rows.Close()

	var out []model.Interaction
	for rows.Next() {
		var in model.Interaction
		var kind string
		var occurred, created int64
		if err := rows.Scan(&in.ID, &in.UserID, &in.PersonID, &kind, &in.Notes, &occurred, &created); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		in.Kind = model.InteractionKind(kind)
		in.OccurredAt = fromMillis(occurred)
		in.CreatedAt = fromMillis(created)
		out = append(out, in)
	}
	return out, rows.Err()
}

// DeleteInteraction removes an interaction and recomputes the person's
// last_interaction_at from what remains.
func (db *DB) DeleteInteraction(userID, id string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin delete interaction: %w", err)
	}
	defer tx.Rollback()

	var personID string
	err = tx.QueryRow(`SELECT person_id FROM interactions WHERE user_id = ? AND id = ?`, userID, id).Scan(&personID)
	if err == sql.ErrNoRows {
		return apperr.NotFound("interaction %s not found", id)
	}
	if err != nil {
		return fmt.Errorf("lookup interaction: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM interactions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete interaction: %w", err)
	}
	if err := recomputeLastInteraction(tx, personID); err != nil {
		return err
	}
	return tx.Commit()
}

func recomputeLastInteraction(tx execer, personID string) error {
	_, err := tx.Exec(`
		UPDATE persons SET last_interaction_at = (SELECT MAX(occurred_at) FROM interactions WHERE person_id = ?)
		WHERE id = ?
	`, personID, personID)
	if err != nil {
		return fmt.Errorf("recompute last interaction: %w", err)
	}
	return nil
}

// ownsPerson returns a not-found error unless the person exists for the user.
func ownsPerson(q execer, userID, personID string) error {
	var one int
	err := q.QueryRow(`SELECT 1 FROM persons WHERE user_id = ? AND id = ?`, userID, personID).Scan(&one)
	if err == sql.ErrNoRows {
		return apperr.NotFound("person %s not found", personID)
	}
	if err != nil {
		return fmt.Errorf("check person: %w", err)
	}
	return nil
}
