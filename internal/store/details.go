package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rememberme/rememberme/internal/apperr"
	"github.com/rememberme/rememberme/internal/model"
)

// AddInterest attaches an interest to a person. Adding a name the person
// already has, in any letter case, returns the existing row.
func (db *DB) AddInterest(userID, personID, name string) (*model.Interest, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("interest name is required")
	}
	if err := ownsPerson(db, userID, personID); err != nil {
		return nil, err
	}

	var in model.Interest
	err := db.QueryRow(`SELECT id, person_id, name FROM interests WHERE person_id = ? AND name = ? COLLATE NOCASE`,
		personID, name).Scan(&in.ID, &in.PersonID, &in.Name)
	if err == nil {
		return &in, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("lookup interest: %w", err)
	}

	in = model.Interest{ID: uuid.NewString(), PersonID: personID, Name: name}
	if _, err := db.Exec(`INSERT INTO interests (id, person_id, name) VALUES (?, ?, ?)`, in.ID, in.PersonID, in.Name); err != nil {
		return nil, fmt.Errorf("create interest: %w", err)
	}
	return &in, nil
}

// ListInterests returns a person's interests by name.
func (db *DB) ListInterests(userID, personID string) ([]model.Interest, error) {
	rows, err := db.Query(`
		SELECT i.id, i.person_id, i.name FROM interests i JOIN persons p ON p.id = i.person_id
		WHERE p.user_id = ? AND i.person_id = ? ORDER BY i.name COLLATE NOCASE
	`, userID, personID)
	if err != nil {
		return nil, fmt.Errorf("list interests: %w", err)
	}
	defer rows.Close()

	var out []model.Interest
	for rows.Next() {
		var in model.Interest
		if err := rows.Scan(&in.ID, &in.PersonID, &in.Name); err != nil {
			return nil, fmt.Errorf("scan interest: %w", err)
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

// DeleteInterest removes one interest.
func (db *DB) DeleteInterest(userID, id string) error {
	res, err := db.Exec(`
		DELETE FROM interests WHERE id = ?
		AND person_id IN (SELECT id FROM persons WHERE user_id = ?)
	`, id, userID)
	if err != nil {
		return fmt.Errorf("delete interest: %w", err)
	}
	return expectRow(res, "interest", id)
}

// AddMemory stores a shared memory for a person.
func (db *DB) AddMemory(userID string, m *model.SharedMemory) error {
	m.Content = strings.TrimSpace(m.Content)
	if m.Content == "" {
		return apperr.Validation("memory content is required")
	}
	if err := ownsPerson(db, userID, m.PersonID); err != nil {
		return err
	}
	now := time.Now().UTC()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if _, err := db.Exec(`
		INSERT INTO shared_memories (id, person_id, content, occurred_at, created_at) VALUES (?, ?, ?, ?, ?)
	`, m.ID, m.PersonID, m.Content, nullMillis(m.OccurredAt), millis(now)); err != nil {
		return fmt.Errorf("create memory: %w", err)
	}
	m.CreatedAt = fromMillis(millis(now))
	return nil
}

// ListMemories returns a person's shared memories, most recent first.
func (db *DB) ListMemories(userID, personID string) ([]model.SharedMemory, error) {
	rows, err := db.Query(`
		SELECT m.id, m.person_id, m.content, m.occurred_at, m.created_at
		FROM shared_memories m JOIN persons p ON p.id = m.person_id
		WHERE p.user_id = ? AND m.person_id = ?
		ORDER BY COALESCE(m.occurred_at, m.created_at) DESC
	`, userID, personID)
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}
	defer rows.Close()

	var out []model.SharedMemory
	for rows.Next() {
		var m model.SharedMemory
		var occurred sql.NullInt64
		var created int64
		if err := rows.Scan(&m.ID, &m.PersonID, &m.Content, &occurred, &created); err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		m.OccurredAt = timePtr(occurred)
		m.CreatedAt = fromMillis(created)
		out = append(out, m)
	}
	return out, rows.Err()
}

// DeleteMemory removes one shared memory.
func (db *DB) DeleteMemory(userID, id string) error {
	res, err := db.Exec(`
		DELETE FROM shared_memories WHERE id = ?
		AND person_id IN (SELECT id FROM persons WHERE user_id = ?)
	`, id, userID)
	if err != nil {
		return fmt.Errorf("delete memory: %w", err)
	}
	return expectRow(res, "memory", id)
}

// CreateRelationship links two of a user's contacts. Self links are
// rejected and each unordered pair may be linked once.
func (db *DB) CreateRelationship(r *model.Relationship) error {
	if r.PersonID == r.RelatedPersonID {
		return apperr.Validation("a person cannot be related to themselves")
	}
	for _, id := range []string{r.PersonID, r.RelatedPersonID} {
		if err := ownsPerson(db, r.UserID, id); err != nil {
			return err
		}
	}

	var exists int
	err := db.QueryRow(`
		SELECT COUNT(*) FROM relationships WHERE
			(person_id = ? AND related_person_id = ?) OR (person_id = ? AND related_person_id = ?)
	`, r.PersonID, r.RelatedPersonID, r.RelatedPersonID, r.PersonID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check relationship: %w", err)
	}
	if exists > 0 {
		return apperr.Conflict("these persons are already related")
	}

	now := time.Now().UTC()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if _, err := db.Exec(`
		INSERT INTO relationships (id, user_id, person_id, related_person_id, label, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.ID, r.UserID, r.PersonID, r.RelatedPersonID, r.Label, millis(now)); err != nil {
		return fmt.Errorf("create relationship: %w", err)
	}
	r.CreatedAt = fromMillis(millis(now))
	return nil
}

// ListRelationships returns links where the person is on either side.
func (db *DB) ListRelationships(userID, personID string) ([]model.Relationship, error) {
	rows, err := db.Query(`
		SELECT id, user_id, person_id, related_person_id, label, created_at FROM relationships
		WHERE user_id = ? AND (person_id = ? OR related_person_id = ?) ORDER BY created_at
	`, userID, personID, personID)
	if err != nil {
		return nil, fmt.Errorf("list relationships: %w", err)
	}
	defer rows.Close()

	var out []model.Relationship
	for rows.Next() {
		var r model.Relationship
		var created int64
		if err := rows.Scan(&r.ID, &r.UserID, &r.PersonID, &r.RelatedPersonID, &r.Label, &created); err != nil {
			return nil, fmt.Errorf("scan relationship: %w", err)
		}
		r.CreatedAt = fromMillis(created)
		out = append(out, r)
	}
	return out, rows.Err()
}

// DeleteRelationship removes a link.
func (db *DB) DeleteRelationship(userID, id string) error {
	res, err := db.Exec(`DELETE FROM relationships WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return fmt.Errorf("delete relationship: %w", err)
	}
	return expectRow(res, "relationship", id)
}
