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

// TagCount is a tribe with the number of active members.
type TagCount struct {
	model.Tag
	Members int `json:"members"`
}

// EnsureTag returns the user's tag with the given name, matching
// case-insensitively, creating it when missing.
func (db *DB) EnsureTag(userID, name string) (*model.Tag, error) {
	return ensureTag(db, userID, name)
}

func ensureTag(q execer, userID, name string) (*model.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("tag name is required")
	}

	var t model.Tag
	var created int64
	err := q.QueryRow(`SELECT id, user_id, name, created_at FROM tags WHERE user_id = ? AND name = ? COLLATE NOCASE`,
		userID, name).Scan(&t.ID, &t.UserID, &t.Name, &created)
	if err == nil {
		t.CreatedAt = fromMillis(created)
		return &t, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("lookup tag: %w", err)
	}

	now := time.Now().UTC()
	t = model.Tag{ID: uuid.NewString(), UserID: userID, Name: name, CreatedAt: fromMillis(millis(now))}
	if _, err := q.Exec(`INSERT INTO tags (id, user_id, name, created_at) VALUES (?, ?, ?, ?)`,
		t.ID, t.UserID, t.Name, millis(now)); err != nil {
		return nil, fmt.Errorf("create tag: %w", err)
	}
	return &t, nil
}

// ListTags returns the user's tribes with member counts, by name.
func (db *DB) ListTags(userID string) ([]TagCount, error) {
	rows, err := db.Query(`
		SELECT t.id, t.user_id, t.name, t.created_at,
			(SELECT COUNT(*) FROM person_tags pt JOIN persons p ON p.id = pt.person_id
			 WHERE pt.tag_id = t.id AND p.archived = 0)
		FROM tags t WHERE t.user_id = ? ORDER BY t.name COLLATE NOCASE
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	var out []TagCount
	for rows.Next() {
		var tc TagCount
		var created int64
		if err := rows.Scan(&tc.ID, &tc.UserID, &tc.Name, &created, &tc.Members); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tc.CreatedAt = fromMillis(created)
		out = append(out, tc)
	}
	return out, rows.Err()
}

// DeleteTag removes a tribe and its memberships.
func (db *DB) DeleteTag(userID, id string) error {
	res, err := db.Exec(`DELETE FROM tags WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return fmt.Errorf("delete tag: %w", err)
	}
	return expectRow(res, "tag", id)
}

// AddPersonTag puts a person into the named tribe, creating the tribe if needed.
func (db *DB) AddPersonTag(userID, personID, tagName string) (*model.Tag, error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin add tag: %w", err)
	}
	defer tx.Rollback()

	if err := ownsPerson(tx, userID, personID); err != nil {
		return nil, err
	}
	tag, err := ensureTag(tx, userID, tagName)
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(`INSERT OR IGNORE INTO person_tags (person_id, tag_id) VALUES (?, ?)`, personID, tag.ID); err != nil {
		return nil, fmt.Errorf("link tag: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit add tag: %w", err)
	}
	return tag, nil
}

// setPersonTags links a person to each named tribe. Names repeated
// case-insensitively are linked once.
func setPersonTags(tx execer, userID, personID string, names []string) error {
	for _, name := range names {
		tag, err := ensureTag(tx, userID, name)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(`INSERT OR IGNORE INTO person_tags (person_id, tag_id) VALUES (?, ?)`, personID, tag.ID); err != nil {
			return fmt.Errorf("link tag: %w", err)
		}
	}
	return nil
}

// RemovePersonTag takes a person out of a tribe.
func (db *DB) RemovePersonTag(userID, personID, tagID string) error {
	res, err := db.Exec(`
		DELETE FROM person_tags WHERE person_id = ? AND tag_id = ?
		AND tag_id IN (SELECT id FROM tags WHERE user_id = ?)
	`, personID, tagID, userID)
	if err != nil {
		return fmt.Errorf("unlink tag: %w", err)
	}
	return expectRow(res, "person tag", tagID)
}
