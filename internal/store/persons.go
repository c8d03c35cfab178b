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

const personColumns = `id, user_id, first_name, last_name, email, phone, photo_url, birthday,
	where_met, why_stay_in_contact, most_important_to_know, importance, target_frequency_days,
	last_interaction_at, relationship_summary, summary_updated_at, archived, created_at, updated_at`

func scanPerson(s scanner) (*model.Person, error) {
	var p model.Person
	var importance string
	var lastInteraction, summaryUpdated sql.NullInt64
	var archived int
	var created, updated int64
	err := s.Scan(&p.ID, &p.UserID, &p.FirstName, &p.LastName, &p.Email, &p.Phone, &p.PhotoURL, &p.Birthday,
		&p.WhereMet, &p.WhyStayInContact, &p.MostImportantToKnow, &importance, &p.TargetFrequencyDays,
		&lastInteraction, &p.RelationshipSummary, &summaryUpdated, &archived, &created, &updated)
	if err != nil {
		return nil, err
	}
	p.Importance = model.Importance(importance)
	p.LastInteractionAt = timePtr(lastInteraction)
	p.SummaryUpdatedAt = timePtr(summaryUpdated)
	p.Archived = archived != 0
	p.CreatedAt = fromMillis(created)
	p.UpdatedAt = fromMillis(updated)
	return &p, nil
}

// CreatePerson inserts a person and assigns its id and timestamps.
func (db *DB) CreatePerson(p *model.Person) error {
	return insertPerson(db, p)
}

// CreatePersonWithTags inserts a person and its tribe memberships in one
// transaction, creating missing tribes.
func (db *DB) CreatePersonWithTags(p *model.Person, tags []string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin create person: %w", err)
	}
	defer tx.Rollback()

	if err := insertPerson(tx, p); err != nil {
		return err
	}
	if err := setPersonTags(tx, p.UserID, p.ID, tags); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create person: %w", err)
	}
	return nil
}

func insertPerson(q execer, p *model.Person) error {
	now := time.Now().UTC()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Importance == "" {
		p.Importance = model.ImportanceMedium
	}
	_, err := q.Exec(`
		INSERT INTO persons (`+personColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.UserID, p.FirstName, p.LastName, p.Email, p.Phone, p.PhotoURL, p.Birthday,
		p.WhereMet, p.WhyStayInContact, p.MostImportantToKnow, string(p.Importance), p.TargetFrequencyDays,
		nullMillis(p.LastInteractionAt), p.RelationshipSummary, nullMillis(p.SummaryUpdatedAt),
		boolInt(p.Archived), millis(now), millis(now))
	if err != nil {
		return fmt.Errorf("create person: %w", err)
	}
	p.CreatedAt = fromMillis(millis(now))
	p.UpdatedAt = p.CreatedAt
	return nil
}

// GetPerson returns a person with tags and interests, or nil if not found.
func (db *DB) GetPerson(userID, id string) (*model.Person, error) {
	p, err := scanPerson(db.QueryRow(`SELECT `+personColumns+` FROM persons WHERE user_id = ? AND id = ?`, userID, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get person: %w", err)
	}
	persons := []model.Person{*p}
	if err := db.attachLabels(userID, persons); err != nil {
		return nil, err
	}
	return &persons[0], nil
}

// RequirePerson is GetPerson with a missing row reported as not-found.
func (db *DB) RequirePerson(userID, id string) (*model.Person, error) {
	p, err := db.GetPerson(userID, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperr.NotFound("person %s not found", id)
	}
	return p, nil
}

// UpdatePerson rewrites the editable fields of a person.
func (db *DB) UpdatePerson(p *model.Person) error {
	return updatePerson(db, p)
}

// UpdatePersonWithTags rewrites a person and, when tags is non-nil, replaces
// its tribe memberships with exactly those names. A nil tags slice leaves
// memberships alone; an empty one clears them.
func (db *DB) UpdatePersonWithTags(p *model.Person, tags []string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin update person: %w", err)
	}
	defer tx.Rollback()

	if err := updatePerson(tx, p); err != nil {
		return err
	}
	if tags != nil {
		if _, err := tx.Exec(`DELETE FROM person_tags WHERE person_id = ?`, p.ID); err != nil {
			return fmt.Errorf("clear person tags: %w", err)
		}
		if err := setPersonTags(tx, p.UserID, p.ID, tags); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update person: %w", err)
	}
	return nil
}

func updatePerson(q execer, p *model.Person) error {
	now := time.Now().UTC()
	res, err := q.Exec(`
		UPDATE persons SET first_name = ?, last_name = ?, email = ?, phone = ?, photo_url = ?, birthday = ?,
			where_met = ?, why_stay_in_contact = ?, most_important_to_know = ?, importance = ?,
			target_frequency_days = ?, updated_at = ?
		WHERE user_id = ? AND id = ?
	`, p.FirstName, p.LastName, p.Email, p.Phone, p.PhotoURL, p.Birthday,
		p.WhereMet, p.WhyStayInContact, p.MostImportantToKnow, string(p.Importance),
		p.TargetFrequencyDays, millis(now), p.UserID, p.ID)
	if err != nil {
		return fmt.Errorf("update person: %w", err)
	}
	if err := expectRow(res, "person", p.ID); err != nil {
		return err
	}
	p.UpdatedAt = fromMillis(millis(now))
	return nil
}

// SetArchived archives or restores a person.
func (db *DB) SetArchived(userID, id string, archived bool) error {
	res, err := db.Exec(`UPDATE persons SET archived = ?, updated_at = ? WHERE user_id = ? AND id = ?`,
		boolInt(archived), millis(time.Now()), userID, id)
	if err != nil {
		return fmt.Errorf("archive person: %w", err)
	}
	return expectRow(res, "person", id)
}

// DeletePerson removes a person and, through cascades, everything hanging off it.
func (db *DB) DeletePerson(userID, id string) error {
	res, err := db.Exec(`DELETE FROM persons WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return fmt.Errorf("delete person: %w", err)
	}
	return expectRow(res, "person", id)
}

// SetRelationshipSummary stores an AI summary for a person.
func (db *DB) SetRelationshipSummary(userID, id, summary string, at time.Time) error {
	res, err := db.Exec(`
		UPDATE persons SET relationship_summary = ?, summary_updated_at = ?, updated_at = ?
		WHERE user_id = ? AND id = ?
	`, summary, millis(at), millis(at), userID, id)
	if err != nil {
		return fmt.Errorf("set summary: %w", err)
	}
	return expectRow(res, "person", id)
}

// FillPersonFacts sets where_met and most_important_to_know when they are
// currently empty. Existing values are never overwritten.
func (db *DB) FillPersonFacts(userID, id, whereMet, mostImportant string) error {
	_, err := db.Exec(`
		UPDATE persons SET
			where_met = CASE WHEN where_met = '' THEN ? ELSE where_met END,
			most_important_to_know = CASE WHEN most_important_to_know = '' THEN ? ELSE most_important_to_know END,
			updated_at = ?
		WHERE user_id = ? AND id = ?
	`, whereMet, mostImportant, millis(time.Now()), userID, id)
	if err != nil {
		return fmt.Errorf("fill person facts: %w", err)
	}
	return nil
}

// PersonFilter narrows ListPersons.
type PersonFilter struct {
	Query           string // substring over name and email
	Tag             string // tribe name, case-insensitive
	IncludeArchived bool
}

// ListPersons returns a user's persons ordered by first then last name.
func (db *DB) ListPersons(userID string, f PersonFilter) ([]model.Person, error) {
	q := `SELECT ` + personColumns + ` FROM persons WHERE user_id = ?`
	args := []any{userID}
	if !f.IncludeArchived {
		q += ` AND archived = 0`
	}
	if query := strings.TrimSpace(f.Query); query != "" {
		like := "%" + strings.ToLower(query) + "%"
		q += ` AND (lower(first_name || ' ' || last_name) LIKE ? OR lower(email) LIKE ?)`
		args = append(args, like, like)
	}
	if f.Tag != "" {
		q += ` AND id IN (
			SELECT pt.person_id FROM person_tags pt JOIN tags t ON t.id = pt.tag_id
			WHERE t.user_id = ? AND t.name = ? COLLATE NOCASE)`
		args = append(args, userID, f.Tag)
	}
	q += ` ORDER BY first_name COLLATE NOCASE, last_name COLLATE NOCASE, id`

	persons, err := db.queryPersons(q, args...)
	if err != nil {
		return nil, err
	}
	if err := db.attachLabels(userID, persons); err != nil {
		return nil, err
	}
	return persons, nil
}

// queryPersons scans all rows and closes them before returning, so callers
// can issue follow-up queries on a single-connection pool.
func (db *DB) queryPersons(q string, args ...any) ([]model.Person, error) {
	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("list persons: %w", err)
	}
	defer rows.Close()

	var persons []model.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		persons = append(persons, *p)
	}
	return persons, rows.Err()
}

// attachLabels fills Tags and Interests on each person in place.
func (db *DB) attachLabels(userID string, persons []model.Person) error {
	if len(persons) == 0 {
		return nil
	}
	index := make(map[string]int, len(persons))
	for i := range persons {
		index[persons[i].ID] = i
	}

	rows, err := db.Query(`
		SELECT pt.person_id, t.name FROM person_tags pt JOIN tags t ON t.id = pt.tag_id
		WHERE t.user_id = ? ORDER BY t.name COLLATE NOCASE
	`, userID)
	if err != nil {
		return fmt.Errorf("load person tags: %w", err)
	}
	for rows.Next() {
		var pid, name string
		if err := rows.Scan(&pid, &name); err != nil {
			rows.Close()
			return fmt.Errorf("scan person tag: %w", err)
		}
		if i, ok := index[pid]; ok {
			persons[i].Tags = append(persons[i].Tags, name)
		}
	}
	rows.Close()

	rows, err = db.Query(`
		SELECT i.person_id, i.name FROM interests i JOIN persons p ON p.id = i.person_id
		WHERE p.user_id = ? ORDER BY i.name COLLATE NOCASE
	`, userID)
	if err != nil {
		return fmt.Errorf("load interests: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var pid, name string
		if err := rows.Scan(&pid, &name); err != nil {
			return fmt.Errorf("scan interest: %w", err)
		}
		if i, ok := index[pid]; ok {
			persons[i].Interests = append(persons[i].Interests, name)
		}
	}
	return rows.Err()
}

// ListUsersWithPersons returns every user id owning at least one active person.
func (db *DB) ListUsersWithPersons() ([]string, error) {
	rows, err := db.Query(`SELECT DISTINCT user_id FROM persons WHERE archived = 0 ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// CountPersons returns how many active persons a user has.
func (db *DB) CountPersons(userID string) (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM persons WHERE user_id = ? AND archived = 0`, userID).Scan(&n)
	return n, err
}

func expectRow(res sql.Result, what, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return apperr.NotFound("%s %s not found", what, id)
	}
	return nil
}
