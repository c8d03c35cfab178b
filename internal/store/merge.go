package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rememberme/rememberme/internal/apperr"
	"github.com/rememberme/rememberme/internal/model"
)

// MergePersons folds duplicates into keeper in a single transaction.
// Child rows move to the keeper (interests and tag links deduplicated,
// relationships that would become self links or repeat a pair dropped),
// empty keeper fields are filled from the duplicates, the latest
// last_interaction_at wins, and the duplicates are deleted. Any invalid id
// aborts the merge with nothing changed.
func (db *DB) MergePersons(userID, keeperID string, duplicateIDs []string) (*model.Person, error) {
	if keeperID == "" || len(duplicateIDs) == 0 {
		return nil, apperr.Validation("keeper and at least one duplicate are required")
	}
	seen := map[string]bool{}
	for _, id := range duplicateIDs {
		if id == keeperID {
			return nil, apperr.Validation("keeper %s cannot also be a duplicate", id)
		}
		if seen[id] {
			return nil, apperr.Validation("duplicate %s listed twice", id)
		}
		seen[id] = true
	}

	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin merge: %w", err)
	}
	defer tx.Rollback()

	keeper, err := txPerson(tx, userID, keeperID)
	if err != nil {
		return nil, err
	}
	dups := make([]*model.Person, 0, len(duplicateIDs))
	for _, id := range duplicateIDs {
		d, err := txPerson(tx, userID, id)
		if err != nil {
			return nil, err
		}
		dups = append(dups, d)
	}

	for _, d := range dups {
		if err := reparent(tx, keeperID, d.ID); err != nil {
			return nil, err
		}
		absorb(keeper, d)
		if _, err := tx.Exec(`DELETE FROM persons WHERE id = ?`, d.ID); err != nil {
			return nil, fmt.Errorf("delete duplicate %s: %w", d.ID, err)
		}
	}

	if _, err := tx.Exec(`
		UPDATE persons SET last_name = ?, email = ?, phone = ?, photo_url = ?, birthday = ?, where_met = ?,
			why_stay_in_contact = ?, most_important_to_know = ?, target_frequency_days = ?,
			last_interaction_at = ?, relationship_summary = ?, summary_updated_at = ?, updated_at = ?
		WHERE id = ?
	`, keeper.LastName, keeper.Email, keeper.Phone, keeper.PhotoURL, keeper.Birthday, keeper.WhereMet,
		keeper.WhyStayInContact, keeper.MostImportantToKnow, keeper.TargetFrequencyDays,
		nullMillis(keeper.LastInteractionAt), keeper.RelationshipSummary, nullMillis(keeper.SummaryUpdatedAt),
		millis(time.Now()), keeperID); err != nil {
		return nil, fmt.Errorf("update keeper: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit merge: %w", err)
	}
	return db.GetPerson(userID, keeperID)
}

func txPerson(tx *sql.Tx, userID, id string) (*model.Person, error) {
	p, err := scanPerson(tx.QueryRow(`SELECT `+personColumns+` FROM persons WHERE user_id = ? AND id = ?`, userID, id))
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("person %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load person %s: %w", id, err)
	}
	return p, nil
}

// reparent moves every child row of dup onto keeper. Rows that would
// violate a uniqueness rule stay behind and cascade away with dup.
func reparent(tx *sql.Tx, keeperID, dupID string) error {
	stmts := []struct {
		what string
		sql  string
		args []any
	}{
		{"interactions", `UPDATE interactions SET person_id = ? WHERE person_id = ?`, []any{keeperID, dupID}},
		{"interests", `UPDATE OR IGNORE interests SET person_id = ? WHERE person_id = ?`, []any{keeperID, dupID}},
		{"memories", `UPDATE shared_memories SET person_id = ? WHERE person_id = ?`, []any{keeperID, dupID}},
		{"tags", `UPDATE OR IGNORE person_tags SET person_id = ? WHERE person_id = ?`, []any{keeperID, dupID}},
		{"self links", `DELETE FROM relationships WHERE
			(person_id = ? AND related_person_id = ?) OR (person_id = ? AND related_person_id = ?)`,
			[]any{dupID, keeperID, keeperID, dupID}},
		{"relationships", `UPDATE OR IGNORE relationships SET person_id = ? WHERE person_id = ?`, []any{keeperID, dupID}},
		{"related", `UPDATE OR IGNORE relationships SET related_person_id = ? WHERE related_person_id = ?`, []any{keeperID, dupID}},
		{"meetings", `UPDATE meetings SET person_id = ? WHERE person_id = ?`, []any{keeperID, dupID}},
		{"rescue", `UPDATE rescue_suggestions SET person_id = ? WHERE person_id = ?`, []any{keeperID, dupID}},
	}
	for _, s := range stmts {
		if _, err := tx.Exec(s.sql, s.args...); err != nil {
			return fmt.Errorf("merge %s: %w", s.what, err)
		}
	}
	return nil
}

// absorb copies dup's values into keeper's empty fields.
func absorb(keeper, dup *model.Person) {
	fill := func(dst *string, src string) {
		if *dst == "" {
			*dst = src
		}
	}
	fill(&keeper.LastName, dup.LastName)
	fill(&keeper.Email, dup.Email)
	fill(&keeper.Phone, dup.Phone)
	fill(&keeper.PhotoURL, dup.PhotoURL)
	fill(&keeper.Birthday, dup.Birthday)
	fill(&keeper.WhereMet, dup.WhereMet)
	fill(&keeper.WhyStayInContact, dup.WhyStayInContact)
	fill(&keeper.MostImportantToKnow, dup.MostImportantToKnow)
	if keeper.RelationshipSummary == "" && dup.RelationshipSummary != "" {
		keeper.RelationshipSummary = dup.RelationshipSummary
		keeper.SummaryUpdatedAt = dup.SummaryUpdatedAt
	}
	if keeper.TargetFrequencyDays <= 0 {
		keeper.TargetFrequencyDays = dup.TargetFrequencyDays
	}
	if dup.LastInteractionAt != nil &&
		(keeper.LastInteractionAt == nil || dup.LastInteractionAt.After(*keeper.LastInteractionAt)) {
		keeper.LastInteractionAt = dup.LastInteractionAt
	}
}
