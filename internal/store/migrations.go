package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "persons: the contacts a user keeps track of",
		SQL: `
CREATE TABLE persons (
    id                      TEXT PRIMARY KEY,
    user_id                 TEXT NOT NULL,
    first_name              TEXT NOT NULL,
    last_name               TEXT NOT NULL DEFAULT '',
    email                   TEXT NOT NULL DEFAULT '',
    phone                   TEXT NOT NULL DEFAULT '',
    photo_url               TEXT NOT NULL DEFAULT '',
    birthday                TEXT NOT NULL DEFAULT '',
    where_met               TEXT NOT NULL DEFAULT '',
    why_stay_in_contact     TEXT NOT NULL DEFAULT '',
    most_important_to_know  TEXT NOT NULL DEFAULT '',
    importance              TEXT NOT NULL DEFAULT 'medium' CHECK (importance IN ('high', 'medium', 'low')),
    target_frequency_days   INTEGER NOT NULL DEFAULT 0,
    last_interaction_at     INTEGER,
    relationship_summary    TEXT NOT NULL DEFAULT '',
    summary_updated_at      INTEGER,
    archived                INTEGER NOT NULL DEFAULT 0,
    created_at              INTEGER NOT NULL,
    updated_at              INTEGER NOT NULL
);

CREATE INDEX idx_persons_user ON persons(user_id, archived);
`,
	},
	{
		Version:     2,
		Description: "interactions: logged touchpoints",
		SQL: `
CREATE TABLE interactions (
    id          TEXT PRIMARY KEY,
    user_id     TEXT NOT NULL,
    person_id   TEXT NOT NULL,
    kind        TEXT NOT NULL CHECK (kind IN ('call', 'text', 'email', 'meeting', 'social', 'other')),
    notes       TEXT NOT NULL DEFAULT '',
    occurred_at INTEGER NOT NULL,
    created_at  INTEGER NOT NULL,
    FOREIGN KEY (person_id) REFERENCES persons(id) ON DELETE CASCADE
);

CREATE INDEX idx_interactions_person ON interactions(person_id, occurred_at DESC);
`,
	},
	{
		Version:     3,
		Description: "tags, person_tags, interests, shared_memories, relationships",
		SQL: `
CREATE TABLE tags (
    id         TEXT PRIMARY KEY,
    user_id    TEXT NOT NULL,
    name       TEXT NOT NULL,
    created_at INTEGER NOT NULL
);
CREATE UNIQUE INDEX idx_tags_user_name ON tags(user_id, name COLLATE NOCASE);

CREATE TABLE person_tags (
    person_id TEXT NOT NULL,
    tag_id    TEXT NOT NULL,
    PRIMARY KEY (person_id, tag_id),
    FOREIGN KEY (person_id) REFERENCES persons(id) ON DELETE CASCADE,
    FOREIGN KEY (tag_id) REFERENCES tags(id) ON DELETE CASCADE
);

CREATE TABLE interests (
    id        TEXT PRIMARY KEY,
    person_id TEXT NOT NULL,
    name      TEXT NOT NULL,
    FOREIGN KEY (person_id) REFERENCES persons(id) ON DELETE CASCADE
);
CREATE UNIQUE INDEX idx_interests_person_name ON interests(person_id, name COLLATE NOCASE);

CREATE TABLE shared_memories (
    id          TEXT PRIMARY KEY,
    person_id   TEXT NOT NULL,
    content     TEXT NOT NULL,
    occurred_at INTEGER,
    created_at  INTEGER NOT NULL,
    FOREIGN KEY (person_id) REFERENCES persons(id) ON DELETE CASCADE
);
CREATE INDEX idx_memories_person ON shared_memories(person_id);

CREATE TABLE relationships (
    id                TEXT PRIMARY KEY,
    user_id           TEXT NOT NULL,
    person_id         TEXT NOT NULL,
    related_person_id TEXT NOT NULL,
    label             TEXT NOT NULL DEFAULT '',
    created_at        INTEGER NOT NULL,
    CHECK (person_id <> related_person_id),
    FOREIGN KEY (person_id) REFERENCES persons(id) ON DELETE CASCADE,
    FOREIGN KEY (related_person_id) REFERENCES persons(id) ON DELETE CASCADE
);
CREATE UNIQUE INDEX idx_relationships_pair
    ON relationships(min(person_id, related_person_id), max(person_id, related_person_id));
`,
	},
	{
		Version:     4,
		Description: "calendar: connections, preferences, meetings",
		SQL: `
CREATE TABLE calendar_connections (
    id                   TEXT PRIMARY KEY,
    user_id              TEXT NOT NULL,
    provider             TEXT NOT NULL CHECK (provider IN ('google', 'microsoft')),
    account_email        TEXT NOT NULL DEFAULT '',
    sealed_access_token  TEXT NOT NULL,
    sealed_refresh_token TEXT NOT NULL DEFAULT '',
    expires_at           INTEGER,
    created_at           INTEGER NOT NULL,
    updated_at           INTEGER NOT NULL,
    UNIQUE (user_id, provider)
);

CREATE TABLE calendar_preferences (
    user_id               TEXT PRIMARY KEY,
    enabled               INTEGER NOT NULL DEFAULT 1,
    briefing_lead_minutes INTEGER NOT NULL DEFAULT 30,
    only_known_contacts   INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE meetings (
    id                    TEXT PRIMARY KEY,
    user_id               TEXT NOT NULL,
    provider              TEXT NOT NULL,
    external_id           TEXT NOT NULL,
    title                 TEXT NOT NULL DEFAULT '',
    starts_at             INTEGER NOT NULL,
    ends_at               INTEGER NOT NULL,
    attendee_emails       TEXT NOT NULL DEFAULT '[]',
    person_id             TEXT,
    briefing              TEXT NOT NULL DEFAULT '',
    briefing_generated_at INTEGER,
    UNIQUE (user_id, provider, external_id),
    FOREIGN KEY (person_id) REFERENCES persons(id) ON DELETE SET NULL
);
CREATE INDEX idx_meetings_user_start ON meetings(user_id, starts_at);
`,
	},
	{
		Version:     5,
		Description: "practice_sessions and rescue_suggestions",
		SQL: `
CREATE TABLE practice_sessions (
    id           TEXT PRIMARY KEY,
    user_id      TEXT NOT NULL,
    game         TEXT NOT NULL,
    score        INTEGER NOT NULL,
    total        INTEGER NOT NULL,
    completed_at INTEGER NOT NULL
);
CREATE INDEX idx_practice_user ON practice_sessions(user_id, completed_at DESC);

CREATE TABLE rescue_suggestions (
    id           TEXT PRIMARY KEY,
    user_id      TEXT NOT NULL,
    person_id    TEXT NOT NULL,
    message      TEXT NOT NULL,
    created_at   INTEGER NOT NULL,
    dismissed_at INTEGER,
    FOREIGN KEY (person_id) REFERENCES persons(id) ON DELETE CASCADE
);
CREATE INDEX idx_rescue_user ON rescue_suggestions(user_id, created_at DESC);
`,
	},
}

func (db *DB) migrate() error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
