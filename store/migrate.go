package store

import (
	"context"
	"database/sql"
	"fmt"
)

// migration is one ordered schema step. Steps are idempotent (guarded by IF
// NOT EXISTS / INSERT OR IGNORE) so a partially recorded run is safe to
// repeat.
type migration struct {
	version int
	sql     string
}

var migrations = []migration{
	{1, `
CREATE TABLE IF NOT EXISTS documents (
	id             TEXT PRIMARY KEY,
	name           TEXT NOT NULL,
	media_type     TEXT NOT NULL DEFAULT '',
	byte_size      INTEGER NOT NULL DEFAULT 0,
	session_id     TEXT NOT NULL DEFAULT '',
	message_id     TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL DEFAULT 'pending',
	page_count     INTEGER NOT NULL DEFAULT 0,
	total_sections INTEGER NOT NULL DEFAULT 0,
	metadata       TEXT NOT NULL DEFAULT '{}',
	created_at     TEXT NOT NULL,
	updated_at     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS sections (
	document_id      TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	section_id       TEXT NOT NULL,
	type             TEXT NOT NULL,
	ordinal          INTEGER NOT NULL DEFAULT 0,
	page_number      INTEGER NOT NULL DEFAULT 0,
	preview          TEXT NOT NULL DEFAULT '',
	content_length   INTEGER NOT NULL DEFAULT 0,
	sensitive        INTEGER NOT NULL DEFAULT 0,
	matched_patterns TEXT NOT NULL DEFAULT '[]',
	confidence       REAL NOT NULL DEFAULT 0,
	selected         INTEGER NOT NULL DEFAULT 1,
	extra            TEXT NOT NULL DEFAULT '{}',
	PRIMARY KEY (document_id, section_id)
);
CREATE INDEX IF NOT EXISTS idx_sections_document_page ON sections(document_id, page_number);

CREATE TABLE IF NOT EXISTS image_annotations (
	document_id      TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	section_id       TEXT NOT NULL,
	page_number      INTEGER NOT NULL,
	image_index      INTEGER NOT NULL DEFAULT 0,
	width_px         INTEGER NOT NULL,
	height_px        INTEGER NOT NULL,
	width_cm         REAL NOT NULL DEFAULT 0,
	height_cm        REAL NOT NULL DEFAULT 0,
	width_inches     REAL NOT NULL DEFAULT 0,
	height_inches    REAL NOT NULL DEFAULT 0,
	x1               REAL NOT NULL DEFAULT 0,
	y1               REAL NOT NULL DEFAULT 0,
	x2               REAL NOT NULL DEFAULT 0,
	y2               REAL NOT NULL DEFAULT 0,
	caption_text     TEXT,
	caption_position TEXT,
	caption_x1       REAL,
	caption_y1       REAL,
	caption_x2       REAL,
	caption_y2       REAL,
	format           TEXT NOT NULL DEFAULT '',
	color_space      TEXT NOT NULL DEFAULT '',
	dpi              INTEGER NOT NULL DEFAULT 0,
	inline_image     INTEGER NOT NULL DEFAULT 0,
	has_transparency INTEGER NOT NULL DEFAULT 0,
	ocr_text         TEXT,
	ocr_confidence   REAL,
	ocr_language     TEXT,
	ocr_languages    TEXT,
	PRIMARY KEY (document_id, section_id)
);
CREATE INDEX IF NOT EXISTS idx_image_annotations_page ON image_annotations(document_id, page_number);

CREATE TABLE IF NOT EXISTS text_annotations (
	document_id       TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	section_id        TEXT NOT NULL,
	page_number       INTEGER NOT NULL,
	section_index     INTEGER NOT NULL DEFAULT 0,
	parent_section_id TEXT NOT NULL DEFAULT '',
	level             INTEGER NOT NULL DEFAULT 0,
	title             TEXT NOT NULL DEFAULT '',
	content           TEXT NOT NULL DEFAULT '',
	content_type      TEXT NOT NULL DEFAULT 'paragraph',
	word_count        INTEGER NOT NULL DEFAULT 0,
	char_count        INTEGER NOT NULL DEFAULT 0,
	x1                REAL,
	y1                REAL,
	x2                REAL,
	y2                REAL,
	font_name         TEXT NOT NULL DEFAULT '',
	font_size         REAL NOT NULL DEFAULT 0,
	bold              INTEGER NOT NULL DEFAULT 0,
	italic            INTEGER NOT NULL DEFAULT 0,
	color             TEXT NOT NULL DEFAULT '',
	has_digit         INTEGER NOT NULL DEFAULT 0,
	has_url           INTEGER NOT NULL DEFAULT 0,
	language          TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (document_id, section_id)
);
CREATE INDEX IF NOT EXISTS idx_text_annotations_page ON text_annotations(document_id, page_number);
`},
	{2, `
CREATE TABLE IF NOT EXISTS redaction_patterns (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	name     TEXT NOT NULL UNIQUE,
	regex    TEXT NOT NULL,
	category TEXT NOT NULL DEFAULT 'other',
	severity INTEGER NOT NULL DEFAULT 1,
	active   INTEGER NOT NULL DEFAULT 1
);

INSERT OR IGNORE INTO redaction_patterns (name, regex, category, severity, active) VALUES
	('email',         '[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}', 'pii',       2, 1),
	('phone',         '\+?[0-9][0-9()\s.-]{6,}[0-9]',                   'pii',       2, 1),
	('ssn',           '\b[0-9]{3}-[0-9]{2}-[0-9]{4}\b',                 'pii',       3, 1),
	('iban',          '\b[A-Z]{2}[0-9]{2}[A-Z0-9]{11,30}\b',            'financial', 3, 1),
	('credit_card',   '\b(?:[0-9][ -]?){13,16}\b',                      'financial', 3, 1),
	('date_of_birth', '\b[0-3]?[0-9][./-][0-1]?[0-9][./-][0-9]{2,4}\b', 'pii',       1, 1);

CREATE TABLE IF NOT EXISTS redaction_results (
	document_id  TEXT NOT NULL,
	section_id   TEXT NOT NULL,
	pattern_name TEXT NOT NULL,
	matched_at   TEXT NOT NULL,
	PRIMARY KEY (document_id, section_id, pattern_name)
);
`},
	{3, `
CREATE TABLE IF NOT EXISTS redaction_preferences (
	device_id TEXT NOT NULL,
	category  TEXT NOT NULL,
	enabled   INTEGER NOT NULL DEFAULT 1,
	PRIMARY KEY (device_id, category)
);
`},
}

// migrate applies every migration step above the recorded schema version, in
// order, each in its own transaction.
func migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS schema_version (
	version    INTEGER PRIMARY KEY,
	applied_at TEXT NOT NULL DEFAULT (datetime('now'))
)`); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("migration %d: begin: %w", m.version, err)
		}
		if _, err := tx.ExecContext(ctx, m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: %w", m.version, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO schema_version (version) VALUES (?)`, m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: record: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d: commit: %w", m.version, err)
		}
	}
	return nil
}
