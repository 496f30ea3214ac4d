package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Open initialises the SQLite database and applies the base schema.
func Open(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("apply pragma %s: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS shows (
            id TEXT PRIMARY KEY,
            title TEXT NOT NULL,
            description TEXT,
            created_at TIMESTAMP NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS templates (
            id TEXT PRIMARY KEY,
            show_id TEXT NOT NULL REFERENCES shows(id) ON DELETE CASCADE,
            name TEXT NOT NULL,
            is_active INTEGER NOT NULL DEFAULT 1,
            content_start_offset_s REAL NOT NULL DEFAULT 0,
            outro_start_offset_s REAL NOT NULL DEFAULT 0,
            ai_title_instructions TEXT,
            ai_description_instructions TEXT,
            ai_tag_instructions TEXT,
            ai_auto_title INTEGER NOT NULL DEFAULT 0,
            ai_auto_description INTEGER NOT NULL DEFAULT 0,
            ai_auto_tags INTEGER NOT NULL DEFAULT 0,
            default_elevenlabs_voice_id TEXT,
            default_intern_voice_id TEXT,
            created_at TIMESTAMP NOT NULL,
            updated_at TIMESTAMP NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS idx_templates_show ON templates(show_id);`,
		`CREATE TABLE IF NOT EXISTS template_segments (
            id TEXT PRIMARY KEY,
            template_id TEXT NOT NULL REFERENCES templates(id) ON DELETE CASCADE,
            position INTEGER NOT NULL,
            segment_type TEXT NOT NULL,
            source_type TEXT NOT NULL,
            filename TEXT,
            text_prompt TEXT,
            voice_id TEXT,
            speaking_rate REAL
        );`,
		`CREATE INDEX IF NOT EXISTS idx_segments_template ON template_segments(template_id, position);`,
		`CREATE TABLE IF NOT EXISTS template_music_rules (
            id TEXT PRIMARY KEY,
            template_id TEXT NOT NULL REFERENCES templates(id) ON DELETE CASCADE,
            apply_to TEXT NOT NULL,
            music_filename TEXT,
            music_asset_id TEXT,
            start_offset_s REAL NOT NULL DEFAULT 0,
            end_offset_s REAL NOT NULL DEFAULT 0,
            fade_in_s REAL NOT NULL DEFAULT 0,
            fade_out_s REAL NOT NULL DEFAULT 0,
            volume_db REAL NOT NULL DEFAULT 0
        );`,
		`CREATE INDEX IF NOT EXISTS idx_music_rules_template ON template_music_rules(template_id);`,
		`CREATE TABLE IF NOT EXISTS media_assets (
            id TEXT PRIMARY KEY,
            filename TEXT NOT NULL UNIQUE,
            friendly_name TEXT,
            category TEXT NOT NULL,
            content_type TEXT,
            file_path TEXT,
            duration_s REAL,
            size_bytes INTEGER NOT NULL DEFAULT 0,
            hash TEXT,
            added_at TIMESTAMP NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS idx_media_assets_category ON media_assets(category);`,
		`CREATE TABLE IF NOT EXISTS episodes (
            id TEXT PRIMARY KEY,
            show_id TEXT NOT NULL REFERENCES shows(id) ON DELETE CASCADE,
            template_id TEXT NOT NULL REFERENCES templates(id),
            title TEXT NOT NULL,
            state TEXT NOT NULL,
            content_filename TEXT,
            created_at TIMESTAMP NOT NULL,
            updated_at TIMESTAMP NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS idx_episodes_show ON episodes(show_id);`,
		`CREATE INDEX IF NOT EXISTS idx_episodes_template ON episodes(template_id);`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}

	return nil
}
