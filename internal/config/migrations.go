package config

import (
	"fmt"
	"strings"
)

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS connections (
			id TEXT PRIMARY KEY,
			name TEXT UNIQUE NOT NULL,
			db_type TEXT NOT NULL,
			host TEXT NOT NULL,
			port INTEGER NOT NULL,
			username TEXT NOT NULL DEFAULT '',
			database_name TEXT NOT NULL DEFAULT '',
			ssh_json TEXT NOT NULL DEFAULT '',
			ssl_json TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS compare_runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			source_id TEXT NOT NULL,
			target_id TEXT NOT NULL,
			source_tables INTEGER NOT NULL DEFAULT 0,
			target_tables INTEGER NOT NULL DEFAULT 0,
			item_count INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_compare_runs_created ON compare_runs(created_at)`,

		// v2: per-profile pool settings
		`ALTER TABLE connections ADD COLUMN max_open_conns INTEGER NOT NULL DEFAULT 5`,
		`ALTER TABLE connections ADD COLUMN max_idle_conns INTEGER NOT NULL DEFAULT 2`,
		`ALTER TABLE connections ADD COLUMN conn_max_lifetime_ms INTEGER NOT NULL DEFAULT 300000`,
		`ALTER TABLE connections ADD COLUMN conn_max_idle_time_ms INTEGER NOT NULL DEFAULT 60000`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			// SQLite ALTER TABLE ADD COLUMN fails if column already exists;
			// treat "duplicate column" as a no-op for idempotent migrations.
			if strings.Contains(err.Error(), "duplicate column") {
				continue
			}
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}
