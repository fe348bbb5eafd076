package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// PoolConfig sizes the connection pool.
type PoolConfig struct {
	MaxOpenConns int
	MaxIdleConns int
}

// InitSQLite initializes the local SQLite database and creates the schemas for
// battles, hacks, teams and the event log.
func InitSQLite(dbPath string, pool PoolConfig) (*sql.DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := "file:" + dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	if err := createSchemas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schemas: %w", err)
	}

	return db, nil
}

func createSchemas(db *sql.DB) error {
	schemas := []string{
		`CREATE TABLE IF NOT EXISTS teams (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			team_name TEXT NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS team_members (
			team_id INTEGER NOT NULL,
			position INTEGER NOT NULL,
			pokemon_id INTEGER NOT NULL,
			PRIMARY KEY (team_id, position),
			FOREIGN KEY (team_id) REFERENCES teams(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS battles (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			attacker_id INTEGER NOT NULL,
			defender_id INTEGER NOT NULL,
			attacker_team_id INTEGER NOT NULL,
			defender_team_id INTEGER NOT NULL,
			winner_id INTEGER,
			battle_log TEXT NOT NULL,
			is_ghost_battle BOOLEAN NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS challenges (
			id INTEGER PRIMARY KEY,
			code TEXT NOT NULL,
			category TEXT NOT NULL,
			difficulty TEXT NOT NULL,
			solution TEXT NOT NULL,
			hint TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE TABLE IF NOT EXISTS battle_hacks (
			id TEXT PRIMARY KEY,
			battle_id TEXT NOT NULL,
			hack_id INTEGER NOT NULL,
			user_id INTEGER NOT NULL,
			is_solved BOOLEAN NOT NULL DEFAULT 0,
			user_answer TEXT,
			hack_probability REAL NOT NULL,
			attempted_at DATETIME,
			solved_at DATETIME,
			created_at DATETIME NOT NULL,
			FOREIGN KEY (hack_id) REFERENCES challenges(id)
		);`,
		`CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			battle_id TEXT NOT NULL,
			timestamp DATETIME NOT NULL,
			event_type TEXT NOT NULL,
			actor_id INTEGER NOT NULL,
			turn INTEGER NOT NULL,
			payload TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_teams_user_active ON teams(user_id, is_active);`,
		`CREATE INDEX IF NOT EXISTS idx_battles_attacker ON battles(attacker_id);`,
		`CREATE INDEX IF NOT EXISTS idx_battles_defender ON battles(defender_id);`,
		`CREATE INDEX IF NOT EXISTS idx_battle_hacks_user ON battle_hacks(user_id);`,
		`CREATE INDEX IF NOT EXISTS idx_events_battle_id ON events(battle_id);`,
	}

	for _, query := range schemas {
		if _, err := db.Exec(query); err != nil {
			return err
		}
	}

	return nil
}
