package storage

import (
	"context"
)

const (
	tableEvents   = "events"
	tableSessions = "sessions"
	tableLaps     = "laps"
	tableTeams    = "teams"
	tableDrivers  = "drivers"
	tableResults  = "results"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		year INTEGER NOT NULL,
		round INTEGER NOT NULL,
		location TEXT NOT NULL DEFAULT '',
		country TEXT NOT NULL DEFAULT '',
		latitude REAL,
		longitude REAL,
		UNIQUE (year, round)
	);`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id INTEGER PRIMARY KEY,
		event_id INTEGER NOT NULL REFERENCES events(id),
		type TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		start_time TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'scheduled',
		total_laps INTEGER NOT NULL DEFAULT 0
	);`,
	`CREATE TABLE IF NOT EXISTS laps (
		session_id INTEGER NOT NULL REFERENCES sessions(id),
		driver_id TEXT NOT NULL,
		lap_number INTEGER NOT NULL,
		lap_time INTEGER NOT NULL,
		sector1 INTEGER,
		sector2 INTEGER,
		sector3 INTEGER,
		compound TEXT,
		pit INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (session_id, driver_id, lap_number)
	);`,
	`CREATE TABLE IF NOT EXISTS teams (
		id INTEGER PRIMARY KEY,
		year INTEGER NOT NULL,
		name TEXT NOT NULL,
		color TEXT NOT NULL DEFAULT '',
		UNIQUE (year, name)
	);`,
	`CREATE TABLE IF NOT EXISTS drivers (
		year INTEGER NOT NULL,
		driver_id TEXT NOT NULL,
		number INTEGER NOT NULL DEFAULT 0,
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		country_code TEXT NOT NULL DEFAULT '',
		team_id INTEGER NOT NULL REFERENCES teams(id),
		PRIMARY KEY (year, driver_id)
	);`,
	`CREATE TABLE IF NOT EXISTS results (
		session_id INTEGER NOT NULL REFERENCES sessions(id),
		driver_id TEXT NOT NULL,
		position INTEGER,
		grid_position INTEGER,
		points REAL NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT '',
		race_time INTEGER,
		PRIMARY KEY (session_id, driver_id)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_events_year ON events(year, round);`,
	`CREATE INDEX IF NOT EXISTS idx_drivers_team ON drivers(team_id);`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_event ON sessions(event_id, start_time);`,
}

// Migrate creates the schema if it does not exist.
func (r *Repository) Migrate(ctx context.Context) error {
	return r.pool.WithConn(ctx, func(conn *Conn) error {
		for _, stmt := range schema {
			if _, err := r.executor.Exec(ctx, conn, stmt); err != nil {
				return err
			}
		}

		return nil
	})
}
