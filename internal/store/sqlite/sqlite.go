// Package sqlite implements the harvester's stores on SQLite.
package sqlite

import (
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Store wraps a SQLite database holding activities, tokens, interactions,
// social links, cohorts and KPIs.
type Store struct{ db *sqlx.DB }

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

func Open(path string) (*Store, error) {
	d, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection serializes writers and keeps ":memory:" databases shared.
	d.SetMaxOpenConns(1)
	if _, err := d.Exec(`PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL; PRAGMA foreign_keys=ON;`); err != nil {
		_ = d.Close()
		return nil, err
	}
	s := &Store{db: d}
	if err := s.migrate(); err != nil {
		_ = d.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS activities (
	  id INTEGER PRIMARY KEY AUTOINCREMENT,
	  course_id INTEGER NOT NULL DEFAULT 0,
	  name TEXT NOT NULL,
	  mode TEXT NOT NULL DEFAULT 'user',
	  search TEXT NOT NULL DEFAULT '',
	  start_ts INTEGER NOT NULL DEFAULT 0,
	  end_ts INTEGER NOT NULL DEFAULT 0,
	  last_harvest INTEGER
	);
	CREATE TABLE IF NOT EXISTS tokens (
	  id INTEGER PRIMARY KEY AUTOINCREMENT,
	  activity_id INTEGER NOT NULL,
	  user_id INTEGER NOT NULL DEFAULT 0,
	  token TEXT NOT NULL,
	  username TEXT NOT NULL DEFAULT '',
	  error_status TEXT,
	  last_used INTEGER,
	  UNIQUE(activity_id, user_id)
	);
	CREATE TABLE IF NOT EXISTS interactions (
	  activity_id INTEGER NOT NULL,
	  type TEXT NOT NULL,
	  uid TEXT NOT NULL,
	  source TEXT NOT NULL,
	  native_type TEXT NOT NULL DEFAULT '',
	  native_from TEXT NOT NULL DEFAULT '',
	  native_from_name TEXT NOT NULL DEFAULT '',
	  from_id INTEGER,
	  native_to TEXT NOT NULL DEFAULT '',
	  native_to_name TEXT NOT NULL DEFAULT '',
	  to_id INTEGER,
	  parent_uid TEXT NOT NULL DEFAULT '',
	  ts INTEGER,
	  description TEXT NOT NULL DEFAULT '',
	  raw_data TEXT,
	  PRIMARY KEY(activity_id, type, uid)
	);
	CREATE INDEX IF NOT EXISTS idx_interactions_ts ON interactions(activity_id, ts);
	CREATE INDEX IF NOT EXISTS idx_interactions_uid ON interactions(activity_id, uid);
	CREATE TABLE IF NOT EXISTS social_links (
	  activity_id INTEGER NOT NULL,
	  user_id INTEGER NOT NULL,
	  social_id TEXT NOT NULL,
	  social_name TEXT NOT NULL DEFAULT '',
	  PRIMARY KEY(activity_id, user_id),
	  UNIQUE(activity_id, social_id)
	);
	CREATE TABLE IF NOT EXISTS cohort (
	  activity_id INTEGER NOT NULL,
	  user_id INTEGER NOT NULL,
	  PRIMARY KEY(activity_id, user_id)
	);
	CREATE TABLE IF NOT EXISTS kpis (
	  activity_id INTEGER NOT NULL,
	  user_id INTEGER NOT NULL,
	  name TEXT NOT NULL,
	  value INTEGER NOT NULL,
	  updated_at INTEGER NOT NULL,
	  PRIMARY KEY(activity_id, user_id, name)
	);
	`)
	return err
}

// Bounds used for open ends of time windows.
const (
	minUnix int64 = -1 << 62
	maxUnix int64 = 1 << 62
)

// toUnix maps the zero time to 0.
func toUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func fromUnix(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.Unix(v, 0).UTC()
}

func nullUnix(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}

func timePtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0).UTC()
	return &t
}

func nullInt(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func intPtr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
