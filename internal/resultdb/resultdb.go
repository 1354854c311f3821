// Package resultdb persists verification sessions and their comparison
// records to a local sqlite database so past runs can be listed and
// re-rendered.
package resultdb

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/linkcheck/internal/session"
)

type DB struct {
	*sql.DB
}

// Open opens (creating if needed) the results database at path.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			session_id        TEXT PRIMARY KEY,
			port              TEXT,
			started_at        TIMESTAMP,
			finished_at       TIMESTAMP,
			packets_sent      BIGINT,
			packets_received  BIGINT
		);
		CREATE TABLE IF NOT EXISTS records (
			session_id        TEXT,
			seq               BIGINT,
			field             BIGINT,
			expected          BIGINT,
			received          BIGINT,
			error_pct         DOUBLE,
			pass              BOOLEAN,
			FOREIGN KEY (session_id) REFERENCES sessions(session_id)
		);
		CREATE INDEX IF NOT EXISTS idx_records_session ON records(session_id);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create results schema: %w", err)
	}

	return &DB{db}, nil
}

// SaveResult stores a session and all of its records in one transaction.
func (d *DB) SaveResult(res *session.Result, port string) error {
	tx, err := d.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO sessions (session_id, port, started_at, finished_at, packets_sent, packets_received)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		res.ID, port, res.StartedAt, res.FinishedAt, res.Sent, res.Received,
	)
	if err != nil {
		return fmt.Errorf("failed to insert session %s: %w", res.ID, err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO records (session_id, seq, field, expected, received, error_pct, pass)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, r := range res.Records {
		if _, err := stmt.Exec(res.ID, i, r.Field, r.Expected, r.Received, r.ErrorPct, r.Pass); err != nil {
			return fmt.Errorf("failed to insert record %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// SessionSummary is one row of ListSessions.
type SessionSummary struct {
	ID        string
	Port      string
	StartedAt time.Time
	Sent      int
	Received  int
	Passed    int
	Failed    int
}

// ListSessions returns stored sessions, most recent first.
func (d *DB) ListSessions() ([]SessionSummary, error) {
	rows, err := d.Query(`
		SELECT s.session_id, s.port, s.started_at, s.packets_sent, s.packets_received,
		       COALESCE(SUM(CASE WHEN r.pass THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN r.pass THEN 0 ELSE 1 END), 0)
		FROM sessions s
		LEFT JOIN records r ON r.session_id = s.session_id
		GROUP BY s.session_id
		ORDER BY s.started_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var s SessionSummary
		if err := rows.Scan(&s.ID, &s.Port, &s.StartedAt, &s.Sent, &s.Received, &s.Passed, &s.Failed); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Records returns the stored comparison records for a session in
// generation order.
func (d *DB) Records(sessionID string) ([]session.Record, error) {
	rows, err := d.Query(
		`SELECT field, expected, received, error_pct, pass
		 FROM records WHERE session_id = ? ORDER BY seq`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []session.Record
	for rows.Next() {
		var r session.Record
		if err := rows.Scan(&r.Field, &r.Expected, &r.Received, &r.ErrorPct, &r.Pass); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
