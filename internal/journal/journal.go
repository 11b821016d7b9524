// Package journal keeps a sqlite log of reply cycles that reached the
// dispatcher, so the owner can see what was sent on their behalf.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Outcome is the result of one reply cycle.
type Outcome string

const (
	OutcomeSent        Outcome = "sent"
	OutcomeFailed      Outcome = "failed"
	OutcomeRateLimited Outcome = "rate_limited"
)

type Entry struct {
	CycleID      string
	Sender       string
	Incoming     string
	Reply        string
	FirstMessage bool
	Backend      string
	Outcome      Outcome
	Error        string
	At           time.Time
}

const schema = `
CREATE TABLE IF NOT EXISTS replies (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	cycle_id      TEXT NOT NULL,
	sender        TEXT NOT NULL,
	incoming      TEXT NOT NULL,
	reply         TEXT NOT NULL,
	first_message INTEGER NOT NULL,
	backend       TEXT NOT NULL,
	outcome       TEXT NOT NULL,
	error         TEXT NOT NULL DEFAULT '',
	at_ms         INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS replies_at ON replies(at_ms);
`

type Journal struct {
	db *sql.DB
}

// Open creates or opens the journal database at path.
func Open(ctx context.Context, path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	// sqlite allows one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init journal: %w", err)
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error { return j.db.Close() }

func (j *Journal) Record(ctx context.Context, e Entry) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO replies (cycle_id, sender, incoming, reply, first_message, backend, outcome, error, at_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.CycleID, e.Sender, e.Incoming, e.Reply, e.FirstMessage, e.Backend, string(e.Outcome), e.Error, e.At.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record reply: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT cycle_id, sender, incoming, reply, first_message, backend, outcome, error, at_ms
		 FROM replies ORDER BY at_ms DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query replies: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e       Entry
			outcome string
			atMs    int64
		)
		if err := rows.Scan(&e.CycleID, &e.Sender, &e.Incoming, &e.Reply, &e.FirstMessage, &e.Backend, &outcome, &e.Error, &atMs); err != nil {
			return nil, fmt.Errorf("scan reply: %w", err)
		}
		e.Outcome = Outcome(outcome)
		e.At = time.UnixMilli(atMs)
		out = append(out, e)
	}
	return out, rows.Err()
}
