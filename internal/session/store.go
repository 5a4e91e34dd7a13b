// Package session is the persistence bridge across the external payment
// redirect. The entire in-progress draft, image bytes included, is written
// to a single well-known slot in a local SQLite database immediately before
// control leaves for the payment processor, and read back exactly once on
// return. The slot is deleted only after a confirmed commit or an explicit
// abandonment, so a crash mid-commit leaves the draft recoverable.
package session

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/snapcase/snapcase/internal/wizard"

	_ "modernc.org/sqlite"
)

// slotKey is the single well-known session slot.
const slotKey = "pending_order"

var (
	// ErrNoSession means the slot is empty: no pending order.
	ErrNoSession = errors.New("no pending session")

	// ErrExpired means the slot holds a session older than the configured
	// max age. Stale sessions are rejected, not silently resumed.
	ErrExpired = errors.New("pending session has expired")

	// ErrInconsistent means the slot holds a session that cannot be fully
	// materialized (e.g. image data missing). Automatic resumption stops.
	ErrInconsistent = errors.New("pending session is inconsistent")
)

const schema = `
CREATE TABLE IF NOT EXISTS checkout_sessions (
	slot       TEXT PRIMARY KEY,
	payload    BLOB NOT NULL,
	created_at INTEGER NOT NULL
);
`

// Store is the durable session store. Single writer, single reader at a
// time; the redirect protocol is read, process, delete on success.
type Store struct {
	db     *sql.DB
	maxAge time.Duration
	now    func() time.Time
}

// Open opens (creating if needed) the session database at path.
func Open(path string, maxAge time.Duration) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening session db: %w", err)
	}
	// SQLite handles one writer at a time.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing session schema: %w", err)
	}
	return &Store{db: db, maxAge: maxAge, now: time.Now}, nil
}

// DB exposes the underlying handle so the fallback order store can share
// the same database file.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Snapshot writes the draft to the slot, replacing any previous snapshot.
// The write is synchronous: when Snapshot returns nil the draft is durable
// and the caller may hand control to the payment processor. A write failure
// must block the redirect, since a lost snapshot cannot be recovered.
func (s *Store) Snapshot(d wizard.Draft) error {
	now := s.now()
	payload, err := encodeDraft(d, now)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO checkout_sessions (slot, payload, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(slot) DO UPDATE SET payload = excluded.payload, created_at = excluded.created_at`,
		slotKey, payload, now.Unix(),
	)
	if err != nil {
		return fmt.Errorf("persisting session: %w", err)
	}
	return nil
}

// Restore reads the slot and materializes the pending draft. The slot is
// not deleted here; deletion happens only via Delete after the caller
// confirms a commit or an abandonment.
func (s *Store) Restore() (wizard.Draft, time.Time, error) {
	var payload []byte
	var createdAt int64
	err := s.db.QueryRow(
		`SELECT payload, created_at FROM checkout_sessions WHERE slot = ?`, slotKey,
	).Scan(&payload, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return wizard.Draft{}, time.Time{}, ErrNoSession
	}
	if err != nil {
		return wizard.Draft{}, time.Time{}, fmt.Errorf("reading session: %w", err)
	}

	created := time.Unix(createdAt, 0)
	if s.maxAge > 0 && s.now().Sub(created) > s.maxAge {
		return wizard.Draft{}, created, ErrExpired
	}

	return decodeDraftWithTime(payload, created)
}

// Present reports whether the slot currently holds a session, without
// reading the payload. Commit gating checks this cheaply.
func (s *Store) Present() (bool, error) {
	var one int
	err := s.db.QueryRow(
		`SELECT 1 FROM checkout_sessions WHERE slot = ?`, slotKey,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking session: %w", err)
	}
	return true, nil
}

// Delete clears the slot. Returns true if a session was present.
func (s *Store) Delete() (bool, error) {
	res, err := s.db.Exec(`DELETE FROM checkout_sessions WHERE slot = ?`, slotKey)
	if err != nil {
		return false, fmt.Errorf("deleting session: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func decodeDraftWithTime(payload []byte, created time.Time) (wizard.Draft, time.Time, error) {
	d, ts, err := decodeDraft(payload)
	if err != nil {
		return wizard.Draft{}, created, err
	}
	if ts.IsZero() {
		ts = created
	}
	return d, ts, nil
}
