package order

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

const fallbackSchema = `
CREATE TABLE IF NOT EXISTS orders (
	id          TEXT PRIMARY KEY,
	payment_ref TEXT NOT NULL,
	record      BLOB NOT NULL,
	created_at  INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS orders_payment_ref ON orders (payment_ref);
`

// FallbackStore writes order records directly to the local data store when
// the primary order API is unavailable. It shares the session database
// file.
type FallbackStore struct {
	db *sql.DB
}

// NewFallbackStore prepares the orders table on the given database.
func NewFallbackStore(db *sql.DB) (*FallbackStore, error) {
	if _, err := db.Exec(fallbackSchema); err != nil {
		return nil, fmt.Errorf("initializing fallback order schema: %w", err)
	}
	return &FallbackStore{db: db}, nil
}

// Insert durably stores the record. The unique payment_ref index makes a
// duplicate write for the same payment a visible conflict instead of a
// second order.
func (s *FallbackStore) Insert(ctx context.Context, rec Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding fallback record: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO orders (id, payment_ref, record, created_at) VALUES (?, ?, ?, ?)`,
		rec.ID, rec.PaymentRef, payload, rec.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("writing fallback order: %w", err)
	}
	return nil
}

// GetByPaymentRef loads a stored record by its payment reference.
func (s *FallbackStore) GetByPaymentRef(ctx context.Context, paymentRef string) (Record, bool, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT record FROM orders WHERE payment_ref = ?`, paymentRef,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("reading fallback order: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return Record{}, false, fmt.Errorf("decoding fallback order: %w", err)
	}
	return rec, true, nil
}

// Count returns the number of fallback-written orders.
func (s *FallbackStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting fallback orders: %w", err)
	}
	return n, nil
}
