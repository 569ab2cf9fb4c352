package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/iamacowMooMoo/spaops/libs/db"
)

// Store is the ledger store: durable relational storage for customers,
// employees, roles, services, rooms, transactions, items and payments.
// Mutations run inside a caller-owned pgx.Tx so a booking's conflict reads,
// writes and total adjustments commit atomically.
type Store struct {
	pool *db.Pool
}

func New(pool *db.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Begin(ctx context.Context) (pgx.Tx, error) {
	return s.pool.Begin(ctx)
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// IsConstraintViolation reports unique/exclusion constraint failures, the
// store-side backstop for races the application-level checks did not see.
func IsConstraintViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505" || pgErr.Code == "23P01"
}
