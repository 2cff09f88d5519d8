package db

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrConflict is surfaced when a write loses a concurrency race (unique
// constraint, row lock, serialization) after the internal retry.
var ErrConflict = errors.New("storage conflict")

// ErrNotFound is the storage-level absence error repositories return instead
// of leaking pgx.ErrNoRows to callers.
var ErrNotFound = errors.New("not found")

// IsNoRows reports whether err is the pgx no-rows sentinel.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// IsUniqueViolation reports whether err is a Postgres unique-constraint
// violation (SQLSTATE 23505).
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// IsLockConflict reports whether err is a serialization failure, deadlock, or
// lock-not-available error. These are transient and safe to retry once.
func IsLockConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "40001", "40P01", "55P03":
		return true
	}
	return false
}
