package store

import (
	"context"
	"database/sql"
	"errors"
)

var (
	ErrNoResult   = errors.New("no results found")
	ErrQuery      = errors.New("failed to execute query")
	ErrOutOfOrder = errors.New("snapshot is not newer than the latest stored snapshot")
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// Queries is safe for concurrent use as long as the underlying DBTX is.
type Queries struct {
	db DBTX
}

func dbErr(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return ErrNoResult
	}

	return errors.Join(err, ErrQuery)
}

func boolInt(value bool) int {
	if value {
		return 1
	}

	return 0
}
