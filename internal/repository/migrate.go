package repository

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned by updates that matched no row. Lookups return
// nil, nil instead.
var ErrNotFound = errors.New("not found")

//go:embed schema.sql
var schema string

// Migrate creates missing tables and indexes. It is safe to run on every
// start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
