package postgres

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgtype"
)

// psql builds statements with PostgreSQL $n placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// typeMap decodes PostgreSQL arrays read through database/sql.
var typeMap = pgtype.NewMap()

// Option configures a Postgres store.
type Option func(*options)

type options struct {
	queryTimeout time.Duration
}

// WithQueryTimeout bounds every statement (and every transaction started by
// RunInTx) to d. Zero leaves the caller's deadline in charge.
func WithQueryTimeout(d time.Duration) Option {
	return func(o *options) {
		o.queryTimeout = d
	}
}

func newOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.queryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, o.queryTimeout)
}

// int64Array scans a BIGINT[] column into dst.
func int64Array(dst *[]int64) sql.Scanner {
	return typeMap.SQLScanner(dst)
}

// textArray scans a TEXT[] column into dst.
func textArray(dst *[]string) sql.Scanner {
	return typeMap.SQLScanner(dst)
}

// nonNil keeps NOT NULL array columns from receiving SQL NULL.
func nonNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}

// nullableTime converts an optional timestamp into a driver argument.
func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
