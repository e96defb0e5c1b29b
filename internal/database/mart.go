// Package database holds the two thin data-access contracts the ETL layer is
// built on: the MartStore (the Postgres reporting mart every job writes into)
// and the SourceConnector (a tenant's SQL Server source database every job
// reads from). Both return rows as column-name keyed maps so jobs never deal
// with positional scanning.
package database

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

// Row is one result row keyed by column name.
type Row map[string]interface{}

// MartStore is the write side of the ETL pipeline. It is shared across all
// tenants and all job types.
type MartStore interface {
	// QueryRows runs a read query and returns all rows. No rows is an
	// empty slice, never nil.
	QueryRows(ctx context.Context, query string, args ...interface{}) ([]Row, error)
	// Exec runs a statement and returns the number of rows affected.
	Exec(ctx context.Context, query string, args ...interface{}) (int64, error)
	// QueryRowReturning runs a statement with a RETURNING clause and
	// returns the single returned row, or nil when nothing came back.
	QueryRowReturning(ctx context.Context, query string, args ...interface{}) (Row, error)
}

type martStore struct {
	db *sql.DB
}

func NewMartStore(db *sql.DB) MartStore {
	return &martStore{db: db}
}

func (s *martStore) QueryRows(ctx context.Context, query string, args ...interface{}) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "mart query")
	}
	defer rows.Close()
	return collectRows(rows)
}

func (s *martStore) Exec(ctx context.Context, query string, args ...interface{}) (int64, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, errors.Wrap(err, "mart exec")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "mart rows affected")
	}
	return affected, nil
}

func (s *martStore) QueryRowReturning(ctx context.Context, query string, args ...interface{}) (Row, error) {
	rows, err := s.QueryRows(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// collectRows drains a *sql.Rows into name-keyed maps. []byte values are
// converted to string so drivers that return raw bytes for text columns
// behave the same as those that don't.
func collectRows(rows *sql.Rows) ([]Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, errors.Wrap(err, "read columns")
	}

	out := make([]Row, 0)
	for rows.Next() {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, errors.Wrap(err, "scan row")
		}
		row := make(Row, len(columns))
		for i, name := range columns {
			if b, ok := values[i].([]byte); ok {
				row[name] = string(b)
				continue
			}
			row[name] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate rows")
	}
	return out, nil
}
