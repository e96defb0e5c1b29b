package etl

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/martforge/martforge-api/internal/database"
)

type UpsertResult string

const (
	ResultInserted UpsertResult = "inserted"
	ResultUpdated  UpsertResult = "updated"
)

// Loader is the idempotency primitive of the framework: every record is
// written with insert-or-update semantics keyed by the target table's
// natural key, so re-running a job for the same period converges on the
// same mart rows instead of accumulating duplicates. One Loader is built
// per run and tracks that run's inserted/updated counters.
type Loader struct {
	mart     database.MartStore
	table    string
	inserted int
	updated  int
}

func NewLoader(mart database.MartStore, table string) *Loader {
	return &Loader{mart: mart, table: table}
}

func (l *Loader) Inserted() int { return l.inserted }
func (l *Loader) Updated() int  { return l.updated }

// Upsert writes one record, resolving conflicts on uniqueCols by updating
// every other column and touching updated_at. uniqueCols must match an
// actual uniqueness constraint on the target table; that is a configuration
// contract, not something the framework verifies.
//
// Whether the row was inserted or updated is read back from the statement
// itself: a freshly inserted row's xmax is zero, a conflict-updated row's
// is not.
func (l *Loader) Upsert(ctx context.Context, record database.Row, uniqueCols []string) (UpsertResult, error) {
	if len(record) == 0 {
		return "", errors.New("upsert: empty record")
	}
	if len(uniqueCols) == 0 {
		return "", errors.New("upsert: no unique columns")
	}
	if !database.ValidIdent(l.table) {
		return "", fmt.Errorf("upsert: invalid table name %q", l.table)
	}

	columns := make([]string, 0, len(record))
	for col := range record {
		if !database.ValidIdent(col) {
			return "", fmt.Errorf("upsert: invalid column name %q", col)
		}
		columns = append(columns, col)
	}
	sort.Strings(columns)

	keySet := make(map[string]struct{}, len(uniqueCols))
	for _, col := range uniqueCols {
		if !database.ValidIdent(col) {
			return "", fmt.Errorf("upsert: invalid key column %q", col)
		}
		if _, ok := record[col]; !ok {
			return "", fmt.Errorf("upsert: key column %q missing from record", col)
		}
		keySet[col] = struct{}{}
	}

	placeholders := make([]string, len(columns))
	args := make([]interface{}, len(columns))
	for i, col := range columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = record[col]
	}

	assignments := make([]string, 0, len(columns))
	for _, col := range columns {
		if _, isKey := keySet[col]; isKey {
			continue
		}
		assignments = append(assignments, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
	}
	assignments = append(assignments, "updated_at = NOW()")

	query := fmt.Sprintf(`
		INSERT INTO mart.%s (%s)
		VALUES (%s)
		ON CONFLICT (%s) DO UPDATE SET %s
		RETURNING (xmax = 0) AS inserted;`,
		l.table,
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(uniqueCols, ", "),
		strings.Join(assignments, ", "),
	)

	row, err := l.mart.QueryRowReturning(ctx, query, args...)
	if err != nil {
		return "", errors.Wrapf(err, "upsert into %s", l.table)
	}
	if row == nil {
		return "", fmt.Errorf("upsert into %s returned no row", l.table)
	}

	if wasInsert, _ := row["inserted"].(bool); wasInsert {
		l.inserted++
		return ResultInserted, nil
	}
	l.updated++
	return ResultUpdated, nil
}
