package etl

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martforge/martforge-api/internal/database"
)

func TestLoaderCountsInsertsAndUpdates(t *testing.T) {
	store := &fakeMartStore{insertedVerdicts: []bool{true, false, true}}
	loader := NewLoader(store, "mart_daily_sales")

	record := database.Row{"org_id": 1, "sales_date": "2026-08-01", "total_revenue": 100.0}

	result, err := loader.Upsert(context.Background(), record, []string{"org_id", "sales_date"})
	require.NoError(t, err)
	assert.Equal(t, ResultInserted, result)

	result, err = loader.Upsert(context.Background(), record, []string{"org_id", "sales_date"})
	require.NoError(t, err)
	assert.Equal(t, ResultUpdated, result)

	result, err = loader.Upsert(context.Background(), record, []string{"org_id", "sales_date"})
	require.NoError(t, err)
	assert.Equal(t, ResultInserted, result)

	assert.Equal(t, 2, loader.Inserted())
	assert.Equal(t, 1, loader.Updated())
}

func TestLoaderStatementShape(t *testing.T) {
	store := &fakeMartStore{}
	loader := NewLoader(store, "mart_cash_flow")

	_, err := loader.Upsert(context.Background(), database.Row{
		"org_id": 1,
		"year":   2026,
		"month":  8,
	}, []string{"org_id", "year", "month"})
	require.NoError(t, err)

	require.Len(t, store.queries, 1)
	query := store.queries[0]
	assert.Contains(t, query, "INSERT INTO mart.mart_cash_flow")
	assert.Contains(t, query, "ON CONFLICT (org_id, year, month)")
	assert.Contains(t, query, "updated_at = NOW()")
	assert.Contains(t, query, "RETURNING (xmax = 0) AS inserted")
	// Key columns never appear in the update list.
	assert.NotContains(t, query, "org_id = EXCLUDED.org_id")
}

func TestLoaderRejectsBadInput(t *testing.T) {
	store := &fakeMartStore{}

	loader := NewLoader(store, "mart_daily_sales")
	_, err := loader.Upsert(context.Background(), database.Row{}, []string{"org_id"})
	assert.Error(t, err)

	_, err = loader.Upsert(context.Background(), database.Row{"org_id": 1}, nil)
	assert.Error(t, err)

	// Key column must exist in the record.
	_, err = loader.Upsert(context.Background(), database.Row{"org_id": 1}, []string{"sales_date"})
	assert.Error(t, err)

	// Hostile identifiers never reach the statement.
	_, err = loader.Upsert(context.Background(), database.Row{"org_id; DROP TABLE x": 1}, []string{"org_id; DROP TABLE x"})
	assert.Error(t, err)

	evil := NewLoader(store, "mart_daily_sales; --")
	_, err = evil.Upsert(context.Background(), database.Row{"org_id": 1}, []string{"org_id"})
	assert.Error(t, err)

	assert.Empty(t, store.queries)
}
