package db

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func TestPageCacheQueries(t *testing.T) {
	ctx := context.Background()
	qry := New(openTestDB(t))

	_, err := qry.GetCachedPage(ctx, 1)
	require.ErrorIs(t, err, sql.ErrNoRows)

	require.NoError(t, qry.PutCachedPage(ctx, PutCachedPageParams{CarID: 1, Body: "a", FetchedAt: 10, ExpiresAt: 20}))
	require.NoError(t, qry.PutCachedPage(ctx, PutCachedPageParams{CarID: 1, Body: "b", FetchedAt: 15, ExpiresAt: 25}))
	require.NoError(t, qry.PutCachedPage(ctx, PutCachedPageParams{CarID: 2, Body: "c", FetchedAt: 10, ExpiresAt: 12}))

	page, err := qry.GetCachedPage(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, PageCache{CarID: 1, Body: "b", FetchedAt: 15, ExpiresAt: 25}, page)

	deleted, err := qry.DeleteExpiredPages(ctx, 12)
	require.NoError(t, err)
	require.Equal(t, int64(1), deleted)

	require.NoError(t, qry.DeleteCachedPage(ctx, 1))
	_, err = qry.GetCachedPage(ctx, 1)
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestRunQueries(t *testing.T) {
	ctx := context.Background()
	qry := New(openTestDB(t))

	require.NoError(t, qry.CreateRun(ctx, CreateRunParams{ID: "first", StartedAt: 100, OutputMode: "archive", Pending: 3}))
	require.NoError(t, qry.CreateRun(ctx, CreateRunParams{ID: "second", StartedAt: 200, OutputMode: "replace", Pending: 1}))
	require.NoError(t, qry.FinishRun(ctx, FinishRunParams{
		FinishedAt: sql.NullInt64{Int64: 150, Valid: true},
		Succeeded:  2,
		Skipped:    1,
		Records:    7,
		Status:     RunFinished,
		ID:         "first",
	}))

	runs, err := qry.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	require.Equal(t, "second", runs[0].ID)
	require.Equal(t, RunRunning, runs[0].Status)
	require.False(t, runs[0].FinishedAt.Valid)
	require.Equal(t, Run{
		ID:         "first",
		StartedAt:  100,
		FinishedAt: sql.NullInt64{Int64: 150, Valid: true},
		OutputMode: "archive",
		Pending:    3,
		Succeeded:  2,
		Skipped:    1,
		Records:    7,
		Status:     RunFinished,
	}, runs[1])

	runs, err = qry.ListRuns(ctx, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
}

func TestMakeTx(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	makeTx := NewMakeTx(database)

	tx, discard, _, err := makeTx()
	require.NoError(t, err)
	require.NoError(t, tx.PutCachedPage(ctx, PutCachedPageParams{CarID: 5, Body: "x", ExpiresAt: 1}))
	require.NoError(t, discard())

	_, err = New(database).GetCachedPage(ctx, 5)
	require.ErrorIs(t, err, sql.ErrNoRows)

	tx, _, commit, err := makeTx()
	require.NoError(t, err)
	require.NoError(t, tx.PutCachedPage(ctx, PutCachedPageParams{CarID: 5, Body: "x", ExpiresAt: 1}))
	require.NoError(t, commit())

	_, err = New(database).GetCachedPage(ctx, 5)
	require.NoError(t, err)
}

func TestOpenDBOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "carparams.db")
	database, err := OpenDB(path)
	require.NoError(t, err)
	require.NoError(t, database.Close())

	// reopening applies the schema again without error
	database, err = OpenDB(path)
	require.NoError(t, err)
	require.NoError(t, database.Close())
}
