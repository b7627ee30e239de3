// Package history records one row per scrape run in sqlite.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"time"

	"carparams/internal/components/chrono"
	"carparams/internal/db"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mazen160/go-random"
)

// Stats are the counters of a finished run.
type Stats struct {
	Pending   int
	Succeeded int
	Skipped   int
	Records   int
}

type Store struct {
	qry  *db.Queries
	time chrono.TimeAPI
}

func NewStore(database *sql.DB, time chrono.TimeAPI) Store {
	return Store{qry: db.New(database), time: time}
}

// Start inserts a running run and returns its id.
func (s Store) Start(ctx context.Context, mode string, pending int) (string, error) {
	id, err := random.String(8)
	if err != nil {
		return "", fmt.Errorf("generate run id: %w", err)
	}
	err = s.qry.CreateRun(ctx, db.CreateRunParams{
		ID:         id,
		StartedAt:  s.time.Now().Unix(),
		OutputMode: mode,
		Pending:    int64(pending),
	})
	if err != nil {
		return "", fmt.Errorf("create run: %w", err)
	}
	return id, nil
}

// Finish stores the final counters and status of a run.
func (s Store) Finish(ctx context.Context, id, status string, stats Stats) error {
	err := s.qry.FinishRun(ctx, db.FinishRunParams{
		FinishedAt: sql.NullInt64{Int64: s.time.Now().Unix(), Valid: true},
		Succeeded:  int64(stats.Succeeded),
		Skipped:    int64(stats.Skipped),
		Records:    int64(stats.Records),
		Status:     status,
		ID:         id,
	})
	if err != nil {
		return fmt.Errorf("finish run %s: %w", id, err)
	}
	return nil
}

// List returns the latest `limit` runs, newest first.
func (s Store) List(ctx context.Context, limit int) ([]db.Run, error) {
	return s.qry.ListRuns(ctx, int64(limit))
}

func formatUnix(ts int64) string {
	return time.Unix(ts, 0).Local().Format(time.DateTime)
}

// Render prints runs as a table.
func Render(w io.Writer, runs []db.Run) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Run", "Started", "Duration", "Mode", "Status", "Pending", "Succeeded", "Skipped", "Records"})
	for _, run := range runs {
		duration := "-"
		if run.FinishedAt.Valid {
			duration = (time.Duration(run.FinishedAt.Int64-run.StartedAt) * time.Second).String()
		}
		t.AppendRow(table.Row{
			run.ID,
			formatUnix(run.StartedAt),
			duration,
			run.OutputMode,
			run.Status,
			run.Pending,
			run.Succeeded,
			run.Skipped,
			run.Records,
		})
	}
	t.Render()
}
