package db

import (
	"context"
	"database/sql"
)

const getCachedPage = `-- name: GetCachedPage :one
select car_id, body, fetched_at, expires_at from page_cache where car_id = ?
`

func (q *Queries) GetCachedPage(ctx context.Context, carID int64) (PageCache, error) {
	row := q.db.QueryRowContext(ctx, getCachedPage, carID)
	var i PageCache
	err := row.Scan(
		&i.CarID,
		&i.Body,
		&i.FetchedAt,
		&i.ExpiresAt,
	)
	return i, err
}

const putCachedPage = `-- name: PutCachedPage :exec
insert into page_cache (car_id, body, fetched_at, expires_at)
values (?, ?, ?, ?)
on conflict (car_id) do update set
    body = excluded.body,
    fetched_at = excluded.fetched_at,
    expires_at = excluded.expires_at
`

type PutCachedPageParams struct {
	CarID     int64
	Body      string
	FetchedAt int64
	ExpiresAt int64
}

func (q *Queries) PutCachedPage(ctx context.Context, arg PutCachedPageParams) error {
	_, err := q.db.ExecContext(ctx, putCachedPage,
		arg.CarID,
		arg.Body,
		arg.FetchedAt,
		arg.ExpiresAt,
	)
	return err
}

const deleteCachedPage = `-- name: DeleteCachedPage :exec
delete from page_cache where car_id = ?
`

func (q *Queries) DeleteCachedPage(ctx context.Context, carID int64) error {
	_, err := q.db.ExecContext(ctx, deleteCachedPage, carID)
	return err
}

const deleteExpiredPages = `-- name: DeleteExpiredPages :execrows
delete from page_cache where expires_at <= ?
`

func (q *Queries) DeleteExpiredPages(ctx context.Context, now int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteExpiredPages, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const createRun = `-- name: CreateRun :exec
insert into run (id, started_at, output_mode, pending)
values (?, ?, ?, ?)
`

type CreateRunParams struct {
	ID         string
	StartedAt  int64
	OutputMode string
	Pending    int64
}

func (q *Queries) CreateRun(ctx context.Context, arg CreateRunParams) error {
	_, err := q.db.ExecContext(ctx, createRun,
		arg.ID,
		arg.StartedAt,
		arg.OutputMode,
		arg.Pending,
	)
	return err
}

const finishRun = `-- name: FinishRun :exec
update run set
    finished_at = ?,
    succeeded = ?,
    skipped = ?,
    records = ?,
    status = ?
where id = ?
`

type FinishRunParams struct {
	FinishedAt sql.NullInt64
	Succeeded  int64
	Skipped    int64
	Records    int64
	Status     string
	ID         string
}

func (q *Queries) FinishRun(ctx context.Context, arg FinishRunParams) error {
	_, err := q.db.ExecContext(ctx, finishRun,
		arg.FinishedAt,
		arg.Succeeded,
		arg.Skipped,
		arg.Records,
		arg.Status,
		arg.ID,
	)
	return err
}

const listRuns = `-- name: ListRuns :many
select id, started_at, finished_at, output_mode, pending, succeeded, skipped, records, status from run
order by started_at desc, id
limit ?
`

func (q *Queries) ListRuns(ctx context.Context, limit int64) ([]Run, error) {
	rows, err := q.db.QueryContext(ctx, listRuns, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Run
	for rows.Next() {
		var i Run
		if err := rows.Scan(
			&i.ID,
			&i.StartedAt,
			&i.FinishedAt,
			&i.OutputMode,
			&i.Pending,
			&i.Succeeded,
			&i.Skipped,
			&i.Records,
			&i.Status,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
