package db

import (
	"database/sql"
)

type PageCache struct {
	CarID     int64
	Body      string
	FetchedAt int64
	ExpiresAt int64
}

type Run struct {
	ID         string
	StartedAt  int64
	FinishedAt sql.NullInt64
	OutputMode string
	Pending    int64
	Succeeded  int64
	Skipped    int64
	Records    int64
	Status     string
}
