package db

import (
	"database/sql"
)

// MakeTx creates a transaction, `discard` rolls it back and `commit` commits it.
type MakeTx = func() (tx *Queries, discard, commit func() error, err error)

func NewMakeTx(dbtx *sql.DB) MakeTx {
	return func() (tx *Queries, discard, commit func() error, err error) {
		sqltx, err := dbtx.Begin()
		if err != nil {
			return nil, nil, nil, err
		}
		return New(sqltx),
			sqltx.Rollback,
			sqltx.Commit,
			nil
	}
}
