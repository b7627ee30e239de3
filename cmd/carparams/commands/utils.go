package commands

import (
	"database/sql"
	"fmt"
	"os"

	"carparams/internal/db"

	"github.com/jedib0t/go-pretty/v6/table"
)

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}

// openStateDB opens the sqlite database shared by the page cache and the
// run history, nil when none is configured.
func openStateDB() (*sql.DB, error) {
	if cfg.Cache.File == "" {
		return nil, nil
	}
	database, err := db.OpenDB(cfg.Cache.File)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Cache.File, err)
	}
	return database, nil
}
