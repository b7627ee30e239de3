// Package manifest resolves which car ids a run still has to fetch: the ids
// of the input manifest minus the ids already present in the output files.
package manifest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"carparams/internal/catalog"
)

// ManifestColumn is the header of the id column of the input manifest.
const ManifestColumn = "id"

var utf8BOM = []byte("\xef\xbb\xbf")

// Table is a CSV file read into memory, the header is kept separate.
type Table struct {
	Header []string
	Rows   [][]string
}

// Column returns the index of the header equal to `name`, -1 when there is
// none. Headers are compared exactly, "ID" and "id" are different columns.
func (t Table) Column(name string) int {
	return slices.Index(t.Header, name)
}

// Cell returns the value of column `col` in `row`, rows shorter than the
// header yield an empty value.
func (t Table) Cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return row[col]
}

// ReadTable reads a whole CSV file, a leading UTF-8 BOM is ignored. An empty
// file yields an empty table.
func ReadTable(path string) (Table, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Table{}, err
	}
	return ParseTable(content)
}

func ParseTable(content []byte) (Table, error) {
	content = bytes.TrimPrefix(content, utf8BOM)

	reader := csv.NewReader(bytes.NewReader(content))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return Table{}, nil
	}
	if err != nil {
		return Table{}, err
	}
	rows, err := reader.ReadAll()
	if err != nil {
		return Table{}, err
	}
	return Table{Header: header, Rows: rows}, nil
}

// parseID accepts an optionally padded run of ascii digits, signs are
// rejected.
func parseID(value string) (int, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	id, err := strconv.Atoi(value)
	if err != nil {
		return 0, false
	}
	return id, true
}

// ReadManifest returns the ids of the manifest in file order, duplicates
// included. Rows whose id is missing or not an integer are skipped, a
// manifest without an id column yields no ids.
func ReadManifest(path string) ([]int, error) {
	table, err := ReadTable(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	col := table.Column(ManifestColumn)
	if col < 0 {
		slog.Warn("manifest has no id column", "path", path, "header", table.Header)
		return nil, nil
	}

	var ids []int
	for _, row := range table.Rows {
		id, ok := parseID(table.Cell(row, col))
		if !ok {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// OutputFiles lists the *.csv files directly inside `dir`, sorted. A missing
// directory has no files.
func OutputFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".csv") {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	slices.Sort(files)
	return files, nil
}

// DoneIDs returns the set of ids found in the ID column of every csv file in
// `dir`. Files without an ID column contribute nothing, a missing directory
// gives an empty set.
func DoneIDs(dir string) (map[int]struct{}, error) {
	files, err := OutputFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("list output files: %w", err)
	}

	done := map[int]struct{}{}
	for _, path := range files {
		table, err := ReadTable(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		col := table.Column(catalog.LabelID)
		if col < 0 {
			slog.Debug("output file has no ID column", "path", path)
			continue
		}
		for _, row := range table.Rows {
			id, ok := parseID(table.Cell(row, col))
			if ok {
				done[id] = struct{}{}
			}
		}
	}
	return done, nil
}

// PendingIDs returns the manifest ids that are not in the output directory
// yet, deduplicated and in ascending order.
func PendingIDs(manifestPath, outputDir string) ([]int, error) {
	ids, err := ReadManifest(manifestPath)
	if err != nil {
		return nil, err
	}
	done, err := DoneIDs(outputDir)
	if err != nil {
		return nil, err
	}
	return Subtract(ids, done), nil
}

// Subtract returns sorted(unique(ids) - done).
func Subtract(ids []int, done map[int]struct{}) []int {
	pending := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, ok := done[id]; ok {
			continue
		}
		pending = append(pending, id)
	}
	slices.Sort(pending)
	return slices.Compact(pending)
}
