// Package output writes collected records as one csv file per energy type
// slug, optionally mirrored into an Excel workbook.
package output

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"carparams/internal/catalog"
	"carparams/internal/collector"
	"carparams/internal/components/telemetry"
	"carparams/internal/manifest"
)

const (
	report_output_write    = "output.write"
	report_output_existing = "output.existing"
)

// Mode decides what happens to output files that already exist.
type Mode string

const (
	// ModeArchive keeps the rows of existing files, new rows are appended and
	// every file is rewritten with one shared column schema.
	ModeArchive Mode = "archive"
	// ModeReplace overwrites every file touched by the run with only the
	// rows of the run.
	ModeReplace Mode = "replace"
)

func ParseMode(value string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(value))) {
	case "", ModeArchive:
		return ModeArchive, nil
	case ModeReplace:
		return ModeReplace, nil
	}
	return "", fmt.Errorf("unknown output mode %q (expected archive or replace)", value)
}

const filePrefix = "car_data_"

// FileName returns the name of the csv file of a slug.
func FileName(slug string) string {
	return filePrefix + slug + ".csv"
}

// SlugOf is the inverse of FileName, ok is false for foreign files.
func SlugOf(path string) (string, bool) {
	name := filepath.Base(path)
	if !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, ".csv") {
		return "", false
	}
	slug := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), ".csv")
	if slug == "" {
		return "", false
	}
	return slug, true
}

type Options struct {
	Dir  string
	Mode Mode
	// Workbook is the path of an optional xlsx export, empty disables it.
	Workbook string
}

// File describes one written csv file.
type File struct {
	Slug string
	// Labels are the raw energy type labels of this run written to the file.
	Labels []string
	Path   string
	// Existing is the number of rows carried over from a previous run.
	Existing int
	Added    int
}

func (f File) Rows() int {
	return f.Existing + f.Added
}

// Summary reports what a Write call produced.
type Summary struct {
	Columns  []string
	Files    []File
	Workbook string
}

// Added returns the number of new rows over every file.
func (s Summary) Added() int {
	total := 0
	for _, f := range s.Files {
		total += f.Added
	}
	return total
}

type Writer struct {
	opts Options
	tel  telemetry.API
}

func NewWriter(opts Options, tel telemetry.API) Writer {
	if opts.Mode == "" {
		opts.Mode = ModeArchive
	}
	return Writer{opts: opts, tel: tel}
}

// sheet is the content of one output file.
type sheet struct {
	file     File
	existing []map[string]string
	rows     [][]string
}

// Write writes the buckets of `c`. Buckets whose labels share a slug end up
// in the same file. Nothing is written when the collector is empty.
func (w Writer) Write(ctx context.Context, c *collector.Collector) (Summary, error) {
	buckets := c.Buckets()
	if len(buckets) == 0 {
		return Summary{}, nil
	}

	err := os.MkdirAll(w.opts.Dir, 0777)
	if err != nil {
		return Summary{}, fmt.Errorf("create output dir: %w", err)
	}

	sheets := map[string]*sheet{}
	var order []string
	sheetOf := func(slug string) *sheet {
		s, ok := sheets[slug]
		if !ok {
			s = &sheet{file: File{
				Slug: slug,
				Path: filepath.Join(w.opts.Dir, FileName(slug)),
			}}
			sheets[slug] = s
			order = append(order, slug)
		}
		return s
	}

	fields := map[string]struct{}{}
	if w.opts.Mode == ModeArchive {
		existing, err := w.readExisting()
		if err != nil {
			return Summary{}, err
		}
		for _, e := range existing {
			s := sheetOf(e.slug)
			s.existing = e.rows
			s.file.Existing = len(e.rows)
			for _, h := range e.header {
				fields[h] = struct{}{}
			}
		}
	}
	c.AddFields(mapKeys(fields)...)
	columns := c.Columns()

	for _, bucket := range buckets {
		s := sheetOf(bucket.Slug)
		s.file.Labels = append(s.file.Labels, bucket.Label)
		for _, v := range bucket.Vehicles {
			s.rows = append(s.rows, v.Row(columns))
		}
		s.file.Added += len(bucket.Vehicles)
	}

	summary := Summary{Columns: columns}
	for _, slug := range order {
		if err := ctx.Err(); err != nil {
			return Summary{}, err
		}
		s := sheets[slug]
		rows := make([][]string, 0, len(s.existing)+len(s.rows))
		for _, old := range s.existing {
			rows = append(rows, reorder(old, columns))
		}
		rows = append(rows, s.rows...)

		err := WriteCSV(s.file.Path, columns, rows)
		if err != nil {
			return Summary{}, fmt.Errorf("write %s: %w", s.file.Path, err)
		}
		w.tel.ReportDebug(report_output_write, s.file.Path, s.file.Existing, s.file.Added)
		summary.Files = append(summary.Files, s.file)
	}

	if w.opts.Workbook != "" {
		err := WriteWorkbook(w.opts.Workbook, summary)
		if err != nil {
			return Summary{}, fmt.Errorf("write workbook: %w", err)
		}
		summary.Workbook = w.opts.Workbook
	}

	return summary, nil
}

type existingFile struct {
	slug   string
	header []string
	rows   []map[string]string
}

func (w Writer) readExisting() ([]existingFile, error) {
	paths, err := manifest.OutputFiles(w.opts.Dir)
	if err != nil {
		return nil, err
	}

	var out []existingFile
	for _, path := range paths {
		slug, ok := SlugOf(path)
		if !ok {
			continue
		}
		table, err := manifest.ReadTable(path)
		if err != nil {
			return nil, fmt.Errorf("read existing %s: %w", path, err)
		}
		if len(table.Header) == 0 {
			w.tel.ReportWarning(report_output_existing, "empty output file", path)
			continue
		}

		header := make([]string, len(table.Header))
		for i, h := range table.Header {
			header[i] = strings.TrimSpace(h)
		}
		if !identityFirst(header) {
			w.tel.ReportWarning(report_output_existing, "output file does not start with the identity columns", path)
		}
		rows := make([]map[string]string, 0, len(table.Rows))
		for _, row := range table.Rows {
			values := make(map[string]string, len(header))
			for i, h := range header {
				values[h] = table.Cell(row, i)
			}
			rows = append(rows, values)
		}
		out = append(out, existingFile{slug: slug, header: header, rows: rows})
	}
	return out, nil
}

func reorder(values map[string]string, columns []string) []string {
	row := make([]string, len(columns))
	for i, column := range columns {
		row[i] = values[column]
	}
	return row
}

func mapKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// identityFirst reports whether the header starts with the identity columns.
func identityFirst(header []string) bool {
	if len(header) < len(catalog.IdentityLabels) {
		return false
	}
	return slices.Equal(header[:len(catalog.IdentityLabels)], catalog.IdentityLabels)
}
