package output

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"carparams/internal/catalog"
	"carparams/internal/collector"
	"carparams/internal/components/telemetry"
	"carparams/internal/manifest"
	"carparams/internal/record"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func vehicle(id int, name, energy string, attrs ...string) record.Vehicle {
	v := record.New()
	v.SourceID = id
	v.ModelName = name
	v.EnergyType = energy
	for i := 0; i+1 < len(attrs); i += 2 {
		v.Set(attrs[i], attrs[i+1])
	}
	return v
}

func readTable(t *testing.T, path string) manifest.Table {
	t.Helper()
	table, err := manifest.ReadTable(path)
	require.NoError(t, err)
	return table
}

func TestWriteCSVHasBOM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, WriteCSV(path, []string{"ID", "型号"}, [][]string{{"1", "a,b"}}))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(content, utf8BOM))
	require.Equal(t, "\xef\xbb\xbfID,型号\n1,\"a,b\"\n", string(content))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestWriteGroupsBySlug(t *testing.T) {
	dir := t.TempDir()
	c := collector.New()
	c.Add(
		vehicle(1, "a", catalog.Electric, "续航", "500"),
		vehicle(2, "b", catalog.Gasoline, "排量", "2.0"),
		vehicle(3, "c", ""),
		vehicle(4, "d", "氢燃料"),
	)

	summary, err := NewWriter(Options{Dir: dir, Mode: ModeReplace}, &telemetry.Recorder{}).Write(context.Background(), c)
	require.NoError(t, err)

	expectedColumns := []string{"ID", "型号", "价格", "能源类型", "排量", "续航"}
	require.Equal(t, expectedColumns, summary.Columns)
	require.Len(t, summary.Files, 3)
	require.Equal(t, 4, summary.Added())

	electric := readTable(t, filepath.Join(dir, "car_data_electric.csv"))
	require.Equal(t, expectedColumns, electric.Header)
	require.Equal(t, [][]string{{"1", "a", "N/A", "纯电", "", "500"}}, electric.Rows)

	// empty and unrecognized energy types share the unknown file
	unknown := readTable(t, filepath.Join(dir, "car_data_unknown.csv"))
	expected := [][]string{
		{"3", "c", "N/A", "", "", ""},
		{"4", "d", "N/A", "氢燃料", "", ""},
	}
	if diff := cmp.Diff(expected, unknown.Rows); diff != "" {
		t.Fatalf("unknown rows mismatch (-want +got):\n%s", diff)
	}

	var unknownFile File
	for _, f := range summary.Files {
		if f.Slug == "unknown" {
			unknownFile = f
		}
	}
	require.Equal(t, []string{catalog.UnknownEnergy, "氢燃料"}, unknownFile.Labels)
	require.Equal(t, 2, unknownFile.Added)
}

func TestWriteArchiveKeepsExistingRows(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, WriteCSV(
		filepath.Join(dir, "car_data_electric.csv"),
		[]string{"ID", "型号", "价格", "能源类型", "旧字段"},
		[][]string{{"1", "old", "10万", "纯电", "x"}},
	))
	require.NoError(t, WriteCSV(
		filepath.Join(dir, "car_data_fuel.csv"),
		[]string{"ID", "型号", "价格", "能源类型"},
		[][]string{{"2", "fuel", "N/A", "汽油"}},
	))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.csv"), []byte("a\n1\n"), 0644))

	c := collector.New()
	c.Add(vehicle(3, "new", catalog.Electric, "新字段", "y"))

	summary, err := NewWriter(Options{Dir: dir}, &telemetry.Recorder{}).Write(context.Background(), c)
	require.NoError(t, err)

	columns := []string{"ID", "型号", "价格", "能源类型", "新字段", "旧字段"}
	require.Equal(t, columns, summary.Columns)

	electric := readTable(t, filepath.Join(dir, "car_data_electric.csv"))
	require.Equal(t, columns, electric.Header)
	require.Equal(t, [][]string{
		{"1", "old", "10万", "纯电", "", "x"},
		{"3", "new", "N/A", "纯电", "y", ""},
	}, electric.Rows)

	// untouched files are rewritten with the shared schema
	fuel := readTable(t, filepath.Join(dir, "car_data_fuel.csv"))
	require.Equal(t, columns, fuel.Header)
	require.Equal(t, [][]string{{"2", "fuel", "N/A", "汽油", "", ""}}, fuel.Rows)

	done, err := manifest.DoneIDs(dir)
	require.NoError(t, err)
	require.Equal(t, map[int]struct{}{1: {}, 2: {}, 3: {}}, done)

	notes, err := os.ReadFile(filepath.Join(dir, "notes.csv"))
	require.NoError(t, err)
	require.Equal(t, "a\n1\n", string(notes))
}

func TestWriteReplaceOverwrites(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, WriteCSV(
		filepath.Join(dir, "car_data_electric.csv"),
		[]string{"ID", "型号"},
		[][]string{{"1", "old"}},
	))

	c := collector.New()
	c.Add(vehicle(3, "new", catalog.Electric))
	_, err := NewWriter(Options{Dir: dir, Mode: ModeReplace}, &telemetry.Recorder{}).Write(context.Background(), c)
	require.NoError(t, err)

	electric := readTable(t, filepath.Join(dir, "car_data_electric.csv"))
	require.Len(t, electric.Rows, 1)
	require.Equal(t, "3", electric.Rows[0][0])
}

func TestWriteEmptyCollector(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "car_data")
	summary, err := NewWriter(Options{Dir: dir}, &telemetry.Recorder{}).Write(context.Background(), collector.New())
	require.NoError(t, err)
	require.Empty(t, summary.Files)

	_, err = os.Stat(dir)
	require.True(t, os.IsNotExist(err))
}

func TestWriteWorkbook(t *testing.T) {
	dir := t.TempDir()
	workbook := filepath.Join(dir, "car_data.xlsx")

	c := collector.New()
	c.Add(
		vehicle(1, "a", catalog.Electric),
		vehicle(2, "b", catalog.PlugIn),
	)
	summary, err := NewWriter(Options{Dir: dir, Workbook: workbook}, &telemetry.Recorder{}).Write(context.Background(), c)
	require.NoError(t, err)
	require.Equal(t, workbook, summary.Workbook)

	f, err := excelize.OpenFile(workbook)
	require.NoError(t, err)
	defer f.Close()

	require.Equal(t, []string{"electric", "plug-in"}, f.GetSheetList())
	rows, err := f.GetRows("plug-in")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "ID", rows[0][0])
	require.Equal(t, "2", rows[1][0])
}

func TestParseMode(t *testing.T) {
	mode, err := ParseMode("")
	require.NoError(t, err)
	require.Equal(t, ModeArchive, mode)

	mode, err = ParseMode(" Replace ")
	require.NoError(t, err)
	require.Equal(t, ModeReplace, mode)

	_, err = ParseMode("append")
	require.Error(t, err)
}

func TestSlugOf(t *testing.T) {
	slug, ok := SlugOf("/tmp/car_data_range-extender.csv")
	require.True(t, ok)
	require.Equal(t, "range-extender", slug)

	_, ok = SlugOf("car_data_.csv")
	require.False(t, ok)
	_, ok = SlugOf("notes.csv")
	require.False(t, ok)
}

func TestSummaryRender(t *testing.T) {
	summary := Summary{Files: []File{
		{Slug: "electric", Labels: []string{"纯电"}, Path: "car_data/car_data_electric.csv", Existing: 2, Added: 3},
	}}
	var out bytes.Buffer
	summary.Render(&out)
	require.Contains(t, out.String(), "electric")
	require.Contains(t, out.String(), "car_data/car_data_electric.csv")
}
