package output

import (
	"fmt"

	"carparams/internal/manifest"

	"github.com/xuri/excelize/v2"
)

const defaultSheet = "Sheet1"

// WriteWorkbook exports every csv file of the summary into one workbook with
// a sheet per slug. The csv files are read back so the workbook holds
// exactly what was written to disk.
func WriteWorkbook(path string, summary Summary) error {
	f := excelize.NewFile()
	defer f.Close()

	for i, file := range summary.Files {
		if i == 0 {
			err := f.SetSheetName(defaultSheet, file.Slug)
			if err != nil {
				return err
			}
		} else {
			_, err := f.NewSheet(file.Slug)
			if err != nil {
				return err
			}
		}

		table, err := manifest.ReadTable(file.Path)
		if err != nil {
			return err
		}
		err = writeSheet(f, file.Slug, table)
		if err != nil {
			return fmt.Errorf("sheet %s: %w", file.Slug, err)
		}
	}

	return f.SaveAs(path)
}

func writeSheet(f *excelize.File, sheet string, table manifest.Table) error {
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return err
	}
	if err := sw.SetRow("A1", toCells(table.Header)); err != nil {
		return err
	}
	for i, row := range table.Rows {
		cellAddr, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := sw.SetRow(cellAddr, toCells(row)); err != nil {
			return err
		}
	}
	return sw.Flush()
}

func toCells(values []string) []interface{} {
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return cells
}
