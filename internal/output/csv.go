package output

import (
	"encoding/csv"
	"os"
	"path/filepath"
)

var utf8BOM = []byte("\xef\xbb\xbf")

// WriteCSV writes a BOM prefixed csv file through a temporary file in the
// same directory, the destination is only replaced once the file is complete.
func WriteCSV(path string, header []string, rows [][]string) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	_, err = tmp.Write(utf8BOM)
	if err != nil {
		return err
	}
	writer := csv.NewWriter(tmp)
	err = writer.Write(header)
	if err != nil {
		return err
	}
	err = writer.WriteAll(rows)
	if err != nil {
		return err
	}
	err = tmp.Close()
	if err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
