package output

import (
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Render prints the summary as a table.
func (s Summary) Render(w io.Writer) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Slug", "Energy type", "Existing", "Added", "Rows", "File"})
	for _, f := range s.Files {
		t.AppendRow(table.Row{f.Slug, strings.Join(f.Labels, ", "), f.Existing, f.Added, f.Rows(), f.Path})
	}
	t.AppendFooter(table.Row{"", "", "", s.Added(), "", s.Workbook})
	t.Render()
}
