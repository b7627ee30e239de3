package commands

import (
	"bytes"
	"context"
	"os"

	"carparams/internal/catalog"
	"carparams/internal/collector"
	"carparams/internal/components/telemetry"
	"carparams/internal/scrapers/dongchedi"
	"carparams/lib/serviceutil"

	"github.com/PuerkitoBio/goquery"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(inspectCmd)
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <page.html>",
	Short: "Extracts a saved comparison page and prints one column per model.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		contents, err := os.ReadFile(args[0])
		if err != nil {
			serviceutil.Fatal("failed to read page", err)
		}
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(contents))
		if err != nil {
			serviceutil.Fatal("failed to parse page", err)
		}
		selectors, err := cfg.Selectors()
		if err != nil {
			serviceutil.Fatal("invalid selectors", err)
		}

		extractor := dongchedi.NewExtractor(selectors, catalog.Default, telemetry.NewSlogAPI())
		vehicles, err := extractor.Extract(context.Background(), doc)
		if err != nil {
			serviceutil.Fatal("failed to extract page", err)
		}

		c := collector.New()
		c.Add(vehicles...)

		t := newTable()
		header := table.Row{"Label"}
		for i := range vehicles {
			header = append(header, i+1)
		}
		t.AppendHeader(header)
		for _, column := range c.Columns() {
			if column == catalog.LabelID {
				continue
			}
			row := table.Row{column}
			for _, v := range vehicles {
				value, _ := v.Get(column)
				row = append(row, value)
			}
			t.AppendRow(row)
		}
		t.Render()
	},
}
