package commands

import (
	"fmt"

	"carparams/internal/manifest"
	"carparams/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var pendingCount *bool

func init() {
	pendingCount = pendingCmd.Flags().Bool("count", false, "Only print how many ids are pending.")
	rootCmd.AddCommand(pendingCmd)
}

var pendingCmd = &cobra.Command{
	Use:   "pending [--count]",
	Short: "Lists the manifest ids that have no records in the output directory yet.",
	Run: func(cmd *cobra.Command, args []string) {
		ids, err := manifest.ReadManifest(cfg.Manifest)
		if err != nil {
			serviceutil.Fatal("failed to read manifest", err)
		}
		done, err := manifest.DoneIDs(cfg.OutputDir)
		if err != nil {
			serviceutil.Fatal("failed to read output files", err)
		}
		pending := manifest.Subtract(ids, done)

		if *pendingCount {
			fmt.Println(len(pending))
			return
		}
		if len(pending) == 0 {
			fmt.Println("no pending ids")
			return
		}

		t := newTable()
		t.AppendHeader(table.Row{"#", "ID"})
		for i, id := range pending {
			t.AppendRow(table.Row{i + 1, id})
		}
		t.AppendFooter(table.Row{"done", len(done)})
		t.Render()
	},
}
