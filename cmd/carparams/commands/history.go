package commands

import (
	"fmt"
	"os"

	"carparams/internal/components/chrono"
	"carparams/internal/history"
	"carparams/lib/serviceutil"

	"github.com/spf13/cobra"
)

var historyLimit *int

func init() {
	historyLimit = historyCmd.Flags().IntP("limit", "n", 20, "How many runs to show.")
	rootCmd.AddCommand(historyCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history [-n <limit>]",
	Short: "Shows the latest scrape runs (requires cache.file to be configured).",
	Run: func(cmd *cobra.Command, args []string) {
		database, err := openStateDB()
		if err != nil {
			serviceutil.Fatal("failed to open state db", err)
		}
		if database == nil {
			fmt.Fprintln(os.Stderr, "run history is kept in cache.file, which is not configured")
			os.Exit(1)
		}
		defer database.Close()

		runs, err := history.NewStore(database, chrono.NewStandardTime()).List(cmd.Context(), *historyLimit)
		if err != nil {
			serviceutil.Fatal("failed to list runs", err)
		}
		if len(runs) == 0 {
			fmt.Println("no runs recorded yet")
			return
		}
		history.Render(os.Stdout, runs)
	},
}
