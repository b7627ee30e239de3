package commands

import (
	"context"
	"database/sql"
	"log/slog"
	"os"

	"carparams/internal/catalog"
	"carparams/internal/components/chrono"
	"carparams/internal/components/telemetry"
	"carparams/internal/history"
	"carparams/internal/notify"
	"carparams/internal/output"
	"carparams/internal/pagecache"
	"carparams/internal/scrape"
	"carparams/internal/scrapers/dongchedi"
	"carparams/lib/serviceutil"

	"github.com/spf13/cobra"
)

var (
	scrapeManifest    *string
	scrapeOutputDir   *string
	scrapeMode        *string
	scrapeConcurrency *int
	scrapeXLSX        *string
	scrapeNoCache     *bool
)

func init() {
	scrapeManifest = scrapeCmd.Flags().String("manifest", "", "The csv file listing car ids in an 'id' column.")
	scrapeOutputDir = scrapeCmd.Flags().StringP("output-dir", "o", "", "The directory csv files are written to.")
	scrapeMode = scrapeCmd.Flags().String("mode", "", "What to do with existing output files: archive or replace.")
	scrapeConcurrency = scrapeCmd.Flags().IntP("concurrency", "j", 0, "How many ids are fetched at once.")
	scrapeXLSX = scrapeCmd.Flags().String("xlsx", "", "Also export every output file into this workbook.")
	scrapeNoCache = scrapeCmd.Flags().Bool("no-cache", false, "Always fetch pages from the site.")
	rootCmd.AddCommand(scrapeCmd)
}

// applyScrapeFlags lets explicitly set flags win over the configuration.
func applyScrapeFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("manifest") {
		cfg.Manifest = *scrapeManifest
	}
	if flags.Changed("output-dir") {
		cfg.OutputDir = *scrapeOutputDir
	}
	if flags.Changed("mode") {
		cfg.Output.Mode = *scrapeMode
	}
	if flags.Changed("concurrency") {
		cfg.Scrape.Concurrency = *scrapeConcurrency
	}
	if flags.Changed("xlsx") {
		cfg.Output.XLSX = *scrapeXLSX
	}
}

func newFetcher(ctx context.Context, database *sql.DB, time chrono.TimeAPI, tel telemetry.API) dongchedi.Fetcher {
	var dump telemetry.MessageOutput
	if cfg.HTTP.DumpDir != "" {
		out, err := telemetry.NewDirectoryOutput(cfg.HTTP.DumpDir, tel)
		if err != nil {
			serviceutil.Fatal("failed to create http dump dir", err)
		}
		dump = out
	}

	var fetcher dongchedi.Fetcher = dongchedi.NewHTTPFetcher(dongchedi.HTTPOptions{
		URLTemplate:      cfg.HTTP.URLTemplate,
		UserAgent:        cfg.HTTP.UserAgent,
		AcceptLanguage:   cfg.HTTP.AcceptLanguage,
		Timeout:          cfg.HTTP.Timeout.Std(),
		CloudflareBypass: cfg.HTTP.CloudflareBypass,
		Output:           dump,
	}, telemetry.NewScopedAPI("http", tel))

	if database == nil || *scrapeNoCache {
		return fetcher
	}
	cache := pagecache.New(database, fetcher, pagecache.Options{
		TTL:    cfg.Cache.TTL.Std(),
		Marker: cfg.Scrape.Marker,
	}, time, telemetry.NewScopedAPI("cache", tel))
	removed, err := cache.Purge(ctx)
	if err != nil {
		slog.Warn("failed to purge page cache", "err", err)
	} else if removed > 0 {
		slog.Debug("purged expired pages", "count", removed)
	}
	return cache
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape [--manifest <ids.csv>] [--output-dir <dir>] [--mode archive|replace]",
	Short: "Fetches every pending id of the manifest and writes the records grouped by energy type.",
	Run: func(cmd *cobra.Command, args []string) {
		applyScrapeFlags(cmd)
		err := cfg.Validate()
		if err != nil {
			serviceutil.Fatal("invalid configuration", err)
		}
		ctx := cmd.Context()
		tel := telemetry.NewSlogAPI()
		clock := chrono.NewStandardTime()

		selectors, err := cfg.Selectors()
		if err != nil {
			serviceutil.Fatal("invalid selectors", err)
		}

		database, err := openStateDB()
		if err != nil {
			serviceutil.Fatal("failed to open state db", err)
		}
		var store *history.Store
		if database != nil {
			defer database.Close()
			s := history.NewStore(database, clock)
			store = &s
		}

		client := dongchedi.NewClient(
			newFetcher(ctx, database, clock, tel),
			dongchedi.NewExtractor(selectors, catalog.Default, telemetry.NewScopedAPI("dongchedi", tel)),
			dongchedi.ClientOptions{
				Retry: dongchedi.RetryOptions{
					Attempts:    cfg.Retry.Attempts,
					BackoffBase: cfg.Retry.BackoffBase,
				},
				Marker: cfg.Scrape.Marker,
			},
			clock,
			telemetry.NewScopedAPI("dongchedi", tel),
		)

		runner := scrape.Runner{
			Client: client,
			Writer: output.NewWriter(output.Options{
				Dir:      cfg.OutputDir,
				Mode:     cfg.OutputMode(),
				Workbook: cfg.Output.XLSX,
			}, telemetry.NewScopedAPI("output", tel)),
			History:  store,
			Notifier: notify.NewNotifier(cfg.Notify.SMTP, telemetry.NewScopedAPI("notify", tel)),
			Mode:     cfg.OutputMode(),
			Time:     clock,
			Tel:      tel,
			Options: scrape.Options{
				Manifest:    cfg.Manifest,
				OutputDir:   cfg.OutputDir,
				Concurrency: cfg.Scrape.Concurrency,
				Progress:    os.Stdout,
			},
		}

		result, err := runner.Run(ctx)
		if err != nil {
			serviceutil.Fatal("scrape failed", err)
		}
		if len(result.Pending) == 0 {
			return
		}
		result.Summary.Render(os.Stdout)
		slog.Info(
			"scrape finished",
			"run", result.RunID,
			"succeeded", len(result.Succeeded),
			"skipped", len(result.Skipped),
			"records", result.Records,
			"seconds", result.Elapsed.Seconds(),
		)
	},
}
