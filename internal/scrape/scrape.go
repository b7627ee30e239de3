// Package scrape runs a whole batch: it resolves the pending ids, fetches
// and extracts every one of them and writes the grouped output.
package scrape

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"carparams/internal/catalog"
	"carparams/internal/components/chrono"
	"carparams/internal/collector"
	"carparams/internal/components/telemetry"
	"carparams/internal/db"
	"carparams/internal/history"
	"carparams/internal/manifest"
	"carparams/internal/notify"
	"carparams/internal/output"
	"carparams/internal/scrapers/dongchedi"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("carparams/scrape")

const (
	report_scrape_skipped = "scrape.skipped"
	report_scrape_energy  = "scrape.energy"
	report_scrape_history = "scrape.history"
	report_scrape_notify  = "scrape.notify"
	report_scrape_records = "scrape.records"
)

type Options struct {
	Manifest    string
	OutputDir   string
	Concurrency int
	// Progress receives the per id progress lines, it may be nil.
	Progress io.Writer
}

// Result describes a finished run.
type Result struct {
	RunID     string
	Pending   []int
	Succeeded []int
	Skipped   []int
	Records   int
	Summary   output.Summary
	// Elapsed is measured on the runner's clock, backoff sleeps included.
	Elapsed time.Duration
}

// Runner is a single batch job, History and Notifier are optional. Time
// defaults to the standard clock.
type Runner struct {
	Client   dongchedi.Client
	Writer   output.Writer
	History  *history.Store
	Notifier notify.Notifier
	Mode     output.Mode
	Time     chrono.TimeAPI
	Tel      telemetry.API
	Options  Options
}

// syncWriter serializes progress lines written by concurrent workers.
type syncWriter struct {
	mutex sync.Mutex
	w     io.Writer
}

func (s *syncWriter) printf(format string, args ...any) {
	if s.w == nil {
		return
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	fmt.Fprintf(s.w, format, args...)
}

// Run executes the batch. When ctx is cancelled while fetching, nothing is
// written and ctx's error is returned, the next run resumes from the same
// pending set.
func (r Runner) Run(ctx context.Context) (Result, error) {
	ctx, span := tracer.Start(ctx, "Run")
	defer span.End()

	progress := &syncWriter{w: r.Options.Progress}
	clock := r.Time
	if clock == nil {
		clock = chrono.NewStandardTime()
	}
	start := clock.Now()

	pending, err := manifest.PendingIDs(r.Options.Manifest, r.Options.OutputDir)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to resolve pending ids")
		return Result{}, err
	}
	result := Result{Pending: pending}
	span.SetAttributes(attribute.Int("pending", len(pending)))

	if len(pending) == 0 {
		progress.printf("no pending ids\n")
		return result, nil
	}

	if r.History != nil {
		result.RunID, err = r.History.Start(ctx, string(r.Mode), len(pending))
		if err != nil {
			r.Tel.ReportWarning(report_scrape_history, err)
		}
	}

	c := collector.New()
	var mutex sync.Mutex

	concurrency := r.Options.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(concurrency)

	for i, id := range pending {
		if groupCtx.Err() != nil {
			break
		}
		index, id := i+1, id
		group.Go(func() error {
			progress.printf("[%d/%d] scanning id %d\n", index, len(pending), id)

			outcome, err := r.Client.FetchAndExtract(groupCtx, id)
			if err != nil {
				return err
			}

			mutex.Lock()
			defer mutex.Unlock()
			if outcome.Vehicles == nil {
				r.Tel.ReportWarning(report_scrape_skipped, id, outcome.Err)
				result.Skipped = append(result.Skipped, id)
				return nil
			}
			c.Add(outcome.Vehicles...)
			result.Succeeded = append(result.Succeeded, id)
			return nil
		})
	}

	err = group.Wait()
	if err == nil {
		err = ctx.Err()
	}
	slices.Sort(result.Succeeded)
	slices.Sort(result.Skipped)
	result.Records = c.Len()
	result.Elapsed = clock.Now().Sub(start)

	if err != nil {
		r.finishHistory(context.WithoutCancel(ctx), result, db.RunCancelled)
		span.SetStatus(codes.Error, "run cancelled")
		return result, err
	}

	r.reportUnknownEnergyTypes(c)

	result.Summary, err = r.Writer.Write(ctx, c)
	if err != nil {
		r.finishHistory(context.WithoutCancel(ctx), result, db.RunFailed)
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to write output")
		return result, fmt.Errorf("write output: %w", err)
	}
	r.Tel.ReportCount(report_scrape_records, int64(result.Records))

	r.finishHistory(ctx, result, db.RunFinished)
	r.notify(ctx, result)

	return result, nil
}

func (r Runner) finishHistory(ctx context.Context, result Result, status string) {
	if r.History == nil || result.RunID == "" {
		return
	}
	err := r.History.Finish(ctx, result.RunID, status, history.Stats{
		Pending:   len(result.Pending),
		Succeeded: len(result.Succeeded),
		Skipped:   len(result.Skipped),
		Records:   result.Records,
	})
	if err != nil {
		r.Tel.ReportWarning(report_scrape_history, err)
	}
}

func (r Runner) notify(ctx context.Context, result Result) {
	if !r.Notifier.Enabled() {
		return
	}
	var body bytes.Buffer
	fmt.Fprintf(
		&body,
		"pending %d, succeeded %d, skipped %d, records %d, took %s\n\n",
		len(result.Pending), len(result.Succeeded), len(result.Skipped), result.Records,
		result.Elapsed.Round(time.Second),
	)
	if len(result.Skipped) > 0 {
		fmt.Fprintf(&body, "skipped ids: %v\n\n", result.Skipped)
	}
	result.Summary.Render(&body)

	subject := fmt.Sprintf("carparams run %s: %d records", result.RunID, result.Records)
	err := r.Notifier.Send(ctx, subject, body.String())
	if err != nil {
		r.Tel.ReportWarning(report_scrape_notify, err)
	}
}

// reportUnknownEnergyTypes points out energy type labels that fall into the
// unknown bucket although the page named them.
func (r Runner) reportUnknownEnergyTypes(c *collector.Collector) {
	for _, bucket := range c.Buckets() {
		if bucket.Slug != catalog.UnknownSlug || bucket.Label == catalog.UnknownEnergy {
			continue
		}
		suggestion, similarity := catalog.Default.Suggest(bucket.Label)
		r.Tel.ReportWarning(
			report_scrape_energy,
			"unrecognized energy type",
			bucket.Label,
			fmt.Sprintf("closest %s (%.2f)", suggestion, similarity),
		)
	}
}
