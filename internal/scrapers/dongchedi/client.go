package dongchedi

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"carparams/internal/components/chrono"
	"carparams/internal/components/telemetry"
	"carparams/internal/record"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	report_client_fetch   = "client.fetch"
	report_client_extract = "client.extract"
	report_client_retry   = "client.retry"
	report_client_attempt = "client.attempt"
	report_client_no_data = "client.no_data"
	report_client_forget  = "client.forget"
)

const (
	DefaultURLTemplate    = "https://www.dongchedi.com/auto/params-carIds-x-{id}"
	DefaultUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	DefaultAcceptLanguage = "zh-CN,zh;q=0.9"
	// DefaultMarker is the text every real configuration page contains.
	DefaultMarker = "参数配置"
)

var (
	ErrStatus        = errors.New("unexpected response status")
	ErrMarkerMissing = errors.New("page is not a configuration page")
	ErrNoNamedModel  = errors.New("no model on the page has a name")
)

// Page is a fetched comparison page.
type Page struct {
	ID         int
	StatusCode int
	Body       string
}

// OK reports a 2xx status.
func (p Page) OK() bool {
	return p.StatusCode >= 200 && p.StatusCode < 300
}

// Fetcher retrieves the comparison page of a car id. Errors are reserved for
// transport failures, a non-2xx page is returned as a Page.
type Fetcher interface {
	Fetch(ctx context.Context, id int) (Page, error)
}

// Forgetter is implemented by fetchers that keep pages around. A page the
// client rejected is forgotten so the next try fetches it again.
type Forgetter interface {
	Forget(ctx context.Context, id int) error
}

// PageURL fills the "{id}" placeholder of a url template.
func PageURL(template string, id int) string {
	return strings.ReplaceAll(template, "{id}", strconv.Itoa(id))
}

type HTTPOptions struct {
	URLTemplate      string
	UserAgent        string
	AcceptLanguage   string
	Timeout          time.Duration
	CloudflareBypass bool
	// Output receives request/response transcripts, it may be nil.
	Output telemetry.MessageOutput
}

// HTTPFetcher fetches pages over HTTP with resty.
type HTTPFetcher struct {
	http        *resty.Client
	urlTemplate string
}

func NewHTTPFetcher(opts HTTPOptions, tel telemetry.API) HTTPFetcher {
	if opts.URLTemplate == "" {
		opts.URLTemplate = DefaultURLTemplate
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.AcceptLanguage == "" {
		opts.AcceptLanguage = DefaultAcceptLanguage
	}

	client := resty.New()
	if opts.CloudflareBypass {
		client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	}
	client.SetHeader("user-agent", opts.UserAgent)
	client.SetHeader("referer", strings.ReplaceAll(opts.URLTemplate, "{id}", ""))
	client.SetHeader("accept-language", opts.AcceptLanguage)
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}
	telemetry.InstrumentResty(client, tel, opts.Output)

	return HTTPFetcher{http: client, urlTemplate: opts.URLTemplate}
}

func (f HTTPFetcher) Fetch(ctx context.Context, id int) (Page, error) {
	res, err := f.http.R().
		SetContext(ctx).
		Get(PageURL(f.urlTemplate, id))
	if err != nil {
		return Page{}, fmt.Errorf("fetch %d: %w", id, err)
	}
	return Page{
		ID:         id,
		StatusCode: res.StatusCode(),
		Body:       res.String(),
	}, nil
}

type RetryOptions struct {
	// Attempts is the total number of tries per id, values below 1 mean 1.
	Attempts int
	// BackoffBase is raised to the attempt index (from 0) to get the
	// number of seconds slept after a failed attempt.
	BackoffBase float64
}

// Backoff returns the delay after the failed attempt `attempt` (from 0).
func (r RetryOptions) Backoff(attempt int) time.Duration {
	seconds := math.Pow(r.BackoffBase, float64(attempt))
	return time.Duration(seconds * float64(time.Second))
}

// Outcome is the result of FetchAndExtract for one id, Vehicles is nil when
// the id yielded no data this run.
type Outcome struct {
	ID       int
	Vehicles []record.Vehicle
	Attempts int
	// Err is the failure of the last attempt when Vehicles is nil.
	Err error
}

type ClientOptions struct {
	Retry RetryOptions
	// Marker is the text a page must contain to be parsed, defaults to DefaultMarker.
	Marker string
}

// Client composes fetching, extraction and retrying into one operation per id.
type Client struct {
	fetcher   Fetcher
	extractor Extractor
	opts      ClientOptions
	time      chrono.TimeAPI
	tel       telemetry.API
}

func NewClient(fetcher Fetcher, extractor Extractor, opts ClientOptions, time chrono.TimeAPI, tel telemetry.API) Client {
	if opts.Marker == "" {
		opts.Marker = DefaultMarker
	}
	if opts.Retry.Attempts < 1 {
		opts.Retry.Attempts = 1
	}
	return Client{
		fetcher:   fetcher,
		extractor: extractor,
		opts:      opts,
		time:      time,
		tel:       tel,
	}
}

// FetchAndExtract fetches the page of `id` and extracts its records, tagging
// every record with `id`. Transient failures are retried with backoff, once
// retries are exhausted (or extraction fails unexpectedly) the outcome has
// no vehicles. The returned error is only ever the context's error.
func (c Client) FetchAndExtract(ctx context.Context, id int) (Outcome, error) {
	ctx, span := tracer.Start(ctx, "FetchAndExtract")
	defer span.End()
	span.SetAttributes(attribute.Int("id", id))

	var lastErr error
	for attempt := 0; attempt < c.opts.Retry.Attempts; attempt++ {
		vehicles, err := c.attempt(ctx, id)
		if err == nil {
			return Outcome{ID: id, Vehicles: vehicles, Attempts: attempt + 1}, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Outcome{ID: id, Attempts: attempt + 1, Err: ctxErr}, ctxErr
		}
		lastErr = err
		c.forget(ctx, id)

		var extractErr *ExtractError
		if errors.As(err, &extractErr) {
			c.tel.ReportBroken(report_client_extract, err, id)
			span.SetStatus(codes.Error, "extraction failed")
			return Outcome{ID: id, Attempts: attempt + 1, Err: err}, nil
		}
		if IsNoData(err) {
			c.tel.ReportDebug(report_client_no_data, id, attempt+1, err.Error())
		} else {
			c.tel.ReportDebug(report_client_attempt, id, attempt+1, err.Error())
		}

		if attempt == c.opts.Retry.Attempts-1 {
			break
		}
		err = c.time.Sleep(ctx, c.opts.Retry.Backoff(attempt))
		if err != nil {
			return Outcome{ID: id, Attempts: attempt + 1, Err: err}, err
		}
	}

	c.tel.ReportWarning(report_client_retry, "retries exhausted", id, c.opts.Retry.Attempts, lastErr)
	span.SetStatus(codes.Error, "retries exhausted")
	return Outcome{ID: id, Attempts: c.opts.Retry.Attempts, Err: lastErr}, nil
}

func (c Client) forget(ctx context.Context, id int) {
	forgetter, ok := c.fetcher.(Forgetter)
	if !ok {
		return
	}
	err := forgetter.Forget(ctx, id)
	if err != nil {
		c.tel.ReportWarning(report_client_forget, err, id)
	}
}

func (c Client) attempt(ctx context.Context, id int) ([]record.Vehicle, error) {
	page, err := c.fetcher.Fetch(ctx, id)
	if err != nil {
		c.tel.ReportDebug(report_client_fetch, id, err.Error())
		return nil, err
	}
	if !page.OK() {
		return nil, fmt.Errorf("%w: %d", ErrStatus, page.StatusCode)
	}
	if !strings.Contains(page.Body, c.opts.Marker) {
		return nil, ErrMarkerMissing
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.Body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	vehicles, err := c.extractor.Extract(ctx, doc)
	if err != nil {
		return nil, err
	}

	named := false
	for i := range vehicles {
		vehicles[i].SourceID = id
		if vehicles[i].HasModelName() {
			named = true
		}
	}
	if !named {
		return nil, ErrNoNamedModel
	}
	return vehicles, nil
}
