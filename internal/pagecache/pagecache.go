// Package pagecache keeps fetched comparison pages in sqlite so repeated runs
// within the cache lifetime do not hit the site again.
package pagecache

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"carparams/internal/components/chrono"
	"carparams/internal/components/telemetry"
	"carparams/internal/db"
	"carparams/internal/scrapers/dongchedi"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("carparams/pagecache")

const (
	report_cache_get = "pagecache.get"
	report_cache_set = "pagecache.set"
	report_cache_hit = "pagecache.hit"
)

var errPageNotFound = errors.New("page not cached")

type Options struct {
	TTL time.Duration
	// Marker is the text a page must contain to be stored, defaults to
	// dongchedi.DefaultMarker.
	Marker string
}

// Cache is a dongchedi.Fetcher that serves pages from sqlite when it can and
// falls back to the wrapped fetcher otherwise.
type Cache struct {
	inner  dongchedi.Fetcher
	qry    *db.Queries
	makeTx db.MakeTx
	opts   Options
	time   chrono.TimeAPI
	tel    telemetry.API
}

func New(database *sql.DB, inner dongchedi.Fetcher, opts Options, time chrono.TimeAPI, tel telemetry.API) Cache {
	if opts.Marker == "" {
		opts.Marker = dongchedi.DefaultMarker
	}
	return Cache{
		inner:  inner,
		qry:    db.New(database),
		makeTx: db.NewMakeTx(database),
		opts:   opts,
		time:   time,
		tel:    tel,
	}
}

func (c Cache) Fetch(ctx context.Context, id int) (dongchedi.Page, error) {
	ctx, span := tracer.Start(ctx, "Fetch")
	defer span.End()
	span.SetAttributes(attribute.Int("id", id))

	body, err := c.get(ctx, id)
	if err == nil {
		c.tel.ReportCount(report_cache_hit, 1)
		span.SetStatus(codes.Ok, "CACHE HIT")
		return dongchedi.Page{ID: id, StatusCode: 200, Body: body}, nil
	}
	if !errors.Is(err, errPageNotFound) {
		c.tel.ReportWarning(report_cache_get, err, id)
		span.RecordError(err)
	}

	page, err := c.inner.Fetch(ctx, id)
	if err != nil {
		return page, err
	}
	if page.OK() && strings.Contains(page.Body, c.opts.Marker) {
		err = c.set(ctx, id, page.Body)
		if err != nil {
			c.tel.ReportWarning(report_cache_set, err, id)
			span.RecordError(err)
		}
	}
	return page, nil
}

func (c Cache) get(ctx context.Context, id int) (string, error) {
	tx, discard, commit, err := c.makeTx()
	if err != nil {
		return "", err
	}
	defer discard()

	cached, err := tx.GetCachedPage(ctx, int64(id))
	if errors.Is(err, sql.ErrNoRows) {
		return "", errPageNotFound
	}
	if err != nil {
		return "", err
	}

	if c.time.Now().Unix() >= cached.ExpiresAt {
		trace.SpanFromContext(ctx).AddEvent("delete expired page", trace.WithAttributes(
			attribute.Int("id", id),
		))
		err = tx.DeleteCachedPage(ctx, int64(id))
		if err != nil {
			return "", err
		}
		err = commit()
		if err != nil {
			return "", err
		}
		return "", errPageNotFound
	}

	return cached.Body, nil
}

func (c Cache) set(ctx context.Context, id int, body string) error {
	now := c.time.Now()
	return c.qry.PutCachedPage(ctx, db.PutCachedPageParams{
		CarID:     int64(id),
		Body:      body,
		FetchedAt: now.Unix(),
		ExpiresAt: now.Add(c.opts.TTL).Unix(),
	})
}

// Forget drops the cached page of `id`, if any.
func (c Cache) Forget(ctx context.Context, id int) error {
	return c.qry.DeleteCachedPage(ctx, int64(id))
}

// Purge deletes every expired page and returns how many were removed.
func (c Cache) Purge(ctx context.Context) (int64, error) {
	return c.qry.DeleteExpiredPages(ctx, c.time.Now().Unix())
}
