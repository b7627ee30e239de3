package dongchedi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"carparams/internal/catalog"
	"carparams/internal/components/telemetry"
	"carparams/internal/record"
	"carparams/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("carparams/scrapers/dongchedi")

const (
	report_extract_row   = "extract.row"
	report_extract_price = "extract.price"
)

const priceUnit = '万'

var (
	// ErrNoTable means the page has no comparison table header, the page is
	// well formed but holds nothing to extract.
	ErrNoTable = errors.New("comparison table header not found")
	// ErrNoModels means the header exists but has no model columns.
	ErrNoModels = errors.New("comparison table has no model columns")
)

// ExtractError is an unexpected failure while walking a page, the cause is
// whatever was recovered.
type ExtractError struct {
	Cause any
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("unexpected extraction failure: %v", e.Cause)
}

func (e *ExtractError) Unwrap() error {
	err, _ := e.Cause.(error)
	return err
}

// IsNoData reports whether err is one of the expected "nothing to extract" outcomes.
func IsNoData(err error) bool {
	return errors.Is(err, ErrNoTable) || errors.Is(err, ErrNoModels)
}

// Extractor turns a comparison page into one vehicle record per model column.
type Extractor struct {
	selectors Selectors
	catalog   catalog.Catalog
	tel       telemetry.API
}

func NewExtractor(selectors Selectors, cat catalog.Catalog, tel telemetry.API) Extractor {
	return Extractor{selectors: selectors, catalog: cat, tel: tel}
}

// Extract returns exactly one normalized record per model column of the
// page. When the page holds no table, ErrNoTable or ErrNoModels is returned,
// anything unexpected comes back as an *ExtractError, records are never
// partially returned.
func (e Extractor) Extract(ctx context.Context, doc *goquery.Document) (vehicles []record.Vehicle, err error) {
	_, span := tracer.Start(ctx, "Extract")
	defer span.End()

	defer func() {
		recovered := recover()
		if recovered == nil {
			return
		}
		vehicles = nil
		err = &ExtractError{Cause: recovered}
		span.RecordError(err)
		span.SetStatus(codes.Error, "recovered from extraction failure")
	}()

	header := doc.Find(e.selectors.Header).First()
	if header.Length() == 0 {
		return nil, ErrNoTable
	}
	columns := header.Find(e.selectors.ModelColumn)
	if columns.Length() == 0 {
		return nil, ErrNoModels
	}

	vehicles = make([]record.Vehicle, columns.Length())
	for i := range vehicles {
		vehicles[i] = record.New()
	}

	columns.Each(func(i int, column *goquery.Selection) {
		name := column.Find(e.selectors.ModelName).First()
		if name.Length() == 0 {
			return
		}
		vehicles[i].ModelName = htmlutil.StripGlyphs(htmlutil.JoinedText(name, ""))
	})

	e.extractPrices(doc, vehicles)

	doc.Find(e.selectors.Section).Each(func(_ int, section *goquery.Selection) {
		section.Find(e.selectors.AttributeRow).Each(func(_ int, row *goquery.Selection) {
			e.extractRow(row, vehicles)
		})
	})

	for i := range vehicles {
		vehicles[i].Normalize(e.catalog)
	}

	span.SetAttributes(attribute.Int("models", len(vehicles)))
	return vehicles, nil
}

func (e Extractor) extractPrices(doc *goquery.Document, vehicles []record.Vehicle) {
	first := doc.Find(e.selectors.PriceCell).First()
	if first.Length() == 0 {
		return
	}
	row := first.ParentsFiltered(e.selectors.Row).First()
	if row.Length() == 0 {
		e.tel.ReportWarning(report_extract_price, "price cell outside of a table row")
		return
	}

	row.Find(e.selectors.PriceCell).EachWithBreak(func(i int, cell *goquery.Selection) bool {
		if i >= len(vehicles) {
			return false
		}
		if price, ok := cleanPrice(htmlutil.JoinedText(cell, "")); ok {
			vehicles[i].Price = price
		}
		return true
	})
}

func (e Extractor) extractRow(row *goquery.Selection, vehicles []record.Vehicle) {
	labelCell := row.Find(e.selectors.Label).First()
	if labelCell.Length() == 0 {
		e.tel.ReportWarning(report_extract_row, "row without label", row.AttrOr("data-row-anchor", ""))
		return
	}
	label := htmlutil.JoinedText(labelCell, "")
	if label == "" {
		e.tel.ReportWarning(report_extract_row, "row with empty label", row.AttrOr("data-row-anchor", ""))
		return
	}

	row.Find(e.selectors.Value).EachWithBreak(func(i int, cell *goquery.Selection) bool {
		if i >= len(vehicles) {
			return false
		}
		vehicles[i].Set(label, htmlutil.StripGlyphs(htmlutil.JoinedText(cell, " ")))
		return true
	})
}

// cleanPrice keeps the numeric part of a price cell and suffixes the unit
// once: "18.98万" stays "18.98万" instead of gaining a second 万. Cells
// without any digit ("暂无报价") are reported as not ok so the price keeps
// its N/A default rather than becoming a bare "万".
func cleanPrice(text string) (string, bool) {
	kept := htmlutil.KeepPriceChars(text, priceUnit)
	kept = strings.TrimRight(kept, string(priceUnit))
	hasDigit := strings.IndexFunc(kept, unicode.IsDigit) >= 0
	if !hasDigit {
		return "", false
	}
	return kept + string(priceUnit), true
}
