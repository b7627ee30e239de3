package dongchedi

import (
	"fmt"

	"dario.cat/mergo"
	"github.com/andybalholm/cascadia"
)

// Selectors are the CSS selectors locating the parts of a comparison table.
// The class names carry build hashes that change with site deploys, which is
// why they can be overridden from configuration.
type Selectors struct {
	// Header is the region holding one column header per model.
	Header string `json:"header"`
	// ModelColumn selects model columns inside the header, the first column
	// holds the attribute labels and must not match.
	ModelColumn string `json:"model_column"`
	// ModelName selects the element holding a model's name inside its column.
	ModelName string `json:"model_name"`
	// PriceCell selects official price cells.
	PriceCell string `json:"price_cell"`
	// Row is any table row.
	Row string `json:"row"`
	// Section selects the table sections after the header section.
	Section string `json:"section"`
	// AttributeRow selects rows of a section that carry an attribute.
	AttributeRow string `json:"attribute_row"`
	Label        string `json:"label"`
	Value        string `json:"value"`
}

func DefaultSelectors() Selectors {
	return Selectors{
		Header:       "div.table_head__FNAvn",
		ModelColumn:  "div.table_is-head-col__1sAQG:not(:first-child)",
		ModelName:    "a.cell_car__28WzZ, div.cell_car__28WzZ",
		PriceCell:    "div.cell_official-price__1O2th",
		Row:          "div.table_row__yVX1h",
		Section:      "div.table_root__14vH_:not(:first-child)",
		AttributeRow: "div.table_row__yVX1h[data-row-anchor]",
		Label:        ".cell_label__ZtXlw",
		Value:        "div.cell_normal__37nRi",
	}
}

// WithOverrides returns a copy of s where every non-empty field of
// `overrides` replaces the field of s.
func (s Selectors) WithOverrides(overrides Selectors) (Selectors, error) {
	out := s
	err := mergo.Merge(&out, overrides, mergo.WithOverride)
	if err != nil {
		return s, err
	}
	return out, nil
}

// Validate makes sure every selector compiles, goquery silently matches
// nothing on an invalid selector.
func (s Selectors) Validate() error {
	fields := []struct {
		name     string
		selector string
	}{
		{"header", s.Header},
		{"model_column", s.ModelColumn},
		{"model_name", s.ModelName},
		{"price_cell", s.PriceCell},
		{"row", s.Row},
		{"section", s.Section},
		{"attribute_row", s.AttributeRow},
		{"label", s.Label},
		{"value", s.Value},
	}
	for _, f := range fields {
		if f.selector == "" {
			return fmt.Errorf("selector %s is empty", f.name)
		}
		_, err := cascadia.ParseGroup(f.selector)
		if err != nil {
			return fmt.Errorf("selector %s (%q): %w", f.name, f.selector, err)
		}
	}
	return nil
}
