// Package record defines the vehicle record a comparison page column is
// turned into: a fixed identity plus the attributes discovered on the page.
package record

import (
	"strconv"

	"carparams/internal/catalog"
)

// Identity holds the fields every record carries.
type Identity struct {
	// SourceID is the dongchedi car id the record was fetched for, 0 until tagged.
	SourceID   int
	ModelName  string
	Price      string
	EnergyType string
}

// Attributes is a string to string mapping that remembers insertion order.
type Attributes struct {
	keys   []string
	values map[string]string
}

func (a *Attributes) Set(key, value string) {
	if a.values == nil {
		a.values = map[string]string{}
	}
	if _, exists := a.values[key]; !exists {
		a.keys = append(a.keys, key)
	}
	a.values[key] = value
}

func (a Attributes) Get(key string) (string, bool) {
	value, ok := a.values[key]
	return value, ok
}

func (a Attributes) Has(key string) bool {
	_, ok := a.values[key]
	return ok
}

// Keys returns the keys in the order they were first set.
func (a Attributes) Keys() []string {
	return append([]string(nil), a.keys...)
}

func (a Attributes) Len() int {
	return len(a.keys)
}

func (a Attributes) clone() Attributes {
	out := Attributes{
		keys:   append([]string(nil), a.keys...),
		values: make(map[string]string, len(a.values)),
	}
	for k, v := range a.values {
		out.values[k] = v
	}
	return out
}

// Vehicle is a single trim of a comparison page.
type Vehicle struct {
	Identity
	Attributes Attributes
}

// New returns a vehicle with the identity sentinels set.
func New() Vehicle {
	return Vehicle{
		Identity: Identity{
			ModelName: catalog.UnknownModel,
			Price:     catalog.NotAvailable,
		},
	}
}

// Set assigns `value` to `label`, identity labels are stored on the identity.
func (v *Vehicle) Set(label, value string) {
	switch label {
	case catalog.LabelID:
		id, err := strconv.Atoi(value)
		if err == nil {
			v.SourceID = id
		}
	case catalog.LabelModelName:
		v.ModelName = value
	case catalog.LabelPrice:
		v.Price = value
	case catalog.LabelEnergyType:
		v.EnergyType = value
	default:
		v.Attributes.Set(label, value)
	}
}

// Get returns the value of any label, identity or discovered.
func (v Vehicle) Get(label string) (string, bool) {
	switch label {
	case catalog.LabelID:
		if v.SourceID == 0 {
			return "", false
		}
		return strconv.Itoa(v.SourceID), true
	case catalog.LabelModelName:
		return v.ModelName, true
	case catalog.LabelPrice:
		return v.Price, true
	case catalog.LabelEnergyType:
		return v.EnergyType, v.EnergyType != ""
	}
	return v.Attributes.Get(label)
}

// Labels returns every label present on the record, identity labels first.
func (v Vehicle) Labels() []string {
	labels := make([]string, 0, len(catalog.IdentityLabels)+v.Attributes.Len())
	for _, label := range catalog.IdentityLabels {
		if _, ok := v.Get(label); ok {
			labels = append(labels, label)
		}
	}
	return append(labels, v.Attributes.Keys()...)
}

// HasModelName reports whether a model name was found on the page.
func (v Vehicle) HasModelName() bool {
	return v.ModelName != "" && v.ModelName != catalog.UnknownModel
}

// Normalize makes sure every catalog key for the vehicle's energy type is
// present, missing ones are set to "N/A".
func (v *Vehicle) Normalize(c catalog.Catalog) {
	for _, field := range c.Fields(v.EnergyType) {
		if !v.Attributes.Has(field) {
			v.Attributes.Set(field, catalog.NotAvailable)
		}
	}
}

// Row renders the vehicle in `columns` order, absent labels are empty.
func (v Vehicle) Row(columns []string) []string {
	row := make([]string, len(columns))
	for i, column := range columns {
		row[i], _ = v.Get(column)
	}
	return row
}

// Clone returns a deep copy of the vehicle.
func (v Vehicle) Clone() Vehicle {
	return Vehicle{Identity: v.Identity, Attributes: v.Attributes.clone()}
}
