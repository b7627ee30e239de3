// Package catalog holds the static tables describing energy types: which
// attributes are specific to each type and which file slug each type is
// written to.
package catalog

import (
	"carparams/lib/textutil"
)

// Identity column labels, in output order.
const (
	LabelID         = "ID"
	LabelModelName  = "型号"
	LabelPrice      = "价格"
	LabelEnergyType = "能源类型"
)

// IdentityLabels are the columns every output row starts with.
var IdentityLabels = []string{LabelID, LabelModelName, LabelPrice, LabelEnergyType}

const (
	UnknownModel  = "未知车型"
	NotAvailable  = "N/A"
	UnknownEnergy = "未知"
	UnknownSlug   = "unknown"
)

const (
	Electric      = "纯电"
	Gasoline      = "汽油"
	Hybrid        = "油电混合"
	PlugIn        = "插电式"
	RangeExtender = "增程式"
)

// Catalog maps an energy type label to the attribute keys a record of that
// type must always carry.
type Catalog map[string][]string

// Default is the catalog of the energy types dongchedi lists.
var Default = Catalog{
	Electric:      {"electric_consumption", "battery_capacity", "cltc_recharge_mileage"},
	Gasoline:      {"engine_max_horsepower", "fuel_consumption", "displacement"},
	Hybrid:        {"engine_max_horsepower", "battery_capacity", "electric_consumption"},
	PlugIn:        {"engine_max_horsepower", "battery_capacity", "electric_consumption"},
	RangeExtender: {"range_extender_type", "battery_capacity", "electric_consumption"},
}

var slugs = map[string]string{
	Electric:      "electric",
	Gasoline:      "fuel",
	Hybrid:        "hybrid",
	PlugIn:        "plug-in",
	RangeExtender: "range-extender",
	UnknownEnergy: UnknownSlug,
}

// Fields returns the energy type specific keys of `energyType`, nil for
// labels that are not in the catalog.
func (c Catalog) Fields(energyType string) []string {
	return c[energyType]
}

// Labels returns every energy type label of the catalog.
func (c Catalog) Labels() []string {
	labels := make([]string, 0, len(c))
	for label := range c {
		labels = append(labels, label)
	}
	return labels
}

// Suggest returns the catalog label closest to an unrecognized `energyType`,
// it is only meant for diagnostics, records are never relabeled.
func (c Catalog) Suggest(energyType string) (string, float64) {
	return textutil.Closest(energyType, c.Labels())
}

// Slug returns the file slug of an energy type label, unrecognized and empty
// labels map to "unknown".
func Slug(energyType string) string {
	slug, ok := slugs[energyType]
	if !ok {
		return UnknownSlug
	}
	return slug
}

// BucketLabel returns the label records are grouped under, an empty energy
// type groups as "未知".
func BucketLabel(energyType string) string {
	if energyType == "" {
		return UnknownEnergy
	}
	return energyType
}

// IsIdentity reports whether `label` is one of the identity columns.
func IsIdentity(label string) bool {
	for _, l := range IdentityLabels {
		if l == label {
			return true
		}
	}
	return false
}
