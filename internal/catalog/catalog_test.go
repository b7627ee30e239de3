package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSlug(t *testing.T) {
	table := []struct {
		label    string
		expected string
	}{
		{label: Electric, expected: "electric"},
		{label: Gasoline, expected: "fuel"},
		{label: Hybrid, expected: "hybrid"},
		{label: PlugIn, expected: "plug-in"},
		{label: RangeExtender, expected: "range-extender"},
		{label: UnknownEnergy, expected: "unknown"},
		{label: "氢燃料", expected: "unknown"},
		{label: "", expected: "unknown"},
	}

	for _, row := range table {
		require.Equal(t, row.expected, Slug(row.label), row.label)
	}
}

func TestFields(t *testing.T) {
	require.Equal(t,
		[]string{"electric_consumption", "battery_capacity", "cltc_recharge_mileage"},
		Default.Fields(Electric),
	)
	require.Nil(t, Default.Fields("氢燃料"))
	require.Len(t, Default.Labels(), 5)
}

func TestSuggest(t *testing.T) {
	label, score := Default.Suggest("纯电动")
	require.Equal(t, Electric, label)
	require.Greater(t, score, 0.0)
}

func TestIdentity(t *testing.T) {
	require.True(t, IsIdentity("ID"))
	require.True(t, IsIdentity(LabelEnergyType))
	require.False(t, IsIdentity("车身结构"))
	require.Equal(t, UnknownEnergy, BucketLabel(""))
	require.Equal(t, Gasoline, BucketLabel(Gasoline))
}
