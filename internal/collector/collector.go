// Package collector accumulates the records of a run, grouped by the energy
// type they report.
package collector

import (
	"slices"
	"sync"

	"carparams/internal/catalog"
	"carparams/internal/record"
)

// Bucket holds every record that reported the same energy type label.
type Bucket struct {
	// Label is the raw energy type label, "未知" when the page had none.
	Label    string
	Slug     string
	Vehicles []record.Vehicle
}

// Collector is safe for concurrent use.
type Collector struct {
	mutex   sync.Mutex
	order   []string
	buckets map[string][]record.Vehicle
	fields  map[string]struct{}
	total   int
}

func New() *Collector {
	return &Collector{
		buckets: map[string][]record.Vehicle{},
		fields:  map[string]struct{}{},
	}
}

// Add appends vehicles to the bucket of their energy type and records their
// labels in the global field set.
func (c *Collector) Add(vehicles ...record.Vehicle) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	for _, v := range vehicles {
		label := catalog.BucketLabel(v.EnergyType)
		if _, ok := c.buckets[label]; !ok {
			c.order = append(c.order, label)
		}
		c.buckets[label] = append(c.buckets[label], v)
		for _, field := range v.Labels() {
			c.fields[field] = struct{}{}
		}
		c.total++
	}
}

// AddFields unions extra labels into the field set without adding records,
// it is used to carry the schema of previously written files.
func (c *Collector) AddFields(fields ...string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	for _, field := range fields {
		c.fields[field] = struct{}{}
	}
}

// Len returns the number of records added so far.
func (c *Collector) Len() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.total
}

// Columns returns the output column order: the identity labels followed by
// every other label seen, sorted.
func (c *Collector) Columns() []string {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return Columns(c.fields)
}

// Buckets returns a snapshot of the buckets in the order their label was
// first seen.
func (c *Collector) Buckets() []Bucket {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	out := make([]Bucket, 0, len(c.order))
	for _, label := range c.order {
		out = append(out, Bucket{
			Label:    label,
			Slug:     catalog.Slug(label),
			Vehicles: slices.Clone(c.buckets[label]),
		})
	}
	return out
}

// Columns orders a field set the way output files lay out their header.
func Columns(fields map[string]struct{}) []string {
	rest := make([]string, 0, len(fields))
	for field := range fields {
		if catalog.IsIdentity(field) {
			continue
		}
		rest = append(rest, field)
	}
	slices.Sort(rest)
	return append(slices.Clone(catalog.IdentityLabels), rest...)
}
