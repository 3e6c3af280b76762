// Package analysis runs aggregate scans over a snapshot.
package analysis

import (
	"context"
	"sort"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"

	"github.com/NERVsystems/poimap/pkg/osm"
	"github.com/NERVsystems/poimap/pkg/tracing"
)

// Inventory maps each attribute name to its distinct values, sorted in byte
// order. encoding/json writes the names sorted as well.
type Inventory map[string][]string

// Names returns the attribute names in sorted order.
func (inv Inventory) Names() []string {
	names := lo.Keys(inv)
	sort.Strings(names)
	return names
}

// AttributeInventory collects every attribute name in s with the set of
// values it takes. Elements without attributes contribute nothing.
func AttributeInventory(ctx context.Context, s *osm.Snapshot) Inventory {
	_, span := tracing.StartSpan(ctx, "analysis.inventory")
	defer span.End()

	sets := make(map[string]map[string]struct{})
	for _, el := range s.Elements() {
		el.Attributes.Each(func(name, value string) {
			values, ok := sets[name]
			if !ok {
				values = make(map[string]struct{})
				sets[name] = values
			}
			values[value] = struct{}{}
		})
	}

	inv := make(Inventory, len(sets))
	for name, values := range sets {
		list := lo.Keys(values)
		sort.Strings(list)
		inv[name] = list
	}

	span.SetAttributes(attribute.Int(tracing.AttrAttributeCount, len(inv)))
	return inv
}

// InventoryDiff is the difference between two inventories.
type InventoryDiff struct {
	AddedNames    []string            `json:"added_names,omitempty"`
	RemovedNames  []string            `json:"removed_names,omitempty"`
	AddedValues   map[string][]string `json:"added_values,omitempty"`
	RemovedValues map[string][]string `json:"removed_values,omitempty"`
}

// Equal reports whether both inventories had the same names and values.
func (d InventoryDiff) Equal() bool {
	return len(d.AddedNames) == 0 && len(d.RemovedNames) == 0 &&
		len(d.AddedValues) == 0 && len(d.RemovedValues) == 0
}

// CompareInventories reports what b has that a lacks (added) and what a has
// that b lacks (removed). Values are compared only for names in both.
func CompareInventories(a, b Inventory) InventoryDiff {
	var d InventoryDiff

	d.AddedNames = lo.Filter(b.Names(), func(name string, _ int) bool {
		_, ok := a[name]
		return !ok
	})
	d.RemovedNames = lo.Filter(a.Names(), func(name string, _ int) bool {
		_, ok := b[name]
		return !ok
	})

	for _, name := range a.Names() {
		bv, ok := b[name]
		if !ok {
			continue
		}
		removed, added := lo.Difference(a[name], bv)
		if len(added) > 0 {
			if d.AddedValues == nil {
				d.AddedValues = make(map[string][]string)
			}
			d.AddedValues[name] = added
		}
		if len(removed) > 0 {
			if d.RemovedValues == nil {
				d.RemovedValues = make(map[string][]string)
			}
			d.RemovedValues[name] = removed
		}
	}
	return d
}
