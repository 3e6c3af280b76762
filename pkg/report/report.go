// Package report prints human-readable summaries of poimap results.
package report

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/NERVsystems/poimap/pkg/analysis"
	"github.com/NERVsystems/poimap/pkg/osm"
	"github.com/NERVsystems/poimap/pkg/store"
)

const (
	rule = "============================================================"

	// PreviewCount is how many elements Preview shows.
	PreviewCount = 3

	// a value list longer than this is cut to truncatedValues
	maxListedValues = 10
	truncatedValues = 8
)

// FetchSummary describes a saved snapshot.
func FetchSummary(w io.Writer, path string, s *osm.Snapshot, size int64) {
	points, areas := s.CountByKind()
	fmt.Fprintf(w, "Saved to: %s\n", path)
	fmt.Fprintf(w, "Found %d locations:\n", s.Len())
	fmt.Fprintf(w, "  - %d point locations (nodes)\n", points)
	fmt.Fprintf(w, "  - %d area locations (ways)\n", areas)
	Skipped(w, s)
	fmt.Fprintf(w, "File size: %d bytes\n", size)
}

// Skipped lists the malformed elements left out of s. It prints nothing
// when there are none.
func Skipped(w io.Writer, s *osm.Snapshot) {
	skipped := s.Skipped()
	if len(skipped) == 0 {
		return
	}
	fmt.Fprintf(w, "Skipped %d malformed elements:\n", len(skipped))
	for _, m := range skipped {
		fmt.Fprintf(w, "  - %s\n", m)
	}
}

// Preview prints the first n elements with their attributes, leaving out
// skipKey (the tag every element was selected by).
func Preview(w io.Writer, s *osm.Snapshot, n int, skipKey string) {
	elements := s.Elements()
	if len(elements) == 0 {
		fmt.Fprintln(w, "No data to preview")
		return
	}
	if n > len(elements) {
		n = len(elements)
	}

	fmt.Fprintf(w, "\nPreview of first %d locations:\n", n)
	for i, el := range elements[:n] {
		fmt.Fprintf(w, "\n--- Location %d ---\n", i+1)
		fmt.Fprintf(w, "Type: %s\n", el.Kind().SourceType())
		fmt.Fprintf(w, "ID: %d\n", el.ID)
		if p, ok := el.Point(); ok {
			fmt.Fprintf(w, "Coordinates: %g, %g\n", p.Location.Latitude, p.Location.Longitude)
		}
		if el.Attributes.Len() == 0 {
			continue
		}
		fmt.Fprintln(w, "Attributes:")
		el.Attributes.Each(func(name, value string) {
			if name != skipKey {
				fmt.Fprintf(w, "  %s: %s\n", name, value)
			}
		})
	}
}

// TagsSummary prints the inventory with the most varied attributes first.
func TagsSummary(w io.Writer, inv analysis.Inventory) {
	fmt.Fprintf(w, "\n%s\nTAG ANALYSIS SUMMARY\n%s\n", rule, rule)
	fmt.Fprintf(w, "Total unique tags found: %d\n", len(inv))

	names := inv.Names()
	sort.SliceStable(names, func(i, j int) bool {
		return len(inv[names[i]]) > len(inv[names[j]])
	})

	fmt.Fprintf(w, "\nTags sorted by number of unique values:\n%s\n", strings.Repeat("-", 40))
	for _, name := range names {
		values := inv[name]
		fmt.Fprintf(w, "\n%s: (%d unique values)\n", name, len(values))
		shown := values
		if len(values) > maxListedValues {
			shown = values[:truncatedValues]
		}
		for _, v := range shown {
			fmt.Fprintf(w, "  - %s\n", v)
		}
		if len(shown) < len(values) {
			fmt.Fprintf(w, "  ... and %d more values\n", len(values)-len(shown))
		}
	}
}

// ExtentSummary prints the largest area and the areas without bounds.
func ExtentSummary(w io.Writer, total int, r analysis.ExtentReport) {
	fmt.Fprintf(w, "Total elements: %d\n", total)
	fmt.Fprintf(w, "\nWay objects found: %d\n", r.WayCount)
	fmt.Fprintf(w, "Way objects without bounds: %d\n", len(r.Incomplete))

	if l := r.Largest; l != nil {
		fmt.Fprintf(w, "\nLargest area found: %.10f square degrees\n", l.Extent)
		fmt.Fprintf(w, "Largest area object ID: %d\n", l.ID)
		fmt.Fprintln(w, "Largest area object bounds:")
		fmt.Fprintf(w, "  Min lat: %g\n", l.Bounds.MinLat)
		fmt.Fprintf(w, "  Max lat: %g\n", l.Bounds.MaxLat)
		fmt.Fprintf(w, "  Min lon: %g\n", l.Bounds.MinLon)
		fmt.Fprintf(w, "  Max lon: %g\n", l.Bounds.MaxLon)
		fmt.Fprintf(w, "  Lat difference: %.10f\n", l.Bounds.MaxLat-l.Bounds.MinLat)
		fmt.Fprintf(w, "  Lon difference: %.10f\n", l.Bounds.MaxLon-l.Bounds.MinLon)
		if l.Attributes.Len() > 0 {
			fmt.Fprintf(w, "  Tags: %s\n", formatAttributes(l.Attributes))
		}
	} else {
		fmt.Fprintln(w, "\nNo way objects with valid bounds found.")
	}

	if len(r.Incomplete) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s\nWAY OBJECTS WITHOUT BOUNDS:\n%s\n", rule, rule)
	for i, a := range r.Incomplete {
		fmt.Fprintf(w, "\nObject %d:\n", i+1)
		fmt.Fprintf(w, "  ID: %d\n", a.ID)
		fmt.Fprintf(w, "  Bounds: %s\n", a.Status)
		if a.Attributes.Len() > 0 {
			fmt.Fprintf(w, "  Tags: %s\n", formatAttributes(a.Attributes))
		}
		fmt.Fprintf(w, "  Geometry points: %d\n", a.Vertices)
	}
}

// CompareSummary prints the difference between two inventories.
func CompareSummary(w io.Writer, a, b string, d analysis.InventoryDiff) {
	if d.Equal() {
		fmt.Fprintf(w, "%s and %s have identical attribute inventories\n", a, b)
		return
	}
	fmt.Fprintf(w, "Attribute inventory changes from %s to %s:\n", a, b)
	for _, name := range d.AddedNames {
		fmt.Fprintf(w, "  + %s\n", name)
	}
	for _, name := range d.RemovedNames {
		fmt.Fprintf(w, "  - %s\n", name)
	}
	for _, name := range sortedKeys(d.AddedValues, d.RemovedValues) {
		fmt.Fprintf(w, "  ~ %s:", name)
		for _, v := range d.AddedValues[name] {
			fmt.Fprintf(w, " +%q", v)
		}
		for _, v := range d.RemovedValues[name] {
			fmt.Fprintf(w, " -%q", v)
		}
		fmt.Fprintln(w)
	}
}

func sortedKeys(maps ...map[string][]string) []string {
	seen := make(map[string]struct{})
	var keys []string
	for _, m := range maps {
		for k := range m {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				keys = append(keys, k)
			}
		}
	}
	sort.Strings(keys)
	return keys
}

func formatAttributes(a osm.Attributes) string {
	parts := make([]string, 0, a.Len())
	a.Each(func(name, value string) {
		parts = append(parts, name+"="+value)
	})
	return strings.Join(parts, ", ")
}

// Describe turns any command error into one line for the user.
func Describe(err error) string {
	return strings.Join(strings.Fields(describe(err)), " ")
}

func describe(err error) string {
	var (
		fetchErr  *osm.FetchError
		schemaErr *osm.SchemaError
		fileErr   *store.FileAccessError
		ambiguous *store.AmbiguousSnapshotError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &fetchErr):
		return "Request failed: " + fetchErr.Error()
	case errors.As(err, &fileErr):
		if g := fileErr.Guidance(); g != "" {
			return fmt.Sprintf("Error: %v. %s", fileErr, g)
		}
		return "Error: " + fileErr.Error()
	case errors.As(err, &schemaErr):
		return "Error: not a snapshot file: " + err.Error()
	case errors.As(err, &ambiguous):
		return "Error: " + ambiguous.Error()
	case errors.Is(err, store.ErrNoSnapshot):
		return "Error: " + err.Error() + ". Run fetch first or name a snapshot file."
	default:
		return "Error: " + err.Error()
	}
}
