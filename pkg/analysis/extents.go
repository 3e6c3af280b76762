package analysis

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel/attribute"

	"github.com/NERVsystems/poimap/pkg/geo"
	"github.com/NERVsystems/poimap/pkg/osm"
	"github.com/NERVsystems/poimap/pkg/tracing"
)

// Extent is the area element with the largest bounding box.
type Extent struct {
	ID         int64           `json:"id"`
	Extent     float64         `json:"extent"`
	Bounds     geo.BoundingBox `json:"bounds"`
	Attributes osm.Attributes  `json:"tags"`
}

// overpassBounds spells the box keys the way snapshot files do.
type overpassBounds struct {
	MinLat float64 `json:"minlat"`
	MinLon float64 `json:"minlon"`
	MaxLat float64 `json:"maxlat"`
	MaxLon float64 `json:"maxlon"`
}

// MarshalJSON writes Bounds with the same keys as the snapshot's bounds
// objects.
func (e Extent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID         int64          `json:"id"`
		Extent     float64        `json:"extent"`
		Bounds     overpassBounds `json:"bounds"`
		Attributes osm.Attributes `json:"tags"`
	}{e.ID, e.Extent, overpassBounds(e.Bounds), e.Attributes})
}

// IncompleteArea is an area element without a usable bounding box.
type IncompleteArea struct {
	ID         int64            `json:"id"`
	Status     osm.BoundsStatus `json:"status"`
	Vertices   int              `json:"geometry_points"`
	Attributes osm.Attributes   `json:"tags"`
}

// ExtentReport is the result of ExtentExtremes.
type ExtentReport struct {
	WayCount   int              `json:"way_count"`
	Incomplete []IncompleteArea `json:"incomplete"`
	Largest    *Extent          `json:"max_extent,omitempty"`
}

// ExtentExtremes finds the area element with the largest planar extent.
// Areas with a missing or partial bounding box are listed as incomplete and
// never compared. Ties keep the first element; a zero extent still counts.
func ExtentExtremes(ctx context.Context, s *osm.Snapshot) ExtentReport {
	_, span := tracing.StartSpan(ctx, "analysis.extents")
	defer span.End()

	report := ExtentReport{Incomplete: []IncompleteArea{}}
	for _, el := range s.Elements() {
		area, ok := el.Area()
		if !ok {
			continue
		}
		report.WayCount++

		if area.BoundsStatus != osm.BoundsComplete || area.Bounds == nil {
			report.Incomplete = append(report.Incomplete, IncompleteArea{
				ID:         el.ID,
				Status:     area.BoundsStatus,
				Vertices:   len(area.Vertices),
				Attributes: el.Attributes,
			})
			continue
		}

		extent := area.Bounds.PlanarExtent()
		if report.Largest == nil || extent > report.Largest.Extent {
			report.Largest = &Extent{
				ID:         el.ID,
				Extent:     extent,
				Bounds:     *area.Bounds,
				Attributes: el.Attributes,
			}
		}
	}

	span.SetAttributes(
		attribute.Int(tracing.AttrElementCount, report.WayCount),
		attribute.Int(tracing.AttrIncomplete, len(report.Incomplete)),
	)
	return report
}
