package osm

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/NERVsystems/poimap/pkg/geo"
	"github.com/NERVsystems/poimap/pkg/osm/queries"
)

// Kind distinguishes point elements from area elements.
type Kind int

const (
	KindPoint Kind = iota + 1 // Overpass "node"
	KindArea                  // Overpass "way"
)

// String returns the kind name
func (k Kind) String() string {
	switch k {
	case KindPoint:
		return "point"
	case KindArea:
		return "area"
	default:
		return "unknown"
	}
}

// SourceType returns the Overpass element type for the kind.
func (k Kind) SourceType() string {
	switch k {
	case KindPoint:
		return "node"
	case KindArea:
		return "way"
	default:
		return ""
	}
}

// kindFromSourceType maps an Overpass type to a Kind.
func kindFromSourceType(t string) (Kind, bool) {
	switch t {
	case "node":
		return KindPoint, true
	case "way":
		return KindArea, true
	default:
		return 0, false
	}
}

// Geometry is the kind-specific payload of an element: Point or Area.
type Geometry interface {
	Kind() Kind
}

// Point is the geometry of a node.
type Point struct {
	Location geo.Location
}

// Kind implements Geometry.
func (Point) Kind() Kind { return KindPoint }

// BoundsStatus tells whether an area carries a usable bounding box.
type BoundsStatus int

const (
	BoundsComplete BoundsStatus = iota
	BoundsMissing               // no bounds object at all
	BoundsPartial               // bounds present but a required key is absent
)

// String returns the status name
func (s BoundsStatus) String() string {
	switch s {
	case BoundsComplete:
		return "complete"
	case BoundsMissing:
		return "missing"
	case BoundsPartial:
		return "partial"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s BoundsStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Area is the geometry of a way. Bounds is nil unless BoundsStatus is
// BoundsComplete.
type Area struct {
	Vertices     []geo.Location
	Bounds       *geo.BoundingBox
	BoundsStatus BoundsStatus
}

// Kind implements Geometry.
func (Area) Kind() Kind { return KindArea }

// Element is one retrieved point-of-interest record.
type Element struct {
	ID         int64
	Geometry   Geometry
	Attributes Attributes

	raw json.RawMessage
}

// NewElement builds an element. It is intended for tests and for callers
// assembling snapshots by hand; Parse is the normal constructor.
func NewElement(id int64, g Geometry, attrs Attributes) Element {
	return Element{ID: id, Geometry: g, Attributes: attrs}
}

// Kind returns the element kind.
func (e Element) Kind() Kind {
	if e.Geometry == nil {
		return 0
	}
	return e.Geometry.Kind()
}

// Point returns the point geometry when e is a point.
func (e Element) Point() (Point, bool) {
	p, ok := e.Geometry.(Point)
	return p, ok
}

// Area returns the area geometry when e is an area.
func (e Element) Area() (Area, bool) {
	a, ok := e.Geometry.(Area)
	return a, ok
}

// Raw returns the element JSON exactly as received, or nil for hand-built
// elements.
func (e Element) Raw() json.RawMessage {
	return e.raw
}

// MarshalJSON writes the raw element when present, otherwise the Overpass
// shape of the element.
func (e Element) MarshalJSON() ([]byte, error) {
	if e.raw != nil {
		return e.raw, nil
	}

	out := struct {
		Type     string           `json:"type"`
		ID       int64            `json:"id"`
		Lat      *float64         `json:"lat,omitempty"`
		Lon      *float64         `json:"lon,omitempty"`
		Bounds   *wireBounds      `json:"bounds,omitempty"`
		Geometry []wireCoordinate `json:"geometry,omitempty"`
		Tags     *Attributes      `json:"tags,omitempty"`
	}{
		Type: e.Kind().SourceType(),
		ID:   e.ID,
	}

	switch g := e.Geometry.(type) {
	case Point:
		out.Lat = &g.Location.Latitude
		out.Lon = &g.Location.Longitude
	case Area:
		for _, v := range g.Vertices {
			out.Geometry = append(out.Geometry, wireCoordinate{Lat: v.Latitude, Lon: v.Longitude})
		}
		if g.Bounds != nil {
			out.Bounds = &wireBounds{
				MinLat: &g.Bounds.MinLat,
				MinLon: &g.Bounds.MinLon,
				MaxLat: &g.Bounds.MaxLat,
				MaxLon: &g.Bounds.MaxLon,
			}
		}
	}
	if e.Attributes.Len() > 0 {
		out.Tags = &e.Attributes
	}
	return json.Marshal(out)
}

// Metadata describes where a snapshot came from.
type Metadata struct {
	// Query is the Overpass QL sent upstream. Empty for loaded files.
	Query string `json:"query,omitempty"`
	// Target is the spatial scope of the query. Zero for loaded files.
	Target queries.Target `json:"target,omitempty"`
	// CapturedAt is the fetch time, or the file modification time.
	CapturedAt time.Time `json:"captured_at"`
	// Source is the file the snapshot was read from.
	Source string `json:"source,omitempty"`
	// Generator and OSMBase are copied from the upstream response.
	Generator string    `json:"generator,omitempty"`
	OSMBase   time.Time `json:"osm_base,omitempty"`
}

// Snapshot is an immutable, ordered collection of elements plus metadata.
type Snapshot struct {
	meta     Metadata
	elements []Element
	skipped  []*MalformedElementError
	raw      []byte
}

// NewSnapshot assembles a snapshot from already-built elements. The raw
// document is synthesised as {"elements":[...]} from each element's JSON.
func NewSnapshot(meta Metadata, elements []Element) (*Snapshot, error) {
	raw, err := json.Marshal(struct {
		Elements []Element `json:"elements"`
	}{Elements: elements})
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	return &Snapshot{
		meta:     meta,
		elements: slices.Clone(elements),
		raw:      raw,
	}, nil
}

// Metadata returns the retrieval metadata.
func (s *Snapshot) Metadata() Metadata {
	return s.meta
}

// Elements returns a copy of the elements in snapshot order.
func (s *Snapshot) Elements() []Element {
	return slices.Clone(s.elements)
}

// Len returns the number of valid elements.
func (s *Snapshot) Len() int {
	return len(s.elements)
}

// Skipped returns the malformed records that Parse refused.
func (s *Snapshot) Skipped() []*MalformedElementError {
	return slices.Clone(s.skipped)
}

// Raw returns a copy of the document the snapshot was parsed from.
func (s *Snapshot) Raw() []byte {
	return slices.Clone(s.raw)
}

// CountByKind returns how many points and areas the snapshot holds.
func (s *Snapshot) CountByKind() (points, areas int) {
	for _, e := range s.elements {
		switch e.Kind() {
		case KindPoint:
			points++
		case KindArea:
			areas++
		}
	}
	return points, areas
}

// WithSource returns a copy of s whose metadata records the file it lives in.
func (s *Snapshot) WithSource(path string, modTime time.Time) *Snapshot {
	c := *s
	c.meta.Source = path
	if c.meta.CapturedAt.IsZero() {
		c.meta.CapturedAt = modTime
	}
	return &c
}
