// Package queries provides utilities for building OpenStreetMap API queries.
package queries

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/NERVsystems/poimap/pkg/geo"
)

const (
	// DefaultTimeout is the server-side [timeout:N] setting in seconds.
	DefaultTimeout = 25

	// DefaultOutput asks Overpass to inline way geometry and bounds.
	DefaultOutput = "geom"

	// searchAreaSet is the named set an area expression is stored into.
	searchAreaSet = "searchArea"
)

// DefaultBBox is the Oslo window used when no target is given.
var DefaultBBox = geo.BoundingBox{MinLat: 59.7, MinLon: 10.6, MaxLat: 60.0, MaxLon: 11.0}

// Target is where a query looks: either a rectangular window or a named-area
// expression such as area["ISO3166-1"="NO"]. Exactly one is set.
type Target struct {
	BBox *geo.BoundingBox `json:"bbox,omitempty"`
	Area string           `json:"area,omitempty"`
}

// BBoxTarget returns a target bounded by b.
func BBoxTarget(b geo.BoundingBox) Target {
	return Target{BBox: &b}
}

// AreaTarget returns a target bounded by the area expression expr.
func AreaTarget(expr string) Target {
	return Target{Area: strings.TrimSpace(expr)}
}

// ParseTarget accepts either "south,west,north,east" or an area expression.
// An empty string yields the zero Target.
func ParseTarget(s string) (Target, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Target{}, nil
	}
	if strings.HasPrefix(s, "area") || strings.ContainsAny(s, "[=\"") {
		t := AreaTarget(s)
		return t, t.Validate()
	}
	b, err := geo.ParseBoundingBox(s)
	if err != nil {
		return Target{}, err
	}
	return BBoxTarget(b), nil
}

// IsZero reports whether neither a window nor an area is set.
func (t Target) IsZero() bool {
	return t.BBox == nil && t.Area == ""
}

// OrDefault returns t, or the default Oslo window when t is zero.
func (t Target) OrDefault() Target {
	if t.IsZero() {
		return BBoxTarget(DefaultBBox)
	}
	return t
}

// IsDefault reports whether t is the default Oslo window.
func (t Target) IsDefault() bool {
	return t.BBox != nil && *t.BBox == DefaultBBox
}

// Validate checks that exactly one of BBox and Area is set and that it is
// usable in a query.
func (t Target) Validate() error {
	switch {
	case t.BBox != nil && t.Area != "":
		return fmt.Errorf("target must be either a bounding box or an area, not both")
	case t.BBox != nil:
		return t.BBox.Validate()
	case t.Area != "":
		if strings.ContainsAny(t.Area, ";\x00\r\n") {
			return fmt.Errorf("area expression contains invalid characters")
		}
		if !strings.HasPrefix(t.Area, "area") {
			return fmt.Errorf("area expression must start with \"area\", got %q", t.Area)
		}
		return nil
	default:
		return fmt.Errorf("target is empty")
	}
}

// LocationName is the short label used in default file names.
func (t Target) LocationName() string {
	switch {
	case t.IsDefault():
		return "oslo"
	case t.BBox != nil:
		return "custom_bbox"
	case strings.Contains(t.Area, `ISO3166-1"="NO"`):
		return "norway"
	default:
		return "custom_area"
	}
}

// String returns the target the way a user would type it.
func (t Target) String() string {
	if t.BBox != nil {
		return t.BBox.String()
	}
	return t.Area
}

// TagFilter selects elements carrying Key, optionally with exactly Value.
type TagFilter struct {
	Key   string
	Value string
}

// OverpassBuilder provides a fluent interface for building Overpass API queries.
// The defaults select nodes and ways and request inline geometry.
type OverpassBuilder struct {
	timeout      int
	output       string
	elementTypes []string
	tags         []TagFilter
	target       Target
}

// NewOverpassBuilder creates a new Overpass query builder with initial settings.
// All queries request [out:json] output.
func NewOverpassBuilder() *OverpassBuilder {
	return &OverpassBuilder{
		timeout:      DefaultTimeout,
		output:       DefaultOutput,
		elementTypes: []string{"node", "way"},
	}
}

// WithTimeout sets the server-side query timeout in seconds.
func (b *OverpassBuilder) WithTimeout(seconds int) *OverpassBuilder {
	b.timeout = seconds
	return b
}

// WithOutput sets the output verbosity (geom, body, center, ...).
func (b *OverpassBuilder) WithOutput(output string) *OverpassBuilder {
	b.output = output
	return b
}

// WithElementTypes replaces the element types that are selected.
func (b *OverpassBuilder) WithElementTypes(types ...string) *OverpassBuilder {
	b.elementTypes = types
	return b
}

// WithTag adds a tag filter. An empty value only requires the key.
func (b *OverpassBuilder) WithTag(key, value string) *OverpassBuilder {
	b.tags = append(b.tags, TagFilter{Key: key, Value: value})
	return b
}

// In sets the spatial target.
func (b *OverpassBuilder) In(t Target) *OverpassBuilder {
	b.target = t
	return b
}

// Build returns the complete Overpass query string.
func (b *OverpassBuilder) Build() string {
	var q strings.Builder

	fmt.Fprintf(&q, "[out:json][timeout:%d];", b.timeout)

	spatial := ""
	switch {
	case b.target.BBox != nil:
		bb := b.target.BBox
		spatial = fmt.Sprintf("(%s,%s,%s,%s)",
			formatCoord(bb.MinLat), formatCoord(bb.MinLon),
			formatCoord(bb.MaxLat), formatCoord(bb.MaxLon))
	case b.target.Area != "":
		fmt.Fprintf(&q, "%s->.%s;", b.target.Area, searchAreaSet)
		spatial = fmt.Sprintf("(area.%s)", searchAreaSet)
	}

	filters := b.tagFilters()

	q.WriteString("(")
	for _, et := range b.elementTypes {
		q.WriteString(et)
		q.WriteString(filters)
		q.WriteString(spatial)
		q.WriteString(";")
	}
	q.WriteString(");")

	fmt.Fprintf(&q, "out %s;", b.output)
	return q.String()
}

func (b *OverpassBuilder) tagFilters() string {
	var sb strings.Builder
	for _, tag := range b.tags {
		if tag.Value == "" {
			fmt.Fprintf(&sb, "[%s]", quote(tag.Key))
			continue
		}
		fmt.Fprintf(&sb, "[%s=%s]", quote(tag.Key), quote(tag.Value))
	}
	return sb.String()
}

func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
