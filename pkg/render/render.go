// Package render turns a snapshot into a static Leaflet map document.
package render

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/NERVsystems/poimap/pkg/geo"
	"github.com/NERVsystems/poimap/pkg/osm"
	"github.com/NERVsystems/poimap/pkg/tracing"
)

// Marker glyphs, in priority order.
const (
	GlyphWheelchair = "♿"
	GlyphFee        = "💰"
	GlyphDefault    = "🚽"
)

// DefaultTitle is used when Options.Title is empty.
const DefaultTitle = "Public Toilets"

// osmBaseLayout is how the data timestamp appears in the page header.
const osmBaseLayout = "2006-01-02 15:04 UTC"

// DefaultCenter is the map center when there are no markers.
var DefaultCenter = geo.Location{Latitude: 59.9139, Longitude: 10.7522}

//go:embed templates/map.html.tmpl
var templateFS embed.FS

var mapTemplate = template.Must(template.ParseFS(templateFS, "templates/map.html.tmpl"))

// Options controls the rendered document.
type Options struct {
	// Title is the page heading.
	Title string
	// SourceName is the snapshot file shown in the header; the snapshot
	// source is used when empty.
	SourceName string
}

// Glyph picks the marker glyph for an element: wheelchair=yes wins over
// fee=yes, which wins over the default.
func Glyph(attrs osm.Attributes) string {
	switch {
	case attrs.Value("wheelchair") == "yes":
		return GlyphWheelchair
	case attrs.Value("fee") == "yes":
		return GlyphFee
	default:
		return GlyphDefault
	}
}

// Marker is one point placed on the map.
type Marker struct {
	ID    int64          `json:"id"`
	Lat   float64        `json:"lat"`
	Lon   float64        `json:"lon"`
	Glyph string         `json:"glyph"`
	Tags  osm.Attributes `json:"tags"`
}

// Markers returns one marker per point element, in snapshot order. Areas
// are not placed on the map.
func Markers(s *osm.Snapshot) []Marker {
	markers := make([]Marker, 0, s.Len())
	for _, el := range s.Elements() {
		p, ok := el.Point()
		if !ok {
			continue
		}
		markers = append(markers, Marker{
			ID:    el.ID,
			Lat:   p.Location.Latitude,
			Lon:   p.Location.Longitude,
			Glyph: Glyph(el.Attributes),
			Tags:  el.Attributes,
		})
	}
	return markers
}

// MarkerBounds returns the box enclosing all markers, or false when there
// are none.
func MarkerBounds(markers []Marker) (geo.BoundingBox, bool) {
	b := geo.NewBoundingBox()
	for _, m := range markers {
		b.Extend(geo.Location{Latitude: m.Lat, Longitude: m.Lon})
	}
	if b.Empty() {
		return geo.BoundingBox{}, false
	}
	return *b, true
}

// Filter choices. The empty string and "all" both disable a filter.
const (
	FilterAll = "all"

	WheelchairYes     = "yes"
	WheelchairNo      = "no"
	WheelchairLimited = "limited"

	FeeFree = "free"
	FeePaid = "paid"
)

// Filter mirrors the three selectors of the page. The page runs the same
// rules in the browser; conditions combine with logical AND.
type Filter struct {
	Wheelchair string // yes, no, limited
	Fee        string // free, paid
	Access     string // any access value, e.g. yes, customers, private
}

func enabled(choice string) bool {
	return choice != "" && choice != FilterAll
}

// Matches reports whether attrs passes every enabled condition.
func (f Filter) Matches(attrs osm.Attributes) bool {
	wheelchair := attrs.Value("wheelchair")
	switch f.Wheelchair {
	case WheelchairYes:
		if wheelchair != "yes" {
			return false
		}
	case WheelchairNo:
		if wheelchair == "yes" {
			return false
		}
	case WheelchairLimited:
		if wheelchair != "limited" {
			return false
		}
	}

	fee := attrs.Value("fee")
	switch f.Fee {
	case FeeFree:
		if fee == "yes" {
			return false
		}
	case FeePaid:
		if fee != "yes" {
			return false
		}
	}

	if enabled(f.Access) && attrs.Value("access") != f.Access {
		return false
	}
	return true
}

// Apply returns the markers that f matches.
func (f Filter) Apply(markers []Marker) []Marker {
	out := make([]Marker, 0, len(markers))
	for _, m := range markers {
		if f.Matches(m.Tags) {
			out = append(out, m)
		}
	}
	return out
}

// DataTimestamp formats the upstream data time for the header.
func DataTimestamp(meta osm.Metadata) string {
	if meta.OSMBase.IsZero() {
		return "Unknown"
	}
	return meta.OSMBase.UTC().Format(osmBaseLayout)
}

type page struct {
	Title         string
	SourceName    string
	DataTimestamp string
	GeneratedAt   string
	Total         int
	Wheelchair    int
	Document      json.RawMessage
	Markers       []Marker
	Bounds        *jsBounds // nil keeps the default view
	Center        geo.Location
}

// jsBounds has the fields of geo.BoundingBox but none of its methods, so
// the script escaper encodes it as a JSON object instead of calling String.
type jsBounds geo.BoundingBox

// Render writes the map document for s to w.
func Render(w io.Writer, s *osm.Snapshot, opts Options) error {
	return RenderContext(context.Background(), w, s, opts)
}

// RenderContext is Render inside a "render.map" span.
func RenderContext(ctx context.Context, w io.Writer, s *osm.Snapshot, opts Options) error {
	ctx, span := tracing.StartSpan(ctx, "render.map")
	defer span.End()

	markers := Markers(s)
	p := page{
		Title:         opts.Title,
		SourceName:    opts.SourceName,
		DataTimestamp: DataTimestamp(s.Metadata()),
		GeneratedAt:   time.Now().UTC().Format(osmBaseLayout),
		Total:         len(markers),
		Wheelchair:    len(Filter{Wheelchair: WheelchairYes}.Apply(markers)),
		Document:      json.RawMessage(s.Raw()),
		Markers:       markers,
		Center:        DefaultCenter,
	}
	if p.Title == "" {
		p.Title = DefaultTitle
	}
	if p.SourceName == "" && s.Metadata().Source != "" {
		p.SourceName = filepath.Base(s.Metadata().Source)
	}
	if b, ok := MarkerBounds(markers); ok {
		jb := jsBounds(b)
		p.Bounds = &jb
	}

	span.SetAttributes(attribute.Int(tracing.AttrMarkerCount, len(markers)))

	// Render into a buffer so a template error never leaves half a page
	var buf bytes.Buffer
	if err := mapTemplate.Execute(&buf, p); err != nil {
		tracing.Fail(ctx, err, "template failed")
		return fmt.Errorf("rendering map: %w", err)
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		tracing.Fail(ctx, err, "write failed")
		return fmt.Errorf("writing map: %w", err)
	}
	return nil
}
