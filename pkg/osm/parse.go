package osm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/NERVsystems/poimap/pkg/geo"
	"github.com/NERVsystems/poimap/pkg/tracing"
)

// wireCoordinate is one vertex of an Overpass "geometry" list.
type wireCoordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// wireBounds uses pointers so that absent keys can be told apart from zero.
type wireBounds struct {
	MinLat *float64 `json:"minlat"`
	MinLon *float64 `json:"minlon"`
	MaxLat *float64 `json:"maxlat"`
	MaxLon *float64 `json:"maxlon"`
}

func (b *wireBounds) complete() bool {
	return b.MinLat != nil && b.MinLon != nil && b.MaxLat != nil && b.MaxLon != nil
}

type wireElement struct {
	Type     *string          `json:"type"`
	ID       json.RawMessage  `json:"id"`
	Lat      *float64         `json:"lat"`
	Lon      *float64         `json:"lon"`
	Geometry []wireCoordinate `json:"geometry"`
	Bounds   *wireBounds      `json:"bounds"`
	Tags     Attributes       `json:"tags"`
}

type wireOSM3S struct {
	TimestampOSMBase string `json:"timestamp_osm_base"`
}

// Parse validates an Overpass JSON document and builds a Snapshot from it.
//
// A document that is not a JSON object, or lacks an "elements" array, is
// rejected with a *SchemaError. Individual elements without a type or id, or
// otherwise unusable, are recorded as *MalformedElementError on the snapshot
// and skipped.
func Parse(data []byte, meta Metadata) (*Snapshot, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, &SchemaError{Err: err}
	}
	if top == nil {
		return nil, &SchemaError{Err: fmt.Errorf("document is null")}
	}

	rawElements, ok := top["elements"]
	if !ok {
		return nil, &SchemaError{Key: "elements"}
	}
	if bytes.Equal(bytes.TrimSpace(rawElements), []byte("null")) {
		return nil, &SchemaError{Key: "elements", Err: fmt.Errorf("expected an array, got null")}
	}
	var items []json.RawMessage
	if err := json.Unmarshal(rawElements, &items); err != nil {
		return nil, &SchemaError{Key: "elements", Err: err}
	}

	if g, ok := top["generator"]; ok && meta.Generator == "" {
		_ = json.Unmarshal(g, &meta.Generator)
	}
	if o, ok := top["osm3s"]; ok && meta.OSMBase.IsZero() {
		var osm3s wireOSM3S
		if err := json.Unmarshal(o, &osm3s); err == nil && osm3s.TimestampOSMBase != "" {
			if ts, err := time.Parse(time.RFC3339, osm3s.TimestampOSMBase); err == nil {
				meta.OSMBase = ts.UTC()
			}
		}
	}

	snap := &Snapshot{
		meta:     meta,
		elements: make([]Element, 0, len(items)),
		raw:      bytes.Clone(data),
	}

	for i, item := range items {
		el, merr := parseElement(i, item)
		if merr != nil {
			snap.skipped = append(snap.skipped, merr)
			continue
		}
		snap.elements = append(snap.elements, el)
	}

	return snap, nil
}

// ParseContext is Parse wrapped in an "osm.parse" span.
func ParseContext(ctx context.Context, data []byte, meta Metadata) (*Snapshot, error) {
	_, span := tracing.StartSpan(ctx, "osm.parse")
	defer span.End()

	snap, err := Parse(data, meta)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "parse failed")
		return nil, err
	}
	span.SetAttributes(
		attribute.Int(tracing.AttrElementCount, snap.Len()),
		attribute.Int(tracing.AttrMalformedCount, len(snap.skipped)),
	)
	return snap, nil
}

func parseElement(index int, item json.RawMessage) (Element, *MalformedElementError) {
	var w wireElement
	if err := json.Unmarshal(item, &w); err != nil {
		return Element{}, &MalformedElementError{Index: index, Reason: fmt.Sprintf("invalid element: %v", err)}
	}

	if w.Type == nil {
		return Element{}, &MalformedElementError{Index: index, Reason: `missing "type"`}
	}
	typ := *w.Type

	if len(w.ID) == 0 || bytes.Equal(w.ID, []byte("null")) {
		return Element{}, &MalformedElementError{Index: index, Type: typ, Reason: `missing "id"`}
	}
	id, err := strconv.ParseInt(string(w.ID), 10, 64)
	if err != nil {
		return Element{}, &MalformedElementError{Index: index, Type: typ, Reason: fmt.Sprintf("id %s is not an integer", w.ID)}
	}

	kind, ok := kindFromSourceType(typ)
	if !ok {
		return Element{}, &MalformedElementError{Index: index, ID: &id, Type: typ, Reason: fmt.Sprintf("unsupported type %q", typ)}
	}

	el := Element{
		ID:         id,
		Attributes: w.Tags,
		raw:        bytes.Clone(item),
	}

	switch kind {
	case KindPoint:
		if w.Lat == nil || w.Lon == nil {
			return Element{}, &MalformedElementError{Index: index, ID: &id, Type: typ, Reason: "node without lat/lon"}
		}
		el.Geometry = Point{Location: geo.Location{Latitude: *w.Lat, Longitude: *w.Lon}}
	case KindArea:
		el.Geometry = parseArea(w)
	}

	return el, nil
}

func parseArea(w wireElement) Area {
	area := Area{
		Vertices: make([]geo.Location, 0, len(w.Geometry)),
	}
	for _, c := range w.Geometry {
		area.Vertices = append(area.Vertices, geo.Location{Latitude: c.Lat, Longitude: c.Lon})
	}

	switch {
	case w.Bounds == nil:
		area.BoundsStatus = BoundsMissing
	case !w.Bounds.complete():
		area.BoundsStatus = BoundsPartial
	default:
		area.BoundsStatus = BoundsComplete
		area.Bounds = &geo.BoundingBox{
			MinLat: *w.Bounds.MinLat,
			MinLon: *w.Bounds.MinLon,
			MaxLat: *w.Bounds.MaxLat,
			MaxLon: *w.Bounds.MaxLon,
		}
	}
	return area
}
