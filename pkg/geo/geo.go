// Package geo provides the geographic primitives shared by the poimap packages.
package geo

import (
	"fmt"
	"strconv"
	"strings"
)

// Location represents a geographic coordinate in decimal degrees (WGS84).
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// ValidateCoords validates latitude and longitude values
// Returns an error if the coordinates are invalid
func ValidateCoords(lat, lon float64) error {
	if lat < -90 || lat > 90 {
		return fmt.Errorf("invalid latitude: %f (must be between -90 and 90)", lat)
	}
	if lon < -180 || lon > 180 {
		return fmt.Errorf("invalid longitude: %f (must be between -180 and 180)", lon)
	}
	return nil
}

// BoundingBox is an axis-aligned box in decimal degrees.
type BoundingBox struct {
	MinLat float64 `json:"minLat"`
	MinLon float64 `json:"minLon"`
	MaxLat float64 `json:"maxLat"`
	MaxLon float64 `json:"maxLon"`
}

// NewBoundingBox creates an empty bounding box that any call to Extend will
// replace.
func NewBoundingBox() *BoundingBox {
	return &BoundingBox{
		MinLat: 90,
		MinLon: 180,
		MaxLat: -90,
		MaxLon: -180,
	}
}

// ParseBoundingBox parses "south,west,north,east".
func ParseBoundingBox(s string) (BoundingBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return BoundingBox{}, fmt.Errorf("bounding box must have 4 comma separated values (south,west,north,east), got %d", len(parts))
	}

	var vals [4]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return BoundingBox{}, fmt.Errorf("invalid bounding box value %q: %w", p, err)
		}
		vals[i] = v
	}

	b := BoundingBox{MinLat: vals[0], MinLon: vals[1], MaxLat: vals[2], MaxLon: vals[3]}
	if err := b.Validate(); err != nil {
		return BoundingBox{}, err
	}
	return b, nil
}

// Validate checks coordinate ranges and that the minimum corner is south-west
// of the maximum corner.
func (b BoundingBox) Validate() error {
	if err := ValidateCoords(b.MinLat, b.MinLon); err != nil {
		return err
	}
	if err := ValidateCoords(b.MaxLat, b.MaxLon); err != nil {
		return err
	}
	if b.MinLat >= b.MaxLat {
		return fmt.Errorf("south (%f) must be less than north (%f)", b.MinLat, b.MaxLat)
	}
	if b.MinLon >= b.MaxLon {
		return fmt.Errorf("west (%f) must be less than east (%f)", b.MinLon, b.MaxLon)
	}
	return nil
}

// PlanarExtent returns the box area in squared degrees. No latitude
// correction is applied.
func (b BoundingBox) PlanarExtent() float64 {
	return (b.MaxLat - b.MinLat) * (b.MaxLon - b.MinLon)
}

// Contains reports whether loc lies inside the box, edges included.
func (b BoundingBox) Contains(loc Location) bool {
	return loc.Latitude >= b.MinLat && loc.Latitude <= b.MaxLat &&
		loc.Longitude >= b.MinLon && loc.Longitude <= b.MaxLon
}

// Extend grows the box to include loc.
func (b *BoundingBox) Extend(loc Location) {
	if loc.Latitude < b.MinLat {
		b.MinLat = loc.Latitude
	}
	if loc.Latitude > b.MaxLat {
		b.MaxLat = loc.Latitude
	}
	if loc.Longitude < b.MinLon {
		b.MinLon = loc.Longitude
	}
	if loc.Longitude > b.MaxLon {
		b.MaxLon = loc.Longitude
	}
}

// Empty reports whether nothing has been added since NewBoundingBox.
func (b BoundingBox) Empty() bool {
	return b.MinLat > b.MaxLat || b.MinLon > b.MaxLon
}

// Center returns the midpoint of the box.
func (b BoundingBox) Center() Location {
	return Location{
		Latitude:  (b.MinLat + b.MaxLat) / 2,
		Longitude: (b.MinLon + b.MaxLon) / 2,
	}
}

// String formats the box as south,west,north,east.
func (b BoundingBox) String() string {
	return fmt.Sprintf("%g,%g,%g,%g", b.MinLat, b.MinLon, b.MaxLat, b.MaxLon)
}
