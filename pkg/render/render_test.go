package render

import (
	"bytes"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/NERVsystems/poimap/pkg/osm"
)

func TestGlyph(t *testing.T) {
	tests := []struct {
		name  string
		attrs osm.Attributes
		want  string
	}{
		{"wheelchair", osm.NewAttributes("wheelchair", "yes"), GlyphWheelchair},
		{"wheelchair beats fee", osm.NewAttributes("fee", "yes", "wheelchair", "yes"), GlyphWheelchair},
		{"fee", osm.NewAttributes("fee", "yes", "wheelchair", "limited"), GlyphFee},
		{"free", osm.NewAttributes("fee", "no"), GlyphDefault},
		{"no tags", osm.Attributes{}, GlyphDefault},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Glyph(tc.attrs); got != tc.want {
				t.Errorf("Glyph() = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestFilterMatches(t *testing.T) {
	accessible := osm.NewAttributes("wheelchair", "yes", "fee", "no", "access", "yes")
	limited := osm.NewAttributes("wheelchair", "limited", "fee", "yes", "access", "customers")
	bare := osm.Attributes{}

	tests := []struct {
		name   string
		filter Filter
		attrs  osm.Attributes
		want   bool
	}{
		{"zero filter", Filter{}, bare, true},
		{"all", Filter{Wheelchair: FilterAll, Fee: FilterAll, Access: FilterAll}, limited, true},
		{"wheelchair yes", Filter{Wheelchair: WheelchairYes}, accessible, true},
		{"wheelchair yes rejects limited", Filter{Wheelchair: WheelchairYes}, limited, false},
		{"wheelchair no keeps missing tag", Filter{Wheelchair: WheelchairNo}, bare, true},
		{"wheelchair no keeps limited", Filter{Wheelchair: WheelchairNo}, limited, true},
		{"wheelchair no rejects yes", Filter{Wheelchair: WheelchairNo}, accessible, false},
		{"wheelchair limited", Filter{Wheelchair: WheelchairLimited}, limited, true},
		{"free keeps missing fee", Filter{Fee: FeeFree}, bare, true},
		{"free rejects paid", Filter{Fee: FeeFree}, limited, false},
		{"paid", Filter{Fee: FeePaid}, limited, true},
		{"paid rejects missing fee", Filter{Fee: FeePaid}, bare, false},
		{"access equals", Filter{Access: "customers"}, limited, true},
		{"access differs", Filter{Access: "private"}, limited, false},
		{"access missing", Filter{Access: "yes"}, bare, false},
		{"combined and", Filter{Wheelchair: WheelchairYes, Fee: FeePaid}, accessible, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.filter.Matches(tc.attrs); got != tc.want {
				t.Errorf("Matches() = %v, want %v", got, tc.want)
			}
		})
	}
}

const doc = `{"osm3s":{"timestamp_osm_base":"2025-06-23T13:05:59Z"},"elements":[
	{"type":"node","id":1,"lat":59.91,"lon":10.75,"tags":{"wheelchair":"yes","name":"</script><script>alert(1)</script>"}},
	{"type":"node","id":2,"lat":59.95,"lon":10.70,"tags":{"fee":"yes"}},
	{"type":"way","id":3,"bounds":{"minlat":59.9,"minlon":10.7,"maxlat":59.91,"maxlon":10.72}}
]}`

func parse(t *testing.T, s string) *osm.Snapshot {
	t.Helper()
	snap, err := osm.Parse([]byte(s), osm.Metadata{})
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return snap
}

func TestMarkers(t *testing.T) {
	markers := Markers(parse(t, doc))
	if len(markers) != 2 {
		t.Fatalf("expected 2 markers (areas excluded), got %d", len(markers))
	}
	if markers[0].ID != 1 || markers[0].Glyph != GlyphWheelchair {
		t.Errorf("unexpected first marker %+v", markers[0])
	}
	if markers[1].Glyph != GlyphFee {
		t.Errorf("unexpected second glyph %s", markers[1].Glyph)
	}

	b, ok := MarkerBounds(markers)
	if !ok {
		t.Fatal("expected bounds")
	}
	if b.MinLat != 59.91 || b.MaxLat != 59.95 || b.MinLon != 10.70 || b.MaxLon != 10.75 {
		t.Errorf("unexpected bounds %+v", b)
	}

	if _, ok := MarkerBounds(nil); ok {
		t.Error("no markers should yield no bounds")
	}
}

func TestDataTimestamp(t *testing.T) {
	if got := DataTimestamp(osm.Metadata{}); got != "Unknown" {
		t.Errorf("expected Unknown, got %s", got)
	}
	meta := osm.Metadata{OSMBase: time.Date(2025, 6, 23, 13, 5, 59, 0, time.UTC)}
	if got := DataTimestamp(meta); got != "2025-06-23 13:05 UTC" {
		t.Errorf("unexpected timestamp %s", got)
	}
}

func TestRender(t *testing.T) {
	snap := parse(t, doc).WithSource("/data/toilets_oslo_20250623_151225.json", time.Now())

	var buf bytes.Buffer
	if err := Render(&buf, snap, Options{Title: "Oslo Toilets"}); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"<title>Oslo Toilets Map</title>",
		"leaflet/1.9.4/leaflet.js",
		"2025-06-23 13:05 UTC",
		"toilets_oslo_20250623_151225.json",
		GlyphWheelchair,
		GlyphFee,
		`id="total">2<`,
		`id="wheelchair">1<`,
		"map.fitBounds",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}

	if strings.Contains(out, "<script>alert(1)") {
		t.Error("tag values must not be able to close the script element")
	}
	if !regexp.MustCompile(`const bounds =\s*\{"minLat":59\.91,"minLon":10\.7,"maxLat":59\.95,"maxLon":10\.75\}\s*;`).MatchString(out) {
		t.Error("bounds should be embedded as an object")
	}
}

func TestRenderWithoutMarkers(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"empty", `{"elements":[]}`},
		{"areas only", `{"elements":[{"type":"way","id":3,"bounds":{"minlat":59.9,"minlon":10.7,"maxlat":59.91,"maxlon":10.72},"tags":{"amenity":"toilets"}}]}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := Render(&buf, parse(t, tc.doc), Options{}); err != nil {
				t.Fatalf("Render failed: %v", err)
			}
			out := buf.String()
			if !strings.Contains(out, DefaultTitle) {
				t.Error("default title not used")
			}
			if !strings.Contains(out, "Data from: Unknown") {
				t.Error("missing timestamp should read Unknown")
			}
			if !strings.Contains(out, `id="total">0<`) {
				t.Error("expected zero markers")
			}
			if !regexp.MustCompile(`const bounds =\s*null\s*;`).MatchString(out) {
				t.Error("no markers should fall back to the default view")
			}
			if !regexp.MustCompile(`setView\(\[\s*59\.9139\s*,\s*10\.7522\s*\], 12\)`).MatchString(out) {
				t.Error("map should start at the default center")
			}
		})
	}
}
