package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleSnapshot = `{
  "version": 0.6,
  "generator": "Overpass API 0.7.62",
  "osm3s": {"timestamp_osm_base": "2025-06-23T13:05:59Z"},
  "elements": [
    {"type": "node", "id": 1, "lat": 59.91, "lon": 10.75, "tags": {"amenity": "toilets", "wheelchair": "yes", "fee": "no"}},
    {"type": "way", "id": 2, "bounds": {"minlat": 59.9, "minlon": 10.7, "maxlat": 59.91, "maxlon": 10.72}, "tags": {"amenity": "toilets"}}
  ]
}`

// setup runs each test in an empty directory with no config file.
func setup(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	t.Setenv("OTLP_ENDPOINT", "")
	return dir
}

func overpass(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.FormValue("data") == "" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	t.Setenv("POIMAP_OVERPASS_URL", srv.URL)
	return srv
}

func writeSnapshot(t *testing.T, name string) {
	t.Helper()
	if err := os.WriteFile(name, []byte(sampleSnapshot), 0o644); err != nil {
		t.Fatal(err)
	}
}

func runCmd(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errb bytes.Buffer
	code = run(args, &out, &errb)
	return code, out.String(), errb.String()
}

func TestFetch(t *testing.T) {
	setup(t)
	overpass(t, http.StatusOK, sampleSnapshot)

	code, out, stderr := runCmd(t, "fetch", "-o", "snap.json")
	if code != 0 {
		t.Fatalf("exit %d, stderr: %s", code, stderr)
	}
	for _, want := range []string{
		"Saved to: snap.json",
		"Found 2 locations",
		"1 point locations",
		"1 area locations",
		"Preview of first 2 locations",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("stdout missing %q:\n%s", want, out)
		}
	}

	data, err := os.ReadFile("snap.json")
	if err != nil {
		t.Fatalf("snapshot not written: %v", err)
	}
	if !strings.Contains(string(data), "\n  \"elements\": [") {
		t.Errorf("snapshot should be indented with two spaces:\n%s", data)
	}
}

func TestFetchDefaultName(t *testing.T) {
	setup(t)
	overpass(t, http.StatusOK, sampleSnapshot)

	if code, _, stderr := runCmd(t, "fetch"); code != 0 {
		t.Fatalf("exit %d, stderr: %s", code, stderr)
	}
	matches, _ := filepath.Glob("toilets_oslo_*.json")
	if len(matches) != 1 {
		t.Errorf("expected one default-named snapshot, got %v", matches)
	}

	if code, _, stderr := runCmd(t, "fetch", "--", "-34.0,18.3,-33.8,18.6"); code != 0 {
		t.Fatalf("exit %d, stderr: %s", code, stderr)
	}
	matches, _ = filepath.Glob("toilets_custom_bbox_*.json")
	if len(matches) != 1 {
		t.Errorf("expected one custom bbox snapshot, got %v", matches)
	}
}

func TestFetchFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		args   []string
		want   string
	}{
		{"rate limited", http.StatusTooManyRequests, "slow down", []string{"fetch"}, "Request failed"},
		{"not json", http.StatusOK, "<html>busy</html>", []string{"fetch"}, "Request failed"},
		{"bad bbox", http.StatusOK, sampleSnapshot, []string{"fetch", "60,11,59,10"}, "invalid query target"},
		{"extra args", http.StatusOK, sampleSnapshot, []string{"fetch", "a", "b"}, "usage: poimap fetch"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			setup(t)
			overpass(t, tc.status, tc.body)

			code, _, stderr := runCmd(t, tc.args...)
			if code != 1 {
				t.Errorf("expected exit 1, got %d", code)
			}
			if !strings.Contains(stderr, tc.want) {
				t.Errorf("stderr %q does not contain %q", stderr, tc.want)
			}
			if matches, _ := filepath.Glob("*.json"); len(matches) != 0 {
				t.Errorf("failed fetch wrote files: %v", matches)
			}
		})
	}
}

func TestTags(t *testing.T) {
	setup(t)
	writeSnapshot(t, "toilets_oslo_20250623_151225.json")

	code, out, stderr := runCmd(t, "tags")
	if code != 0 {
		t.Fatalf("exit %d, stderr: %s", code, stderr)
	}
	if !strings.Contains(out, "Using snapshot: toilets_oslo_20250623_151225.json") {
		t.Errorf("discovered snapshot not reported:\n%s", out)
	}
	if !strings.Contains(out, "Total unique tags found: 3") {
		t.Errorf("unexpected summary:\n%s", out)
	}

	data, err := os.ReadFile("toilets_oslo_20250623_151225_tags_analysis.json")
	if err != nil {
		t.Fatalf("report not written: %v", err)
	}
	want := "{\n  \"amenity\": [\n    \"toilets\"\n  ],\n  \"fee\": [\n    \"no\"\n  ],\n  \"wheelchair\": [\n    \"yes\"\n  ]\n}\n"
	if string(data) != want {
		t.Errorf("report = %s, want %s", data, want)
	}
}

func TestExtents(t *testing.T) {
	setup(t)
	writeSnapshot(t, "snap.json")

	code, out, _ := runCmd(t, "extents", "snap.json")
	if code != 0 {
		t.Fatalf("exit %d", code)
	}
	if !strings.Contains(out, "Largest area object ID: 2") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if _, err := os.Stat("snap_extents.json"); !os.IsNotExist(err) {
		t.Error("extents should only write a file when -o is given")
	}

	if code, _, stderr := runCmd(t, "extents", "-o", "ext.json", "snap.json"); code != 0 {
		t.Fatalf("exit %d, stderr: %s", code, stderr)
	}
	data, err := os.ReadFile("ext.json")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"way_count": 1`) || !strings.Contains(string(data), `"incomplete": []`) {
		t.Errorf("unexpected report:\n%s", data)
	}
}

func TestRender(t *testing.T) {
	setup(t)
	writeSnapshot(t, "snap.json")

	code, out, stderr := runCmd(t, "render", "-o", "map.html")
	if code != 0 {
		t.Fatalf("exit %d, stderr: %s", code, stderr)
	}
	if !strings.Contains(out, "Map generated: map.html") || !strings.Contains(out, "Markers: 1 (1 wheelchair accessible)") {
		t.Errorf("unexpected output:\n%s", out)
	}
	data, err := os.ReadFile("map.html")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "<title>Public Toilets Map</title>") {
		t.Error("map should use the configured title")
	}

	if code, _, _ := runCmd(t, "render", "snap.json"); code != 0 {
		t.Fatalf("exit %d", code)
	}
	if matches, _ := filepath.Glob("snap_map_*.html"); len(matches) != 1 {
		t.Errorf("expected default-named map, got %v", matches)
	}
}

func TestDiscoveryFailures(t *testing.T) {
	setup(t)

	code, _, stderr := runCmd(t, "render")
	if code != 1 || !strings.Contains(stderr, "Run fetch first") {
		t.Errorf("empty directory: exit %d, stderr %q", code, stderr)
	}

	writeSnapshot(t, "a.json")
	writeSnapshot(t, "b.json")
	code, _, stderr = runCmd(t, "tags")
	if code != 1 || !strings.Contains(stderr, "a.json") || !strings.Contains(stderr, "b.json") {
		t.Errorf("ambiguous directory: exit %d, stderr %q", code, stderr)
	}

	code, _, stderr = runCmd(t, "tags", "missing.json")
	if code != 1 || strings.Count(stderr, "\n") != 1 {
		t.Errorf("missing file: exit %d, stderr %q", code, stderr)
	}
}

func TestCompare(t *testing.T) {
	setup(t)
	writeSnapshot(t, "a.json")

	code, out, stderr := runCmd(t, "compare", "a.json", "a.json")
	if code != 0 {
		t.Fatalf("exit %d, stderr: %s", code, stderr)
	}
	if !strings.Contains(out, "identical attribute inventories") {
		t.Errorf("unexpected output:\n%s", out)
	}

	if code, _, _ := runCmd(t, "compare", "a.json"); code != 1 {
		t.Error("compare needs two snapshots")
	}
}

func TestCommandDispatch(t *testing.T) {
	setup(t)

	code, out, _ := runCmd(t, "version")
	if code != 0 || !strings.HasPrefix(out, "poimap ") {
		t.Errorf("version: exit %d, output %q", code, out)
	}

	code, _, stderr := runCmd(t, "bogus")
	if code != 1 || !strings.Contains(stderr, `unknown command "bogus"`) {
		t.Errorf("unknown command: exit %d, stderr %q", code, stderr)
	}

	if code, _, stderr := runCmd(t); code != 1 || !strings.Contains(stderr, "Usage: poimap") {
		t.Errorf("no command: exit %d, stderr %q", code, stderr)
	}

	if code, _, _ := runCmd(t, "-h"); code != 0 {
		t.Errorf("-h should exit 0, got %d", code)
	}

	if code, _, stderr := runCmd(t, "-config", "nope.yaml", "version"); code != 1 || !strings.Contains(stderr, "nope.yaml") {
		t.Errorf("missing config: exit %d, stderr %q", code, stderr)
	}
}

func TestMalformedElementsReported(t *testing.T) {
	setup(t)
	doc := `{"elements":[
		{"type":"node","id":1,"lat":59.91,"lon":10.75,"tags":{"amenity":"toilets"}},
		{"type":"relation","id":5,"tags":{"amenity":"toilets"}},
		{"id":6}
	]}`
	if err := os.WriteFile("snap.json", []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, cmd := range []string{"tags", "extents", "render"} {
		t.Run(cmd, func(t *testing.T) {
			code, out, stderr := runCmd(t, cmd, "snap.json")
			if code != 0 {
				t.Fatalf("exit %d, stderr: %s", code, stderr)
			}
			if !strings.Contains(out, "Skipped 2 malformed elements:") {
				t.Errorf("skipped elements not reported:\n%s", out)
			}
			if !strings.Contains(out, `unsupported type "relation"`) {
				t.Errorf("skip reason not listed:\n%s", out)
			}
		})
	}
}

func TestRenderAreasOnly(t *testing.T) {
	setup(t)
	doc := `{"elements":[{"type":"way","id":3,"bounds":{"minlat":59.9,"minlon":10.7,"maxlat":59.91,"maxlon":10.72},"tags":{"amenity":"toilets"}}]}`
	if err := os.WriteFile("ways.json", []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	code, out, stderr := runCmd(t, "render", "-o", "map.html", "ways.json")
	if code != 0 {
		t.Fatalf("exit %d, stderr: %s", code, stderr)
	}
	if !strings.Contains(out, "Markers: 0 (0 wheelchair accessible)") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if _, err := os.Stat("map.html"); err != nil {
		t.Errorf("map not written: %v", err)
	}
}

func TestExtentsReportKeys(t *testing.T) {
	setup(t)
	writeSnapshot(t, "snap.json")

	if code, _, stderr := runCmd(t, "extents", "-o", "ext.json", "snap.json"); code != 0 {
		t.Fatalf("exit %d, stderr: %s", code, stderr)
	}
	data, err := os.ReadFile("ext.json")
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{`"minlat": 59.9`, `"minlon": 10.7`, `"maxlat": 59.91`, `"maxlon": 10.72`} {
		if !strings.Contains(string(data), key) {
			t.Errorf("report missing %s:\n%s", key, data)
		}
	}
}
