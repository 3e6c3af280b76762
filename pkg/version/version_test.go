package version

import (
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	s := String()
	if !strings.HasPrefix(s, "poimap "+BuildVersion) {
		t.Errorf("unexpected banner %q", s)
	}
}

func TestInfo(t *testing.T) {
	info := Info()
	for _, key := range []string{"version", "commit", "build_date", "go_version"} {
		if info[key] == "" {
			t.Errorf("Info()[%q] is empty", key)
		}
	}
}
