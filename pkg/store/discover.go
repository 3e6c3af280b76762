package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// probeElements is how many leading elements are checked for the tag.
const probeElements = 5

// ErrNoSnapshot means a directory holds no snapshot files.
var ErrNoSnapshot = errors.New("no snapshot files found")

// AmbiguousSnapshotError means more than one candidate was found and the
// user has to name one.
type AmbiguousSnapshotError struct {
	Dir        string
	Candidates []string
}

// Error implements the error interface
func (e *AmbiguousSnapshotError) Error() string {
	return fmt.Sprintf("found %d snapshot files in %s, name one of: %s",
		len(e.Candidates), e.Dir, strings.Join(e.Candidates, ", "))
}

type probe struct {
	Elements []struct {
		Tags map[string]json.RawMessage `json:"tags"`
	} `json:"elements"`
}

// IsSnapshot reports whether data looks like a snapshot: a JSON object with
// a non-empty elements array whose first five entries include tagKey.
func IsSnapshot(data []byte, tagKey string) bool {
	var p probe
	if err := json.Unmarshal(data, &p); err != nil || len(p.Elements) == 0 {
		return false
	}
	for i, el := range p.Elements {
		if i == probeElements {
			break
		}
		if _, ok := el.Tags[tagKey]; ok {
			return true
		}
	}
	return false
}

// FindSnapshots lists the snapshot files in dir, sorted by name. Unreadable
// files and files that are not snapshots are ignored.
func FindSnapshots(dir, tagKey string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &FileAccessError{Op: OpRead, Path: dir, Err: err}
	}

	var found []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if IsSnapshot(data, tagKey) {
			found = append(found, path)
		}
	}
	sort.Strings(found)
	return found, nil
}

// Discover returns the only snapshot file in dir. It fails with
// ErrNoSnapshot or an *AmbiguousSnapshotError otherwise.
func Discover(dir, tagKey string) (string, error) {
	found, err := FindSnapshots(dir, tagKey)
	if err != nil {
		return "", err
	}
	switch len(found) {
	case 0:
		return "", fmt.Errorf("%s: %w", dir, ErrNoSnapshot)
	case 1:
		return found[0], nil
	default:
		return "", &AmbiguousSnapshotError{Dir: dir, Candidates: found}
	}
}
