// Package store reads and writes snapshot and report files.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/NERVsystems/poimap/pkg/osm"
	"github.com/NERVsystems/poimap/pkg/osm/queries"
)

// File operations recorded on FileAccessError.
const (
	OpRead  = "read"
	OpWrite = "write"
	OpStat  = "stat"
)

// FileAccessError is a missing, unreadable or unwritable path.
type FileAccessError struct {
	Op   string
	Path string
	Err  error
}

// Error implements the error interface
func (e *FileAccessError) Error() string {
	return fmt.Sprintf("cannot %s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying cause.
func (e *FileAccessError) Unwrap() error {
	return e.Err
}

// Guidance returns a hint on how to recover from the failure.
func (e *FileAccessError) Guidance() string {
	switch {
	case errors.Is(e.Err, os.ErrNotExist):
		return "Check the file name, or run fetch first to create a snapshot."
	case errors.Is(e.Err, os.ErrPermission):
		return "Check the file permissions."
	}
	return ""
}

// Load reads and parses the snapshot at path. The snapshot records path as
// its source and, having no fetch time, the file modification time.
func Load(ctx context.Context, path string) (*osm.Snapshot, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &FileAccessError{Op: OpStat, Path: path, Err: err}
	}
	return load(ctx, path, info)
}

func load(ctx context.Context, path string, info os.FileInfo) (*osm.Snapshot, error) {
	if info.IsDir() {
		return nil, &FileAccessError{Op: OpRead, Path: path, Err: errors.New("is a directory")}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &FileAccessError{Op: OpRead, Path: path, Err: err}
	}
	snap, err := osm.ParseContext(ctx, data, osm.Metadata{})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return snap.WithSource(path, info.ModTime().UTC()), nil
}

// Save writes the snapshot document to path, pretty-printed with two-space
// indentation. Content is otherwise the document exactly as received.
func Save(path string, s *osm.Snapshot) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, s.Raw(), "", "  "); err != nil {
		return fmt.Errorf("formatting snapshot: %w", err)
	}
	buf.WriteByte('\n')
	return writeFile(path, buf.Bytes())
}

// WriteJSON writes v to path as two-space indented JSON without HTML
// escaping.
func WriteJSON(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	return writeFile(path, buf.Bytes())
}

// WriteFile writes data to path the same way Save does.
func WriteFile(path string, data []byte) error {
	return writeFile(path, data)
}

// writeFile replaces path atomically through a temporary file in the same
// directory.
func writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".poimap-*.tmp")
	if err != nil {
		return &FileAccessError{Op: OpWrite, Path: path, Err: err}
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return &FileAccessError{Op: OpWrite, Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &FileAccessError{Op: OpWrite, Path: path, Err: err}
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return &FileAccessError{Op: OpWrite, Path: path, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		return &FileAccessError{Op: OpWrite, Path: path, Err: err}
	}
	return nil
}

const timestampLayout = "20060102_150405"

// SnapshotName is the default file name for a snapshot of target taken at
// at, e.g. toilets_oslo_20250623_151225.json.
func SnapshotName(target queries.Target, at time.Time) string {
	return fmt.Sprintf("toilets_%s_%s.json", target.LocationName(), at.Format(timestampLayout))
}

func trimJSON(path string) string {
	return strings.TrimSuffix(path, ".json")
}

// TagsReportPath is the attribute report written next to a snapshot.
func TagsReportPath(snapshotPath string) string {
	return trimJSON(snapshotPath) + "_tags_analysis.json"
}

// ExtentsReportPath is the extent report written next to a snapshot.
func ExtentsReportPath(snapshotPath string) string {
	return trimJSON(snapshotPath) + "_extents.json"
}

// MapPath is the map document name for a snapshot, in the working directory.
func MapPath(snapshotPath string, at time.Time) string {
	base := strings.TrimSuffix(filepath.Base(snapshotPath), filepath.Ext(snapshotPath))
	return fmt.Sprintf("%s_map_%s.html", base, at.Format(timestampLayout))
}
