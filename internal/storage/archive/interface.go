// Package archive stores rendered report artifacts on a local disk or an S3-compatible bucket.
package archive

import (
	"context"
	"path"
	"strings"
	"time"
)

// Storage defines the interface for report archive backends
type Storage interface {
	// Write stores data at the given path, replacing any previous content
	Write(ctx context.Context, path string, data []byte) error

	// Read retrieves data from the given path; missing paths return core.ErrNotFound
	Read(ctx context.Context, path string) ([]byte, error)

	// List returns all paths under the prefix, sorted
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes the data at the given path
	Delete(ctx context.Context, path string) error

	// Exists checks if data exists at the given path
	Exists(ctx context.Context, path string) (bool, error)
}

// ReportKey lays out one run's artifact as reports/<YYYYMMDD>/<runID>/<name>.
// The date is taken in UTC so keys sort the same on every host.
func ReportKey(at time.Time, runID, name string) string {
	return path.Join("reports", at.UTC().Format("20060102"), runID, name)
}

// RunPrefix returns the prefix holding every artifact of a run
func RunPrefix(at time.Time, runID string) string {
	return ReportKey(at, runID, "") + "/"
}

// clean normalizes a caller-supplied path to slash-separated form without a leading slash
func clean(p string) string {
	p = strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(p, "\\", "/")), "/")
	if p == "." {
		return ""
	}
	return p
}
