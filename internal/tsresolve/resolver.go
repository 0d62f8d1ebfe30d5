// Package tsresolve picks a canonical start instant and local calendar date
// for a run, trying metadata, then the file path, then the file's
// modification time, in that order.
package tsresolve

import (
	"os"
	"regexp"
	"time"
)

// Origin tags which source produced the resolved timestamp.
type Origin string

const (
	OriginMetadata Origin = "metadata"
	OriginPath     Origin = "path"
	OriginMtime    Origin = "mtime"
)

var pathDateDash = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
var pathDateCompact = regexp.MustCompile(`\d{8}`)

var metadataLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Resolve returns the UTC start instant, the local calendar date
// (YYYY-MM-DD), and the origin tag, using the first source that yields a
// value. loc is the configured local timezone (process-wide, default
// America/Santiago); statFn abstracts the file mtime lookup for testing.
func Resolve(path string, metadata map[string]any, loc *time.Location, statFn func(string) (os.FileInfo, error)) (time.Time, string, Origin) {
	if raw, ok := metadata["start_time"]; ok {
		if s, ok := raw.(string); ok {
			for _, layout := range metadataLayouts {
				if ts, err := time.Parse(layout, s); err == nil {
					utc := ts.UTC()
					return utc, utc.In(loc).Format("2006-01-02"), OriginMetadata
				}
			}
		}
		if ts, ok := raw.(time.Time); ok {
			utc := ts.UTC()
			return utc, utc.In(loc).Format("2006-01-02"), OriginMetadata
		}
	}

	if dateStr, ok := findPathDate(path); ok {
		midnight := time.Date(dateStr.Year(), dateStr.Month(), dateStr.Day(), 0, 0, 0, 0, loc)
		return midnight.UTC(), dateStr.Format("2006-01-02"), OriginPath
	}

	info, err := statFn(path)
	if err == nil {
		mtime := info.ModTime().UTC()
		return mtime, mtime.In(loc).Format("2006-01-02"), OriginMtime
	}

	// Deterministic fallback: the zero instant, still tagged mtime, so a
	// caller always receives a well-formed triple even if stat itself
	// failed (e.g. under a test double).
	zero := time.Time{}
	return zero, zero.In(loc).Format("2006-01-02"), OriginMtime
}

func findPathDate(path string) (time.Time, bool) {
	if m := pathDateDash.FindString(path); m != "" {
		if ts, err := time.Parse("2006-01-02", m); err == nil {
			return ts, true
		}
	}
	if m := pathDateCompact.FindString(path); m != "" {
		if ts, err := time.Parse("20060102", m); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
