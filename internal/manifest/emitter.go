package manifest

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// EventsDir is the fixed location, relative to a stage root, where one
// event file per run is written.
func EventsDir(stageRoot string) string {
	return filepath.Join(stageRoot, "_manifest", "events")
}

// RejectsDir mirrors full-context reject records for operator inspection.
func RejectsDir(stageRoot string) string {
	return filepath.Join(stageRoot, "_rejects")
}

// serializedExt is the on-disk format for event records and the manifest
// table, per spec §4.9's "serialized_ext" — distinct from table_ext, which
// names only the partition table file's format. Both the Event Emitter and
// the Manifest Merger read and write JSON, so this is not configurable.
const serializedExt = "json"

// ManifestPath is the consolidated manifest's on-disk location.
func ManifestPath(stageRoot, name string) string {
	return filepath.Join(stageRoot, "_manifest", name+"."+serializedExt)
}

// FallbackRunID builds a reject-time identifier when no run_id could be
// computed (the timestamp resolver and/or header parse never got far
// enough): a hash of the source path plus a random suffix, per §4.9.
func FallbackRunID(sourcePath string) string {
	sum := sha1.Sum([]byte(sourcePath))
	return hex.EncodeToString(sum[:6]) + "-" + uuid.NewString()[:8]
}

// Emit writes ev to stageRoot/_manifest/events/event-<runID>.<serializedExt>,
// atomically. A later successful run with the same run_id overwrites the
// prior event because the write goes through the same temp+rename
// discipline as the Partition Writer.
func Emit(stageRoot, runID string, ev Event) error {
	dir := EventsDir(stageRoot)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create events dir: %w", err)
	}

	final := filepath.Join(dir, "event-"+runID+"."+serializedExt)
	return writeJSONAtomic(final, ev)
}

// EmitReject writes ev as usual and additionally mirrors it, with full
// error context, under _rejects/.
func EmitReject(stageRoot, runID, sourceFile string, ev Event) error {
	if err := Emit(stageRoot, runID, ev); err != nil {
		return err
	}

	dir := RejectsDir(stageRoot)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create rejects dir: %w", err)
	}

	base := filepath.Base(sourceFile)
	ext := filepath.Ext(base)
	stem := base[:len(base)-len(ext)]
	final := filepath.Join(dir, fmt.Sprintf("%s-%s.reject.%s", stem, runID, serializedExt))
	return writeJSONAtomic(final, ev)
}

func writeJSONAtomic(final string, ev Event) error {
	dir := filepath.Dir(final)

	tmp, err := os.CreateTemp(dir, ".event-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(ev); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmpPath, final)
}

// NewEvent builds a minimal Event with TS stamped to now; status-specific
// fields are filled in by the caller.
func NewEvent(status Status, sourceFile string) Event {
	return Event{
		TS:         time.Now().UTC(),
		Status:     status,
		SourceFile: sourceFile,
		Fields:     make(map[string]any),
	}
}
