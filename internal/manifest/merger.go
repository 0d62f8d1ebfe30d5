package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/joaquim-mph/optostage/internal/metrics"
)

// Row is one manifest row: the union of every field observed across all
// event records, with null (absent from the map) for fields a given event
// did not carry.
type Row map[string]any

const (
	colTS         = "ts"
	colStatus     = "status"
	colRunID      = "run_id"
	colProc       = "proc"
	colRows       = "rows"
	colPath       = "path"
	colSourceFile = "source_file"
	colDateOrigin = "date_origin"
	colDateLocal  = "date_local"
	colError      = "error"
)

// dedupKey identifies a manifest row for the purposes of Invariant-adjacent
// deduplication: (run_id, ts, status, path). Keep the latest occurrence by
// ts when two rows share it.
type dedupKey struct {
	runID  string
	ts     string
	status string
	path   string
}

// Merge enumerates every event record in stageRoot's events directory,
// computes the field union, concatenates under schema-relaxed rules with
// any prior manifest at manifestPath, deduplicates, and writes the result
// back atomically. The manifest is always serialized as JSON (ManifestPath),
// independent of the engine's configured table_ext, which names only the
// partition table file's format.
func Merge(stageRoot, manifestName string) ([]Row, error) {
	events, err := readAllEvents(EventsDir(stageRoot))
	if err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(events))
	for _, ev := range events {
		rows = append(rows, eventToRow(ev))
	}

	manifestPath := ManifestPath(stageRoot, manifestName)
	prior, err := readPriorManifest(manifestPath)
	if err != nil {
		return nil, err
	}
	rows = append(prior, rows...)

	rows = dedup(rows)
	sort.Slice(rows, func(i, j int) bool {
		return fmt.Sprint(rows[i][colTS]) < fmt.Sprint(rows[j][colTS])
	})

	if err := writeManifest(manifestPath, rows); err != nil {
		return nil, err
	}

	metrics.ManifestRows.Set(float64(len(rows)))
	return rows, nil
}

func eventToRow(ev Event) Row {
	row := Row{
		// The same text the JSON encoder writes for ts, so a fresh row and its
		// copy read back from the prior manifest share one dedup key.
		colTS:         ev.TS.Format(time.RFC3339Nano),
		colStatus:     ev.Status.String(),
		colRunID:      orNil(ev.RunID),
		colProc:       orNil(ev.Proc),
		colRows:       ev.Rows,
		colPath:       orNil(ev.Path),
		colSourceFile: ev.SourceFile,
		colDateOrigin: orNil(ev.DateOrigin),
		colDateLocal:  orNil(ev.DateLocal),
		colError:      orNil(ev.Error),
	}
	for k, v := range ev.Fields {
		row[k] = v
	}
	return row
}

func orNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// readAllEvents reads every JSON file under dir as an Event. A directory
// that does not exist yet (first-ever run) is not an error.
func readAllEvents(dir string) ([]Event, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read events dir: %w", err)
	}

	events := make([]Event, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read event %s: %w", entry.Name(), err)
		}
		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("parse event %s: %w", entry.Name(), err)
		}
		events = append(events, ev)
	}
	return events, nil
}

// readPriorManifest loads an existing manifest, if any, as rows so it can
// be concatenated under schema-relaxed rules with the freshly enumerated
// events. A missing manifest (first-ever run) is not an error.
func readPriorManifest(path string) ([]Row, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read prior manifest: %w", err)
	}

	var rows []Row
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parse prior manifest: %w", err)
	}
	return rows, nil
}

// dedup keeps the latest occurrence, by ts, of each (run_id, ts, status,
// path) key — a row with an identical key to an earlier one in the slice
// is dropped in favor of whichever has the later ts; since the slice is
// prior-then-fresh, fresh rows naturally win when ts is equal.
func dedup(rows []Row) []Row {
	best := make(map[dedupKey]Row, len(rows))
	order := make([]dedupKey, 0, len(rows))

	for _, row := range rows {
		key := dedupKey{
			runID:  fmt.Sprint(row[colRunID]),
			ts:     fmt.Sprint(row[colTS]),
			status: fmt.Sprint(row[colStatus]),
			path:   fmt.Sprint(row[colPath]),
		}
		if _, ok := best[key]; !ok {
			order = append(order, key)
		}
		best[key] = row // later occurrence in iteration order wins
	}

	out := make([]Row, 0, len(order))
	for _, key := range order {
		out = append(out, best[key])
	}
	return out
}

func writeManifest(path string, rows []Row) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create manifest dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".manifest-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rows); err != nil {
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

	return os.Rename(tmpPath, path)
}
