// Package manifest emits one event record per Worker invocation and merges
// all historical event records into the consolidated manifest table.
package manifest

import "time"

// Status is the closed tagged variant for a run's terminal outcome, per the
// Design Notes ("Tagged status"). Serialization emits the lowercase label.
type Status int

const (
	Ok Status = iota
	Skipped
	Reject
)

func (s Status) String() string {
	switch s {
	case Ok:
		return "ok"
	case Skipped:
		return "skipped"
	case Reject:
		return "reject"
	default:
		return "unknown"
	}
}

func (s Status) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

func (s *Status) UnmarshalJSON(data []byte) error {
	str := string(data)
	switch str {
	case `"ok"`:
		*s = Ok
	case `"skipped"`:
		*s = Skipped
	case `"reject"`:
		*s = Reject
	default:
		*s = Reject
	}
	return nil
}

// Event is the per-run ingestion record described in spec §3: the union of
// its fixed fields plus every enrichment/metadata field flattened into
// Fields, so the Manifest Merger can compute a field union across
// heterogeneous historical records without reflecting over a fixed struct.
type Event struct {
	TS         time.Time `json:"ts"`
	Status     Status    `json:"status"`
	RunID      string    `json:"run_id,omitempty"`
	Proc       string    `json:"proc,omitempty"`
	Rows       int       `json:"rows,omitempty"`
	Path       string    `json:"path,omitempty"`
	SourceFile string    `json:"source_file"`
	DateOrigin string    `json:"date_origin,omitempty"`
	DateLocal  string    `json:"date_local,omitempty"`
	Error      string    `json:"error,omitempty"`
	Warnings   []string  `json:"warnings,omitempty"`

	// Fields carries every enrichment/metadata column (chip_group,
	// chip_number, has_light, wavelength_nm, ...) so the manifest's column
	// set is always a superset of what any individual event carries (I5).
	Fields map[string]any `json:"fields,omitempty"`
}
