// Package partition performs atomic writes of an enriched run table into a
// Hive-style partition path: proc=<P>/date=<D>/run_id=<R>/part-000.<ext>.
package partition

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joaquim-mph/optostage/internal/dataload"
	"github.com/joaquim-mph/optostage/internal/xerrors"
)

// Outcome reports whether a write happened or was skipped because the
// target partition already existed and force was false.
type Outcome struct {
	Path    string
	Skipped bool
}

// Write computes the target directory for (proc, dateLocal, runID) under
// stageRoot, and atomically writes table there as part-000.<ext>. If the
// target already exists and force is false, it returns Skipped without
// reading the existing file.
func Write(stageRoot, proc, dateLocal, runID string, table dataload.Table, ext string, force bool) (Outcome, error) {
	dir := filepath.Join(stageRoot, "proc="+proc, "date="+dateLocal, "run_id="+runID)
	final := filepath.Join(dir, "part-000."+ext)

	if !force {
		if _, err := os.Stat(final); err == nil {
			return Outcome{Path: final, Skipped: true}, nil
		}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Outcome{}, xerrors.New(xerrors.IOFailure, "partition.Write", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".part-*.tmp")
	if err != nil {
		return Outcome{}, xerrors.New(xerrors.IOFailure, "partition.Write", dir, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed away

	if err := writeCSV(tmp, table); err != nil {
		tmp.Close()
		return Outcome{}, xerrors.New(xerrors.IOFailure, "partition.Write", tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return Outcome{}, xerrors.New(xerrors.IOFailure, "partition.Write", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return Outcome{}, xerrors.New(xerrors.IOFailure, "partition.Write", tmpPath, err)
	}

	if err := os.Rename(tmpPath, final); err != nil {
		return Outcome{}, xerrors.New(xerrors.WriteConflict, "partition.Write", final, err)
	}

	return Outcome{Path: final}, nil
}

// writeCSV serializes table column-major data back into row-major CSV: a
// header row followed by one row per observation. A concurrent reader
// traversing the partition tree never observes this data under the final
// name because it is always written to a temp file first.
func writeCSV(f *os.File, table dataload.Table) error {
	w := csv.NewWriter(f)
	if err := w.Write(table.Columns); err != nil {
		return err
	}

	for i := 0; i < table.NumRows; i++ {
		row := make([]string, len(table.Columns))
		for j, col := range table.Columns {
			row[j] = formatCell(table.Data[col][i])
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func formatCell(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case *float64:
		if t == nil {
			return ""
		}
		return strconv.FormatFloat(*t, 'g', -1, 64)
	case int64:
		return strconv.FormatInt(t, 10)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}
