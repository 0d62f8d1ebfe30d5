package orchestrator

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/joaquim-mph/optostage/internal/config"
	"github.com/joaquim-mph/optostage/internal/manifest"
)

const procedureDoc = `
IVg:
  parameters:
    Chip group name:
      type: string
  metadata:
    start_time:
      type: datetime
  data:
    Vg (V):
      type: float
    I (A):
      type: float
`

func writeRawFile(t *testing.T, root, relPath, body string) {
	t.Helper()
	full := filepath.Join(root, relPath)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(body), 0o644))
}

func TestDiscoverFindsCSVFilesAndSkipsHidden(t *testing.T) {
	root := t.TempDir()
	writeRawFile(t, root, "2024-08-12/run1.csv", "data")
	writeRawFile(t, root, "2024-08-12/run2.CSV", "data")
	writeRawFile(t, root, "2024-08-12/notes.txt", "data")
	writeRawFile(t, root, ".hidden/run3.csv", "data")

	inputs, err := Discover(root)
	require.NoError(t, err)
	require.Len(t, inputs, 2)
}

func TestRunProcessesDiscoveredFilesAndMergesManifest(t *testing.T) {
	rawRoot := t.TempDir()
	stageRoot := t.TempDir()

	schemaPath := filepath.Join(t.TempDir(), "procedures.yml")
	require.NoError(t, os.WriteFile(schemaPath, []byte(procedureDoc), 0o644))

	csv := "# Procedure: IVg\n# Parameters:\n# Metadata:\nstart_time: 2024-08-12T10:15:00Z\n# Data:\nVg (V),I (A)\n-1.0,1e-9\n"
	writeRawFile(t, rawRoot, "2024-08-12/run1.csv", csv)

	bad := "# Parameters:\nfoo: bar\n# Data:\na,b\n1,2\n"
	writeRawFile(t, rawRoot, "2024-08-12/bad.csv", bad)

	cfg := &config.Config{
		RawRoot:        rawRoot,
		StageRoot:      stageRoot,
		ProceduresYAML: schemaPath,
		Workers:        2,
		LocalTZ:        "UTC",
		ManifestName:   "manifest",
		TableExt:       "csv",
	}

	log := logrus.New()
	log.SetOutput(io.Discard)

	summary, err := Run(context.Background(), cfg, log)
	require.NoError(t, err)
	require.Equal(t, 1, summary.OK)
	require.Equal(t, 1, summary.Reject)

	data, err := os.ReadFile(manifest.ManifestPath(stageRoot, "manifest"))
	require.NoError(t, err)

	var rows []manifest.Row
	require.NoError(t, json.Unmarshal(data, &rows))
	require.Len(t, rows, 2)
}

func TestRunIsIdempotentOnRerun(t *testing.T) {
	rawRoot := t.TempDir()
	stageRoot := t.TempDir()

	schemaPath := filepath.Join(t.TempDir(), "procedures.yml")
	require.NoError(t, os.WriteFile(schemaPath, []byte(procedureDoc), 0o644))

	csv := "# Procedure: IVg\n# Parameters:\n# Metadata:\nstart_time: 2024-08-12T10:15:00Z\n# Data:\nVg (V),I (A)\n-1.0,1e-9\n"
	writeRawFile(t, rawRoot, "2024-08-12/run1.csv", csv)

	cfg := &config.Config{
		RawRoot:        rawRoot,
		StageRoot:      stageRoot,
		ProceduresYAML: schemaPath,
		Workers:        1,
		LocalTZ:        "UTC",
		ManifestName:   "manifest",
		TableExt:       "csv",
	}

	log := logrus.New()
	log.SetOutput(io.Discard)

	first, err := Run(context.Background(), cfg, log)
	require.NoError(t, err)
	require.Equal(t, 1, first.OK)

	second, err := Run(context.Background(), cfg, log)
	require.NoError(t, err)
	require.Equal(t, 1, second.Skipped)
	require.Equal(t, 0, second.OK)
}
