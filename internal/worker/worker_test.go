package worker

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/joaquim-mph/optostage/internal/manifest"
	"github.com/joaquim-mph/optostage/internal/rename"
	"github.com/joaquim-mph/optostage/internal/schema"
)

const procedureDoc = `
IVg:
  parameters:
    Chip group name:
      type: string
    Chip number:
      type: string
    Vg start:
      type: float
  metadata:
    start_time:
      type: datetime
  data:
    Vsd (V):
      type: float
    Vg (V):
      type: float
    I (A):
      type: float
`

func testConfig(t *testing.T, stageRoot string) Config {
	t.Helper()

	schemaPath := filepath.Join(t.TempDir(), "procedures.yml")
	require.NoError(t, os.WriteFile(schemaPath, []byte(procedureDoc), 0o644))

	registry, err := schema.Load(schemaPath)
	require.NoError(t, err)

	loc, err := time.LoadLocation("UTC")
	require.NoError(t, err)

	log := logrus.New()
	log.SetOutput(io.Discard)

	return Config{
		StageRoot: stageRoot,
		Registry:  registry,
		Synonyms:  rename.DefaultSynonyms,
		LocalTZ:   loc,
		TableExt:  "csv",
		Logger:    log,
	}
}

func writeSample(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestProcessHappyPathWritesPartitionAndEvent(t *testing.T) {
	srcDir := t.TempDir()
	stageRoot := t.TempDir()

	csv := "# Procedure: IVg\n" +
		"# Parameters:\n" +
		"Chip group name: Alisson\n" +
		"Chip number: 67\n" +
		"# Metadata:\n" +
		"start_time: 2024-08-12T10:15:00Z\n" +
		"# Data:\n" +
		"VDS,Vg (V),I (A)\n" +
		"0.1,-1.0,1e-9\n" +
		"0.1,-0.5,2e-9\n"
	path := writeSample(t, srcDir, "run.csv", csv)

	cfg := testConfig(t, stageRoot)
	result := Process(context.Background(), path, cfg)

	require.Equal(t, manifest.Ok, result.Status)
	require.NotEmpty(t, result.RunID)

	entries, err := os.ReadDir(filepath.Join(stageRoot, "proc=IVg", "date=2024-08-12"))
	require.NoError(t, err)
	require.Len(t, entries, 1)

	eventPath := filepath.Join(manifest.EventsDir(stageRoot), "event-"+result.RunID+".json")
	_, err = os.Stat(eventPath)
	require.NoError(t, err)
}

func TestProcessRenamesVDSToCanonicalVsd(t *testing.T) {
	srcDir := t.TempDir()
	stageRoot := t.TempDir()

	csv := "# Procedure: IVg\n# Parameters:\n# Metadata:\nstart_time: 2024-08-12T10:15:00Z\n# Data:\nVDS,Vg (V),I (A)\n0.1,-1.0,1e-9\n"
	path := writeSample(t, srcDir, "run.csv", csv)

	cfg := testConfig(t, stageRoot)
	result := Process(context.Background(), path, cfg)
	require.Equal(t, manifest.Ok, result.Status)

	partDir := filepath.Join(stageRoot, "proc=IVg", "date=2024-08-12", "run_id="+result.RunID)
	entries, err := os.ReadDir(partDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	data, err := os.ReadFile(filepath.Join(partDir, entries[0].Name()))
	require.NoError(t, err)
	require.Contains(t, string(data), "Vsd (V)")
}

func TestProcessRejectsOnMissingProcedureHeader(t *testing.T) {
	srcDir := t.TempDir()
	stageRoot := t.TempDir()

	csv := "# Parameters:\nfoo: bar\n# Data:\na,b\n1,2\n"
	path := writeSample(t, srcDir, "bad.csv", csv)

	cfg := testConfig(t, stageRoot)
	result := Process(context.Background(), path, cfg)

	require.Equal(t, manifest.Reject, result.Status)

	entries, err := os.ReadDir(manifest.RejectsDir(stageRoot))
	require.NoError(t, err)
	require.Len(t, entries, 1)

	data, err := os.ReadFile(filepath.Join(manifest.RejectsDir(stageRoot), entries[0].Name()))
	require.NoError(t, err)

	var ev manifest.Event
	require.NoError(t, json.Unmarshal(data, &ev))
	require.True(t, strings.HasPrefix(ev.Error, "MissingProcedureHeader: "))
	// The temp dir, and so the path, carries this test's name; count the
	// code outside the path.
	require.Equal(t, 1, strings.Count(strings.ReplaceAll(ev.Error, path, ""), "MissingProcedureHeader"))
}

func TestProcessRejectsOnUnknownProcedure(t *testing.T) {
	srcDir := t.TempDir()
	stageRoot := t.TempDir()

	csv := "# Procedure: NotRegistered\n# Parameters:\n# Data:\na,b\n1,2\n"
	path := writeSample(t, srcDir, "unknown.csv", csv)

	cfg := testConfig(t, stageRoot)
	result := Process(context.Background(), path, cfg)

	require.Equal(t, manifest.Reject, result.Status)
}

func TestProcessIsIdempotentWithoutForce(t *testing.T) {
	srcDir := t.TempDir()
	stageRoot := t.TempDir()

	csv := "# Procedure: IVg\n# Parameters:\n# Metadata:\nstart_time: 2024-08-12T10:15:00Z\n# Data:\nVg (V),I (A)\n-1.0,1e-9\n"
	path := writeSample(t, srcDir, "run.csv", csv)

	cfg := testConfig(t, stageRoot)
	first := Process(context.Background(), path, cfg)
	require.Equal(t, manifest.Ok, first.Status)

	second := Process(context.Background(), path, cfg)
	require.Equal(t, manifest.Skipped, second.Status)
	require.Equal(t, first.RunID, second.RunID)
}

func TestProcessDetectsHasLightFromLaserMetadata(t *testing.T) {
	srcDir := t.TempDir()
	stageRoot := t.TempDir()

	csv := "# Procedure: IVg\n# Parameters:\n# Metadata:\n" +
		"start_time: 2024-08-12T10:15:00Z\n" +
		"wavelength: 450 nm\n" +
		"laser_voltage: 3.3 V\n" +
		"# Data:\nVg (V),I (A)\n-1.0,1e-9\n"
	path := writeSample(t, srcDir, "run.csv", csv)

	cfg := testConfig(t, stageRoot)
	result := Process(context.Background(), path, cfg)
	require.Equal(t, manifest.Ok, result.Status)

	partDir := filepath.Join(stageRoot, "proc=IVg", "date=2024-08-12", "run_id="+result.RunID)
	entries, err := os.ReadDir(partDir)
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(partDir, entries[0].Name()))
	require.NoError(t, err)
	require.Contains(t, string(data), "true")
}
