package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleDoc = `
IVg:
  parameters:
    Vg start:
      type: float
      unit: V
    Chip group name:
      type: string
      required: true
  metadata:
    start_time:
      type: datetime
  data:
    Vg (V):
      type: float
    I (A):
      type: float
`

func writeDoc(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "procedures.yml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadParsesProcedureSections(t *testing.T) {
	path := writeDoc(t, sampleDoc)

	reg, err := Load(path)
	require.NoError(t, err)

	s, ok := reg.Lookup("IVg")
	require.True(t, ok)
	require.Equal(t, TypeFloat, s.Parameters["Vg start"].Type)
	require.Equal(t, "V", s.Parameters["Vg start"].Unit)
	require.True(t, s.Parameters["Chip group name"].Required)
	require.Equal(t, TypeDatetime, s.Metadata["start_time"].Type)
	require.Contains(t, s.Data, "Vg (V)")
}

func TestLookupUnknownProcedure(t *testing.T) {
	path := writeDoc(t, sampleDoc)

	reg, err := Load(path)
	require.NoError(t, err)

	_, ok := reg.Lookup("NotAProcedure")
	require.False(t, ok)
}

func TestLoadMissingFileIsError(t *testing.T) {
	_, err := Load("/nonexistent/procedures.yml")
	require.Error(t, err)
}

func TestLoadCachedMemoizesPerPath(t *testing.T) {
	path := writeDoc(t, sampleDoc)

	a, err := LoadCached(path)
	require.NoError(t, err)
	b, err := LoadCached(path)
	require.NoError(t, err)

	require.Same(t, a, b)
}
