package dataload

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joaquim-mph/optostage/internal/xerrors"
)

func TestLoadHappyPath(t *testing.T) {
	csv := "junk line\nVg (V),I (A)\n-1.0,1e-9\n-0.5,2e-9\n"

	table, err := Load("f.csv", strings.NewReader(csv), 1)
	require.NoError(t, err)
	require.Equal(t, []string{"Vg (V)", "I (A)"}, table.Columns)
	require.Equal(t, 2, table.NumRows)
	require.InDelta(t, -1.0, table.Data["Vg (V)"][0].(float64), 1e-9)
	require.InDelta(t, 2e-9, table.Data["I (A)"][1].(float64), 1e-12)
}

func TestLoadEmptyDataIsError(t *testing.T) {
	csv := "Vg (V),I (A)\n"

	_, err := Load("f.csv", strings.NewReader(csv), 0)
	require.Error(t, err)
	require.Equal(t, xerrors.EmptyDataTable, xerrors.CodeOf(err))
}

func TestLoadMissingHeaderLineIsError(t *testing.T) {
	csv := "a,b\n1,2\n"

	_, err := Load("f.csv", strings.NewReader(csv), 5)
	require.Error(t, err)
	require.Equal(t, xerrors.EmptyDataTable, xerrors.CodeOf(err))
}

func TestLoadEmptyCellBecomesNil(t *testing.T) {
	csv := "a,b\n1,\n"

	table, err := Load("f.csv", strings.NewReader(csv), 0)
	require.NoError(t, err)
	require.Nil(t, table.Data["b"][0])
}

func TestApplyRenameDropsAndRenames(t *testing.T) {
	table := Table{
		Columns: []string{"VDS", "vds", "t"},
		Data: map[string][]any{
			"VDS": {1.0},
			"vds": {2.0},
			"t":   {0.1},
		},
		NumRows: 1,
	}

	renamed := map[string]string{"VDS": "Vsd (V)", "t": "t (s)"}
	out := ApplyRename(table, renamed, []string{"vds"})

	require.ElementsMatch(t, []string{"Vsd (V)", "t (s)"}, out.Columns)
	require.Equal(t, 1.0, out.Data["Vsd (V)"][0])
	_, present := out.Data["vds"]
	require.False(t, present)
}
