package rename

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joaquim-mph/optostage/internal/schema"
)

func TestResolveSynonymMatch(t *testing.T) {
	dataFields := map[string]schema.FieldSpec{"Vsd (V)": {Type: schema.TypeFloat}}

	result := Resolve([]string{"VDS"}, dataFields, DefaultSynonyms, ModeKeepUnmatched)
	require.Equal(t, "Vsd (V)", result.Renamed["VDS"])
	require.Empty(t, result.Warnings)
}

func TestResolveDirectNormalizedMatch(t *testing.T) {
	dataFields := map[string]schema.FieldSpec{"Vg (V)": {Type: schema.TypeFloat}}

	result := Resolve([]string{"  vg (V) "}, dataFields, DefaultSynonyms, ModeKeepUnmatched)
	require.Equal(t, "Vg (V)", result.Renamed["  vg (V) "])
}

func TestResolveAmbiguousColumnsFirstWins(t *testing.T) {
	dataFields := map[string]schema.FieldSpec{"Vsd (V)": {Type: schema.TypeFloat}}

	result := Resolve([]string{"VDS", "vds"}, dataFields, DefaultSynonyms, ModeKeepUnmatched)
	require.Equal(t, "Vsd (V)", result.Renamed["VDS"])
	_, stillPresent := result.Renamed["vds"]
	require.False(t, stillPresent)
	require.Contains(t, result.Unmatched, "vds")
	require.Len(t, result.Warnings, 1)
}

func TestResolveUnmatchedKeptByDefault(t *testing.T) {
	result := Resolve([]string{"Weird Column"}, map[string]schema.FieldSpec{}, nil, ModeKeepUnmatched)
	require.Equal(t, "Weird Column", result.Renamed["Weird Column"])
}

func TestResolveUnmatchedDroppedOnlyYAML(t *testing.T) {
	result := Resolve([]string{"Weird Column"}, map[string]schema.FieldSpec{}, nil, ModeDropUnmatched)
	require.Contains(t, result.Unmatched, "Weird Column")
	_, present := result.Renamed["Weird Column"]
	require.False(t, present)
}
