// Package enrich computes the constant-valued enrichment columns attached
// to every row of a run's data table: run identity, procedure/chip
// identifiers, and the light-source-derived quantities.
package enrich

import (
	"crypto/sha1"
	"encoding/hex"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joaquim-mph/optostage/internal/cast"
	"github.com/joaquim-mph/optostage/internal/dataload"
)

var laserPeriodKey = regexp.MustCompile(`(?i)laser.*period`)

// RunID computes the 16-char lowercase hex run identifier per Invariant I1:
// first 16 hex chars of SHA-1(sourcePath || "|" || startInstantISO).
func RunID(sourcePath string, startUTC time.Time) string {
	sum := sha1.Sum([]byte(sourcePath + "|" + startUTC.UTC().Format(time.RFC3339Nano)))
	return hex.EncodeToString(sum[:])[:16]
}

// Columns holds the enrichment values described in spec §3, ready to be
// broadcast as constants across a data table.
type Columns struct {
	RunID            string
	Proc             string
	StartDT          time.Time
	SourceFile       string
	HasLight         bool
	WavelengthNM     *float64
	LaserVoltageV    *float64
	LaserPeriodS     *float64
	VdsV             *float64
	VgFixedV         *float64
	VgStartV         *float64
	VgEndV           *float64
	VgStepV          *float64
	ChipGroup        string
	ChipNumber       string
	Sample           string
	ProcedureVersion string
}

// Compute derives the enrichment columns from a run's typed parameters and
// metadata.
func Compute(sourcePath, proc string, startUTC time.Time, parameters, metadata map[string]any) Columns {
	c := Columns{
		RunID:      RunID(sourcePath, startUTC),
		Proc:       proc,
		StartDT:    startUTC,
		SourceFile: sourcePath,
	}

	c.ChipGroup = stringField(parameters, "Chip group name")
	c.ChipNumber = stringField(parameters, "Chip number")
	c.Sample = stringField(parameters, "Sample")
	c.ProcedureVersion = stringField(metadata, "procedure_version")

	c.WavelengthNM = floatField(metadata, "wavelength")
	c.LaserVoltageV = floatField(metadata, "laser_voltage")
	c.LaserPeriodS = laserPeriod(metadata)

	c.VdsV = floatField(parameters, "Vsd")
	c.VgFixedV = floatField(parameters, "Vg")
	c.VgStartV = floatField(parameters, "Vg start")
	c.VgEndV = floatField(parameters, "Vg end")
	c.VgStepV = floatField(parameters, "Vg step")

	c.HasLight = c.WavelengthNM != nil && c.LaserVoltageV != nil && *c.LaserVoltageV != 0

	return c
}

func laserPeriod(metadata map[string]any) *float64 {
	for key, val := range metadata {
		if !laserPeriodKey.MatchString(key) {
			continue
		}
		raw, ok := val.(string)
		if !ok {
			if f, ok := val.(float64); ok {
				return &f
			}
			continue
		}
		numStr, _ := cast.UnitOf(raw)
		if numStr == "" {
			continue
		}
		f, err := strconv.ParseFloat(numStr, 64)
		if err != nil {
			continue
		}
		return &f
	}
	return nil
}

func stringField(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	default:
		return ""
	}
}

func floatField(m map[string]any, key string) *float64 {
	v, ok := m[key]
	if !ok || v == nil {
		return nil
	}
	switch t := v.(type) {
	case float64:
		return &t
	case int64:
		f := float64(t)
		return &f
	case string:
		numStr, _ := cast.UnitOf(t)
		if numStr == "" {
			return nil
		}
		f, err := strconv.ParseFloat(numStr, 64)
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}

// Broadcast attaches c as constant-valued columns across every row of
// table, returning a new Table with the enrichment columns appended.
func Broadcast(table dataload.Table, c Columns) dataload.Table {
	out := dataload.Table{
		Columns: append([]string{}, table.Columns...),
		Data:    make(map[string][]any, len(table.Columns)+17),
		NumRows: table.NumRows,
	}
	for _, col := range table.Columns {
		out.Data[col] = table.Data[col]
	}

	constCols := map[string]any{
		"run_id":            c.RunID,
		"proc":              c.Proc,
		"start_dt":          c.StartDT,
		"source_file":       c.SourceFile,
		"has_light":         c.HasLight,
		"wavelength_nm":     c.WavelengthNM,
		"laser_voltage_V":   c.LaserVoltageV,
		"laser_period_s":    c.LaserPeriodS,
		"vds_v":             c.VdsV,
		"vg_fixed_v":        c.VgFixedV,
		"vg_start_v":        c.VgStartV,
		"vg_end_v":          c.VgEndV,
		"vg_step_v":         c.VgStepV,
		"chip_group":        c.ChipGroup,
		"chip_number":       c.ChipNumber,
		"sample":            c.Sample,
		"procedure_version": c.ProcedureVersion,
	}

	// Deterministic column order for the enrichment block, regardless of
	// map iteration order.
	order := []string{
		"run_id", "proc", "start_dt", "source_file", "has_light",
		"wavelength_nm", "laser_voltage_V", "laser_period_s",
		"vds_v", "vg_fixed_v", "vg_start_v", "vg_end_v", "vg_step_v",
		"chip_group", "chip_number", "sample", "procedure_version",
	}
	for _, name := range order {
		value := constCols[name]
		col := make([]any, out.NumRows)
		for i := range col {
			col[i] = value
		}
		out.Columns = append(out.Columns, name)
		out.Data[name] = col
	}

	return out
}
