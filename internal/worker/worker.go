// Package worker implements the per-file ingestion state machine: header
// parse → schema lookup → cast → timestamp resolve → data load → column
// rename → enrich → partition write → event emit, catching and classifying
// every failure at its boundary so it never propagates to the Orchestrator.
package worker

import (
	"context"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/joaquim-mph/optostage/internal/cast"
	"github.com/joaquim-mph/optostage/internal/dataload"
	"github.com/joaquim-mph/optostage/internal/enrich"
	"github.com/joaquim-mph/optostage/internal/header"
	"github.com/joaquim-mph/optostage/internal/manifest"
	"github.com/joaquim-mph/optostage/internal/metrics"
	"github.com/joaquim-mph/optostage/internal/partition"
	"github.com/joaquim-mph/optostage/internal/rename"
	"github.com/joaquim-mph/optostage/internal/schema"
	"github.com/joaquim-mph/optostage/internal/tsresolve"
	"github.com/joaquim-mph/optostage/internal/xerrors"
)

// Config is the subset of the engine's configuration a Worker needs,
// passed by value at dispatch time so no Worker depends on global state.
type Config struct {
	StageRoot      string
	Registry       *schema.Registry
	Synonyms       []rename.SynonymRule
	LocalTZ        *time.Location
	Force          bool
	OnlyYAMLData   bool
	TableExt       string
	Logger         *logrus.Logger
}

// Result is the outcome the Orchestrator aggregates into its summary.
type Result struct {
	Status manifest.Status
	RunID  string
}

// Process runs the full state machine for a single input file. It never
// returns an error to the caller: every failure is classified, written as
// a reject event, and reflected only in the returned Result.
func Process(ctx context.Context, path string, cfg Config) Result {
	start := time.Now()
	defer func() {
		metrics.WorkerDuration.Observe(time.Since(start).Seconds())
	}()

	log := cfg.Logger.WithField("path", path)

	f, err := os.Open(path)
	if err != nil {
		return reject(cfg, path, log, xerrors.New(xerrors.IOFailure, "worker.Process", path, err))
	}
	defer f.Close()

	blocks, err := header.Parse(path, f)
	if err != nil {
		return reject(cfg, path, log, err)
	}

	procSchema, ok := cfg.Registry.Lookup(blocks.ProcedureLabel)
	if !ok {
		return reject(cfg, path, log, xerrors.New(xerrors.UnknownProcedure, "worker.Process", path, nil))
	}

	mode := cast.ModeDefault
	renameMode := rename.ModeKeepUnmatched
	if cfg.OnlyYAMLData {
		mode = cast.ModeOnlyYAMLData
		renameMode = rename.ModeDropUnmatched
	}

	typedParams, err := cast.Values(path, "worker.Process:parameters", blocks.Parameters, procSchema.Parameters, mode, true)
	if err != nil {
		return reject(cfg, path, log, err)
	}
	typedMeta, err := cast.Values(path, "worker.Process:metadata", blocks.Metadata, procSchema.Metadata, mode, true)
	if err != nil {
		return reject(cfg, path, log, err)
	}

	startUTC, dateLocal, origin := tsresolve.Resolve(path, typedMeta, cfg.LocalTZ, os.Stat)

	if _, err := f.Seek(0, 0); err != nil {
		return reject(cfg, path, log, xerrors.New(xerrors.IOFailure, "worker.Process:seek", path, err))
	}
	table, err := dataload.Load(path, f, blocks.DataStartLine)
	if err != nil {
		return reject(cfg, path, log, err)
	}

	renameResult := rename.Resolve(table.Columns, procSchema.Data, cfg.Synonyms, renameMode)
	table = dataload.ApplyRename(table, renameResult.Renamed, renameResult.Unmatched)

	enrichment := enrich.Compute(path, blocks.ProcedureLabel, startUTC, typedParams, typedMeta)
	table = enrich.Broadcast(table, enrichment)

	outcome, err := partition.Write(cfg.StageRoot, blocks.ProcedureLabel, dateLocal, enrichment.RunID, table, cfg.TableExt, cfg.Force)
	if err != nil {
		return reject(cfg, path, log, err)
	}

	status := manifest.Ok
	if outcome.Skipped {
		status = manifest.Skipped
	}

	ev := manifest.NewEvent(status, path)
	ev.RunID = enrichment.RunID
	ev.Proc = blocks.ProcedureLabel
	ev.Rows = table.NumRows
	ev.Path = outcome.Path
	ev.DateOrigin = string(origin)
	ev.DateLocal = dateLocal
	ev.Warnings = renameResult.Warnings
	ev.Fields = enrichmentFields(enrichment)

	if err := manifest.Emit(cfg.StageRoot, enrichment.RunID, ev); err != nil {
		log.WithError(err).Error("failed to emit event")
	}

	metrics.RunsTotal.WithLabelValues(status.String()).Inc()
	log.WithFields(logrus.Fields{"run_id": enrichment.RunID, "status": status.String(), "rows": table.NumRows}).Info("run processed")

	return Result{Status: status, RunID: enrichment.RunID}
}

func reject(cfg Config, path string, log *logrus.Entry, err error) Result {
	code := xerrors.CodeOf(err)
	runID := manifest.FallbackRunID(path)

	ev := manifest.NewEvent(manifest.Reject, path)
	ev.RunID = runID
	ev.Error = err.Error()

	if emitErr := manifest.EmitReject(cfg.StageRoot, runID, path, ev); emitErr != nil {
		log.WithError(emitErr).Error("failed to emit reject event")
	}

	metrics.RunsTotal.WithLabelValues(manifest.Reject.String()).Inc()
	log.WithFields(logrus.Fields{"run_id": runID, "code": code}).Warn("run rejected")

	return Result{Status: manifest.Reject, RunID: runID}
}

func enrichmentFields(c enrich.Columns) map[string]any {
	return map[string]any{
		"chip_group":        c.ChipGroup,
		"chip_number":       c.ChipNumber,
		"sample":            c.Sample,
		"procedure_version": c.ProcedureVersion,
		"has_light":         c.HasLight,
		"wavelength_nm":     c.WavelengthNM,
		"laser_voltage_V":   c.LaserVoltageV,
		"laser_period_s":    c.LaserPeriodS,
		"vds_v":             c.VdsV,
		"vg_fixed_v":        c.VgFixedV,
		"vg_start_v":        c.VgStartV,
		"vg_end_v":          c.VgEndV,
		"vg_step_v":         c.VgStepV,
		"start_time_utc":    c.StartDT,
	}
}
