// Package orchestrator discovers CSV inputs beneath a raw root, dispatches
// Workers across a bounded pool, and invokes the Manifest Merger once every
// Worker has reached a terminal state.
package orchestrator

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/joaquim-mph/optostage/internal/config"
	"github.com/joaquim-mph/optostage/internal/manifest"
	"github.com/joaquim-mph/optostage/internal/metrics"
	"github.com/joaquim-mph/optostage/internal/rename"
	"github.com/joaquim-mph/optostage/internal/schema"
	"github.com/joaquim-mph/optostage/internal/worker"
	"github.com/joaquim-mph/optostage/internal/workerpool"
)

// Summary reports counts by terminal status after a full orchestration run.
type Summary struct {
	OK      int
	Skipped int
	Reject  int
}

// Run discovers every non-hidden *.csv file beneath cfg.RawRoot, processes
// each through a Worker on a bounded pool of cfg.Workers goroutines, waits
// for every Worker to finish, and then invokes the Manifest Merger.
func Run(ctx context.Context, cfg *config.Config, log *logrus.Logger) (Summary, error) {
	registry, err := schema.LoadCached(cfg.ProceduresYAML)
	if err != nil {
		return Summary{}, fmt.Errorf("load schema registry: %w", err)
	}

	loc, err := time.LoadLocation(cfg.LocalTZ)
	if err != nil {
		return Summary{}, fmt.Errorf("load timezone %s: %w", cfg.LocalTZ, err)
	}

	inputs, err := Discover(cfg.RawRoot)
	if err != nil {
		return Summary{}, fmt.Errorf("discover inputs under %s: %w", cfg.RawRoot, err)
	}

	var metricsServer *metrics.Server
	if cfg.MetricsAddr != "" {
		metricsServer = metrics.NewServer(cfg.MetricsAddr)
		metricsServer.Start()
		defer func() {
			_ = metricsServer.Stop(context.Background())
		}()
	}

	pool := workerpool.New(cfg.Workers, log)

	// A cancellation signal on ctx stops further dispatch but never
	// interrupts a Worker already in flight, preserving the atomic-write
	// invariant; Wait still blocks until every dispatched Task finishes.
	go func() {
		<-ctx.Done()
		pool.Cancel()
	}()

	results := make(chan worker.Result, len(inputs))

	wcfg := worker.Config{
		StageRoot:    cfg.StageRoot,
		Registry:     registry,
		Synonyms:     rename.DefaultSynonyms,
		LocalTZ:      loc,
		Force:        cfg.Force,
		OnlyYAMLData: cfg.OnlyYAMLData,
		TableExt:     cfg.TableExt,
		Logger:       log,
	}

dispatch:
	for _, path := range inputs {
		path := path
		select {
		case <-ctx.Done():
			log.Warn("dispatch stopped: context canceled")
			break dispatch
		default:
		}
		task := workerpool.Task{
			ID: path,
			Execute: func(taskCtx context.Context) {
				results <- worker.Process(taskCtx, path, wcfg)
			},
		}
		if err := pool.Submit(task); err != nil {
			log.WithError(err).WithField("path", path).Error("failed to submit task")
		}
	}

	pool.Wait()
	close(results)

	var summary Summary
	for r := range results {
		switch r.Status {
		case manifest.Ok:
			summary.OK++
		case manifest.Skipped:
			summary.Skipped++
		case manifest.Reject:
			summary.Reject++
		}
	}

	mergeStart := time.Now()
	if _, err := manifest.Merge(cfg.StageRoot, cfg.ManifestName); err != nil {
		return summary, fmt.Errorf("merge manifest: %w", err)
	}
	metrics.ManifestMergeDuration.Observe(time.Since(mergeStart).Seconds())

	log.WithFields(logrus.Fields{
		"ok":      summary.OK,
		"skipped": summary.Skipped,
		"reject":  summary.Reject,
	}).Info("ingestion complete")

	return summary, nil
}

// Discover recursively enumerates every *.csv file beneath root, skipping
// hidden directories and files (leading dot in any path segment).
func Discover(root string) ([]string, error) {
	var inputs []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if strings.HasPrefix(name, ".") && path != root {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if strings.EqualFold(filepath.Ext(name), ".csv") {
			inputs = append(inputs, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return inputs, nil
}
