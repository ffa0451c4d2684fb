package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	cveval "github.com/jamesainslie/go-cveval"
	"github.com/jamesainslie/go-cveval/inference"
	"github.com/jamesainslie/go-cveval/internal/config"
	"github.com/jamesainslie/go-cveval/internal/export"
	"github.com/jamesainslie/go-cveval/internal/pipeline"
	"github.com/jamesainslie/go-cveval/internal/records"
)

// resolveConfig loads file and environment configuration and applies the
// flags that were set explicitly.
func resolveConfig(cmd *cobra.Command, f evaluateFlags) (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("task") {
		cfg.Task = f.task
	}
	if flags.Changed("iou") {
		cfg.IOUThresholds = f.iou
	}
	if flags.Changed("iou-range") {
		thresholds, err := parseRange(f.iouRange)
		if err != nil {
			return nil, err
		}
		cfg.IOUThresholds = thresholds
	}
	if flags.Changed("model") {
		cfg.Model.Path = f.model
	}
	if flags.Changed("pool-size") {
		cfg.Model.PoolSize = f.poolSize
	}
	if flags.Changed("batch-size") {
		cfg.Input.BatchSize = f.batchSize
	}
	if flags.Changed("workers") {
		cfg.Input.Workers = f.workers
	}
	if flags.Changed("format") {
		cfg.Output.Format = f.format
	}
	if flags.Changed("output") {
		cfg.Output.Path = f.output
	}
	if flags.Changed("metrics-file") {
		cfg.Output.MetricsFile = f.metricsFile
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = f.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = f.logFormat
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseRange parses "min:max:step" into a threshold list.
func parseRange(s string) ([]float64, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return nil, fmt.Errorf("invalid --iou-range %q: want min:max:step", s)
	}
	var v [3]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid --iou-range %q: %w", s, err)
		}
		v[i] = f
	}
	thresholds := cveval.ThresholdRange(v[0], v[1], v[2])
	if len(thresholds) == 0 {
		return nil, fmt.Errorf("invalid --iou-range %q: empty range", s)
	}
	return thresholds, nil
}

// runEvaluate runs one evaluation and writes the report to stdout or the
// configured output file.
func runEvaluate(ctx context.Context, cfg *config.Config, input string, stdout, stderr io.Writer) (err error) {
	runID := uuid.NewString()
	logger := cfg.Log.NewLogger(stderr).With("run_id", runID)
	task := cfg.TaskType()

	ev, err := cveval.New(task, cfg.EvaluatorOptions(logger)...)
	if err != nil {
		return err
	}

	var scorer pipeline.Scorer
	if cfg.Model.Path != "" {
		pool, perr := inference.NewPool(inference.SessionConfig{
			ModelPath:  cfg.Model.Path,
			InputName:  cfg.Model.InputName,
			OutputName: cfg.Model.OutputName,
		}, cfg.Model.PoolSize)
		if perr != nil {
			return fmt.Errorf("loading scoring head: %w", perr)
		}
		defer func() { err = errors.Join(err, pool.Close()) }()
		scorer = pool
		logger.Info("scoring head loaded", "model", cfg.Model.Path, "sessions", pool.Size())
	}

	in, err := openInput(input)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }() // Read-only; close error is irrelevant

	p := pipeline.New(pipeline.Config{
		Task:      task,
		BatchSize: cfg.Input.BatchSize,
		Workers:   cfg.Input.Workers,
		Scorer:    scorer,
		Logger:    logger,
	})
	stats, err := p.Run(ctx, records.NewReader(in), ev)
	if err != nil {
		logger.Error("evaluation failed", "input", input, "batches", stats.Batches, "error", err)
		return err
	}

	summary := export.Summary{
		RunID:  runID,
		Task:   task,
		Images: stats.Images,
		Report: ev.Report(),
	}
	logger.Info("evaluation complete", "task", task, "images", stats.Images, "batches", stats.Batches, "scored", stats.Scored)

	if err := writeReport(cfg.Output, summary, stdout); err != nil {
		return err
	}

	if cfg.Output.MetricsFile != "" {
		c := export.NewCollector()
		c.Observe(summary)
		if err := c.WriteTextfile(cfg.Output.MetricsFile); err != nil {
			return fmt.Errorf("writing metrics file: %w", err)
		}
		logger.Debug("metrics file written", "path", cfg.Output.MetricsFile)
	}
	return nil
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening input: %w", err)
	}
	return f, nil
}

func writeReport(out config.OutputConfig, s export.Summary, stdout io.Writer) (err error) {
	if out.Path == "" {
		return export.Write(stdout, out.Format, s)
	}
	f, err := os.Create(out.Path)
	if err != nil {
		return fmt.Errorf("creating output: %w", err)
	}
	defer func() { err = errors.Join(err, f.Close()) }()
	return export.Write(f, out.Format, s)
}
