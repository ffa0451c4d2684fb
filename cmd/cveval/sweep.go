package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	cveval "github.com/jamesainslie/go-cveval"
	"github.com/jamesainslie/go-cveval/internal/config"
	"github.com/jamesainslie/go-cveval/internal/pipeline"
	"github.com/jamesainslie/go-cveval/internal/records"
	"github.com/jamesainslie/go-cveval/internal/sweep"
)

type sweepFlags struct {
	configPath string
	iou        float64
	min        float64
	max        float64
	step       float64
	wp         float64
	wr         float64
	batchSize  int
	workers    int
	logLevel   string
}

func buildSweepCmd() *cobra.Command {
	var f sweepFlags
	def := sweep.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "sweep [flags] INPUT.jsonl",
		Short: "Sweep detection confidence cutoffs at one IoU threshold",
		Long: `Sweep matches object detection records once at --iou and reports precision,
recall, F1 and a weighted precision/recall score for every confidence cutoff in
the range. The optimal cutoff maximizes the weighted score.`,
		Example: `  cveval sweep --iou 0.5 --min 0.1 --max 0.9 --step 0.1 preds.jsonl
  cveval sweep --wr 2 preds.jsonl   # favor recall`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(f.configPath)
			if err != nil {
				return err
			}
			cfg.Task = string(cveval.ObjectDetection)
			cfg.IOUThresholds = []float64{f.iou}
			if cmd.Flags().Changed("batch-size") {
				cfg.Input.BatchSize = f.batchSize
			}
			if cmd.Flags().Changed("workers") {
				cfg.Input.Workers = f.workers
			}
			if cmd.Flags().Changed("log-level") {
				cfg.Log.Level = f.logLevel
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			thresholds := cveval.ThresholdRange(f.min, f.max, f.step)
			if len(thresholds) == 0 {
				return fmt.Errorf("empty sweep range %g:%g:%g", f.min, f.max, f.step)
			}
			sc := sweep.Config{IOUThreshold: f.iou, PrecisionWeight: f.wp, RecallWeight: f.wr}
			return runSweep(cmd.Context(), cfg, sc, thresholds, args[0], cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.configPath, "config", "c", "", "Path to YAML configuration file")
	flags.Float64Var(&f.iou, "iou", def.IOUThreshold, "IoU threshold for matching")
	flags.Float64Var(&f.min, "min", 0.05, "Sweep minimum confidence")
	flags.Float64Var(&f.max, "max", 0.95, "Sweep maximum confidence")
	flags.Float64Var(&f.step, "step", 0.05, "Sweep step size")
	flags.Float64Var(&f.wp, "wp", def.PrecisionWeight, "Precision weight")
	flags.Float64Var(&f.wr, "wr", def.RecallWeight, "Recall weight")
	flags.IntVarP(&f.batchSize, "batch-size", "b", 0, "Images per batch")
	flags.IntVarP(&f.workers, "workers", "w", 0, "Conversion workers")
	flags.StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn or error")

	return cmd
}

func runSweep(ctx context.Context, cfg *config.Config, sc sweep.Config, thresholds []float64, input string, stdout, stderr io.Writer) error {
	logger := cfg.Log.NewLogger(stderr)

	c, err := sweep.NewCollector(sc, cveval.WithLogger(logger))
	if err != nil {
		return err
	}

	in, err := openInput(input)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	p := pipeline.New(pipeline.Config{
		Task:      cveval.ObjectDetection,
		BatchSize: cfg.Input.BatchSize,
		Workers:   cfg.Input.Workers,
		Logger:    logger,
	})
	stats, err := p.Run(ctx, records.NewReader(in), c)
	if err != nil {
		logger.Error("sweep failed", "input", input, "error", err)
		return err
	}

	results := c.Sweep(thresholds)
	printSweep(stdout, sc, stats.Images, thresholds, results, c.Report())
	return nil
}

func printSweep(w io.Writer, sc sweep.Config, images int, thresholds []float64, results []sweep.Result, r cveval.Report) {
	fmt.Fprintf(w, "Confidence Sweep (iou=%.2f, wp=%.1f, wr=%.1f, images=%d)\n", sc.IOUThreshold, sc.PrecisionWeight, sc.RecallWeight, images)
	fmt.Fprintln(w, strings.Repeat("-", 50))
	fmt.Fprintf(w, "%-8s %-8s %-8s %-8s %-8s\n", "Thresh", "Prec", "Rec", "F1", "Weighted")

	// Print sorted by threshold for readability
	byThreshold := make(map[float64]sweep.Metrics, len(results))
	for _, res := range results {
		byThreshold[res.Threshold] = res.Metrics
	}
	for _, t := range thresholds {
		m := byThreshold[t]
		fmt.Fprintf(w, "%-8.3f %-8.2f %-8.2f %-8.2f %-8.2f\n", t, m.Precision, m.Recall, m.F1, m.WeightedScore)
	}

	fmt.Fprintln(w, strings.Repeat("-", 50))
	if len(results) > 0 {
		best := results[0]
		fmt.Fprintf(w, "Optimal: %.3f (Weighted: %.2f)\n", best.Threshold, best.Metrics.WeightedScore)
	}
	fmt.Fprintf(w, "Best F1: %.2f at %.3f\n", r[sweep.MetricBestF1], r[sweep.MetricBestF1Threshold])
	fmt.Fprintf(w, "%s: %.4f\n", cveval.MeanAPKey(sc.IOUThreshold), r[cveval.MeanAPKey(sc.IOUThreshold)])
}
