// Package main provides the cveval command, which evaluates image
// classification and object detection predictions stored as JSON Lines.
//
// # Basic Usage
//
//	cveval evaluate --task object_detection predictions.jsonl
//	cveval evaluate --task multiclass_classification --format json --output report.json preds.jsonl
//	cveval evaluate --task object_detection --iou-range 0.5:0.95:0.05 --metrics-file /var/lib/node_exporter/cveval.prom preds.jsonl
//	cveval sweep --iou 0.5 --min 0.1 --max 0.9 --step 0.1 preds.jsonl
//
// # Environment Variables
//
// Every setting can also come from a YAML file (--config) or CVEVAL_*
// variables, for example CVEVAL_TASK, CVEVAL_IOU_THRESHOLDS, CVEVAL_WORKERS,
// CVEVAL_MODEL_PATH and CVEVAL_LOG_LEVEL. Flags take precedence.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Build information - populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := buildRootCmd().ExecuteContext(ctx); err != nil {
		slog.Error("command execution failed", "error", err)
		stop()
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cveval",
		Short: "Offline metrics for image classification and object detection",
		Long: `cveval computes top-1/top-5 accuracy, multilabel accuracy, average precision
and mean average precision at several IoU thresholds from per-image predictions
and ground truth stored as JSON Lines.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildEvaluateCmd(),
		buildSweepCmd(),
		buildTasksCmd(),
		buildVersionCmd(),
	)

	return rootCmd
}
