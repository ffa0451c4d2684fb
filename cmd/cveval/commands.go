package main

import (
	"fmt"

	"github.com/spf13/cobra"

	cveval "github.com/jamesainslie/go-cveval"
)

// evaluateFlags holds command-line overrides for the evaluate command.
type evaluateFlags struct {
	configPath  string
	task        string
	iou         []float64
	iouRange    string
	model       string
	poolSize    int
	batchSize   int
	workers     int
	format      string
	output      string
	metricsFile string
	logLevel    string
	logFormat   string
}

func buildEvaluateCmd() *cobra.Command {
	var f evaluateFlags

	cmd := &cobra.Command{
		Use:   "evaluate [flags] INPUT.jsonl",
		Short: "Evaluate a prediction file",
		Long: `Evaluate reads one JSON record per image and prints the metric report.

Record formats:
  multiclass_classification  {"scores":[...],"label":3}
  multilabel_classification  {"scores":[...],"labels":[0,1,0]}
  object_detection           {"detections":[[cls,conf,l,t,r,b]],"boxes":[[cls,l,t,r,b]]}

Classification records may carry "features" instead of "scores" when --model
names an ONNX scoring head. Use "-" to read from standard input.`,
		Example: `  # Detection mAP at the default IoU thresholds
  cveval evaluate --task object_detection preds.jsonl

  # COCO-style threshold sweep written as JSON
  cveval evaluate --task object_detection --iou-range 0.5:0.95:0.05 --format json preds.jsonl`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, f)
			if err != nil {
				return err
			}
			return runEvaluate(cmd.Context(), cfg, args[0], cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.configPath, "config", "c", "", "Path to YAML configuration file")
	flags.StringVarP(&f.task, "task", "t", "", "Task type (see 'cveval tasks')")
	flags.Float64SliceVar(&f.iou, "iou", nil, "IoU thresholds for object detection, e.g. 0.5,0.75")
	flags.StringVar(&f.iouRange, "iou-range", "", "IoU threshold range min:max:step, e.g. 0.5:0.95:0.05")
	flags.StringVar(&f.model, "model", "", "ONNX scoring head for records that carry features")
	flags.IntVar(&f.poolSize, "pool-size", 0, "Number of ONNX sessions")
	flags.IntVarP(&f.batchSize, "batch-size", "b", 0, "Images per batch")
	flags.IntVarP(&f.workers, "workers", "w", 0, "Conversion workers")
	flags.StringVarP(&f.format, "format", "f", "", "Output format: text, json or proto")
	flags.StringVarP(&f.output, "output", "o", "", "Write the report to a file instead of stdout")
	flags.StringVar(&f.metricsFile, "metrics-file", "", "Also write Prometheus textfile metrics to this path")
	flags.StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	flags.StringVar(&f.logFormat, "log-format", "", "Log format: text or json")
	cmd.MarkFlagsMutuallyExclusive("iou", "iou-range")

	return cmd
}

func buildTasksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tasks",
		Short: "List supported task types",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, t := range cveval.TaskTypes() {
				fmt.Fprintln(cmd.OutOrStdout(), t)
			}
		},
	}
}

func buildVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "cveval %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}
