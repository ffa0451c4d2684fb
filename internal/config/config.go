// Package config handles configuration loading and validation for the
// cveval command.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	cveval "github.com/jamesainslie/go-cveval"
)

// Config holds all evaluation run configuration.
type Config struct {
	// Task type evaluated by the run
	Task string `envconfig:"CVEVAL_TASK" yaml:"task"`

	// IoU thresholds for object detection; empty means the library defaults
	IOUThresholds []float64 `envconfig:"CVEVAL_IOU_THRESHOLDS" yaml:"iou_thresholds"`

	Input  InputConfig  `yaml:"input"`
	Model  ModelConfig  `yaml:"model"`
	Output OutputConfig `yaml:"output"`
	Log    LogConfig    `yaml:"log"`
}

// InputConfig holds prediction file reading settings.
type InputConfig struct {
	BatchSize int `envconfig:"CVEVAL_BATCH_SIZE" yaml:"batch_size"`
	Workers   int `envconfig:"CVEVAL_WORKERS" yaml:"workers"`
}

// ModelConfig holds the optional ONNX scoring head settings.
type ModelConfig struct {
	Path       string `envconfig:"CVEVAL_MODEL_PATH" yaml:"path"`
	PoolSize   int    `envconfig:"CVEVAL_MODEL_POOL_SIZE" yaml:"pool_size"`
	InputName  string `envconfig:"CVEVAL_MODEL_INPUT" yaml:"input_name"`
	OutputName string `envconfig:"CVEVAL_MODEL_OUTPUT" yaml:"output_name"`
}

// OutputConfig holds report output settings.
type OutputConfig struct {
	Format      string `envconfig:"CVEVAL_FORMAT" yaml:"format"`
	Path        string `envconfig:"CVEVAL_OUTPUT" yaml:"path"` // empty = stdout
	MetricsFile string `envconfig:"CVEVAL_METRICS_FILE" yaml:"metrics_file"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `envconfig:"CVEVAL_LOG_LEVEL" yaml:"level"`
	Format string `envconfig:"CVEVAL_LOG_FORMAT" yaml:"format"`
}

// Output formats.
const (
	FormatText  = "text"
	FormatJSON  = "json"
	FormatProto = "proto"
)

// Load loads configuration from defaults, an optional YAML file and the
// environment, in increasing priority. The result is not validated so that
// command-line flags can still be applied.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}

	setDefaults(cfg)

	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("processing env config: %w", err)
	}

	return cfg, nil
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

func setDefaults(cfg *Config) {
	cfg.Task = string(cveval.ObjectDetection)

	cfg.Input = InputConfig{
		BatchSize: 64,
		Workers:   4,
	}

	cfg.Model = ModelConfig{
		PoolSize: 2,
	}

	cfg.Output = OutputConfig{
		Format: FormatText,
	}

	cfg.Log = LogConfig{
		Level:  "info",
		Format: "text",
	}
}

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs []string

	if _, err := cveval.ParseTaskType(c.Task); err != nil {
		errs = append(errs, fmt.Sprintf("invalid task: %s (must be one of %s)", c.Task, taskList()))
	}

	seen := make(map[string]bool, len(c.IOUThresholds))
	for _, t := range c.IOUThresholds {
		if !(t >= 0 && t <= 1) {
			errs = append(errs, fmt.Sprintf("iou threshold %g must be between 0 and 1", t))
			continue
		}
		key := cveval.MeanAPKey(t)
		if seen[key] {
			errs = append(errs, fmt.Sprintf("iou threshold %g duplicates %s", t, key))
		}
		seen[key] = true
	}

	if c.Input.BatchSize < 1 {
		errs = append(errs, "batch_size must be positive")
	}

	if c.Input.Workers < 1 {
		errs = append(errs, "workers must be positive")
	}

	if c.Model.Path != "" && c.Model.PoolSize < 1 {
		errs = append(errs, "model pool_size must be positive")
	}

	validFormats := map[string]bool{FormatText: true, FormatJSON: true, FormatProto: true}
	if !validFormats[c.Output.Format] {
		errs = append(errs, fmt.Sprintf("invalid output format: %s (must be text, json, or proto)", c.Output.Format))
	}

	if _, ok := parseLevel(c.Log.Level); !ok {
		errs = append(errs, fmt.Sprintf("invalid log level: %s (must be debug, info, warn, or error)", c.Log.Level))
	}

	validLogFormats := map[string]bool{"text": true, "json": true}
	if !validLogFormats[c.Log.Format] {
		errs = append(errs, fmt.Sprintf("invalid log format: %s (must be text or json)", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// TaskType returns the configured task. Call after Validate.
func (c *Config) TaskType() cveval.TaskType {
	task, _ := cveval.ParseTaskType(c.Task)
	return task
}

// EvaluatorOptions returns the library options implied by the configuration.
func (c *Config) EvaluatorOptions(logger *slog.Logger) []cveval.Option {
	opts := []cveval.Option{cveval.WithLogger(logger)}
	if len(c.IOUThresholds) > 0 {
		opts = append(opts, cveval.WithIOUThresholds(c.IOUThresholds...))
	}
	return opts
}

// NewLogger builds a slog logger writing to w with the configured level and
// handler format.
func (c LogConfig) NewLogger(w io.Writer) *slog.Logger {
	level, _ := parseLevel(c.Level)
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}

func taskList() string {
	names := make([]string, 0, len(cveval.TaskTypes()))
	for _, t := range cveval.TaskTypes() {
		names = append(names, string(t))
	}
	return strings.Join(names, ", ")
}
