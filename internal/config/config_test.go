package config

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	cveval "github.com/jamesainslie/go-cveval"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Task != string(cveval.ObjectDetection) {
		t.Errorf("Task = %s, want %s", cfg.Task, cveval.ObjectDetection)
	}
	if cfg.Input.BatchSize != 64 {
		t.Errorf("Input.BatchSize = %d, want 64", cfg.Input.BatchSize)
	}
	if cfg.Output.Format != FormatText {
		t.Errorf("Output.Format = %s, want %s", cfg.Output.Format, FormatText)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CVEVAL_TASK", "multilabel_classification")
	t.Setenv("CVEVAL_WORKERS", "8")
	t.Setenv("CVEVAL_LOG_LEVEL", "debug")
	t.Setenv("CVEVAL_IOU_THRESHOLDS", "0.5,0.75")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Task != "multilabel_classification" {
		t.Errorf("Task = %s, want multilabel_classification", cfg.Task)
	}
	if cfg.Input.Workers != 8 {
		t.Errorf("Input.Workers = %d, want 8", cfg.Input.Workers)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %s, want debug", cfg.Log.Level)
	}
	if want := []float64{0.5, 0.75}; !reflect.DeepEqual(cfg.IOUThresholds, want) {
		t.Errorf("IOUThresholds = %v, want %v", cfg.IOUThresholds, want)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "cveval.yaml")

	configContent := `
task: multiclass_classification
input:
  batch_size: 128
output:
  format: json
  metrics_file: /tmp/cveval.prom
log:
  level: warn
  format: json
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Task != "multiclass_classification" {
		t.Errorf("Task = %s, want multiclass_classification", cfg.Task)
	}
	if cfg.Input.BatchSize != 128 {
		t.Errorf("Input.BatchSize = %d, want 128", cfg.Input.BatchSize)
	}
	// Unset keys keep their defaults
	if cfg.Input.Workers != 4 {
		t.Errorf("Input.Workers = %d, want 4", cfg.Input.Workers)
	}
	if cfg.Output.Format != FormatJSON {
		t.Errorf("Output.Format = %s, want json", cfg.Output.Format)
	}
	if cfg.Output.MetricsFile != "/tmp/cveval.prom" {
		t.Errorf("Output.MetricsFile = %s, want /tmp/cveval.prom", cfg.Output.MetricsFile)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %s, want json", cfg.Log.Format)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "cveval.yaml")
	if err := os.WriteFile(configPath, []byte("output:\n  format: json\n"), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	t.Setenv("CVEVAL_FORMAT", "proto")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Output.Format != FormatProto {
		t.Errorf("Output.Format = %s, want proto", cfg.Output.Format)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"bad task", func(c *Config) { c.Task = "segmentation" }, "invalid task"},
		{"threshold out of range", func(c *Config) { c.IOUThresholds = []float64{1.5} }, "between 0 and 1"},
		{"duplicate threshold key", func(c *Config) { c.IOUThresholds = []float64{0.5, 0.501} }, "duplicates mAP_50"},
		{"zero batch size", func(c *Config) { c.Input.BatchSize = 0 }, "batch_size"},
		{"zero workers", func(c *Config) { c.Input.Workers = 0 }, "workers"},
		{"model without pool", func(c *Config) { c.Model.Path = "head.onnx"; c.Model.PoolSize = 0 }, "pool_size"},
		{"bad format", func(c *Config) { c.Output.Format = "xml" }, "invalid output format"},
		{"bad log level", func(c *Config) { c.Log.Level = "trace" }, "invalid log level"},
		{"bad log format", func(c *Config) { c.Log.Format = "logfmt" }, "invalid log format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			setDefaults(cfg)
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := &Config{}
	setDefaults(cfg)
	cfg.Task = "nope"
	cfg.Input.Workers = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "invalid task") || !strings.Contains(err.Error(), "workers") {
		t.Errorf("Validate() error = %v, want both problems", err)
	}
}

func TestEvaluatorOptions(t *testing.T) {
	cfg := &Config{}
	setDefaults(cfg)
	cfg.IOUThresholds = []float64{0.5}

	ev, err := cveval.New(cfg.TaskType(), cfg.EvaluatorOptions(nil)...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := ev.Add(cveval.Batch{}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	keys := ev.Report().Keys()
	if !reflect.DeepEqual(keys, []string{"mAP_50"}) {
		t.Errorf("Report().Keys() = %v, want [mAP_50]", keys)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := LogConfig{Level: "warn", Format: "json"}.NewLogger(&buf)

	logger.Info("hidden")
	logger.Warn("shown", "k", 1)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message logged at warn level: %s", out)
	}
	if !strings.Contains(out, `"msg":"shown"`) {
		t.Errorf("expected JSON warn record, got: %s", out)
	}
}
