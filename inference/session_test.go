package inference

import (
	"context"
	"errors"
	"os"
	"reflect"
	"strings"
	"testing"
	"time"
)

const testModelPath = "../testdata/head.onnx"

// requireModel skips the test when the scoring head fixture is missing.
func requireModel(t *testing.T) SessionConfig {
	t.Helper()
	if _, err := os.Stat(testModelPath); err != nil {
		t.Skipf("Skipping: model not available at %s", testModelPath)
	}
	return SessionConfig{ModelPath: testModelPath}
}

func openSession(t *testing.T) *Session {
	t.Helper()
	cfg := requireModel(t)
	session, err := NewSession(cfg)
	if err != nil {
		if isORTUnavailableError(err) {
			t.Skipf("Skipping: ONNX runtime not available: %v", err)
		}
		t.Fatalf("NewSession failed: %v", err)
	}
	return session
}

func TestNewSession_FileNotFound(t *testing.T) {
	_, err := NewSession(SessionConfig{ModelPath: "../testdata/nonexistent.onnx"})
	if err == nil {
		t.Fatal("expected error for non-existent file")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist, got: %v", err)
	}
}

func TestSessionConfig_Defaults(t *testing.T) {
	got := SessionConfig{ModelPath: "m.onnx"}.withDefaults()
	if got.InputName != DefaultInputName || got.OutputName != DefaultOutputName {
		t.Errorf("withDefaults() = %+v", got)
	}

	custom := SessionConfig{ModelPath: "m.onnx", InputName: "x", OutputName: "y"}.withDefaults()
	if custom.InputName != "x" || custom.OutputName != "y" {
		t.Errorf("withDefaults() overrode names: %+v", custom)
	}
}

func TestSplitRows(t *testing.T) {
	got := splitRows([]float32{0.5, 0.25, 1, 0, 0.75, 0.125}, 2, 3)
	want := [][]float64{{0.5, 0.25, 1}, {0, 0.75, 0.125}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("splitRows() = %v, want %v", got, want)
	}
}

func TestSession_Scores(t *testing.T) {
	session := openSession(t)
	defer func() { _ = session.Close() }()

	features := [][]float32{
		make([]float32, 16),
		make([]float32, 16),
		make([]float32, 16),
	}
	for i := range features {
		features[i][i] = 1
	}

	scores, err := session.Scores(context.Background(), features)
	if err != nil {
		t.Fatalf("Scores failed: %v", err)
	}
	if len(scores) != len(features) {
		t.Fatalf("expected %d rows, got %d", len(features), len(scores))
	}
	for i, row := range scores {
		if len(row) == 0 || len(row) != len(scores[0]) {
			t.Errorf("row %d has %d classes, want %d", i, len(row), len(scores[0]))
		}
	}
}

func TestSession_Scores_Empty(t *testing.T) {
	s := &Session{}
	scores, err := s.Scores(context.Background(), nil)
	if err != nil || scores != nil {
		t.Errorf("Scores(nil) = %v, %v; want nil, nil", scores, err)
	}
}

func TestSession_Scores_RaggedFeatures(t *testing.T) {
	s := &Session{}
	_, err := s.Scores(context.Background(), [][]float32{{1, 2}, {1}})
	if err == nil {
		t.Error("expected error for ragged feature vectors")
	}
}

func TestSession_Scores_ContextCancellation(t *testing.T) {
	s := &Session{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Scores(ctx, [][]float32{{1}})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled error, got: %v", err)
	}
}

func TestSession_Scores_ContextTimeout(t *testing.T) {
	s := &Session{}

	ctx, cancel := context.WithTimeout(context.Background(), -time.Second)
	defer cancel()

	_, err := s.Scores(ctx, [][]float32{{1}})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context.DeadlineExceeded error, got: %v", err)
	}
}

func TestSession_Close_Idempotent(t *testing.T) {
	session := openSession(t)

	if err := session.Close(); err != nil {
		t.Errorf("first Close failed: %v", err)
	}
	if err := session.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}

func TestSession_Scores_AfterClose(t *testing.T) {
	s := &Session{}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	_, err := s.Scores(context.Background(), [][]float32{{1, 2}})
	if err == nil {
		t.Error("expected error when calling Scores on closed session")
	}
}

// isORTUnavailableError checks if the error indicates ONNX runtime is not available.
func isORTUnavailableError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "onnxruntime") ||
		strings.Contains(errStr, "shared library") ||
		strings.Contains(errStr, "dylib") ||
		strings.Contains(errStr, ".so") ||
		strings.Contains(errStr, ".dll") ||
		strings.Contains(errStr, "cannot open") ||
		strings.Contains(errStr, "initializing ONNX runtime")
}
