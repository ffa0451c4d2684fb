// Package inference runs ONNX classification heads that turn pre-extracted
// image features into per-class scores.
package inference

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// Default tensor names of a scoring head.
const (
	DefaultInputName  = "features"
	DefaultOutputName = "scores"
)

var (
	ortEnvOnce sync.Once
	ortEnvErr  error
)

// initORT initializes ONNX Runtime environment once.
func initORT() error {
	ortEnvOnce.Do(func() {
		ortEnvErr = ort.InitializeEnvironment()
	})
	return ortEnvErr
}

// SessionConfig names the model file and its input/output tensors.
type SessionConfig struct {
	ModelPath  string
	InputName  string
	OutputName string
}

func (c SessionConfig) withDefaults() SessionConfig {
	if c.InputName == "" {
		c.InputName = DefaultInputName
	}
	if c.OutputName == "" {
		c.OutputName = DefaultOutputName
	}
	return c
}

// Session wraps an ONNX Runtime session for a scoring head with one
// [batch, features] float32 input and one [batch, classes] float32 output.
type Session struct {
	session *ort.DynamicAdvancedSession
	mu      sync.Mutex
	closed  bool
}

// NewSession creates a new ONNX session from cfg.
func NewSession(cfg SessionConfig) (*Session, error) {
	cfg = cfg.withDefaults()

	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("model file: %w", err)
	}

	if err := initORT(); err != nil {
		return nil, fmt.Errorf("initializing ONNX runtime: %w", err)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("creating session options: %w", err)
	}
	defer func() { _ = options.Destroy() }() // Cleanup error doesn't affect success

	session, err := ort.NewDynamicAdvancedSession(
		cfg.ModelPath,
		[]string{cfg.InputName},
		[]string{cfg.OutputName},
		options,
	)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	return &Session{session: session}, nil
}

// Scores runs the head on a batch of feature vectors and returns one row of
// class scores per vector. All vectors must have the same length.
func (s *Session) Scores(ctx context.Context, features [][]float32) ([][]float64, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if len(features) == 0 {
		return nil, nil
	}
	dim := len(features[0])
	if dim == 0 {
		return nil, errors.New("empty feature vector")
	}
	flat := make([]float32, 0, len(features)*dim)
	for i, f := range features {
		if len(f) != dim {
			return nil, fmt.Errorf("feature vector %d has length %d, want %d", i, len(f), dim)
		}
		flat = append(flat, f...)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("session is closed")
	}

	input, err := ort.NewTensor(ort.NewShape(int64(len(features)), int64(dim)), flat)
	if err != nil {
		return nil, fmt.Errorf("creating features tensor: %w", err)
	}
	defer func() { _ = input.Destroy() }()

	// nil entries are allocated by Run
	outputs := []ort.Value{nil}
	if err := s.session.Run([]ort.Value{input}, outputs); err != nil {
		return nil, fmt.Errorf("running inference: %w", err)
	}
	if outputs[0] == nil {
		return nil, fmt.Errorf("no output produced")
	}
	defer func() { _ = outputs[0].Destroy() }()

	scoresTensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected output tensor type")
	}

	shape := scoresTensor.GetShape()
	if len(shape) != 2 || shape[0] != int64(len(features)) {
		return nil, fmt.Errorf("unexpected output shape %v", shape)
	}
	return splitRows(scoresTensor.GetData(), len(features), int(shape[1])), nil
}

// splitRows copies a row-major [rows, cols] buffer into float64 rows.
func splitRows(data []float32, rows, cols int) [][]float64 {
	out := make([][]float64, rows)
	for i := range out {
		row := make([]float64, cols)
		for j := range row {
			row[j] = float64(data[i*cols+j])
		}
		out[i] = row
	}
	return out
}

// Close releases ONNX resources.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	if s.session != nil {
		return s.session.Destroy()
	}
	return nil
}
