package cveval

import (
	"fmt"
	"math"
)

// TaskType selects an evaluator variant.
type TaskType string

// Supported task types.
const (
	MulticlassClassification TaskType = "multiclass_classification"
	MultilabelClassification TaskType = "multilabel_classification"
	ObjectDetection          TaskType = "object_detection"
)

// TaskTypes lists every supported task type.
func TaskTypes() []TaskType {
	return []TaskType{MulticlassClassification, MultilabelClassification, ObjectDetection}
}

// ParseTaskType converts a task name into a TaskType.
func ParseTaskType(name string) (TaskType, error) {
	for _, t := range TaskTypes() {
		if string(t) == name {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedTaskType, name)
}

// Batch carries one batch of predictions and targets for any task type.
// Only the fields belonging to the evaluator's task may be set.
type Batch struct {
	// Scores holds per-class scores, one row per image (classification).
	Scores [][]float64
	// Labels holds the correct class per image (multiclass).
	Labels []int
	// LabelSets holds the per-class truth flags per image (multilabel).
	LabelSets [][]bool
	// Detections holds the predicted boxes per image (object detection).
	Detections [][]Detection
	// Boxes holds the ground-truth boxes per image (object detection).
	Boxes [][]GroundTruth
}

// Len returns the number of images in the batch.
func (b Batch) Len() int {
	return max(len(b.Scores), len(b.Detections))
}

// Evaluator accumulates batches and reports metrics for one task type.
type Evaluator interface {
	// Task reports which task type the evaluator handles.
	Task() TaskType
	// Add validates and accumulates one batch. A rejected batch leaves the
	// accumulated state unchanged.
	Add(b Batch) error
	// Report computes the metrics for everything accumulated so far.
	Report() Report
	// Reset discards all accumulated state.
	Reset()
}

// New creates the evaluator for task.
func New(task TaskType, opts ...Option) (Evaluator, error) {
	switch task {
	case MulticlassClassification:
		return NewMulticlassEvaluator(opts...), nil
	case MultilabelClassification:
		return NewMultilabelEvaluator(opts...), nil
	case ObjectDetection:
		return NewDetectionEvaluator(opts...)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedTaskType, task)
	}
}

func checkLengths(predictions, targets int) error {
	if predictions != targets {
		return fmt.Errorf("%w: %d predictions for %d targets", ErrInvalidBatch, predictions, targets)
	}
	return nil
}

// checkScores validates a classification score matrix and returns its width.
func checkScores(scores [][]float64) (int, error) {
	if len(scores) == 0 {
		return 0, nil
	}
	width := len(scores[0])
	if width == 0 {
		return 0, fmt.Errorf("%w: image 0 has no class scores", ErrInvalidBatch)
	}
	for i, row := range scores {
		if len(row) != width {
			return 0, fmt.Errorf("%w: image %d has %d class scores, want %d", ErrInvalidBatch, i, len(row), width)
		}
		for c, s := range row {
			if !isFinite(s) {
				return 0, fmt.Errorf("%w: image %d class %d score %v", ErrInvalidValue, i, c, s)
			}
		}
	}
	return width, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
