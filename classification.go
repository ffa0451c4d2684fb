package cveval

import (
	"fmt"
	"log/slog"
)

const (
	// topK is the k of the top-k accuracy, capped by the number of classes.
	topK = 5

	// multilabelThreshold is the score above which a class counts as predicted.
	multilabelThreshold = 0.5
)

// MulticlassEvaluator evaluates single-label classification.
type MulticlassEvaluator struct {
	logger *slog.Logger

	top1Correct int
	top5Correct int
	apSum       float64
	total       int
}

// NewMulticlassEvaluator creates an empty MulticlassEvaluator.
func NewMulticlassEvaluator(opts ...Option) *MulticlassEvaluator {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &MulticlassEvaluator{logger: cfg.logger}
}

// Task implements Evaluator.
func (e *MulticlassEvaluator) Task() TaskType { return MulticlassClassification }

// Add implements Evaluator.
func (e *MulticlassEvaluator) Add(b Batch) error {
	if b.LabelSets != nil || b.Detections != nil || b.Boxes != nil {
		return fmt.Errorf("%w: multiclass batch carries multilabel or detection fields", ErrInvalidBatch)
	}
	return e.AddPredictions(b.Scores, b.Labels)
}

// AddPredictions accumulates one batch. predictions holds one row of class
// scores per image, targets the index of the correct class per image.
func (e *MulticlassEvaluator) AddPredictions(predictions [][]float64, targets []int) error {
	if err := checkLengths(len(predictions), len(targets)); err != nil {
		return err
	}
	numClasses, err := checkScores(predictions)
	if err != nil {
		return err
	}
	for i, t := range targets {
		if t < 0 || t >= numClasses {
			return fmt.Errorf("%w: image %d target class %d outside [0, %d)", ErrInvalidValue, i, t, numClasses)
		}
	}
	if len(predictions) == 0 {
		return nil
	}

	k := min(topK, numClasses)
	labels := make([]bool, 0, len(predictions)*numClasses)
	scores := make([]float64, 0, len(predictions)*numClasses)
	for i, row := range predictions {
		rank := classRank(row, targets[i])
		if rank == 0 {
			e.top1Correct++
		}
		if rank < k {
			e.top5Correct++
		}
		for c, s := range row {
			labels = append(labels, c == targets[i])
			scores = append(scores, s)
		}
	}

	n := len(predictions)
	e.apSum += averagePrecision(labels, scores) * float64(n)
	e.total += n

	e.logger.Debug("batch accumulated",
		"task", MulticlassClassification,
		"images", n,
		"total", e.total,
	)
	return nil
}

// Report implements Evaluator.
func (e *MulticlassEvaluator) Report() Report {
	return Report{
		MetricTop1Accuracy:     ratio(float64(e.top1Correct), e.total),
		MetricTop5Accuracy:     ratio(float64(e.top5Correct), e.total),
		MetricAveragePrecision: ratio(e.apSum, e.total),
	}
}

// Reset implements Evaluator.
func (e *MulticlassEvaluator) Reset() {
	e.top1Correct = 0
	e.top5Correct = 0
	e.apSum = 0
	e.total = 0
}

// classRank returns the 0-based position of class target when row is ranked by
// descending score, ties going to the lower class index.
func classRank(row []float64, target int) int {
	rank := 0
	for c, s := range row {
		if s > row[target] || (s == row[target] && c < target) {
			rank++
		}
	}
	return rank
}

// MultilabelEvaluator evaluates multi-label classification.
type MultilabelEvaluator struct {
	logger *slog.Logger

	accuracySum float64
	apSum       float64
	total       int
}

// NewMultilabelEvaluator creates an empty MultilabelEvaluator.
func NewMultilabelEvaluator(opts ...Option) *MultilabelEvaluator {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &MultilabelEvaluator{logger: cfg.logger}
}

// Task implements Evaluator.
func (e *MultilabelEvaluator) Task() TaskType { return MultilabelClassification }

// Add implements Evaluator.
func (e *MultilabelEvaluator) Add(b Batch) error {
	if b.Labels != nil || b.Detections != nil || b.Boxes != nil {
		return fmt.Errorf("%w: multilabel batch carries multiclass or detection fields", ErrInvalidBatch)
	}
	return e.AddPredictions(b.Scores, b.LabelSets)
}

// AddPredictions accumulates one batch. predictions holds one row of class
// scores per image, targets one row of per-class truth flags per image.
func (e *MultilabelEvaluator) AddPredictions(predictions [][]float64, targets [][]bool) error {
	if err := checkLengths(len(predictions), len(targets)); err != nil {
		return err
	}
	numClasses, err := checkScores(predictions)
	if err != nil {
		return err
	}
	for i, row := range targets {
		if len(row) != numClasses {
			return fmt.Errorf("%w: image %d has %d target flags, want %d", ErrInvalidBatch, i, len(row), numClasses)
		}
	}
	if len(predictions) == 0 {
		return nil
	}

	labels := make([]bool, 0, len(predictions)*numClasses)
	scores := make([]float64, 0, len(predictions)*numClasses)
	for i, row := range predictions {
		e.accuracySum += jaccard(row, targets[i])
		labels = append(labels, targets[i]...)
		scores = append(scores, row...)
	}

	n := len(predictions)
	e.apSum += averagePrecision(labels, scores) * float64(n)
	e.total += n

	e.logger.Debug("batch accumulated",
		"task", MultilabelClassification,
		"images", n,
		"total", e.total,
	)
	return nil
}

// Report implements Evaluator.
func (e *MultilabelEvaluator) Report() Report {
	return Report{
		MetricAccuracy50:       ratio(e.accuracySum, e.total),
		MetricAveragePrecision: ratio(e.apSum, e.total),
	}
}

// Reset implements Evaluator.
func (e *MultilabelEvaluator) Reset() {
	e.accuracySum = 0
	e.apSum = 0
	e.total = 0
}

// jaccard returns |predicted ∩ truth| / |predicted ∪ truth| for one image,
// with the denominator floored at 1.
func jaccard(scores []float64, truth []bool) float64 {
	inter, union := 0, 0
	for c, s := range scores {
		predicted := s > multilabelThreshold
		if predicted && truth[c] {
			inter++
		}
		if predicted || truth[c] {
			union++
		}
	}
	return float64(inter) / float64(max(union, 1))
}
