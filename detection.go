package cveval

import (
	"fmt"
	"log/slog"
	"slices"
)

// Detection is one predicted box: (class, confidence, left, top, right, bottom).
type Detection struct {
	Class      int
	Confidence float64
	Rect
}

// GroundTruth is one labelled box: (class, left, top, right, bottom).
type GroundTruth struct {
	Class int
	Rect
}

// classAccumulator holds the matcher output for one class at one IoU threshold,
// in processing order.
type classAccumulator struct {
	isCorrect   []bool
	confidences []float64
	trueNum     int
}

// classBatch is one batch regrouped by class.
type classBatch struct {
	classes     []int
	predictions map[int][]ScoredRect
	groundTruth map[int]map[int][]Rect
	trueNum     map[int]int
}

// singleIOUEvaluator computes mean average precision at one IoU threshold.
type singleIOUEvaluator struct {
	iou     float64
	key     string
	classes map[int]*classAccumulator
}

func newSingleIOUEvaluator(iou float64) *singleIOUEvaluator {
	e := &singleIOUEvaluator{iou: iou, key: MeanAPKey(iou)}
	e.reset()
	return e
}

func (e *singleIOUEvaluator) add(b *classBatch) {
	for _, c := range b.classes {
		isCorrect, confidences := Match(b.groundTruth[c], b.predictions[c], e.iou)

		acc, ok := e.classes[c]
		if !ok {
			acc = &classAccumulator{}
			e.classes[c] = acc
		}
		acc.isCorrect = append(acc.isCorrect, isCorrect...)
		acc.confidences = append(acc.confidences, confidences...)
		acc.trueNum += b.trueNum[c]
	}
}

// report averages the per-class AP over every class seen, including classes
// that never had ground truth.
func (e *singleIOUEvaluator) report() Report {
	if len(e.classes) == 0 {
		return Report{e.key: 0}
	}
	var sum float64
	for _, acc := range e.classes {
		sum += rankedAveragePrecision(acc.isCorrect, acc.confidences, acc.trueNum)
	}
	return Report{e.key: sum / float64(len(e.classes))}
}

func (e *singleIOUEvaluator) reset() {
	e.classes = make(map[int]*classAccumulator)
}

// DetectionEvaluator evaluates object detection at several IoU thresholds.
type DetectionEvaluator struct {
	logger     *slog.Logger
	evaluators []*singleIOUEvaluator

	// images is the number of images seen so far; it offsets per-batch image
	// indices so every image has a unique id for the evaluator's lifetime.
	images int
}

// NewDetectionEvaluator creates an empty DetectionEvaluator. It fails with
// ErrInvalidValue if a threshold lies outside [0, 1] or two thresholds map to
// the same report key.
func NewDetectionEvaluator(opts ...Option) (*DetectionEvaluator, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	seen := make(map[string]float64, len(cfg.iouThresholds))
	evaluators := make([]*singleIOUEvaluator, 0, len(cfg.iouThresholds))
	for _, t := range cfg.iouThresholds {
		if !isFinite(t) || t < 0 || t > 1 {
			return nil, fmt.Errorf("%w: IoU threshold %v outside [0, 1]", ErrInvalidValue, t)
		}
		key := MeanAPKey(t)
		if prev, dup := seen[key]; dup {
			return nil, fmt.Errorf("%w: IoU thresholds %v and %v both report as %s", ErrInvalidValue, prev, t, key)
		}
		seen[key] = t
		evaluators = append(evaluators, newSingleIOUEvaluator(t))
	}

	return &DetectionEvaluator{
		logger:     cfg.logger,
		evaluators: evaluators,
	}, nil
}

// Task implements Evaluator.
func (e *DetectionEvaluator) Task() TaskType { return ObjectDetection }

// Thresholds returns the IoU thresholds in report order.
func (e *DetectionEvaluator) Thresholds() []float64 {
	out := make([]float64, len(e.evaluators))
	for i, ev := range e.evaluators {
		out[i] = ev.iou
	}
	return out
}

// Add implements Evaluator.
func (e *DetectionEvaluator) Add(b Batch) error {
	if b.Scores != nil || b.Labels != nil || b.LabelSets != nil {
		return fmt.Errorf("%w: detection batch carries classification fields", ErrInvalidBatch)
	}
	return e.AddPredictions(b.Detections, b.Boxes)
}

// AddPredictions accumulates one batch. predictions and targets hold the
// predicted and ground-truth boxes of each image; an image may have none.
func (e *DetectionEvaluator) AddPredictions(predictions [][]Detection, targets [][]GroundTruth) error {
	if err := checkLengths(len(predictions), len(targets)); err != nil {
		return err
	}
	if err := checkDetections(predictions, targets); err != nil {
		return err
	}

	b := groupByClass(predictions, targets, e.images)
	for _, ev := range e.evaluators {
		ev.add(b)
	}
	e.images += len(predictions)

	e.logger.Debug("batch accumulated",
		"task", ObjectDetection,
		"images", len(predictions),
		"classes", len(b.classes),
		"total", e.images,
	)
	return nil
}

// Report implements Evaluator.
func (e *DetectionEvaluator) Report() Report {
	report := make(Report, len(e.evaluators))
	for _, ev := range e.evaluators {
		report.Merge(ev.report())
	}
	return report
}

// Reset implements Evaluator.
func (e *DetectionEvaluator) Reset() {
	for _, ev := range e.evaluators {
		ev.reset()
	}
	e.images = 0
}

func groupByClass(predictions [][]Detection, targets [][]GroundTruth, offset int) *classBatch {
	b := &classBatch{
		predictions: make(map[int][]ScoredRect),
		groundTruth: make(map[int]map[int][]Rect),
		trueNum:     make(map[int]int),
	}
	seen := make(map[int]struct{})

	for i, dets := range predictions {
		for _, d := range dets {
			b.predictions[d.Class] = append(b.predictions[d.Class], ScoredRect{
				Image:      offset + i,
				Confidence: d.Confidence,
				Rect:       d.Rect,
			})
			seen[d.Class] = struct{}{}
		}
	}

	for i, boxes := range targets {
		for _, g := range boxes {
			gt, ok := b.groundTruth[g.Class]
			if !ok {
				gt = make(map[int][]Rect)
				b.groundTruth[g.Class] = gt
			}
			gt[offset+i] = append(gt[offset+i], g.Rect)
			b.trueNum[g.Class]++
			seen[g.Class] = struct{}{}
		}
	}

	for c := range seen {
		b.classes = append(b.classes, c)
	}
	slices.Sort(b.classes)
	return b
}

func checkDetections(predictions [][]Detection, targets [][]GroundTruth) error {
	for i, dets := range predictions {
		for j, d := range dets {
			if d.Class < 0 {
				return fmt.Errorf("%w: image %d detection %d class %d", ErrInvalidValue, i, j, d.Class)
			}
			if !isFinite(d.Confidence) || d.Confidence < 0 || d.Confidence > 1 {
				return fmt.Errorf("%w: image %d detection %d confidence %v outside [0, 1]", ErrInvalidValue, i, j, d.Confidence)
			}
			if !finiteRect(d.Rect) {
				return fmt.Errorf("%w: image %d detection %d box %v", ErrInvalidValue, i, j, d.Rect)
			}
		}
	}
	for i, boxes := range targets {
		for j, g := range boxes {
			if g.Class < 0 {
				return fmt.Errorf("%w: image %d ground truth %d class %d", ErrInvalidValue, i, j, g.Class)
			}
			if !finiteRect(g.Rect) {
				return fmt.Errorf("%w: image %d ground truth %d box %v", ErrInvalidValue, i, j, g.Rect)
			}
		}
	}
	return nil
}

func finiteRect(r Rect) bool {
	return isFinite(r.Left) && isFinite(r.Top) && isFinite(r.Right) && isFinite(r.Bottom)
}
