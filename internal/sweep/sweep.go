// Package sweep finds detection operating points: precision, recall and F1
// when detections below a confidence cutoff are discarded.
package sweep

import (
	"sort"

	cveval "github.com/jamesainslie/go-cveval"
)

// Report keys added by Collector.
const (
	MetricBestF1          = "best_f1"
	MetricBestF1Threshold = "best_f1_threshold"
)

// Config holds sweep parameters.
type Config struct {
	IOUThreshold    float64
	PrecisionWeight float64
	RecallWeight    float64
}

// DefaultConfig returns default sweep configuration.
func DefaultConfig() Config {
	return Config{
		IOUThreshold:    0.5,
		PrecisionWeight: 1.0,
		RecallWeight:    1.0,
	}
}

// Metrics holds the counts and scores of one operating point.
type Metrics struct {
	TruePositives  int
	FalsePositives int
	FalseNegatives int
	Precision      float64
	Recall         float64
	F1             float64
	WeightedScore  float64
}

// Result holds metrics for one confidence cutoff.
type Result struct {
	Threshold float64
	Metrics   Metrics
}

func computeMetrics(tp, fp, fn int, cfg Config) Metrics {
	m := Metrics{
		TruePositives:  tp,
		FalsePositives: fp,
		FalseNegatives: fn,
	}
	if tp+fp > 0 {
		m.Precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		m.Recall = float64(tp) / float64(tp+fn)
	}
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	wp := cfg.PrecisionWeight
	wr := cfg.RecallWeight
	if wp+wr > 0 {
		m.WeightedScore = (wp*m.Precision + wr*m.Recall) / (wp + wr)
	}
	return m
}

// Collector accumulates greedy match results for every class at one IoU
// threshold. It implements cveval.Evaluator so it can be fed by the same
// pipeline as the metric evaluators; its report is the mAP at the sweep IoU
// plus the best F1 operating point.
//
// Greedy matching visits detections by descending confidence, so dropping
// every detection below a cutoff leaves the matches above it unchanged.
// One matching pass therefore serves every cutoff.
type Collector struct {
	cfg Config
	det *cveval.DetectionEvaluator

	isCorrect   []bool
	confidences []float64
	trueNum     int
}

var _ cveval.Evaluator = (*Collector)(nil)

// NewCollector creates an empty Collector. opts are passed to the embedded
// detection evaluator; the IoU threshold always comes from cfg.
func NewCollector(cfg Config, opts ...cveval.Option) (*Collector, error) {
	opts = append(opts, cveval.WithIOUThresholds(cfg.IOUThreshold))
	det, err := cveval.NewDetectionEvaluator(opts...)
	if err != nil {
		return nil, err
	}
	return &Collector{cfg: cfg, det: det}, nil
}

// Task implements cveval.Evaluator.
func (c *Collector) Task() cveval.TaskType { return cveval.ObjectDetection }

// Add validates and accumulates one detection batch.
func (c *Collector) Add(b cveval.Batch) error {
	if err := c.det.Add(b); err != nil {
		return err
	}

	preds := make(map[int][]cveval.ScoredRect)
	truth := make(map[int]map[int][]cveval.Rect)
	for img, dets := range b.Detections {
		for _, d := range dets {
			preds[d.Class] = append(preds[d.Class], cveval.ScoredRect{Image: img, Confidence: d.Confidence, Rect: d.Rect})
		}
	}
	for img, boxes := range b.Boxes {
		for _, g := range boxes {
			if truth[g.Class] == nil {
				truth[g.Class] = make(map[int][]cveval.Rect)
			}
			truth[g.Class][img] = append(truth[g.Class][img], g.Rect)
			c.trueNum++
		}
	}

	for class, p := range preds {
		isCorrect, confidences := cveval.Match(truth[class], p, c.cfg.IOUThreshold)
		c.isCorrect = append(c.isCorrect, isCorrect...)
		c.confidences = append(c.confidences, confidences...)
	}
	return nil
}

// Evaluate returns the operating point that keeps detections with
// confidence >= threshold.
func (c *Collector) Evaluate(threshold float64) Metrics {
	var tp, fp int
	for i, ok := range c.isCorrect {
		if c.confidences[i] < threshold {
			continue
		}
		if ok {
			tp++
		} else {
			fp++
		}
	}
	return computeMetrics(tp, fp, c.trueNum-tp, c.cfg)
}

// Sweep evaluates every threshold and returns results sorted by weighted
// score descending; equal scores keep threshold order.
func (c *Collector) Sweep(thresholds []float64) []Result {
	results := make([]Result, 0, len(thresholds))
	for _, t := range thresholds {
		results = append(results, Result{Threshold: t, Metrics: c.Evaluate(t)})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Metrics.WeightedScore > results[j].Metrics.WeightedScore
	})
	return results
}

// BestF1 scans every distinct detection confidence as a cutoff and returns
// the one with the highest F1. Ties go to the higher cutoff.
func (c *Collector) BestF1() Result {
	order := make([]int, len(c.confidences))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return c.confidences[order[a]] > c.confidences[order[b]]
	})

	var best Result
	var tp, fp int
	for k, i := range order {
		if c.isCorrect[i] {
			tp++
		} else {
			fp++
		}
		if k+1 < len(order) && c.confidences[order[k+1]] == c.confidences[i] {
			continue
		}
		m := computeMetrics(tp, fp, c.trueNum-tp, c.cfg)
		if m.F1 > best.Metrics.F1 {
			best = Result{Threshold: c.confidences[i], Metrics: m}
		}
	}
	return best
}

// Report implements cveval.Evaluator.
func (c *Collector) Report() cveval.Report {
	r := c.det.Report()
	best := c.BestF1()
	r[MetricBestF1] = best.Metrics.F1
	r[MetricBestF1Threshold] = best.Threshold
	return r
}

// Reset implements cveval.Evaluator.
func (c *Collector) Reset() {
	c.det.Reset()
	c.isCorrect = nil
	c.confidences = nil
	c.trueNum = 0
}
