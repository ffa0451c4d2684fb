package sweep

import (
	"errors"
	"math"
	"testing"

	cveval "github.com/jamesainslie/go-cveval"
)

func rect(l, t, r, b float64) cveval.Rect {
	return cveval.Rect{Left: l, Top: t, Right: r, Bottom: b}
}

// sampleBatch has three ground-truth boxes of class 0 and four detections:
// hits at 0.9 and 0.6, misses at 0.8 and 0.3.
func sampleBatch() cveval.Batch {
	return cveval.Batch{
		Detections: [][]cveval.Detection{
			{
				{Class: 0, Confidence: 0.9, Rect: rect(0, 0, 10, 10)},
				{Class: 0, Confidence: 0.8, Rect: rect(50, 50, 60, 60)},
			},
			{
				{Class: 0, Confidence: 0.6, Rect: rect(0, 0, 10, 10)},
				{Class: 0, Confidence: 0.3, Rect: rect(0, 0, 10, 10)},
			},
		},
		Boxes: [][]cveval.GroundTruth{
			{
				{Class: 0, Rect: rect(0, 0, 10, 10)},
				{Class: 0, Rect: rect(20, 20, 30, 30)},
			},
			{
				{Class: 0, Rect: rect(0, 0, 10, 10)},
			},
		},
	}
}

func newCollector(t *testing.T) *Collector {
	t.Helper()
	c, err := NewCollector(DefaultConfig())
	if err != nil {
		t.Fatalf("NewCollector() error = %v", err)
	}
	if err := c.Add(sampleBatch()); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	return c
}

func TestComputeMetrics(t *testing.T) {
	tests := []struct {
		name       string
		tp, fp, fn int
		cfg        Config
		want       Metrics
	}{
		{
			name: "perfect",
			tp:   3,
			cfg:  DefaultConfig(),
			want: Metrics{TruePositives: 3, Precision: 1, Recall: 1, F1: 1, WeightedScore: 1},
		},
		{
			name: "nothing",
			cfg:  DefaultConfig(),
			want: Metrics{},
		},
		{
			name: "recall weighted",
			tp:   1,
			fp:   1,
			cfg:  Config{PrecisionWeight: 1, RecallWeight: 3},
			want: Metrics{TruePositives: 1, FalsePositives: 1, Precision: 0.5, Recall: 1, F1: 2.0 / 3, WeightedScore: 0.875},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := computeMetrics(tt.tp, tt.fp, tt.fn, tt.cfg)
			if got.TruePositives != tt.want.TruePositives || got.FalsePositives != tt.want.FalsePositives || got.FalseNegatives != tt.want.FalseNegatives {
				t.Errorf("counts = %+v, want %+v", got, tt.want)
			}
			for _, pair := range [][2]float64{
				{got.Precision, tt.want.Precision},
				{got.Recall, tt.want.Recall},
				{got.F1, tt.want.F1},
				{got.WeightedScore, tt.want.WeightedScore},
			} {
				if math.Abs(pair[0]-pair[1]) > 1e-9 {
					t.Errorf("computeMetrics() = %+v, want %+v", got, tt.want)
					break
				}
			}
		})
	}
}

func TestCollector_Evaluate(t *testing.T) {
	c := newCollector(t)

	tests := []struct {
		threshold              float64
		wantTP, wantFP, wantFN int
	}{
		{0.0, 2, 2, 1},
		{0.5, 2, 1, 1},
		{0.7, 1, 1, 2},
		{0.85, 1, 0, 2},
		{0.95, 0, 0, 3},
	}

	for _, tt := range tests {
		got := c.Evaluate(tt.threshold)
		if got.TruePositives != tt.wantTP || got.FalsePositives != tt.wantFP || got.FalseNegatives != tt.wantFN {
			t.Errorf("Evaluate(%v) = TP %d FP %d FN %d, want TP %d FP %d FN %d",
				tt.threshold, got.TruePositives, got.FalsePositives, got.FalseNegatives, tt.wantTP, tt.wantFP, tt.wantFN)
		}
	}
}

func TestCollector_Sweep(t *testing.T) {
	c := newCollector(t)

	results := c.Sweep([]float64{0.95, 0.5, 0.85})
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	// 0.85: P=1 R=1/3 -> 2/3; 0.5: P=2/3 R=2/3 -> 2/3; 0.95 -> 0
	if results[0].Threshold != 0.5 || results[1].Threshold != 0.85 || results[2].Threshold != 0.95 {
		t.Errorf("sweep order = %v, %v, %v; want 0.5, 0.85, 0.95",
			results[0].Threshold, results[1].Threshold, results[2].Threshold)
	}
}

func TestCollector_BestF1(t *testing.T) {
	c := newCollector(t)

	best := c.BestF1()
	// 0.6 cutoff: TP 2, FP 1, FN 1 -> F1 2/3
	if best.Threshold != 0.6 {
		t.Errorf("BestF1().Threshold = %v, want 0.6", best.Threshold)
	}
	if math.Abs(best.Metrics.F1-2.0/3) > 1e-9 {
		t.Errorf("BestF1().F1 = %v, want 2/3", best.Metrics.F1)
	}
}

func TestCollector_Report(t *testing.T) {
	c := newCollector(t)

	r := c.Report()
	for _, key := range []string{"mAP_50", MetricBestF1, MetricBestF1Threshold} {
		if _, ok := r[key]; !ok {
			t.Errorf("Report() missing %s: %v", key, r)
		}
	}
	if len(r) != 3 {
		t.Errorf("Report() has %d keys, want 3: %v", len(r), r)
	}
}

func TestCollector_RejectsInvalidBatch(t *testing.T) {
	c := newCollector(t)
	before := c.Evaluate(0)

	bad := cveval.Batch{
		Detections: [][]cveval.Detection{{{Class: 0, Confidence: 1.5}}},
		Boxes:      [][]cveval.GroundTruth{{}},
	}
	if err := c.Add(bad); !errors.Is(err, cveval.ErrInvalidValue) {
		t.Fatalf("Add() error = %v, want ErrInvalidValue", err)
	}
	if after := c.Evaluate(0); after != before {
		t.Errorf("state changed after rejected batch: %+v -> %+v", before, after)
	}
}

func TestCollector_Reset(t *testing.T) {
	c := newCollector(t)
	c.Reset()

	if got := c.Evaluate(0); got != (Metrics{}) {
		t.Errorf("Evaluate after Reset = %+v, want zero", got)
	}
	if got := c.BestF1(); got != (Result{}) {
		t.Errorf("BestF1 after Reset = %+v, want zero", got)
	}
}

func TestNewCollector_InvalidThreshold(t *testing.T) {
	_, err := NewCollector(Config{IOUThreshold: 2})
	if !errors.Is(err, cveval.ErrInvalidValue) {
		t.Errorf("NewCollector() error = %v, want ErrInvalidValue", err)
	}
}
