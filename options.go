package cveval

import (
	"log/slog"
	"math"
)

// DefaultIOUThresholds are the IoU thresholds used by object detection
// evaluation unless WithIOUThresholds overrides them.
var DefaultIOUThresholds = []float64{0.3, 0.5, 0.75, 0.9}

// Option configures an evaluator.
type Option func(*config)

type config struct {
	iouThresholds []float64
	logger        *slog.Logger
}

func defaultConfig() config {
	return config{
		iouThresholds: append([]float64(nil), DefaultIOUThresholds...),
		logger:        slog.Default(),
	}
}

// WithIOUThresholds sets the ordered IoU thresholds for object detection
// (default: 0.3, 0.5, 0.75, 0.9). Ignored by classification evaluators.
func WithIOUThresholds(thresholds ...float64) Option {
	return func(c *config) {
		if len(thresholds) > 0 {
			c.iouThresholds = append([]float64(nil), thresholds...)
		}
	}
}

// WithLogger sets the logger (default: slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// ThresholdRange generates thresholds from min to max (inclusive) with the given step.
// Values are rounded to 1e-6 so that keys such as mAP_55 come out exact.
func ThresholdRange(min, max, step float64) []float64 {
	if step <= 0 || max < min {
		return nil
	}
	var thresholds []float64
	for i := 0; ; i++ {
		t := min + float64(i)*step
		if t > max+1e-9 {
			break
		}
		thresholds = append(thresholds, math.Round(t*1e6)/1e6)
	}
	return thresholds
}
