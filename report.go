package cveval

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Metric names produced by the evaluators.
const (
	MetricTop1Accuracy     = "top1_accuracy"
	MetricTop5Accuracy     = "top5_accuracy"
	MetricAveragePrecision = "average_precision"
	MetricAccuracy50       = "accuracy_50"
)

// Report maps a metric name to its value.
type Report map[string]float64

// MeanAPKey returns the report key for mean average precision at iouThreshold,
// e.g. "mAP_50" for 0.5. The threshold is rounded to the nearest percent
// rather than truncated, so 0.29, whose product with 100 is 28.999999999999996
// in float64, yields "mAP_29" and not "mAP_28".
func MeanAPKey(iouThreshold float64) string {
	return fmt.Sprintf("mAP_%d", int(math.Round(iouThreshold*100)))
}

// Merge copies every entry of other into r, overwriting existing keys.
func (r Report) Merge(other Report) {
	for k, v := range other {
		r[k] = v
	}
}

// Keys returns the metric names in sorted order.
func (r Report) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a copy of r.
func (r Report) Clone() Report {
	out := make(Report, len(r))
	out.Merge(r)
	return out
}

func (r Report) String() string {
	var sb strings.Builder
	for i, k := range r.Keys() {
		if i > 0 {
			sb.WriteString(" ")
		}
		fmt.Fprintf(&sb, "%s=%.4f", k, r[k])
	}
	return sb.String()
}

// ratio returns sum/total, or 0 when total is 0.
func ratio(sum float64, total int) float64 {
	if total == 0 {
		return 0
	}
	return sum / float64(total)
}
