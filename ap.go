package cveval

import (
	"fmt"
	"sort"
)

// AveragePrecision returns the area under the precision-recall curve obtained
// by ranking scores in descending order, with labels marking the positives.
//
// Tied scores form a single operating point, so the result does not depend on
// the order of tied entries. It returns 0 when there are no positives, and
// ErrInvalidBatch when labels and scores differ in length.
func AveragePrecision(labels []bool, scores []float64) (float64, error) {
	if len(labels) != len(scores) {
		return 0, fmt.Errorf("%w: %d labels for %d scores", ErrInvalidBatch, len(labels), len(scores))
	}
	return averagePrecision(labels, scores), nil
}

// averagePrecision expects len(labels) == len(scores).
func averagePrecision(labels []bool, scores []float64) float64 {
	n := len(labels)
	if n == 0 {
		return 0
	}

	positives := 0
	for i := 0; i < n; i++ {
		if labels[i] {
			positives++
		}
	}
	if positives == 0 {
		return 0
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return scores[order[i]] > scores[order[j]]
	})

	var (
		ap         float64
		tp, fp     int
		prevRecall float64
	)
	for i := 0; i < n; i++ {
		if labels[order[i]] {
			tp++
		} else {
			fp++
		}
		// Only close an operating point at the last entry of a run of equal scores.
		if i+1 < n && scores[order[i+1]] == scores[order[i]] {
			continue
		}
		recall := float64(tp) / float64(positives)
		precision := float64(tp) / float64(tp+fp)
		ap += (recall - prevRecall) * precision
		prevRecall = recall
		if tp == positives {
			break
		}
	}

	return ap
}

// RankedAveragePrecision scores a matcher's output for one class.
//
// The precision-recall area over the ranking is scaled by the fraction of the
// trueNum ground-truth instances that were matched, so unmatched ground truth
// lowers the result. It returns 0 when trueNum is 0 or nothing was matched.
// Mismatched lengths yield ErrInvalidBatch and a negative trueNum
// ErrInvalidValue.
func RankedAveragePrecision(isCorrect []bool, confidences []float64, trueNum int) (float64, error) {
	if len(isCorrect) != len(confidences) {
		return 0, fmt.Errorf("%w: %d correctness flags for %d confidences", ErrInvalidBatch, len(isCorrect), len(confidences))
	}
	if trueNum < 0 {
		return 0, fmt.Errorf("%w: ground-truth count %d", ErrInvalidValue, trueNum)
	}
	return rankedAveragePrecision(isCorrect, confidences, trueNum), nil
}

// rankedAveragePrecision expects aligned slices and trueNum >= 0.
func rankedAveragePrecision(isCorrect []bool, confidences []float64, trueNum int) float64 {
	if trueNum <= 0 {
		return 0
	}

	correct := 0
	for _, c := range isCorrect {
		if c {
			correct++
		}
	}
	if correct == 0 {
		return 0
	}

	recall := min(1, float64(correct)/float64(trueNum))
	return averagePrecision(isCorrect, confidences) * recall
}
