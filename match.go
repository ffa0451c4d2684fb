package cveval

import "sort"

// ScoredRect is a predicted box for a single class, tagged with the image it
// belongs to.
type ScoredRect struct {
	Image      int
	Confidence float64
	Rect       Rect
}

type claim struct {
	image int
	box   int
}

// Match greedily assigns predictions of one class to ground-truth boxes.
//
// Predictions are visited in descending confidence order, ties kept in their
// original order. Each visited prediction takes the ground-truth box of its
// image with the highest IoU; it is correct only if that IoU reaches
// iouThreshold and the box has not been taken by an earlier prediction.
// The returned slices are aligned with the visiting order. preds is not modified.
func Match(groundTruth map[int][]Rect, preds []ScoredRect, iouThreshold float64) (isCorrect []bool, confidences []float64) {
	sorted := make([]ScoredRect, len(preds))
	copy(sorted, preds)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	claimed := make(map[claim]struct{})
	isCorrect = make([]bool, len(sorted))
	confidences = make([]float64, len(sorted))

	for i, p := range sorted {
		confidences[i] = p.Confidence

		boxes := groundTruth[p.Image]
		if len(boxes) == 0 {
			continue
		}

		best, bestIOU := 0, IOU(p.Rect, boxes[0])
		for j := 1; j < len(boxes); j++ {
			if iou := IOU(p.Rect, boxes[j]); iou > bestIOU {
				best, bestIOU = j, iou
			}
		}

		c := claim{image: p.Image, box: best}
		if !(bestIOU >= iouThreshold) {
			continue
		}
		if _, taken := claimed[c]; taken {
			continue
		}
		claimed[c] = struct{}{}
		isCorrect[i] = true
	}

	return isCorrect, confidences
}
