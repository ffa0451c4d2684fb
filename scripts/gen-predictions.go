//go:build ignore

// Generate a synthetic prediction file for load testing the evaluator.
// Usage: go run ./scripts/gen-predictions.go -task object_detection -images 10000 -out testdata/large.jsonl
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
)

type record struct {
	Scores     []float64   `json:"scores,omitempty"`
	Label      *int        `json:"label,omitempty"`
	Labels     []int       `json:"labels,omitempty"`
	Detections [][]float64 `json:"detections,omitempty"`
	Boxes      [][]float64 `json:"boxes,omitempty"`
}

func main() {
	task := flag.String("task", "object_detection", "Task type")
	images := flag.Int("images", 1000, "Number of images")
	classes := flag.Int("classes", 10, "Number of classes")
	boxes := flag.Int("boxes", 5, "Ground-truth boxes per image (detection)")
	seed := flag.Int64("seed", 1, "Random seed")
	out := flag.String("out", "", "Output file (default stdout)")
	flag.Parse()

	w := os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		w = f
	}

	bw := bufio.NewWriter(w)
	defer bw.Flush()
	enc := json.NewEncoder(bw)
	r := rand.New(rand.NewSource(*seed))

	for i := 0; i < *images; i++ {
		var rec record
		switch *task {
		case "multiclass_classification":
			label := r.Intn(*classes)
			rec.Scores = noisyScores(r, *classes, map[int]bool{label: true})
			rec.Label = &label
		case "multilabel_classification":
			truth := map[int]bool{}
			rec.Labels = make([]int, *classes)
			for c := range rec.Labels {
				if r.Float64() < 0.3 {
					truth[c] = true
					rec.Labels[c] = 1
				}
			}
			rec.Scores = noisyScores(r, *classes, truth)
		case "object_detection":
			rec.Detections, rec.Boxes = detections(r, *classes, *boxes)
		default:
			fmt.Fprintf(os.Stderr, "Error: unknown task %q\n", *task)
			os.Exit(1)
		}
		if err := enc.Encode(rec); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
}

// noisyScores favors the classes in truth without making them certain.
func noisyScores(r *rand.Rand, classes int, truth map[int]bool) []float64 {
	scores := make([]float64, classes)
	for c := range scores {
		scores[c] = r.Float64() * 0.6
		if truth[c] {
			scores[c] += 0.4
		}
	}
	return scores
}

// detections jitters each ground-truth box into a prediction, drops some
// and adds false positives.
func detections(r *rand.Rand, classes, n int) ([][]float64, [][]float64) {
	var dets, gts [][]float64
	for j := 0; j < n; j++ {
		cls := float64(r.Intn(classes))
		x, y := r.Float64()*600, r.Float64()*400
		w, h := 20+r.Float64()*120, 20+r.Float64()*120
		gts = append(gts, []float64{cls, x, y, x + w, y + h})

		if r.Float64() < 0.8 {
			dx, dy := (r.Float64()-0.5)*w*0.3, (r.Float64()-0.5)*h*0.3
			dets = append(dets, []float64{cls, 0.5 + r.Float64()*0.5, x + dx, y + dy, x + w + dx, y + h + dy})
		}
		if r.Float64() < 0.3 {
			fx, fy := r.Float64()*600, r.Float64()*400
			dets = append(dets, []float64{float64(r.Intn(classes)), r.Float64() * 0.6, fx, fy, fx + 40, fy + 40})
		}
	}
	return dets, gts
}
