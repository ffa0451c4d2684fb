// Package records reads per-image prediction records from JSON Lines files
// and converts them into evaluator batches.
package records

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"

	cveval "github.com/jamesainslie/go-cveval"
)

// ErrMalformedRecord is returned for lines that are not valid records.
var ErrMalformedRecord = errors.New("records: malformed record")

// Record is one image's predictions and ground truth.
//
// Classification records carry Scores (or Features to be scored by a model)
// plus Label (multiclass) or Labels (multilabel). Detection records carry
// Detections as [class, confidence, left, top, right, bottom] and Boxes as
// [class, left, top, right, bottom]. When Width and Height are set the
// coordinates are normalized and are scaled to pixels.
type Record struct {
	Scores     []float64   `json:"scores,omitempty"`
	Features   []float32   `json:"features,omitempty"`
	Label      *int        `json:"label,omitempty"`
	Labels     []Flag      `json:"labels,omitempty"`
	Detections [][]float64 `json:"detections,omitempty"`
	Boxes      [][]float64 `json:"boxes,omitempty"`
	Width      float64     `json:"width,omitempty"`
	Height     float64     `json:"height,omitempty"`

	// Line is the 1-based input line the record was read from.
	Line int `json:"-"`
}

// NeedsScoring reports whether the record has features but no scores.
func (r *Record) NeedsScoring() bool {
	return len(r.Scores) == 0 && len(r.Features) > 0
}

// Flag is a multilabel truth value written as 0/1 or false/true.
type Flag bool

// UnmarshalJSON implements json.Unmarshaler.
func (f *Flag) UnmarshalJSON(data []byte) error {
	switch string(bytes.TrimSpace(data)) {
	case "true", "1":
		*f = true
	case "false", "0":
		*f = false
	default:
		return fmt.Errorf("label flag %s is not 0, 1, true or false", data)
	}
	return nil
}

// Reader reads records from a JSON Lines stream. Blank lines are skipped.
type Reader struct {
	r    *bufio.Reader
	line int
}

// NewReader creates a Reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Next returns up to n records. It returns io.EOF once the stream is
// exhausted and no records were read.
func (rd *Reader) Next(n int) ([]Record, error) {
	if n <= 0 {
		n = 1
	}
	out := make([]Record, 0, n)
	for len(out) < n {
		data, err := rd.r.ReadBytes('\n')
		if len(data) > 0 {
			rd.line++
			if line := bytes.TrimSpace(data); len(line) > 0 {
				var rec Record
				if uerr := json.Unmarshal(line, &rec); uerr != nil {
					return out, fmt.Errorf("%w: line %d: %v", ErrMalformedRecord, rd.line, uerr)
				}
				rec.Line = rd.line
				out = append(out, rec)
			}
		}
		if errors.Is(err, io.EOF) {
			if len(out) == 0 {
				return nil, io.EOF
			}
			return out, nil
		}
		if err != nil {
			return out, err
		}
	}
	return out, nil
}

// ToBatch converts records into a batch for task. Records that still need
// scoring are rejected.
func ToBatch(task cveval.TaskType, recs []Record) (cveval.Batch, error) {
	switch task {
	case cveval.MulticlassClassification:
		return multiclassBatch(recs)
	case cveval.MultilabelClassification:
		return multilabelBatch(recs)
	case cveval.ObjectDetection:
		return detectionBatch(recs)
	}
	return cveval.Batch{}, fmt.Errorf("%w: %q", cveval.ErrUnsupportedTaskType, task)
}

func multiclassBatch(recs []Record) (cveval.Batch, error) {
	b := cveval.Batch{
		Scores: make([][]float64, len(recs)),
		Labels: make([]int, len(recs)),
	}
	for i := range recs {
		rec := &recs[i]
		if err := checkScored(rec); err != nil {
			return cveval.Batch{}, err
		}
		if rec.Label == nil {
			return cveval.Batch{}, fmt.Errorf("%w: line %d: missing label", ErrMalformedRecord, rec.Line)
		}
		b.Scores[i] = rec.Scores
		b.Labels[i] = *rec.Label
	}
	return b, nil
}

func multilabelBatch(recs []Record) (cveval.Batch, error) {
	b := cveval.Batch{
		Scores:    make([][]float64, len(recs)),
		LabelSets: make([][]bool, len(recs)),
	}
	for i := range recs {
		rec := &recs[i]
		if err := checkScored(rec); err != nil {
			return cveval.Batch{}, err
		}
		if rec.Labels == nil {
			return cveval.Batch{}, fmt.Errorf("%w: line %d: missing labels", ErrMalformedRecord, rec.Line)
		}
		set := make([]bool, len(rec.Labels))
		for j, f := range rec.Labels {
			set[j] = bool(f)
		}
		b.Scores[i] = rec.Scores
		b.LabelSets[i] = set
	}
	return b, nil
}

func detectionBatch(recs []Record) (cveval.Batch, error) {
	b := cveval.Batch{
		Detections: make([][]cveval.Detection, len(recs)),
		Boxes:      make([][]cveval.GroundTruth, len(recs)),
	}
	for i := range recs {
		rec := &recs[i]
		sx, sy := rec.scale()

		dets := make([]cveval.Detection, 0, len(rec.Detections))
		for j, d := range rec.Detections {
			if len(d) != 6 {
				return cveval.Batch{}, fmt.Errorf("%w: line %d: detection %d has %d fields, want 6", ErrMalformedRecord, rec.Line, j, len(d))
			}
			class, ok := classIndex(d[0])
			if !ok {
				return cveval.Batch{}, fmt.Errorf("%w: line %d: detection %d class %v is not an integer", ErrMalformedRecord, rec.Line, j, d[0])
			}
			dets = append(dets, cveval.Detection{
				Class:      class,
				Confidence: d[1],
				Rect:       scaleRect(d[2:], sx, sy),
			})
		}

		boxes := make([]cveval.GroundTruth, 0, len(rec.Boxes))
		for j, g := range rec.Boxes {
			if len(g) != 5 {
				return cveval.Batch{}, fmt.Errorf("%w: line %d: box %d has %d fields, want 5", ErrMalformedRecord, rec.Line, j, len(g))
			}
			class, ok := classIndex(g[0])
			if !ok {
				return cveval.Batch{}, fmt.Errorf("%w: line %d: box %d class %v is not an integer", ErrMalformedRecord, rec.Line, j, g[0])
			}
			boxes = append(boxes, cveval.GroundTruth{
				Class: class,
				Rect:  scaleRect(g[1:], sx, sy),
			})
		}

		b.Detections[i] = dets
		b.Boxes[i] = boxes
	}
	return b, nil
}

func checkScored(rec *Record) error {
	if rec.NeedsScoring() {
		return fmt.Errorf("%w: line %d: features not scored", ErrMalformedRecord, rec.Line)
	}
	if len(rec.Scores) == 0 {
		return fmt.Errorf("%w: line %d: missing scores", ErrMalformedRecord, rec.Line)
	}
	return nil
}

// classIndex converts a JSON number to a class index. Range checks are left
// to the evaluator.
func classIndex(v float64) (int, bool) {
	if v != math.Trunc(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return int(v), true
}

func (r *Record) scale() (float64, float64) {
	if r.Width > 0 && r.Height > 0 {
		return r.Width, r.Height
	}
	return 1, 1
}

func scaleRect(c []float64, sx, sy float64) cveval.Rect {
	return cveval.Rect{
		Left:   c[0] * sx,
		Top:    c[1] * sy,
		Right:  c[2] * sx,
		Bottom: c[3] * sy,
	}
}
