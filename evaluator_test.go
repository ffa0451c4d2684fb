package cveval

import (
	"errors"
	"testing"
)

func TestNew(t *testing.T) {
	for _, task := range TaskTypes() {
		t.Run(string(task), func(t *testing.T) {
			ev, err := New(task)
			if err != nil {
				t.Fatalf("New(%q) error = %v", task, err)
			}
			if ev.Task() != task {
				t.Errorf("Task() = %q, want %q", ev.Task(), task)
			}
		})
	}
}

func TestNew_Unsupported(t *testing.T) {
	_, err := New("semantic_segmentation")
	if !errors.Is(err, ErrUnsupportedTaskType) {
		t.Errorf("New() error = %v, want ErrUnsupportedTaskType", err)
	}
}

func TestNew_InvalidThreshold(t *testing.T) {
	_, err := New(ObjectDetection, WithIOUThresholds(2))
	if !errors.Is(err, ErrInvalidValue) {
		t.Errorf("New() error = %v, want ErrInvalidValue", err)
	}
}

func TestParseTaskType(t *testing.T) {
	tests := []struct {
		name    string
		want    TaskType
		wantErr error
	}{
		{"multiclass_classification", MulticlassClassification, nil},
		{"multilabel_classification", MultilabelClassification, nil},
		{"object_detection", ObjectDetection, nil},
		{"image_classification", "", ErrUnsupportedTaskType},
		{"", "", ErrUnsupportedTaskType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTaskType(tt.name)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ParseTaskType() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseTaskType() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEvaluator_AddRejectsForeignFields(t *testing.T) {
	tests := []struct {
		task  TaskType
		batch Batch
	}{
		{MulticlassClassification, Batch{Scores: [][]float64{{1}}, LabelSets: [][]bool{{true}}}},
		{MultilabelClassification, Batch{Scores: [][]float64{{1}}, Labels: []int{0}}},
		{ObjectDetection, Batch{Scores: [][]float64{{1}}, Detections: [][]Detection{{}}}},
	}

	for _, tt := range tests {
		t.Run(string(tt.task), func(t *testing.T) {
			ev, err := New(tt.task)
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if err := ev.Add(tt.batch); !errors.Is(err, ErrInvalidBatch) {
				t.Errorf("Add() error = %v, want ErrInvalidBatch", err)
			}
		})
	}
}

func TestEvaluator_AddDelegates(t *testing.T) {
	ev, err := New(MultilabelClassification)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	b := Batch{
		Scores:    [][]float64{{0.9, 0.2, 0.6}},
		LabelSets: [][]bool{{true, false, true}},
	}
	if b.Len() != 1 {
		t.Errorf("Len() = %d, want 1", b.Len())
	}
	if err := ev.Add(b); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if got := ev.Report()[MetricAccuracy50]; got != 1 {
		t.Errorf("accuracy_50 = %v, want 1", got)
	}
}
