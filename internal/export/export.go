// Package export writes evaluation reports as text, protobuf JSON, binary
// protobuf or Prometheus metrics.
package export

import (
	"fmt"
	"io"
	"text/tabwriter"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	cveval "github.com/jamesainslie/go-cveval"
)

// Summary is a finished evaluation run.
type Summary struct {
	RunID  string
	Task   cveval.TaskType
	Images int
	Report cveval.Report
}

// Struct encodes the summary as a protobuf Struct:
//
//	{"run_id": ..., "task": ..., "images": N, "metrics": {"mAP_50": ...}}
func (s Summary) Struct() (*structpb.Struct, error) {
	metrics := make(map[string]any, len(s.Report))
	for k, v := range s.Report {
		metrics[k] = v
	}
	st, err := structpb.NewStruct(map[string]any{
		"run_id":  s.RunID,
		"task":    string(s.Task),
		"images":  s.Images,
		"metrics": metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding summary: %w", err)
	}
	return st, nil
}

// MarshalJSON renders the summary as indented protobuf JSON.
func MarshalJSON(s Summary) ([]byte, error) {
	st, err := s.Struct()
	if err != nil {
		return nil, err
	}
	return protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(st)
}

// MarshalProto renders the summary as a binary google.protobuf.Struct.
func MarshalProto(s Summary) ([]byte, error) {
	st, err := s.Struct()
	if err != nil {
		return nil, err
	}
	return proto.MarshalOptions{Deterministic: true}.Marshal(st)
}

// UnmarshalProto decodes a summary written by MarshalProto.
func UnmarshalProto(data []byte) (Summary, error) {
	var st structpb.Struct
	if err := proto.Unmarshal(data, &st); err != nil {
		return Summary{}, fmt.Errorf("decoding summary: %w", err)
	}
	fields := st.GetFields()
	s := Summary{
		RunID:  fields["run_id"].GetStringValue(),
		Task:   cveval.TaskType(fields["task"].GetStringValue()),
		Images: int(fields["images"].GetNumberValue()),
		Report: cveval.Report{},
	}
	for k, v := range fields["metrics"].GetStructValue().GetFields() {
		s.Report[k] = v.GetNumberValue()
	}
	return s, nil
}

// WriteText writes a two-column metric table sorted by metric name.
func WriteText(w io.Writer, s Summary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "run\t%s\n", s.RunID)
	fmt.Fprintf(tw, "task\t%s\n", s.Task)
	fmt.Fprintf(tw, "images\t%d\n", s.Images)
	for _, k := range s.Report.Keys() {
		fmt.Fprintf(tw, "%s\t%.4f\n", k, s.Report[k])
	}
	return tw.Flush()
}

// Write renders s to w in format, one of "text", "json" or "proto".
func Write(w io.Writer, format string, s Summary) error {
	var data []byte
	var err error
	switch format {
	case "text":
		return WriteText(w, s)
	case "json":
		data, err = MarshalJSON(s)
		if err == nil {
			data = append(data, '\n')
		}
	case "proto":
		data, err = MarshalProto(s)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
