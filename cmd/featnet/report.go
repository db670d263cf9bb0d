package main

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/goccy/go-json"

	"github.com/born-ml/featnet/tensor"
)

// Report summarizes one extraction run.
type Report struct {
	RunID      string        `json:"run_id"`
	Backend    string        `json:"backend"`
	Seed       int64         `json:"seed"`
	Training   bool          `json:"training"`
	Input      []int         `json:"input"`
	Parameters int           `json:"parameters"`
	BuildMS    float64       `json:"build_ms"`
	ForwardMS  float64       `json:"forward_ms"`
	Features   []LevelReport `json:"features"`
	Pyramid    []LevelReport `json:"pyramid"`
}

// LevelReport holds the shape and value statistics of one feature map.
type LevelReport struct {
	Level int     `json:"level"`
	Shape []int   `json:"shape"`
	Mean  float64 `json:"mean"`
	Std   float64 `json:"std"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

// describeLevels computes per-level statistics.
func describeLevels[B tensor.Backend](levels []*tensor.Tensor[float32, B]) []LevelReport {
	out := make([]LevelReport, len(levels))
	for i, t := range levels {
		out[i] = describe(i, t.Shape(), t.Data())
	}
	return out
}

func describe(level int, shape tensor.Shape, data []float32) LevelReport {
	r := LevelReport{Level: level, Shape: append([]int(nil), shape...)}
	if len(data) == 0 {
		return r
	}

	r.Min, r.Max = math.Inf(1), math.Inf(-1)
	var sum float64
	for _, v := range data {
		f := float64(v)
		sum += f
		r.Min = math.Min(r.Min, f)
		r.Max = math.Max(r.Max, f)
	}
	r.Mean = sum / float64(len(data))

	var sq float64
	for _, v := range data {
		d := float64(v) - r.Mean
		sq += d * d
	}
	r.Std = math.Sqrt(sq / float64(len(data)))
	return r
}

// WriteJSON writes the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// WriteText writes a human-readable report.
func (r *Report) WriteText(w io.Writer) error {
	ew := &errWriter{w: w}
	ew.printf("run:        %s\n", r.RunID)
	ew.printf("backend:    %s\n", r.Backend)
	ew.printf("input:      %v\n", r.Input)
	ew.printf("parameters: %d\n", r.Parameters)
	ew.printf("build:      %.1f ms\n", r.BuildMS)
	ew.printf("forward:    %.1f ms\n", r.ForwardMS)
	for _, section := range []struct {
		name   string
		levels []LevelReport
	}{{"features", r.Features}, {"pyramid", r.Pyramid}} {
		ew.printf("%s:\n", section.name)
		for _, l := range section.levels {
			ew.printf("  [%d] %-18v mean=%+.4f std=%.4f min=%+.4f max=%+.4f\n",
				l.Level, l.Shape, l.Mean, l.Std, l.Min, l.Max)
		}
	}
	return ew.err
}

type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}
