// Package annotate runs the annotation pipelines: analyzer, offset
// heuristic and trimming feeding pitch and interval rows into a CSV sink.
package annotate

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/cwbudde/notetrack/analysis"
)

// CSVSink writes comma-separated rows without a header: (time, hz) pitch
// rows to one writer and (onset, offset) rows to another.
type CSVSink struct {
	pitch     *csv.Writer
	intervals *csv.Writer
}

func NewCSVSink(pitch, intervals io.Writer) *CSVSink {
	return &CSVSink{pitch: csv.NewWriter(pitch), intervals: csv.NewWriter(intervals)}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func (s *CSVSink) WritePitch(t, hz float64) error {
	return s.pitch.Write([]string{formatFloat(t), formatFloat(hz)})
}

func (s *CSVSink) WriteInterval(iv analysis.Interval) error {
	return s.intervals.Write([]string{formatFloat(iv.Onset), formatFloat(iv.Offset)})
}

// Flush flushes both writers and returns the first error.
func (s *CSVSink) Flush() error {
	s.pitch.Flush()
	s.intervals.Flush()
	if err := s.pitch.Error(); err != nil {
		return err
	}
	return s.intervals.Error()
}
