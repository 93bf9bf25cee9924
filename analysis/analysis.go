// Package analysis turns analyzer output and raw segments into note
// boundaries: the offset heuristic, pitch-track trimming and segmentation by
// externally supplied onsets.
package analysis

import "errors"

var (
	// ErrEmptySegment is returned when a segment has no samples.
	ErrEmptySegment = errors.New("analysis: empty segment")
	// ErrInvalidSampleRate is returned for a non-positive sample rate.
	ErrInvalidSampleRate = errors.New("analysis: invalid sample rate")
	// ErrAnalyzer wraps failures of the pitch analyzer.
	ErrAnalyzer = errors.New("analysis: analyzer failed")
	// ErrUnsortedOnsets is returned for decreasing or negative onset times.
	ErrUnsortedOnsets = errors.New("analysis: onsets must be non-negative and non-decreasing")
)

// PitchTrack is a fixed-step sequence of frequency estimates in Hz.
// Non-positive values mark unvoiced frames.
type PitchTrack struct {
	Step   float64
	Values []float64
}

// Time returns the time of frame i relative to the track start.
func (p PitchTrack) Time(i int) float64 {
	return float64(i) * p.Step
}

// Interval bounds one sounding note in seconds. Offset >= Onset.
type Interval struct {
	Onset  float64 `json:"onset"`
	Offset float64 `json:"offset"`
}

// Duration returns Offset-Onset.
func (iv Interval) Duration() float64 {
	return iv.Offset - iv.Onset
}
