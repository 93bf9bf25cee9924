// Package pyin implements the probabilistic YIN pitch tracker behind the
// annotation tools and the request/response contract they consume it through.
package pyin

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyInput is returned for requests without samples.
	ErrEmptyInput = errors.New("pyin: empty input")
	// ErrInvalidParams is returned for out-of-range parameters.
	ErrInvalidParams = errors.New("pyin: invalid parameters")
)

// UnvoicedMode selects how frames classified as unvoiced are reported in a
// pitch track.
type UnvoicedMode int

const (
	// UnvoicedOmit reports unvoiced frames as 0.
	UnvoicedOmit UnvoicedMode = iota
	// UnvoicedPositive reports the best pitch estimate as-is.
	UnvoicedPositive
	// UnvoicedNegative reports the best pitch estimate negated.
	UnvoicedNegative
)

// Output selects the analyzer output.
type Output int

const (
	OutputSmoothedPitchTrack Output = iota
	OutputVoicedProb
	OutputNotes
)

func (o Output) String() string {
	switch o {
	case OutputSmoothedPitchTrack:
		return "smoothedpitchtrack"
	case OutputVoicedProb:
		return "voicedprob"
	case OutputNotes:
		return "notes"
	default:
		return fmt.Sprintf("output(%d)", int(o))
	}
}

// Params is the fixed parameter set sent with every request.
type Params struct {
	// ThresholdDistribution selects the YIN threshold prior:
	// 0 uniform, 1-4 Beta with mean 0.10/0.15/0.20/0.30,
	// 5-7 single value 0.10/0.15/0.20.
	ThresholdDistribution int `json:"threshdistr"`
	// LowAmpSuppression scales down pitch probabilities of frames whose RMS
	// is below this level.
	LowAmpSuppression float64      `json:"lowampsuppression"`
	OutputUnvoiced    UnvoicedMode `json:"outputunvoiced"`
	// PreciseTime centres analysis windows on frame timestamps.
	PreciseTime bool `json:"precisetime"`
	// PruneThreshold drops notes shorter than this many seconds.
	PruneThreshold float64 `json:"prunethresh"`
	// OnsetSensitivity in [0,1]; higher values split notes on smaller
	// energy rises. Zero disables energy-based splitting.
	OnsetSensitivity float64 `json:"onsetsensitivity"`
}

// DefaultParams returns the parameter set the annotation scripts use.
func DefaultParams() Params {
	return Params{
		ThresholdDistribution: 2,
		LowAmpSuppression:     0.08,
		OutputUnvoiced:        UnvoicedPositive,
		PreciseTime:           false,
		PruneThreshold:        0.05,
		OnsetSensitivity:      0.8,
	}
}

func (p Params) Validate() error {
	if p.ThresholdDistribution < 0 || p.ThresholdDistribution > 7 {
		return fmt.Errorf("%w: threshdistr %d not in 0..7", ErrInvalidParams, p.ThresholdDistribution)
	}
	if p.LowAmpSuppression < 0 || p.LowAmpSuppression > 1 {
		return fmt.Errorf("%w: lowampsuppression %g not in [0,1]", ErrInvalidParams, p.LowAmpSuppression)
	}
	if p.OutputUnvoiced < UnvoicedOmit || p.OutputUnvoiced > UnvoicedNegative {
		return fmt.Errorf("%w: outputunvoiced %d not in 0..2", ErrInvalidParams, p.OutputUnvoiced)
	}
	if p.PruneThreshold < 0 {
		return fmt.Errorf("%w: prunethresh must be >= 0", ErrInvalidParams)
	}
	if p.OnsetSensitivity < 0 || p.OnsetSensitivity > 1 {
		return fmt.Errorf("%w: onsetsensitivity %g not in [0,1]", ErrInvalidParams, p.OnsetSensitivity)
	}
	return nil
}

// Request asks for one output over a whole sample buffer.
type Request struct {
	Samples    []float64
	SampleRate int
	Output     Output
	Params     Params
}

// Note is a discrete note event.
type Note struct {
	Onset     float64 `json:"onset"`
	Duration  float64 `json:"duration"`
	Frequency float64 `json:"frequency"`
}

// Response carries the time step between frames and the requested output:
// Values for pitch-track and voiced-probability outputs, Notes for notes.
type Response struct {
	Step   float64
	Values []float64
	Notes  []Note
}

// Analyzer is the pitch/voicing estimator contract.
type Analyzer interface {
	Analyze(req Request) (*Response, error)
}

var _ Analyzer = (*Tracker)(nil)
