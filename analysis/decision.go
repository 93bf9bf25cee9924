package analysis

import "fmt"

// Outcome names the rule that chose an offset frame.
type Outcome int

const (
	// OutcomePeak: the first likelihood peak that survived filtering.
	OutcomePeak Outcome = iota + 1
	// OutcomeSilence: the first frame past the grace period whose energy
	// fell below the silence floor.
	OutcomeSilence
	// OutcomeSegmentEnd: the last energy frame of the segment.
	OutcomeSegmentEnd
	// OutcomeVoicingDrop: the voicing-offset score crossed its threshold.
	OutcomeVoicingDrop
)

func (o Outcome) String() string {
	switch o {
	case OutcomePeak:
		return "peak"
	case OutcomeSilence:
		return "silence"
	case OutcomeSegmentEnd:
		return "segment_end"
	case OutcomeVoicingDrop:
		return "voicing_drop"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Decision is the frame chosen as note offset and the rule that chose it.
type Decision struct {
	Frame   int
	Outcome Outcome
	// Clamped is set when Frame was raised to the minimum offset frame.
	Clamped bool
}

// Decide applies the fallback chain peak, silence, segment end. candidates
// must already be filtered; rms is the per-frame energy.
func Decide(candidates []int, rms []float64, silenceGrace int, silenceFloor float64) Decision {
	if len(candidates) > 0 {
		return Decision{Frame: candidates[0], Outcome: OutcomePeak}
	}
	for i := silenceGrace; i < len(rms); i++ {
		if i >= 0 && rms[i] < silenceFloor {
			return Decision{Frame: i, Outcome: OutcomeSilence}
		}
	}
	last := len(rms) - 1
	if last < 0 {
		last = 0
	}
	return Decision{Frame: last, Outcome: OutcomeSegmentEnd}
}
