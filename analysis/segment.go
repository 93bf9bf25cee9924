package analysis

import "fmt"

// Segment is one slice of a full-track buffer starting at an onset.
type Segment struct {
	Start   float64
	Samples []float64
}

// SplitByOnsets slices x into one segment per onset. Segment i spans
// [onset_i, onset_i+1) in samples, the last one runs to the end of x.
// Sample indices are int(t*sampleRate) clamped to the buffer.
func SplitByOnsets(x []float64, sampleRate int, onsets []float64) ([]Segment, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSampleRate, sampleRate)
	}
	idx := make([]int, len(onsets))
	for i, t := range onsets {
		if t < 0 {
			return nil, fmt.Errorf("%w: onset %d is %g", ErrUnsortedOnsets, i, t)
		}
		if i > 0 && t < onsets[i-1] {
			return nil, fmt.Errorf("%w: onset %d (%g) precedes onset %d (%g)", ErrUnsortedOnsets, i, t, i-1, onsets[i-1])
		}
		s := int(t * float64(sampleRate))
		if s > len(x) {
			s = len(x)
		}
		idx[i] = s
	}
	segs := make([]Segment, len(onsets))
	for i, s := range idx {
		end := len(x)
		if i+1 < len(idx) {
			end = idx[i+1]
		}
		segs[i] = Segment{Start: onsets[i], Samples: x[s:end]}
	}
	return segs, nil
}
