package analysis

// TrimVoiced returns the first run of voiced (positive) values and the index
// where it starts. An all-unvoiced track yields an empty run starting at
// len(values). A run reaching the end of the track keeps its last frame.
func TrimVoiced(values []float64) ([]float64, int) {
	st := 0
	for st < len(values) && values[st] <= 0 {
		st++
	}
	end := st
	for end < len(values) && values[end] > 0 {
		end++
	}
	return values[st:end], st
}

// VoicedNote is the trimmed voiced run of a pitch track placed on an absolute
// time axis.
type VoicedNote struct {
	Start  float64
	Index  int
	Step   float64
	Values []float64
}

// TrimTrack trims p and anchors it at start, the absolute time of frame 0.
func TrimTrack(p PitchTrack, start float64) VoicedNote {
	v, st := TrimVoiced(p.Values)
	return VoicedNote{Start: start, Index: st, Step: p.Step, Values: v}
}

// Empty reports a note with no voiced frames; callers drop such notes.
func (n VoicedNote) Empty() bool {
	return len(n.Values) == 0
}

// Time returns the absolute time of the i-th voiced frame.
func (n VoicedNote) Time(i int) float64 {
	return n.Start + float64(n.Index+i)*n.Step
}

// Interval spans the first to the last voiced frame time.
func (n VoicedNote) Interval() Interval {
	if n.Empty() {
		return Interval{Onset: n.Start, Offset: n.Start}
	}
	return Interval{Onset: n.Time(0), Offset: n.Time(len(n.Values) - 1)}
}
