package pyin

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

const (
	// notes split after this many consecutive frames away from the note pitch
	pitchDeviationFrames = 3
	// semitone distance that counts as a pitch change
	pitchDeviationSemitones = 1.0
	// rise ratio at OnsetSensitivity 0 .. 1 is 1 + onsetRiseRange*(1-s)
	onsetRiseRange = 2.5
)

// segmentNotes groups voiced frames of a signed pitch track into notes.
func segmentNotes(track []float64, rms []float64, step float64, p Params) []Note {
	var notes []Note
	var cur []float64 // midi values of the current note
	var curStart int
	var pending []float64 // frames deviating from cur
	pendingStart := -1

	flush := func(end int) {
		if len(cur) == 0 {
			return
		}
		dur := float64(end-curStart) * step
		if dur >= p.PruneThreshold {
			notes = append(notes, Note{
				Onset:     float64(curStart) * step,
				Duration:  dur,
				Frequency: midiHz(median(cur)),
			})
		}
		cur = cur[:0]
	}

	riseRatio := 0.0
	if p.OnsetSensitivity > 0 {
		riseRatio = 1 + onsetRiseRange*(1-p.OnsetSensitivity)
	}

	for i, f := range track {
		if f <= 0 {
			if len(pending) > 0 {
				cur = append(cur, pending...)
				pending = pending[:0]
			}
			flush(i)
			continue
		}
		m := hzMIDI(f)
		if len(cur) == 0 {
			curStart = i
			cur = append(cur, m)
			continue
		}
		if riseRatio > 0 && i > 0 && rms[i-1] > 0 && rms[i]/rms[i-1] > riseRatio {
			cur = append(cur, pending...)
			pending = pending[:0]
			flush(i)
			curStart = i
			cur = append(cur, m)
			continue
		}
		if math.Abs(m-median(cur)) >= pitchDeviationSemitones {
			if len(pending) == 0 {
				pendingStart = i
			}
			pending = append(pending, m)
			if len(pending) >= pitchDeviationFrames {
				flush(pendingStart)
				curStart = pendingStart
				cur = append(cur, pending...)
				pending = pending[:0]
			}
			continue
		}
		cur = append(cur, pending...)
		pending = pending[:0]
		cur = append(cur, m)
	}
	cur = append(cur, pending...)
	flush(len(track))
	return notes
}

func median(x []float64) float64 {
	s := append([]float64(nil), x...)
	sort.Float64s(s)
	return stat.Quantile(0.5, stat.Empirical, s, nil)
}

func hzMIDI(f float64) float64 {
	return 12*math.Log2(f/440.0) + 69
}

func midiHz(m float64) float64 {
	return 440.0 * math.Pow(2, (m-69)/12)
}
