package pyin

import (
	"errors"
	"math"
	"testing"
)

func makeSine(sr int, freq float64, durationSec float64, amp float64) []float64 {
	n := int(float64(sr) * durationSec)
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/float64(sr))
	}
	return out
}

func TestThresholdPriorsSumToOne(t *testing.T) {
	for id := 0; id <= 7; id++ {
		w := thresholdPrior(id)
		var sum float64
		for _, v := range w {
			if v < 0 {
				t.Fatalf("distribution %d has negative weight", id)
			}
			sum += v
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Fatalf("distribution %d sums to %f", id, sum)
		}
	}
}

func TestSingleValuePriorPicksThreshold(t *testing.T) {
	w := thresholdPrior(6)
	if w[14] != 1 {
		t.Fatalf("threshold 0.15 weight = %f, want 1", w[14])
	}
}

func TestParamsValidate(t *testing.T) {
	p := DefaultParams()
	if err := p.Validate(); err != nil {
		t.Fatalf("default params invalid: %v", err)
	}
	p.ThresholdDistribution = 9
	if err := p.Validate(); !errors.Is(err, ErrInvalidParams) {
		t.Fatalf("err = %v, want ErrInvalidParams", err)
	}
}

func TestDifferenceMatchesDirectSum(t *testing.T) {
	block := makeSine(8000, 300, 0.032, 0.7)[:256]
	d := difference(block)
	half := len(block) / 2
	for _, tau := range []int{0, 1, 7, 26, 100} {
		var want float64
		for j := 0; j < half; j++ {
			diff := block[j] - block[j+tau]
			want += diff * diff
		}
		if math.Abs(d[tau]-want) > 1e-8 {
			t.Fatalf("d[%d] = %g, want %g", tau, d[tau], want)
		}
	}
}

func TestAnalyzeEmptyInput(t *testing.T) {
	tr := NewDefaultTracker()
	_, err := tr.Analyze(Request{SampleRate: 44100, Params: DefaultParams()})
	if !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("err = %v, want ErrEmptyInput", err)
	}
}

func TestSmoothedPitchTracksSine(t *testing.T) {
	sr := 22050
	tr := NewDefaultTracker()
	resp, err := tr.Analyze(Request{
		Samples:    makeSine(sr, 220, 1.0, 0.5),
		SampleRate: sr,
		Output:     OutputSmoothedPitchTrack,
		Params:     DefaultParams(),
	})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if want := 256.0 / float64(sr); resp.Step != want {
		t.Fatalf("step = %f, want %f", resp.Step, want)
	}
	if want := (sr + 255) / 256; len(resp.Values) != want {
		t.Fatalf("frames = %d, want %d", len(resp.Values), want)
	}
	n := len(resp.Values)
	for i := n / 4; i < 3*n/4; i++ {
		f := resp.Values[i]
		if math.Abs(f-220) > 3 {
			t.Fatalf("frame %d: f0 = %f, want ~220", i, f)
		}
	}
}

func TestSilenceIsUnvoicedNegative(t *testing.T) {
	sr := 22050
	p := DefaultParams()
	p.OutputUnvoiced = UnvoicedNegative
	resp, err := NewDefaultTracker().Analyze(Request{
		Samples:    make([]float64, sr/2),
		SampleRate: sr,
		Output:     OutputSmoothedPitchTrack,
		Params:     p,
	})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	for i, f := range resp.Values {
		if f > 0 {
			t.Fatalf("frame %d voiced (%f) in silence", i, f)
		}
	}
}

func TestVoicedProbHighForToneZeroForSilence(t *testing.T) {
	sr := 22050
	x := append(makeSine(sr, 330, 0.5, 0.5), make([]float64, sr/2)...)
	resp, err := NewDefaultTracker().Analyze(Request{
		Samples:    x,
		SampleRate: sr,
		Output:     OutputVoicedProb,
		Params:     DefaultParams(),
	})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	n := len(resp.Values)
	if vp := resp.Values[n/8]; vp < 0.5 {
		t.Fatalf("voiced prob in tone = %f, want >= 0.5", vp)
	}
	if vp := resp.Values[n-2]; vp != 0 {
		t.Fatalf("voiced prob in silence = %f, want 0", vp)
	}
}

func TestNotesFromTwoTones(t *testing.T) {
	sr := 22050
	var x []float64
	x = append(x, makeSine(sr, 220, 0.5, 0.5)...)
	x = append(x, make([]float64, sr/4)...)
	x = append(x, makeSine(sr, 330, 0.5, 0.5)...)
	x = append(x, make([]float64, sr/4)...)

	resp, err := NewDefaultTracker().Analyze(Request{
		Samples:    x,
		SampleRate: sr,
		Output:     OutputNotes,
		Params:     DefaultParams(),
	})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if len(resp.Notes) != 2 {
		t.Fatalf("notes = %+v, want 2", resp.Notes)
	}
	if f := resp.Notes[0].Frequency; math.Abs(f-220) > 4 {
		t.Fatalf("first note %f Hz, want ~220", f)
	}
	if f := resp.Notes[1].Frequency; math.Abs(f-330) > 5 {
		t.Fatalf("second note %f Hz, want ~330", f)
	}
	if on := resp.Notes[1].Onset; on < 0.65 || on > 0.85 {
		t.Fatalf("second onset %f, want ~0.75", on)
	}
}

func TestSegmentNotesPrunesShortNotes(t *testing.T) {
	step := 0.01
	track := []float64{-1, 440, 440, -1, 220, 220, 220, 220, 220, 220, 220, -1}
	rms := make([]float64, len(track))
	for i := range rms {
		rms[i] = 0.1
	}
	p := DefaultParams()
	notes := segmentNotes(track, rms, step, p)
	if len(notes) != 1 {
		t.Fatalf("notes = %+v, want 1", notes)
	}
	if math.Abs(notes[0].Frequency-220) > 1e-9 {
		t.Fatalf("frequency = %f, want 220", notes[0].Frequency)
	}
	if math.Abs(notes[0].Onset-0.04) > 1e-12 || math.Abs(notes[0].Duration-0.07) > 1e-12 {
		t.Fatalf("note = %+v, want onset 0.04 duration 0.07", notes[0])
	}
}

func TestSegmentNotesSplitsOnPitchChange(t *testing.T) {
	track := []float64{220, 220, 220, 220, 330, 330, 330, 330}
	rms := make([]float64, len(track))
	for i := range rms {
		rms[i] = 0.1
	}
	p := DefaultParams()
	p.PruneThreshold = 0
	notes := segmentNotes(track, rms, 0.01, p)
	if len(notes) != 2 {
		t.Fatalf("notes = %+v, want 2", notes)
	}
	if math.Abs(notes[1].Onset-0.04) > 1e-12 {
		t.Fatalf("second onset = %f, want 0.04", notes[1].Onset)
	}
}
