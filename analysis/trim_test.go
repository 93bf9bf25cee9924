package analysis

import (
	"errors"
	"math"
	"testing"
)

func TestTrimTrackScenario(t *testing.T) {
	p := PitchTrack{Step: 0.01, Values: []float64{-1, -1, 440, 440, 440, -1, -1}}
	n := TrimTrack(p, 0)
	if n.Index != 2 {
		t.Fatalf("index = %d, want 2", n.Index)
	}
	if len(n.Values) != 3 {
		t.Fatalf("values = %v, want [440 440 440]", n.Values)
	}
	for _, v := range n.Values {
		if v != 440 {
			t.Fatalf("values = %v, want [440 440 440]", n.Values)
		}
	}
	iv := n.Interval()
	if math.Abs(iv.Onset-0.02) > 1e-12 || math.Abs(iv.Offset-0.04) > 1e-12 {
		t.Fatalf("interval = %+v, want 0.02..0.04", iv)
	}
}

func TestTrimVoicedEdgeCases(t *testing.T) {
	tests := []struct {
		name      string
		in        []float64
		wantLen   int
		wantStart int
	}{
		{"all unvoiced", []float64{-1, 0, -3}, 0, 3},
		{"empty", nil, 0, 0},
		{"ends voiced", []float64{-1, 220, 220}, 2, 1},
		{"all voiced", []float64{220, 221}, 2, 0},
		{"second run ignored", []float64{220, -1, 330, 330}, 1, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, st := TrimVoiced(tc.in)
			if len(got) != tc.wantLen || st != tc.wantStart {
				t.Fatalf("TrimVoiced(%v) = %v, %d; want len %d start %d", tc.in, got, st, tc.wantLen, tc.wantStart)
			}
		})
	}
}

func TestTrimTrackEmptyIsDropped(t *testing.T) {
	n := TrimTrack(PitchTrack{Step: 0.01, Values: []float64{-1, -1}}, 3)
	if !n.Empty() {
		t.Fatalf("expected empty note")
	}
	if iv := n.Interval(); iv.Onset != 3 || iv.Offset != 3 {
		t.Fatalf("interval = %+v", iv)
	}
}

func TestSplitByOnsets(t *testing.T) {
	x := make([]float64, 100)
	for i := range x {
		x[i] = float64(i)
	}
	segs, err := SplitByOnsets(x, 10, []float64{0.5, 2.0, 7.25})
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if len(segs) != 3 {
		t.Fatalf("segments = %d, want 3", len(segs))
	}
	bounds := [][2]float64{{5, 20}, {20, 72}, {72, 100}}
	for i, s := range segs {
		if len(s.Samples) != int(bounds[i][1]-bounds[i][0]) || s.Samples[0] != bounds[i][0] {
			t.Fatalf("segment %d = [%v..] len %d, want [%v,%v)", i, s.Samples[0], len(s.Samples), bounds[i][0], bounds[i][1])
		}
	}
	if segs[2].Start != 7.25 {
		t.Fatalf("start = %f, want 7.25", segs[2].Start)
	}
}

func TestSplitByOnsetsClampsAndRejects(t *testing.T) {
	x := make([]float64, 50)
	segs, err := SplitByOnsets(x, 10, []float64{1, 9, 9})
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if len(segs) != 3 || len(segs[0].Samples) != 40 || len(segs[1].Samples) != 0 || len(segs[2].Samples) != 0 {
		t.Fatalf("unexpected segments %+v", segs)
	}

	if _, err := SplitByOnsets(x, 10, []float64{2, 1}); !errors.Is(err, ErrUnsortedOnsets) {
		t.Fatalf("unsorted: err = %v", err)
	}
	if _, err := SplitByOnsets(x, 10, []float64{-0.1}); !errors.Is(err, ErrUnsortedOnsets) {
		t.Fatalf("negative: err = %v", err)
	}
	if _, err := SplitByOnsets(x, 0, []float64{0}); !errors.Is(err, ErrInvalidSampleRate) {
		t.Fatalf("sr 0: err = %v", err)
	}
	if segs, err := SplitByOnsets(x, 10, nil); err != nil || len(segs) != 0 {
		t.Fatalf("no onsets: %v %v", segs, err)
	}
}
