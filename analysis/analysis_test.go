package analysis

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/cwbudde/notetrack/pyin"
)

// fakeAnalyzer returns a constant pitch track and a scripted voiced
// probability track at a 256-sample step.
type fakeAnalyzer struct {
	voiced   func(frames int) []float64
	err      error
	requests []pyin.Request
}

func (f *fakeAnalyzer) Analyze(req pyin.Request) (*pyin.Response, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	frames := (len(req.Samples) + 255) / 256
	resp := &pyin.Response{Step: 256.0 / float64(req.SampleRate)}
	switch req.Output {
	case pyin.OutputVoicedProb:
		if f.voiced != nil {
			resp.Values = f.voiced(frames)
		} else {
			resp.Values = make([]float64, frames)
		}
	default:
		resp.Values = make([]float64, frames)
		for i := range resp.Values {
			resp.Values[i] = 440
		}
	}
	return resp, nil
}

func makeSine(sr int, freq float64, durationSec float64, amp float64) []float64 {
	n := int(float64(sr) * durationSec)
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/float64(sr))
	}
	return out
}

func randomSignal(n int, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	for i := range out {
		out[i] = rng.Float64()*2 - 1
	}
	return out
}

func fastOffsetConfig() OffsetConfig {
	cfg := DefaultOffsetConfig()
	cfg.HarmonicOnly = false
	return cfg
}

func TestDecayRate(t *testing.T) {
	got := DecayRate([]float64{1, math.E, 1})
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if math.Abs(got[0]+1) > 1e-12 || math.Abs(got[1]-1) > 1e-12 {
		t.Fatalf("decay = %v, want [-1 1]", got)
	}
	if DecayRate([]float64{1}) != nil {
		t.Fatalf("single frame must give no decay values")
	}
}

func TestOffsetLikelihoodIsNonNegative(t *testing.T) {
	strength := randomSignal(500, 3)
	decay := randomSignal(480, 5)
	rms := randomSignal(510, 7)
	for i := range rms {
		rms[i] = math.Abs(rms[i]) + 1e-15
	}
	l := OffsetLikelihood(strength, decay, rms)
	if len(l) != 480 {
		t.Fatalf("len = %d, want shortest input 480", len(l))
	}
	for i, v := range l {
		if v < 0 {
			t.Fatalf("likelihood[%d] = %f < 0", i, v)
		}
		want := math.Max(0, decay[i]*strength[i]/rms[i])
		if v != want {
			t.Fatalf("likelihood[%d] = %f, want %f", i, v, want)
		}
	}
}

func TestOffsetStrengthRespondsToDecrease(t *testing.T) {
	sr := 22050
	x := append(makeSine(sr, 440, 0.5, 0.5), make([]float64, sr/2)...)
	s, err := OffsetStrength(x, sr, DefaultStrengthConfig())
	if err != nil {
		t.Fatalf("offset strength: %v", err)
	}
	if want := 1 + len(x)/256; len(s) != want {
		t.Fatalf("frames = %d, want %d", len(s), want)
	}
	for i := 0; i < 5; i++ {
		if s[i] != 0 {
			t.Fatalf("padded frame %d = %f, want 0", i, s[i])
		}
	}
	end := int(0.5 * float64(sr) / 256)
	var steady, release float64
	for i := 10; i < end-10; i++ {
		steady = math.Max(steady, s[i])
	}
	for i := end; i < end+15; i++ {
		release = math.Max(release, s[i])
	}
	if release <= steady {
		t.Fatalf("release strength %f not above steady %f", release, steady)
	}
}

func TestTruncateSegment(t *testing.T) {
	sr := 100
	short := make([]float64, 399)
	if got := TruncateSegment(short, sr, 4); len(got) != 399 {
		t.Fatalf("short segment changed: len %d", len(got))
	}
	long := make([]float64, 1000)
	if got := TruncateSegment(long, sr, 4); len(got) != 400 {
		t.Fatalf("long segment len %d, want 400", len(got))
	}
}

func TestDetectAnalyzesAtMostFourSeconds(t *testing.T) {
	sr := 8000
	fa := &fakeAnalyzer{}
	d, err := NewOffsetDetector(fastOffsetConfig(), fa, nil)
	if err != nil {
		t.Fatalf("new detector: %v", err)
	}
	if _, err := d.Detect(make([]float64, 5*sr), sr, 0); err != nil {
		t.Fatalf("detect: %v", err)
	}
	if got := len(fa.requests[0].Samples); got != 4*sr {
		t.Fatalf("analyzed %d samples, want %d", got, 4*sr)
	}

	fa.requests = nil
	if _, err := d.Detect(make([]float64, 3*sr), sr, 0); err != nil {
		t.Fatalf("detect: %v", err)
	}
	if got := len(fa.requests[0].Samples); got != 3*sr {
		t.Fatalf("analyzed %d samples, want %d", got, 3*sr)
	}
}

func TestDetectErrors(t *testing.T) {
	d, err := NewOffsetDetector(fastOffsetConfig(), &fakeAnalyzer{}, nil)
	if err != nil {
		t.Fatalf("new detector: %v", err)
	}
	if _, err := d.Detect(nil, 22050, 0); !errors.Is(err, ErrEmptySegment) {
		t.Fatalf("empty: err = %v", err)
	}
	if _, err := d.Detect([]float64{1}, 0, 0); !errors.Is(err, ErrInvalidSampleRate) {
		t.Fatalf("sr 0: err = %v", err)
	}

	d.Analyzer = &fakeAnalyzer{err: errors.New("boom")}
	if _, err := d.Detect(make([]float64, 4096), 22050, 0); !errors.Is(err, ErrAnalyzer) {
		t.Fatalf("analyzer failure: err = %v", err)
	}
}

func TestDetectSilenceIsClampedPastMinOffsetTime(t *testing.T) {
	sr := 22050
	d, err := NewOffsetDetector(fastOffsetConfig(), &fakeAnalyzer{}, nil)
	if err != nil {
		t.Fatalf("new detector: %v", err)
	}
	var trace OffsetTrace
	d.Diagnostics = func(tr OffsetTrace) { trace = tr }

	start := 1.5
	res, err := d.Detect(make([]float64, sr/2), sr, start)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if res.Outcome != OutcomeSilence {
		t.Fatalf("outcome = %v, want silence", res.Outcome)
	}
	if !trace.Decision.Clamped {
		t.Fatalf("silence at the grace frame should be clamped")
	}
	if res.Frame != 6 {
		t.Fatalf("frame = %d, want 6", res.Frame)
	}
	if res.Time-start <= 0.06 {
		t.Fatalf("offset %f s after start, want > 0.06", res.Time-start)
	}
	if len(res.Pitch.Values) != res.Frame {
		t.Fatalf("pitch values = %d, want %d", len(res.Pitch.Values), res.Frame)
	}
}

func TestDetectFindsReleasePeak(t *testing.T) {
	sr := 22050
	seg := append(makeSine(sr, 440, 0.5, 0.5), make([]float64, sr/2)...)
	d, err := NewOffsetDetector(fastOffsetConfig(), &fakeAnalyzer{}, nil)
	if err != nil {
		t.Fatalf("new detector: %v", err)
	}
	var trace OffsetTrace
	d.Diagnostics = func(tr OffsetTrace) { trace = tr }

	res, err := d.Detect(seg, sr, 2.0)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if res.Outcome != OutcomePeak {
		t.Fatalf("outcome = %v, want peak", res.Outcome)
	}
	if rel := res.Time - 2.0; math.Abs(rel-0.5) > 0.1 {
		t.Fatalf("offset at %f s, want ~0.5", rel)
	}
	for i, v := range trace.Likelihood {
		if v < 0 {
			t.Fatalf("likelihood[%d] = %f < 0", i, v)
		}
	}
	if len(trace.Strength) != len(trace.Likelihood) || len(trace.Decay) != len(trace.Likelihood) {
		t.Fatalf("trace signals not aligned")
	}
	if trace.Candidates[0] != res.Frame {
		t.Fatalf("first candidate %d, frame %d", trace.Candidates[0], res.Frame)
	}
}

func TestDetectWithTrackerAndHPSS(t *testing.T) {
	sr := 22050
	seg := append(makeSine(sr, 330, 0.6, 0.5), make([]float64, sr/2)...)
	d, err := NewOffsetDetector(DefaultOffsetConfig(), nil, nil)
	if err != nil {
		t.Fatalf("new detector: %v", err)
	}
	res, err := d.Detect(seg, sr, 0)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if res.Time <= 0.06 || res.Time > float64(len(seg))/float64(sr) {
		t.Fatalf("offset %f outside segment", res.Time)
	}
	if res.Pitch.Step != 256.0/float64(sr) {
		t.Fatalf("step = %f", res.Pitch.Step)
	}
}

func TestOffsetConfigValidate(t *testing.T) {
	cfg := DefaultOffsetConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	cfg.RMSFloor = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for zero rms floor")
	}
	cfg = DefaultOffsetConfig()
	cfg.Params.ThresholdDistribution = 12
	if _, err := NewOffsetDetector(cfg, nil, nil); err == nil {
		t.Fatalf("expected error for invalid analyzer params")
	}
}

func TestVoicingOffsetStopsWhenVoicingDrops(t *testing.T) {
	sr := 22050
	fa := &fakeAnalyzer{voiced: func(n int) []float64 {
		vp := make([]float64, n)
		for i := 0; i < 30 && i < n; i++ {
			vp[i] = 1
		}
		return vp
	}}
	d, err := NewVoicingOffsetDetector(DefaultVoicingOffsetConfig(), fa, nil)
	if err != nil {
		t.Fatalf("new detector: %v", err)
	}
	res, err := d.Detect(makeSine(sr, 440, 1.0, 0.5), sr, 0.25)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if res.Frame != 30 || res.Outcome != OutcomeVoicingDrop {
		t.Fatalf("frame %d outcome %v, want 30 voicing_drop", res.Frame, res.Outcome)
	}
	if want := 0.25 + 30*256.0/float64(sr); math.Abs(res.Time-want) > 1e-12 {
		t.Fatalf("time = %f, want %f", res.Time, want)
	}
	if len(res.Pitch.Values) != 30 {
		t.Fatalf("pitch values = %d, want 30", len(res.Pitch.Values))
	}
	if len(fa.requests) != 2 || fa.requests[0].Output != pyin.OutputVoicedProb {
		t.Fatalf("unexpected analyzer requests %+v", fa.requests)
	}
}

func TestVoicingOffsetRunsToEndWhenAlwaysVoiced(t *testing.T) {
	sr := 22050
	fa := &fakeAnalyzer{voiced: func(n int) []float64 {
		vp := make([]float64, n)
		for i := range vp {
			vp[i] = 1
		}
		return vp
	}}
	d, err := NewVoicingOffsetDetector(DefaultVoicingOffsetConfig(), fa, nil)
	if err != nil {
		t.Fatalf("new detector: %v", err)
	}
	seg := makeSine(sr, 440, 0.5, 0.5)
	res, err := d.Detect(seg, sr, 0)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if res.Outcome != OutcomeSegmentEnd {
		t.Fatalf("outcome = %v, want segment_end", res.Outcome)
	}
	if want := (len(seg) + 255) / 256; res.Frame != want {
		t.Fatalf("frame = %d, want %d", res.Frame, want)
	}
}
