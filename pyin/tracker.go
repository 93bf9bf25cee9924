package pyin

import (
	"fmt"
)

// Config holds the fixed framing and HMM layout of a Tracker.
type Config struct {
	BlockSize       int
	StepSize        int
	MinFreq         float64 // lowest HMM bin, Hz
	BinsPerSemitone int
	Semitones       int
	YinTrust        float64
	SelfTransition  float64 // probability of keeping the voicing state
	TransitionWidth int     // pitch bins reachable per frame, odd
}

func DefaultConfig() Config {
	return Config{
		BlockSize:       2048,
		StepSize:        256,
		MinFreq:         61.735,
		BinsPerSemitone: 5,
		Semitones:       69,
		YinTrust:        0.5,
		SelfTransition:  0.99,
		TransitionWidth: 11,
	}
}

func (c *Config) Validate() error {
	if c.BlockSize < 64 || c.BlockSize%2 != 0 {
		return fmt.Errorf("block size must be even and >= 64, got %d", c.BlockSize)
	}
	if c.StepSize < 1 || c.StepSize > c.BlockSize {
		return fmt.Errorf("step size must be in [1, block size], got %d", c.StepSize)
	}
	if c.MinFreq <= 0 {
		return fmt.Errorf("min freq must be > 0")
	}
	if c.BinsPerSemitone < 1 || c.Semitones < 1 {
		return fmt.Errorf("pitch grid must have at least one bin")
	}
	if c.Semitones*c.BinsPerSemitone > 1<<15-1 {
		return fmt.Errorf("pitch grid too large")
	}
	if c.YinTrust <= 0 || c.YinTrust > 1 {
		return fmt.Errorf("yin trust must be in (0,1]")
	}
	if c.SelfTransition <= 0 || c.SelfTransition >= 1 {
		return fmt.Errorf("self transition must be in (0,1)")
	}
	if c.TransitionWidth < 1 {
		return fmt.Errorf("transition width must be >= 1")
	}
	return nil
}

// Tracker is the native pYIN analyzer.
type Tracker struct {
	cfg Config
	hmm *pitchHMM
}

func NewTracker(cfg Config) (*Tracker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	return &Tracker{cfg: cfg, hmm: newPitchHMM(cfg)}, nil
}

// NewDefaultTracker returns a Tracker with DefaultConfig.
func NewDefaultTracker() *Tracker {
	t, err := NewTracker(DefaultConfig())
	if err != nil {
		panic(err)
	}
	return t
}

// Step returns the frame step in seconds at sampleRate.
func (t *Tracker) Step(sampleRate int) float64 {
	return float64(t.cfg.StepSize) / float64(sampleRate)
}

type frameObs struct {
	cands []candidate
	rms   float64
}

func (t *Tracker) Analyze(req Request) (*Response, error) {
	if req.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %d", ErrInvalidParams, req.SampleRate)
	}
	if len(req.Samples) == 0 {
		return nil, ErrEmptyInput
	}
	if err := req.Params.Validate(); err != nil {
		return nil, err
	}

	frames := t.frames(req.Samples, req.SampleRate, req.Params)
	resp := &Response{Step: t.Step(req.SampleRate)}

	switch req.Output {
	case OutputVoicedProb:
		resp.Values = voicedProbabilities(frames)
	case OutputSmoothedPitchTrack:
		resp.Values = t.smoothedPitch(frames, req.Params.OutputUnvoiced)
	case OutputNotes:
		track := t.smoothedPitch(frames, UnvoicedNegative)
		rms := make([]float64, len(frames))
		for i, f := range frames {
			rms[i] = f.rms
		}
		resp.Notes = segmentNotes(track, rms, resp.Step, req.Params)
	default:
		return nil, fmt.Errorf("%w: unknown output %v", ErrInvalidParams, req.Output)
	}
	return resp, nil
}

// frames runs the per-frame YIN stage over the whole buffer.
func (t *Tracker) frames(x []float64, sampleRate int, p Params) []frameObs {
	step, block := t.cfg.StepSize, t.cfg.BlockSize
	n := (len(x) + step - 1) / step
	prior := thresholdPrior(p.ThresholdDistribution)
	ts := thresholds()
	buf := make([]float64, block)
	out := make([]frameObs, n)
	for i := 0; i < n; i++ {
		start := i * step
		if p.PreciseTime {
			start -= block / 2
		}
		for j := range buf {
			k := start + j
			if k >= 0 && k < len(x) {
				buf[j] = x[k]
			} else {
				buf[j] = 0
			}
		}
		d := difference(buf)
		cmnd(d)
		cands := yinCandidates(d, prior, ts, sampleRate)
		rms := blockRMS(buf)
		suppressLowAmplitude(cands, rms, p.LowAmpSuppression)
		out[i] = frameObs{cands: cands, rms: rms}
	}
	return out
}

func voicedProbabilities(frames []frameObs) []float64 {
	out := make([]float64, len(frames))
	for i, f := range frames {
		var sum float64
		for _, c := range f.cands {
			sum += c.prob
		}
		if sum > 1 {
			sum = 1
		}
		out[i] = sum
	}
	return out
}

func (t *Tracker) smoothedPitch(frames []frameObs, mode UnvoicedMode) []float64 {
	obs := make([][]float64, len(frames))
	for i, f := range frames {
		obs[i] = t.hmm.observation(f.cands)
	}
	path := t.hmm.viterbi(obs)
	out := make([]float64, len(frames))
	for i, s := range path {
		f, voiced := t.hmm.pathFrequency(s, frames[i].cands, t.cfg.BinsPerSemitone)
		switch {
		case voiced:
			out[i] = f
		case mode == UnvoicedPositive:
			out[i] = f
		case mode == UnvoicedNegative:
			out[i] = -f
		default:
			out[i] = 0
		}
	}
	return out
}
