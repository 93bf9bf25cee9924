package analysis

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/cwbudde/notetrack/dsp"
	"github.com/cwbudde/notetrack/internal/logging"
	"github.com/cwbudde/notetrack/pyin"
)

// OffsetConfig holds the constants of the offset heuristic.
type OffsetConfig struct {
	// MaxSegmentSeconds caps how much of a segment is analyzed.
	MaxSegmentSeconds float64 `json:"max_segment_seconds"`
	// HarmonicOnly analyzes the harmonic part of a median-filter HPSS.
	HarmonicOnly bool           `json:"harmonic_only"`
	HPSS         dsp.HPSSConfig `json:"hpss"`
	FrameLength  int            `json:"frame_length"`
	Strength     StrengthConfig `json:"strength"`
	PeakPick     PeakPickConfig `json:"peak_pick"`
	RMSFloor     float64        `json:"rms_floor"`
	// PeakThreshold is the minimum likelihood of a usable peak.
	PeakThreshold float64 `json:"peak_threshold"`
	// MinOffsetTime rejects peaks caused by the onset transient.
	MinOffsetTime float64     `json:"min_offset_time"`
	SilenceGrace  int         `json:"silence_grace"`
	SilenceFloor  float64     `json:"silence_floor"`
	Params        pyin.Params `json:"params"`
}

func DefaultOffsetConfig() OffsetConfig {
	return OffsetConfig{
		MaxSegmentSeconds: 4.0,
		HarmonicOnly:      true,
		HPSS:              dsp.DefaultHPSSConfig(),
		FrameLength:       2048,
		Strength:          DefaultStrengthConfig(),
		PeakPick:          DefaultPeakPickConfig(),
		RMSFloor:          1e-15,
		PeakThreshold:     2.0,
		MinOffsetTime:     0.06,
		SilenceGrace:      5,
		SilenceFloor:      1e-14,
		Params:            pyin.DefaultParams(),
	}
}

func (c *OffsetConfig) Validate() error {
	if c.MaxSegmentSeconds <= 0 {
		return fmt.Errorf("max segment seconds must be > 0")
	}
	if c.FrameLength < 1 || c.Strength.Hop < 1 || c.Strength.NFFT < 2 {
		return fmt.Errorf("frame length, hop and n_fft must be positive")
	}
	if c.Strength.NMels < 1 || c.Strength.Lag < 1 {
		return fmt.Errorf("n_mels and lag must be >= 1")
	}
	if c.PeakPick.PreMax < 0 || c.PeakPick.PostMax < 1 || c.PeakPick.PreAvg < 0 || c.PeakPick.PostAvg < 1 {
		return fmt.Errorf("peak pick windows out of range")
	}
	if c.PeakPick.Wait < 0 {
		return fmt.Errorf("peak pick wait must be >= 0")
	}
	if c.RMSFloor <= 0 {
		return fmt.Errorf("rms floor must be > 0")
	}
	if c.MinOffsetTime < 0 || c.SilenceGrace < 0 {
		return fmt.Errorf("min offset time and silence grace must be >= 0")
	}
	if c.HarmonicOnly && (c.HPSS.Kernel < 1 || c.HPSS.Hop < 1 || c.HPSS.NFFT < 2) {
		return fmt.Errorf("hpss config out of range")
	}
	return c.Params.Validate()
}

// OffsetTrace carries the intermediate signals of one Detect call.
type OffsetTrace struct {
	Start      float64
	SampleRate int
	Hop        int
	Segment    []float64
	RMS        []float64
	Strength   []float64
	Decay      []float64
	Likelihood []float64
	Peaks      []int
	Candidates []int
	Decision   Decision
}

// FrameTime returns the segment-relative time of frame f.
func (t OffsetTrace) FrameTime(f int) float64 {
	return dsp.FramesToTime(f, t.Hop, t.SampleRate)
}

// OffsetResult is where a note ends and the pitch track up to that point.
type OffsetResult struct {
	// Time is absolute: segment start plus the offset frame time.
	Time    float64
	Frame   int
	Outcome Outcome
	Pitch   PitchTrack
}

// OffsetDetector finds note offsets from an energy-decrease envelope and the
// log-energy decay rate.
type OffsetDetector struct {
	Config   OffsetConfig
	Analyzer pyin.Analyzer
	Logger   *zap.Logger
	// Diagnostics, when set, receives the signals behind every decision.
	Diagnostics func(OffsetTrace)
}

// NewOffsetDetector validates cfg. A nil analyzer selects the default pYIN
// tracker.
func NewOffsetDetector(cfg OffsetConfig, a pyin.Analyzer, logger *zap.Logger) (*OffsetDetector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("offset config: %w", err)
	}
	if a == nil {
		a = pyin.NewDefaultTracker()
	}
	return &OffsetDetector{Config: cfg, Analyzer: a, Logger: logging.OrNop(logger)}, nil
}

// Detect locates the offset of the note starting at the beginning of seg.
// start is the absolute time of seg's first sample.
func (d *OffsetDetector) Detect(seg []float64, sampleRate int, start float64) (OffsetResult, error) {
	cfg := d.Config
	if sampleRate <= 0 {
		return OffsetResult{}, fmt.Errorf("%w: %d", ErrInvalidSampleRate, sampleRate)
	}
	if len(seg) == 0 {
		return OffsetResult{}, ErrEmptySegment
	}
	seg = TruncateSegment(seg, sampleRate, cfg.MaxSegmentSeconds)

	if cfg.HarmonicOnly {
		h, err := dsp.Harmonic(seg, cfg.HPSS)
		if err != nil {
			return OffsetResult{}, fmt.Errorf("harmonic separation: %w", err)
		}
		seg = h
	}

	resp, err := d.Analyzer.Analyze(pyin.Request{
		Samples:    seg,
		SampleRate: sampleRate,
		Output:     pyin.OutputSmoothedPitchTrack,
		Params:     cfg.Params,
	})
	if err != nil {
		return OffsetResult{}, fmt.Errorf("%w: %v", ErrAnalyzer, err)
	}

	hop := cfg.Strength.Hop
	rms := dsp.RMS(seg, cfg.FrameLength, hop, true)
	for i := range rms {
		rms[i] += cfg.RMSFloor
	}
	strength, err := OffsetStrength(seg, sampleRate, cfg.Strength)
	if err != nil {
		return OffsetResult{}, fmt.Errorf("offset strength: %w", err)
	}
	decay := DecayRate(rms)
	likelihood := OffsetLikelihood(strength, decay, rms)

	peaks := PeakPick(likelihood, cfg.PeakPick)
	var candidates []int
	for _, f := range peaks {
		if likelihood[f] > cfg.PeakThreshold && dsp.FramesToTime(f, hop, sampleRate) > cfg.MinOffsetTime {
			candidates = append(candidates, f)
		}
	}

	dec := Decide(candidates, rms, cfg.SilenceGrace, cfg.SilenceFloor)
	if minFrame := firstFrameAfter(cfg.MinOffsetTime, hop, sampleRate); dec.Frame < minFrame && minFrame < len(rms) {
		dec.Frame = minFrame
		dec.Clamped = true
	}

	if d.Diagnostics != nil {
		d.Diagnostics(OffsetTrace{
			Start:      start,
			SampleRate: sampleRate,
			Hop:        hop,
			Segment:    seg,
			RMS:        rms,
			Strength:   strength[:len(likelihood)],
			Decay:      decay[:len(likelihood)],
			Likelihood: likelihood,
			Peaks:      peaks,
			Candidates: candidates,
			Decision:   dec,
		})
	}

	res := OffsetResult{
		Time:    start + dsp.FramesToTime(dec.Frame, hop, sampleRate),
		Frame:   dec.Frame,
		Outcome: dec.Outcome,
		Pitch:   PitchTrack{Step: resp.Step, Values: head(resp.Values, dec.Frame)},
	}
	logging.OrNop(d.Logger).Debug("offset detected",
		zap.Float64("start", start),
		zap.Float64("offset", res.Time),
		zap.Int("frame", res.Frame),
		zap.Stringer("outcome", res.Outcome),
		zap.Bool("clamped", dec.Clamped),
		zap.Int("peaks", len(peaks)),
		zap.Int("candidates", len(candidates)),
	)
	return res, nil
}

// TruncateSegment returns the first maxSeconds of seg. Shorter segments are
// returned unchanged.
func TruncateSegment(seg []float64, sampleRate int, maxSeconds float64) []float64 {
	limit := int(float64(sampleRate) * maxSeconds)
	if len(seg) > limit {
		return seg[:limit]
	}
	return seg
}

// firstFrameAfter is the first frame whose time is strictly after t.
func firstFrameAfter(t float64, hop int, sampleRate int) int {
	f := 0
	for dsp.FramesToTime(f, hop, sampleRate) <= t {
		f++
	}
	return f
}

func head(values []float64, n int) []float64 {
	if n > len(values) {
		n = len(values)
	}
	if n < 0 {
		n = 0
	}
	out := make([]float64, n)
	copy(out, values[:n])
	return out
}
