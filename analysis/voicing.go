package analysis

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/cwbudde/notetrack/dsp"
	"github.com/cwbudde/notetrack/internal/logging"
	"github.com/cwbudde/notetrack/pyin"
)

// VoicingOffsetConfig holds the constants of the voicing-based offset
// detector used for isolated single-note recordings.
type VoicingOffsetConfig struct {
	Hop         int         `json:"hop"`
	FrameLength int         `json:"frame_length"`
	StartFrame  int         `json:"start_frame"`
	Threshold   float64     `json:"threshold"`
	VoicedFloor float64     `json:"voiced_floor"`
	Params      pyin.Params `json:"params"`
}

func DefaultVoicingOffsetConfig() VoicingOffsetConfig {
	return VoicingOffsetConfig{
		Hop:         256,
		FrameLength: 2048,
		StartFrame:  10,
		Threshold:   8.5,
		VoicedFloor: 1e-12,
		Params:      pyin.DefaultParams(),
	}
}

func (c *VoicingOffsetConfig) Validate() error {
	if c.Hop < 1 || c.FrameLength < 1 {
		return fmt.Errorf("hop and frame length must be positive")
	}
	if c.StartFrame < 0 {
		return fmt.Errorf("start frame must be >= 0")
	}
	if c.VoicedFloor <= 0 {
		return fmt.Errorf("voiced floor must be > 0")
	}
	return c.Params.Validate()
}

// VoicingOffsetDetector ends a note where -ln(rms*voicedProb) first reaches
// Threshold, scanning from StartFrame.
type VoicingOffsetDetector struct {
	Config   VoicingOffsetConfig
	Analyzer pyin.Analyzer
	Logger   *zap.Logger
}

func NewVoicingOffsetDetector(cfg VoicingOffsetConfig, a pyin.Analyzer, logger *zap.Logger) (*VoicingOffsetDetector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("voicing offset config: %w", err)
	}
	if a == nil {
		a = pyin.NewDefaultTracker()
	}
	return &VoicingOffsetDetector{Config: cfg, Analyzer: a, Logger: logging.OrNop(logger)}, nil
}

func (d *VoicingOffsetDetector) Detect(seg []float64, sampleRate int, start float64) (OffsetResult, error) {
	cfg := d.Config
	if sampleRate <= 0 {
		return OffsetResult{}, fmt.Errorf("%w: %d", ErrInvalidSampleRate, sampleRate)
	}
	if len(seg) == 0 {
		return OffsetResult{}, ErrEmptySegment
	}

	req := pyin.Request{Samples: seg, SampleRate: sampleRate, Output: pyin.OutputVoicedProb, Params: cfg.Params}
	vp, err := d.Analyzer.Analyze(req)
	if err != nil {
		return OffsetResult{}, fmt.Errorf("%w: voiced prob: %v", ErrAnalyzer, err)
	}
	req.Output = pyin.OutputSmoothedPitchTrack
	pt, err := d.Analyzer.Analyze(req)
	if err != nil {
		return OffsetResult{}, fmt.Errorf("%w: pitch track: %v", ErrAnalyzer, err)
	}

	score := VoicingOffsetScore(vp.Values, dsp.RMS(seg, cfg.FrameLength, cfg.Hop, true), cfg.VoicedFloor)
	frame := cfg.StartFrame
	for frame < len(score) && score[frame] < cfg.Threshold {
		frame++
	}
	outcome := OutcomeVoicingDrop
	if frame >= len(score) {
		outcome = OutcomeSegmentEnd
	}

	res := OffsetResult{
		Time:    start + dsp.FramesToTime(frame, cfg.Hop, sampleRate),
		Frame:   frame,
		Outcome: outcome,
		Pitch:   PitchTrack{Step: pt.Step, Values: head(pt.Values, frame)},
	}
	logging.OrNop(d.Logger).Debug("voicing offset detected",
		zap.Float64("start", start),
		zap.Float64("offset", res.Time),
		zap.Int("frame", frame),
		zap.Stringer("outcome", outcome),
	)
	return res, nil
}

// VoicingOffsetScore returns -ln(rms*(vp+floor)) over the common length of
// vp and rms. Larger values mean quieter or less voiced frames.
func VoicingOffsetScore(vp, rms []float64, floor float64) []float64 {
	n := min(len(vp), len(rms))
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = -math.Log(rms[i] * (vp[i] + floor))
	}
	return out
}
