package render

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-approx"

	"github.com/cwbudde/notetrack/dsp"
	"github.com/cwbudde/notetrack/jams"
	"github.com/cwbudde/notetrack/midiout"
)

// SynthConfig controls the plucked-string sonifier.
type SynthConfig struct {
	SampleRate int
	// PluckPosition is the fractional string position of the excitation.
	PluckPosition float64
	// ReleaseTime fades a voice out after its note ends, in seconds.
	ReleaseTime float64
	// Cutoff of the output lowpass in Hz.
	Cutoff float64
	// Peak is the output peak level after normalisation.
	Peak float64
	// BendRange is the pitch-bend range in semitones for full-scale bend.
	BendRange float64
	// Body is the guitar body response; nil leaves the strings dry.
	Body *BodyConfig
}

func DefaultSynthConfig() SynthConfig {
	body := DefaultBodyConfig()
	return SynthConfig{
		SampleRate:    44100,
		PluckPosition: 0.18,
		ReleaseTime:   0.08,
		Cutoff:        6000,
		Peak:          0.9,
		BendRange:     2,
		Body:          &body,
	}
}

func (c *SynthConfig) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be > 0")
	}
	if c.ReleaseTime <= 0 || c.Cutoff <= 0 || c.Cutoff >= float64(c.SampleRate)/2 {
		return fmt.Errorf("release time and cutoff out of range")
	}
	if c.Peak <= 0 || c.Peak > 1 {
		return fmt.Errorf("peak must be in (0,1]")
	}
	if c.Body != nil {
		return c.Body.Validate()
	}
	return nil
}

// Synthesize renders every event of every part as a plucked string and
// returns the mixed signal after the body, lowpass and peak normalisation.
func Synthesize(parts []midiout.Part, cfg SynthConfig) ([]float64, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	sr := float64(cfg.SampleRate)
	var end float64
	for _, p := range parts {
		for _, e := range p.Events {
			end = math.Max(end, e.End+cfg.ReleaseTime)
		}
	}
	out := make([]float64, int(math.Ceil(end*sr)))

	for _, p := range parts {
		for _, e := range p.Events {
			renderEvent(out, e, cfg)
		}
	}

	if cfg.Body != nil {
		ir, err := BodyIR(*cfg.Body, cfg.SampleRate)
		if err != nil {
			return nil, err
		}
		if err := convolveBody(out, ir); err != nil {
			return nil, err
		}
	}

	lp := dsp.NewLowpass(cfg.Cutoff, sr, 0.707)
	lp.ProcessBlock(out)
	normalize(out, cfg.Peak)
	return out, nil
}

func renderEvent(out []float64, e midiout.Event, cfg SynthConfig) {
	sr := float64(cfg.SampleRate)
	midiNum := float64(e.Key)
	if e.HasBend {
		midiNum += float64(e.Bend) / 8192 * cfg.BendRange
	}
	f0 := dsp.MIDIToHz(midiNum)
	if f0 <= 0 || f0 >= sr/4 {
		return
	}
	str := newPluckedString(cfg.SampleRate, f0)
	str.pluck(float64(e.Velocity)/127, cfg.PluckPosition)

	start := int(e.Start * sr)
	off := int(e.End * sr)
	stop := min(off+int(cfg.ReleaseTime*sr), len(out))
	// time constant so the fade reaches about -60 dB at the end of release
	tau := float32(cfg.ReleaseTime / 6.9)
	for i := max(start, 0); i < stop; i++ {
		v := str.process()
		if i >= off {
			if i == off {
				str.damp(true)
			}
			age := float32(float64(i-off) / sr)
			v *= float64(approx.FastExp(-age / tau))
		}
		out[i] += v
	}
}

// SonifyJAMS renders the note annotations of f.
func SonifyJAMS(f *jams.File, opt midiout.JAMSOptions, cfg SynthConfig) ([]float64, error) {
	parts, err := midiout.PartsFromJAMS(f, opt)
	if err != nil {
		return nil, err
	}
	return Synthesize(parts, cfg)
}
