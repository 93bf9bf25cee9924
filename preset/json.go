// Package preset loads JSON parameter presets on top of the built-in
// analyzer and heuristic defaults.
package preset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cwbudde/notetrack/analysis"
	"github.com/cwbudde/notetrack/pyin"
)

// Settings is the full parameter set used by the commands.
type Settings struct {
	Pyin    pyin.Params
	Offset  analysis.OffsetConfig
	Voicing analysis.VoicingOffsetConfig
	// PlotDir receives offset diagnostics plots when non-empty.
	PlotDir string
}

func DefaultSettings() *Settings {
	return &Settings{
		Pyin:    pyin.DefaultParams(),
		Offset:  analysis.DefaultOffsetConfig(),
		Voicing: analysis.DefaultVoicingOffsetConfig(),
	}
}

// File is the JSON schema for presets. Absent fields keep their defaults.
type File struct {
	Pyin    *PyinSetting    `json:"pyin"`
	Offset  *OffsetSetting  `json:"offset"`
	Voicing *VoicingSetting `json:"voicing"`
	PlotDir string          `json:"plot_dir"`
}

// PyinSetting overrides analyzer parameters for every command.
type PyinSetting struct {
	ThresholdDistribution *int     `json:"threshdistr"`
	LowAmpSuppression     *float64 `json:"lowampsuppression"`
	OutputUnvoiced        *int     `json:"outputunvoiced"`
	PreciseTime           *bool    `json:"precisetime"`
	PruneThreshold        *float64 `json:"prunethresh"`
	OnsetSensitivity      *float64 `json:"onsetsensitivity"`
}

type OffsetSetting struct {
	MaxSegmentSeconds *float64 `json:"max_segment_seconds"`
	HarmonicOnly      *bool    `json:"harmonic_only"`
	PeakThreshold     *float64 `json:"peak_threshold"`
	MinOffsetTime     *float64 `json:"min_offset_time"`
	SilenceGrace      *int     `json:"silence_grace"`
	SilenceFloor      *float64 `json:"silence_floor"`
	Delta             *float64 `json:"delta"`
	Wait              *int     `json:"wait"`
}

type VoicingSetting struct {
	StartFrame *int     `json:"start_frame"`
	Threshold  *float64 `json:"threshold"`
}

// LoadJSON loads a preset file and applies it on top of DefaultSettings.
func LoadJSON(path string) (*Settings, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f File
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("preset %s: %w", path, err)
	}

	s := DefaultSettings()
	if err := ApplyFile(s, &f); err != nil {
		return nil, fmt.Errorf("preset %s: %w", path, err)
	}

	if s.PlotDir != "" && !filepath.IsAbs(s.PlotDir) {
		base := filepath.Dir(path)
		s.PlotDir = filepath.Clean(filepath.Join(base, s.PlotDir))
	}
	return s, nil
}

// ApplyFile applies a parsed preset onto dst and validates the result.
func ApplyFile(dst *Settings, f *File) error {
	if dst == nil {
		return fmt.Errorf("nil destination settings")
	}
	if f == nil {
		return nil
	}

	if f.Pyin != nil {
		for _, p := range []*pyin.Params{&dst.Pyin, &dst.Offset.Params, &dst.Voicing.Params} {
			applyPyin(p, f.Pyin)
		}
	}
	if o := f.Offset; o != nil {
		if o.MaxSegmentSeconds != nil {
			dst.Offset.MaxSegmentSeconds = *o.MaxSegmentSeconds
		}
		if o.HarmonicOnly != nil {
			dst.Offset.HarmonicOnly = *o.HarmonicOnly
		}
		if o.PeakThreshold != nil {
			dst.Offset.PeakThreshold = *o.PeakThreshold
		}
		if o.MinOffsetTime != nil {
			dst.Offset.MinOffsetTime = *o.MinOffsetTime
		}
		if o.SilenceGrace != nil {
			dst.Offset.SilenceGrace = *o.SilenceGrace
		}
		if o.SilenceFloor != nil {
			dst.Offset.SilenceFloor = *o.SilenceFloor
		}
		if o.Delta != nil {
			dst.Offset.PeakPick.Delta = *o.Delta
		}
		if o.Wait != nil {
			dst.Offset.PeakPick.Wait = *o.Wait
		}
	}
	if v := f.Voicing; v != nil {
		if v.StartFrame != nil {
			dst.Voicing.StartFrame = *v.StartFrame
		}
		if v.Threshold != nil {
			dst.Voicing.Threshold = *v.Threshold
		}
	}
	if f.PlotDir != "" {
		dst.PlotDir = strings.TrimSpace(f.PlotDir)
	}

	if err := dst.Pyin.Validate(); err != nil {
		return fmt.Errorf("pyin: %w", err)
	}
	if err := dst.Offset.Validate(); err != nil {
		return fmt.Errorf("offset: %w", err)
	}
	if err := dst.Voicing.Validate(); err != nil {
		return fmt.Errorf("voicing: %w", err)
	}
	return nil
}

func applyPyin(dst *pyin.Params, s *PyinSetting) {
	if s.ThresholdDistribution != nil {
		dst.ThresholdDistribution = *s.ThresholdDistribution
	}
	if s.LowAmpSuppression != nil {
		dst.LowAmpSuppression = *s.LowAmpSuppression
	}
	if s.OutputUnvoiced != nil {
		dst.OutputUnvoiced = pyin.UnvoicedMode(*s.OutputUnvoiced)
	}
	if s.PreciseTime != nil {
		dst.PreciseTime = *s.PreciseTime
	}
	if s.PruneThreshold != nil {
		dst.PruneThreshold = *s.PruneThreshold
	}
	if s.OnsetSensitivity != nil {
		dst.OnsetSensitivity = *s.OnsetSensitivity
	}
}
