package preset

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/cwbudde/notetrack/pyin"
)

func writePreset(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "preset.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write preset: %v", err)
	}
	return path
}

func TestLoadJSONAppliesOverrides(t *testing.T) {
	path := writePreset(t, `{
  "pyin": {"threshdistr": 4, "lowampsuppression": 0.1},
  "offset": {"peak_threshold": 3.5, "min_offset_time": 0.08, "harmonic_only": false, "wait": 6},
  "voicing": {"threshold": 9},
  "plot_dir": "plots"
}`)

	s, err := LoadJSON(path)
	if err != nil {
		t.Fatalf("LoadJSON: %v", err)
	}
	for name, p := range map[string]pyin.Params{"pyin": s.Pyin, "offset": s.Offset.Params, "voicing": s.Voicing.Params} {
		if p.ThresholdDistribution != 4 || p.LowAmpSuppression != 0.1 {
			t.Fatalf("%s params not overridden: %+v", name, p)
		}
		if p.PruneThreshold != 0.05 {
			t.Fatalf("%s prunethresh changed: %f", name, p.PruneThreshold)
		}
	}
	if s.Offset.PeakThreshold != 3.5 || s.Offset.MinOffsetTime != 0.08 || s.Offset.HarmonicOnly {
		t.Fatalf("offset fields mismatch: %+v", s.Offset)
	}
	if s.Offset.PeakPick.Wait != 6 || s.Offset.PeakPick.Delta != 0.5 {
		t.Fatalf("peak pick mismatch: %+v", s.Offset.PeakPick)
	}
	if s.Voicing.Threshold != 9 || s.Voicing.StartFrame != 10 {
		t.Fatalf("voicing mismatch: %+v", s.Voicing)
	}
	if want := filepath.Join(filepath.Dir(path), "plots"); s.PlotDir != want {
		t.Fatalf("plot dir = %q, want %q", s.PlotDir, want)
	}
}

func TestLoadJSONEmptyKeepsDefaults(t *testing.T) {
	s, err := LoadJSON(writePreset(t, `{}`))
	if err != nil {
		t.Fatalf("LoadJSON: %v", err)
	}
	if s.Pyin != pyin.DefaultParams() || s.Offset.PeakThreshold != 2.0 || s.PlotDir != "" {
		t.Fatalf("defaults changed: %+v", s)
	}
}

func TestLoadJSONRejectsInvalidRanges(t *testing.T) {
	if _, err := LoadJSON(writePreset(t, `{"pyin": {"threshdistr": 9}}`)); !errors.Is(err, pyin.ErrInvalidParams) {
		t.Fatalf("expected invalid params, got %v", err)
	}
	if _, err := LoadJSON(writePreset(t, `{"offset": {"max_segment_seconds": 0}}`)); err == nil {
		t.Fatalf("expected error for zero max segment")
	}
	if _, err := LoadJSON(writePreset(t, `{"pyin": `)); err == nil {
		t.Fatalf("expected error for truncated json")
	}
	if _, err := LoadJSON(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
