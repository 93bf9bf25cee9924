package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/cwbudde/mayfly"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cwbudde/notetrack/analysis"
	"github.com/cwbudde/notetrack/annotate"
	"github.com/cwbudde/notetrack/internal/audioio"
	"github.com/cwbudde/notetrack/jams"
	"github.com/cwbudde/notetrack/preset"
	"github.com/cwbudde/notetrack/pyin"
)

var (
	tuneReport    string
	tuneOutPreset string
	tuneMaxIters  int
	tunePop       int
	tuneSeed      int64
	tuneTolerance float64
)

func init() {
	f := tuneCmd.Flags()
	f.StringVar(&tuneReport, "report", "tune-report.json", "path of the JSON report")
	f.StringVar(&tuneOutPreset, "output-preset", "", "optional path of a preset JSON with the best offset settings")
	f.IntVar(&tuneMaxIters, "max-iters", 20, "mayfly iterations")
	f.IntVar(&tunePop, "pop", 8, "male and female population size")
	f.Int64Var(&tuneSeed, "seed", 1, "random seed")
	f.Float64Var(&tuneTolerance, "tolerance", analysis.DefaultOnsetTolerance, "onset matching tolerance in seconds")
	rootCmd.AddCommand(tuneCmd)
}

var tuneCmd = &cobra.Command{
	Use:   "tune <in.wav> <onsets.jams> <reference.jams>",
	Short: "Fit the offset heuristic constants against reference note intervals",
	Long: `Runs a mayfly search over the peak threshold, peak-picking delta and wait,
minimum offset time and silence grace of the offset heuristic. Each candidate
annotates the stem at the given onsets and is scored against the note
intervals of the reference annotation.`,
	Args: exactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		if tuneMaxIters < 1 || tunePop < 2 {
			return fmt.Errorf("%w: --max-iters must be >= 1 and --pop >= 2", errUsage)
		}
		of, err := jams.Load(args[1])
		if err != nil {
			return err
		}
		onsets, err := of.Onsets()
		if err != nil {
			return err
		}
		rf, err := jams.Load(args[2])
		if err != nil {
			return err
		}
		ref, err := referenceIntervals(rf)
		if err != nil {
			return err
		}
		buf, err := loadAudio(args[0])
		if err != nil {
			return err
		}

		rep, best, err := runTune(buf, onsets, ref)
		if err != nil {
			return err
		}
		rep.AudioPath, rep.OnsetsPath, rep.ReferencePath = args[0], args[1], args[2]
		if err := writeJSON(tuneReport, rep); err != nil {
			return err
		}
		if tuneOutPreset != "" {
			if err := writeJSON(tuneOutPreset, offsetPreset(best)); err != nil {
				return err
			}
		}
		logger.Info("tuning done",
			zap.Float64("baseline_score", rep.BaselineScore),
			zap.Float64("best_score", rep.BestScore),
			zap.Int("evaluations", rep.Evaluations),
			zap.String("report", tuneReport))
		return nil
	},
}

type knobDef struct {
	Name  string
	Min   float64
	Max   float64
	IsInt bool
}

var tuneKnobs = []knobDef{
	{Name: "peak_threshold", Min: 0.5, Max: 6},
	{Name: "delta", Min: 0.05, Max: 2},
	{Name: "wait", Min: 1, Max: 20, IsInt: true},
	{Name: "min_offset_time", Min: 0.02, Max: 0.2},
	{Name: "silence_grace", Min: 1, Max: 15, IsInt: true},
}

// fromNormalized maps a position in [0,1]^n onto the knob ranges.
func fromNormalized(pos []float64, defs []knobDef) []float64 {
	vals := make([]float64, len(defs))
	for i := range defs {
		x := 0.0
		if i < len(pos) {
			x = math.Min(math.Max(pos[i], 0), 1)
		}
		v := defs[i].Min + x*(defs[i].Max-defs[i].Min)
		if defs[i].IsInt {
			v = math.Round(v)
		}
		vals[i] = v
	}
	return vals
}

func applyKnobs(cfg analysis.OffsetConfig, defs []knobDef, vals []float64) analysis.OffsetConfig {
	for i, d := range defs {
		switch d.Name {
		case "peak_threshold":
			cfg.PeakThreshold = vals[i]
		case "delta":
			cfg.PeakPick.Delta = vals[i]
		case "wait":
			cfg.PeakPick.Wait = int(vals[i])
		case "min_offset_time":
			cfg.MinOffsetTime = vals[i]
		case "silence_grace":
			cfg.SilenceGrace = int(vals[i])
		}
	}
	return cfg
}

func knobMap(cfg analysis.OffsetConfig) map[string]float64 {
	return map[string]float64{
		"peak_threshold":  cfg.PeakThreshold,
		"delta":           cfg.PeakPick.Delta,
		"wait":            float64(cfg.PeakPick.Wait),
		"min_offset_time": cfg.MinOffsetTime,
		"silence_grace":   float64(cfg.SilenceGrace),
	}
}

// referenceIntervals collects the note intervals of every note annotation.
func referenceIntervals(f *jams.File) ([]analysis.Interval, error) {
	var out []analysis.Interval
	for _, anno := range f.NoteAnnotations() {
		notes, err := anno.Notes()
		if err != nil {
			return nil, err
		}
		for _, n := range notes {
			out = append(out, analysis.Interval{Onset: n.Time, Offset: n.Time + n.Duration})
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: reference has no note annotations", jams.ErrInvalidAnnotation)
	}
	return out, nil
}

type tuneResult struct {
	AudioPath      string                   `json:"audio_path"`
	OnsetsPath     string                   `json:"onsets_path"`
	ReferencePath  string                   `json:"reference_path"`
	SampleRate     int                      `json:"sample_rate"`
	Segments       int                      `json:"segments"`
	Evaluations    int                      `json:"evaluations"`
	DurationSec    float64                  `json:"elapsed_seconds"`
	Seed           int64                    `json:"seed"`
	BaselineScore  float64                  `json:"baseline_score"`
	BaselineKnobs  map[string]float64       `json:"baseline_knobs"`
	BestScore      float64                  `json:"best_score"`
	BestSimilarity float64                  `json:"best_similarity"`
	BestMetrics    analysis.IntervalMetrics `json:"best_metrics"`
	BestKnobs      map[string]float64       `json:"best_knobs"`
}

type tuneState struct {
	mu      sync.Mutex
	evals   int
	best    analysis.OffsetConfig
	metrics analysis.IntervalMetrics
}

func runTune(buf audioio.Buffer, onsets []float64, ref []analysis.Interval) (tuneResult, analysis.OffsetConfig, error) {
	started := time.Now()
	analyzer := newCachedAnalyzer(pyin.NewDefaultTracker())
	discard := annotate.NewCSVSink(io.Discard, io.Discard)

	evaluate := func(cfg analysis.OffsetConfig) (analysis.IntervalMetrics, error) {
		s := *settings
		s.Offset = cfg
		s.PlotDir = ""
		sum, err := annotate.New(&s, analyzer, nil).Stem(buf, onsets, discard)
		if err != nil {
			return analysis.IntervalMetrics{}, err
		}
		return analysis.CompareIntervals(ref, sum.Intervals, tuneTolerance), nil
	}

	base := settings.Offset
	baseM, err := evaluate(base)
	if err != nil {
		return tuneResult{}, base, err
	}
	state := &tuneState{evals: 1, best: base, metrics: baseM}
	logger.Info("baseline", zap.Float64("score", baseM.Score), zap.Int("matched", baseM.Matched))

	mcfg := mayfly.NewDefaultConfig()
	mcfg.ProblemSize = len(tuneKnobs)
	mcfg.LowerBound = 0.0
	mcfg.UpperBound = 1.0
	mcfg.MaxIterations = tuneMaxIters
	mcfg.NPop = tunePop
	mcfg.NPopF = tunePop
	mcfg.NC = 2 * tunePop
	mcfg.NM = max(1, int(math.Round(0.05*float64(tunePop))))
	mcfg.Rand = rand.New(rand.NewSource(tuneSeed))
	mcfg.ObjectiveFunc = func(pos []float64) float64 {
		cfg := applyKnobs(base, tuneKnobs, fromNormalized(pos, tuneKnobs))
		if err := cfg.Validate(); err != nil {
			return 2
		}
		m, err := evaluate(cfg)

		state.mu.Lock()
		defer state.mu.Unlock()
		state.evals++
		if err != nil {
			logger.Debug("candidate failed", zap.Error(err))
			return state.metrics.Score + 1
		}
		if m.Score < state.metrics.Score {
			state.best = cfg
			state.metrics = m
			logger.Info("improved",
				zap.Int("eval", state.evals),
				zap.Float64("score", m.Score),
				zap.Any("knobs", knobMap(cfg)))
		} else if state.evals%20 == 0 {
			logger.Debug("progress", zap.Int("eval", state.evals), zap.Float64("best", state.metrics.Score))
		}
		return m.Score
	}
	if _, err := runMayfly(mcfg); err != nil {
		logger.Warn("mayfly stopped", zap.Error(err))
	}

	state.mu.Lock()
	defer state.mu.Unlock()
	return tuneResult{
		SampleRate:     buf.SampleRate,
		Segments:       len(onsets),
		Evaluations:    state.evals,
		DurationSec:    time.Since(started).Seconds(),
		Seed:           tuneSeed,
		BaselineScore:  baseM.Score,
		BaselineKnobs:  knobMap(base),
		BestScore:      state.metrics.Score,
		BestSimilarity: state.metrics.Similarity,
		BestMetrics:    state.metrics,
		BestKnobs:      knobMap(state.best),
	}, state.best, nil
}

func runMayfly(cfg *mayfly.Config) (_ *mayfly.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("mayfly panic: %v", r)
		}
	}()
	return mayfly.Optimize(cfg)
}

func offsetPreset(cfg analysis.OffsetConfig) preset.File {
	return preset.File{Offset: &preset.OffsetSetting{
		PeakThreshold: &cfg.PeakThreshold,
		MinOffsetTime: &cfg.MinOffsetTime,
		SilenceGrace:  &cfg.SilenceGrace,
		Delta:         &cfg.PeakPick.Delta,
		Wait:          &cfg.PeakPick.Wait,
	}}
}

func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// cachedAnalyzer memoizes responses for repeated identical requests. The
// tuned knobs never change the analyzed signal, so candidates after the
// baseline reuse its pitch tracks.
type cachedAnalyzer struct {
	next pyin.Analyzer

	mu    sync.Mutex
	cache map[analyzerKey]*pyin.Response
}

type analyzerKey struct {
	n, sampleRate int
	output        pyin.Output
	params        pyin.Params
	first, mid    float64
	last          float64
}

func newCachedAnalyzer(next pyin.Analyzer) *cachedAnalyzer {
	return &cachedAnalyzer{next: next, cache: make(map[analyzerKey]*pyin.Response)}
}

func (c *cachedAnalyzer) Analyze(req pyin.Request) (*pyin.Response, error) {
	k := analyzerKey{n: len(req.Samples), sampleRate: req.SampleRate, output: req.Output, params: req.Params}
	if n := len(req.Samples); n > 0 {
		k.first, k.mid, k.last = req.Samples[0], req.Samples[n/2], req.Samples[n-1]
	}
	c.mu.Lock()
	resp, ok := c.cache[k]
	c.mu.Unlock()
	if ok {
		return resp, nil
	}
	resp, err := c.next.Analyze(req)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.cache[k] = resp
	c.mu.Unlock()
	return resp, nil
}
