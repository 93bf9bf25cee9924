package annotate

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/cwbudde/notetrack/analysis"
	"github.com/cwbudde/notetrack/internal/audioio"
	"github.com/cwbudde/notetrack/internal/logging"
	"github.com/cwbudde/notetrack/preset"
	"github.com/cwbudde/notetrack/pyin"
)

// Annotator runs the pipelines with one settings set and analyzer.
type Annotator struct {
	Settings *preset.Settings
	Analyzer pyin.Analyzer
	Logger   *zap.Logger
	// Diagnostics is passed to the offset detector of Stem.
	Diagnostics func(analysis.OffsetTrace)
}

// New returns an Annotator with the default tracker when a is nil and the
// default settings when s is nil.
func New(s *preset.Settings, a pyin.Analyzer, logger *zap.Logger) *Annotator {
	if s == nil {
		s = preset.DefaultSettings()
	}
	if a == nil {
		a = pyin.NewDefaultTracker()
	}
	return &Annotator{Settings: s, Analyzer: a, Logger: logging.OrNop(logger)}
}

func (a *Annotator) analyze(buf audioio.Buffer, out pyin.Output, p pyin.Params) (*pyin.Response, error) {
	resp, err := a.Analyzer.Analyze(pyin.Request{
		Samples:    buf.Samples,
		SampleRate: buf.SampleRate,
		Output:     out,
		Params:     p,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", analysis.ErrAnalyzer, err)
	}
	return resp, nil
}

// Notes returns the analyzer's note events for the whole buffer.
func (a *Annotator) Notes(buf audioio.Buffer) ([]pyin.Note, error) {
	resp, err := a.analyze(buf, pyin.OutputNotes, a.Settings.Pyin)
	if err != nil {
		return nil, err
	}
	a.Logger.Info("notes analyzed", zap.Int("notes", len(resp.Notes)))
	return resp.Notes, nil
}

// Mono trims an isolated note recording to its voiced frames and writes the
// voiced pitch rows plus one interval row. A track without voiced frames is
// dropped: nothing is written and the returned note is empty.
func (a *Annotator) Mono(buf audioio.Buffer, start float64, sink *CSVSink) (analysis.VoicedNote, error) {
	p := a.Settings.Pyin
	p.OutputUnvoiced = pyin.UnvoicedNegative
	resp, err := a.analyze(buf, pyin.OutputSmoothedPitchTrack, p)
	if err != nil {
		return analysis.VoicedNote{}, err
	}
	note := analysis.TrimTrack(analysis.PitchTrack{Step: resp.Step, Values: resp.Values}, start)
	if note.Empty() {
		a.Logger.Info("trimmed pitch track is too short, dropped note", zap.Float64("start", start))
		return note, nil
	}
	for i, f := range note.Values {
		if err := sink.WritePitch(note.Time(i), f); err != nil {
			return note, err
		}
	}
	iv := note.Interval()
	if err := sink.WriteInterval(iv); err != nil {
		return note, err
	}
	a.Logger.Debug("mono note", zap.Float64("onset", iv.Onset), zap.Float64("offset", iv.Offset), zap.Int("frames", len(note.Values)))
	return note, sink.Flush()
}

// Note finds the offset of a single-note recording from its voicing and
// writes the pitch rows up to the offset plus one interval row.
func (a *Annotator) Note(buf audioio.Buffer, start float64, sink *CSVSink) (analysis.OffsetResult, error) {
	d, err := analysis.NewVoicingOffsetDetector(a.Settings.Voicing, a.Analyzer, a.Logger)
	if err != nil {
		return analysis.OffsetResult{}, err
	}
	res, err := d.Detect(buf.Samples, buf.SampleRate, start)
	if err != nil {
		return res, err
	}
	for i, f := range res.Pitch.Values {
		if err := sink.WritePitch(start+res.Pitch.Time(i), f); err != nil {
			return res, err
		}
	}
	if err := sink.WriteInterval(analysis.Interval{Onset: start, Offset: res.Time}); err != nil {
		return res, err
	}
	return res, sink.Flush()
}

// StemSummary counts how each segment's offset was decided.
type StemSummary struct {
	Segments  int
	Outcomes  map[analysis.Outcome]int
	Intervals []analysis.Interval
}

// Stem segments a full track at the given onsets and runs the offset
// heuristic on each segment in order. Voiced pitch rows and one interval row
// per segment are written as segments complete.
func (a *Annotator) Stem(buf audioio.Buffer, onsets []float64, sink *CSVSink) (StemSummary, error) {
	sum := StemSummary{Outcomes: make(map[analysis.Outcome]int)}
	segs, err := analysis.SplitByOnsets(buf.Samples, buf.SampleRate, onsets)
	if err != nil {
		return sum, err
	}
	d, err := analysis.NewOffsetDetector(a.Settings.Offset, a.Analyzer, a.Logger)
	if err != nil {
		return sum, err
	}
	d.Diagnostics = a.Diagnostics

	for k, seg := range segs {
		if k%20 == 0 {
			a.Logger.Info("segment progress", zap.Int("segment", k), zap.Int("total", len(segs)))
		}
		res, err := d.Detect(seg.Samples, buf.SampleRate, seg.Start)
		if err != nil {
			return sum, fmt.Errorf("segment %d at %.3fs: %w", k, seg.Start, err)
		}
		for i, f := range res.Pitch.Values {
			if f <= 0 {
				continue
			}
			if err := sink.WritePitch(seg.Start+res.Pitch.Time(i), f); err != nil {
				return sum, err
			}
		}
		iv := analysis.Interval{Onset: seg.Start, Offset: res.Time}
		if err := sink.WriteInterval(iv); err != nil {
			return sum, err
		}
		if err := sink.Flush(); err != nil {
			return sum, err
		}
		sum.Segments++
		sum.Outcomes[res.Outcome]++
		sum.Intervals = append(sum.Intervals, iv)
	}
	return sum, nil
}
