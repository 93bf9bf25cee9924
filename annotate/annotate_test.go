package annotate

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/notetrack/analysis"
	"github.com/cwbudde/notetrack/internal/audioio"
	"github.com/cwbudde/notetrack/preset"
	"github.com/cwbudde/notetrack/pyin"
)

// scriptedAnalyzer returns fixed values, or a constant 440 Hz track sized
// to the request when values is nil.
type scriptedAnalyzer struct {
	step   float64
	values []float64
	notes  []pyin.Note
	err    error
	last   pyin.Request
}

func (s *scriptedAnalyzer) Analyze(req pyin.Request) (*pyin.Response, error) {
	s.last = req
	if s.err != nil {
		return nil, s.err
	}
	resp := &pyin.Response{Step: s.step, Values: s.values, Notes: s.notes}
	if resp.Values == nil {
		n := (len(req.Samples) + 255) / 256
		resp.Values = make([]float64, n)
		for i := range resp.Values {
			resp.Values[i] = 440
		}
	}
	return resp, nil
}

func TestCSVSinkRows(t *testing.T) {
	var pt, onoff bytes.Buffer
	sink := NewCSVSink(&pt, &onoff)
	require.NoError(t, sink.WritePitch(0.5, 440))
	require.NoError(t, sink.WritePitch(0.505, 221.25))
	require.NoError(t, sink.WriteInterval(analysis.Interval{Onset: 0.5, Offset: 1.25}))
	require.NoError(t, sink.Flush())

	assert.Equal(t, "0.5,440\n0.505,221.25\n", pt.String())
	assert.Equal(t, "0.5,1.25\n", onoff.String())
}

func TestMonoWritesTrimmedRows(t *testing.T) {
	fa := &scriptedAnalyzer{step: 0.01, values: []float64{-1, -1, 440, 440, 440, -1, -1}}
	a := New(nil, fa, nil)
	var pt, onoff bytes.Buffer

	note, err := a.Mono(audioio.Buffer{Samples: make([]float64, 1792), SampleRate: 44100}, 0, NewCSVSink(&pt, &onoff))
	require.NoError(t, err)
	assert.Equal(t, 2, note.Index)
	assert.Equal(t, pyin.UnvoicedNegative, fa.last.Params.OutputUnvoiced)
	assert.Equal(t, "0.02,440\n0.03,440\n0.04,440\n", pt.String())
	assert.Equal(t, "0.02,0.04\n", onoff.String())
}

func TestMonoDropsUnvoicedNote(t *testing.T) {
	fa := &scriptedAnalyzer{step: 0.01, values: []float64{-1, -1, -1}}
	var pt, onoff bytes.Buffer
	note, err := New(nil, fa, nil).Mono(audioio.Buffer{Samples: make([]float64, 512), SampleRate: 44100}, 1, NewCSVSink(&pt, &onoff))
	require.NoError(t, err)
	assert.True(t, note.Empty())
	assert.Empty(t, pt.String())
	assert.Empty(t, onoff.String())
}

func TestAnalyzerFailureIsWrapped(t *testing.T) {
	fa := &scriptedAnalyzer{err: errors.New("plugin crashed")}
	_, err := New(nil, fa, nil).Mono(audioio.Buffer{Samples: []float64{0}, SampleRate: 8000}, 0, NewCSVSink(&bytes.Buffer{}, &bytes.Buffer{}))
	assert.ErrorIs(t, err, analysis.ErrAnalyzer)
	_, err = New(nil, fa, nil).Notes(audioio.Buffer{Samples: []float64{0}, SampleRate: 8000})
	assert.ErrorIs(t, err, analysis.ErrAnalyzer)
}

func TestStemWritesOneIntervalPerSegment(t *testing.T) {
	sr := 8000
	s := preset.DefaultSettings()
	s.Offset.HarmonicOnly = false
	a := New(s, &scriptedAnalyzer{step: 256.0 / float64(sr)}, nil)
	var traces int
	a.Diagnostics = func(analysis.OffsetTrace) { traces++ }

	var pt, onoff bytes.Buffer
	sum, err := a.Stem(audioio.Buffer{Samples: make([]float64, 2*sr), SampleRate: sr}, []float64{0, 1}, NewCSVSink(&pt, &onoff))
	require.NoError(t, err)

	assert.Equal(t, 2, sum.Segments)
	assert.Equal(t, 2, traces)
	assert.Equal(t, 2, sum.Outcomes[analysis.OutcomeSilence])
	assert.Equal(t, "0,0.16\n1,1.16\n", onoff.String())
	assert.Len(t, strings.Split(strings.TrimSpace(pt.String()), "\n"), 10)
	assert.True(t, strings.HasPrefix(pt.String(), "0,440\n0.032,440\n"))
}

func TestStemRejectsUnsortedOnsets(t *testing.T) {
	a := New(nil, &scriptedAnalyzer{step: 0.01}, nil)
	_, err := a.Stem(audioio.Buffer{Samples: make([]float64, 100), SampleRate: 100}, []float64{0.5, 0.2}, NewCSVSink(&bytes.Buffer{}, &bytes.Buffer{}))
	assert.ErrorIs(t, err, analysis.ErrUnsortedOnsets)
}

func TestNoteUsesVoicingOffset(t *testing.T) {
	sr := 8000
	fa := &scriptedAnalyzer{step: 256.0 / float64(sr)}
	var pt, onoff bytes.Buffer
	res, err := New(nil, fa, nil).Note(audioio.Buffer{Samples: make([]float64, sr), SampleRate: sr}, 2, NewCSVSink(&pt, &onoff))
	require.NoError(t, err)
	// a scripted 440 "voiced probability" on silence gives -ln(0*441) = +Inf,
	// so the scan stops at the first checked frame
	assert.Equal(t, 10, res.Frame)
	assert.Equal(t, analysis.OutcomeVoicingDrop, res.Outcome)
	assert.Equal(t, "2,2.32\n", onoff.String())
	assert.Len(t, strings.Split(strings.TrimSpace(pt.String()), "\n"), 10)
}
