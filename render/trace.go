package render

import (
	"fmt"
	"image/color"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/cwbudde/notetrack/analysis"
)

// OffsetTracePlot draws the offset strength, decay rate and likelihood of one
// segment, each scaled to a peak of 1, with the candidate frames dashed and
// the chosen frame solid.
func OffsetTracePlot(tr analysis.OffsetTrace) (*plot.Plot, error) {
	p := newPlot(fmt.Sprintf("offset @ %.3fs (%s)", tr.Start, tr.Decision.Outcome), "sec", "normalised")
	series := []struct {
		name string
		y    []float64
		c    color.Color
	}{
		{"strength", tr.Strength, color.RGBA{B: 0xff, A: 0xff}},
		{"decay", tr.Decay, color.RGBA{R: 0xff, G: 0x7f, A: 0xff}},
		{"likelihood", tr.Likelihood, color.Black},
	}
	for _, s := range series {
		if len(s.y) == 0 {
			continue
		}
		xys := make(plotter.XYs, len(s.y))
		scale := 1.0
		for _, v := range s.y {
			if v > scale {
				scale = v
			}
		}
		for i, v := range s.y {
			xys[i] = plotter.XY{X: tr.Start + tr.FrameTime(i), Y: v / scale}
		}
		l, err := plotter.NewLine(xys)
		if err != nil {
			return nil, err
		}
		l.Color = s.c
		p.Add(l)
		p.Legend.Add(s.name, l)
	}
	for _, f := range tr.Candidates {
		t := tr.Start + tr.FrameTime(f)
		l, err := segment(t, 0, t, 1, color.Gray{Y: 0x80})
		if err != nil {
			return nil, err
		}
		l.Dashes = []vg.Length{vg.Points(3), vg.Points(3)}
		p.Add(l)
	}
	t := tr.Start + tr.FrameTime(tr.Decision.Frame)
	l, err := segment(t, 0, t, 1, color.RGBA{R: 0xff, A: 0xff})
	if err != nil {
		return nil, err
	}
	p.Add(l)
	return p, nil
}

// OffsetTraceWriter returns a diagnostics callback that saves each trace as
// dir/offset_<start>.png. Errors are handed to onErr.
func OffsetTraceWriter(dir string, onErr func(error)) func(analysis.OffsetTrace) {
	return func(tr analysis.OffsetTrace) {
		p, err := OffsetTracePlot(tr)
		if err == nil {
			path := filepath.Join(dir, fmt.Sprintf("offset_%08.3f.png", tr.Start))
			err = SavePNG(p, path, 8*vg.Inch, 4*vg.Inch)
		}
		if err != nil && onErr != nil {
			onErr(err)
		}
	}
}
