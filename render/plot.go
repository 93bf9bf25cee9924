// Package render turns annotations and analysis traces into PNG figures and
// audio for inspection.
package render

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/cwbudde/notetrack/dsp"
	"github.com/cwbudde/notetrack/jams"
)

var (
	stringNames  = []string{"E", "A", "D", "G", "B", "e"}
	stringColors = []color.Color{
		color.RGBA{R: 0xff, A: 0xff},
		color.RGBA{R: 0xe0, G: 0xc0, A: 0xff},
		color.RGBA{B: 0xff, A: 0xff},
		color.RGBA{R: 0xff, G: 0x7f, B: 0x50, A: 0xff},
		color.RGBA{G: 0x80, A: 0xff},
		color.RGBA{R: 0x80, B: 0x80, A: 0xff},
	}
	// open-string MIDI numbers in standard tuning
	openStrings = []float64{40, 45, 50, 55, 59, 64}
)

func partStyle(i int) (string, color.Color) {
	if i < len(stringNames) {
		return stringNames[i], stringColors[i]
	}
	return strconv.Itoa(i), color.Gray{Y: 0x60}
}

// SavePNG draws p onto a w x h canvas and writes it to path.
func SavePNG(p *plot.Plot, path string, w, h vg.Length) error {
	img := vgimg.New(w, h)
	dc := draw.New(img)
	p.Draw(dc)

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("write png %s: %w", path, err)
	}
	return f.Close()
}

func newPlot(title, xLabel, yLabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	return p
}

func segment(x0, y0, x1, y1 float64, c color.Color) (*plotter.Line, error) {
	l, err := plotter.NewLine(plotter.XYs{{X: x0, Y: y0}, {X: x1, Y: y1}})
	if err != nil {
		return nil, err
	}
	l.Color = c
	return l, nil
}

// addBeats draws a dotted line per beat and a solid one per downbeat over
// [lo, hi]. Files without beat annotations are left as they are.
func addBeats(p *plot.Plot, f *jams.File, lo, hi float64) error {
	annos := f.Search(jams.NamespaceBeatPosition)
	if len(annos) == 0 {
		return nil
	}
	beats, err := annos[0].Beats()
	if err != nil {
		return err
	}
	for _, b := range beats {
		l, err := segment(b.Time, lo, b.Time, hi, color.Gray{Y: 0x80})
		if err != nil {
			return err
		}
		if b.Downbeat() {
			l.Color = color.Black
		} else {
			l.Dashes = []vg.Length{vg.Points(1), vg.Points(2)}
		}
		p.Add(l)
	}
	return nil
}

// NotesPlot draws each note as a horizontal bar at its MIDI number, one
// colour per string.
func NotesPlot(f *jams.File) (*plot.Plot, error) {
	p := newPlot(f.FileMetadata.Title, "Time (sec)", "Pitch (midi note number)")
	for i, anno := range f.NoteAnnotations() {
		notes, err := anno.Notes()
		if err != nil {
			return nil, err
		}
		name, c := partStyle(i)
		var first *plotter.Line
		for _, n := range notes {
			l, err := segment(n.Time, n.MIDI, n.Time+n.Duration, n.MIDI, c)
			if err != nil {
				return nil, err
			}
			l.Width = vg.Points(2)
			p.Add(l)
			if first == nil {
				first = l
			}
		}
		if first != nil {
			p.Legend.Add(name, first)
		}
	}
	setTimeRange(p, f, -0.5)
	return p, nil
}

// PitchPlot scatters every pitch contour in MIDI numbers over the beat grid.
func PitchPlot(f *jams.File) (*plot.Plot, error) {
	p := newPlot(f.FileMetadata.Title, "Time (sec)", "Pitch Contour (midi note number)")
	lo, hi := math.Inf(1), math.Inf(-1)
	for i, anno := range f.Search(jams.NamespacePitchContour) {
		contour, err := anno.PitchContour()
		if err != nil {
			return nil, err
		}
		xys := make(plotter.XYs, 0, len(contour))
		for _, pt := range contour {
			if pt.Frequency <= 0 {
				continue
			}
			m := dsp.HzToMIDI(pt.Frequency)
			xys = append(xys, plotter.XY{X: pt.Time, Y: m})
			lo, hi = math.Min(lo, m), math.Max(hi, m)
		}
		if len(xys) == 0 {
			continue
		}
		s, err := plotter.NewScatter(xys)
		if err != nil {
			return nil, err
		}
		name, c := partStyle(i)
		s.GlyphStyle.Color = c
		s.GlyphStyle.Radius = vg.Points(0.5)
		p.Add(s)
		p.Legend.Add(name, s)
	}
	if math.IsInf(lo, 0) {
		lo, hi = 40, 90
	}
	if err := addBeats(p, f, lo, hi); err != nil {
		return nil, err
	}
	setTimeRange(p, f, -0.06)
	return p, nil
}

// OnsetsPlot draws a vertical tick per note onset, one row per string.
// Onsets outside [low, high] are skipped; a zero bound is open.
func OnsetsPlot(f *jams.File, low, high float64) (*plot.Plot, error) {
	p := newPlot(f.FileMetadata.Title, "sec", "String Number")
	for i, anno := range f.NoteAnnotations() {
		name, c := partStyle(i)
		var first *plotter.Line
		for _, t := range anno.EventTimes() {
			if (low != 0 && t < low) || (high != 0 && t > high) {
				continue
			}
			l, err := segment(t, float64(i), t, float64(i+2), c)
			if err != nil {
				return nil, err
			}
			p.Add(l)
			if first == nil {
				first = l
			}
		}
		if first != nil {
			p.Legend.Add(name, first)
		}
	}
	p.X.Min = -0.1
	if low != 0 {
		p.X.Min = low
	}
	p.X.Max = f.FileMetadata.Duration
	if high != 0 {
		p.X.Max = high
	}
	return p, nil
}

// TabPlot writes the fret number of every note on its string row over the
// beat grid.
func TabPlot(f *jams.File) (*plot.Plot, error) {
	p := newPlot(f.FileMetadata.Title, "Time (sec)", "String Number")
	for i, anno := range f.NoteAnnotations() {
		notes, err := anno.Notes()
		if err != nil {
			return nil, err
		}
		if len(notes) == 0 {
			continue
		}
		open := 40.0
		if i < len(openStrings) {
			open = openStrings[i]
		}
		xyl := plotter.XYLabels{
			XYs:    make(plotter.XYs, len(notes)),
			Labels: make([]string, len(notes)),
		}
		for j, n := range notes {
			xyl.XYs[j] = plotter.XY{X: n.Time, Y: float64(i + 1)}
			xyl.Labels[j] = strconv.Itoa(int(math.Round(n.MIDI - open)))
		}
		labels, err := plotter.NewLabels(xyl)
		if err != nil {
			return nil, err
		}
		_, c := partStyle(i)
		for k := range labels.TextStyle {
			labels.TextStyle[k].Color = c
		}
		p.Add(labels)
	}
	if err := addBeats(p, f, 0.5, float64(len(openStrings))+0.5); err != nil {
		return nil, err
	}
	setTimeRange(p, f, -0.5)
	return p, nil
}

func setTimeRange(p *plot.Plot, f *jams.File, from float64) {
	if f.FileMetadata.Duration > 0 {
		p.X.Min = from
		p.X.Max = f.FileMetadata.Duration
	}
}
