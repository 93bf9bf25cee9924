package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"

	"github.com/cwbudde/notetrack/internal/audioio"
	"github.com/cwbudde/notetrack/jams"
	"github.com/cwbudde/notetrack/midiout"
	"github.com/cwbudde/notetrack/render"
)

var (
	noBend   bool
	seed     int64
	onsetLow float64
	onsetHi  float64
)

func init() {
	jams2midiCmd.Flags().BoolVar(&noBend, "no-bend", false, "round notes to the nearest key without pitch bend")
	jams2midiCmd.Flags().Int64Var(&seed, "seed", 1, "seed of the velocity jitter")
	sonifyCmd.Flags().Int64Var(&seed, "seed", 1, "seed of the velocity jitter")
	plotCmd.Flags().Float64Var(&onsetLow, "low", 0, "start of the onsets plot window in seconds")
	plotCmd.Flags().Float64Var(&onsetHi, "high", 0, "end of the onsets plot window in seconds (0 plots to the end)")

	rootCmd.AddCommand(jams2midiCmd)
	rootCmd.AddCommand(sonifyCmd)
	rootCmd.AddCommand(plotCmd)
}

func jamsOptions() midiout.JAMSOptions {
	opt := midiout.DefaultJAMSOptions()
	opt.PitchBend = !noBend
	opt.Seed = seed
	return opt
}

var jams2midiCmd = &cobra.Command{
	Use:   "jams2midi <in.jams> <out.mid>",
	Short: "Convert JAMS note annotations to a multi-track MIDI file",
	Args:  exactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := jams.Load(args[0])
		if err != nil {
			return err
		}
		s, err := midiout.FromJAMS(f, jamsOptions())
		if err != nil {
			return err
		}
		if err := midiout.WriteFile(args[1], s); err != nil {
			return err
		}
		logger.Info("midi written", zap.String("path", args[1]), zap.Int("tracks", len(s.Tracks)))
		return nil
	},
}

var sonifyCmd = &cobra.Command{
	Use:   "sonify <in.jams> <out.wav>",
	Short: "Render JAMS note annotations with a plucked-string synth",
	Args:  exactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := jams.Load(args[0])
		if err != nil {
			return err
		}
		cfg := render.DefaultSynthConfig()
		out, err := render.SonifyJAMS(f, jamsOptions(), cfg)
		if err != nil {
			return err
		}
		if err := audioio.WriteMonoWAV(args[1], out, cfg.SampleRate); err != nil {
			return err
		}
		logger.Info("audio written",
			zap.String("path", args[1]),
			zap.Float64("seconds", float64(len(out))/float64(cfg.SampleRate)))
		return nil
	},
}

var plotCmd = &cobra.Command{
	Use:       "plot notes|pitch|onsets|tab <in.jams> <out.png>",
	Short:     "Plot JAMS annotations to PNG",
	Args:      exactArgs(3),
	ValidArgs: []string{"notes", "pitch", "onsets", "tab"},
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, in, out := args[0], args[1], args[2]
		build, err := plotBuilder(kind)
		if err != nil {
			return err
		}
		f, err := jams.Load(in)
		if err != nil {
			return err
		}
		p, err := build(f)
		if err != nil {
			return err
		}
		if err := render.SavePNG(p, out, 12*vg.Inch, 4*vg.Inch); err != nil {
			return err
		}
		logger.Info("plot written", zap.String("kind", kind), zap.String("path", out))
		return nil
	},
}

func plotBuilder(kind string) (func(*jams.File) (*plot.Plot, error), error) {
	switch kind {
	case "notes":
		return render.NotesPlot, nil
	case "pitch":
		return render.PitchPlot, nil
	case "onsets":
		return func(f *jams.File) (*plot.Plot, error) {
			return render.OnsetsPlot(f, onsetLow, onsetHi)
		}, nil
	case "tab":
		return render.TabPlot, nil
	default:
		return nil, fmt.Errorf("%w: unknown plot kind %q (notes, pitch, onsets, tab)", errUsage, kind)
	}
}
