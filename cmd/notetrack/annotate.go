package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cwbudde/notetrack/analysis"
	"github.com/cwbudde/notetrack/annotate"
	"github.com/cwbudde/notetrack/jams"
	"github.com/cwbudde/notetrack/midiout"
	"github.com/cwbudde/notetrack/render"
)

func init() {
	rootCmd.AddCommand(notesCmd)
	rootCmd.AddCommand(monoCmd)
	rootCmd.AddCommand(noteCmd)
	rootCmd.AddCommand(stemCmd)
}

var notesCmd = &cobra.Command{
	Use:   "notes <in.wav> <out.mid>",
	Short: "Transcribe a recording into a rough MIDI file",
	Long: `Runs the note tracker over the whole recording and writes one MIDI note per
detected note. An existing output file is left untouched.`,
	Args: exactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		in, out := args[0], args[1]
		if _, err := os.Stat(out); err == nil {
			logger.Info("midi file exists, skipping", zap.String("path", out))
			return nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		buf, err := loadAudio(in)
		if err != nil {
			return err
		}
		notes, err := annotate.New(settings, nil, logger).Notes(buf)
		if err != nil {
			return err
		}
		s, err := midiout.FromNotes(notes, midiout.DefaultOptions())
		if err != nil {
			return err
		}
		written, err := midiout.WriteFileIfAbsent(out, s)
		if err != nil {
			return err
		}
		logger.Info("rough midi",
			zap.String("path", out),
			zap.Int("notes", len(notes)),
			zap.Bool("written", written))
		return nil
	},
}

var monoCmd = &cobra.Command{
	Use:   "mono <in.wav> <seg_start> <pt.csv> <onoff.csv>",
	Short: "Trim an isolated note to its voiced frames and append the annotation",
	Args:  exactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		start, err := parseSeconds("seg_start", args[1])
		if err != nil {
			return err
		}
		buf, err := loadAudio(args[0])
		if err != nil {
			return err
		}
		sink, closeSink, err := openSink(args[2], args[3], false)
		if err != nil {
			return err
		}
		_, err = annotate.New(settings, nil, logger).Mono(buf, start, sink)
		return errors.Join(err, closeSink())
	},
}

var noteCmd = &cobra.Command{
	Use:   "note <in.wav> <seg_start> <pt.csv> <onoff.csv>",
	Short: "Find a single note's offset from its voicing and append the annotation",
	Args:  exactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		start, err := parseSeconds("seg_start", args[1])
		if err != nil {
			return err
		}
		buf, err := loadAudio(args[0])
		if err != nil {
			return err
		}
		sink, closeSink, err := openSink(args[2], args[3], false)
		if err != nil {
			return err
		}
		res, err := annotate.New(settings, nil, logger).Note(buf, start, sink)
		if err == nil {
			logger.Info("note offset",
				zap.Float64("onset", start),
				zap.Float64("offset", res.Time),
				zap.Stringer("outcome", res.Outcome))
		}
		return errors.Join(err, closeSink())
	},
}

var stemCmd = &cobra.Command{
	Use:   "stem <in.wav> <outprefix> <onsets.jams>",
	Short: "Annotate a full stem segment by segment",
	Long: `Splits the stem at the annotated onsets and runs the offset heuristic on each
segment. Writes <outprefix>_pt.csv (time,Hz) and <outprefix>_onoff.csv
(onset,offset), replacing earlier runs.`,
	Args: exactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := jams.Load(args[2])
		if err != nil {
			return err
		}
		onsets, err := f.Onsets()
		if err != nil {
			return err
		}
		buf, err := loadAudio(args[0])
		if err != nil {
			return err
		}
		sink, closeSink, err := openSink(args[1]+"_pt.csv", args[1]+"_onoff.csv", true)
		if err != nil {
			return err
		}

		a := annotate.New(settings, nil, logger)
		if settings.PlotDir != "" {
			if err := os.MkdirAll(settings.PlotDir, 0o755); err != nil {
				return errors.Join(err, closeSink())
			}
			a.Diagnostics = render.OffsetTraceWriter(settings.PlotDir, func(err error) {
				logger.Warn("offset plot failed", zap.Error(err))
			})
		}
		sum, err := a.Stem(buf, onsets, sink)
		if err == nil {
			logger.Info("stem annotated",
				zap.Int("segments", sum.Segments),
				zap.Int("peak", sum.Outcomes[analysis.OutcomePeak]),
				zap.Int("silence", sum.Outcomes[analysis.OutcomeSilence]),
				zap.Int("segment_end", sum.Outcomes[analysis.OutcomeSegmentEnd]))
		}
		return errors.Join(err, closeSink())
	},
}

// openSink opens the pitch and interval CSVs, appending unless truncate is
// set. The returned func closes both files.
func openSink(pitchPath, intervalPath string, truncate bool) (*annotate.CSVSink, func() error, error) {
	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if truncate {
		flags = os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	}
	pf, err := os.OpenFile(pitchPath, flags, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", pitchPath, err)
	}
	of, err := os.OpenFile(intervalPath, flags, 0o644)
	if err != nil {
		pf.Close()
		return nil, nil, fmt.Errorf("open %s: %w", intervalPath, err)
	}
	closeBoth := func() error {
		return errors.Join(pf.Close(), of.Close())
	}
	return annotate.NewCSVSink(pf, of), closeBoth, nil
}
