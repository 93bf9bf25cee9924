package main

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cwbudde/notetrack/internal/audioio"
	"github.com/cwbudde/notetrack/internal/logging"
	"github.com/cwbudde/notetrack/preset"
)

var (
	presetPath string
	logLevel   string
	sampleRate int
	plotDir    string

	settings *preset.Settings
	logger   *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "notetrack",
	Short: "Pitch, onset and offset annotation of monophonic recordings",
	Long: `notetrack runs a probabilistic YIN tracker over recordings and turns the
result into pitch/interval CSVs and MIDI files. It also renders, plays back and
plots JAMS annotations.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&presetPath, "preset", "", "JSON preset applied on top of the built-in defaults")
	pf.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	pf.IntVar(&sampleRate, "sample-rate", 0, "resample input audio to this rate (0 keeps the native rate)")
	pf.StringVar(&plotDir, "plot-dir", "", "directory for offset diagnostics plots (overrides the preset)")

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", errUsage, err)
	})
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func setup(cmd *cobra.Command, args []string) error {
	if sampleRate < 0 {
		return fmt.Errorf("%w: --sample-rate must be >= 0", errUsage)
	}
	l, err := logging.New(logLevel)
	if err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	logger = l.With(zap.String("run_id", uuid.NewString()), zap.String("command", cmd.Name()))

	if presetPath != "" {
		settings, err = preset.LoadJSON(presetPath)
		if err != nil {
			return err
		}
		logger.Debug("preset loaded", zap.String("path", presetPath))
	} else {
		settings = preset.DefaultSettings()
	}
	if plotDir != "" {
		settings.PlotDir = plotDir
	}
	return nil
}

// exactArgs is cobra.ExactArgs with usage errors that map to the usage exit code.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return fmt.Errorf("%w: %s takes %d arguments, got %d", errUsage, cmd.Name(), n, len(args))
		}
		return nil
	}
}

func parseSeconds(name, raw string) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative number of seconds, got %q", errUsage, name, raw)
	}
	return v, nil
}

func loadAudio(path string) (audioio.Buffer, error) {
	buf, err := audioio.Load(path, sampleRate)
	if err != nil {
		return buf, err
	}
	logger.Debug("audio loaded",
		zap.String("path", path),
		zap.Int("sample_rate", buf.SampleRate),
		zap.Float64("duration", buf.Duration()))
	return buf, nil
}
