// Package cmd assembles the audioroute command line.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/tphakala/audioroute/cmd/devices"
	"github.com/tphakala/audioroute/cmd/realtime"
	"github.com/tphakala/audioroute/cmd/render"
	"github.com/tphakala/audioroute/internal/buildinfo"
	"github.com/tphakala/audioroute/internal/conf"
)

// RootCommand creates and returns the root command.
func RootCommand(settings *conf.Settings, info *buildinfo.Context) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "audioroute",
		Short:         "Real-time audio routing engine",
		Long:          "Route, record and play back audio between a capture device, a test processor and a playback device.",
		Version:       info.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	if err := setupFlags(rootCmd, settings); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(
		realtime.Command(settings),
		render.Command(settings),
		devices.Command(settings),
	)

	// Flags write straight into settings, so validate again once they are parsed.
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := conf.ValidateSettings(settings); err != nil {
			return fmt.Errorf("invalid settings: %w", err)
		}
		return nil
	}

	return rootCmd
}

// setupFlags defines the flags shared by all commands.
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	flags.StringVar(&settings.Audio.Backend, "backend", viper.GetString("audio.backend"), "Audio backend (auto, alsa, pulse, jack, wasapi, coreaudio, null)")
	flags.IntVar(&settings.Audio.SampleRate, "rate", viper.GetInt("audio.sample_rate"), "Sample rate in Hz")
	flags.IntVarP(&settings.Audio.BufferFrames, "frames", "f", viper.GetInt("audio.buffer_frames"), "Frames per processing block")
	flags.Float64Var(&settings.Engine.RecordSeconds, "record-seconds", viper.GetFloat64("engine.record_seconds"), "Capacity of the recording buffer in seconds")
	flags.StringVar(&settings.Engine.TestProcessor, "test", viper.GetString("engine.test_processor"), "Test processor (fft, copy, gain)")
	flags.Float64Var(&settings.Engine.GainDB, "gain", viper.GetFloat64("engine.gain_db"), "Gain of the gain test processor in dB")
	flags.BoolVar(&settings.Engine.Crossfade, "crossfade", viper.GetBool("engine.crossfade"), "Crossfade when switching sources")
	flags.StringVarP(&settings.Routing.Mode, "mode", "m", viper.GetString("routing.mode"), "Initial playback mode (muted, playback, playback-to-input, direct, passthrough)")
	flags.StringVarP(&settings.Routing.Record, "record", "r", viper.GetString("routing.record"), "Initial record source (none, input, output)")
	flags.BoolVar(&settings.Routing.Repeat, "repeat", viper.GetBool("routing.repeat"), "Rewind instead of stopping when playback runs out")

	return bindFlags(flags, map[string]string{
		"debug":          "debug",
		"backend":        "audio.backend",
		"rate":           "audio.sample_rate",
		"frames":         "audio.buffer_frames",
		"record-seconds": "engine.record_seconds",
		"test":           "engine.test_processor",
		"gain":           "engine.gain_db",
		"crossfade":      "engine.crossfade",
		"mode":           "routing.mode",
		"record":         "routing.record",
		"repeat":         "routing.repeat",
	})
}

// bindFlags binds flags to their configuration keys so that flag values
// survive a configuration reload.
func bindFlags(flags *pflag.FlagSet, keys map[string]string) error {
	for name, key := range keys {
		if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", name, err)
		}
	}
	return nil
}
