package realtime

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/audioroute/internal/app"
	"github.com/tphakala/audioroute/internal/conf"
)

// Command creates the command that routes audio between live devices.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "realtime",
		Short: "Route audio between live devices",
		Long: "Open the capture and playback devices and run the routing engine until interrupted. " +
			"With the terminal control surface enabled, single keys switch modes and recording.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Realtime(cmd.Context(), settings)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		panic(err)
	}

	return cmd
}

// setupFlags configures flags specific to the realtime command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	flags := cmd.Flags()
	flags.StringVar(&settings.Audio.CaptureDevice, "capture", viper.GetString("audio.capture_device"), "Capture device name, ID or unique part of the name")
	flags.StringVar(&settings.Audio.PlaybackDevice, "playback", viper.GetString("audio.playback_device"), "Playback device name, ID or unique part of the name")
	flags.BoolVar(&settings.Audio.SplitDevices, "split", viper.GetBool("audio.split_devices"), "Open capture and playback as separate devices")
	flags.IntVar(&settings.Audio.JitterBlocks, "jitter-blocks", viper.GetInt("audio.jitter_blocks"), "Blocks buffered between split devices")
	flags.BoolVar(&settings.Control.Terminal, "terminal", viper.GetBool("control.terminal"), "Enable keyboard control")
	flags.BoolVar(&settings.Telemetry.Enabled, "telemetry", viper.GetBool("telemetry.enabled"), "Enable Prometheus telemetry endpoint")
	flags.StringVar(&settings.Telemetry.Listen, "listen", viper.GetString("telemetry.listen"), "Listen address and port of telemetry endpoint")

	for name, key := range map[string]string{
		"capture":       "audio.capture_device",
		"playback":      "audio.playback_device",
		"split":         "audio.split_devices",
		"jitter-blocks": "audio.jitter_blocks",
		"terminal":      "control.terminal",
		"telemetry":     "telemetry.enabled",
		"listen":        "telemetry.listen",
	} {
		if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", name, err)
		}
	}
	return nil
}
