package devices

import (
	"github.com/spf13/cobra"

	"github.com/tphakala/audioroute/internal/app"
	"github.com/tphakala/audioroute/internal/conf"
)

// Command creates the command that lists audio devices.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List capture and playback devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.PrintDevices(cmd.OutOrStdout(), settings.Audio.Backend)
		},
	}
}
