package render

import (
	"github.com/spf13/cobra"

	"github.com/tphakala/audioroute/internal/app"
	"github.com/tphakala/audioroute/internal/conf"
)

// Command creates the command that runs the engine over a WAV file.
func Command(settings *conf.Settings) *cobra.Command {
	opts := app.RenderOptions{}

	cmd := &cobra.Command{
		Use:   "render [input.wav] [output.wav]",
		Short: "Process a WAV file offline",
		Long: "Feed a WAV file through the routing engine block by block and write the host output. " +
			"Routing changes are scripted with --at steps or a YAML timeline, for example " +
			"--at 0s:record=input --at 2s:mode=playback,repeat=on.",
		Example: "  audioroute render in.wav out.wav --mode passthrough --at 1.5s:mode=muted",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Input, opts.Output = args[0], args[1]
			return app.Render(cmd.Context(), settings, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringArrayVar(&opts.Steps, "at", nil, "Routing step as time:action[,action...]; repeatable")
	flags.StringVar(&opts.TimelineFile, "timeline", "", "YAML file with routing steps")
	flags.Float64Var(&opts.Tail, "tail", 0, "Seconds to render after the input ends")
	flags.IntVar(&opts.BitDepth, "bits", 0, "Output bit depth (16, 24 or 32); default keeps the input depth")

	return cmd
}
