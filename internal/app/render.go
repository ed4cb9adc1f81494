package app

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/tphakala/audioroute/internal/audiocore/engine"
	"github.com/tphakala/audioroute/internal/conf"
	"github.com/tphakala/audioroute/internal/host/wavfile"
	"github.com/tphakala/audioroute/internal/logger"
)

// RenderOptions selects the files and routing script of an offline render.
type RenderOptions struct {
	Input        string
	Output       string
	Steps        []string // command-line steps, see wavfile.ParseStep
	TimelineFile string   // optional YAML timeline
	Tail         float64  // seconds rendered after the input ends
	BitDepth     int      // output bit depth; 0 keeps the input depth
}

// Render runs the engine over a WAV file and writes the result.
func Render(ctx context.Context, settings *conf.Settings, opts RenderOptions) error {
	log := logger.Global().Module("render")

	timeline, err := loadTimeline(opts)
	if err != nil {
		return err
	}
	input, err := wavfile.Read(opts.Input)
	if err != nil {
		return err
	}

	cfg, err := EngineConfig(settings)
	if err != nil {
		return err
	}
	cfg.SampleRate = input.SampleRate
	e, err := engine.New(cfg)
	if err != nil {
		return err
	}
	e.Subscribe(func(ev engine.Event) {
		log.Info("engine event", logger.String("event", ev.String()))
	})

	log.Info("rendering",
		logger.String("input", opts.Input),
		logger.String("output", opts.Output),
		logger.Int("sample_rate", input.SampleRate),
		logger.Float64("seconds", input.Duration()),
		logger.Int("steps", len(timeline)))

	var out *wavfile.Audio
	dctx, stop := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(dctx)
	g.Go(func() error { return e.Dispatch(gctx) })
	g.Go(func() error {
		defer stop()
		var err error
		out, err = wavfile.Render(ctx, e, input, wavfile.Options{Timeline: timeline, Tail: opts.Tail})
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if opts.BitDepth != 0 {
		out.BitDepth = opts.BitDepth
	}
	if err := wavfile.Write(opts.Output, out); err != nil {
		return err
	}
	log.Info("render complete",
		logger.String("output", opts.Output),
		logger.Float64("seconds", out.Duration()),
		logger.String("routing", e.State().String()))
	return nil
}

func loadTimeline(opts RenderOptions) (wavfile.Timeline, error) {
	steps, err := wavfile.ParseTimeline(opts.Steps)
	if err != nil {
		return nil, err
	}
	if opts.TimelineFile == "" {
		return steps, nil
	}
	file, err := wavfile.LoadTimeline(opts.TimelineFile)
	if err != nil {
		return nil, err
	}
	return file.Merge(steps), nil
}
