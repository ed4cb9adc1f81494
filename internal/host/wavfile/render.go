package wavfile

import (
	"context"
	"math"

	"github.com/tphakala/audioroute/internal/logger"
)

// Engine renders blocks and accepts routing changes.
// *engine.Engine implements it.
type Engine interface {
	Controller
	Process(in, out []float32) error
	Frames() int
	SampleRate() int
	SampleRateChanged(rate int) error
}

// Options controls an offline render.
type Options struct {
	Timeline Timeline
	// Tail is the number of seconds of silence rendered after the input,
	// so that playback started near the end can be heard.
	Tail float64
}

// Render runs the input through e one block at a time and returns the
// output. Timeline steps take effect at the first block that starts at or
// after their time.
func Render(ctx context.Context, e Engine, input *Audio, opts Options) (*Audio, error) {
	log := logger.Global().Module("render")

	if input.SampleRate != e.SampleRate() {
		log.Info("following input sample rate",
			logger.Int("input_rate", input.SampleRate),
			logger.Int("engine_rate", e.SampleRate()))
		if err := e.SampleRateChanged(input.SampleRate); err != nil {
			return nil, err
		}
	}

	frames := e.Frames()
	total := len(input.Samples) + int(math.Round(opts.Tail*float64(input.SampleRate)))
	output := make([]float32, total+frames)
	in := make([]float32, frames)

	next := 0
	for start := 0; start < total; start += frames {
		if start%(frames*256) == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		now := float64(start) / float64(input.SampleRate)
		for next < len(opts.Timeline) && opts.Timeline[next].At <= now {
			step := &opts.Timeline[next]
			log.Debug("applying timeline step",
				logger.Float64("at", step.At),
				logger.Float64("block_time", now))
			if err := step.Apply(e); err != nil {
				return nil, err
			}
			next++
		}

		clear(in)
		if start < len(input.Samples) {
			copy(in, input.Samples[start:])
		}
		if err := e.Process(in, output[start:start+frames]); err != nil {
			return nil, err
		}
	}

	log.Info("render finished",
		logger.Int("frames", total),
		logger.Int("steps_applied", next))
	return &Audio{
		Samples:    output[:total],
		SampleRate: input.SampleRate,
		BitDepth:   input.BitDepth,
	}, nil
}
