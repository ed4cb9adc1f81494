package engine

import (
	"github.com/tphakala/audioroute/internal/audiocore/chunkalloc"
	"github.com/tphakala/audioroute/internal/audiocore/routing"
)

// Test processor kinds.
const (
	TestFFT  = "fft"
	TestCopy = "copy"
	TestGain = "gain"
)

// Config describes an engine instance.
type Config struct {
	SampleRate    int
	Frames        int
	RecordSeconds float64 // capacity of the recorder ring
	Pool          chunkalloc.Config

	// Test selects the processor on the test path.
	Test   string
	GainDB float64 // used when Test is TestGain

	// Crossfade enables fades on the test and output switches.
	Crossfade bool

	// Initial is the routing word the engine starts with.
	Initial routing.Word
}

// DefaultConfig returns a 48 kHz, 256 frame engine with a ten second
// recorder and the FFT test processor.
func DefaultConfig() Config {
	return Config{
		SampleRate:    48000,
		Frames:        256,
		RecordSeconds: 10,
		Pool:          chunkalloc.DefaultConfig(),
		Test:          TestFFT,
		Crossfade:     true,
	}
}

func (c *Config) validate() error {
	switch {
	case c.SampleRate <= 0:
		return configError("sample rate", c.SampleRate)
	case c.Frames <= 0:
		return configError("frames", c.Frames)
	case c.RecordSeconds <= 0:
		return configError("record seconds", c.RecordSeconds)
	case !c.Initial.Valid():
		return configError("initial routing", uint32(c.Initial))
	}
	switch c.Test {
	case TestFFT, TestCopy, TestGain:
	default:
		return configError("test processor", c.Test)
	}
	return nil
}
