// Package processors provides the transforms that can run in the test slot
// of the routing graph.
package processors

import (
	algofft "github.com/MeKo-Christian/algo-fft"
	"github.com/cwbudde/algo-vecmath"

	"github.com/tphakala/audioroute/internal/audiocore/graph"
	"github.com/tphakala/audioroute/internal/errors"
)

// ComponentProcessors identifies transform errors
const ComponentProcessors = "audiocore.processors"

// Sample is a single mono audio sample.
type Sample = graph.Sample

// FFTMagnitude replaces each block by the inverse transform of its
// magnitude spectrum, which discards phase: the block becomes zero phase
// and symmetric around its first sample. The transform size equals the
// block size.
type FFTMagnitude struct {
	plan *algofft.Plan[complex128]
	buf  []complex128
	re   []float64
	im   []float64
	mag  []float64
}

// NewFFTMagnitude plans a transform for blocks of frames samples.
func NewFFTMagnitude(frames int) (*FFTMagnitude, error) {
	f := &FFTMagnitude{}
	if err := f.Resize(frames); err != nil {
		return nil, err
	}
	return f, nil
}

// Resize replans for a new block size. Not for the audio thread.
func (f *FFTMagnitude) Resize(frames int) error {
	plan, err := algofft.NewPlan64(frames)
	if err != nil {
		return errors.New(err).
			Component(ComponentProcessors).
			Category(errors.CategoryAudio).
			Context("operation", "fft_plan").
			Context("frames", frames).
			Build()
	}
	f.plan = plan
	f.buf = make([]complex128, frames)
	f.re = make([]float64, frames)
	f.im = make([]float64, frames)
	f.mag = make([]float64, frames)
	return nil
}

// Frames returns the planned block size.
func (f *FFTMagnitude) Frames() int { return len(f.buf) }

// Transform implements graph.Transform.
func (f *FFTMagnitude) Transform(in, out []Sample) {
	for i, s := range in {
		f.buf[i] = complex(float64(s), 0)
	}
	if err := f.plan.Forward(f.buf, f.buf); err != nil {
		panic(planMismatch(err, len(in)))
	}
	for i, c := range f.buf {
		f.re[i] = real(c)
		f.im[i] = imag(c)
	}
	vecmath.Magnitude(f.mag, f.re, f.im)
	for i, m := range f.mag {
		f.buf[i] = complex(m, 0)
	}
	// the inverse is normalized by 1/N
	if err := f.plan.Inverse(f.buf, f.buf); err != nil {
		panic(planMismatch(err, len(in)))
	}
	for i := range out {
		out[i] = Sample(real(f.buf[i]))
	}
}

func planMismatch(err error, frames int) *errors.EnhancedError {
	return errors.New(err).
		Component(ComponentProcessors).
		Category(errors.CategoryAudio).
		Priority(errors.PriorityCritical).
		Context("frames", frames).
		Build()
}
