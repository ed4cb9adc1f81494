package processors

import (
	"math"

	"github.com/cwbudde/algo-vecmath"
)

// Gain scales blocks by a gain that changes smoothly: a new setting is
// reached by a linear ramp over one block.
type Gain struct {
	current float64
	target  float64
	ramp    []float64
	in      []float64
	out     []float64
}

// NewGain creates a gain stage for blocks of frames samples.
func NewGain(frames int, gain float64) *Gain {
	g := &Gain{current: gain, target: gain}
	g.Resize(frames)
	return g
}

// DecibelsToGain converts a level in dB to a linear factor.
func DecibelsToGain(db float64) float64 {
	return math.Pow(10, db/20)
}

// Resize reallocates the scratch buffers. Not for the audio thread.
func (g *Gain) Resize(frames int) {
	g.ramp = make([]float64, frames)
	g.in = make([]float64, frames)
	g.out = make([]float64, frames)
	g.fillRamp()
}

// SetGain sets the linear gain reached by the end of the next block.
// Audio thread, or while it is stopped.
func (g *Gain) SetGain(gain float64) {
	g.target = gain
	g.fillRamp()
}

// Gain returns the target gain.
func (g *Gain) Gain() float64 { return g.target }

func (g *Gain) fillRamp() {
	n := len(g.ramp)
	if n == 0 {
		return
	}
	step := (g.target - g.current) / float64(n)
	for i := range g.ramp {
		g.ramp[i] = g.current + step*float64(i+1)
	}
}

// Transform implements graph.Transform.
func (g *Gain) Transform(in, out []Sample) {
	for i, s := range in {
		g.in[i] = float64(s)
	}
	vecmath.MulBlock(g.out, g.in, g.ramp)
	for i := range out {
		out[i] = Sample(g.out[i])
	}
	if g.current != g.target {
		g.current = g.target
		g.fillRamp()
	}
}
