package nodes

import (
	"github.com/tphakala/audioroute/internal/audiocore/framering"
	"github.com/tphakala/audioroute/internal/audiocore/graph"
)

// Recorder stores every block it is handed in a frame ring and plays the
// ring back through its output. The input side is the ring's producer and
// the output side its consumer; both run on the audio thread.
//
// Without repeat, playback pops frames so recording and playback together
// act as a delay line. With repeat, playback reads without freeing so the
// recording can be rewound and replayed.
type Recorder struct {
	In     *graph.Input
	Out    *graph.Output
	ring   *framering.Ring
	repeat bool
}

// NewRecorder creates a recorder around ring, whose frame size must match
// the graph block size.
func NewRecorder(g *graph.Graph, ring *framering.Ring) *Recorder {
	r := &Recorder{ring: ring}
	r.In = g.NewInput("recorder", graph.InputNeedsCopy, r)
	r.Out = g.NewOutput("recorder", graph.OutputProvidesBuffer, r)
	return r
}

// Ring returns the backing ring.
func (r *Recorder) Ring() *framering.Ring { return r.ring }

// SetRepeat selects non-destructive playback.
func (r *Recorder) SetRepeat(repeat bool) { r.repeat = repeat }

// Repeat reports whether playback is non-destructive.
func (r *Recorder) Repeat() bool { return r.repeat }

// Clear discards the recording. Audio thread only.
func (r *Recorder) Clear() { r.ring.Clear() }

// ResetReadPointer rewinds playback to the oldest recorded frame.
func (r *Recorder) ResetReadPointer() { r.ring.ResetReadPointer() }

// ProvidedBuffer implements graph.Sink. The recorder exposes no storage.
func (r *Recorder) ProvidedBuffer() []Sample { return nil }

// CopyIn implements graph.Sink.
func (r *Recorder) CopyIn(src []Sample) error {
	if !r.ring.Push(src) {
		return graph.ErrBufferFull
	}
	return nil
}

// Zero implements graph.Sink.
func (r *Recorder) Zero() error {
	if !r.ring.PushZero() {
		return graph.ErrBufferFull
	}
	return nil
}

// Generate implements graph.Generator.
func (r *Recorder) Generate(*graph.Block, []Sample) ([]Sample, error) {
	var frame []Sample
	if r.repeat {
		frame = r.ring.Read()
	} else {
		frame = r.ring.Pop()
	}
	if frame == nil {
		return nil, graph.ErrBufferEmpty
	}
	return frame, nil
}
