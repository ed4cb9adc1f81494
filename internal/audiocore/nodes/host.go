// Package nodes provides the concrete graph nodes of the routing core: the
// host endpoints, a silence source, the recorder and a copy processor.
package nodes

import (
	"github.com/tphakala/audioroute/internal/audiocore/graph"
)

// Sample is a single mono audio sample.
type Sample = graph.Sample

// HostInput exposes the capture buffer of the current host callback as an
// output. Bind must be called with the new buffer before every block.
type HostInput struct {
	Out *graph.Output
	buf []Sample
}

// NewHostInput registers the host capture node in g.
func NewHostInput(g *graph.Graph) *HostInput {
	h := &HostInput{}
	h.Out = g.NewOutput("host capture", graph.OutputProvidesBuffer, h)
	return h
}

// Bind sets the capture buffer for the next block.
func (h *HostInput) Bind(buf []Sample) { h.buf = buf }

// Generate implements graph.Generator.
func (h *HostInput) Generate(*graph.Block, []Sample) ([]Sample, error) {
	return h.buf, nil
}

// HostOutput is the playback end of the graph. Outputs connected to it as
// their first input generate straight into the host buffer.
type HostOutput struct {
	In  *graph.Input
	buf []Sample
}

// NewHostOutput creates the host playback node in g.
func NewHostOutput(g *graph.Graph) *HostOutput {
	h := &HostOutput{}
	h.In = g.NewInput("host playback", graph.InputProvidesBuffer|graph.InputNeedsCopy, h)
	return h
}

// Bind sets the playback buffer for the next block.
func (h *HostOutput) Bind(buf []Sample) { h.buf = buf }

// ProvidedBuffer implements graph.Sink.
func (h *HostOutput) ProvidedBuffer() []Sample { return h.buf }

// CopyIn implements graph.Sink.
func (h *HostOutput) CopyIn(src []Sample) error {
	copy(h.buf, src)
	return nil
}

// Zero implements graph.Sink.
func (h *HostOutput) Zero() error {
	clear(h.buf)
	return nil
}

// Silence is an output that always produces zeros.
type Silence struct {
	Out *graph.Output
	buf []Sample
}

// NewSilence registers a silence source in g.
func NewSilence(g *graph.Graph) *Silence {
	s := &Silence{buf: make([]Sample, g.Frames())}
	s.Out = g.NewOutput("silence", graph.OutputProvidesBuffer, s)
	return s
}

// Resize reallocates the zero block. Not for the audio thread.
func (s *Silence) Resize(frames int) {
	s.buf = make([]Sample, frames)
}

// Generate implements graph.Generator.
func (s *Silence) Generate(*graph.Block, []Sample) ([]Sample, error) {
	return s.buf, nil
}

// Silent marks the output so copy deliveries become zero fills.
func (s *Silence) Silent() bool { return true }

// NewCopy creates a processor that passes its input through unchanged.
func NewCopy(g *graph.Graph, name string) *graph.Processor {
	return g.NewProcessor(name, graph.TransformFunc(func(in, out []Sample) {
		copy(out, in)
	}))
}
