// Package graph implements the pull-driven audio node graph.
//
// An Output generates one block per callback and fans it out to any number
// of Inputs; an Input is connected to at most one Output. Filling an Input
// recursively fills the Output it is connected to, and every Output computes
// at most once per Block sequence number, so a fan-out node is evaluated
// once no matter how many paths lead to it.
//
// Buffers come from a shared chunkalloc.Allocator. An Output needs no pool
// chunk when it brings its own storage or when the first Input of its
// fan-out exposes storage of its own; in the latter case the Output
// generates directly into that Input's buffer and the copy to it is skipped.
// Connections are resolved into a delivery strategy when they are made, so
// the audio thread only switches on a precomputed tag.
//
// The graph is not safe for concurrent use. Every method is meant to be
// called from the audio thread, or while the audio thread is stopped.
package graph

import (
	"github.com/tphakala/audioroute/internal/audiocore/chunkalloc"
)

// Sample is a single mono audio sample.
type Sample = chunkalloc.Sample

// defaultFanOut sizes the connection list of every output.
const defaultFanOut = 8

// Graph owns the chunk pool shared by its nodes.
type Graph struct {
	alloc   *chunkalloc.Allocator
	outputs []*Output
}

// New creates a graph whose pool hands out chunks of frames samples.
func New(frames int, cfg chunkalloc.Config) (*Graph, error) {
	alloc, err := chunkalloc.New(frames, cfg)
	if err != nil {
		return nil, err
	}
	return &Graph{alloc: alloc}, nil
}

// Frames returns the current block size.
func (g *Graph) Frames() int {
	return g.alloc.Frames()
}

// PoolStats returns the chunk pool usage.
func (g *Graph) PoolStats() chunkalloc.Stats {
	return g.alloc.Stats()
}

// NewOutput registers an output driven by gen. Only OutputProvidesBuffer is
// meaningful in caps.
func (g *Graph) NewOutput(name string, caps Capability, gen Generator) *Output {
	if gen == nil {
		panic(misuse("output without generator", name))
	}
	o := &Output{
		g:     g,
		name:  name,
		caps:  caps & OutputProvidesBuffer,
		gen:   gen,
		conns: make([]connection, 0, defaultFanOut),
	}
	if s, ok := gen.(silentGenerator); ok {
		o.silent = s.Silent()
	}
	g.outputs = append(g.outputs, o)
	return o
}

// NewInput creates an input. An input with a non-zero capability needs a
// sink to receive data or expose storage.
func (g *Graph) NewInput(name string, caps Capability, sink Sink) *Input {
	caps = caps.Input()
	if caps != InputUsesOutputBuffer && sink == nil {
		panic(misuse("input capability requires a sink", name))
	}
	// An input that provides storage but cannot take copies would starve
	// whenever it is not first in a fan-out list.
	if caps.ProvidesInputBuffer() && !caps.NeedsCopy() {
		panic(misuse("input provides a buffer but does not accept copies", name))
	}
	return &Input{name: name, caps: caps, sink: sink}
}

// Resize rebuilds the pool for a new block size. Every chunk handed out
// before is invalid afterwards; outputs that still need one are given a
// fresh chunk and forget their memoized block.
func (g *Graph) Resize(frames int) error {
	if err := g.alloc.Reset(frames); err != nil {
		return err
	}
	for _, o := range g.outputs {
		o.owned = chunkalloc.Chunk{}
		o.stale = chunkalloc.Chunk{}
		o.allocated = false
		o.data = nil
		o.filled = false
		o.resolve()
	}
	return nil
}
