package graph

import (
	"slices"

	"github.com/tphakala/audioroute/internal/audiocore/chunkalloc"
)

// Output is the producing end of a connection.
type Output struct {
	g      *Graph
	name   string
	caps   Capability
	gen    Generator
	silent bool

	// conns is kept in descending order of input capability, so inputs that
	// need a copy come first and the one that may be aliased is at index 0.
	conns []connection

	owned     chunkalloc.Chunk
	stale     chunkalloc.Chunk // holds data until the next generate or Resize
	allocated bool
	aliased   bool

	data   []Sample // result of the last successful Generate
	seq    uint64
	filled bool
}

// Name returns the name the output was registered with.
func (o *Output) Name() string { return o.name }

// Capability returns the output's capability mask.
func (o *Output) Capability() Capability { return o.caps }

// Connected returns the number of inputs connected to o.
func (o *Output) Connected() int { return len(o.conns) }

// Allocated reports whether o currently holds a pool chunk.
func (o *Output) Allocated() bool { return o.allocated }

// Aliased reports whether o generates into the storage of its first input.
func (o *Output) Aliased() bool { return o.aliased }

// Data returns the block produced by the last successful fill.
func (o *Output) Data() []Sample { return o.data }

// Connect connects in to o. An input connected to another output is moved.
func (o *Output) Connect(in *Input) {
	if in.src == o {
		return
	}
	if in.src != nil {
		in.src.Disconnect(in)
	}
	key := in.caps
	pos := slices.IndexFunc(o.conns, func(c connection) bool { return c.in.caps < key })
	if pos < 0 {
		pos = len(o.conns)
	}
	o.conns = slices.Insert(o.conns, pos, connection{in: in})
	in.src = o
	o.resolve()
}

// Disconnect removes in from o. It panics when in is not connected to o.
func (o *Output) Disconnect(in *Input) {
	if in.src != o {
		panic(misuse("disconnect of an input that is not connected here", o.name))
	}
	pos := slices.IndexFunc(o.conns, func(c connection) bool { return c.in == in })
	o.conns = slices.Delete(o.conns, pos, pos+1)
	in.src = nil
	o.resolve()
}

// DisconnectAll removes every input and releases the pool chunk. A chunk
// holding the block memoized for the current sequence is released by the
// next generate or Resize instead.
func (o *Output) DisconnectAll() {
	for i := range o.conns {
		o.conns[i].in.src = nil
	}
	clear(o.conns)
	o.conns = o.conns[:0]
	o.resolve()
}

// resolve fixes the pool chunk and the delivery strategy of every
// connection after the fan-out list changed.
func (o *Output) resolve() {
	provided := o.caps.ProvidesOutputBuffer()
	needAlloc := !provided && len(o.conns) > 0 && !o.conns[0].in.caps.ProvidesInputBuffer()

	if needAlloc != o.allocated {
		if o.allocated {
			if o.filled && sameBuffer(o.data, o.owned.Data) {
				// Inputs connected later in this block still read the
				// memoized data; keep the chunk until the next generate,
				// even when no input is left.
				o.stale = o.owned
			} else {
				o.g.alloc.Release(o.owned)
			}
			o.owned = chunkalloc.Chunk{}
			o.allocated = false
		} else {
			if o.stale.Valid() {
				o.owned, o.stale = o.stale, chunkalloc.Chunk{}
			} else {
				o.owned = o.g.alloc.Allocate()
			}
			o.allocated = true
		}
	}
	o.aliased = !provided && !needAlloc && len(o.conns) > 0

	for i := range o.conns {
		c := &o.conns[i]
		switch {
		case !c.in.caps.NeedsCopy():
			c.mode = deliverNone
		case i == 0 && o.aliased:
			c.mode = deliverAliased
		case o.silent:
			c.mode = deliverZero
		default:
			c.mode = deliverCopy
		}
	}
}

func (o *Output) dropStale() {
	if o.stale.Valid() {
		o.g.alloc.Release(o.stale)
		o.stale = chunkalloc.Chunk{}
	}
}

// buffer returns the storage to generate into for this block.
func (o *Output) buffer() []Sample {
	switch {
	case o.allocated:
		return o.owned.Data
	case o.aliased:
		// Host buffers are rebound every callback.
		return o.conns[0].in.sink.ProvidedBuffer()
	}
	return nil
}

// Fill generates the block for b.Seq unless it was already produced and
// delivers it to every input that needs a copy and has not received it yet.
// A failed generate is not memoized, so a retry in the same block
// recomputes it; inputs connected in between still get their copy.
func (o *Output) Fill(b *Block) error {
	if !o.filled || o.seq != b.Seq {
		o.dropStale()
		data, err := o.gen.Generate(b, o.buffer())
		if err != nil {
			return err
		}
		o.data = data
		o.seq = b.Seq
		o.filled = true
	}
	return o.deliver(o.data, b.Seq)
}

// deliver walks the fan-out list from the front and stops at the first
// input that takes no copies; the sort order guarantees none follow.
func (o *Output) deliver(data []Sample, seq uint64) error {
	var first error
	for i := range o.conns {
		c := &o.conns[i]
		if c.delivered && c.seq == seq {
			continue
		}
		var err error
		switch c.mode {
		case deliverNone:
			return first
		case deliverAliased:
			pb := c.in.sink.ProvidedBuffer()
			if !sameBuffer(pb, data) {
				err = c.in.sink.CopyIn(data)
			}
		case deliverZero:
			err = c.in.sink.Zero()
		case deliverCopy:
			err = c.in.sink.CopyIn(data)
		}
		if err != nil {
			if first == nil {
				first = err
			}
			continue
		}
		c.seq = seq
		c.delivered = true
	}
	return first
}

func sameBuffer(a, b []Sample) bool {
	return len(a) > 0 && len(b) > 0 && &a[0] == &b[0]
}
