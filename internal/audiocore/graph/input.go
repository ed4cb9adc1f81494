package graph

// Input is the consuming end of a connection.
type Input struct {
	name string
	caps Capability
	sink Sink
	src  *Output
}

// Name returns the input's name.
func (in *Input) Name() string { return in.name }

// Capability returns the input's capability mask.
func (in *Input) Capability() Capability { return in.caps }

// Connected returns the output in is connected to, or nil.
func (in *Input) Connected() *Output { return in.src }

// Disconnect detaches in from its output, if any.
func (in *Input) Disconnect() {
	if in.src != nil {
		in.src.Disconnect(in)
	}
}

// Fill makes the connected output produce the current block. An
// unconnected input with a sink receives silence.
func (in *Input) Fill(b *Block) error {
	if in.src != nil {
		return in.src.Fill(b)
	}
	if in.sink != nil && in.caps.NeedsCopy() {
		return in.sink.Zero()
	}
	panic(misuse("fill of an unconnected input", in.name))
}

// Chunk returns the block the connected output produced. Valid after a
// successful Fill for the current block.
func (in *Input) Chunk() []Sample {
	if in.src == nil {
		return nil
	}
	return in.src.data
}
