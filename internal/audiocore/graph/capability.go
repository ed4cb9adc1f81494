package graph

import "strings"

// Capability describes the buffer ownership contract of one end of a
// connection. It is a property of the node implementation and never
// changes while the node exists.
type Capability uint8

const (
	// InputUsesOutputBuffer is the default for inputs: the node reads
	// whatever buffer the connected output exposes.
	InputUsesOutputBuffer Capability = 0

	// InputProvidesBuffer marks an input that exposes its own storage, so an
	// output may generate straight into it.
	InputProvidesBuffer Capability = 1 << 0

	// InputNeedsCopy marks an input that must be handed data by copy or by
	// zero fill.
	InputNeedsCopy Capability = 1 << 1

	// OutputProvidesBuffer marks an output that brings its own storage and
	// never needs a pool chunk.
	OutputProvidesBuffer Capability = 1 << 2

	inputMask = InputProvidesBuffer | InputNeedsCopy
)

// ProvidesInputBuffer reports whether the input exposes its own storage.
func (c Capability) ProvidesInputBuffer() bool { return c&InputProvidesBuffer != 0 }

// NeedsCopy reports whether the input must receive data by copy or zero fill.
func (c Capability) NeedsCopy() bool { return c&InputNeedsCopy != 0 }

// ProvidesOutputBuffer reports whether the output brings its own storage.
func (c Capability) ProvidesOutputBuffer() bool { return c&OutputProvidesBuffer != 0 }

// Input returns the input half of the mask; fan-out lists sort on it.
func (c Capability) Input() Capability { return c & inputMask }

func (c Capability) String() string {
	if c == 0 {
		return "uses-output-buffer"
	}
	var parts []string
	if c.ProvidesInputBuffer() {
		parts = append(parts, "provides-input-buffer")
	}
	if c.NeedsCopy() {
		parts = append(parts, "needs-copy")
	}
	if c.ProvidesOutputBuffer() {
		parts = append(parts, "provides-output-buffer")
	}
	return strings.Join(parts, "|")
}
