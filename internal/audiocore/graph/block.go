package graph

import "strings"

// Condition is a bitmask of recoverable buffer conditions.
type Condition uint8

const (
	// ConditionEmpty means a node had nothing to play.
	ConditionEmpty Condition = 1 << iota
	// ConditionFull means a node could not store recorded data.
	ConditionFull
)

func (c Condition) String() string {
	if c == 0 {
		return "none"
	}
	var parts []string
	if c&ConditionEmpty != 0 {
		parts = append(parts, "empty")
	}
	if c&ConditionFull != 0 {
		parts = append(parts, "full")
	}
	return strings.Join(parts, "|")
}

// Block is the per-callback context handed down the pull chain. The driver
// owns a single Block and reuses it for every callback.
type Block struct {
	// Seq is incremented once per host callback; outputs compute at most
	// once per value.
	Seq    uint64
	raised Condition
}

// Begin starts a new callback.
func (b *Block) Begin() {
	b.Seq++
	b.raised = 0
}

// Raise records a condition that a node absorbed while still producing
// data, such as a crossfade slot whose source ran dry.
func (b *Block) Raise(c Condition) {
	b.raised |= c
}

// Raised returns the absorbed conditions and clears them.
func (b *Block) Raised() Condition {
	c := b.raised
	b.raised = 0
	return c
}
