package graph

import (
	"github.com/tphakala/audioroute/internal/errors"
)

// ComponentGraph identifies node graph errors
const ComponentGraph = "audiocore.graph"

// Recoverable conditions. They are built once so returning them from the
// audio thread never allocates.
var (
	// ErrBufferEmpty is returned when a source has no data to play
	ErrBufferEmpty = errors.Newf("buffer empty").
			Component(ComponentGraph).
			Category(errors.CategoryBuffer).
			Context("condition", "empty").
			Build()

	// ErrBufferFull is returned when a sink cannot store more data
	ErrBufferFull = errors.Newf("buffer full").
			Component(ComponentGraph).
			Category(errors.CategoryBuffer).
			Context("condition", "full").
			Build()
)

// ConditionOf maps err to the recoverable conditions it carries. It returns
// zero for nil and for errors that are not recoverable.
func ConditionOf(err error) Condition {
	switch err {
	case nil:
		return 0
	case error(ErrBufferEmpty):
		return ConditionEmpty
	case error(ErrBufferFull):
		return ConditionFull
	}
	var c Condition
	if errors.Is(err, ErrBufferEmpty) {
		c |= ConditionEmpty
	}
	if errors.Is(err, ErrBufferFull) {
		c |= ConditionFull
	}
	return c
}

// ErrorFor returns the sentinel for a single condition.
func ErrorFor(c Condition) error {
	switch {
	case c&ConditionEmpty != 0:
		return ErrBufferEmpty
	case c&ConditionFull != 0:
		return ErrBufferFull
	}
	return nil
}

// misuse builds the error a programming mistake panics with.
func misuse(msg, node string) *errors.EnhancedError {
	return errors.Newf("%s", msg).
		Component(ComponentGraph).
		Category(errors.CategoryGraph).
		Priority(errors.PriorityCritical).
		Context("node", node).
		Build()
}
