package crossfade

import (
	"github.com/tphakala/audioroute/internal/audiocore/graph"
)

// Switch routes one input to a selectable source. With fading enabled a
// change of source goes through a Crossfader; otherwise the input is
// reconnected directly.
//
// While fading, the input is connected to the crossfader output and the
// sources are connected to crossfader slots. Settle must be called between
// blocks to release faded-out sources and to reconnect the input directly
// once the fade is over.
type Switch struct {
	input *graph.Input
	xf    *Crossfader
}

// NewSwitch creates a switch for input. A nil xf makes every change
// immediate.
func NewSwitch(input *graph.Input, xf *Crossfader) *Switch {
	return &Switch{input: input, xf: xf}
}

// Input returns the switched input.
func (s *Switch) Input() *graph.Input { return s.input }

// Crossfader returns the switch's crossfader, or nil.
func (s *Switch) Crossfader() *Crossfader { return s.xf }

// Crossfading reports whether the input is fed by the crossfader.
func (s *Switch) Crossfading() bool {
	return s.xf != nil && s.input.Connected() == s.xf.Out
}

// Current returns the selected source: the one fading in while crossfading,
// the directly connected output otherwise.
func (s *Switch) Current() *graph.Output {
	if s.Crossfading() {
		return s.xf.CurrentSource()
	}
	return s.input.Connected()
}

// Connect selects src. A nil src disconnects the input immediately.
func (s *Switch) Connect(src *graph.Output) {
	if src == nil {
		s.Disconnect()
		return
	}
	s.Settle()
	if s.xf == nil {
		src.Connect(s.input)
		return
	}
	if s.Crossfading() {
		if s.xf.CurrentSource() != src {
			s.xf.Add(src)
		}
		return
	}
	prev := s.input.Connected()
	if prev == src {
		return
	}
	s.xf.Begin(src, prev)
	s.xf.Out.Connect(s.input)
}

// Disconnect drops the input and abandons any fade.
func (s *Switch) Disconnect() {
	if s.Crossfading() {
		s.xf.Reset()
	}
	s.input.Disconnect()
}

// Settle releases sources that faded out and, when the fade finished,
// connects the input directly to the surviving source (or leaves it
// disconnected if the fade was aborted). It reports whether a fade was
// collapsed. Not to be called while a block is being filled.
func (s *Switch) Settle() bool {
	if !s.Crossfading() {
		return false
	}
	if !s.xf.Finished() {
		s.xf.releaseFaded()
		return false
	}
	cur := s.xf.current
	s.xf.Reset()
	if cur != nil {
		cur.Connect(s.input)
	} else {
		s.input.Disconnect()
	}
	return true
}

// Reset abandons any fade and connects the input straight to the source
// that was fading in. Used when the fade length changes.
func (s *Switch) Reset() {
	if !s.Crossfading() {
		return
	}
	cur := s.xf.CurrentSource()
	s.xf.Reset()
	if cur != nil {
		cur.Connect(s.input)
	} else {
		s.input.Disconnect()
	}
}
