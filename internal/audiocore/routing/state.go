// Package routing holds the atomic routing state word shared between the
// control surface and the audio thread, and the pure mapping from that word
// to the switch positions of the graph.
//
// Control contexts only ever mutate the word through the setters below.
// The audio thread drains one-shot commands with TakeCommands and derives
// the topology with Lookup whenever the word changed.
package routing

import (
	"strings"
	"sync/atomic"

	"github.com/tphakala/audioroute/internal/errors"
)

// ComponentRouting identifies routing errors
const ComponentRouting = "audiocore.routing"

// Word is the packed routing state.
type Word uint32

// Playback mode bits. At most one is set; none means muted.
const (
	Muted        Word = 0x0
	Playback     Word = 0x1
	Direct       Word = 0x2
	Passthrough  Word = 0x4
	PlaybackMask      = Playback | Direct | Passthrough
)

// Record mode bits. At most one is set.
const (
	RecordOutput Word = 0x8
	RecordInput  Word = 0x10
	RecordMask        = RecordOutput | RecordInput
)

// Flags set by the control surface.
const (
	Repeat    Word = 0x20 // rewind instead of stopping when playback runs dry
	ToInput   Word = 0x40 // play the recording into the test path
	FlagsMask      = Repeat | ToInput
)

// One-shot commands, cleared by the audio thread when acted upon.
const (
	ClearBuffer   Word = 0x80
	PlaybackReset Word = 0x100
	CommandsMask       = ClearBuffer | PlaybackReset
)

const (
	// CurrentMask covers every bit except the previous mode.
	CurrentMask = PlaybackMask | RecordMask | FlagsMask | CommandsMask
	// ModeMask covers the bits that make up a user-level Mode.
	ModeMask = PlaybackMask | ToInput
	// PrevShift positions the previous mode above CurrentMask.
	PrevShift = 16
	// PrevMask covers the previous mode.
	PrevMask = ModeMask << PrevShift
)

// Playback returns the playback mode bits.
func (w Word) Playback() Word { return w & PlaybackMask }

// Record returns the record mode bits.
func (w Word) Record() Word { return w & RecordMask }

// Prev returns the mode bits (playback and to-input) in effect before the
// last mode change.
func (w Word) Prev() Word { return (w & PrevMask) >> PrevShift }

// PrevWord returns w with its mode replaced by the previous one.
func (w Word) PrevWord() Word { return w&^(ModeMask|PrevMask) | w.Prev() }

// Settled reports whether the previous mode equals the current one.
func (w Word) Settled() bool { return w.Prev() == w&ModeMask }

// Commands returns the pending one-shot commands.
func (w Word) Commands() Word { return w & CommandsMask }

// Repeat reports whether the repeat flag is set.
func (w Word) Repeat() bool { return w&Repeat != 0 }

// ToInput reports whether the playback-to-input flag is set.
func (w Word) ToInput() bool { return w&ToInput != 0 }

// Recording reports whether any record mode is selected.
func (w Word) Recording() bool { return w&RecordMask != 0 }

// Playing reports whether the recording is being played back.
func (w Word) Playing() bool { return w&Playback != 0 }

// Valid reports whether w encodes a single playback mode and a single
// record mode.
func (w Word) Valid() bool {
	switch w.Playback() {
	case Muted, Playback, Direct, Passthrough:
	default:
		return false
	}
	switch w.Prev() & PlaybackMask {
	case Muted, Playback, Direct, Passthrough:
	default:
		return false
	}
	return w.Record() != RecordMask && w&^(CurrentMask|PrevMask) == 0
}

func (w Word) String() string {
	var b strings.Builder
	b.WriteString(ModeOf(w).String())
	switch w.Record() {
	case RecordInput:
		b.WriteString("+record-input")
	case RecordOutput:
		b.WriteString("+record-output")
	case RecordMask:
		b.WriteString("+record-invalid")
	}
	if w.Repeat() {
		b.WriteString("+repeat")
	}
	if w&ClearBuffer != 0 {
		b.WriteString("+clear")
	}
	if w&PlaybackReset != 0 {
		b.WriteString("+reset")
	}
	return b.String()
}

// State is the atomically shared routing word.
type State struct {
	word atomic.Uint32
}

// NewState creates a state holding initial.
func NewState(initial Word) (*State, error) {
	if !initial.Valid() {
		return nil, invalid("initial routing state", initial)
	}
	s := &State{}
	s.word.Store(uint32(initial&^PrevMask | (initial&ModeMask)<<PrevShift))
	return s, nil
}

// Load returns the current word.
func (s *State) Load() Word {
	return Word(s.word.Load())
}

// ClearAndSet atomically clears then sets bits and returns the new word.
// Latest write wins; no ordering with other memory is implied.
func (s *State) ClearAndSet(clearBits, setBits Word) Word {
	for {
		old := s.word.Load()
		next := old&^uint32(clearBits) | uint32(setBits)
		if s.word.CompareAndSwap(old, next) {
			return Word(next)
		}
	}
}

// SetPlayback selects playback mode bits, keeping the to-input flag. When
// the mode actually changes the outgoing mode is kept in the previous-mode
// field.
func (s *State) SetPlayback(mode Word) error {
	if mode&^PlaybackMask != 0 || !mode.Valid() {
		return invalid("playback mode", mode)
	}
	s.swapMode(func(cur Word) Word { return cur&^PlaybackMask | mode })
	return nil
}

// SetMode selects a playback mode together with its to-input flag in a
// single update.
func (s *State) SetMode(m Mode) error {
	bits, toInput, ok := m.bits()
	if !ok {
		return invalid("mode", Word(m))
	}
	if toInput {
		bits |= ToInput
	}
	s.swapMode(func(Word) Word { return bits })
	return nil
}

// SetToInput sets or clears the playback-to-input flag.
func (s *State) SetToInput(on bool) {
	s.swapMode(func(cur Word) Word {
		if on {
			return cur | ToInput
		}
		return cur &^ ToInput
	})
}

// swapMode replaces the mode bits with next(current) and, if they changed,
// moves the outgoing mode into the previous-mode field.
func (s *State) swapMode(next func(cur Word) Word) {
	for {
		old := Word(s.word.Load())
		cur := old & ModeMask
		mode := next(cur)
		if mode == cur {
			return
		}
		w := old&^(ModeMask|PrevMask) | cur<<PrevShift | mode
		if s.word.CompareAndSwap(uint32(old), uint32(w)) {
			return
		}
	}
}

// SetRecord selects a record mode: 0, RecordInput or RecordOutput.
func (s *State) SetRecord(mode Word) error {
	if mode&^RecordMask != 0 || mode == RecordMask {
		return invalid("record mode", mode)
	}
	s.ClearAndSet(RecordMask, mode)
	return nil
}

// SetRepeat sets or clears the repeat flag.
func (s *State) SetRepeat(on bool) {
	if on {
		s.ClearAndSet(0, Repeat)
	} else {
		s.ClearAndSet(Repeat, 0)
	}
}

// Command posts one-shot commands for the audio thread.
func (s *State) Command(cmd Word) error {
	if cmd&^CommandsMask != 0 || cmd == 0 {
		return invalid("command", cmd)
	}
	s.ClearAndSet(0, cmd)
	return nil
}

// TakeCommands atomically reads and clears the pending commands. Only the
// audio thread calls it, so a command is acted upon exactly once.
func (s *State) TakeCommands() Word {
	for {
		old := s.word.Load()
		cmds := Word(old) & CommandsMask
		if cmds == 0 || s.word.CompareAndSwap(old, old&^uint32(CommandsMask)) {
			return cmds
		}
	}
}

// ClearPrev makes the previous playback mode equal to the current one, which
// marks the fade away from it as settled.
func (s *State) ClearPrev() Word {
	for {
		old := Word(s.word.Load())
		next := old&^PrevMask | (old&ModeMask)<<PrevShift
		if next == old || s.word.CompareAndSwap(uint32(old), uint32(next)) {
			return next
		}
	}
}

func invalid(what string, w Word) *errors.EnhancedError {
	return errors.Newf("invalid %s", what).
		Component(ComponentRouting).
		Category(errors.CategoryValidation).
		Context("bits", uint32(w)).
		Build()
}
