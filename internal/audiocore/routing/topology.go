package routing

import (
	"strings"

	"github.com/tphakala/audioroute/internal/errors"
)

// Mode is a playback mode as selected by a user: the playback bits plus
// the playback-to-input flag.
type Mode uint8

const (
	ModeMuted Mode = iota
	ModePlayback
	ModePlaybackToInput
	ModeDirect
	ModePassthrough
)

var modeNames = [...]string{
	ModeMuted:           "muted",
	ModePlayback:        "playback",
	ModePlaybackToInput: "playback-to-input",
	ModeDirect:          "direct",
	ModePassthrough:     "passthrough",
}

func (m Mode) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}
	return "invalid"
}

func (m Mode) bits() (playback Word, toInput, ok bool) {
	switch m {
	case ModeMuted:
		return Muted, false, true
	case ModePlayback:
		return Playback, false, true
	case ModePlaybackToInput:
		return Playback, true, true
	case ModeDirect:
		return Direct, false, true
	case ModePassthrough:
		return Passthrough, false, true
	}
	return 0, false, false
}

// Word returns the playback bits and to-input flag that encode m.
func (m Mode) Word() Word {
	bits, toInput, _ := m.bits()
	if toInput {
		bits |= ToInput
	}
	return bits
}

// ModeOf returns the user-level mode encoded in w.
func ModeOf(w Word) Mode {
	switch w.Playback() {
	case Playback:
		if w.ToInput() {
			return ModePlaybackToInput
		}
		return ModePlayback
	case Direct:
		return ModeDirect
	case Passthrough:
		return ModePassthrough
	}
	return ModeMuted
}

// ParseMode parses a mode name as used in configuration files.
func ParseMode(s string) (Mode, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for m, n := range modeNames {
		if n == name {
			return Mode(m), nil
		}
	}
	return 0, invalidName("playback mode", s)
}

// ParseRecord parses a record mode name: none, input or output.
func ParseRecord(s string) (Word, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "off":
		return 0, nil
	case "input":
		return RecordInput, nil
	case "output":
		return RecordOutput, nil
	}
	return 0, invalidName("record mode", s)
}

// RecordName returns the configuration name of a record mode.
func RecordName(w Word) string {
	switch w.Record() {
	case RecordInput:
		return "input"
	case RecordOutput:
		return "output"
	}
	return "none"
}

// RecordSource is the position of the switch feeding the recorder.
type RecordSource uint8

const (
	RecordNone RecordSource = iota
	RecordFromInput
	RecordFromOutput
)

// TestSource is the position of the switch feeding the test processor.
type TestSource uint8

const (
	TestBypassed TestSource = iota
	TestFromInput
	TestFromPlayback
)

// OutputSource is the position of the switch feeding the host output.
type OutputSource uint8

const (
	OutputSilence OutputSource = iota
	OutputPlayback
	OutputTest
	OutputPassthrough
)

// Selection is the graph topology derived from a routing word.
type Selection struct {
	Record RecordSource
	Test   TestSource
	Output OutputSource
}

// Lookup maps a routing word to switch positions. The test processor is
// only fed when something consumes its output.
func Lookup(w Word) Selection {
	var sel Selection
	switch w.Record() {
	case RecordInput:
		sel.Record = RecordFromInput
	case RecordOutput:
		sel.Record = RecordFromOutput
	}

	idleTest := TestBypassed
	if sel.Record == RecordFromOutput {
		idleTest = TestFromInput
	}

	switch ModeOf(w) {
	case ModeMuted:
		sel.Test, sel.Output = idleTest, OutputSilence
	case ModePlayback:
		sel.Test, sel.Output = idleTest, OutputPlayback
	case ModePlaybackToInput:
		sel.Test, sel.Output = TestFromPlayback, OutputTest
	case ModeDirect:
		sel.Test, sel.Output = TestFromInput, OutputTest
	case ModePassthrough:
		sel.Test, sel.Output = idleTest, OutputPassthrough
	}
	return sel
}

// LookupFading is Lookup for a block in which the output switch is still
// fading away from the previous playback mode: a test path the new mode
// bypasses stays fed from the previous mode's source.
func LookupFading(w Word) Selection {
	sel := Lookup(w)
	if sel.Test == TestBypassed && !w.Settled() {
		sel.Test = Lookup(w.PrevWord()).Test
	}
	return sel
}

func invalidName(what, name string) error {
	return errors.Newf("unknown %s %q", what, name).
		Component(ComponentRouting).
		Category(errors.CategoryValidation).
		Build()
}
