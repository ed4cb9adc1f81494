package routing

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestState(t *testing.T, w Word) *State {
	t.Helper()
	s, err := NewState(w)
	require.NoError(t, err)
	return s
}

func TestLookupAllModes(t *testing.T) {
	t.Parallel()

	type row struct {
		mode   Mode
		record Word
		want   Selection
	}
	var rows []row
	add := func(m Mode, rec Word, test TestSource, out OutputSource, src RecordSource) {
		rows = append(rows, row{m, rec, Selection{Record: src, Test: test, Output: out}})
	}
	// record none
	add(ModeMuted, 0, TestBypassed, OutputSilence, RecordNone)
	add(ModePlayback, 0, TestBypassed, OutputPlayback, RecordNone)
	add(ModePlaybackToInput, 0, TestFromPlayback, OutputTest, RecordNone)
	add(ModeDirect, 0, TestFromInput, OutputTest, RecordNone)
	add(ModePassthrough, 0, TestBypassed, OutputPassthrough, RecordNone)
	// record input
	add(ModeMuted, RecordInput, TestBypassed, OutputSilence, RecordFromInput)
	add(ModePlayback, RecordInput, TestBypassed, OutputPlayback, RecordFromInput)
	add(ModePlaybackToInput, RecordInput, TestFromPlayback, OutputTest, RecordFromInput)
	add(ModeDirect, RecordInput, TestFromInput, OutputTest, RecordFromInput)
	add(ModePassthrough, RecordInput, TestBypassed, OutputPassthrough, RecordFromInput)
	// record output keeps the test path fed
	add(ModeMuted, RecordOutput, TestFromInput, OutputSilence, RecordFromOutput)
	add(ModePlayback, RecordOutput, TestFromInput, OutputPlayback, RecordFromOutput)
	add(ModePlaybackToInput, RecordOutput, TestFromPlayback, OutputTest, RecordFromOutput)
	add(ModeDirect, RecordOutput, TestFromInput, OutputTest, RecordFromOutput)
	add(ModePassthrough, RecordOutput, TestFromInput, OutputPassthrough, RecordFromOutput)

	require.Len(t, rows, 15)
	for _, r := range rows {
		t.Run(r.mode.String()+"/"+RecordName(r.record), func(t *testing.T) {
			t.Parallel()
			s := newTestState(t, r.record)
			require.NoError(t, s.SetMode(r.mode))
			w := s.Load()
			assert.Equal(t, r.mode, ModeOf(w))
			assert.Equal(t, r.want, Lookup(w))
			// flags and commands never change the topology
			assert.Equal(t, r.want, Lookup(w|Repeat|ClearBuffer|PlaybackReset))
		})
	}
}

func TestRecordInputPassthrough(t *testing.T) {
	t.Parallel()

	sel := Lookup(RecordInput | Passthrough)
	assert.Equal(t, Selection{Record: RecordFromInput, Test: TestBypassed, Output: OutputPassthrough}, sel)
}

func TestSetModeKeepsPrevious(t *testing.T) {
	t.Parallel()

	s := newTestState(t, Direct)
	assert.True(t, s.Load().Settled())

	require.NoError(t, s.SetMode(ModePlaybackToInput))
	w := s.Load()
	assert.Equal(t, Playback|ToInput, w&ModeMask)
	assert.Equal(t, Direct, w.Prev())
	assert.False(t, w.Settled())

	// same mode again leaves the previous field alone
	require.NoError(t, s.SetMode(ModePlaybackToInput))
	assert.Equal(t, Direct, s.Load().Prev())

	require.NoError(t, s.SetPlayback(Muted))
	w = s.Load()
	assert.Equal(t, ModeMuted, ModeOf(w))
	assert.True(t, w.ToInput(), "SetPlayback keeps the to-input flag")
	assert.Equal(t, Playback|ToInput, w.Prev())

	w = s.ClearPrev()
	assert.True(t, w.Settled())
	assert.Equal(t, w, s.Load())

	s.SetToInput(false)
	assert.Equal(t, Muted|ToInput, s.Load().Prev())
}

func TestLookupFadingKeepsPreviousTestSource(t *testing.T) {
	t.Parallel()

	s := newTestState(t, 0)
	require.NoError(t, s.SetMode(ModePlaybackToInput))
	s.ClearPrev()
	require.NoError(t, s.SetMode(ModeMuted))

	w := s.Load()
	assert.Equal(t, TestBypassed, Lookup(w).Test)
	assert.Equal(t, TestFromPlayback, LookupFading(w).Test)
	assert.Equal(t, OutputSilence, LookupFading(w).Output)

	w = s.ClearPrev()
	assert.Equal(t, TestBypassed, LookupFading(w).Test)
}

func TestSettersRejectInvalidBits(t *testing.T) {
	t.Parallel()

	s := newTestState(t, 0)
	assert.Error(t, s.SetPlayback(Playback|Direct))
	assert.Error(t, s.SetPlayback(RecordInput))
	assert.Error(t, s.SetRecord(RecordMask))
	assert.Error(t, s.SetRecord(Repeat))
	assert.Error(t, s.SetMode(Mode(9)))
	assert.Error(t, s.Command(Repeat))
	assert.Error(t, s.Command(0))
	assert.Equal(t, Word(0), s.Load())

	_, err := NewState(RecordMask)
	assert.Error(t, err)
	_, err = NewState(Direct | Passthrough)
	assert.Error(t, err)
}

func TestRecordAndFlags(t *testing.T) {
	t.Parallel()

	s := newTestState(t, Playback)
	require.NoError(t, s.SetRecord(RecordInput))
	require.NoError(t, s.SetRecord(RecordOutput))
	assert.Equal(t, RecordOutput, s.Load().Record())
	assert.True(t, s.Load().Recording())
	require.NoError(t, s.SetRecord(0))
	assert.False(t, s.Load().Recording())

	s.SetRepeat(true)
	assert.True(t, s.Load().Repeat())
	s.SetRepeat(false)
	assert.False(t, s.Load().Repeat())
	assert.True(t, s.Load().Playing())
}

func TestTakeCommandsDrainsOnce(t *testing.T) {
	t.Parallel()

	s := newTestState(t, Playback|Repeat)
	assert.Zero(t, s.TakeCommands())

	require.NoError(t, s.Command(ClearBuffer))
	require.NoError(t, s.Command(PlaybackReset))
	assert.Equal(t, ClearBuffer|PlaybackReset, s.TakeCommands())
	assert.Zero(t, s.TakeCommands())
	assert.Equal(t, Playback|Repeat, s.Load()&CurrentMask)
}

func TestConcurrentControlAndAudioThread(t *testing.T) {
	t.Parallel()

	s := newTestState(t, 0)
	const rounds = 2000
	modes := []Mode{ModeMuted, ModePlayback, ModePlaybackToInput, ModeDirect, ModePassthrough}
	records := []Word{0, RecordInput, RecordOutput}

	var wg sync.WaitGroup
	wg.Go(func() {
		for i := range rounds {
			_ = s.SetMode(modes[i%len(modes)])
			_ = s.SetRecord(records[i%len(records)])
			s.SetRepeat(i%2 == 0)
		}
	})

	// commands are posted one at a time and must be seen exactly once
	taken := 0
	for range rounds / 10 {
		require.NoError(t, s.Command(PlaybackReset))
		for {
			w := s.Load()
			require.True(t, w.Valid(), "word %#x", uint32(w))
			if cmds := s.TakeCommands(); cmds != 0 {
				assert.Equal(t, PlaybackReset, cmds)
				taken++
				break
			}
		}
	}
	wg.Wait()

	assert.Equal(t, rounds/10, taken)
	assert.True(t, s.Load().Valid())
}

func TestParse(t *testing.T) {
	t.Parallel()

	for _, m := range []Mode{ModeMuted, ModePlayback, ModePlaybackToInput, ModeDirect, ModePassthrough} {
		got, err := ParseMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
	_, err := ParseMode("loud")
	assert.Error(t, err)

	for _, w := range []Word{0, RecordInput, RecordOutput} {
		got, err := ParseRecord(RecordName(w))
		require.NoError(t, err)
		assert.Equal(t, w, got)
	}
	_, err = ParseRecord("both")
	assert.Error(t, err)

	assert.Equal(t, "direct+record-input+repeat", (Direct | RecordInput | Repeat).String())
}

func TestModeWordRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		mode Mode
		want Word
	}{
		{ModeMuted, Muted},
		{ModePlayback, Playback},
		{ModePlaybackToInput, Playback | ToInput},
		{ModeDirect, Direct},
		{ModePassthrough, Passthrough},
	}
	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			t.Parallel()
			w := tt.mode.Word()
			assert.Equal(t, tt.want, w)
			assert.True(t, w.Valid())
			assert.Equal(t, tt.mode, ModeOf(w))
		})
	}
}
