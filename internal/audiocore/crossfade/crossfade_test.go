package crossfade

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/audioroute/internal/audiocore/chunkalloc"
	"github.com/tphakala/audioroute/internal/audiocore/graph"
)

const testFrames = 4

type source struct {
	out *graph.Output
	val Sample
	err error
}

func newSource(g *graph.Graph, name string, val Sample) *source {
	s := &source{val: val}
	s.out = g.NewOutput(name, 0, graph.GeneratorFunc(func(_ *graph.Block, out []Sample) ([]Sample, error) {
		if s.err != nil {
			return nil, s.err
		}
		for i := range out {
			out[i] = s.val
		}
		return out, nil
	}))
	return s
}

type fixture struct {
	g    *graph.Graph
	xf   *Crossfader
	sink *graph.Input
	b    graph.Block
}

func newFixture(t *testing.T, duration int) *fixture {
	t.Helper()
	g, err := graph.New(testFrames, chunkalloc.DefaultConfig())
	require.NoError(t, err)
	f := &fixture{g: g, xf: New(g, "test", duration)}
	f.sink = g.NewInput("sink", graph.InputUsesOutputBuffer, nil)
	return f
}

// pull runs one block through the sink and returns a copy of the result.
func (f *fixture) pull(t *testing.T) []Sample {
	t.Helper()
	f.b.Begin()
	require.NoError(t, f.sink.Fill(&f.b))
	return append([]Sample(nil), f.sink.Chunk()...)
}

type slotState struct {
	src   *graph.Output
	count int
	dir   int
}

func (f *fixture) setSlots(states ...slotState) {
	f.xf.active = 0
	for i, st := range states {
		s := &f.xf.slots[i]
		s.count, s.dir = st.count, st.dir
		if st.src != nil {
			st.src.Connect(s.in)
		}
		f.xf.active += abs(st.dir)
	}
}

func (f *fixture) counts() (counts, dirs [MaxSources]int) {
	for i, s := range f.xf.slots {
		counts[i], dirs[i] = s.count, s.dir
	}
	return
}

func TestDurationForRate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 960, DurationForRate(48000))
	assert.Equal(t, 882, DurationForRate(44100))
	assert.Equal(t, 1, DurationForRate(10))
}

func TestBeginFadesOverExactlyDuration(t *testing.T) {
	t.Parallel()

	const duration = 3 * testFrames
	f := newFixture(t, duration)
	a := newSource(f.g, "a", 1)
	b := newSource(f.g, "b", 0)
	f.xf.Out.Connect(f.sink)

	f.xf.Begin(a.out, b.out)
	assert.Same(t, a.out, f.xf.CurrentSource())
	assert.Equal(t, 2, f.xf.Active())

	var got []Sample
	for range duration / testFrames {
		got = append(got, f.pull(t)...)
	}
	for i, v := range got {
		assert.InDelta(t, float64(i)/duration, v, 1e-6, "frame %d", i)
	}

	assert.Zero(t, f.xf.Active())
	assert.True(t, f.xf.Finished())
	assert.Same(t, a.out, f.xf.CurrentSource())
	counts, dirs := f.counts()
	assert.Equal(t, [MaxSources]int{duration, 0, 0, 0}, counts)
	assert.Equal(t, [MaxSources]int{}, dirs)

	f.xf.releaseFaded()
	assert.Zero(t, b.out.Connected(), "faded out source is released")
	assert.Equal(t, 1, a.out.Connected())

	// full volume from here on
	assert.Equal(t, []Sample{1, 1, 1, 1}, f.pull(t))
}

func TestFadeKeepsConstantSumForEqualSources(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 10)
	a := newSource(f.g, "a", 0.5)
	b := newSource(f.g, "b", 0.5)
	f.xf.Out.Connect(f.sink)
	f.xf.Begin(a.out, b.out)

	for range 4 {
		for _, v := range f.pull(t) {
			assert.InDelta(t, 0.5, v, 1e-6)
		}
	}
}

func TestAddPicksSlot(t *testing.T) {
	t.Parallel()

	const d = 100
	tests := []struct {
		name      string
		states    func(srcs []*graph.Output) []slotState
		wantSlot  int
		wantCount [MaxSources]int
		wantDir   [MaxSources]int
	}{
		{
			name: "first unused slot wins",
			states: func(s []*graph.Output) []slotState {
				return []slotState{{s[0], 50, -1}, {}, {s[1], 10, -1}, {}}
			},
			wantSlot:  1,
			wantCount: [MaxSources]int{50, 0, 10, 0},
			wantDir:   [MaxSources]int{-1, 1, -1, 0},
		},
		{
			name: "quietest slot replaced, lowest index on ties",
			states: func(s []*graph.Output) []slotState {
				return []slotState{{s[0], 50, -1}, {s[1], 30, -1}, {s[2], 30, -1}, {s[3], 70, 1}}
			},
			wantSlot:  1,
			wantCount: [MaxSources]int{50, 0, 30, 70},
			wantDir:   [MaxSources]int{-1, 1, -1, -1},
		},
		{
			name: "fully faded in source fades out",
			states: func(s []*graph.Output) []slotState {
				return []slotState{{s[0], d, 0}, {}, {}, {}}
			},
			wantSlot:  1,
			wantCount: [MaxSources]int{d, 0, 0, 0},
			wantDir:   [MaxSources]int{-1, 1, 0, 0},
		},
		{
			name: "silent fading in source frees its slot",
			states: func(s []*graph.Output) []slotState {
				return []slotState{{s[0], 0, 1}, {s[1], d, -1}, {}, {}}
			},
			wantSlot:  0,
			wantCount: [MaxSources]int{0, d, 0, 0},
			wantDir:   [MaxSources]int{1, -1, 0, 0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t, d)
			srcs := make([]*graph.Output, MaxSources)
			for i := range srcs {
				srcs[i] = newSource(f.g, "src", 0).out
			}
			next := newSource(f.g, "next", 1).out
			f.setSlots(tt.states(srcs)...)

			f.xf.Add(next)

			counts, dirs := f.counts()
			assert.Equal(t, tt.wantCount, counts)
			assert.Equal(t, tt.wantDir, dirs)
			assert.Same(t, next, f.xf.slots[tt.wantSlot].in.Connected())
			assert.Same(t, next, f.xf.CurrentSource())
			active := 0
			for _, dir := range dirs {
				active += abs(dir)
			}
			assert.Equal(t, active, f.xf.Active())
		})
	}
}

func TestAddExistingSourceFadesBackIn(t *testing.T) {
	t.Parallel()

	const d = 100
	f := newFixture(t, d)
	a := newSource(f.g, "a", 1).out
	b := newSource(f.g, "b", 1).out
	f.setSlots(slotState{a, 60, 1}, slotState{b, 40, -1})

	f.xf.Add(b)
	counts, dirs := f.counts()
	assert.Equal(t, [MaxSources]int{60, 40, 0, 0}, counts)
	assert.Equal(t, [MaxSources]int{-1, 1, 0, 0}, dirs)
	assert.Equal(t, 2, f.xf.Active())
	assert.Equal(t, 1, b.Connected(), "no new connection for a source already present")

	// re-adding the fully faded in source leaves it settled
	f2 := newFixture(t, d)
	c := newSource(f2.g, "c", 1).out
	f2.setSlots(slotState{c, d, 0})
	f2.xf.Add(c)
	counts, dirs = f2.counts()
	assert.Equal(t, [MaxSources]int{d, 0, 0, 0}, counts)
	assert.Equal(t, [MaxSources]int{}, dirs)
	assert.Zero(t, f2.xf.Active())
}

func TestFailingSourceDroppedWhileOthersPlay(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 100)
	a := newSource(f.g, "a", 1)
	b := newSource(f.g, "b", 1)
	a.err = graph.ErrBufferEmpty
	f.xf.Out.Connect(f.sink)
	f.xf.Begin(a.out, b.out)

	f.b.Begin()
	require.NoError(t, f.sink.Fill(&f.b))
	assert.Equal(t, graph.ConditionEmpty, f.b.Raised())
	assert.Equal(t, 1, f.xf.Active())
	assert.InDelta(t, 1.0, f.sink.Chunk()[0], 1e-6)

	b.err = graph.ErrBufferEmpty
	f.b.Begin()
	err := f.sink.Fill(&f.b)
	assert.ErrorIs(t, err, graph.ErrBufferEmpty)
	assert.True(t, f.xf.Finished())
	assert.Nil(t, f.xf.CurrentSource())
}

func TestSwitchDirect(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 8)
	a := newSource(f.g, "a", 1).out
	b := newSource(f.g, "b", 2).out
	sw := NewSwitch(f.sink, nil)

	sw.Connect(a)
	assert.Same(t, a, sw.Current())
	assert.False(t, sw.Crossfading())
	sw.Connect(b)
	assert.Same(t, b, f.sink.Connected())
	assert.Zero(t, a.Connected())
	assert.Equal(t, []Sample{2, 2, 2, 2}, f.pull(t))

	sw.Connect(nil)
	assert.Nil(t, f.sink.Connected())
	assert.False(t, sw.Settle())
}

func TestSwitchFadeCollapsesOnSettle(t *testing.T) {
	t.Parallel()

	const duration = 2 * testFrames
	f := newFixture(t, duration)
	a := newSource(f.g, "a", 1).out
	b := newSource(f.g, "b", 1).out
	sw := NewSwitch(f.sink, f.xf)
	assert.Same(t, f.xf, sw.Crossfader())

	a.Connect(f.sink)
	sw.Connect(b)
	assert.True(t, sw.Crossfading())
	assert.Same(t, b, sw.Current())

	f.pull(t)
	assert.False(t, sw.Settle())
	f.pull(t)
	assert.True(t, sw.Settle())

	assert.False(t, sw.Crossfading())
	assert.Same(t, b, f.sink.Connected())
	assert.Zero(t, a.Connected(), "faded out source is released")
	assert.Zero(t, f.xf.Out.Connected())
	assert.Zero(t, f.xf.Active())
}

func TestSwitchRetargetMidFade(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 100)
	a := newSource(f.g, "a", 1).out
	b := newSource(f.g, "b", 1).out
	sw := NewSwitch(f.sink, f.xf)
	a.Connect(f.sink)

	sw.Connect(b)
	f.pull(t)
	sw.Connect(a)
	assert.Same(t, a, sw.Current())
	assert.True(t, sw.Crossfading())

	// selecting the source that is already fading in changes nothing
	sw.Connect(a)
	assert.Equal(t, 2, f.xf.Active())

	sw.Reset()
	assert.False(t, sw.Crossfading())
	assert.Same(t, a, f.sink.Connected())
	assert.Zero(t, b.Connected())
}

func TestSwitchReleasesFadedOutSlots(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 100)
	a := newSource(f.g, "a", 1).out
	b := newSource(f.g, "b", 1).out
	f.setSlots(slotState{a, 50, 1}, slotState{b, testFrames, -1})
	f.xf.Out.Connect(f.sink)
	sw := NewSwitch(f.sink, f.xf)

	f.pull(t)
	assert.Equal(t, 1, b.Connected(), "release waits for the block to end")
	assert.False(t, sw.Settle())
	assert.Zero(t, b.Connected())
	assert.Equal(t, 1, f.xf.Active())
}

func TestSetDurationDuringFadePanics(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 100)
	a := newSource(f.g, "a", 1).out
	f.xf.Begin(a, nil)
	assert.Panics(t, func() { f.xf.SetDuration(10) })

	f.xf.Reset()
	f.xf.SetDuration(10)
	assert.Equal(t, 10, f.xf.Duration())
	f.xf.SetDuration(0)
	assert.Equal(t, 1, f.xf.Duration())
}
