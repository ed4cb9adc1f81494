// Package crossfade implements the sample-accurate crossfade between up to
// MaxSources audio sources, and the Switch that routes an input either
// directly to a source or through a fade.
package crossfade

import (
	"fmt"

	"github.com/tphakala/audioroute/internal/audiocore/graph"
	"github.com/tphakala/audioroute/internal/errors"
)

// Sample is a single mono audio sample.
type Sample = graph.Sample

// MaxSources is the number of sources that can fade at the same time.
const MaxSources = 4

// ComponentCrossfade identifies crossfade errors
const ComponentCrossfade = "audiocore.crossfade"

// DurationForRate returns the fade length used at sampleRate (20 ms).
func DurationForRate(sampleRate int) int {
	return max(sampleRate/50, 1)
}

// slot is one fading source. count is the volume in 0..duration; dir is +1
// while fading in, -1 while fading out and 0 when settled. A slot with
// dir == 0 and count == 0 is unused.
type slot struct {
	in    *graph.Input
	count int
	dir   int
}

func (s *slot) unused() bool { return s.dir == 0 && s.count == 0 }

// Crossfader mixes its slots into its output. At most one slot fades in at
// a time, and active always equals the number of slots with dir != 0.
//
// When the last slot settles the crossfader marks itself finished; the
// owning Switch collapses the connection after the block completes.
type Crossfader struct {
	Out *graph.Output

	slots    [MaxSources]slot
	active   int
	duration int
	norm     float32

	finished bool
	current  *graph.Output // surviving source once finished
}

// New creates a crossfader in g that fades over duration frames.
func New(g *graph.Graph, name string, duration int) *Crossfader {
	c := &Crossfader{}
	for i := range c.slots {
		c.slots[i].in = g.NewInput(fmt.Sprintf("%s slot %d", name, i), graph.InputUsesOutputBuffer, nil)
	}
	c.Out = g.NewOutput(name+" crossfade", 0, c)
	c.SetDuration(duration)
	return c
}

// SetDuration changes the fade length. It must not be called mid-fade.
func (c *Crossfader) SetDuration(frames int) {
	if c.active > 0 {
		panic(misuse("fade length changed while fading"))
	}
	c.duration = max(frames, 1)
	c.norm = 1 / float32(c.duration)
}

// Duration returns the fade length in frames.
func (c *Crossfader) Duration() int { return c.duration }

// Active returns the number of slots still changing volume.
func (c *Crossfader) Active() int { return c.active }

// Finished reports whether the fade completed or was aborted and is waiting
// to be collapsed.
func (c *Crossfader) Finished() bool { return c.finished }

// Begin starts fading from prev, which may be nil, to next.
func (c *Crossfader) Begin(next, prev *graph.Output) {
	if c.active != 0 || c.CurrentSource() != nil {
		panic(misuse("begin while crossfading"))
	}
	c.finished = false
	c.current = nil

	c.slots[0].count, c.slots[0].dir = 0, 1
	c.active = 1
	next.Connect(c.slots[0].in)
	if prev != nil {
		c.slots[1].count, c.slots[1].dir = c.duration, -1
		c.active++
		prev.Connect(c.slots[1].in)
	}
}

// Add retargets a running fade to next. Whatever is fading in, or already
// fully in, starts fading out. If next is still audible in some slot that
// slot fades back in; otherwise next takes the first unused slot, or else
// the quietest one, lowest index first.
func (c *Crossfader) Add(next *graph.Output) {
	c.finished = false
	c.current = nil

	for i := range c.slots {
		s := &c.slots[i]
		if s.dir == 1 || s.count > 0 {
			if s.count == 0 {
				// inaudible; the slot is free
				c.active -= abs(s.dir)
				s.dir = 0
				continue
			}
			c.active += 1 - abs(s.dir)
			s.dir = -1
		}
	}

	for i := range c.slots {
		s := &c.slots[i]
		if s.unused() || s.in.Connected() != next {
			continue
		}
		if s.count < c.duration {
			s.dir = 1
		} else {
			s.dir = 0
			c.active--
		}
		return
	}

	pick := -1
	for i := range c.slots {
		s := &c.slots[i]
		if s.unused() {
			pick = i
			break
		}
		if pick < 0 || s.count < c.slots[pick].count {
			pick = i
		}
	}
	s := &c.slots[pick]
	c.active += 1 - abs(s.dir)
	s.count, s.dir = 0, 1
	next.Connect(s.in)
}

// CurrentSource returns the source that is fading in or fully in, or nil.
func (c *Crossfader) CurrentSource() *graph.Output {
	if c.finished {
		return c.current
	}
	for i := range c.slots {
		s := &c.slots[i]
		if s.dir == 1 || (s.dir == 0 && s.count == c.duration) {
			return s.in.Connected()
		}
	}
	return nil
}

// Generate implements graph.Generator. A slot whose source reports a
// recoverable condition is dropped and the condition raised on b; when no
// active slot is left the fade is aborted and the error returned.
func (c *Crossfader) Generate(b *graph.Block, out []Sample) ([]Sample, error) {
	for i := range c.slots {
		s := &c.slots[i]
		if s.unused() {
			continue
		}
		err := s.in.Fill(b)
		if err == nil {
			continue
		}
		cond := graph.ConditionOf(err)
		if cond == 0 {
			return nil, err
		}
		c.active -= abs(s.dir)
		s.count, s.dir = 0, 0
		if c.active == 0 {
			c.finish()
			return nil, err
		}
		b.Raise(cond)
	}

	clear(out)
	for i := range c.slots {
		s := &c.slots[i]
		if s.unused() {
			continue
		}
		c.mix(s, out)
	}
	for i := range out {
		out[i] *= c.norm
	}

	if c.active == 0 {
		c.finish()
	}
	return out, nil
}

// mix adds one slot into out, advancing its volume one step per frame.
func (c *Crossfader) mix(s *slot, out []Sample) {
	src := s.in.Chunk()
	count, dir := s.count, s.dir
	for f := range out {
		out[f] += src[f] * Sample(count)
		if dir == 0 {
			continue
		}
		count += dir
		if (dir > 0 && count == c.duration) || (dir < 0 && count == 0) {
			dir = 0
			c.active--
		}
	}
	s.count, s.dir = count, dir
}

// finish records the surviving source. Slots are released by Reset.
func (c *Crossfader) finish() {
	c.current = nil
	for i := range c.slots {
		s := &c.slots[i]
		if s.dir == 0 && s.count == c.duration {
			c.current = s.in.Connected()
			break
		}
	}
	c.finished = true
}

// Reset disconnects every slot and returns the crossfader to idle.
func (c *Crossfader) Reset() {
	for i := range c.slots {
		s := &c.slots[i]
		s.in.Disconnect()
		s.count, s.dir = 0, 0
	}
	c.active = 0
	c.finished = false
	c.current = nil
}

// releaseFaded disconnects slots that have faded out completely.
func (c *Crossfader) releaseFaded() {
	for i := range c.slots {
		s := &c.slots[i]
		if s.unused() {
			s.in.Disconnect()
		}
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func misuse(msg string) *errors.EnhancedError {
	return errors.Newf("%s", msg).
		Component(ComponentCrossfade).
		Category(errors.CategoryGraph).
		Priority(errors.PriorityCritical).
		Build()
}
