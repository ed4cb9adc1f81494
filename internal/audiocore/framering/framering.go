// Package framering implements the lock-free single-producer,
// single-consumer ring of fixed-size frames that backs recording and
// playback.
//
// The ring holds a fixed number of slots, each one block of samples. One
// slot is always kept empty so that head == tail means empty; a ring of n
// slots therefore holds at most n-1 frames.
//
// Roles:
//   - producer (recording): Push, PushZero
//   - consumer (playback): Pop, Read, ResetReadPointer
//   - either, only while the consumer is provably idle: Clear, Resize
//
// Empty, AtEnd, Full and Len are snapshots that may be stale by the time
// the caller acts on them.
package framering

import (
	"math"
	"sync/atomic"

	"github.com/tphakala/audioroute/internal/errors"
)

// Sample is a single mono audio sample.
type Sample = float32

// ComponentFrameRing identifies ring buffer errors
const ComponentFrameRing = "audiocore.framering"

// cacheLinePad separates producer and consumer indices.
type cacheLinePad [64 - 8]byte

// Ring is a circular buffer of frame slots.
type Ring struct {
	head atomic.Int64 // next slot to write; advanced by the producer only
	_    cacheLinePad
	tail atomic.Int64 // oldest unread slot; advanced by the consumer only
	_    cacheLinePad

	readPtr int64 // non-destructive read cursor; consumer only
	slots   int64
	frames  int
	buf     []Sample
}

// New creates a ring of slots slots holding frames samples each. At most
// slots-1 frames can be stored.
func New(slots, frames int) (*Ring, error) {
	if slots < 2 || frames <= 0 {
		return nil, errors.Newf("ring needs at least two slots and a positive frame size").
			Component(ComponentFrameRing).
			Category(errors.CategoryValidation).
			Context("slots", slots).
			Context("frames", frames).
			Build()
	}
	r := &Ring{}
	r.allocate(slots, frames)
	return r, nil
}

// SlotsForPeriod returns the number of slots needed to record period
// seconds at sampleRate in blocks of frames, rounded to the nearest block,
// plus the slot that is always kept free.
func SlotsForPeriod(period float64, sampleRate, frames int) int {
	required := int(math.Round(period * float64(sampleRate)))
	return (required+frames/2)/frames + 1
}

// NewForPeriod creates a ring large enough to hold period seconds of audio.
func NewForPeriod(period float64, sampleRate, frames int) (*Ring, error) {
	if period <= 0 || sampleRate <= 0 || frames <= 0 {
		return nil, errors.Newf("invalid ring period").
			Component(ComponentFrameRing).
			Category(errors.CategoryValidation).
			Context("period_seconds", period).
			Context("sample_rate", sampleRate).
			Context("frames", frames).
			Build()
	}
	return New(max(SlotsForPeriod(period, sampleRate, frames), 2), frames)
}

func (r *Ring) allocate(slots, frames int) {
	r.slots = int64(slots)
	r.frames = frames
	r.buf = make([]Sample, slots*frames)
	r.head.Store(0)
	r.tail.Store(0)
	r.readPtr = 0
}

func (r *Ring) next(slot int64) int64 {
	slot++
	if slot == r.slots {
		return 0
	}
	return slot
}

func (r *Ring) slot(i int64) []Sample {
	off := int(i) * r.frames
	return r.buf[off : off+r.frames : off+r.frames]
}

// Push copies one frame into the ring. It returns false, leaving the ring
// untouched, when the ring is full.
func (r *Ring) Push(frame []Sample) bool {
	head := r.head.Load()
	next := r.next(head)
	if next == r.tail.Load() {
		return false
	}
	copy(r.slot(head), frame)
	r.head.Store(next)
	return true
}

// PushZero appends a silent frame. It returns false when the ring is full.
func (r *Ring) PushZero() bool {
	head := r.head.Load()
	next := r.next(head)
	if next == r.tail.Load() {
		return false
	}
	clear(r.slot(head))
	r.head.Store(next)
	return true
}

// Pop returns the oldest frame and frees its slot, or nil when the ring is
// empty. The returned slice stays valid until the producer wraps around to
// it, which is never before the next Push.
func (r *Ring) Pop() []Sample {
	tail := r.tail.Load()
	if tail == r.head.Load() {
		return nil
	}
	next := r.next(tail)
	if r.readPtr == tail {
		r.readPtr = next
	}
	r.tail.Store(next)
	return r.slot(tail)
}

// Read returns the frame under the read cursor and advances the cursor
// without freeing the slot, or nil when the cursor has reached the head.
func (r *Ring) Read() []Sample {
	cur := r.readPtr
	if cur == r.head.Load() {
		return nil
	}
	r.readPtr = r.next(cur)
	return r.slot(cur)
}

// ResetReadPointer rewinds the read cursor to the oldest unread frame.
func (r *Ring) ResetReadPointer() {
	r.readPtr = r.tail.Load()
}

// Clear discards all frames. The consumer must not be running.
func (r *Ring) Clear() {
	head := r.head.Load()
	r.readPtr = head
	r.tail.Store(head)
}

// Resize reallocates the ring for a new frame size, keeping the slot count,
// and clears it. The producer and consumer must not be running.
func (r *Ring) Resize(frames int) error {
	if frames <= 0 {
		return errors.Newf("frame size must be positive").
			Component(ComponentFrameRing).
			Category(errors.CategoryValidation).
			Context("frames", frames).
			Build()
	}
	if frames == r.frames {
		return nil
	}
	r.allocate(int(r.slots), frames)
	return nil
}

// Reshape reallocates the ring with a new slot count and frame size and
// clears it. The producer and consumer must not be running.
func (r *Ring) Reshape(slots, frames int) error {
	if slots < 2 || frames <= 0 {
		return errors.Newf("ring needs at least two slots and a positive frame size").
			Component(ComponentFrameRing).
			Category(errors.CategoryValidation).
			Context("slots", slots).
			Context("frames", frames).
			Build()
	}
	r.allocate(slots, frames)
	return nil
}

// Empty reports whether there are no unpopped frames.
func (r *Ring) Empty() bool {
	return r.tail.Load() == r.head.Load()
}

// AtEnd reports whether the read cursor has caught up with the head.
// Consumer only.
func (r *Ring) AtEnd() bool {
	return r.readPtr == r.head.Load()
}

// Full reports whether the next Push would fail.
func (r *Ring) Full() bool {
	return r.next(r.head.Load()) == r.tail.Load()
}

// Len returns the number of unpopped frames.
func (r *Ring) Len() int {
	n := r.head.Load() - r.tail.Load()
	if n < 0 {
		n += r.slots
	}
	return int(n)
}

// Slots returns the number of slots, one more than the frame capacity.
func (r *Ring) Slots() int {
	return int(r.slots)
}

// Frames returns the number of samples per slot.
func (r *Ring) Frames() int {
	return r.frames
}
