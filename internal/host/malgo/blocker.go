package malgo

import (
	"encoding/binary"
	"math"
)

// bytesPerSample is the size of one mono float32 frame on the device.
const bytesPerSample = 4

// blockFunc renders one block of exactly len(in) frames into out.
type blockFunc func(in, out []float32) error

// blocker adapts device callbacks of any length to fixed-size engine
// blocks. Captured frames are collected into a block; once it is complete
// the engine renders it, and its output is played while the next block
// is collected. This adds one block of latency.
type blocker struct {
	in     []float32
	out    []float32
	pos    int
	render blockFunc
}

func newBlocker(frames int, render blockFunc) *blocker {
	return &blocker{
		in:     make([]float32, frames),
		out:    make([]float32, frames),
		render: render,
	}
}

// frames returns the block size.
func (b *blocker) frames() int { return len(b.in) }

// resize changes the block size and drops any partial block. Not safe
// while a device is running.
func (b *blocker) resize(frames int) {
	b.in = make([]float32, frames)
	b.out = make([]float32, frames)
	b.pos = 0
}

// process consumes captured little-endian float32 frames from capture and
// writes the same number of frames to playback. A nil capture is treated
// as silence, a nil playback discards output. It returns the first render
// error; the output of a failed block is silence.
func (b *blocker) process(playback, capture []byte, frameCount int) error {
	var firstErr error
	for i := range frameCount {
		if capture != nil {
			b.in[b.pos] = decodeSample(capture[i*bytesPerSample:])
		} else {
			b.in[b.pos] = 0
		}
		if playback != nil {
			encodeSample(playback[i*bytesPerSample:], b.out[b.pos])
		}
		b.pos++
		if b.pos < len(b.in) {
			continue
		}
		b.pos = 0
		if err := b.render(b.in, b.out); err != nil {
			clear(b.out)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func decodeSample(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}

func encodeSample(b []byte, s float32) {
	binary.LittleEndian.PutUint32(b, math.Float32bits(s))
}
