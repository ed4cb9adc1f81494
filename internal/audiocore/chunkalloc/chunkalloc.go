// Package chunkalloc provides the real-time safe pool of fixed-size sample
// chunks shared by every node of an audio graph.
//
// Storage is a list of large blocks, each sliced into chunks. Free chunks are
// linked through their own first sample, so a chunk's payload and its
// free-list link occupy the same memory. Allocate and Release are O(1) and
// never allocate once the pool is warm; only an empty free list makes
// Allocate extend the pool by one block.
//
// An Allocator is not safe for concurrent use. It is owned by the audio
// thread; Reset must only be called while the audio callback is not running.
package chunkalloc

import (
	"math"

	"github.com/tphakala/audioroute/internal/errors"
)

// Sample is a single mono audio sample.
type Sample = float32

const (
	// strideAlign keeps every chunk 64-byte aligned relative to its block.
	strideAlign = 16

	// maxChunksPerBlock bounds the chunk index encoded in a handle.
	maxChunksPerBlock = 1 << 16

	// noChunk terminates the free list.
	noChunk int32 = -1
)

// Config sizes the pool.
type Config struct {
	InitialChunks   int // chunks in the first block
	IncrementChunks int // chunks in every block added when the free list runs dry
	MaxBlocks       int // 0 = unbounded; exceeding it is a programming error
}

// DefaultConfig returns a pool sized for a small graph.
func DefaultConfig() Config {
	return Config{InitialChunks: 32, IncrementChunks: 8}
}

// Chunk is a handle to one pooled block of samples.
type Chunk struct {
	Data []Sample
	id   int32
	gen  uint32
}

// Valid reports whether the handle refers to a chunk.
func (c Chunk) Valid() bool {
	return c.Data != nil
}

// Stats is a snapshot of pool usage.
type Stats struct {
	ChunkFrames int
	Blocks      int
	Chunks      int
	Outstanding int
	BlockAllocs uint64 // large allocations since construction, including rebuilds
}

type block struct {
	data  []Sample
	inUse []bool
}

// Allocator is a fixed-size chunk pool.
type Allocator struct {
	cfg         Config
	frames      int
	stride      int
	gen         uint32
	blocks      []block
	free        int32
	chunks      int
	outstanding int
	blockAllocs uint64
}

// New creates a pool of chunks holding frames samples each.
func New(frames int, cfg Config) (*Allocator, error) {
	if cfg.InitialChunks <= 0 || cfg.InitialChunks > maxChunksPerBlock ||
		cfg.IncrementChunks <= 0 || cfg.IncrementChunks > maxChunksPerBlock {
		return nil, errors.Newf("chunk pool sizes must be between 1 and %d", maxChunksPerBlock).
			Component(ComponentChunkAlloc).
			Category(errors.CategoryValidation).
			Context("initial_chunks", cfg.InitialChunks).
			Context("increment_chunks", cfg.IncrementChunks).
			Build()
	}
	if cfg.MaxBlocks < 0 {
		return nil, errors.Newf("max blocks must not be negative").
			Component(ComponentChunkAlloc).
			Category(errors.CategoryValidation).
			Context("max_blocks", cfg.MaxBlocks).
			Build()
	}
	a := &Allocator{cfg: cfg, free: noChunk}
	if err := a.Reset(frames); err != nil {
		return nil, err
	}
	return a, nil
}

// Reset invalidates every outstanding chunk and rebuilds the pool for the
// new chunk size. Handles obtained before Reset must not be used or released.
func (a *Allocator) Reset(frames int) error {
	if frames <= 0 {
		return errors.Newf("chunk size must be positive").
			Component(ComponentChunkAlloc).
			Category(errors.CategoryValidation).
			Context("frames", frames).
			Build()
	}
	a.gen++
	a.frames = frames
	a.stride = (frames + strideAlign - 1) / strideAlign * strideAlign
	clear(a.blocks)
	a.blocks = a.blocks[:0]
	a.free = noChunk
	a.chunks = 0
	a.outstanding = 0
	a.grow(a.cfg.InitialChunks)
	return nil
}

// Frames returns the number of samples in each chunk.
func (a *Allocator) Frames() int {
	return a.frames
}

// Allocate pops a zeroed chunk from the free list.
func (a *Allocator) Allocate() Chunk {
	if a.free == noChunk {
		a.grow(a.cfg.IncrementChunks)
	}
	id := a.free
	b, i := splitID(id)
	blk := &a.blocks[b]
	off := i * a.stride
	a.free = decodeLink(blk.data[off])
	blk.inUse[i] = true
	a.outstanding++

	data := blk.data[off : off+a.frames : off+a.frames]
	clear(data)
	return Chunk{Data: data, id: id, gen: a.gen}
}

// Release pushes a chunk back onto the free list.
func (a *Allocator) Release(c Chunk) {
	if c.gen != a.gen {
		panic(misuse("release of a chunk from before the last size change", c))
	}
	b, i := splitID(c.id)
	if b >= len(a.blocks) || !a.blocks[b].inUse[i] {
		panic(misuse("release of a chunk that is not outstanding", c))
	}
	blk := &a.blocks[b]
	blk.data[i*a.stride] = encodeLink(a.free)
	blk.inUse[i] = false
	a.free = c.id
	a.outstanding--
}

// Stats returns a snapshot of pool usage.
func (a *Allocator) Stats() Stats {
	return Stats{
		ChunkFrames: a.frames,
		Blocks:      len(a.blocks),
		Chunks:      a.chunks,
		Outstanding: a.outstanding,
		BlockAllocs: a.blockAllocs,
	}
}

// grow appends a block of n chunks and links them in front of the free list.
func (a *Allocator) grow(n int) {
	if a.cfg.MaxBlocks > 0 && len(a.blocks) >= a.cfg.MaxBlocks {
		panic(errors.Newf("chunk pool exhausted").
			Component(ComponentChunkAlloc).
			Category(errors.CategoryLimit).
			Priority(errors.PriorityCritical).
			Context("max_blocks", a.cfg.MaxBlocks).
			Context("outstanding", a.outstanding).
			Build())
	}
	b := len(a.blocks)
	blk := block{
		data:  make([]Sample, n*a.stride),
		inUse: make([]bool, n),
	}
	for i := range n - 1 {
		blk.data[i*a.stride] = encodeLink(makeID(b, i+1))
	}
	blk.data[(n-1)*a.stride] = encodeLink(a.free)
	a.blocks = append(a.blocks, blk)
	a.free = makeID(b, 0)
	a.chunks += n
	a.blockAllocs++
}

func makeID(b, i int) int32 {
	return int32(b<<16 | i)
}

func splitID(id int32) (b, i int) {
	return int(id >> 16), int(id & (maxChunksPerBlock - 1))
}

// encodeLink stores id+1 so that the end marker is the bit pattern of 0.0.
func encodeLink(id int32) Sample {
	return math.Float32frombits(uint32(id + 1))
}

func decodeLink(s Sample) int32 {
	return int32(math.Float32bits(s)) - 1
}

func misuse(msg string, c Chunk) *errors.EnhancedError {
	b, i := splitID(c.id)
	return errors.Newf("%s", msg).
		Component(ComponentChunkAlloc).
		Category(errors.CategoryResource).
		Priority(errors.PriorityCritical).
		Context("block", b).
		Context("chunk", i).
		Build()
}
