package graph

// Generator produces the samples of an Output.
//
// Generate is called at most once per successful block. out is the buffer
// the Output resolved for this block; it is nil when the Output brings its
// own storage. Generate returns the slice that holds the block, which is
// out for nodes that compute into it and the node's own storage otherwise.
// A recoverable failure is reported with ErrBufferEmpty or ErrBufferFull.
type Generator interface {
	Generate(b *Block, out []Sample) ([]Sample, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(b *Block, out []Sample) ([]Sample, error)

// Generate calls f.
func (f GeneratorFunc) Generate(b *Block, out []Sample) ([]Sample, error) {
	return f(b, out)
}

// silentGenerator is implemented by generators that only ever produce
// silence; their copy deliveries become zero fills.
type silentGenerator interface {
	Silent() bool
}

// Sink is the data side of an Input whose capability is not
// InputUsesOutputBuffer.
type Sink interface {
	// ProvidedBuffer returns the input's own storage. Called only when the
	// input has InputProvidesBuffer; the result may change between blocks.
	ProvidedBuffer() []Sample
	// CopyIn receives one block.
	CopyIn(src []Sample) error
	// Zero receives one block of silence.
	Zero() error
}

// delivery is the resolved way an output hands a block to one input.
type delivery uint8

const (
	deliverNone    delivery = iota // input reads the output's buffer
	deliverAliased                 // output generated into the input's own buffer
	deliverCopy
	deliverZero
)

type connection struct {
	in        *Input
	mode      delivery
	seq       uint64 // last block delivered to in
	delivered bool
}
