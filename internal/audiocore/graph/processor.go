package graph

// Transform maps one input block to one output block. in and out never
// share storage and have equal length.
type Transform interface {
	Transform(in, out []Sample)
}

// TransformFunc adapts a function to Transform.
type TransformFunc func(in, out []Sample)

// Transform calls f.
func (f TransformFunc) Transform(in, out []Sample) { f(in, out) }

// Processor is one Input and one Output sharing a sequence counter: filling
// the output pulls the input, runs the transform and fans out the result.
type Processor struct {
	In  *Input
	Out *Output
	t   Transform
}

// NewProcessor creates a processor running t.
func (g *Graph) NewProcessor(name string, t Transform) *Processor {
	p := &Processor{t: t}
	p.In = g.NewInput(name, InputUsesOutputBuffer, nil)
	p.Out = g.NewOutput(name, 0, GeneratorFunc(p.generate))
	return p
}

func (p *Processor) generate(b *Block, out []Sample) ([]Sample, error) {
	if p.In.src == nil {
		clear(out)
		return out, nil
	}
	if err := p.In.Fill(b); err != nil {
		return nil, err
	}
	p.t.Transform(p.In.Chunk(), out)
	return out, nil
}
