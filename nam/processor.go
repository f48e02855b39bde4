package nam

import "github.com/cwbudde/algo-vecmath"

// Processor runs a Model over a continuous stream, one channel per
// instance. Blocks may have any length.
type Processor struct {
	model *Model
	// buf holds receptive-field-1 history samples followed by the block.
	buf []float64
}

// NewProcessor creates a processor with silent history.
func (m *Model) NewProcessor() *Processor {
	return &Processor{
		model: m,
		buf:   make([]float64, m.ReceptiveField()-1),
	}
}

// ProcessInPlace replaces block with the model output.
func (p *Processor) ProcessInPlace(block []float64) {
	rf := p.model.ReceptiveField()
	hist := rf - 1

	p.buf = append(p.buf[:hist], block...)

	for i := range block {
		block[i] = p.model.Bias + vecmath.DotProduct(p.model.Weights, p.buf[i:i+rf])
	}

	copy(p.buf, p.buf[len(p.buf)-hist:])
	p.buf = p.buf[:hist]
}

// Reset clears the history.
func (p *Processor) Reset() {
	p.buf = p.buf[:p.model.ReceptiveField()-1]
	for i := range p.buf {
		p.buf[i] = 0
	}
}
