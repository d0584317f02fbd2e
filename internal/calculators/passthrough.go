package calculators

import (
	"github.com/calcflow/calcflow/internal/graph"
)

// PassThrough moves any input packet to its output unchanged. It is the
// identity node: useful for manifest plumbing and as the reference calculator
// in pipeline tests.
type PassThrough struct {
	name   string
	input  string
	output string
}

// NewPassThrough builds an identity calculator reading input under inputTag
// and emitting under outputTag.
func NewPassThrough(name, inputTag, outputTag string) *PassThrough {
	return &PassThrough{name: name, input: inputTag, output: outputTag}
}

// Name identifies the calculator.
func (c *PassThrough) Name() string { return c.name }

// RegisterContext declares the output port when it is not the scheduler's
// reserved exit (the scheduler binds that one at connect time).
func (c *PassThrough) RegisterContext(side graph.SideParameters) *graph.Context {
	cc := graph.NewContext(side)
	if c.output != graph.TagOutput {
		cc.AddOutputPort(c.output, graph.NewPort(0))
	}
	return cc
}

// Enter is a no-op.
func (c *PassThrough) Enter(*graph.Context, float64) error { return nil }

// Process forwards at most one packet per tick.
func (c *PassThrough) Process(cc *graph.Context, _ float64) error {
	packet, ok := readFrame(cc, c.input)
	if !ok {
		return nil
	}
	return writeFrame(cc, c.output, packet)
}

// Close is a no-op.
func (c *PassThrough) Close(*graph.Context, float64) error { return nil }
