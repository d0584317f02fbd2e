package calculators

import (
	"github.com/calcflow/calcflow/internal/graph"
	"github.com/calcflow/calcflow/internal/image"
)

// Grayscale rewrites every pixel with its BT.709 luma, keeping the buffer
// layout (and alpha, when present) intact.
type Grayscale struct {
	name string
}

// NewGrayscale builds the grayscale calculator.
func NewGrayscale() *Grayscale {
	return &Grayscale{name: "GrayscaleCalculator"}
}

// Name identifies the calculator.
func (c *Grayscale) Name() string { return c.name }

// RegisterContext declares the grayscale output port.
func (c *Grayscale) RegisterContext(side graph.SideParameters) *graph.Context {
	cc := graph.NewContext(side)
	cc.AddOutputPort(TagImageGrayscale, graph.NewPort(0))
	return cc
}

// Enter is a no-op.
func (c *Grayscale) Enter(*graph.Context, float64) error { return nil }

// Process converts the next dithered frame to grayscale.
func (c *Grayscale) Process(cc *graph.Context, _ float64) error {
	packet, ok := readFrame(cc, TagImageDither)
	if !ok {
		return nil
	}
	frame, err := graph.Value[image.Image](packet)
	if err != nil {
		return err
	}

	bytesPerPixel := frame.BytesPerPixel()
	if bytesPerPixel < 3 {
		return nil
	}

	data := frame.Data()
	for i := 0; i+bytesPerPixel <= len(data); i += bytesPerPixel {
		gray := byte(0.2126*float64(data[i]) + 0.7152*float64(data[i+1]) + 0.0722*float64(data[i+2]))
		data[i] = gray
		data[i+1] = gray
		data[i+2] = gray
	}

	return writeFrame(cc, TagImageGrayscale, graph.NewPacket(frame))
}

// Close is a no-op.
func (c *Grayscale) Close(*graph.Context, float64) error { return nil }
