package calculators

import (
	"github.com/calcflow/calcflow/internal/graph"
	"github.com/calcflow/calcflow/internal/image"
)

// Pixel shape selectors carried by the ParamPixelShape side parameter.
const (
	pixelShapeSquare   = 0
	pixelShapeTriangle = 1
)

// PixelShape groups pixels into square or triangular blocks and reassigns
// each pixel the value of its block anchor, producing the pixelated look.
// Block size and shape come from side parameters.
type PixelShape struct {
	name string
}

// NewPixelShape builds the pixelation calculator.
func NewPixelShape() *PixelShape {
	return &PixelShape{name: "PixelShapeCalculator"}
}

// Name identifies the calculator.
func (c *PixelShape) Name() string { return c.name }

// RegisterContext declares the pixelated output port.
func (c *PixelShape) RegisterContext(side graph.SideParameters) *graph.Context {
	cc := graph.NewContext(side)
	cc.AddOutputPort(TagImagePixel, graph.NewPort(0))
	return cc
}

// Enter is a no-op.
func (c *PixelShape) Enter(*graph.Context, float64) error { return nil }

// Process pixelates the next frame from the scheduler's entry port.
func (c *PixelShape) Process(cc *graph.Context, _ float64) error {
	packet, ok := readFrame(cc, graph.TagInput)
	if !ok {
		return nil
	}
	frame, err := graph.Value[image.Image](packet)
	if err != nil {
		return err
	}

	blockSize := sideInt(cc, ParamPixelSize, 4)
	shape := sideInt(cc, ParamPixelShape, pixelShapeSquare)

	bytesPerPixel := frame.BytesPerPixel()
	if bytesPerPixel < 1 || blockSize < 1 {
		return nil
	}

	width := frame.Width()
	height := frame.Height()
	stride := frame.Stride()
	data := frame.Data()

	// Sample anchors against a copy so late rows are not sourced from rows
	// already rewritten.
	source := frame.Clone().Data()

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			ax, ay := x, y
			if shape == pixelShapeTriangle {
				ax, ay = triangleAnchor(x, y, blockSize, width, height)
			} else {
				ax, ay = squareAnchor(x, y, blockSize, width, height)
			}

			src := ay*stride + ax*bytesPerPixel
			dst := y*stride + x*bytesPerPixel
			copy(data[dst:dst+bytesPerPixel], source[src:src+bytesPerPixel])
		}
	}

	return writeFrame(cc, TagImagePixel, graph.NewPacket(frame))
}

// Close is a no-op.
func (c *PixelShape) Close(*graph.Context, float64) error { return nil }

func squareAnchor(x, y, blockSize, width, height int) (int, int) {
	ax := (x / blockSize) * blockSize
	ay := (y / blockSize) * blockSize
	if ax >= width {
		ax = width - 1
	}
	if ay >= height {
		ay = height - 1
	}
	return ax, ay
}

func triangleAnchor(x, y, blockSize, width, height int) (int, int) {
	bx := x / blockSize
	by := y / blockSize
	fx := x % blockSize
	fy := y % blockSize

	var ax, ay int
	if fx+fy < blockSize {
		ax = bx * blockSize
		ay = by * blockSize
	} else {
		ax = (bx+1)*blockSize - 1
		ay = (by+1)*blockSize - 1
	}
	if ax >= width {
		ax = width - 1
	}
	if ay >= height {
		ay = height - 1
	}
	return ax, ay
}
