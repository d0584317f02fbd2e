package calculators

import (
	"math"

	"github.com/calcflow/calcflow/internal/graph"
	"github.com/calcflow/calcflow/internal/image"
)

// Bayer threshold matrices for ordered dithering.
var (
	bayer2 = [4]int{
		0, 2,
		3, 1,
	}
	bayer4 = [16]int{
		0, 8, 2, 10,
		12, 4, 14, 6,
		3, 11, 1, 9,
		15, 7, 13, 5,
	}
	bayer8 = [64]int{
		0, 32, 8, 40, 2, 34, 10, 42,
		48, 16, 56, 24, 50, 18, 58, 26,
		12, 44, 4, 36, 14, 46, 6, 38,
		60, 28, 52, 20, 62, 30, 54, 22,
		3, 35, 11, 43, 1, 33, 9, 41,
		51, 19, 59, 27, 49, 17, 57, 25,
		15, 47, 7, 39, 13, 45, 5, 37,
		63, 31, 55, 23, 61, 29, 53, 21,
	}
)

// Dither applies ordered Bayer dithering with per-channel quantization levels
// and a configurable spread, all sourced from side parameters.
type Dither struct {
	name string
}

// NewDither builds the dithering calculator.
func NewDither() *Dither {
	return &Dither{name: "DitherCalculator"}
}

// Name identifies the calculator.
func (c *Dither) Name() string { return c.name }

// RegisterContext declares the dithered output port.
func (c *Dither) RegisterContext(side graph.SideParameters) *graph.Context {
	cc := graph.NewContext(side)
	cc.AddOutputPort(TagImageDither, graph.NewPort(0))
	return cc
}

// Enter is a no-op.
func (c *Dither) Enter(*graph.Context, float64) error { return nil }

// Process dithers the next pixelated frame.
func (c *Dither) Process(cc *graph.Context, _ float64) error {
	packet, ok := readFrame(cc, TagImagePixel)
	if !ok {
		return nil
	}
	frame, err := graph.Value[image.Image](packet)
	if err != nil {
		return err
	}

	redLevels := sideInt(cc, ParamRedLevels, 3)
	greenLevels := sideInt(cc, ParamGreenLevels, 6)
	blueLevels := sideInt(cc, ParamBlueLevels, 3)
	spread := sideInt(cc, ParamSpread, 3)
	bayerLevel := sideInt(cc, ParamBayerLevel, 2)

	bytesPerPixel := frame.BytesPerPixel()
	if bytesPerPixel < 3 {
		return nil
	}

	data := frame.Data()
	stride := frame.Stride()

	for i := 0; i+bytesPerPixel <= len(data); i += bytesPerPixel {
		row := i / stride
		col := (i % stride) / bytesPerPixel
		if row >= frame.Height() {
			break
		}

		threshold := bayerValue(row, col, bayerLevel)
		data[i] = quantize(data[i], redLevels, spread, threshold)
		data[i+1] = quantize(data[i+1], greenLevels, spread, threshold)
		data[i+2] = quantize(data[i+2], blueLevels, spread, threshold)
	}

	return writeFrame(cc, TagImageDither, graph.NewPacket(frame))
}

// Close is a no-op.
func (c *Dither) Close(*graph.Context, float64) error { return nil }

func bayerValue(x, y, level int) float64 {
	switch level {
	case 0:
		return float64(bayer2[(x%2)+(y%2)*2])/4.0 - 0.5
	case 1:
		return float64(bayer4[(x%4)+(y%4)*4])/16.0 - 0.5
	default:
		return float64(bayer8[(x%8)+(y%8)*8])/64.0 - 0.5
	}
}

func quantize(channel byte, levels, spread int, threshold float64) byte {
	if levels < 2 {
		return channel
	}
	steps := float64(levels - 1)
	value := math.Floor(steps*(float64(channel)/255.0)+float64(spread)*(threshold+0.5)) / steps * 255.0
	if value < 0 {
		return 0
	}
	if value > 255 {
		return 255
	}
	return byte(value)
}
