package calculators

import (
	"github.com/calcflow/calcflow/internal/graph"
	"github.com/calcflow/calcflow/internal/image"
)

// BannerOverlay blits a banner image onto each frame at a configured offset.
// Banner pixels with zero alpha are treated as transparent. The banner and its
// offsets arrive as side parameters; the result goes to the scheduler's exit
// port, making this the terminal node of the stock chain.
type BannerOverlay struct {
	name string
}

// NewBannerOverlay builds the banner calculator.
func NewBannerOverlay() *BannerOverlay {
	return &BannerOverlay{name: "BannerCalculator"}
}

// Name identifies the calculator.
func (c *BannerOverlay) Name() string { return c.name }

// RegisterContext declares the banner output port.
func (c *BannerOverlay) RegisterContext(side graph.SideParameters) *graph.Context {
	cc := graph.NewContext(side)
	cc.AddOutputPort(TagImageBanner, graph.NewPort(0))
	return cc
}

// Enter is a no-op.
func (c *BannerOverlay) Enter(*graph.Context, float64) error { return nil }

// Process overlays the banner onto the next grayscale frame.
func (c *BannerOverlay) Process(cc *graph.Context, _ float64) error {
	packet, ok := readFrame(cc, TagImageGrayscale)
	if !ok {
		return nil
	}
	frame, err := graph.Value[image.Image](packet)
	if err != nil {
		return err
	}

	bannerPacket, err := cc.SideParameter(ParamBanner)
	if err != nil {
		return err
	}
	banner, err := graph.Value[image.Image](bannerPacket)
	if err != nil {
		return err
	}

	startX := sideInt(cc, ParamOverlayStartX, 0)
	startY := sideInt(cc, ParamOverlayStartY, 0)

	framePixel := frame.BytesPerPixel()
	bannerPixel := banner.BytesPerPixel()
	if framePixel < 3 || bannerPixel < 3 {
		return nil
	}

	frameData := frame.Data()
	bannerData := banner.Data()

	for by := 0; by < banner.Height(); by++ {
		oy := startY + by
		if oy < 0 || oy >= frame.Height() {
			continue
		}
		for bx := 0; bx < banner.Width(); bx++ {
			ox := startX + bx
			if ox < 0 || ox >= frame.Width() {
				continue
			}

			src := by*banner.Stride() + bx*bannerPixel
			if bannerPixel == 4 && bannerData[src+3] == 0 {
				continue
			}

			dst := oy*frame.Stride() + ox*framePixel
			frameData[dst] = bannerData[src]
			frameData[dst+1] = bannerData[src+1]
			frameData[dst+2] = bannerData[src+2]
			if framePixel == 4 && bannerPixel == 4 {
				frameData[dst+3] = bannerData[src+3]
			}
		}
	}

	return writeFrame(cc, graph.TagOutput, graph.NewPacket(frame))
}

// Close is a no-op.
func (c *BannerOverlay) Close(*graph.Context, float64) error { return nil }
