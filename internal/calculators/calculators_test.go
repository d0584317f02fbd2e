package calculators

import (
	"testing"

	"github.com/calcflow/calcflow/errs"
	"github.com/calcflow/calcflow/internal/graph"
	"github.com/calcflow/calcflow/internal/image"
)

func rgbaFrame(t *testing.T, width, height int, fill []byte) image.Image {
	t.Helper()
	data := make([]byte, width*height*4)
	for i := 0; i < len(data); i += 4 {
		copy(data[i:i+4], fill)
	}
	img, err := image.New(width, height, image.FormatRGBA32, data)
	if err != nil {
		t.Fatalf("build frame: %v", err)
	}
	return img
}

func feed(t *testing.T, cc *graph.Context, tag string, frame image.Image) {
	t.Helper()
	port := graph.NewPort(0)
	cc.BindInputPort(tag, port)
	port.Write(graph.NewPacket(frame))
}

func drain(t *testing.T, cc *graph.Context, tag string) image.Image {
	t.Helper()
	port, err := cc.OutputPort(tag)
	if err != nil {
		t.Fatalf("output %s: %v", tag, err)
	}
	packet := port.Read()
	if !packet.Valid() {
		t.Fatalf("expected a frame on %s", tag)
	}
	frame, err := graph.Value[image.Image](packet)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return frame
}

func TestGrayscaleRewritesLuma(t *testing.T) {
	calc := NewGrayscale()
	cc := calc.RegisterContext(nil)

	frame := rgbaFrame(t, 2, 2, []byte{200, 100, 50, 255})
	feed(t, cc, TagImageDither, frame)

	if err := calc.Process(cc, 0); err != nil {
		t.Fatalf("process: %v", err)
	}

	out := drain(t, cc, TagImageGrayscale)
	r, g, b := float64(200), float64(100), float64(50)
	want := byte(0.2126*r + 0.7152*g + 0.0722*b)
	data := out.Data()
	for i := 0; i < len(data); i += 4 {
		if data[i] != want || data[i+1] != want || data[i+2] != want {
			t.Fatalf("pixel %d not grayscale: %v", i/4, data[i:i+4])
		}
		if data[i+3] != 255 {
			t.Fatalf("alpha must be preserved, got %d", data[i+3])
		}
	}
}

func TestGrayscaleSkipsEmptyTick(t *testing.T) {
	calc := NewGrayscale()
	cc := calc.RegisterContext(nil)
	cc.BindInputPort(TagImageDither, graph.NewPort(0))

	if err := calc.Process(cc, 0); err != nil {
		t.Fatalf("expected an empty tick to be a no-op, got %v", err)
	}
	port, err := cc.OutputPort(TagImageGrayscale)
	if err != nil {
		t.Fatalf("output: %v", err)
	}
	if port.Size() != 0 {
		t.Fatal("expected no output on an empty tick")
	}
}

func TestPixelShapeSquareBlocks(t *testing.T) {
	side := graph.SideParameters{
		ParamPixelSize:  graph.NewPacket(2),
		ParamPixelShape: graph.NewPacket(pixelShapeSquare),
	}
	calc := NewPixelShape()
	cc := calc.RegisterContext(side)

	frame := rgbaFrame(t, 2, 2, nil)
	data := frame.Data()
	// Distinct pixels; the block anchor is the top-left one.
	for i := 0; i < 4; i++ {
		data[i*4] = byte(10 * (i + 1))
		data[i*4+3] = 255
	}
	feed(t, cc, graph.TagInput, frame)

	if err := calc.Process(cc, 0); err != nil {
		t.Fatalf("process: %v", err)
	}

	out := drain(t, cc, TagImagePixel).Data()
	for i := 0; i < 4; i++ {
		if out[i*4] != 10 {
			t.Fatalf("pixel %d: expected anchor value 10, got %d", i, out[i*4])
		}
	}
}

func TestDitherTwoLevelsQuantizesToExtremes(t *testing.T) {
	zero := 0
	side := graph.SideParameters{
		ParamRedLevels:   graph.NewPacket(2),
		ParamGreenLevels: graph.NewPacket(2),
		ParamBlueLevels:  graph.NewPacket(2),
		ParamSpread:      graph.NewPacket(zero),
		ParamBayerLevel:  graph.NewPacket(0),
	}
	calc := NewDither()
	cc := calc.RegisterContext(side)

	frame := rgbaFrame(t, 2, 2, []byte{255, 0, 200, 255})
	feed(t, cc, TagImagePixel, frame)

	if err := calc.Process(cc, 0); err != nil {
		t.Fatalf("process: %v", err)
	}

	out := drain(t, cc, TagImageDither).Data()
	for i := 0; i < len(out); i += 4 {
		if out[i] != 255 {
			t.Fatalf("saturated red must stay 255, got %d", out[i])
		}
		if out[i+1] != 0 {
			t.Fatalf("black green must stay 0, got %d", out[i+1])
		}
		if out[i+2] != 0 && out[i+2] != 255 {
			t.Fatalf("expected two-level quantization, got %d", out[i+2])
		}
	}
}

func TestBannerOverlayHonorsAlpha(t *testing.T) {
	bannerData := []byte{
		9, 9, 9, 255,
		7, 7, 7, 0,
	}
	banner, err := image.New(2, 1, image.FormatRGBA32, bannerData)
	if err != nil {
		t.Fatalf("build banner: %v", err)
	}
	side := graph.SideParameters{
		ParamBanner:        graph.NewPacket(banner),
		ParamOverlayStartX: graph.NewPacket(1),
		ParamOverlayStartY: graph.NewPacket(1),
	}

	calc := NewBannerOverlay()
	cc := calc.RegisterContext(side)
	cc.BindOutputPort(graph.TagOutput, graph.NewPort(0))

	frame := rgbaFrame(t, 4, 3, []byte{1, 1, 1, 255})
	feed(t, cc, TagImageGrayscale, frame)

	if err := calc.Process(cc, 0); err != nil {
		t.Fatalf("process: %v", err)
	}

	out := drain(t, cc, graph.TagOutput)
	data := out.Data()
	opaque := (1*4 + 1) * 4
	if data[opaque] != 9 {
		t.Fatalf("expected opaque banner pixel at (1,1), got %d", data[opaque])
	}
	transparent := (1*4 + 2) * 4
	if data[transparent] != 1 {
		t.Fatalf("expected transparent banner pixel to leave the frame, got %d", data[transparent])
	}
	outside := 0
	if data[outside] != 1 {
		t.Fatalf("expected pixels outside the banner untouched, got %d", data[outside])
	}
}

func TestBannerOverlayRequiresSideParameter(t *testing.T) {
	calc := NewBannerOverlay()
	cc := calc.RegisterContext(nil)
	feed(t, cc, TagImageGrayscale, rgbaFrame(t, 2, 2, []byte{1, 1, 1, 255}))

	err := calc.Process(cc, 0)
	if !errs.HasCode(err, errs.CodeUnknownSideParameter) {
		t.Fatalf("expected unknown_side_parameter, got %v", err)
	}
}

func TestRegistryBuildsStockKinds(t *testing.T) {
	registry := NewRegistry()
	for _, kind := range []string{"pixelate", "dither", "grayscale", "banner", "passthrough"} {
		calc, err := registry.New(kind, "node", nil)
		if err != nil {
			t.Fatalf("kind %s: %v", kind, err)
		}
		if calc == nil {
			t.Fatalf("kind %s: nil calculator", kind)
		}
	}
}

func TestRegistryRejectsUnknownKind(t *testing.T) {
	registry := NewRegistry()
	if _, err := registry.New("sharpen", "node", nil); !errs.HasCode(err, errs.CodeInvalidConfig) {
		t.Fatalf("expected invalid_config, got %v", err)
	}
}

func TestRegistryRejectsDuplicateKind(t *testing.T) {
	registry := NewRegistry()
	err := registry.Register("grayscale", func(string, map[string]any) (graph.Calculator, error) {
		return NewGrayscale(), nil
	})
	if !errs.HasCode(err, errs.CodeInvalidConfig) {
		t.Fatalf("expected invalid_config, got %v", err)
	}
}

func TestPassThroughForwardsPackets(t *testing.T) {
	calc := NewPassThrough("identity", graph.TagInput, "out")
	cc := calc.RegisterContext(nil)
	feed(t, cc, graph.TagInput, rgbaFrame(t, 1, 1, []byte{5, 5, 5, 255}))

	if err := calc.Process(cc, 0); err != nil {
		t.Fatalf("process: %v", err)
	}
	out := drain(t, cc, "out")
	if out.Width() != 1 {
		t.Fatal("expected the frame to pass through")
	}
}
