package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/calcflow/calcflow/errs"
	"github.com/calcflow/calcflow/internal/graph"
	"github.com/calcflow/calcflow/internal/image"
	"github.com/calcflow/calcflow/internal/telemetry"
)

// Manifest declares a pipeline: scheduler tunables, the ordered calculator
// chain, and the side parameters injected into every context.
type Manifest struct {
	FrameRate      int                 `yaml:"frameRate"`
	PortCapacity   int                 `yaml:"portCapacity"`
	Telemetry      telemetry.Config    `yaml:"telemetry"`
	Calculators    []CalculatorSpec    `yaml:"calculators"`
	SideParameters []SideParameterSpec `yaml:"sideParameters"`
}

// CalculatorSpec declares one pipeline node.
type CalculatorSpec struct {
	Name   string         `yaml:"name"`
	Kind   string         `yaml:"kind"`
	Params map[string]any `yaml:"params"`
}

// SideParameterSpec declares one shared side parameter. Exactly one of the
// value fields must be set; Image names a BMP file loaded at build time.
type SideParameterSpec struct {
	Tag    string  `yaml:"tag"`
	Int    *int    `yaml:"int"`
	String *string `yaml:"string"`
	Image  string  `yaml:"image"`
}

// DefaultManifest returns the stock filter chain: pixelate, dither,
// grayscale, banner, configured the way the reference workload ships.
func DefaultManifest(bannerPath string) Manifest {
	four := 4
	one := 1
	three := 3
	six := 6
	two := 2
	x := 64
	y := 32
	return Manifest{
		FrameRate:    graph.DefaultFrameRate,
		PortCapacity: graph.DefaultPortCapacity,
		Telemetry:    telemetry.Config{OTLPEndpoint: "", ServiceName: "calcflow-streamfilter"},
		Calculators: []CalculatorSpec{
			{Name: "PixelShapeCalculator", Kind: "pixelate", Params: nil},
			{Name: "DitherCalculator", Kind: "dither", Params: nil},
			{Name: "GrayscaleCalculator", Kind: "grayscale", Params: nil},
			{Name: "BannerCalculator", Kind: "banner", Params: nil},
		},
		SideParameters: []SideParameterSpec{
			{Tag: "pixelSize", Int: &four},
			{Tag: "pixeShape", Int: &one},
			{Tag: "redCount", Int: &three},
			{Tag: "greenCount", Int: &six},
			{Tag: "blueCount", Int: &three},
			{Tag: "spread", Int: &three},
			{Tag: "bayerLevel", Int: &two},
			{Tag: "ImageBanner", Image: bannerPath},
			{Tag: "OverlayStartX", Int: &x},
			{Tag: "OverlayStartY", Int: &y},
		},
	}
}

// LoadManifest loads a pipeline manifest YAML document from disk.
func LoadManifest(path string) (Manifest, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = os.Getenv("CALCFLOW_PIPELINE")
	}
	path = strings.TrimSpace(path)
	if path == "" {
		path = "config/pipeline.yaml"
	}

	reader, closer, err := openManifestFile(path)
	if err != nil {
		return Manifest{}, err
	}
	defer closer()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return Manifest{}, fmt.Errorf("read pipeline manifest: %w", err)
	}

	var manifest Manifest
	if err := yaml.Unmarshal(raw, &manifest); err != nil {
		return Manifest{}, fmt.Errorf("unmarshal pipeline manifest: %w", err)
	}

	if err := manifest.Validate(); err != nil {
		return Manifest{}, err
	}
	return manifest, nil
}

// Validate performs semantic validation on the loaded manifest.
func (m Manifest) Validate() error {
	if m.FrameRate < 0 {
		return errs.New("config/pipeline", errs.CodeInvalidConfig,
			errs.WithMessage("frameRate must be >=0"))
	}
	if m.PortCapacity < 0 {
		return errs.New("config/pipeline", errs.CodeInvalidConfig,
			errs.WithMessage("portCapacity must be >=0"))
	}
	if len(m.Calculators) == 0 {
		return errs.New("config/pipeline", errs.CodeEmptyPipeline,
			errs.WithMessage("at least one calculator is required"))
	}
	seen := make(map[string]struct{}, len(m.Calculators))
	for i, spec := range m.Calculators {
		if strings.TrimSpace(spec.Name) == "" {
			return errs.New("config/pipeline", errs.CodeInvalidConfig,
				errs.WithMessage(fmt.Sprintf("calculators[%d]: name required", i)))
		}
		if strings.TrimSpace(spec.Kind) == "" {
			return errs.New("config/pipeline", errs.CodeInvalidConfig, errs.WithTag(spec.Name),
				errs.WithMessage(fmt.Sprintf("calculators[%d]: kind required", i)))
		}
		if _, ok := seen[spec.Name]; ok {
			return errs.New("config/pipeline", errs.CodeInvalidConfig, errs.WithTag(spec.Name),
				errs.WithMessage("duplicate calculator name"))
		}
		seen[spec.Name] = struct{}{}
	}
	for i, spec := range m.SideParameters {
		if strings.TrimSpace(spec.Tag) == "" {
			return errs.New("config/pipeline", errs.CodeInvalidConfig,
				errs.WithMessage(fmt.Sprintf("sideParameters[%d]: tag required", i)))
		}
		values := 0
		if spec.Int != nil {
			values++
		}
		if spec.String != nil {
			values++
		}
		if strings.TrimSpace(spec.Image) != "" {
			values++
		}
		if values != 1 {
			return errs.New("config/pipeline", errs.CodeInvalidConfig, errs.WithTag(spec.Tag),
				errs.WithMessage("exactly one of int, string, or image must be set"))
		}
	}
	return nil
}

// BuildSideParameters materializes the manifest's side parameter packets,
// loading any referenced BMP assets.
func (m Manifest) BuildSideParameters() (graph.SideParameters, error) {
	side := make(graph.SideParameters, len(m.SideParameters))
	for _, spec := range m.SideParameters {
		switch {
		case spec.Int != nil:
			side[spec.Tag] = graph.NewPacket(*spec.Int)
		case spec.String != nil:
			side[spec.Tag] = graph.NewPacket(*spec.String)
		default:
			banner, err := image.ReadBMP(spec.Image)
			if err != nil {
				return nil, fmt.Errorf("side parameter %s: %w", spec.Tag, err)
			}
			side[spec.Tag] = graph.NewPacket(banner)
		}
	}
	return side, nil
}

func openManifestFile(path string) (io.Reader, func(), error) {
	var (
		candidates []string
		seen       = make(map[string]struct{})
	)
	addCandidate := func(candidate string) {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			return
		}
		candidate = filepath.Clean(candidate)
		if _, ok := seen[candidate]; ok {
			return
		}
		seen[candidate] = struct{}{}
		candidates = append(candidates, candidate)
	}
	addCandidate(path)
	for _, fallback := range []string{
		"config/pipeline.yaml",
		"config/pipeline.example.yaml",
	} {
		addCandidate(fallback)
	}

	var lastErr error
	for _, candidate := range candidates {
		file, err := os.Open(candidate) // #nosec G304 -- manifest paths are controlled by operators.
		if err == nil {
			return file, func() { _ = file.Close() }, nil
		}
		if !os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("open pipeline manifest: %w", err)
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = os.ErrNotExist
	}
	return nil, nil, fmt.Errorf("open pipeline manifest: %w", lastErr)
}
