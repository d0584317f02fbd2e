package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/calcflow/calcflow/errs"
	"github.com/calcflow/calcflow/internal/graph"
	"github.com/calcflow/calcflow/internal/image"
)

const sampleManifest = `
frameRate: 30
portCapacity: 20
calculators:
  - name: A
    kind: passthrough
    params:
      input: kTagInput
      output: X
  - name: B
    kind: passthrough
    params:
      input: X
      output: kTagOutput
sideParameters:
  - tag: pixelSize
    int: 4
  - tag: label
    string: demo
`

func writeManifest(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return path
}

func TestLoadManifest(t *testing.T) {
	manifest, err := LoadManifest(writeManifest(t, sampleManifest))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if manifest.FrameRate != 30 || manifest.PortCapacity != 20 {
		t.Fatalf("unexpected tunables: %+v", manifest)
	}
	if len(manifest.Calculators) != 2 {
		t.Fatalf("expected 2 calculators, got %d", len(manifest.Calculators))
	}
	if manifest.Calculators[0].Params["output"] != "X" {
		t.Fatalf("params not decoded: %+v", manifest.Calculators[0].Params)
	}
}

func TestManifestValidateRejectsEmptyPipeline(t *testing.T) {
	_, err := LoadManifest(writeManifest(t, "calculators: []\n"))
	if !errs.HasCode(err, errs.CodeEmptyPipeline) {
		t.Fatalf("expected empty_pipeline, got %v", err)
	}
}

func TestManifestValidateRejectsDuplicateNames(t *testing.T) {
	body := `
calculators:
  - name: A
    kind: passthrough
  - name: A
    kind: grayscale
`
	_, err := LoadManifest(writeManifest(t, body))
	if !errs.HasCode(err, errs.CodeInvalidConfig) {
		t.Fatalf("expected invalid_config, got %v", err)
	}
}

func TestManifestValidateRejectsAmbiguousSideParameter(t *testing.T) {
	body := `
calculators:
  - name: A
    kind: grayscale
sideParameters:
  - tag: pixelSize
    int: 4
    string: four
`
	_, err := LoadManifest(writeManifest(t, body))
	if !errs.HasCode(err, errs.CodeInvalidConfig) {
		t.Fatalf("expected invalid_config, got %v", err)
	}
}

func TestBuildSideParameters(t *testing.T) {
	bannerPath := filepath.Join(t.TempDir(), "banner.bmp")
	data := make([]byte, 2*2*4)
	banner, err := image.New(2, 2, image.FormatRGBA32, data)
	if err != nil {
		t.Fatalf("banner: %v", err)
	}
	if err := image.WriteBMP(bannerPath, banner); err != nil {
		t.Fatalf("write banner: %v", err)
	}

	four := 4
	label := "demo"
	manifest := Manifest{
		Calculators: []CalculatorSpec{{Name: "A", Kind: "grayscale", Params: nil}},
		SideParameters: []SideParameterSpec{
			{Tag: "pixelSize", Int: &four},
			{Tag: "label", String: &label},
			{Tag: "ImageBanner", Image: bannerPath},
		},
	}

	side, err := manifest.BuildSideParameters()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	size, err := graph.Value[int](side["pixelSize"])
	if err != nil || size != 4 {
		t.Fatalf("expected pixelSize 4, got %d (%v)", size, err)
	}
	name, err := graph.Value[string](side["label"])
	if err != nil || name != "demo" {
		t.Fatalf("expected label demo, got %q (%v)", name, err)
	}
	loaded, err := graph.Value[image.Image](side["ImageBanner"])
	if err != nil || loaded.Width() != 2 {
		t.Fatalf("expected banner image, got %v (%v)", loaded, err)
	}
}

func TestBuildSideParametersMissingAsset(t *testing.T) {
	manifest := Manifest{
		Calculators:    []CalculatorSpec{{Name: "A", Kind: "grayscale", Params: nil}},
		SideParameters: []SideParameterSpec{{Tag: "ImageBanner", Image: "does/not/exist.bmp"}},
	}
	if _, err := manifest.BuildSideParameters(); err == nil {
		t.Fatal("expected a missing asset to fail")
	}
}

func TestDefaultManifestValidates(t *testing.T) {
	manifest := DefaultManifest("assets/banner.bmp")
	if err := manifest.Validate(); err != nil {
		t.Fatalf("default manifest invalid: %v", err)
	}
	if len(manifest.Calculators) != 4 {
		t.Fatalf("expected the stock 4-node chain, got %d", len(manifest.Calculators))
	}
}
