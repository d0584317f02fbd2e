package calculators

import (
	"fmt"
	"strings"

	"github.com/calcflow/calcflow/errs"
	"github.com/calcflow/calcflow/internal/graph"
)

// Factory builds a calculator from a manifest entry's name and params map.
type Factory func(name string, params map[string]any) (graph.Calculator, error)

// Registry maps manifest calculator kinds to factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns a registry preloaded with the stock calculators.
func NewRegistry() *Registry {
	r := new(Registry)
	r.factories = make(map[string]Factory)
	r.factories["passthrough"] = newPassThroughFromSpec
	r.factories["pixelate"] = func(string, map[string]any) (graph.Calculator, error) {
		return NewPixelShape(), nil
	}
	r.factories["dither"] = func(string, map[string]any) (graph.Calculator, error) {
		return NewDither(), nil
	}
	r.factories["grayscale"] = func(string, map[string]any) (graph.Calculator, error) {
		return NewGrayscale(), nil
	}
	r.factories["banner"] = func(string, map[string]any) (graph.Calculator, error) {
		return NewBannerOverlay(), nil
	}
	r.factories["script"] = newScriptFromSpec
	return r
}

// Register installs a factory for kind, rejecting duplicates.
func (r *Registry) Register(kind string, factory Factory) error {
	kind = strings.ToLower(strings.TrimSpace(kind))
	if kind == "" || factory == nil {
		return errs.New("calculators/registry", errs.CodeInvalidConfig,
			errs.WithMessage("kind and factory are required"))
	}
	if _, ok := r.factories[kind]; ok {
		return errs.New("calculators/registry", errs.CodeInvalidConfig, errs.WithTag(kind),
			errs.WithMessage("calculator kind already registered"))
	}
	r.factories[kind] = factory
	return nil
}

// New builds a calculator of the given kind.
func (r *Registry) New(kind, name string, params map[string]any) (graph.Calculator, error) {
	factory, ok := r.factories[strings.ToLower(strings.TrimSpace(kind))]
	if !ok {
		return nil, errs.New("calculators/registry", errs.CodeInvalidConfig, errs.WithTag(kind),
			errs.WithMessage("unknown calculator kind"))
	}
	calc, err := factory(name, params)
	if err != nil {
		return nil, fmt.Errorf("build calculator %s (%s): %w", name, kind, err)
	}
	return calc, nil
}

// Kinds enumerates the registered kinds in no particular order.
func (r *Registry) Kinds() []string {
	kinds := make([]string, 0, len(r.factories))
	for kind := range r.factories {
		kinds = append(kinds, kind)
	}
	return kinds
}

func newPassThroughFromSpec(name string, params map[string]any) (graph.Calculator, error) {
	input := stringParam(params, "input", graph.TagInput)
	output := stringParam(params, "output", graph.TagOutput)
	return NewPassThrough(name, input, output), nil
}

func newScriptFromSpec(name string, params map[string]any) (graph.Calculator, error) {
	path := stringParam(params, "path", "")
	if path == "" {
		return nil, errs.New("calculators/registry", errs.CodeInvalidConfig, errs.WithTag(name),
			errs.WithMessage("script calculators require a path param"))
	}
	input := stringParam(params, "input", graph.TagInput)
	output := stringParam(params, "output", graph.TagOutput)
	return NewScript(name, input, output, path, params)
}

func stringParam(params map[string]any, key, fallback string) string {
	if params == nil {
		return fallback
	}
	raw, ok := params[key]
	if !ok {
		return fallback
	}
	value, ok := raw.(string)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback
	}
	return strings.TrimSpace(value)
}
