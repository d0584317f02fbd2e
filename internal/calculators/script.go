package calculators

import (
	"fmt"
	"os"

	"github.com/dop251/goja"
	"github.com/goccy/go-json"

	"github.com/calcflow/calcflow/internal/graph"
	"github.com/calcflow/calcflow/internal/image"
	"github.com/calcflow/calcflow/internal/observability"
)

// Script is a JavaScript-programmable pipeline node. The module file must
// export a global `create(env)` returning an object with a
// `process(frame, delta)` method; env carries the sanitized params map and a
// log helper. Each frame is handed to JavaScript as
// {width, height, format, data} with data backed by the live pixel buffer, so
// in-place mutation is the expected contract.
type Script struct {
	name    string
	input   string
	output  string
	runtime *goja.Runtime
	handler *goja.Object
	process goja.Callable
}

// NewScript compiles and instantiates the module at path.
func NewScript(name, inputTag, outputTag, path string, params map[string]any) (*Script, error) {
	source, err := os.ReadFile(path) // #nosec G304 -- script paths are controlled by operators.
	if err != nil {
		return nil, fmt.Errorf("read script %s: %w", path, err)
	}

	program, err := goja.Compile(path, string(source), true)
	if err != nil {
		return nil, fmt.Errorf("compile script %s: %w", path, err)
	}

	rt := goja.New()
	if _, err := rt.RunProgram(program); err != nil {
		return nil, fmt.Errorf("evaluate script %s: %w", path, err)
	}

	createFn, ok := goja.AssertFunction(rt.Get("create"))
	if !ok {
		return nil, fmt.Errorf("script %s: global create(env) not defined", path)
	}

	env := map[string]any{
		"params": sanitizeParams(params),
		"log": func(args ...any) {
			observability.Log().Info("script", observability.Field{Key: "calculator", Value: name},
				observability.Field{Key: "message", Value: fmt.Sprint(args...)})
		},
	}

	created, err := createFn(goja.Undefined(), rt.ToValue(env))
	if err != nil {
		return nil, fmt.Errorf("script %s: create failed: %w", path, err)
	}
	handler := created.ToObject(rt)
	if handler == nil {
		return nil, fmt.Errorf("script %s: create returned a non-object", path)
	}
	processFn, ok := goja.AssertFunction(handler.Get("process"))
	if !ok {
		return nil, fmt.Errorf("script %s: handler lacks process(frame, delta)", path)
	}

	s := new(Script)
	s.name = name
	s.input = inputTag
	s.output = outputTag
	s.runtime = rt
	s.handler = handler
	s.process = processFn
	return s, nil
}

// Name identifies the calculator.
func (c *Script) Name() string { return c.name }

// RegisterContext declares the script's output port unless it targets the
// scheduler's reserved exit.
func (c *Script) RegisterContext(side graph.SideParameters) *graph.Context {
	cc := graph.NewContext(side)
	if c.output != graph.TagOutput {
		cc.AddOutputPort(c.output, graph.NewPort(0))
	}
	return cc
}

// Enter is a no-op.
func (c *Script) Enter(*graph.Context, float64) error { return nil }

// Process hands the next frame to the JavaScript handler.
func (c *Script) Process(cc *graph.Context, delta float64) error {
	packet, ok := readFrame(cc, c.input)
	if !ok {
		return nil
	}
	frame, err := graph.Value[image.Image](packet)
	if err != nil {
		return err
	}

	jsFrame := c.runtime.NewObject()
	_ = jsFrame.Set("width", frame.Width())
	_ = jsFrame.Set("height", frame.Height())
	_ = jsFrame.Set("format", frame.Format().String())
	_ = jsFrame.Set("data", c.runtime.NewArrayBuffer(frame.Data()))

	if _, err := c.process(c.handler, jsFrame, c.runtime.ToValue(delta)); err != nil {
		return fmt.Errorf("script %s process: %w", c.name, err)
	}

	return writeFrame(cc, c.output, graph.NewPacket(frame))
}

// Close is a no-op.
func (c *Script) Close(*graph.Context, float64) error { return nil }

// sanitizeParams deep-copies the manifest params through a JSON round trip so
// the script cannot alias runtime-owned maps and numeric types normalize to
// float64.
func sanitizeParams(params map[string]any) map[string]any {
	if len(params) == 0 {
		return map[string]any{}
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(params))
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{}
	}
	return out
}
