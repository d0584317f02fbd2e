package graph

import (
	"github.com/calcflow/calcflow/errs"
)

const (
	// TagInput names the scheduler's external entry port on the first context.
	TagInput = "kTagInput"
	// TagOutput names the scheduler's external exit port on the last context.
	TagOutput = "kTagOutput"
)

// SideParameters is the read-only configuration map shared by every context in
// a graph. It is built once before the pipeline is connected and never mutated
// afterwards.
type SideParameters map[string]Packet

// Context wires one calculator into the graph: named input ports, named output
// ports, and the shared side parameters. Ports held as inputs are the same
// objects the upstream context holds as outputs; the scheduler owns them all.
type Context struct {
	inputs  map[string]*Port
	outputs map[string]*Port
	side    SideParameters
}

// NewContext builds a context around the shared side parameter map.
func NewContext(side SideParameters) *Context {
	cc := new(Context)
	cc.inputs = make(map[string]*Port)
	cc.outputs = make(map[string]*Port)
	cc.side = side
	return cc
}

// AddInputPort installs port under tag unless the tag is already taken, in
// which case the existing port is retained.
func (cc *Context) AddInputPort(tag string, port *Port) {
	if _, ok := cc.inputs[tag]; ok {
		return
	}
	cc.inputs[tag] = port
}

// AddOutputPort installs port under tag unless the tag is already taken, in
// which case the existing port is retained.
func (cc *Context) AddOutputPort(tag string, port *Port) {
	if _, ok := cc.outputs[tag]; ok {
		return
	}
	cc.outputs[tag] = port
}

// BindInputPort installs an externally owned port under tag, replacing any
// existing entry. The scheduler uses it to share an upstream output port as a
// downstream input.
func (cc *Context) BindInputPort(tag string, port *Port) {
	cc.inputs[tag] = port
}

// BindOutputPort installs an externally owned port under tag, replacing any
// existing entry.
func (cc *Context) BindOutputPort(tag string, port *Port) {
	cc.outputs[tag] = port
}

// InputPort returns the input port registered under tag.
func (cc *Context) InputPort(tag string) (*Port, error) {
	port, ok := cc.inputs[tag]
	if !ok {
		return nil, errs.New("graph/context", errs.CodeUnknownPort, errs.WithTag(tag),
			errs.WithMessage("no input port registered under tag"))
	}
	return port, nil
}

// OutputPort returns the output port registered under tag.
func (cc *Context) OutputPort(tag string) (*Port, error) {
	port, ok := cc.outputs[tag]
	if !ok {
		return nil, errs.New("graph/context", errs.CodeUnknownPort, errs.WithTag(tag),
			errs.WithMessage("no output port registered under tag"))
	}
	return port, nil
}

// SideParameter returns the shared side packet registered under tag.
func (cc *Context) SideParameter(tag string) (Packet, error) {
	packet, ok := cc.side[tag]
	if !ok {
		return EmptyPacket(), errs.New("graph/context", errs.CodeUnknownSideParameter,
			errs.WithTag(tag), errs.WithMessage("no side parameter registered under tag"))
	}
	return packet, nil
}

// InputTags enumerates the currently installed input tags in no particular
// order.
func (cc *Context) InputTags() []string {
	tags := make([]string, 0, len(cc.inputs))
	for tag := range cc.inputs {
		tags = append(tags, tag)
	}
	return tags
}

// OutputTags enumerates the currently installed output tags in no particular
// order.
func (cc *Context) OutputTags() []string {
	tags := make([]string, 0, len(cc.outputs))
	for tag := range cc.outputs {
		tags = append(tags, tag)
	}
	return tags
}

// HasInput reports whether an input port exists under tag.
func (cc *Context) HasInput(tag string) bool {
	_, ok := cc.inputs[tag]
	return ok
}

// HasOutput reports whether an output port exists under tag.
func (cc *Context) HasOutput(tag string) bool {
	_, ok := cc.outputs[tag]
	return ok
}

// HasSideParameter reports whether a side parameter exists under tag.
func (cc *Context) HasSideParameter(tag string) bool {
	_, ok := cc.side[tag]
	return ok
}
