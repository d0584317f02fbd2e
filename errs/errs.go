// Package errs provides structured error types shared across the calcflow runtime.
package errs

import (
	"errors"
	"strconv"
	"strings"
)

// Code identifies a runtime failure category.
type Code string

const (
	// CodeEmptyPacket indicates a typed read from the invalid packet.
	CodeEmptyPacket Code = "empty_packet"
	// CodeTypeMismatch indicates a typed read against a payload of a different type.
	CodeTypeMismatch Code = "type_mismatch"
	// CodeUnknownPort indicates a context port lookup for an unregistered tag.
	CodeUnknownPort Code = "unknown_port"
	// CodeUnknownSideParameter indicates a side parameter lookup for an unregistered tag.
	CodeUnknownSideParameter Code = "unknown_side_parameter"
	// CodeEmptyPipeline indicates a connect or run attempt with zero calculators.
	CodeEmptyPipeline Code = "empty_pipeline"
	// CodeInvalidState indicates a scheduler operation issued in the wrong lifecycle state.
	CodeInvalidState Code = "invalid_state"
	// CodeInvalidConfig indicates invalid configuration or manifest input.
	CodeInvalidConfig Code = "invalid_config"
	// CodeUnavailable indicates an exhausted or closed external collaborator.
	CodeUnavailable Code = "unavailable"
)

// E captures structured error information produced across the calcflow stack.
type E struct {
	Component   string
	Code        Code
	Tag         string
	Message     string
	Remediation string

	cause error
}

// Option configures an error envelope.
type Option func(*E)

// New constructs an error envelope for the component and error code.
func New(component string, code Code, opts ...Option) *E {
	e := &E{
		Component:   strings.TrimSpace(component),
		Code:        code,
		Tag:         "",
		Message:     "",
		Remediation: "",
		cause:       nil,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// WithMessage attaches a human-readable message to the error.
func WithMessage(message string) Option {
	trimmed := strings.TrimSpace(message)
	return func(e *E) {
		e.Message = trimmed
	}
}

// WithTag records the port or side parameter tag involved in the failure.
func WithTag(tag string) Option {
	trimmed := strings.TrimSpace(tag)
	return func(e *E) {
		e.Tag = trimmed
	}
}

// WithRemediation attaches remediation guidance to the error.
func WithRemediation(remediation string) Option {
	trimmed := strings.TrimSpace(remediation)
	return func(e *E) {
		e.Remediation = trimmed
	}
}

// WithCause sets the underlying cause error.
func WithCause(err error) Option {
	return func(e *E) {
		e.cause = err
	}
}

func (e *E) Error() string {
	if e == nil {
		return "<nil>"
	}
	var parts []string

	component := strings.TrimSpace(e.Component)
	if component == "" {
		component = "unknown"
	}
	parts = append(parts, "component="+component)

	code := strings.TrimSpace(string(e.Code))
	if code == "" {
		code = "unknown"
	}
	parts = append(parts, "code="+code)

	if e.Tag != "" {
		parts = append(parts, "tag="+strconv.Quote(e.Tag))
	}
	if e.Message != "" {
		parts = append(parts, "message="+strconv.Quote(e.Message))
	}
	if e.Remediation != "" {
		parts = append(parts, "remediation="+strconv.Quote(e.Remediation))
	}
	if e.cause != nil {
		parts = append(parts, "cause="+strconv.Quote(e.cause.Error()))
	}

	return strings.Join(parts, " ")
}

func (e *E) Unwrap() error { return e.cause }

// CodeOf extracts the failure category from err, unwrapping as needed.
func CodeOf(err error) Code {
	var envelope *E
	if errors.As(err, &envelope) {
		return envelope.Code
	}
	return ""
}

// HasCode reports whether err carries the given failure category.
func HasCode(err error, code Code) bool {
	return CodeOf(err) == code
}
