package stream

import (
	"fmt"
	"io"
)

// FrameWriter emits processed frames as raw bytes in the input layout, with
// no header.
type FrameWriter struct {
	w io.Writer
}

// NewFrameWriter wraps w.
func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{w: w}
}

// WriteFrame writes the frame buffer to the sink.
func (fw *FrameWriter) WriteFrame(data []byte) error {
	if _, err := fw.w.Write(data); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}
