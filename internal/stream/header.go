// Package stream implements the raw video boundary of the engine: the textual
// stream header, the frame reader feeding the scheduler's input callback, and
// the frame writer draining its output callback.
package stream

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/calcflow/calcflow/errs"
	"github.com/calcflow/calcflow/internal/image"
)

// headerEnd terminates the newline-delimited header block.
const headerEnd = "HEADER_END"

// Header carries the stream metadata announced before the first frame.
type Header struct {
	Width    int
	Height   int
	Format   image.PixelFormat
	FPS      int
	Duration float64
}

// ParseHeader consumes `KEY:VALUE` lines from r up to and including the
// HEADER_END terminator.
func ParseHeader(r *bufio.Reader) (Header, error) {
	var header Header
	for {
		line, err := r.ReadString('\n')
		if err != nil && line == "" {
			return Header{}, fmt.Errorf("read stream header: %w", err)
		}
		line = strings.TrimRight(line, "\r\n")
		if line == headerEnd {
			break
		}

		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		value = strings.TrimSpace(value)

		switch strings.TrimSpace(key) {
		case "WIDTH":
			header.Width, _ = strconv.Atoi(value)
		case "HEIGHT":
			header.Height, _ = strconv.Atoi(value)
		case "PIX_FMT":
			header.Format = image.ParseFormat(value)
		case "FPS":
			header.FPS, _ = strconv.Atoi(value)
		case "DURATION":
			header.Duration, _ = strconv.ParseFloat(value, 64)
		}
		if err != nil {
			return Header{}, fmt.Errorf("stream header truncated before %s", headerEnd)
		}
	}
	if err := header.Validate(); err != nil {
		return Header{}, err
	}
	return header, nil
}

// Validate rejects headers that cannot describe a frame stream.
func (h Header) Validate() error {
	if h.Width <= 0 || h.Height <= 0 {
		return errs.New("stream/header", errs.CodeInvalidConfig,
			errs.WithMessage(fmt.Sprintf("invalid dimensions %dx%d", h.Width, h.Height)))
	}
	if h.Format == image.FormatUnknown {
		return errs.New("stream/header", errs.CodeInvalidConfig,
			errs.WithMessage("unknown pixel format"))
	}
	return nil
}

// FrameSize returns the byte length of one raw frame.
func (h Header) FrameSize() int {
	return h.Width * h.Height * image.BitsPerPixel(h.Format) / 8
}
