package stream

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cenkalti/backoff/v5"

	"github.com/calcflow/calcflow/errs"
	"github.com/calcflow/calcflow/internal/image"
	"github.com/calcflow/calcflow/internal/observability"
)

// stdinPath selects standard input as the stream source.
const stdinPath = "-"

// OpenSource opens the named stream source. "-" is standard input. A missing
// path is retried with exponential backoff until ctx is done, so a driver can
// start before the producer has created its fifo.
func OpenSource(ctx context.Context, path string) (io.ReadCloser, error) {
	if path == "" || path == stdinPath {
		return io.NopCloser(os.Stdin), nil
	}

	file, err := backoff.Retry(ctx, func() (*os.File, error) {
		f, err := os.Open(path) // #nosec G304 -- stream paths are controlled by operators.
		if err == nil {
			return f, nil
		}
		if os.IsNotExist(err) {
			observability.Log().Debug("stream source not ready",
				observability.Field{Key: "path", Value: path})
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()))
	if err != nil {
		return nil, fmt.Errorf("open stream source %s: %w", path, err)
	}
	return file, nil
}

// FrameReader parses the stream header once and then yields fixed-size raw
// frames.
type FrameReader struct {
	r      *bufio.Reader
	header Header
}

// NewFrameReader consumes the header from r and prepares frame reads.
func NewFrameReader(r io.Reader) (*FrameReader, error) {
	buffered := bufio.NewReader(r)
	header, err := ParseHeader(buffered)
	if err != nil {
		return nil, err
	}
	fr := new(FrameReader)
	fr.r = buffered
	fr.header = header
	return fr, nil
}

// Header returns the parsed stream metadata.
func (fr *FrameReader) Header() Header { return fr.header }

// ReadFrame reads the next raw frame. A clean end of stream surfaces as
// CodeUnavailable so drivers can distinguish exhaustion from corruption.
func (fr *FrameReader) ReadFrame() (image.Image, error) {
	buf := make([]byte, fr.header.FrameSize())
	if _, err := io.ReadFull(fr.r, buf); err != nil {
		if errors.Is(err, io.EOF) {
			return image.Image{}, errs.New("stream/reader", errs.CodeUnavailable,
				errs.WithMessage("stream source exhausted"), errs.WithCause(err))
		}
		return image.Image{}, fmt.Errorf("read frame: %w", err)
	}
	return image.New(fr.header.Width, fr.header.Height, fr.header.Format, buf)
}
