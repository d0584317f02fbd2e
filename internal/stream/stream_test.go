package stream

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/calcflow/calcflow/errs"
	"github.com/calcflow/calcflow/internal/image"
)

const sampleHeader = "WIDTH:4\nHEIGHT:2\nPIX_FMT:rgba\nFPS:30\nDURATION:2.5\nHEADER_END\n"

func TestParseHeader(t *testing.T) {
	header, err := ParseHeader(bufio.NewReader(strings.NewReader(sampleHeader)))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if header.Width != 4 || header.Height != 2 {
		t.Fatalf("unexpected dimensions %dx%d", header.Width, header.Height)
	}
	if header.Format != image.FormatRGBA32 {
		t.Fatalf("unexpected format %s", header.Format)
	}
	if header.FPS != 30 {
		t.Fatalf("unexpected fps %d", header.FPS)
	}
	if header.Duration != 2.5 {
		t.Fatalf("unexpected duration %f", header.Duration)
	}
	if header.FrameSize() != 4*2*4 {
		t.Fatalf("unexpected frame size %d", header.FrameSize())
	}
}

func TestParseHeaderIgnoresUnknownKeys(t *testing.T) {
	input := "WIDTH:2\nHEIGHT:2\nCOLORSPACE:bt709\nPIX_FMT:rgb\nHEADER_END\n"
	header, err := ParseHeader(bufio.NewReader(strings.NewReader(input)))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if header.Format != image.FormatRGB24 {
		t.Fatalf("unexpected format %s", header.Format)
	}
}

func TestParseHeaderRejectsInvalidGeometry(t *testing.T) {
	input := "WIDTH:0\nHEIGHT:2\nPIX_FMT:rgba\nHEADER_END\n"
	if _, err := ParseHeader(bufio.NewReader(strings.NewReader(input))); !errs.HasCode(err, errs.CodeInvalidConfig) {
		t.Fatalf("expected invalid_config, got %v", err)
	}
}

func TestParseHeaderRejectsUnknownFormat(t *testing.T) {
	input := "WIDTH:2\nHEIGHT:2\nPIX_FMT:yuv420p\nHEADER_END\n"
	if _, err := ParseHeader(bufio.NewReader(strings.NewReader(input))); !errs.HasCode(err, errs.CodeInvalidConfig) {
		t.Fatalf("expected invalid_config, got %v", err)
	}
}

func TestParseHeaderTruncatedStream(t *testing.T) {
	input := "WIDTH:2\nHEIGHT:2\nPIX_FMT:rgba\n"
	if _, err := ParseHeader(bufio.NewReader(strings.NewReader(input))); err == nil {
		t.Fatal("expected truncation before HEADER_END to fail")
	}
}

func TestFrameReaderYieldsFrames(t *testing.T) {
	frame := bytes.Repeat([]byte{1, 2, 3, 4}, 4*2)
	source := sampleHeader + string(frame) + string(frame)

	reader, err := NewFrameReader(strings.NewReader(source))
	if err != nil {
		t.Fatalf("reader: %v", err)
	}

	for i := 0; i < 2; i++ {
		img, err := reader.ReadFrame()
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if img.Width() != 4 || img.Height() != 2 || img.Format() != image.FormatRGBA32 {
			t.Fatalf("frame %d geometry wrong", i)
		}
		if !bytes.Equal(img.Data(), frame) {
			t.Fatalf("frame %d payload wrong", i)
		}
	}

	if _, err := reader.ReadFrame(); !errs.HasCode(err, errs.CodeUnavailable) {
		t.Fatalf("expected unavailable at end of stream, got %v", err)
	}
}

func TestFrameWriterEmitsRawBytes(t *testing.T) {
	var sink bytes.Buffer
	writer := NewFrameWriter(&sink)
	payload := []byte{9, 8, 7}
	if err := writer.WriteFrame(payload); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !bytes.Equal(sink.Bytes(), payload) {
		t.Fatal("expected raw bytes with no header")
	}
}

func TestOpenSourceReadsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stream.raw")
	if err := os.WriteFile(path, []byte(sampleHeader), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	source, err := OpenSource(ctx, path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = source.Close() }()

	if _, err := NewFrameReader(source); err != nil {
		t.Fatalf("expected a readable header, got %v", err)
	}
}

func TestOpenSourceGivesUpWhenContextExpires(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := OpenSource(ctx, filepath.Join(t.TempDir(), "never.raw")); err == nil {
		t.Fatal("expected a missing source to fail once the context expires")
	}
}
