package image

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// BMP constants: the codec handles uncompressed 24-bit files and 32-bit files
// carrying a BITMAPV4-style color mask header.
const (
	bmpMagic          = 0x4D42
	fileHeaderSize    = 14
	infoHeaderSize    = 40
	colorHeaderSize   = 84
	bitfieldsEncoding = 3
)

type bmpFileHeader struct {
	FileType   uint16
	FileSize   uint32
	Reserved1  uint16
	Reserved2  uint16
	OffsetData uint32
}

type bmpInfoHeader struct {
	Size            uint32
	Width           int32
	Height          int32
	Planes          uint16
	BitCount        uint16
	Compression     uint32
	SizeImage       uint32
	XPixelsPerMeter int32
	YPixelsPerMeter int32
	ColorsUsed      uint32
	ColorsImportant uint32
}

type bmpColorHeader struct {
	RedMask        uint32
	GreenMask      uint32
	BlueMask       uint32
	AlphaMask      uint32
	ColorSpaceType uint32
	Unused         [16]uint32
}

func defaultColorHeader() bmpColorHeader {
	return bmpColorHeader{
		RedMask:        0x00ff0000,
		GreenMask:      0x0000ff00,
		BlueMask:       0x000000ff,
		AlphaMask:      0xff000000,
		ColorSpaceType: 0x73524742, // sRGB
		Unused:         [16]uint32{},
	}
}

// ReadBMP loads a 24- or 32-bit bottom-up BMP file into an Image.
func ReadBMP(path string) (Image, error) {
	file, err := os.Open(path) // #nosec G304 -- asset paths are controlled by operators.
	if err != nil {
		return Image{}, fmt.Errorf("open bmp: %w", err)
	}
	defer func() { _ = file.Close() }()
	return DecodeBMP(file)
}

// DecodeBMP reads a BMP image from r.
func DecodeBMP(r io.ReadSeeker) (Image, error) {
	var fileHeader bmpFileHeader
	if err := binary.Read(r, binary.LittleEndian, &fileHeader); err != nil {
		return Image{}, fmt.Errorf("read bmp file header: %w", err)
	}
	if fileHeader.FileType != bmpMagic {
		return Image{}, fmt.Errorf("not a bmp file: magic 0x%04x", fileHeader.FileType)
	}

	var infoHeader bmpInfoHeader
	if err := binary.Read(r, binary.LittleEndian, &infoHeader); err != nil {
		return Image{}, fmt.Errorf("read bmp info header: %w", err)
	}
	if infoHeader.Height < 0 {
		return Image{}, fmt.Errorf("top-down bmp files are not supported")
	}
	if infoHeader.BitCount != 24 && infoHeader.BitCount != 32 {
		return Image{}, fmt.Errorf("unsupported bmp bit depth %d", infoHeader.BitCount)
	}

	if infoHeader.BitCount == 32 {
		if infoHeader.Size < infoHeaderSize+colorHeaderSize {
			return Image{}, fmt.Errorf("32-bit bmp without color mask header")
		}
		var colorHeader bmpColorHeader
		if err := binary.Read(r, binary.LittleEndian, &colorHeader); err != nil {
			return Image{}, fmt.Errorf("read bmp color header: %w", err)
		}
		expected := defaultColorHeader()
		if colorHeader.RedMask != expected.RedMask ||
			colorHeader.GreenMask != expected.GreenMask ||
			colorHeader.BlueMask != expected.BlueMask ||
			colorHeader.AlphaMask != expected.AlphaMask {
			return Image{}, fmt.Errorf("unexpected bmp color masks")
		}
	}

	if _, err := r.Seek(int64(fileHeader.OffsetData), io.SeekStart); err != nil {
		return Image{}, fmt.Errorf("seek pixel data: %w", err)
	}

	width := int(infoHeader.Width)
	height := int(infoHeader.Height)
	bytesPerPixel := int(infoHeader.BitCount) / 8
	rowBytes := width * bytesPerPixel
	data := make([]byte, rowBytes*height)

	padding := (4 - rowBytes%4) % 4
	pad := make([]byte, padding)
	for y := 0; y < height; y++ {
		if _, err := io.ReadFull(r, data[y*rowBytes:(y+1)*rowBytes]); err != nil {
			return Image{}, fmt.Errorf("read bmp row %d: %w", y, err)
		}
		if padding > 0 {
			if _, err := io.ReadFull(r, pad); err != nil {
				return Image{}, fmt.Errorf("read bmp row %d padding: %w", y, err)
			}
		}
	}

	format := FormatRGB24
	if infoHeader.BitCount == 32 {
		format = FormatRGBA32
	}
	return New(width, height, format, data)
}

// WriteBMP stores img as an uncompressed BMP file.
func WriteBMP(path string, img Image) error {
	var buf bytes.Buffer
	if err := EncodeBMP(&buf, img); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write bmp: %w", err)
	}
	return nil
}

// EncodeBMP writes img to w. RGBA images carry the color mask header and the
// bitfields compression marker; RGB images get the plain 40-byte info header.
func EncodeBMP(w io.Writer, img Image) error {
	if img.Format() != FormatRGB24 && img.Format() != FormatRGBA32 {
		return fmt.Errorf("unsupported bmp pixel format %s", img.Format())
	}

	bytesPerPixel := img.BytesPerPixel()
	rowBytes := img.Width() * bytesPerPixel
	padding := (4 - rowBytes%4) % 4
	pixelBytes := (rowBytes + padding) * img.Height()

	offset := uint32(fileHeaderSize + infoHeaderSize)
	compression := uint32(0)
	headerSize := uint32(infoHeaderSize)
	if img.Format() == FormatRGBA32 {
		offset += colorHeaderSize
		compression = bitfieldsEncoding
		headerSize += colorHeaderSize
	}

	fileHeader := bmpFileHeader{
		FileType:   bmpMagic,
		FileSize:   offset + uint32(pixelBytes),
		Reserved1:  0,
		Reserved2:  0,
		OffsetData: offset,
	}
	infoHeader := bmpInfoHeader{
		Size:            headerSize,
		Width:           int32(img.Width()),
		Height:          int32(img.Height()),
		Planes:          1,
		BitCount:        uint16(bytesPerPixel * 8),
		Compression:     compression,
		SizeImage:       uint32(pixelBytes),
		XPixelsPerMeter: 0,
		YPixelsPerMeter: 0,
		ColorsUsed:      0,
		ColorsImportant: 0,
	}

	if err := binary.Write(w, binary.LittleEndian, fileHeader); err != nil {
		return fmt.Errorf("write bmp file header: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, infoHeader); err != nil {
		return fmt.Errorf("write bmp info header: %w", err)
	}
	if img.Format() == FormatRGBA32 {
		if err := binary.Write(w, binary.LittleEndian, defaultColorHeader()); err != nil {
			return fmt.Errorf("write bmp color header: %w", err)
		}
	}

	data := img.Data()
	pad := make([]byte, padding)
	for y := 0; y < img.Height(); y++ {
		if _, err := w.Write(data[y*rowBytes : (y+1)*rowBytes]); err != nil {
			return fmt.Errorf("write bmp row %d: %w", y, err)
		}
		if padding > 0 {
			if _, err := w.Write(pad); err != nil {
				return fmt.Errorf("write bmp row %d padding: %w", y, err)
			}
		}
	}
	return nil
}
