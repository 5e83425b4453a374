// Package bmp reads Windows bitmap headers and converts bitmap pixels to
// grayscale in place.
package bmp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// Offsets into the BITMAPFILEHEADER + BITMAPINFOHEADER layout
const (
	offSignature   = 0
	offFileSize    = 2
	offDataOffset  = 10
	offDIBSize     = 14
	offWidth       = 18
	offHeight      = 22
	offBitCount    = 28
	offCompression = 30
	offImageSize   = 34
	offColorsUsed  = 46

	// HeaderSize is the size of the file header plus a BITMAPINFOHEADER
	HeaderSize = 54
)

// Compression values that leave the pixel array uncompressed
const (
	compressionRGB       = 0
	compressionBitfields = 3
)

// ErrNotBitmap is returned when the data does not start with "BM".
var ErrNotBitmap = errors.New("not a BMP file")

// Header holds the fields of a bitmap header needed for reporting and
// conversion.
type Header struct {
	FileSize    uint32
	DataOffset  uint32 // Start of the pixel array
	DIBSize     uint32 // Size of the info header, start of the color table is 14+DIBSize
	Width       int32
	Height      int32 // Negative for top-down bitmaps
	BitCount    uint16
	Compression uint32
	ImageSize   uint32 // May be 0 for uncompressed images
	ColorsUsed  uint32
}

// ReadHeader decodes the bitmap header at the start of r.
func ReadHeader(r io.ReaderAt) (Header, error) {
	buf := make([]byte, HeaderSize)
	n, err := r.ReadAt(buf, 0)
	if n < HeaderSize {
		if err == nil || errors.Is(err, io.EOF) {
			return Header{}, fmt.Errorf("%w: header truncated", ErrNotBitmap)
		}
		return Header{}, fmt.Errorf("failed to read BMP header: %w", err)
	}
	return parseHeader(buf)
}

// ReadHeaderFile opens path and decodes its bitmap header.
func ReadHeaderFile(path string) (Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return ReadHeader(f)
}

func parseHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, fmt.Errorf("%w: header truncated", ErrNotBitmap)
	}
	if buf[offSignature] != 'B' || buf[offSignature+1] != 'M' {
		return Header{}, ErrNotBitmap
	}

	le := binary.LittleEndian
	return Header{
		FileSize:    le.Uint32(buf[offFileSize:]),
		DataOffset:  le.Uint32(buf[offDataOffset:]),
		DIBSize:     le.Uint32(buf[offDIBSize:]),
		Width:       int32(le.Uint32(buf[offWidth:])),
		Height:      int32(le.Uint32(buf[offHeight:])),
		BitCount:    le.Uint16(buf[offBitCount:]),
		Compression: le.Uint32(buf[offCompression:]),
		ImageSize:   le.Uint32(buf[offImageSize:]),
		ColorsUsed:  le.Uint32(buf[offColorsUsed:]),
	}, nil
}

// Rows returns the number of pixel rows regardless of orientation.
func (h Header) Rows() int {
	if h.Height < 0 {
		return int(-h.Height)
	}
	return int(h.Height)
}

// RowStride returns the padded size in bytes of one pixel row.
func (h Header) RowStride() int {
	bits := int(h.Width) * int(h.BitCount)
	return ((bits + 31) / 32) * 4
}
