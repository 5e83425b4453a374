package bmp

import (
	"fmt"
	"os"

	"github.com/gabriel-vasile/mimetype"
)

// Luma returns the integer luminance of an RGB triple,
// 0.299R + 0.587G + 0.114B truncated.
func Luma(r, g, b byte) byte {
	return byte((299*int(r) + 587*int(g) + 114*int(b)) / 1000)
}

// Grayscale rewrites the pixels of the bitmap held in data. 24 and 32 bit
// images have every pixel replaced by its luma; images of 8 bits or less have
// their color table converted instead. Row padding and the header are left
// untouched and the length of data never changes.
func Grayscale(data []byte, h Header) error {
	if h.Compression != compressionRGB && h.Compression != compressionBitfields {
		return fmt.Errorf("unsupported BMP compression %d", h.Compression)
	}
	if h.Width <= 0 || h.Rows() == 0 {
		return fmt.Errorf("invalid BMP dimensions %dx%d", h.Width, h.Height)
	}

	switch h.BitCount {
	case 24, 32:
		return grayPixels(data, h, int(h.BitCount)/8)
	case 1, 4, 8:
		return grayPalette(data, h)
	default:
		return fmt.Errorf("unsupported BMP bit depth %d", h.BitCount)
	}
}

// grayPixels converts an uncompressed BGR(A) pixel array.
func grayPixels(data []byte, h Header, bytesPerPixel int) error {
	stride := h.RowStride()
	start := int(h.DataOffset)
	end := start + stride*h.Rows()
	if start < HeaderSize || end > len(data) {
		return fmt.Errorf("pixel array [%d,%d) outside file of %d bytes", start, end, len(data))
	}

	width := int(h.Width)
	for row := 0; row < h.Rows(); row++ {
		line := data[start+row*stride:]
		for x := 0; x < width; x++ {
			px := line[x*bytesPerPixel:]
			gray := Luma(px[2], px[1], px[0])
			px[0], px[1], px[2] = gray, gray, gray
		}
	}
	return nil
}

// grayPalette converts the BGRX color table that follows the info header.
func grayPalette(data []byte, h Header) error {
	colors := int(h.ColorsUsed)
	if colors == 0 {
		colors = 1 << h.BitCount
	}
	start := 14 + int(h.DIBSize)
	end := start + colors*4
	if end > len(data) || end > int(h.DataOffset) {
		return fmt.Errorf("color table [%d,%d) outside header area", start, end)
	}

	for i := start; i < end; i += 4 {
		gray := Luma(data[i+2], data[i+1], data[i])
		data[i], data[i+1], data[i+2] = gray, gray, gray
	}
	return nil
}

// ConvertFile turns the bitmap at path to grayscale in place. The content
// must sniff as image/bmp; the file length is preserved.
func ConvertFile(path string) error {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return fmt.Errorf("failed to detect type of %s: %w", path, err)
	}
	if !mtype.Is("image/bmp") {
		return fmt.Errorf("%w: %s is %s", ErrNotBitmap, path, mtype.String())
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}

	data := make([]byte, info.Size())
	if _, err := f.ReadAt(data, 0); err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	h, err := parseHeader(data)
	if err != nil {
		return err
	}
	if err := Grayscale(data, h); err != nil {
		return fmt.Errorf("failed to convert %s: %w", path, err)
	}

	// Everything before the color table is unchanged.
	from := 14 + int(h.DIBSize)
	if from > len(data) {
		from = len(data)
	}
	if _, err := f.WriteAt(data[from:], int64(from)); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Sync()
}
