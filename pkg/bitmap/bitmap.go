// Package bitmap reads and writes 8-bit paletted BMP heightmaps.
//
// Pixels hold WNAM height bytes. A height byte h is shown as the gray level
// (h+128) mod 256, so sea level (-128) is black and the highest sample is
// white. Rows are kept in file order: row 0 is the first stored row, which
// viewers display at the bottom.
package bitmap

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// CellSize is the edge length in pixels of one world cell.
const CellSize = 9

// Raster is a grid of height bytes.
type Raster struct {
	Width  int
	Height int
	Stride int // row length in Pix, Width rounded up to 4 bytes
	Pix    []byte
}

// Stride returns width rounded up to a multiple of 4.
func Stride(width int) int {
	return (width + 3) &^ 3
}

// NewRaster returns a zeroed raster of the given size.
func NewRaster(width, height int) *Raster {
	stride := Stride(width)
	return &Raster{
		Width:  width,
		Height: height,
		Stride: stride,
		Pix:    make([]byte, stride*height),
	}
}

// Row returns the logical bytes of row y.
func (r *Raster) Row(y int) []byte {
	start := y * r.Stride
	return r.Pix[start : start+r.Width]
}

// At returns the height byte at (x, y).
func (r *Raster) At(x, y int) byte {
	return r.Pix[y*r.Stride+x]
}

// Set sets the height byte at (x, y).
func (r *Raster) Set(x, y int, v byte) {
	r.Pix[y*r.Stride+x] = v
}

// Fill sets every logical pixel to v.
func (r *Raster) Fill(v byte) {
	for y := 0; y < r.Height; y++ {
		row := r.Row(y)
		for x := range row {
			row[x] = v
		}
	}
}

// Decode reads a heightmap bitmap. Each pixel is mapped through the file's
// own palette and then back to a height byte.
func Decode(r io.Reader) (*Raster, Palette, error) {
	var h fileHeader
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return nil, nil, fmt.Errorf("%w: reading header: %v", ErrTruncatedRaster, err)
	}
	if err := h.validate(); err != nil {
		return nil, nil, err
	}

	width, height := int(h.Width), int(h.Height)
	if width%CellSize != 0 || height%CellSize != 0 {
		return nil, nil, fmt.Errorf("%w: got %dx%d", ErrInvalidCellDimensions, width, height)
	}

	colors := int(h.colors())
	raw := make([]byte, colors*4)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, nil, fmt.Errorf("%w: reading palette: %v", ErrTruncatedRaster, err)
	}
	palette := make(Palette, colors)
	for i := range palette {
		copy(palette[i][:], raw[i*4:])
	}

	// Some writers leave a gap between the palette and the pixels.
	gap := int64(h.DataOffset) - int64(headerSize+colors*4)
	if _, err := io.CopyN(io.Discard, r, gap); err != nil {
		return nil, nil, fmt.Errorf("%w: seeking to pixel data: %v", ErrTruncatedRaster, err)
	}

	// Editors that omit ImageSize pad rows to 4 bytes.
	stride := Stride(width)
	if h.ImageSize != 0 && height > 0 {
		stride = int(h.ImageSize) / height
		if stride < width {
			return nil, nil, &FieldError{Field: "ImageSize", Got: h.ImageSize, Want: fmt.Sprintf("at least %d", width*height)}
		}
	}

	// Rows are read one at a time so that a header claiming more data than
	// the file holds fails before the whole raster is allocated.
	outStride := Stride(width)
	pad := make([]byte, outStride-width)
	var pix bytes.Buffer
	for y := 0; y < height; y++ {
		if _, err := io.CopyN(&pix, r, int64(width)); err != nil {
			return nil, nil, fmt.Errorf("%w: pixel row %d: %v", ErrTruncatedRaster, y, err)
		}
		pix.Write(pad)
		if _, err := io.CopyN(io.Discard, r, int64(stride-width)); err != nil {
			return nil, nil, fmt.Errorf("%w: pixel row %d padding: %v", ErrTruncatedRaster, y, err)
		}
	}

	raster := &Raster{Width: width, Height: height, Stride: outStride, Pix: pix.Bytes()}
	for y := 0; y < height; y++ {
		row := raster.Row(y)
		for x, idx := range row {
			if int(idx) >= colors {
				return nil, nil, &FieldError{Field: "ColorsUsed", Got: uint32(colors), Want: fmt.Sprintf("more than pixel index %d", idx)}
			}
			row[x] = FromGray(palette[idx][0])
		}
	}

	return raster, palette, nil
}

// DecodeFile reads a heightmap bitmap from disk.
func DecodeFile(path string) (*Raster, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening bitmap: %w", err)
	}
	defer f.Close()

	raster, _, err := Decode(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return raster, nil
}

// Encode writes r as an 8-bit bitmap with the canonical gray palette.
func Encode(w io.Writer, r *Raster) error {
	stride := Stride(r.Width)
	h := newFileHeader(r.Width, r.Height, stride)

	buf := bytes.NewBuffer(make([]byte, 0, int(h.FileSize)))
	if err := binary.Write(buf, binary.LittleEndian, &h); err != nil {
		return err
	}
	for _, c := range CanonicalPalette() {
		buf.Write(c[:])
	}

	pad := make([]byte, stride-r.Width)
	for y := 0; y < r.Height; y++ {
		buf.Write(r.Row(y))
		buf.Write(pad)
	}

	_, err := w.Write(buf.Bytes())
	return err
}

// EncodeFile writes r to path.
func EncodeFile(path string, r *Raster) error {
	var buf bytes.Buffer
	if err := Encode(&buf, r); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("writing bitmap: %w", err)
	}
	return nil
}
