package bitmap

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Bitmap format errors.
var (
	ErrUnsupportedRaster     = errors.New("unsupported raster")
	ErrInvalidCellDimensions = errors.New("raster dimensions must be multiples of 9")
	ErrTruncatedRaster       = errors.New("truncated raster data")
)

// Header layout constants.
const (
	fileHeaderSize = 14
	infoHeaderSize = 0x28
	headerSize     = fileHeaderSize + infoHeaderSize
	paletteSize    = 256 * 4
	dataOffset     = headerSize + paletteSize // 0x436
	pixelsPerMeter = 0x0EC4
)

// FieldError reports a header field that violates a format constraint.
type FieldError struct {
	Field string
	Got   uint32
	Want  string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s is %d, want %s", ErrUnsupportedRaster, e.Field, e.Got, e.Want)
}

func (e *FieldError) Unwrap() error {
	return ErrUnsupportedRaster
}

// fileHeader is the BITMAPFILEHEADER + BITMAPINFOHEADER pair.
type fileHeader struct {
	Signature       [2]byte
	FileSize        uint32
	Reserved        uint32
	DataOffset      uint32
	InfoHeaderSize  uint32
	Width           uint32
	Height          uint32
	Planes          uint16
	BitsPerPixel    uint16
	Compression     uint32
	ImageSize       uint32
	XPixelsPerMeter uint32
	YPixelsPerMeter uint32
	ColorsUsed      uint32
	ImportantColors uint32
}

// Fits reports whether a width by height raster can be stored in a bitmap,
// whose size fields are 32 bits wide.
func Fits(width, height int) bool {
	if width < 0 || height < 0 || width > math.MaxInt32 || height > math.MaxInt32 {
		return false
	}
	return uint64(Stride(width))*uint64(height) <= math.MaxUint32
}

// validate checks every fixed field, in file order.
func (h *fileHeader) validate() error {
	if h.Signature != [2]byte{'B', 'M'} {
		return &FieldError{Field: "Signature", Got: uint32(binary.LittleEndian.Uint16(h.Signature[:])), Want: `"BM"`}
	}
	if h.Reserved != 0 {
		return &FieldError{Field: "Reserved", Got: h.Reserved, Want: "0"}
	}
	if h.InfoHeaderSize != infoHeaderSize {
		return &FieldError{Field: "InfoHeaderSize", Got: h.InfoHeaderSize, Want: "40"}
	}
	if h.Width > math.MaxInt32 {
		return &FieldError{Field: "Width", Got: h.Width, Want: fmt.Sprintf("at most %d", math.MaxInt32)}
	}
	if int32(h.Height) < 0 {
		return &FieldError{Field: "Height", Got: h.Height, Want: "a bottom-up (positive) height"}
	}
	if !Fits(int(h.Width), int(h.Height)) {
		return &FieldError{Field: "Height", Got: h.Height, Want: fmt.Sprintf("at most %d rows of %d pixels", math.MaxUint32/uint64(Stride(int(h.Width))), h.Width)}
	}
	if h.Planes != 1 {
		return &FieldError{Field: "Planes", Got: uint32(h.Planes), Want: "1"}
	}
	if h.BitsPerPixel != 8 {
		return &FieldError{Field: "BitsPerPixel", Got: uint32(h.BitsPerPixel), Want: "8"}
	}
	if h.Compression != 0 {
		return &FieldError{Field: "Compression", Got: h.Compression, Want: "0 (uncompressed)"}
	}
	if h.ColorsUsed > 256 {
		return &FieldError{Field: "ColorsUsed", Got: h.ColorsUsed, Want: "at most 256"}
	}
	if h.DataOffset < headerSize+h.colors()*4 {
		return &FieldError{Field: "DataOffset", Got: h.DataOffset, Want: fmt.Sprintf("at least %d", headerSize+h.colors()*4)}
	}
	return nil
}

// colors returns the palette length. Zero means a full palette.
func (h *fileHeader) colors() uint32 {
	if h.ColorsUsed == 0 {
		return 256
	}
	return h.ColorsUsed
}

// newFileHeader returns the canonical header for a raster.
func newFileHeader(width, height, stride int) fileHeader {
	imageSize := uint32(stride * height)
	return fileHeader{
		Signature:       [2]byte{'B', 'M'},
		FileSize:        dataOffset + imageSize,
		DataOffset:      dataOffset,
		InfoHeaderSize:  infoHeaderSize,
		Width:           uint32(width),
		Height:          uint32(height),
		Planes:          1,
		BitsPerPixel:    8,
		ImageSize:       imageSize,
		XPixelsPerMeter: pixelsPerMeter,
		YPixelsPerMeter: pixelsPerMeter,
		ColorsUsed:      256,
		ImportantColors: 256,
	}
}
