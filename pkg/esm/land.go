package esm

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
)

// LAND subrecord sizes.
const (
	HeightCellSize = 81 // WNAM: 9x9 signed samples
	normalsSize    = 65 * 65 * 3
	heightsSize    = 4 + 65*65 + 3
	slotsSize      = TextureSlotCount * 2
)

// TextureSlotCount is the number of VTEX entries in a LAND record.
const TextureSlotCount = 256

// LandHasHeights is the DATA flag marking VNML, VHGT and WNAM as present.
const LandHasHeights uint32 = 0x1

// SeaLevel is the WNAM sample of an untouched cell (-128).
const SeaLevel byte = 0x80

// seaLevelOffset is the VHGT base height (-256.0) of the default template.
const seaLevelOffset float32 = -256

// landOrder is the subrecord order of a LAND record.
var landOrder = []Tag{TagINTV, TagDATA, TagVNML, TagVHGT, TagWNAM, TagVCLR, TagVTEX}

// Coordinate identifies one exterior cell.
type Coordinate struct {
	X int32
	Y int32
}

// String returns the coordinate as "x,y".
func (c Coordinate) String() string {
	return strconv.Itoa(int(c.X)) + "," + strconv.Itoa(int(c.Y))
}

// HeightCell is the raw WNAM payload of one cell. Bytes are two's complement
// samples stored row by row.
type HeightCell [HeightCellSize]byte

// SeaLevelCell returns a cell where every sample is at sea level.
func SeaLevelCell() HeightCell {
	var c HeightCell
	for i := range c {
		c[i] = SeaLevel
	}
	return c
}

// IsSeaLevel reports whether every sample equals SeaLevel.
func (c HeightCell) IsSeaLevel() bool {
	for _, b := range c {
		if b != SeaLevel {
			return false
		}
	}
	return true
}

// Sample returns the signed sample at column x, row y.
func (c HeightCell) Sample(x, y int) int8 {
	return int8(c[y*9+x])
}

// LandCoordinate reads the cell coordinate of a LAND record.
func LandCoordinate(rec Record) (Coordinate, error) {
	intv, ok := rec.Get(TagINTV)
	if !ok {
		return Coordinate{}, fmt.Errorf("%w: LAND without INTV", ErrMalformedRecord)
	}
	if len(intv) < 8 {
		return Coordinate{}, fmt.Errorf("%w: LAND INTV is %d bytes", ErrMalformedRecord, len(intv))
	}
	return Coordinate{
		X: int32(binary.LittleEndian.Uint32(intv[0:4])),
		Y: int32(binary.LittleEndian.Uint32(intv[4:8])),
	}, nil
}

// LandHeights returns the WNAM cell of a LAND record.
// ok is false when the record has no WNAM.
func LandHeights(rec Record) (cell HeightCell, ok bool, err error) {
	wnam, ok := rec.Get(TagWNAM)
	if !ok {
		return cell, false, nil
	}
	if len(wnam) != HeightCellSize {
		return cell, false, fmt.Errorf("%w: WNAM is %d bytes, want %d", ErrMalformedRecord, len(wnam), HeightCellSize)
	}
	copy(cell[:], wnam)
	return cell, true, nil
}

// WithHeights returns a copy of rec carrying cell as its WNAM.
func WithHeights(rec Record, cell HeightCell) Record {
	data := make([]byte, HeightCellSize)
	copy(data, cell[:])
	return rec.WithOrdered(TagWNAM, data, landOrder)
}

// NewLand synthesizes a LAND record for c from the default template.
// VNML and VHGT are only attached when withAux is set.
func NewLand(c Coordinate, cell HeightCell, withAux bool) Record {
	intv := make([]byte, 8)
	binary.LittleEndian.PutUint32(intv[0:4], uint32(c.X))
	binary.LittleEndian.PutUint32(intv[4:8], uint32(c.Y))

	data := make([]byte, 4)
	binary.LittleEndian.PutUint32(data, LandHasHeights)

	rec := NewRecord(TagLAND,
		Subrecord{Tag: TagINTV, Data: intv},
		Subrecord{Tag: TagDATA, Data: data},
	)
	if withAux {
		rec.Subrecords = append(rec.Subrecords,
			Subrecord{Tag: TagVNML, Data: DefaultNormals()},
			Subrecord{Tag: TagVHGT, Data: DefaultVertexHeights()},
		)
	}
	return WithHeights(rec, cell)
}

// SanitizeLand patches a LAND record without WNAM so that it carries the
// default height data and has its DATA flag set. Records that already
// carry WNAM are returned unchanged with patched=false.
func SanitizeLand(rec Record, withAux bool) (out Record, patched bool) {
	if rec.Has(TagWNAM) {
		return rec, false
	}

	flags := uint32(0)
	if data, ok := rec.Get(TagDATA); ok && len(data) >= 4 {
		flags = binary.LittleEndian.Uint32(data)
	}
	data := make([]byte, 4)
	binary.LittleEndian.PutUint32(data, flags|LandHasHeights)
	out = rec.WithOrdered(TagDATA, data, landOrder)

	if withAux {
		if !out.Has(TagVNML) {
			out = out.WithOrdered(TagVNML, DefaultNormals(), landOrder)
		}
		if !out.Has(TagVHGT) {
			out = out.WithOrdered(TagVHGT, DefaultVertexHeights(), landOrder)
		}
	}
	return WithHeights(out, SeaLevelCell()), true
}

// DefaultNormals returns a VNML payload where every normal points up.
func DefaultNormals() []byte {
	return bytes.Repeat([]byte{0, 0, 127}, normalsSize/3)
}

// DefaultVertexHeights returns a flat VHGT payload at the sea floor.
func DefaultVertexHeights() []byte {
	b := make([]byte, heightsSize)
	binary.LittleEndian.PutUint32(b[0:4], math.Float32bits(seaLevelOffset))
	return b
}

// TextureSlots is the decoded VTEX payload. A zero slot uses the default
// texture; any other value v refers to the LTEX with index v-1.
type TextureSlots [TextureSlotCount]uint16

// LandTextures returns the VTEX slots of a LAND record.
// ok is false when the record has no VTEX.
func LandTextures(rec Record) (slots TextureSlots, ok bool, err error) {
	vtex, ok := rec.Get(TagVTEX)
	if !ok {
		return slots, false, nil
	}
	if len(vtex) != slotsSize {
		return slots, false, fmt.Errorf("%w: VTEX is %d bytes, want %d", ErrMalformedRecord, len(vtex), slotsSize)
	}
	for i := range slots {
		slots[i] = binary.LittleEndian.Uint16(vtex[i*2:])
	}
	return slots, true, nil
}

// WithTextures returns a copy of rec carrying slots as its VTEX.
func WithTextures(rec Record, slots TextureSlots) Record {
	data := make([]byte, slotsSize)
	for i, s := range slots {
		binary.LittleEndian.PutUint16(data[i*2:], s)
	}
	return rec.WithOrdered(TagVTEX, data, landOrder)
}
