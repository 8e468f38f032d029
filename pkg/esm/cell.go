package esm

import "encoding/binary"

// NewExteriorCell builds a minimal exterior CELL record for c.
// It has an empty name and a DATA block of flags 0 and the grid position.
func NewExteriorCell(c Coordinate) Record {
	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data[4:8], uint32(c.X))
	binary.LittleEndian.PutUint32(data[8:12], uint32(c.Y))
	return NewRecord(TagCELL,
		Subrecord{Tag: TagNAME, Data: []byte{0}},
		Subrecord{Tag: TagDATA, Data: data},
	)
}
