package esm

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/Faultbox/wnamtool/pkg/encoding"
)

// HEDR layout.
const (
	hedrSize        = 300
	companySize     = 32
	descriptionSize = 256
)

// VersionBaseline is the HEDR version written by the original game tools.
const VersionBaseline float32 = 1.3

// FileType identifies the kind of world file declared in HEDR.
type FileType uint32

// File type constants.
const (
	FileTypePlugin FileType = 0
	FileTypeMaster FileType = 1
	FileTypeSave   FileType = 32
)

// Master is a dependency declaration: a MAST/DATA pair in the file header.
type Master struct {
	Name string
	Size uint64
}

// Header is the decoded TES3 record.
type Header struct {
	Version     float32
	Type        FileType
	Company     string
	Description string
	NumRecords  uint32
	Masters     []Master
}

// ParseHeader decodes a TES3 record.
func ParseHeader(rec Record) (*Header, error) {
	if rec.Tag != TagTES3 {
		return nil, fmt.Errorf("%w: expected TES3 record, got %s", ErrMalformedRecord, rec.Tag)
	}

	hedr, ok := rec.Get(TagHEDR)
	if !ok {
		return nil, fmt.Errorf("%w: TES3 without HEDR", ErrMalformedRecord)
	}
	if len(hedr) < hedrSize {
		return nil, fmt.Errorf("%w: HEDR is %d bytes, want %d", ErrMalformedRecord, len(hedr), hedrSize)
	}

	h := &Header{
		Version:     math.Float32frombits(binary.LittleEndian.Uint32(hedr[0:4])),
		Type:        FileType(binary.LittleEndian.Uint32(hedr[4:8])),
		Company:     encoding.ZString(hedr[8 : 8+companySize]),
		Description: encoding.ZString(hedr[40 : 40+descriptionSize]),
		NumRecords:  binary.LittleEndian.Uint32(hedr[296:300]),
	}

	// MAST is always followed by a DATA carrying the master's size.
	pending := -1
	for _, s := range rec.Subrecords {
		switch s.Tag {
		case TagMAST:
			h.Masters = append(h.Masters, Master{Name: encoding.ZString(s.Data)})
			pending = len(h.Masters) - 1
		case TagDATA:
			if pending < 0 {
				continue
			}
			if len(s.Data) < 8 {
				return nil, fmt.Errorf("%w: master %q size is %d bytes", ErrMalformedRecord, h.Masters[pending].Name, len(s.Data))
			}
			h.Masters[pending].Size = binary.LittleEndian.Uint64(s.Data)
			pending = -1
		}
	}

	return h, nil
}

// Record encodes the header as a TES3 record.
func (h *Header) Record() Record {
	hedr := make([]byte, hedrSize)
	binary.LittleEndian.PutUint32(hedr[0:4], math.Float32bits(h.Version))
	binary.LittleEndian.PutUint32(hedr[4:8], uint32(h.Type))
	copy(hedr[8:8+companySize], encoding.FixedString(h.Company, companySize))
	copy(hedr[40:40+descriptionSize], encoding.FixedString(h.Description, descriptionSize))
	binary.LittleEndian.PutUint32(hedr[296:300], h.NumRecords)

	subs := []Subrecord{{Tag: TagHEDR, Data: hedr}}
	for _, m := range h.Masters {
		size := make([]byte, 8)
		binary.LittleEndian.PutUint64(size, m.Size)
		subs = append(subs,
			Subrecord{Tag: TagMAST, Data: encoding.PutZString(m.Name)},
			Subrecord{Tag: TagDATA, Data: size},
		)
	}
	return NewRecord(TagTES3, subs...)
}
