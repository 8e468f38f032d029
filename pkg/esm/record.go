// Package esm provides reading and writing of TES3 world files (.esm/.esp).
//
// A world file is a flat sequence of records. Each record carries a 16-byte
// header (tag, payload size, 4 reserved bytes, flags) followed by a list of
// subrecords, each a tag, a uint32 length and that many bytes of payload.
package esm

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// Record format errors.
var (
	ErrMalformedRecord = errors.New("malformed record")
	ErrRecordTooLarge  = errors.New("record payload exceeds 4 GiB")
)

const (
	recordHeaderSize    = 16
	subrecordHeaderSize = 8
)

// Tag is a four character record or subrecord type.
type Tag [4]byte

// Record and subrecord tags used by the tool.
var (
	TagTES3 = NewTag("TES3")
	TagHEDR = NewTag("HEDR")
	TagMAST = NewTag("MAST")
	TagDATA = NewTag("DATA")
	TagLAND = NewTag("LAND")
	TagLTEX = NewTag("LTEX")
	TagCELL = NewTag("CELL")
	TagINTV = NewTag("INTV")
	TagNAME = NewTag("NAME")
	TagVNML = NewTag("VNML")
	TagVHGT = NewTag("VHGT")
	TagWNAM = NewTag("WNAM")
	TagVCLR = NewTag("VCLR")
	TagVTEX = NewTag("VTEX")
)

// NewTag builds a tag from the first four bytes of s, zero padded.
func NewTag(s string) Tag {
	var t Tag
	copy(t[:], s)
	return t
}

// String returns the tag as text.
func (t Tag) String() string {
	return string(t[:])
}

// TagSet is an immutable set of wanted record tags.
// A nil TagSet accepts every tag.
type TagSet map[Tag]struct{}

// NewTagSet returns a set containing tags.
func NewTagSet(tags ...Tag) TagSet {
	s := make(TagSet, len(tags))
	for _, t := range tags {
		s[t] = struct{}{}
	}
	return s
}

// Contains reports whether t is wanted.
func (s TagSet) Contains(t Tag) bool {
	if s == nil {
		return true
	}
	_, ok := s[t]
	return ok
}

// Subrecord is a tagged binary blob inside a record.
type Subrecord struct {
	Tag  Tag
	Data []byte
}

// Record is a tagged list of subrecords.
type Record struct {
	Tag        Tag
	Reserved   uint32 // header bytes 8-12, kept for byte-identical re-encoding
	Flags      uint32
	Subrecords []Subrecord
}

// NewRecord builds a record from subrecords.
func NewRecord(tag Tag, subrecords ...Subrecord) Record {
	return Record{Tag: tag, Subrecords: subrecords}
}

// Get returns the payload of the first subrecord with the given tag.
func (r Record) Get(tag Tag) ([]byte, bool) {
	for _, s := range r.Subrecords {
		if s.Tag == tag {
			return s.Data, true
		}
	}
	return nil, false
}

// Has reports whether the record carries a subrecord with the given tag.
func (r Record) Has(tag Tag) bool {
	_, ok := r.Get(tag)
	return ok
}

// With returns a copy of r where the first subrecord tagged tag carries
// data. If no such subrecord exists it is appended.
func (r Record) With(tag Tag, data []byte) Record {
	out := r
	out.Subrecords = make([]Subrecord, len(r.Subrecords), len(r.Subrecords)+1)
	copy(out.Subrecords, r.Subrecords)
	for i := range out.Subrecords {
		if out.Subrecords[i].Tag == tag {
			out.Subrecords[i].Data = data
			return out
		}
	}
	out.Subrecords = append(out.Subrecords, Subrecord{Tag: tag, Data: data})
	return out
}

// WithOrdered is like With, but a missing subrecord is inserted before the
// first existing subrecord that follows tag in order.
func (r Record) WithOrdered(tag Tag, data []byte, order []Tag) Record {
	if r.Has(tag) {
		return r.With(tag, data)
	}

	rank := make(map[Tag]int, len(order))
	for i, t := range order {
		rank[t] = i
	}
	want, known := rank[tag]

	pos := len(r.Subrecords)
	if known {
		for i, s := range r.Subrecords {
			if k, ok := rank[s.Tag]; ok && k > want {
				pos = i
				break
			}
		}
	}

	out := r
	out.Subrecords = make([]Subrecord, 0, len(r.Subrecords)+1)
	out.Subrecords = append(out.Subrecords, r.Subrecords[:pos]...)
	out.Subrecords = append(out.Subrecords, Subrecord{Tag: tag, Data: data})
	out.Subrecords = append(out.Subrecords, r.Subrecords[pos:]...)
	return out
}

// PayloadSize returns the sum of encoded subrecord sizes.
func (r Record) PayloadSize() int {
	n := 0
	for _, s := range r.Subrecords {
		n += subrecordHeaderSize + len(s.Data)
	}
	return n
}

// MarshalBinary encodes the record with its header.
func (r Record) MarshalBinary() ([]byte, error) {
	size := r.PayloadSize()
	if uint64(size) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrRecordTooLarge, r.Tag, size)
	}

	buf := bytes.NewBuffer(make([]byte, 0, recordHeaderSize+size))
	var hdr [recordHeaderSize]byte
	copy(hdr[0:4], r.Tag[:])
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(size))
	binary.LittleEndian.PutUint32(hdr[8:12], r.Reserved)
	binary.LittleEndian.PutUint32(hdr[12:16], r.Flags)
	buf.Write(hdr[:])

	for _, s := range r.Subrecords {
		var sh [subrecordHeaderSize]byte
		copy(sh[0:4], s.Tag[:])
		binary.LittleEndian.PutUint32(sh[4:8], uint32(len(s.Data)))
		buf.Write(sh[:])
		buf.Write(s.Data)
	}
	return buf.Bytes(), nil
}

// Encode writes the encoded record to w.
func Encode(w io.Writer, r Record) error {
	data, err := r.MarshalBinary()
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// parseSubrecords splits a record payload into subrecords.
func parseSubrecords(tag Tag, payload []byte) ([]Subrecord, error) {
	var subs []Subrecord
	offset := 0
	for offset < len(payload) {
		if offset+subrecordHeaderSize > len(payload) {
			return nil, fmt.Errorf("%w: %s: subrecord header at %d crosses record boundary", ErrMalformedRecord, tag, offset)
		}
		var st Tag
		copy(st[:], payload[offset:offset+4])
		n := binary.LittleEndian.Uint32(payload[offset+4 : offset+8])
		offset += subrecordHeaderSize

		if uint64(n) > uint64(len(payload)-offset) {
			return nil, fmt.Errorf("%w: %s.%s: length %d exceeds remaining %d bytes", ErrMalformedRecord, tag, st, n, len(payload)-offset)
		}
		end := offset + int(n)
		subs = append(subs, Subrecord{Tag: st, Data: payload[offset:end:end]})
		offset = end
	}
	return subs, nil
}
