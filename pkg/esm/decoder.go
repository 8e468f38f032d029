package esm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// Decoder reads records from a world file in a single forward pass.
type Decoder struct {
	r      io.Reader
	offset int64
}

// NewDecoder returns a decoder reading from r. Streams implementing
// io.Seeker skip unwanted payloads without reading them.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r}
}

// Offset returns the number of bytes consumed so far.
func (d *Decoder) Offset() int64 {
	return d.offset
}

// Decode reads the next record. If wanted excludes the record's tag its
// payload is skipped and ok is false. At a clean end of stream Decode
// returns io.EOF.
func (d *Decoder) Decode(wanted TagSet) (rec Record, ok bool, err error) {
	var hdr [recordHeaderSize]byte
	n, err := io.ReadFull(d.r, hdr[:])
	d.offset += int64(n)
	if err == io.EOF {
		return Record{}, false, io.EOF
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("%w: record header at offset %d: %v", ErrMalformedRecord, d.offset-int64(n), err)
	}

	var tag Tag
	copy(tag[:], hdr[0:4])
	size := binary.LittleEndian.Uint32(hdr[4:8])

	if !wanted.Contains(tag) {
		if err := d.skip(int64(size)); err != nil {
			return Record{}, false, fmt.Errorf("%w: skipping %s: %v", ErrMalformedRecord, tag, err)
		}
		return Record{}, false, nil
	}

	payload := make([]byte, size)
	n, err = io.ReadFull(d.r, payload)
	d.offset += int64(n)
	if err != nil {
		return Record{}, false, fmt.Errorf("%w: %s payload: read %d of %d bytes", ErrMalformedRecord, tag, n, size)
	}

	subs, err := parseSubrecords(tag, payload)
	if err != nil {
		return Record{}, false, err
	}

	return Record{
		Tag:        tag,
		Reserved:   binary.LittleEndian.Uint32(hdr[8:12]),
		Flags:      binary.LittleEndian.Uint32(hdr[12:16]),
		Subrecords: subs,
	}, true, nil
}

func (d *Decoder) skip(n int64) error {
	if s, ok := d.r.(io.Seeker); ok {
		cur, err := s.Seek(0, io.SeekCurrent)
		if err != nil {
			return err
		}
		end, err := s.Seek(0, io.SeekEnd)
		if err != nil {
			return err
		}
		if cur+n > end {
			d.offset += end - cur
			return io.ErrUnexpectedEOF
		}
		if _, err := s.Seek(cur+n, io.SeekStart); err != nil {
			return err
		}
		d.offset += n
		return nil
	}

	copied, err := io.CopyN(io.Discard, d.r, n)
	d.offset += copied
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

// ReadAll decodes every wanted record from r.
func ReadAll(r io.Reader, wanted TagSet) ([]Record, error) {
	d := NewDecoder(r)
	var records []Record
	for {
		rec, ok, err := d.Decode(wanted)
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return nil, err
		}
		if ok {
			records = append(records, rec)
		}
	}
}

// ReadFile decodes every wanted record of the file at path.
func ReadFile(path string, wanted TagSet) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening world file: %w", err)
	}
	defer f.Close()
	return ReadAll(f, wanted)
}
