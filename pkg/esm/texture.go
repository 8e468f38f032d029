package esm

import (
	"encoding/binary"
	"fmt"

	"github.com/Faultbox/wnamtool/pkg/encoding"
)

// Texture is a decoded LTEX record.
type Texture struct {
	ID    string
	Index uint32
	Path  string
}

// ParseTexture decodes an LTEX record.
func ParseTexture(rec Record) (Texture, error) {
	if rec.Tag != TagLTEX {
		return Texture{}, fmt.Errorf("%w: expected LTEX record, got %s", ErrMalformedRecord, rec.Tag)
	}

	intv, ok := rec.Get(TagINTV)
	if !ok || len(intv) < 4 {
		return Texture{}, fmt.Errorf("%w: LTEX without index", ErrMalformedRecord)
	}

	var t Texture
	t.Index = binary.LittleEndian.Uint32(intv)
	if name, ok := rec.Get(TagNAME); ok {
		t.ID = encoding.ZString(name)
	}
	if data, ok := rec.Get(TagDATA); ok {
		t.Path = encoding.ZString(data)
	}
	return t, nil
}

// WithTextureIndex returns a copy of an LTEX record declaring index.
func WithTextureIndex(rec Record, index uint32) Record {
	intv := make([]byte, 4)
	binary.LittleEndian.PutUint32(intv, index)
	return rec.With(TagINTV, intv)
}
