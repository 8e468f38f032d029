package reconcile

import (
	"fmt"
	"math"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"go.uber.org/zap"

	"github.com/Faultbox/wnamtool/pkg/encoding"
	"github.com/Faultbox/wnamtool/pkg/esm"
)

// textureTable assigns dense 1-based slot values to texture paths in
// first-seen order.
type textureTable struct {
	slots   *orderedmap.OrderedMap[string, uint16]
	records []esm.Record
}

func newTextureTable() *textureTable {
	return &textureTable{slots: orderedmap.New[string, uint16]()}
}

// add returns the slot value for the texture defined by rec, registering
// it on first sight.
func (tt *textureTable) add(rec esm.Record, path string) (uint16, error) {
	key := encoding.NormalizePath(path)
	if slot, ok := tt.slots.Get(key); ok {
		return slot, nil
	}
	if tt.slots.Len() >= math.MaxUint16 {
		return 0, fmt.Errorf("more than %d distinct landscape textures", math.MaxUint16)
	}

	slot := uint16(tt.slots.Len() + 1)
	tt.slots.Set(key, slot)
	tt.records = append(tt.records, esm.WithTextureIndex(rec, uint32(slot-1)))
	return slot, nil
}

// remapTextures rewrites the VTEX of every land entry against a fresh
// texture table and returns the LTEX records of that table.
func (e *Engine) remapTextures(t *Tables, lands []LandEntry) ([]esm.Record, error) {
	table := newTextureTable()

	for i, land := range lands {
		slots, ok, err := esm.LandTextures(land.Record)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		for s, v := range slots {
			if v == 0 {
				continue
			}
			rec, found := t.Textures.Get(TextureKey{Source: land.Origin, Index: uint32(v) - 1})
			if !found {
				c, _ := esm.LandCoordinate(land.Record)
				e.log.Warn("texture not defined by its source, using default",
					zap.String("source", land.Origin),
					zap.Stringer("cell", c),
					zap.Uint16("slot", v),
				)
				slots[s] = 0
				continue
			}
			tex, err := esm.ParseTexture(rec)
			if err != nil {
				return nil, err
			}
			if slots[s], err = table.add(rec, tex.Path); err != nil {
				return nil, err
			}
		}
		lands[i].Record = esm.WithTextures(land.Record, slots)
	}

	return table.records, nil
}
