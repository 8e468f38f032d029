package reconcile

import (
	"fmt"
	"io"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"go.uber.org/zap"

	"github.com/Faultbox/wnamtool/pkg/esm"
)

// SourceInfo is what the engine keeps about a loaded source.
type SourceInfo struct {
	Name   string
	Size   int64
	Header *esm.Header // nil if the source has no TES3 record
}

// LandEntry is a LAND record and the source it was read from.
// Origin is empty for synthesized records.
type LandEntry struct {
	Record esm.Record
	Origin string
}

// TextureKey identifies an LTEX record by source and declared index.
type TextureKey struct {
	Source string
	Index  uint32
}

// Tables is the merged view of all sources.
type Tables struct {
	Sources  *orderedmap.OrderedMap[string, *SourceInfo]
	Lands    *orderedmap.OrderedMap[esm.Coordinate, LandEntry]
	Textures *orderedmap.OrderedMap[TextureKey, esm.Record]
}

func newTables() *Tables {
	return &Tables{
		Sources:  orderedmap.New[string, *SourceInfo](),
		Lands:    orderedmap.New[esm.Coordinate, LandEntry](),
		Textures: orderedmap.New[TextureKey, esm.Record](),
	}
}

// source looks up a loaded source by name, ignoring case.
func (t *Tables) source(name string) (*SourceInfo, bool) {
	if info, ok := t.Sources.Get(name); ok {
		return info, true
	}
	for pair := t.Sources.Oldest(); pair != nil; pair = pair.Next() {
		if strings.EqualFold(pair.Key, name) {
			return pair.Value, true
		}
	}
	return nil, false
}

// Load reads the sources in order into a merged view.
func (e *Engine) Load(sources []Source) (*Tables, error) {
	t := newTables()
	for _, src := range sources {
		if e.opts.MastersOnly && !isMasterName(src.Name) {
			e.log.Debug("skipping plugin", zap.String("source", src.Name))
			continue
		}
		if err := e.loadSource(t, src); err != nil {
			return nil, fmt.Errorf("loading %s: %w", src.Name, err)
		}
	}
	return t, nil
}

func (e *Engine) loadSource(t *Tables, src Source) error {
	info := &SourceInfo{Name: src.Name, Size: src.Size}
	d := esm.NewDecoder(src.R)
	var lands, textures, patched int

	for {
		rec, ok, err := d.Decode(e.wanted)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if !ok {
			continue
		}

		switch rec.Tag {
		case esm.TagTES3:
			h, err := esm.ParseHeader(rec)
			if err != nil {
				return err
			}
			info.Header = h

		case esm.TagLAND:
			c, err := esm.LandCoordinate(rec)
			if err != nil {
				return fmt.Errorf("LAND at offset %d: %w", d.Offset(), err)
			}
			rec, wasPatched := esm.SanitizeLand(rec, e.opts.KeepAuxiliary)
			if wasPatched {
				patched++
			}
			t.Lands.Set(c, LandEntry{Record: rec, Origin: src.Name})
			lands++

		case esm.TagLTEX:
			tex, err := esm.ParseTexture(rec)
			if err != nil {
				return fmt.Errorf("LTEX at offset %d: %w", d.Offset(), err)
			}
			t.Textures.Set(TextureKey{Source: src.Name, Index: tex.Index}, rec)
			textures++
		}
	}

	t.Sources.Set(src.Name, info)
	e.log.Debug("loaded source",
		zap.String("source", src.Name),
		zap.Int64("size", src.Size),
		zap.Int("lands", lands),
		zap.Int("textures", textures),
		zap.Int("patched", patched),
	)
	return nil
}
