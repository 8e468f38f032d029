package reconcile

import (
	"go.uber.org/zap"

	"github.com/Faultbox/wnamtool/pkg/esm"
	"github.com/Faultbox/wnamtool/pkg/grid"
)

// Plan is the record set of a new plugin.
type Plan struct {
	Header   *esm.Header
	Textures []esm.Record
	Lands    []esm.Record
	Cells    []esm.Record

	Changed     int // existing LAND records whose WNAM was replaced
	Synthesized int // LAND records created from the default template
}

// Records returns the plugin records in file order: header, LTEX, LAND,
// CELL.
func (p *Plan) Records() []esm.Record {
	records := make([]esm.Record, 0, 1+len(p.Textures)+len(p.Lands)+len(p.Cells))
	records = append(records, p.Header.Record())
	records = append(records, p.Textures...)
	records = append(records, p.Lands...)
	records = append(records, p.Cells...)
	return records
}

// Merge combines raster cells with the loaded tables. Cells whose heights
// already match, and sea level cells without a LAND record, are dropped.
// ErrNoChanges is returned when nothing remains.
func (e *Engine) Merge(t *Tables, cells *grid.Cells) (*Plan, error) {
	plan := &Plan{}
	var lands []LandEntry

	for pair := cells.Oldest(); pair != nil; pair = pair.Next() {
		c, cell := pair.Key, pair.Value

		existing, ok := t.Lands.Get(c)
		if !ok {
			if cell.IsSeaLevel() {
				continue
			}
			lands = append(lands, LandEntry{Record: esm.NewLand(c, cell, e.opts.KeepAuxiliary)})
			plan.Synthesized++
			if e.opts.CreatePlacementRecords {
				plan.Cells = append(plan.Cells, esm.NewExteriorCell(c))
			}
			e.log.Debug("new cell", zap.Stringer("cell", c))
			continue
		}

		old, _, err := esm.LandHeights(existing.Record)
		if err != nil {
			return nil, err
		}
		if old == cell {
			continue
		}
		lands = append(lands, LandEntry{
			Record: esm.WithHeights(existing.Record, cell),
			Origin: existing.Origin,
		})
		plan.Changed++
		e.log.Debug("changed cell", zap.Stringer("cell", c), zap.String("source", existing.Origin))
	}

	if len(lands) == 0 {
		return nil, ErrNoChanges
	}

	textures, err := e.remapTextures(t, lands)
	if err != nil {
		return nil, err
	}

	masters, version, err := e.dependencies(t, lands)
	if err != nil {
		return nil, err
	}

	plan.Textures = textures
	for _, l := range lands {
		plan.Lands = append(plan.Lands, l.Record)
	}
	plan.Header = &esm.Header{
		Version:    version,
		Type:       esm.FileTypePlugin,
		NumRecords: uint32(len(plan.Textures) + len(plan.Lands) + len(plan.Cells)),
		Masters:    masters,
	}
	return plan, nil
}
