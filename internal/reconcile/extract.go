package reconcile

import (
	"errors"

	"github.com/Faultbox/wnamtool/pkg/bitmap"
	"github.com/Faultbox/wnamtool/pkg/esm"
	"github.com/Faultbox/wnamtool/pkg/grid"
)

// Extract lays the WNAM of every loaded LAND record out on one raster.
// The returned origin is the cell at raster (0, 0).
func (e *Engine) Extract(t *Tables) (*bitmap.Raster, esm.Coordinate, error) {
	cells := grid.NewCells()
	for pair := t.Lands.Oldest(); pair != nil; pair = pair.Next() {
		cell, _, err := esm.LandHeights(pair.Value.Record)
		if err != nil {
			return nil, esm.Coordinate{}, err
		}
		cells.Set(pair.Key, cell)
	}

	r, origin, err := grid.Compose(cells)
	if errors.Is(err, grid.ErrNoCells) {
		return nil, esm.Coordinate{}, ErrNoLandRecords
	}
	if err != nil {
		return nil, esm.Coordinate{}, err
	}
	return r, origin, nil
}
