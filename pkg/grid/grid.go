// Package grid maps heightmap rasters onto world cells.
//
// One cell covers a 9x9 block of pixels. The cell with the smallest X maps to
// raster column 0 and the cell with the smallest Y maps to raster row 0.
package grid

import (
	"errors"
	"fmt"
	"math"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/Faultbox/wnamtool/pkg/bitmap"
	"github.com/Faultbox/wnamtool/pkg/esm"
)

// CellSize is the edge length of one cell in pixels.
const CellSize = bitmap.CellSize

// Grid errors.
var (
	ErrNoCells          = errors.New("no cells to compose")
	ErrExtentOutOfRange = errors.New("cell extent out of range")
)

// Cells maps coordinates to height cells in a fixed iteration order.
type Cells = orderedmap.OrderedMap[esm.Coordinate, esm.HeightCell]

// NewCells returns an empty cell map.
func NewCells() *Cells {
	return orderedmap.New[esm.Coordinate, esm.HeightCell]()
}

// Crop copies the w by h block at (x, y) into a new raster.
// Only the requested span of each source row is copied.
func Crop(r *bitmap.Raster, x, y, w, h int) *bitmap.Raster {
	out := bitmap.NewRaster(w, h)
	for row := 0; row < h; row++ {
		start := (y+row)*r.Stride + x
		copy(out.Row(row), r.Pix[start:start+w])
	}
	return out
}

// Impose writes sub into dst with its top-left corner at (x, y). Rows are
// clipped to the logical width and height of dst.
func Impose(dst, sub *bitmap.Raster, x, y int) {
	if x < 0 || x >= dst.Width {
		return
	}
	for row := 0; row < sub.Height; row++ {
		dy := y + row
		if dy < 0 || dy >= dst.Height {
			continue
		}
		src := sub.Row(row)
		if room := dst.Width - x; len(src) > room {
			src = src[:room]
		}
		copy(dst.Pix[dy*dst.Stride+x:], src)
	}
}

// CellRaster returns a 9x9 raster holding cell.
func CellRaster(cell esm.HeightCell) *bitmap.Raster {
	r := bitmap.NewRaster(CellSize, CellSize)
	for row := 0; row < CellSize; row++ {
		copy(r.Row(row), cell[row*CellSize:(row+1)*CellSize])
	}
	return r
}

// HeightCellOf packs a 9x9 raster into a height cell.
func HeightCellOf(r *bitmap.Raster) esm.HeightCell {
	var cell esm.HeightCell
	for row := 0; row < CellSize; row++ {
		copy(cell[row*CellSize:], r.Row(row)[:CellSize])
	}
	return cell
}

// Split crops r into cells, assigning origin to the cell at raster (0, 0).
// Cells are ordered by column, then by row. It fails when the raster would
// reach past the int32 coordinate range.
func Split(r *bitmap.Raster, origin esm.Coordinate) (*Cells, error) {
	cols, rows := r.Width/CellSize, r.Height/CellSize
	if int64(origin.X)+int64(cols)-1 > math.MaxInt32 || int64(origin.Y)+int64(rows)-1 > math.MaxInt32 {
		return nil, fmt.Errorf("%w: %dx%d cells from %s", ErrExtentOutOfRange, cols, rows, origin)
	}

	cells := NewCells()
	for cx := 0; cx < cols; cx++ {
		for cy := 0; cy < rows; cy++ {
			c := esm.Coordinate{X: origin.X + int32(cx), Y: origin.Y + int32(cy)}
			cells.Set(c, HeightCellOf(Crop(r, cx*CellSize, cy*CellSize, CellSize, CellSize)))
		}
	}
	return cells, nil
}

// Bounds returns the smallest and largest coordinates of cells.
// ok is false for an empty map.
func Bounds(cells *Cells) (min, max esm.Coordinate, ok bool) {
	for pair := cells.Oldest(); pair != nil; pair = pair.Next() {
		c := pair.Key
		if !ok {
			min, max, ok = c, c, true
			continue
		}
		if c.X < min.X {
			min.X = c.X
		}
		if c.Y < min.Y {
			min.Y = c.Y
		}
		if c.X > max.X {
			max.X = c.X
		}
		if c.Y > max.Y {
			max.Y = c.Y
		}
	}
	return min, max, ok
}

// Compose lays cells out on one raster covering their bounding box.
// Positions without a cell are filled with sea level. The returned origin
// is the coordinate of the cell at raster (0, 0). An empty map gives
// ErrNoCells; a box too large for a bitmap gives ErrExtentOutOfRange.
func Compose(cells *Cells) (*bitmap.Raster, esm.Coordinate, error) {
	min, max, ok := Bounds(cells)
	if !ok {
		return nil, esm.Coordinate{}, ErrNoCells
	}

	cols := int64(max.X) - int64(min.X) + 1
	rows := int64(max.Y) - int64(min.Y) + 1
	if cols*CellSize > math.MaxInt32 || rows*CellSize > math.MaxInt32 ||
		!bitmap.Fits(int(cols*CellSize), int(rows*CellSize)) {
		return nil, esm.Coordinate{}, fmt.Errorf("%w: %dx%d cells from %s to %s", ErrExtentOutOfRange, cols, rows, min, max)
	}

	r := bitmap.NewRaster(int(cols)*CellSize, int(rows)*CellSize)
	r.Fill(esm.SeaLevel)

	for pair := cells.Oldest(); pair != nil; pair = pair.Next() {
		x := int(int64(pair.Key.X)-int64(min.X)) * CellSize
		y := int(int64(pair.Key.Y)-int64(min.Y)) * CellSize
		Impose(r, CellRaster(pair.Value), x, y)
	}
	return r, min, nil
}
