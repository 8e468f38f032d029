package grid

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Faultbox/wnamtool/pkg/esm"
)

// ErrInvalidCoordinateName is returned for rasters not named "x,y.bmp".
var ErrInvalidCoordinateName = errors.New("raster is not named after a cell coordinate")

// OriginName returns the file name of a raster whose first cell is c.
func OriginName(c esm.Coordinate) string {
	return c.String() + ".bmp"
}

// ParseOriginName reads the origin cell from a raster path such as
// "maps/-3,7.bmp".
func ParseOriginName(path string) (esm.Coordinate, error) {
	base := filepath.Base(strings.ReplaceAll(path, "\\", "/"))
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	parts := strings.Split(stem, ",")
	if len(parts) != 2 {
		return esm.Coordinate{}, fmt.Errorf("%w: %q", ErrInvalidCoordinateName, base)
	}

	x, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 32)
	if err != nil {
		return esm.Coordinate{}, fmt.Errorf("%w: %q: %v", ErrInvalidCoordinateName, base, err)
	}
	y, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 32)
	if err != nil {
		return esm.Coordinate{}, fmt.Errorf("%w: %q: %v", ErrInvalidCoordinateName, base, err)
	}
	return esm.Coordinate{X: int32(x), Y: int32(y)}, nil
}
