package reconcile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/wnamtool/pkg/bitmap"
	"github.com/Faultbox/wnamtool/pkg/esm"
	"github.com/Faultbox/wnamtool/pkg/grid"
)

// ExtractResult describes a written heightmap.
type ExtractResult struct {
	Path   string
	Origin esm.Coordinate
	Width  int
	Height int
	Cells  int
}

func (r *ExtractResult) String() string {
	return fmt.Sprintf("wrote %s: %dx%d pixels, %d cells, origin %s",
		r.Path, r.Width, r.Height, r.Cells, r.Origin)
}

// RepackResult describes a written plugin.
type RepackResult struct {
	Path        string
	Changed     int
	Synthesized int
	Textures    int
	Cells       int
	Masters     []esm.Master
	Version     float32
}

func (r *RepackResult) String() string {
	names := make([]string, len(r.Masters))
	for i, m := range r.Masters {
		names[i] = m.Name
	}
	return fmt.Sprintf("wrote %s: %d changed, %d new LAND, %d LTEX, %d CELL, version %v, masters [%s]",
		r.Path, r.Changed, r.Synthesized, r.Textures, r.Cells, r.Version, strings.Join(names, ", "))
}

// closeSources runs closeAll and folds its error into *err. A close failure
// voids the result, so callers never see a result alongside an error.
func closeSources[T any](closeAll func() error, res *T, err *error) {
	cerr := closeAll()
	if cerr == nil {
		return
	}
	*err = multierr.Append(*err, fmt.Errorf("closing sources: %w", cerr))
	var zero T
	*res = zero
}

// ExtractFile loads the world files at paths and writes their heightmap
// into dir, named after its origin cell.
func ExtractFile(paths []string, dir string, opts Options) (res *ExtractResult, err error) {
	e := New(opts)

	sources, closeAll, err := OpenSources(paths)
	if err != nil {
		return nil, err
	}
	defer closeSources(closeAll, &res, &err)

	t, err := e.Load(sources)
	if err != nil {
		return nil, err
	}
	r, origin, err := e.Extract(t)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	out := filepath.Join(dir, grid.OriginName(origin))
	if err := bitmap.EncodeFile(out, r); err != nil {
		return nil, err
	}

	e.log.Info("heightmap extracted", zap.String("path", out), zap.Stringer("origin", origin))
	return &ExtractResult{
		Path:   out,
		Origin: origin,
		Width:  r.Width,
		Height: r.Height,
		Cells:  t.Lands.Len(),
	}, nil
}

// RepackFile merges the heightmap at rasterPath with the world files at
// paths and writes the resulting plugin to outPath. The raster's origin
// cell is taken from its file name. ErrNoChanges is returned, and nothing
// written, when the heightmap matches the sources.
func RepackFile(paths []string, rasterPath, outPath string, opts Options) (res *RepackResult, err error) {
	e := New(opts)

	origin, err := grid.ParseOriginName(rasterPath)
	if err != nil {
		return nil, err
	}
	r, err := bitmap.DecodeFile(rasterPath)
	if err != nil {
		return nil, err
	}
	cells, err := grid.Split(r, origin)
	if err != nil {
		return nil, err
	}

	sources, closeAll, err := OpenSources(paths)
	if err != nil {
		return nil, err
	}
	defer closeSources(closeAll, &res, &err)

	t, err := e.Load(sources)
	if err != nil {
		return nil, err
	}
	plan, err := e.Merge(t, cells)
	if err != nil {
		return nil, err
	}
	if err := esm.WritePlugin(outPath, plan.Records()); err != nil {
		return nil, err
	}

	e.log.Info("plugin written",
		zap.String("path", outPath),
		zap.Int("changed", plan.Changed),
		zap.Int("new", plan.Synthesized),
	)
	return &RepackResult{
		Path:        outPath,
		Changed:     plan.Changed,
		Synthesized: plan.Synthesized,
		Textures:    len(plan.Textures),
		Cells:       len(plan.Cells),
		Masters:     plan.Header.Masters,
		Version:     plan.Header.Version,
	}, nil
}
