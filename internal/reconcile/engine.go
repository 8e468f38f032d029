// Package reconcile merges heightmap edits into TES3 world files.
//
// Sources are read strictly in load order. Records from later sources
// replace records with the same identity from earlier ones. The merged view
// is either flattened into a raster (extraction) or combined with raster
// cells into a new plugin (repacking) that declares every source it draws
// records from and carries its own deduplicated landscape texture table.
package reconcile

import (
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/wnamtool/pkg/esm"
)

// Reconciliation errors.
var (
	// ErrNoChanges is informational: the raster matches the sources and no
	// plugin is written.
	ErrNoChanges     = errors.New("heightmap was not altered, no plugin generated")
	ErrMissingSource = errors.New("required source is not available")
	ErrNoLandRecords = errors.New("sources contain no LAND records")
)

// Options controls loading and merging.
type Options struct {
	// CreatePlacementRecords adds an exterior CELL for every new LAND record.
	CreatePlacementRecords bool
	// KeepAuxiliary attaches default VNML and VHGT to patched or new LAND
	// records.
	KeepAuxiliary bool
	// MastersOnly skips sources that are not .esm files.
	MastersOnly bool
	// ImplicitMasters are declared by every output, in order. Sizes are used
	// when the master is not among the sources.
	ImplicitMasters []esm.Master
	// UpgradeMasters are declared when a contributing source has a format
	// version above BaselineVersion. They must be among the sources.
	UpgradeMasters  []string
	BaselineVersion float32
	Logger          *zap.Logger
}

// Engine runs the load, merge and extract steps.
type Engine struct {
	opts   Options
	wanted esm.TagSet
	log    *zap.Logger
}

// New returns an engine for opts.
func New(opts Options) *Engine {
	if opts.BaselineVersion == 0 {
		opts.BaselineVersion = esm.VersionBaseline
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		opts:   opts,
		wanted: esm.NewTagSet(esm.TagTES3, esm.TagLAND, esm.TagLTEX),
		log:    log,
	}
}

// isMasterName reports whether name looks like a master file.
func isMasterName(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".esm")
}
