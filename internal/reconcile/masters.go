package reconcile

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/wnamtool/pkg/esm"
)

// dependencies returns the masters the output must declare and the format
// version it must carry, given the origins of the emitted records.
func (e *Engine) dependencies(t *Tables, lands []LandEntry) ([]esm.Master, float32, error) {
	used := make(map[string]bool)
	for _, l := range lands {
		if l.Origin != "" {
			used[l.Origin] = true
		}
	}

	// Contributing sources in load order.
	var contributing []*SourceInfo
	for pair := t.Sources.Oldest(); pair != nil; pair = pair.Next() {
		if used[pair.Key] {
			contributing = append(contributing, pair.Value)
		}
	}

	version := e.opts.BaselineVersion
	upgrade := false
	for _, src := range contributing {
		if src.Header != nil && src.Header.Version > version {
			version = src.Header.Version
			upgrade = true
		}
	}

	var masters []esm.Master
	declared := make(map[string]bool)
	declare := func(m esm.Master) {
		masters = append(masters, m)
		declared[strings.ToLower(m.Name)] = true
	}

	for _, m := range e.opts.ImplicitMasters {
		if src, ok := t.source(m.Name); ok && src.Size >= 0 {
			m.Size = uint64(src.Size)
		}
		declare(m)
	}

	if upgrade {
		e.log.Info("raising format version", zap.Float32("version", version))
		for _, name := range e.opts.UpgradeMasters {
			src, ok := t.source(name)
			if !ok || src.Size < 0 {
				return nil, 0, fmt.Errorf("%w: %s is needed for format version %v", ErrMissingSource, name, version)
			}
			declare(esm.Master{Name: src.Name, Size: uint64(src.Size)})
		}
	}

	for _, src := range contributing {
		if declared[strings.ToLower(src.Name)] {
			continue
		}
		if src.Size < 0 {
			return nil, 0, fmt.Errorf("%w: size of %s is unknown", ErrMissingSource, src.Name)
		}
		declare(esm.Master{Name: src.Name, Size: uint64(src.Size)})
	}

	return masters, version, nil
}
