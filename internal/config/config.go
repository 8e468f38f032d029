// Package config handles tool configuration loading and management.
package config

import (
	"path/filepath"

	"github.com/Faultbox/wnamtool/internal/reconcile"
	"github.com/Faultbox/wnamtool/pkg/esm"
)

// Config holds all tool settings.
type Config struct {
	Data    DataConfig    `yaml:"data"`
	Repack  RepackConfig  `yaml:"repack"`
	Masters MastersConfig `yaml:"masters"`
	Logging LoggingConfig `yaml:"logging"`
}

// DataConfig holds the world files to read, in load order.
type DataConfig struct {
	Dir   string   `yaml:"dir"`   // Base directory for relative file names
	Files []string `yaml:"files"` // Masters and plugins in load order
}

// RepackConfig holds options for merging a heightmap back into a plugin.
type RepackConfig struct {
	CreatePlacementRecords bool `yaml:"create_placement_records"`
	KeepAuxiliary          bool `yaml:"keep_auxiliary"` // Attach default VNML/VHGT to new LAND records
	MastersOnly            bool `yaml:"masters_only"`   // Ignore .esp sources
}

// MasterConfig is a dependency that every output declares.
type MasterConfig struct {
	Name string `yaml:"name"`
	Size uint64 `yaml:"size"` // Used when the file is not among the sources
}

// MastersConfig holds dependency declaration settings.
type MastersConfig struct {
	Implicit        []MasterConfig `yaml:"implicit"`
	Upgrade         []string       `yaml:"upgrade"` // Declared when a source has a newer format version
	BaselineVersion float32        `yaml:"baseline_version"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Repack: RepackConfig{
			CreatePlacementRecords: false,
			KeepAuxiliary:          true,
			MastersOnly:            false,
		},
		Masters: MastersConfig{
			Implicit: []MasterConfig{
				{Name: "Morrowind.esm", Size: 79837557},
				{Name: "Tribunal.esm", Size: 4565686},
				{Name: "Bloodmoon.esm", Size: 9631798},
			},
			Upgrade:         []string{"Tamriel_Data.esm", "OAAB_Data.esm"},
			BaselineVersion: esm.VersionBaseline,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// SourcePaths returns the configured world files resolved against Data.Dir.
func (c *Config) SourcePaths() []string {
	paths := make([]string, 0, len(c.Data.Files))
	for _, f := range c.Data.Files {
		if c.Data.Dir != "" && !filepath.IsAbs(f) {
			f = filepath.Join(c.Data.Dir, f)
		}
		paths = append(paths, f)
	}
	return paths
}

// EngineOptions converts the config into reconciliation options.
func (c *Config) EngineOptions() reconcile.Options {
	implicit := make([]esm.Master, 0, len(c.Masters.Implicit))
	for _, m := range c.Masters.Implicit {
		implicit = append(implicit, esm.Master{Name: m.Name, Size: m.Size})
	}
	return reconcile.Options{
		CreatePlacementRecords: c.Repack.CreatePlacementRecords,
		KeepAuxiliary:          c.Repack.KeepAuxiliary,
		MastersOnly:            c.Repack.MastersOnly,
		ImplicitMasters:        implicit,
		UpgradeMasters:         append([]string(nil), c.Masters.Upgrade...),
		BaselineVersion:        c.Masters.BaselineVersion,
	}
}
