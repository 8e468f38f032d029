package config

import (
	"flag"
	"strings"
)

// stringList collects a repeatable string flag.
type stringList []string

func (s *stringList) String() string {
	return strings.Join(*s, ",")
}

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// Flags holds command-line overrides shared by the subcommands.
type Flags struct {
	Config      string
	Debug       bool
	LogFile     string
	Inputs      stringList
	Placement   bool
	NoAuxiliary bool
	MastersOnly bool
}

// RegisterFlags defines the shared flags on fs.
func RegisterFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{}
	fs.StringVar(&f.Config, "config", "", "Path to config file")
	fs.BoolVar(&f.Debug, "debug", false, "Enable debug logging")
	fs.StringVar(&f.LogFile, "log", "", "Also write logs to this file")
	fs.Var(&f.Inputs, "i", "World file to read (repeat in load order)")
	fs.BoolVar(&f.Placement, "cells", false, "Create CELL records for new LAND records")
	fs.BoolVar(&f.NoAuxiliary, "no-aux", false, "Do not attach default VNML/VHGT to new LAND records")
	fs.BoolVar(&f.MastersOnly, "masters-only", false, "Only read .esm sources")
	return f
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config, f *Flags) {
	if f == nil {
		return
	}
	if f.Debug {
		cfg.Logging.Level = "debug"
	}
	if f.LogFile != "" {
		cfg.Logging.LogFile = f.LogFile
	}
	if len(f.Inputs) > 0 {
		cfg.Data.Dir = ""
		cfg.Data.Files = append([]string(nil), f.Inputs...)
	}
	if f.Placement {
		cfg.Repack.CreatePlacementRecords = true
	}
	if f.NoAuxiliary {
		cfg.Repack.KeepAuxiliary = false
	}
	if f.MastersOnly {
		cfg.Repack.MastersOnly = true
	}
}
