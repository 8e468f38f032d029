// wnamtool converts the world-map heights of TES3 world files to editable
// bitmaps and merges edited bitmaps back into a plugin.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/Faultbox/wnamtool/internal/config"
	"github.com/Faultbox/wnamtool/internal/logger"
	"github.com/Faultbox/wnamtool/internal/reconcile"
	"github.com/Faultbox/wnamtool/pkg/esm"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "extract", "x":
		cmdExtract(args)
	case "repack", "r":
		cmdRepack(args)
	case "info":
		cmdInfo(args)
	case "init-config":
		cmdInitConfig(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`wnamtool - TES3 world map heightmap utility

Usage:
  wnamtool <command> [options]

Commands:
  extract [-o dir]                   Write the merged heightmap as <x>,<y>.bmp
  repack <x,y.bmp> <out.esp>         Merge an edited heightmap into a new plugin
  info <file.esm>                    Show header, masters and record counts
  init-config [path]                 Write the default config file

Shared options:
  -i <file>       World file to read, repeat in load order
  -config <path>  Config file (default ./wnamtool.yaml)
  -cells          Create CELL records for new LAND records
  -no-aux         Do not attach default VNML/VHGT
  -masters-only   Only read .esm sources
  -debug, -log    Logging

Examples:
  wnamtool extract -i Morrowind.esm -i Tribunal.esm -i Bloodmoon.esm -o maps
  wnamtool repack -i Morrowind.esm -i Islands.esp maps/-20,-18.bmp Islands_wnam.esp`)
}

// setup parses shared flags and prepares config and logging.
func setup(fs *flag.FlagSet, args []string) *config.Config {
	f := config.RegisterFlags(fs)
	fs.Parse(args)

	cfg, err := config.Load(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func engineOptions(cfg *config.Config) reconcile.Options {
	opts := cfg.EngineOptions()
	opts.Logger = logger.Log
	return opts
}

func cmdExtract(args []string) {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	outDir := fs.String("o", ".", "Output directory")
	cfg := setup(fs, args)
	defer logger.Sync()

	paths := cfg.SourcePaths()
	if len(paths) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: wnamtool extract -i <file.esm> [-i <file.esp>...] [-o dir]")
		os.Exit(1)
	}

	res, err := reconcile.ExtractFile(paths, *outDir, engineOptions(cfg))
	if err != nil {
		fail(err)
	}
	fmt.Println(res)
}

func cmdRepack(args []string) {
	fs := flag.NewFlagSet("repack", flag.ExitOnError)
	cfg := setup(fs, args)
	defer logger.Sync()

	paths := cfg.SourcePaths()
	if fs.NArg() < 2 || len(paths) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: wnamtool repack -i <file.esm> [-i <file.esp>...] <x,y.bmp> <out.esp>")
		os.Exit(1)
	}

	res, err := reconcile.RepackFile(paths, fs.Arg(0), fs.Arg(1), engineOptions(cfg))
	if errors.Is(err, reconcile.ErrNoChanges) {
		logger.Info("nothing to write", zap.Error(err))
		fmt.Println(err)
		return
	}
	if err != nil {
		fail(err)
	}
	fmt.Println(res)
}

func cmdInfo(args []string) {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: wnamtool info <file.esm>")
		os.Exit(1)
	}

	records, err := esm.ReadFile(fs.Arg(0), esm.NewTagSet(esm.TagTES3, esm.TagLAND, esm.TagLTEX))
	if err != nil {
		fail(err)
	}

	var lands, textures, withHeights int
	var header *esm.Header
	for _, rec := range records {
		switch rec.Tag {
		case esm.TagTES3:
			if header, err = esm.ParseHeader(rec); err != nil {
				fail(err)
			}
		case esm.TagLAND:
			lands++
			if rec.Has(esm.TagWNAM) {
				withHeights++
			}
		case esm.TagLTEX:
			textures++
		}
	}

	fmt.Printf("File:     %s\n", fs.Arg(0))
	if header != nil {
		fmt.Printf("Version:  %v\n", header.Version)
		fmt.Printf("Type:     %d\n", header.Type)
		fmt.Printf("Company:  %s\n", header.Company)
		fmt.Printf("Records:  %d\n", header.NumRecords)
		for _, m := range header.Masters {
			fmt.Printf("Master:   %s (%d bytes)\n", m.Name, m.Size)
		}
	}
	fmt.Printf("LAND:     %d (%d with WNAM)\n", lands, withHeights)
	fmt.Printf("LTEX:     %d\n", textures)
}

func cmdInitConfig(args []string) {
	fs := flag.NewFlagSet("init-config", flag.ExitOnError)
	fs.Parse(args)

	cfg := config.Default()
	var path string
	var err error
	if fs.NArg() > 0 {
		path = fs.Arg(0)
		err = cfg.SaveTo(path)
	} else {
		path, err = cfg.Save()
	}
	if err != nil {
		fail(err)
	}
	fmt.Printf("Wrote %s\n", path)
}

func fail(err error) {
	logger.Error("command failed", zap.Error(err))
	logger.Sync()
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
