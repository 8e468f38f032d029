package reconcile

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/multierr"
)

// Source is one world file in load order.
type Source struct {
	Name string
	R    io.Reader
	Size int64 // byte size declared in dependency entries; negative if unknown
}

// OpenSources opens the files at paths in order. The returned function
// closes every opened file. Files are handed to the decoder unbuffered so
// that unwanted records are skipped by seeking.
func OpenSources(paths []string) ([]Source, func() error, error) {
	var files []*os.File
	closeAll := func() error {
		var err error
		for _, f := range files {
			err = multierr.Append(err, f.Close())
		}
		return err
	}

	sources := make([]Source, 0, len(paths))
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return nil, nil, multierr.Append(fmt.Errorf("%w: %v", ErrMissingSource, err), closeAll())
		}
		files = append(files, f)

		info, err := f.Stat()
		if err != nil {
			return nil, nil, multierr.Append(fmt.Errorf("stat %s: %w", p, err), closeAll())
		}
		sources = append(sources, Source{
			Name: filepath.Base(p),
			R:    f,
			Size: info.Size(),
		})
	}
	return sources, closeAll, nil
}
