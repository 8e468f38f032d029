package esm

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/multierr"
)

// WritePlugin writes records to path in order. The file is written to a
// temporary sibling first and renamed into place, so path either holds the
// complete output or is left untouched. An empty record list writes nothing.
func WritePlugin(path string, records []Record) (err error) {
	if len(records) == 0 {
		return nil
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temporary plugin: %w", err)
	}
	defer func() {
		if err != nil {
			err = multierr.Append(err, os.Remove(tmp.Name()))
		}
	}()

	w := bufio.NewWriter(tmp)
	for i, rec := range records {
		if err := Encode(w, rec); err != nil {
			return multierr.Append(fmt.Errorf("writing record %d (%s): %w", i, rec.Tag, err), tmp.Close())
		}
	}
	if err := w.Flush(); err != nil {
		return multierr.Append(fmt.Errorf("flushing plugin: %w", err), tmp.Close())
	}
	if err := tmp.Chmod(0644); err != nil {
		return multierr.Append(fmt.Errorf("setting plugin mode: %w", err), tmp.Close())
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing plugin: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("renaming plugin into place: %w", err)
	}
	return nil
}
