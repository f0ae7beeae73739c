// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package statefile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bureau-foundation/concert/lib/codec"
)

// Write replaces path with the CBOR encoding of value so that a reader
// sees either the old file or the new one, never a mix. The parent
// directory must exist. The file has mode 0600.
func Write(path string, value any) (err error) {
	data, err := codec.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding state for %s: %w", path, err)
	}

	directory := filepath.Dir(path)
	file, err := os.CreateTemp(directory, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temporary state file: %w", err)
	}
	defer func() {
		if err != nil {
			file.Close()
			os.Remove(file.Name())
		}
	}()

	if _, err := file.Write(data); err != nil {
		return fmt.Errorf("writing %s: %w", file.Name(), err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("syncing %s: %w", file.Name(), err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", file.Name(), err)
	}
	if err := os.Rename(file.Name(), path); err != nil {
		return fmt.Errorf("renaming state file into place: %w", err)
	}

	// The rename is durable once the directory entry is.
	if parent, openErr := os.Open(directory); openErr == nil {
		parent.Sync()
		parent.Close()
	}
	return nil
}

// Read decodes the state file at path into value. A missing file
// yields an error wrapping fs.ErrNotExist.
func Read(path string, value any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := codec.Unmarshal(data, value); err != nil {
		return fmt.Errorf("parsing state file %s: %w", path, err)
	}
	return nil
}

// ReadIfExists is Read that reports false, and leaves value alone, when
// the file does not exist.
func ReadIfExists(path string, value any) (bool, error) {
	switch err := Read(path, value); {
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	case err != nil:
		return false, err
	}
	return true, nil
}

// Clear removes path. A missing file is not an error.
func Clear(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing state file: %w", err)
	}
	return nil
}
