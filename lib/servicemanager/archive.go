// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package servicemanager

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
)

// ArchiveSuffix ends every output archive file name.
const ArchiveSuffix = ".log.zst"

// ArchivePath returns the archive location for one enabled period of a
// service.
func ArchivePath(directory, service, instanceID string) string {
	return filepath.Join(directory, service+"-"+instanceID+ArchiveSuffix)
}

// archiveWriter compresses a child's combined output into a file.
type archiveWriter struct {
	file    *os.File
	encoder *zstd.Encoder
}

func createArchive(path string) (*archiveWriter, error) {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o640)
	if err != nil {
		return nil, fmt.Errorf("creating output archive: %w", err)
	}
	encoder, err := zstd.NewWriter(file, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	return &archiveWriter{file: file, encoder: encoder}, nil
}

func (a *archiveWriter) Write(p []byte) (int, error) {
	return a.encoder.Write(p)
}

// Close flushes the zstd frame and closes the file.
func (a *archiveWriter) Close() error {
	encodeErr := a.encoder.Close()
	closeErr := a.file.Close()
	if encodeErr != nil {
		return fmt.Errorf("finishing zstd frame: %w", encodeErr)
	}
	return closeErr
}

// ReadArchive decompresses the output archive at path. Appended frames
// from repeated enables of the same instance are concatenated.
func ReadArchive(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	decoder, err := zstd.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	defer decoder.Close()

	data, err := io.ReadAll(decoder)
	if err != nil {
		return nil, fmt.Errorf("decompressing %s: %w", path, err)
	}
	return data, nil
}

// ListArchives returns the archives of service in directory, oldest
// first by modification time.
func ListArchives(directory, service string) ([]string, error) {
	entries, err := os.ReadDir(directory)
	if err != nil {
		return nil, err
	}
	type archive struct {
		path     string
		modified int64
	}
	var archives []archive
	prefix := service + "-"
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ArchiveSuffix) {
			continue
		}
		// "gazebo-sim-<uuid>" must not match service "gazebo".
		instance := strings.TrimSuffix(strings.TrimPrefix(name, prefix), ArchiveSuffix)
		if _, err := uuid.Parse(instance); err != nil {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		archives = append(archives, archive{filepath.Join(directory, name), info.ModTime().UnixNano()})
	}
	sort.Slice(archives, func(i, j int) bool { return archives[i].modified < archives[j].modified })

	paths := make([]string, len(archives))
	for i, entry := range archives {
		paths[i] = entry.path
	}
	return paths, nil
}
