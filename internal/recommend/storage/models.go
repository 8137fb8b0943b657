// CRMRec - CRM Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crmrec

// Package storage persists trained model artifacts as versioned files.
//
// Each artifact is gob-encoded, checksummed with SHA-256 and gzip-compressed
// into {name}_v{version}.gob.gz. Writes go to a temporary file in the same
// directory which is synced and renamed into place, so a reader never
// observes a partially written artifact.
package storage

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ErrChecksumMismatch is returned when a loaded artifact does not match the
// checksum recorded at save time.
var ErrChecksumMismatch = errors.New("checksum mismatch")

const fileSuffix = ".gob.gz"

// Metadata describes one stored artifact file.
type Metadata struct {
	Name      string    `json:"name"`
	Version   int64     `json:"version"`
	Checksum  string    `json:"checksum"`
	SizeBytes int64     `json:"size_bytes"`
	SavedAt   time.Time `json:"saved_at"`
}

// storedFile is the on-disk envelope.
type storedFile struct {
	Metadata       Metadata
	CompressedData []byte
}

// Store reads and writes artifact files under one directory.
type Store struct {
	baseDir string
	mu      sync.RWMutex
}

// NewStore creates the directory if needed and returns a Store rooted there.
func NewStore(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o750); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &Store{baseDir: baseDir}, nil
}

// Path returns the file path for an artifact version.
func (s *Store) Path(name string, version int64) string {
	return filepath.Join(s.baseDir, fmt.Sprintf("%s_v%d%s", name, version, fileSuffix))
}

// Save encodes data and atomically writes it as name/version.
func (s *Store) Save(ctx context.Context, name string, version int64, data interface{}) (*Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var raw bytes.Buffer
	if err := gob.NewEncoder(&raw).Encode(data); err != nil {
		return nil, fmt.Errorf("encode model: %w", err)
	}
	sum := sha256.Sum256(raw.Bytes())

	var compressed bytes.Buffer
	gzw := gzip.NewWriter(&compressed)
	if _, err := gzw.Write(raw.Bytes()); err != nil {
		return nil, fmt.Errorf("compress model: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return nil, fmt.Errorf("finalize compression: %w", err)
	}

	meta := Metadata{
		Name:      name,
		Version:   version,
		Checksum:  hex.EncodeToString(sum[:]),
		SizeBytes: int64(compressed.Len()),
		SavedAt:   time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writeAtomic(s.Path(name, version), storedFile{Metadata: meta, CompressedData: compressed.Bytes()}); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (s *Store) writeAtomic(path string, sf storedFile) (err error) {
	tmp, err := os.CreateTemp(s.baseDir, ".tmp-*"+fileSuffix)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()        //nolint:errcheck // already failing
			_ = os.Remove(tmpName) //nolint:errcheck // best-effort cleanup
		}
	}()

	if err = gob.NewEncoder(tmp).Encode(sf); err != nil {
		return fmt.Errorf("write model file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync model file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close model file: %w", err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename model file: %w", err)
	}
	return nil
}

// Load decodes name/version into target and verifies its checksum.
func (s *Store) Load(ctx context.Context, name string, version int64, target interface{}) (*Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	f, err := os.Open(s.Path(name, version))
	if err != nil {
		return nil, fmt.Errorf("open model file: %w", err)
	}
	defer func() { _ = f.Close() }() //nolint:errcheck // read-only

	var sf storedFile
	if err := gob.NewDecoder(f).Decode(&sf); err != nil {
		return nil, fmt.Errorf("read model file: %w", err)
	}

	gzr, err := gzip.NewReader(bytes.NewReader(sf.CompressedData))
	if err != nil {
		return nil, fmt.Errorf("decompress model: %w", err)
	}
	defer func() { _ = gzr.Close() }() //nolint:errcheck // read-only

	raw, err := io.ReadAll(gzr)
	if err != nil {
		return nil, fmt.Errorf("read decompressed data: %w", err)
	}

	sum := sha256.Sum256(raw)
	if got := hex.EncodeToString(sum[:]); got != sf.Metadata.Checksum {
		return nil, fmt.Errorf("%w: %s_v%d expected %s, got %s", ErrChecksumMismatch, name, version, sf.Metadata.Checksum, got)
	}

	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(target); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	return &sf.Metadata, nil
}

// Delete removes one artifact version. A missing file is not an error.
func (s *Store) Delete(ctx context.Context, name string, version int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.Path(name, version)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete model: %w", err)
	}
	return nil
}

// Versions lists the versions present on disk for name, ascending.
func (s *Store) Versions(name string) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("read directory: %w", err)
	}

	var versions []int64
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), fileSuffix) {
			continue
		}
		algName, v := parseModelFilename(strings.TrimSuffix(entry.Name(), fileSuffix))
		if algName == name {
			versions = append(versions, v)
		}
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })
	return versions, nil
}

// parseModelFilename splits "cf_svd_v12" into ("cf_svd", 12).
func parseModelFilename(base string) (name string, version int64) {
	idx := strings.LastIndex(base, "_v")
	if idx <= 0 {
		return "", 0
	}
	v, err := strconv.ParseInt(base[idx+2:], 10, 64)
	if err != nil || v < 1 {
		return "", 0
	}
	return base[:idx], v
}
