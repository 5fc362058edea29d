// Open-Pair - Open House Host Recommendation Engine
// Copyright 2026 T. Logan Designs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tlogandesigns/open-pair

// Package storage persists trained scoring models.
//
// Models are gob-encoded, gzip-compressed, and carried with a SHA-256
// checksum so a corrupt file fails loading instead of scoring garbage.
// Each promoted version gets its own file, which keeps older versions
// around for manual rollback.
package storage

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tlogandesigns/open-pair/internal/recommend"
)

// ModelMetadata describes one stored model file.
type ModelMetadata struct {
	// Version is the promoted model version.
	Version int `json:"version"`

	// TrainedAt is when the fit completed.
	TrainedAt time.Time `json:"trained_at"`

	// SavedAt is when the file was written.
	SavedAt time.Time `json:"saved_at"`

	// SampleCount is the training-set size.
	SampleCount int `json:"sample_count"`

	// HoldoutMSE is the held-out validation error.
	HoldoutMSE float64 `json:"holdout_mse"`

	// Checksum is the SHA-256 of the uncompressed gob payload.
	Checksum string `json:"checksum"`

	// SizeBytes is the compressed payload size.
	SizeBytes int64 `json:"size_bytes"`
}

// storedFile is the on-disk format.
type storedFile struct {
	Metadata       ModelMetadata
	CompressedData []byte
}

// Store manages model files in one directory.
type Store struct {
	baseDir string
	mu      sync.RWMutex
	latest  int
}

// NewStore creates a model store at the given directory, scanning any
// files already present so Latest works across restarts.
func NewStore(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o750); err != nil { //nolint:gosec // 0750 is acceptable for model storage
		return nil, fmt.Errorf("create model directory: %w", err)
	}
	s := &Store{baseDir: baseDir}
	if err := s.scan(); err != nil {
		return nil, fmt.Errorf("scan model directory: %w", err)
	}
	return s, nil
}

// scan finds the highest stored version. Filenames are scorer_v{N}.gob.gz.
func (s *Store) scan() error {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		var version int
		if _, err := fmt.Sscanf(entry.Name(), "scorer_v%d.gob.gz", &version); err != nil {
			continue
		}
		if version > s.latest {
			s.latest = version
		}
	}
	return nil
}

func (s *Store) modelPath(version int) string {
	return filepath.Join(s.baseDir, fmt.Sprintf("scorer_v%d.gob.gz", version))
}

// Latest returns the highest stored model version, 0 when none exist.
func (s *Store) Latest() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// Save writes a model under its version.
func (s *Store) Save(m *recommend.Model) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(m); err != nil {
		return fmt.Errorf("encode model: %w", err)
	}
	raw := buf.Bytes()
	hash := sha256.Sum256(raw)

	var compressed bytes.Buffer
	gzw := gzip.NewWriter(&compressed)
	if _, err := gzw.Write(raw); err != nil {
		return fmt.Errorf("compress model: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return fmt.Errorf("finalize compression: %w", err)
	}

	sf := storedFile{
		Metadata: ModelMetadata{
			Version:     m.Version,
			TrainedAt:   m.TrainedAt,
			SavedAt:     time.Now().UTC(),
			SampleCount: m.SampleCount,
			HoldoutMSE:  m.HoldoutMSE,
			Checksum:    hex.EncodeToString(hash[:]),
			SizeBytes:   int64(compressed.Len()),
		},
		CompressedData: compressed.Bytes(),
	}

	f, err := os.Create(s.modelPath(m.Version)) //nolint:gosec // path is built from the configured base dir
	if err != nil {
		return fmt.Errorf("create model file: %w", err)
	}
	defer func() { _ = f.Close() }() //nolint:errcheck // error on close after write is surfaced via Encode

	if err := gob.NewEncoder(f).Encode(sf); err != nil {
		return fmt.Errorf("write model file: %w", err)
	}

	if m.Version > s.latest {
		s.latest = m.Version
	}
	return nil
}

// Load reads a stored model by version; version 0 loads the latest. The
// checksum is verified before the model is returned.
func (s *Store) Load(version int) (*recommend.Model, *ModelMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if version == 0 {
		if s.latest == 0 {
			return nil, nil, fmt.Errorf("no stored model")
		}
		version = s.latest
	}

	f, err := os.Open(s.modelPath(version)) //nolint:gosec // path is built from the configured base dir
	if err != nil {
		return nil, nil, fmt.Errorf("open model file: %w", err)
	}
	defer func() { _ = f.Close() }() //nolint:errcheck // error on close after read is not actionable

	var sf storedFile
	if err := gob.NewDecoder(f).Decode(&sf); err != nil {
		return nil, nil, fmt.Errorf("read model file: %w", err)
	}

	gzr, err := gzip.NewReader(bytes.NewReader(sf.CompressedData))
	if err != nil {
		return nil, nil, fmt.Errorf("decompress model: %w", err)
	}
	defer func() { _ = gzr.Close() }() //nolint:errcheck // error on gzip close after read is not actionable

	raw, err := io.ReadAll(gzr)
	if err != nil {
		return nil, nil, fmt.Errorf("read decompressed data: %w", err)
	}

	hash := sha256.Sum256(raw)
	if checksum := hex.EncodeToString(hash[:]); checksum != sf.Metadata.Checksum {
		return nil, nil, fmt.Errorf("checksum mismatch: expected %s, got %s", sf.Metadata.Checksum, checksum)
	}

	var m recommend.Model
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&m); err != nil {
		return nil, nil, fmt.Errorf("decode model: %w", err)
	}
	return &m, &sf.Metadata, nil
}
