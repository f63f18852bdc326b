// Skyrank - Personalized Flight Offer Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skyrank

package storage

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	artifactExt    = ".gob.gz"
	activeFilename = "ACTIVE"
)

// storedFile is the on-disk format for artifact files.
type storedFile struct {
	Metadata Metadata
	Encoder  []byte
	Scaler   []byte
	Model    []byte
}

// FileStore keeps artifacts as compressed gob files in a directory.
//
// The active artifact is named by the ACTIVE file, which is always
// replaced by rename so readers never observe a partial pointer.
type FileStore struct {
	baseDir string
	mu      sync.RWMutex
	now     func() time.Time
}

// NewFileStore creates a store rooted at baseDir, creating it if needed.
func NewFileStore(baseDir string) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0o750); err != nil { //nolint:gosec // 0750 is acceptable for model storage
		return nil, fmt.Errorf("create artifact directory: %w", err)
	}
	return &FileStore{baseDir: baseDir, now: time.Now}, nil
}

// LoadActive implements ArtifactStore.
func (s *FileStore) LoadActive(ctx context.Context) (*Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, err := s.activeID()
	if err != nil {
		return nil, err
	}
	a, err := s.read(id)
	if err != nil {
		return nil, err
	}
	a.Active = true
	if err := a.Verify(); err != nil {
		return nil, err
	}
	return a, nil
}

// SaveNew implements ArtifactStore.
func (s *FileStore) SaveNew(ctx context.Context, a *Artifact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	history, err := s.scan()
	if err != nil {
		return err
	}
	next := 1
	for i := range history {
		if history[i].Version >= next {
			next = history[i].Version + 1
		}
	}

	rec := pending(a, s.now)
	rec.Version = next
	rec.Seal()

	if err := s.write(&rec); err != nil {
		return err
	}
	if err := s.setActive(rec.ID); err != nil {
		return err
	}
	rec.Active = true
	*a = rec
	return nil
}

// ListHistory implements ArtifactStore.
func (s *FileStore) ListHistory(ctx context.Context, limit int) ([]Metadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, err := s.scan()
	if err != nil {
		return nil, err
	}
	return limitHistory(history, limit), nil
}

// Activate implements ArtifactStore.
func (s *FileStore) Activate(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.artifactPath(id)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrArtifactNotFound, id)
		}
		return fmt.Errorf("stat artifact: %w", err)
	}
	return s.setActive(id)
}

// Prune implements ArtifactStore.
func (s *FileStore) Prune(ctx context.Context, keep int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	history, err := s.scan()
	if err != nil {
		return err
	}
	for _, id := range prunable(history, keep) {
		_ = os.Remove(s.artifactPath(id)) //nolint:errcheck // best-effort cleanup of old versions
	}
	return nil
}

// scan reads the metadata of every artifact file and marks the active one.
func (s *FileStore) scan() ([]Metadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("read artifact directory: %w", err)
	}

	activeID, err := s.activeID()
	if err != nil && !errors.Is(err, ErrNoActiveArtifact) {
		return nil, err
	}

	var history []Metadata
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, artifactExt) {
			continue
		}
		a, err := s.read(strings.TrimSuffix(name, artifactExt))
		if err != nil {
			continue
		}
		a.Active = a.ID == activeID
		history = append(history, a.Metadata)
	}
	return history, nil
}

func (s *FileStore) activeID() (string, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, activeFilename))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNoActiveArtifact
		}
		return "", fmt.Errorf("read active pointer: %w", err)
	}
	id := strings.TrimSpace(string(data))
	if id == "" {
		return "", ErrNoActiveArtifact
	}
	return id, nil
}

func (s *FileStore) setActive(id string) error {
	return s.replace(activeFilename, []byte(id+"\n"))
}

func (s *FileStore) read(id string) (*Artifact, error) {
	f, err := os.Open(s.artifactPath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, id)
		}
		return nil, fmt.Errorf("open artifact file: %w", err)
	}
	defer func() { _ = f.Close() }() //nolint:errcheck // error on close after read is not actionable

	gzr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("decompress artifact: %w", err)
	}
	defer func() { _ = gzr.Close() }() //nolint:errcheck // error on gzip close after read is not actionable

	raw, err := io.ReadAll(gzr)
	if err != nil {
		return nil, fmt.Errorf("read decompressed artifact: %w", err)
	}

	var sf storedFile
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&sf); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	return &Artifact{
		Metadata: sf.Metadata,
		Encoder:  sf.Encoder,
		Scaler:   sf.Scaler,
		Model:    sf.Model,
	}, nil
}

func (s *FileStore) write(a *Artifact) error {
	meta := a.Metadata
	meta.Active = false

	var raw bytes.Buffer
	if err := gob.NewEncoder(&raw).Encode(storedFile{
		Metadata: meta,
		Encoder:  a.Encoder,
		Scaler:   a.Scaler,
		Model:    a.Model,
	}); err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}

	var compressed bytes.Buffer
	gzw := gzip.NewWriter(&compressed)
	if _, err := gzw.Write(raw.Bytes()); err != nil {
		return fmt.Errorf("compress artifact: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return fmt.Errorf("finalize compression: %w", err)
	}
	return s.replace(a.ID+artifactExt, compressed.Bytes())
}

// replace writes data to a temp file in baseDir and renames it into place.
func (s *FileStore) replace(name string, data []byte) error {
	tmp, err := os.CreateTemp(s.baseDir, "."+name+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()        //nolint:errcheck // write already failed
		_ = os.Remove(tmpName) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmpName, filepath.Join(s.baseDir, name)); err != nil {
		_ = os.Remove(tmpName) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("rename %s: %w", name, err)
	}
	return nil
}

func (s *FileStore) artifactPath(id string) string {
	return filepath.Join(s.baseDir, filepath.Base(id)+artifactExt)
}
