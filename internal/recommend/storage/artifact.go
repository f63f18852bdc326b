// Skyrank - Personalized Flight Offer Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skyrank

package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNoActiveArtifact is returned when no artifact has been activated.
	ErrNoActiveArtifact = errors.New("no active model artifact")

	// ErrArtifactNotFound is returned when an artifact id does not exist.
	ErrArtifactNotFound = errors.New("model artifact not found")

	// ErrChecksumMismatch is returned when stored blobs fail verification.
	ErrChecksumMismatch = errors.New("model artifact checksum mismatch")
)

// Metadata describes a stored artifact.
type Metadata struct {
	// ID is a UUID assigned on save when empty.
	ID string `json:"id"`

	// Version increases monotonically per store.
	Version int `json:"version"`

	// Strategy is the model kind: knn, classifier or regressor.
	Strategy string `json:"strategy"`

	// UnknownPolicy is the encoder's policy for unseen categories.
	UnknownPolicy string `json:"unknown_policy"`

	Active       bool      `json:"active"`
	TrainedAt    time.Time `json:"trained_at"`
	SampleSize   int       `json:"sample_size"`
	FeatureCount int       `json:"feature_count"`

	// Metrics holds evaluation results keyed by metric name.
	Metrics map[string]float64 `json:"metrics,omitempty"`

	TrainingDurationMS int64  `json:"training_duration_ms"`
	Checksum           string `json:"checksum"`
	SizeBytes          int64  `json:"size_bytes"`
}

// Artifact is a complete trained model.
type Artifact struct {
	Metadata

	Encoder []byte `json:"-"`
	Scaler  []byte `json:"-"`
	Model   []byte `json:"-"`
}

// ArtifactStore persists artifacts with a single active record.
type ArtifactStore interface {
	// LoadActive returns the active artifact or ErrNoActiveArtifact.
	LoadActive(ctx context.Context) (*Artifact, error)

	// SaveNew assigns the next version (and an ID when empty), persists a
	// and makes it the only active artifact in one atomic step.
	SaveNew(ctx context.Context, a *Artifact) error

	// ListHistory returns metadata newest first, at most limit entries
	// (all when limit <= 0).
	ListHistory(ctx context.Context, limit int) ([]Metadata, error)

	// Activate makes an existing artifact the active one.
	Activate(ctx context.Context, id string) error

	// Prune deletes inactive artifacts beyond the newest keep.
	Prune(ctx context.Context, keep int) error
}

// ComputeChecksum hashes the three blobs with their lengths.
func (a *Artifact) ComputeChecksum() string {
	h := sha256.New()
	for _, blob := range [][]byte{a.Encoder, a.Scaler, a.Model} {
		var n [8]byte
		size := uint64(len(blob))
		for i := range n {
			n[i] = byte(size >> (8 * i))
		}
		h.Write(n[:])
		h.Write(blob)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Seal records the checksum and size of the blobs.
func (a *Artifact) Seal() {
	a.Checksum = a.ComputeChecksum()
	a.SizeBytes = int64(len(a.Encoder) + len(a.Scaler) + len(a.Model))
}

// pending returns a copy of a with an id and training time filled in.
// Stores seal and persist the copy and only write it back to a once the
// save has committed.
func pending(a *Artifact, now func() time.Time) Artifact {
	rec := *a
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.TrainedAt.IsZero() {
		rec.TrainedAt = now().UTC()
	}
	return rec
}

// Verify checks that every blob is present and matches the checksum.
func (a *Artifact) Verify() error {
	if len(a.Encoder) == 0 || len(a.Scaler) == 0 || len(a.Model) == 0 {
		return fmt.Errorf("artifact %s is incomplete", a.ID)
	}
	if got := a.ComputeChecksum(); got != a.Checksum {
		return fmt.Errorf("%w: artifact %s expected %s, got %s", ErrChecksumMismatch, a.ID, a.Checksum, got)
	}
	return nil
}

// prunable returns the ids to delete so that at most keep artifacts
// remain, never deleting the active one. history must be newest first.
func prunable(history []Metadata, keep int) []string {
	if keep < 1 {
		keep = 1
	}
	sort.SliceStable(history, func(i, j int) bool { return history[i].Version > history[j].Version })

	var out []string
	for i, m := range history {
		if i >= keep && !m.Active {
			out = append(out, m.ID)
		}
	}
	return out
}

func limitHistory(history []Metadata, limit int) []Metadata {
	sort.SliceStable(history, func(i, j int) bool { return history[i].Version > history[j].Version })
	if limit > 0 && len(history) > limit {
		history = history[:limit]
	}
	return history
}
