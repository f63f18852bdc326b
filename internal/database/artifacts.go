// Skyrank - Personalized Flight Offer Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skyrank

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/skyrank/internal/recommend/storage"
)

const artifactMetaColumns = `id, version, strategy, unknown_policy, active, trained_at,
	sample_size, feature_count, metrics, training_duration_ms, checksum, size_bytes`

// ArtifactStore is a storage.ArtifactStore on the model_artifacts table.
type ArtifactStore struct {
	db  *DB
	now func() time.Time
}

var _ storage.ArtifactStore = (*ArtifactStore)(nil)

// NewArtifactStore returns a store backed by db.
func NewArtifactStore(db *DB) *ArtifactStore {
	return &ArtifactStore{db: db, now: time.Now}
}

// LoadActive implements storage.ArtifactStore. When several rows are
// flagged active the newest version wins.
func (s *ArtifactStore) LoadActive(ctx context.Context) (*storage.Artifact, error) {
	ctx, cancel := s.db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	row := s.db.conn.QueryRowContext(ctx, `SELECT `+artifactMetaColumns+`, encoder, scaler, model
		FROM model_artifacts WHERE active ORDER BY version DESC LIMIT 1`)

	var a storage.Artifact
	var metricsJSON sql.NullString
	err := row.Scan(
		&a.ID, &a.Version, &a.Strategy, &a.UnknownPolicy, &a.Active, &a.TrainedAt,
		&a.SampleSize, &a.FeatureCount, &metricsJSON, &a.TrainingDurationMS, &a.Checksum, &a.SizeBytes,
		&a.Encoder, &a.Scaler, &a.Model,
	)
	if errors.Is(err, sql.ErrNoRows) {
		observe("select", "model_artifacts", start, nil)
		return nil, storage.ErrNoActiveArtifact
	}
	observe("select", "model_artifacts", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to load active artifact: %w", err)
	}
	if a.Metrics, err = decodeMetrics(metricsJSON); err != nil {
		return nil, err
	}
	if err := a.Verify(); err != nil {
		return nil, err
	}
	return &a, nil
}

// SaveNew implements storage.ArtifactStore. Version assignment, the
// deactivation of the previous row and the insert share one transaction.
func (s *ArtifactStore) SaveNew(ctx context.Context, a *storage.Artifact) error {
	ctx, cancel := s.db.ensureContext(ctx)
	defer cancel()

	rec := *a
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.TrainedAt.IsZero() {
		rec.TrainedAt = s.now().UTC()
	}
	rec.Seal()

	metricsJSON, err := json.Marshal(rec.Metrics)
	if err != nil {
		return fmt.Errorf("failed to encode artifact metrics: %w", err)
	}

	start := time.Now()
	var version int
	err = s.db.withTx(ctx, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(version), 0) + 1 FROM model_artifacts`).Scan(&version); err != nil {
			return fmt.Errorf("next artifact version: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE model_artifacts SET active = false WHERE active`); err != nil {
			return fmt.Errorf("deactivate artifacts: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO model_artifacts (`+artifactMetaColumns+`, encoder, scaler, model)
			VALUES (?, ?, ?, ?, true, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, version, rec.Strategy, rec.UnknownPolicy, rec.TrainedAt.UTC(),
			rec.SampleSize, rec.FeatureCount, string(metricsJSON), rec.TrainingDurationMS, rec.Checksum, rec.SizeBytes,
			rec.Encoder, rec.Scaler, rec.Model,
		); err != nil {
			return fmt.Errorf("insert artifact: %w", err)
		}
		return nil
	})
	observe("insert", "model_artifacts", start, err)
	if err != nil {
		return fmt.Errorf("failed to save artifact %s: %w", rec.ID, err)
	}

	rec.Version = version
	rec.Active = true
	*a = rec
	return nil
}

// ListHistory implements storage.ArtifactStore.
func (s *ArtifactStore) ListHistory(ctx context.Context, limit int) ([]storage.Metadata, error) {
	ctx, cancel := s.db.ensureContext(ctx)
	defer cancel()

	query := `SELECT ` + artifactMetaColumns + ` FROM model_artifacts ORDER BY version DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	start := time.Now()
	rows, err := s.db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		observe("select", "model_artifacts", start, err)
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}
	defer closeWithLog(rows, s.db.logger, "artifact rows")

	var out []storage.Metadata
	activeSeen := false
	for rows.Next() {
		var m storage.Metadata
		var metricsJSON sql.NullString
		if err := rows.Scan(
			&m.ID, &m.Version, &m.Strategy, &m.UnknownPolicy, &m.Active, &m.TrainedAt,
			&m.SampleSize, &m.FeatureCount, &metricsJSON, &m.TrainingDurationMS, &m.Checksum, &m.SizeBytes,
		); err != nil {
			return nil, fmt.Errorf("failed to scan artifact: %w", err)
		}
		if m.Metrics, err = decodeMetrics(metricsJSON); err != nil {
			return nil, err
		}
		// Only the newest active row counts as active.
		if m.Active && activeSeen {
			m.Active = false
		}
		activeSeen = activeSeen || m.Active
		out = append(out, m)
	}
	err = rows.Err()
	observe("select", "model_artifacts", start, err)
	return out, err
}

// Activate implements storage.ArtifactStore.
func (s *ArtifactStore) Activate(ctx context.Context, id string) error {
	ctx, cancel := s.db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	err := s.db.withTx(ctx, func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) > 0 FROM model_artifacts WHERE id = ?`, id).Scan(&exists); err != nil {
			return fmt.Errorf("lookup artifact: %w", err)
		}
		if !exists {
			return fmt.Errorf("%w: %s", storage.ErrArtifactNotFound, id)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE model_artifacts SET active = false WHERE active AND id <> ?`, id); err != nil {
			return fmt.Errorf("deactivate artifacts: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE model_artifacts SET active = true WHERE id = ?`, id); err != nil {
			return fmt.Errorf("activate artifact: %w", err)
		}
		return nil
	})
	observe("update", "model_artifacts", start, err)
	if err != nil {
		if errors.Is(err, storage.ErrArtifactNotFound) {
			return err
		}
		return fmt.Errorf("failed to activate artifact %s: %w", id, err)
	}
	return nil
}

// Prune implements storage.ArtifactStore.
func (s *ArtifactStore) Prune(ctx context.Context, keep int) error {
	ctx, cancel := s.db.ensureContext(ctx)
	defer cancel()

	if keep < 1 {
		keep = 1
	}

	start := time.Now()
	res, err := s.db.conn.ExecContext(ctx, `
		DELETE FROM model_artifacts
		WHERE NOT active
		  AND id NOT IN (SELECT id FROM model_artifacts ORDER BY version DESC LIMIT ?)`, keep)
	observe("delete", "model_artifacts", start, err)
	if err != nil {
		return fmt.Errorf("failed to prune artifacts: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		s.db.logger.Info().Int64("deleted", n).Int("keep", keep).Msg("Pruned model artifacts")
	}
	return nil
}

func decodeMetrics(raw sql.NullString) (map[string]float64, error) {
	if !raw.Valid || raw.String == "" || raw.String == "null" {
		return nil, nil
	}
	var m map[string]float64
	if err := json.Unmarshal([]byte(raw.String), &m); err != nil {
		return nil, fmt.Errorf("failed to decode artifact metrics: %w", err)
	}
	return m, nil
}
