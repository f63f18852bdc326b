// Skyrank - Personalized Flight Offer Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skyrank

package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// Key layout for BadgerDB storage
const (
	artifactKeyPrefix = "artifact:rec:"
	activeArtifactKey = "artifact:active"
)

// badgerRecord is the stored value for one artifact.
type badgerRecord struct {
	Metadata Metadata `json:"metadata"`
	Encoder  []byte   `json:"encoder"`
	Scaler   []byte   `json:"scaler"`
	Model    []byte   `json:"model"`
}

// BadgerStore implements ArtifactStore on an embedded BadgerDB.
//
// The active pointer and the new record are written in the same
// transaction, so activation is atomic.
type BadgerStore struct {
	db  *badger.DB
	now func() time.Time
}

// NewBadgerStore wraps an open BadgerDB. The caller owns db.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db, now: time.Now}
}

// OpenBadgerStore opens (or creates) a BadgerDB at dir.
func OpenBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger artifact store: %w", err)
	}
	return NewBadgerStore(db), nil
}

// Close closes the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// LoadActive implements ArtifactStore.
func (s *BadgerStore) LoadActive(ctx context.Context) (*Artifact, error) {
	var rec badgerRecord

	err := s.db.View(func(txn *badger.Txn) error {
		id, err := activeIDTxn(txn)
		if err != nil {
			return err
		}
		return getRecordTxn(txn, id, &rec)
	})
	if err != nil {
		return nil, err
	}

	a := &Artifact{Metadata: rec.Metadata, Encoder: rec.Encoder, Scaler: rec.Scaler, Model: rec.Model}
	a.Active = true
	if err := a.Verify(); err != nil {
		return nil, err
	}
	return a, nil
}

// SaveNew implements ArtifactStore.
func (s *BadgerStore) SaveNew(ctx context.Context, a *Artifact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rec := pending(a, s.now)

	err := s.db.Update(func(txn *badger.Txn) error {
		history, err := scanTxn(txn)
		if err != nil {
			return err
		}
		next := 1
		for i := range history {
			if history[i].Version >= next {
				next = history[i].Version + 1
			}
		}
		rec.Version = next
		rec.Seal()

		meta := rec.Metadata
		meta.Active = false
		data, err := json.Marshal(badgerRecord{Metadata: meta, Encoder: rec.Encoder, Scaler: rec.Scaler, Model: rec.Model})
		if err != nil {
			return fmt.Errorf("marshal artifact: %w", err)
		}
		if err := txn.Set([]byte(artifactKeyPrefix+rec.ID), data); err != nil {
			return fmt.Errorf("set artifact: %w", err)
		}
		if err := txn.Set([]byte(activeArtifactKey), []byte(rec.ID)); err != nil {
			return fmt.Errorf("set active pointer: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	rec.Active = true
	*a = rec
	return nil
}

// ListHistory implements ArtifactStore.
func (s *BadgerStore) ListHistory(ctx context.Context, limit int) ([]Metadata, error) {
	var history []Metadata
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		history, err = scanTxn(txn)
		return err
	})
	if err != nil {
		return nil, err
	}
	return limitHistory(history, limit), nil
}

// Activate implements ArtifactStore.
func (s *BadgerStore) Activate(ctx context.Context, id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(artifactKeyPrefix + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrArtifactNotFound, id)
		}
		if err != nil {
			return fmt.Errorf("get artifact: %w", err)
		}
		return txn.Set([]byte(activeArtifactKey), []byte(id))
	})
}

// Prune implements ArtifactStore.
func (s *BadgerStore) Prune(ctx context.Context, keep int) error {
	return s.db.Update(func(txn *badger.Txn) error {
		history, err := scanTxn(txn)
		if err != nil {
			return err
		}
		for _, id := range prunable(history, keep) {
			if err := txn.Delete([]byte(artifactKeyPrefix + id)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("delete artifact: %w", err)
			}
		}
		return nil
	})
}

func activeIDTxn(txn *badger.Txn) (string, error) {
	item, err := txn.Get([]byte(activeArtifactKey))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", ErrNoActiveArtifact
	}
	if err != nil {
		return "", fmt.Errorf("get active pointer: %w", err)
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return "", fmt.Errorf("read active pointer: %w", err)
	}
	return string(val), nil
}

func getRecordTxn(txn *badger.Txn, id string, rec *badgerRecord) error {
	item, err := txn.Get([]byte(artifactKeyPrefix + id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%w: %s", ErrArtifactNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("get artifact: %w", err)
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, rec)
	})
}

// scanTxn returns the metadata of every artifact, marking the active one.
func scanTxn(txn *badger.Txn) ([]Metadata, error) {
	activeID, err := activeIDTxn(txn)
	if err != nil && !errors.Is(err, ErrNoActiveArtifact) {
		return nil, err
	}

	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(artifactKeyPrefix)
	it := txn.NewIterator(opts)
	defer it.Close()

	var history []Metadata
	prefix := []byte(artifactKeyPrefix)
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		var rec badgerRecord
		if err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		}); err != nil {
			return nil, fmt.Errorf("unmarshal artifact: %w", err)
		}
		rec.Metadata.Active = rec.Metadata.ID == activeID
		history = append(history, rec.Metadata)
	}
	return history, nil
}
