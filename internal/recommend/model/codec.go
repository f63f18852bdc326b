// Skyrank - Personalized Flight Offer Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skyrank

package model

import (
	"bytes"
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"io"
)

// Marshal gob-encodes and gzip-compresses a fitted component.
func Marshal(v any) ([]byte, error) {
	var raw bytes.Buffer
	if err := gob.NewEncoder(&raw).Encode(v); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}

	var compressed bytes.Buffer
	gzw := gzip.NewWriter(&compressed)
	if _, err := gzw.Write(raw.Bytes()); err != nil {
		return nil, fmt.Errorf("compress: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return nil, fmt.Errorf("finalize compression: %w", err)
	}
	return compressed.Bytes(), nil
}

func unmarshal(data []byte, target any) error {
	gzr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decompress: %w", err)
	}
	defer func() { _ = gzr.Close() }() //nolint:errcheck // error on gzip close after read is not actionable

	raw, err := io.ReadAll(gzr)
	if err != nil {
		return fmt.Errorf("read decompressed data: %w", err)
	}
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(target); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

// UnmarshalEncoder restores an encoder produced by Marshal.
func UnmarshalEncoder(data []byte) (*OneHotEncoder, error) {
	var e OneHotEncoder
	if err := unmarshal(data, &e); err != nil {
		return nil, err
	}
	if len(e.Columns) != len(e.Categories) {
		return nil, fmt.Errorf("encoder has %d columns and %d category lists", len(e.Columns), len(e.Categories))
	}
	if e.Policy == "" {
		e.Policy = FirstCategory
	}
	e.buildIndex()
	return &e, nil
}

// UnmarshalScaler restores a scaler produced by Marshal.
func UnmarshalScaler(data []byte) (*StandardScaler, error) {
	var s StandardScaler
	if err := unmarshal(data, &s); err != nil {
		return nil, err
	}
	if len(s.Mean) != len(s.Scale) {
		return nil, fmt.Errorf("scaler has %d means and %d scales", len(s.Mean), len(s.Scale))
	}
	return &s, nil
}

// UnmarshalEstimator restores an estimator of the given kind.
func UnmarshalEstimator(kind Kind, data []byte) (Estimator, error) {
	switch kind {
	case KindKNN:
		var m KNNIndex
		if err := unmarshal(data, &m); err != nil {
			return nil, err
		}
		if len(m.Points) == 0 || m.K < 1 {
			return nil, fmt.Errorf("empty knn index")
		}
		return &m, nil
	case KindClassifier, KindRegressor:
		var f RandomForest
		if err := unmarshal(data, &f); err != nil {
			return nil, err
		}
		if f.Task != kind || len(f.Trees) == 0 {
			return nil, fmt.Errorf("blob holds a %s forest with %d trees, want %s", f.Task, len(f.Trees), kind)
		}
		return &f, nil
	default:
		return nil, fmt.Errorf("unknown model kind %q", kind)
	}
}
