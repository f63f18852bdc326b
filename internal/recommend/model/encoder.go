// Skyrank - Personalized Flight Offer Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skyrank

package model

import (
	"fmt"
	"sort"
)

// UnknownCategory is the bucket unseen values encode to.
const UnknownCategory = "__unknown__"

// UnknownPolicy selects how values unseen during fitting are encoded.
type UnknownPolicy string

const (
	// UnknownBucket encodes unseen values to an explicit extra column.
	UnknownBucket UnknownPolicy = "unknown_bucket"
	// FirstCategory encodes unseen values as the first known category.
	FirstCategory UnknownPolicy = "first_category"
)

// Valid reports whether p is a known policy.
func (p UnknownPolicy) Valid() bool {
	return p == UnknownBucket || p == FirstCategory
}

// OneHotEncoder maps categorical columns to indicator vectors. Categories
// are sorted per column; under UnknownBucket each column ends with
// UnknownCategory.
type OneHotEncoder struct {
	Columns    []string
	Categories [][]string
	Policy     UnknownPolicy

	index []map[string]int
}

// FitOneHot learns the categories of each column from rows.
func FitOneHot(columns []string, rows [][]string, policy UnknownPolicy) (*OneHotEncoder, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("no columns")
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no rows")
	}
	if !policy.Valid() {
		return nil, fmt.Errorf("unknown policy %q", policy)
	}

	sets := make([]map[string]struct{}, len(columns))
	for i := range sets {
		sets[i] = make(map[string]struct{})
	}
	for r, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("row %d has %d values, want %d", r, len(row), len(columns))
		}
		for c, v := range row {
			sets[c][v] = struct{}{}
		}
	}

	e := &OneHotEncoder{
		Columns:    append([]string(nil), columns...),
		Categories: make([][]string, len(columns)),
		Policy:     policy,
	}
	for c, set := range sets {
		cats := make([]string, 0, len(set)+1)
		for v := range set {
			if v != UnknownCategory {
				cats = append(cats, v)
			}
		}
		sort.Strings(cats)
		if policy == UnknownBucket {
			cats = append(cats, UnknownCategory)
		}
		e.Categories[c] = cats
	}
	e.buildIndex()
	return e, nil
}

func (e *OneHotEncoder) buildIndex() {
	e.index = make([]map[string]int, len(e.Categories))
	for c, cats := range e.Categories {
		m := make(map[string]int, len(cats))
		for i, v := range cats {
			m[v] = i
		}
		e.index[c] = m
	}
}

// Width returns the length of an encoded vector.
func (e *OneHotEncoder) Width() int {
	n := 0
	for _, cats := range e.Categories {
		n += len(cats)
	}
	return n
}

// Encode returns the indicator vector for values and the names of the
// columns whose value was unseen.
func (e *OneHotEncoder) Encode(values []string) ([]float64, []string, error) {
	if len(values) != len(e.Columns) {
		return nil, nil, fmt.Errorf("got %d values, want %d", len(values), len(e.Columns))
	}

	out := make([]float64, e.Width())
	var unseen []string
	offset := 0
	for c, v := range values {
		pos, ok := e.lookup(c, v)
		if !ok {
			unseen = append(unseen, e.Columns[c])
			pos = e.fallback(c)
		}
		out[offset+pos] = 1
		offset += len(e.Categories[c])
	}
	return out, unseen, nil
}

func (e *OneHotEncoder) lookup(col int, v string) (int, bool) {
	if v == UnknownCategory {
		return 0, false
	}
	if e.index != nil {
		i, ok := e.index[col][v]
		return i, ok
	}
	for i, cat := range e.Categories[col] {
		if cat == v {
			return i, true
		}
	}
	return 0, false
}

func (e *OneHotEncoder) fallback(col int) int {
	if e.Policy == UnknownBucket {
		return len(e.Categories[col]) - 1
	}
	return 0
}
