// Skyrank - Personalized Flight Offer Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skyrank

/*
Package features turns raw flight offers of unknown shape into canonical
feature records.

Search providers disagree on field names and value formats. Instead of
hand-written fallback chains, each record field is described by a Probe:
an ordered list of (gjson path, parser) rules plus a default. A single
interpreter evaluates every probe, so supporting a new provider shape is
a one-line table change.

Extraction never fails. A rule whose path is absent or whose value does
not parse falls through to the next rule and finally to the default.

	ext := features.NewExtractor(nil)
	rec := ext.Extract(rawOffer)
	bucket := features.CategorizeHour(rec.DepartureHour)

The categorizers in this package are shared by the profile builder and
the scorer so that history and offers land in the same buckets.
*/
package features
