// Skyrank - Personalized Flight Offer Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skyrank

package features

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Parser converts the value found at a path. ok is false when the value
// is unusable and the next rule should be tried.
type Parser[T any] func(v gjson.Result) (value T, ok bool)

// Rule pairs a gjson path with the parser applied to its value.
type Rule[T any] struct {
	Path  string
	Parse Parser[T]
}

// Probe describes how one record field is located in an offer.
type Probe[T any] struct {
	Field   string
	Rules   []Rule[T]
	Default T
}

// Eval returns the first successfully parsed value and the path it came
// from. When no rule matches it returns the default and an empty path.
func (p Probe[T]) Eval(doc gjson.Result) (T, string) {
	for _, r := range p.Rules {
		v := doc.Get(r.Path)
		if !v.Exists() || v.Type == gjson.Null {
			continue
		}
		if out, ok := r.Parse(v); ok {
			return out, r.Path
		}
	}
	return p.Default, ""
}

// rules builds one rule per path sharing the same parser.
func rules[T any](parse Parser[T], paths ...string) []Rule[T] {
	out := make([]Rule[T], len(paths))
	for i, path := range paths {
		out[i] = Rule[T]{Path: path, Parse: parse}
	}
	return out
}

// Clock is a time of day.
type Clock struct {
	Hour   int
	Minute int
}

// String renders the clock as "HH:MM".
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// Accepted departure date layouts, tried in order.
var dateLayouts = []string{"2006-01-02", "02/01/2006", "01/02/2006"}

var durationPattern = regexp.MustCompile(`^(?:(\d+(?:\.\d+)?)\s*h)?\s*(?:(\d+(?:\.\d+)?)\s*m(?:in)?)?$`)

func parseNonEmptyString(v gjson.Result) (string, bool) {
	if v.Type != gjson.String {
		return "", false
	}
	s := strings.TrimSpace(v.Str)
	return s, s != ""
}

func parseIdentifier(v gjson.Result) (string, bool) {
	switch v.Type {
	case gjson.String:
		s := strings.TrimSpace(v.Str)
		return s, s != ""
	case gjson.Number:
		return v.Raw, true
	default:
		return "", false
	}
}

func parseDate(v gjson.Result) (time.Time, bool) {
	if v.Type != gjson.String {
		return time.Time{}, false
	}
	s := strings.TrimSpace(v.Str)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseClock(v gjson.Result) (Clock, bool) {
	switch {
	case v.Type == gjson.Number:
		return clockOf(int(v.Num), 0)
	case v.Type == gjson.String:
		parts := strings.Split(strings.TrimSpace(v.Str), ":")
		if len(parts) > 3 {
			return Clock{}, false
		}
		hour, err := strconv.Atoi(parts[0])
		if err != nil {
			return Clock{}, false
		}
		minute := 0
		if len(parts) > 1 {
			if minute, err = strconv.Atoi(parts[1]); err != nil {
				return Clock{}, false
			}
		}
		return clockOf(hour, minute)
	case v.IsObject():
		hour := v.Get("hour")
		if hour.Type != gjson.Number {
			return Clock{}, false
		}
		return clockOf(int(hour.Num), int(v.Get("minute").Num))
	default:
		return Clock{}, false
	}
}

func clockOf(hour, minute int) (Clock, bool) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return Clock{}, false
	}
	return Clock{Hour: hour, Minute: minute}, true
}

// parsePrice accepts numbers and strings such as "EUR 1,299.50", keeping
// only digits and the decimal point.
func parsePrice(v gjson.Result) (float64, bool) {
	switch v.Type {
	case gjson.Number:
		return v.Num, !math.IsNaN(v.Num) && !math.IsInf(v.Num, 0)
	case gjson.String:
		digits := strings.Map(func(r rune) rune {
			if (r >= '0' && r <= '9') || r == '.' {
				return r
			}
			return -1
		}, v.Str)
		f, err := strconv.ParseFloat(digits, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// parseDuration accepts hours as a number, "<H>h<M>m" strings with either
// part optional, and ISO 8601 "PT2H30M".
func parseDuration(v gjson.Result) (float64, bool) {
	switch v.Type {
	case gjson.Number:
		return v.Num, v.Num >= 0
	case gjson.String:
		s := strings.ToLower(strings.TrimSpace(v.Str))
		s = strings.TrimPrefix(s, "pt")
		if s == "" {
			return 0, false
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f, f >= 0
		}
		m := durationPattern.FindStringSubmatch(s)
		if m == nil || (m[1] == "" && m[2] == "") {
			return 0, false
		}
		var hours float64
		if m[1] != "" {
			h, _ := strconv.ParseFloat(m[1], 64)
			hours += h
		}
		if m[2] != "" {
			mins, _ := strconv.ParseFloat(m[2], 64)
			hours += mins / 60
		}
		return hours, true
	default:
		return 0, false
	}
}

func parseBool(v gjson.Result) (bool, bool) {
	switch v.Type {
	case gjson.True:
		return true, true
	case gjson.False:
		return false, true
	case gjson.String:
		b, err := strconv.ParseBool(strings.TrimSpace(v.Str))
		return b, err == nil
	default:
		return false, false
	}
}

func parseZeroStops(v gjson.Result) (bool, bool) {
	if v.Type != gjson.Number {
		return false, false
	}
	return v.Int() == 0, true
}

func parseSingleSegment(v gjson.Result) (bool, bool) {
	if !v.IsArray() {
		return false, false
	}
	return len(v.Array()) == 1, true
}
