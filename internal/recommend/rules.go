// Skyrank - Personalized Flight Offer Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skyrank

package recommend

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/tomtom215/skyrank/internal/recommend/features"
	"github.com/tomtom215/skyrank/internal/recommend/profile"
)

// Rule adds Adjust to an offer's score when Expr evaluates to true.
//
// Expr is a CEL expression over two maps:
//
//	offer:   airline, price, currency, departure_hour, day_of_week, month,
//	         duration_hours, direct, flight_number, time_of_day,
//	         duration_category
//	profile: avg_price, price_range, prefers_direct, booking_count,
//	         preferred_airlines
//
// Example: offer.direct && offer.duration_hours < 3.0
type Rule struct {
	Name   string  `koanf:"name" json:"name"`
	Expr   string  `koanf:"expr" json:"expr"`
	Adjust float64 `koanf:"adjust" json:"adjust"`
}

type compiledRule struct {
	Rule
	prg cel.Program
}

// RuleSet is a compiled list of rules. Safe for concurrent use.
type RuleSet struct {
	rules []compiledRule
}

var (
	ruleEnv     *cel.Env
	ruleEnvErr  error
	ruleEnvOnce sync.Once
)

func getRuleEnv() (*cel.Env, error) {
	ruleEnvOnce.Do(func() {
		ruleEnv, ruleEnvErr = cel.NewEnv(
			cel.Variable("offer", cel.MapType(cel.StringType, cel.DynType)),
			cel.Variable("profile", cel.MapType(cel.StringType, cel.DynType)),
		)
	})
	return ruleEnv, ruleEnvErr
}

// CompileRules compiles every rule. An empty list yields an empty set.
func CompileRules(rules []Rule) (*RuleSet, error) {
	if len(rules) == 0 {
		return &RuleSet{}, nil
	}
	env, err := getRuleEnv()
	if err != nil {
		return nil, fmt.Errorf("create rule environment: %w", err)
	}

	rs := &RuleSet{rules: make([]compiledRule, 0, len(rules))}
	for i, r := range rules {
		name := r.Name
		if name == "" {
			name = fmt.Sprintf("rule[%d]", i)
		}
		ast, issues := env.Compile(r.Expr)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("rules: %s: compile: %w", name, issues.Err())
		}
		if t := ast.OutputType(); !t.IsExactType(cel.BoolType) && !t.IsExactType(cel.DynType) {
			return nil, fmt.Errorf("rules: %s: expression must return bool, got %s", name, t)
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("rules: %s: program: %w", name, err)
		}
		r.Name = name
		rs.rules = append(rs.rules, compiledRule{Rule: r, prg: prg})
	}
	return rs, nil
}

// Len returns the number of rules.
func (rs *RuleSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.rules)
}

// Apply returns the summed adjustment of every matching rule and the
// names of the rules that matched.
func (rs *RuleSet) Apply(rec *features.Record, p *profile.TravelerProfile) (float64, []string, error) {
	if rs.Len() == 0 {
		return 0, nil, nil
	}

	input := map[string]any{
		"offer":   offerVars(rec),
		"profile": profileVars(p),
	}

	var total float64
	var matched []string
	for _, r := range rs.rules {
		out, _, err := r.prg.Eval(input)
		if err != nil {
			return 0, nil, fmt.Errorf("rule %s: %w", r.Name, err)
		}
		ok, isBool := out.Value().(bool)
		if !isBool {
			return 0, nil, fmt.Errorf("rule %s: expression must return bool, got %T", r.Name, out.Value())
		}
		if ok {
			total += r.Adjust
			matched = append(matched, r.Name)
		}
	}
	return total, matched, nil
}

func offerVars(rec *features.Record) map[string]any {
	return map[string]any{
		"airline":           rec.Airline,
		"price":             rec.Price,
		"currency":          rec.Currency,
		"departure_hour":    int64(rec.DepartureHour),
		"day_of_week":       int64(rec.DayOfWeek),
		"month":             int64(rec.Month),
		"duration_hours":    rec.DurationHours,
		"direct":            rec.Direct,
		"flight_number":     rec.FlightNumber,
		"time_of_day":       features.CategorizeHour(rec.DepartureHour),
		"duration_category": features.CategorizeDuration(rec.DurationHours),
	}
}

func profileVars(p *profile.TravelerProfile) map[string]any {
	return map[string]any{
		"avg_price":          p.AvgPrice,
		"price_range":        p.PriceRange,
		"prefers_direct":     p.PrefersDirect,
		"booking_count":      int64(p.BookingCount),
		"preferred_airlines": append([]string{}, p.PreferredAirlines...),
	}
}
