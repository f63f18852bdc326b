// Skyrank - Personalized Flight Offer Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skyrank

package features

import (
	"strconv"
	"time"

	"github.com/tidwall/gjson"
)

// Placeholder preferences. Offers never carry them, and training rows use
// the same values so the encoder sees a stable column.
const (
	DefaultSeatPreference = "window"
	DefaultMealPreference = "regular"
	DefaultAirline        = "Unknown"
	DefaultDurationHours  = 2.0
)

// CategoricalColumns names the one-hot encoded columns, in encoding order.
var CategoricalColumns = []string{"airline", "seat_preference", "meal_preference", "day_of_week", "month"}

// Record is the canonical, always-complete view of an offer.
type Record struct {
	Airline        string    `json:"airline"`
	Price          float64   `json:"price"`
	Currency       string    `json:"currency,omitempty"`
	DepartureDate  time.Time `json:"departure_date"`
	DepartureTime  string    `json:"departure_time"`
	DepartureHour  int       `json:"departure_hour"`
	DayOfWeek      int       `json:"day_of_week"`
	Month          int       `json:"month"`
	DurationHours  float64   `json:"duration_hours"`
	Direct         bool      `json:"direct"`
	FlightNumber   string    `json:"flight_number,omitempty"`
	SeatPreference string    `json:"seat_preference"`
	MealPreference string    `json:"meal_preference"`

	// Defaulted lists the fields that fell back to their default.
	Defaulted []string `json:"defaulted,omitempty"`
}

// Categorical returns the record's values for CategoricalColumns.
func (r *Record) Categorical() []string {
	return CategoricalValues(r.Airline, r.SeatPreference, r.MealPreference, r.DayOfWeek, r.Month)
}

// CategoricalValues lays out categorical values in CategoricalColumns order.
func CategoricalValues(airline, seat, meal string, dayOfWeek, month int) []string {
	return []string{airline, seat, meal, strconv.Itoa(dayOfWeek), strconv.Itoa(month)}
}

// Probe table. Paths are tried top to bottom.
var (
	airlineProbe = Probe[string]{
		Field:   "airline",
		Rules:   rules(parseNonEmptyString, "airlines.full", "airline", "airlineName", "carrier"),
		Default: DefaultAirline,
	}
	dateProbe = Probe[time.Time]{
		Field: "departure_date",
		Rules: rules(parseDate, "departDateTime.date", "departureDate", "departure.date", "depart.date", "depart_date"),
	}
	clockProbe = Probe[Clock]{
		Field:   "departure_time",
		Rules:   rules(parseClock, "departDateTime.time", "departureTime", "departure.time", "depart.time", "depart_time"),
		Default: Clock{Hour: 12},
	}
	priceProbe = Probe[float64]{
		Field:   "price",
		Rules:   rules(parsePrice, "price", "amount", "totalPrice", "price.total", "price.amount"),
		Default: 0,
	}
	durationProbe = Probe[float64]{
		Field:   "duration",
		Rules:   rules(parseDuration, "duration", "flightDuration", "travelDuration"),
		Default: DefaultDurationHours,
	}
	directProbe = Probe[bool]{
		Field: "direct",
		Rules: append(append(
			rules(parseBool, "isDirect", "direct"),
			rules(parseZeroStops, "stops", "stopovers")...),
			rules(parseSingleSegment, "segments")...),
		Default: true,
	}
	flightNumberProbe = Probe[string]{
		Field: "flight_number",
		Rules: rules(parseIdentifier, "flightNumber", "flight_number", "flight.number"),
	}
	currencyProbe = Probe[string]{
		Field: "currency",
		Rules: rules(parseNonEmptyString, "currency", "price.currency"),
	}
)

// Extractor normalizes raw offers. It is stateless apart from its clock
// and safe for concurrent use.
type Extractor struct {
	now func() time.Time
}

// NewExtractor creates an extractor. now supplies the fallback departure
// date; nil means time.Now.
func NewExtractor(now func() time.Time) *Extractor {
	if now == nil {
		now = time.Now
	}
	return &Extractor{now: now}
}

// Extract builds a Record from raw offer JSON. It never fails; invalid or
// non-object input yields an all-default record.
func (e *Extractor) Extract(raw []byte) Record {
	doc := gjson.ParseBytes(raw)
	if !doc.IsObject() {
		doc = gjson.Result{}
	}

	var rec Record
	var defaulted []string
	track := func(field, path string) {
		if path == "" {
			defaulted = append(defaulted, field)
		}
	}
	var path string

	rec.Airline, path = airlineProbe.Eval(doc)
	track(airlineProbe.Field, path)

	rec.DepartureDate, path = dateProbe.Eval(doc)
	if path == "" {
		n := e.now()
		rec.DepartureDate = time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
	}
	track(dateProbe.Field, path)

	var clock Clock
	clock, path = clockProbe.Eval(doc)
	track(clockProbe.Field, path)
	rec.DepartureHour = clock.Hour
	rec.DepartureTime = clock.String()

	rec.Price, path = priceProbe.Eval(doc)
	track(priceProbe.Field, path)

	rec.DurationHours, path = durationProbe.Eval(doc)
	track(durationProbe.Field, path)

	rec.Direct, path = directProbe.Eval(doc)
	track(directProbe.Field, path)

	rec.FlightNumber, _ = flightNumberProbe.Eval(doc)
	rec.Currency, _ = currencyProbe.Eval(doc)

	rec.DayOfWeek = (int(rec.DepartureDate.Weekday()) + 6) % 7
	rec.Month = int(rec.DepartureDate.Month())
	rec.SeatPreference = DefaultSeatPreference
	rec.MealPreference = DefaultMealPreference
	rec.Defaulted = defaulted
	return rec
}
