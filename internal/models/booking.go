// Skyrank - Personalized Flight Offer Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skyrank

package models

import (
	"strconv"
	"strings"
	"time"
)

// Booking states. Only confirmed bookings feed profiles and training.
const (
	BookingStateDraft     = "draft"
	BookingStateConfirmed = "confirmed"
	BookingStateCancelled = "cancelled"
)

// Traveler is an account that books flights.
type Traveler struct {
	ID        string    `json:"id"`
	Email     string    `json:"email,omitempty"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Booking is a historical flight booking.
//
// DepartureTime is the local wall-clock time in "HH:MM" form. DurationHours
// is the total travel time including connections.
type Booking struct {
	ID            string    `json:"id"`
	TravelerID    string    `json:"traveler_id"`
	Airline       string    `json:"airline"`
	FlightNumber  string    `json:"flight_number,omitempty"`
	Price         float64   `json:"price"`
	Currency      string    `json:"currency,omitempty"`
	DepartureDate time.Time `json:"departure_date"`
	DepartureTime string    `json:"departure_time"`
	DurationHours float64   `json:"duration_hours"`
	Direct        bool      `json:"direct"`
	State         string    `json:"state"`
	CreatedAt     time.Time `json:"created_at"`
}

// DepartureHour returns the hour of DepartureTime, or 12 when it cannot be parsed.
func (b *Booking) DepartureHour() int {
	head, _, _ := strings.Cut(strings.TrimSpace(b.DepartureTime), ":")
	hour, err := strconv.Atoi(head)
	if err != nil || hour < 0 || hour > 23 {
		return 12
	}
	return hour
}

// DayOfWeek returns the departure weekday with Monday as 0.
func (b *Booking) DayOfWeek() int {
	return (int(b.DepartureDate.Weekday()) + 6) % 7
}

// Confirmed reports whether the booking is in the confirmed state.
func (b *Booking) Confirmed() bool {
	return b.State == BookingStateConfirmed
}
