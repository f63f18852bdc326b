// Skyrank - Personalized Flight Offer Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skyrank

package training

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/skyrank/internal/models"
)

type mockSource struct {
	mu        sync.Mutex
	bookings  []models.Booking
	err       error
	block     chan struct{}
	lastSince time.Time
}

func (m *mockSource) AllConfirmedBookings(ctx context.Context, since time.Time) ([]models.Booking, error) {
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastSince = since
	if m.err != nil {
		return nil, m.err
	}
	return m.bookings, nil
}

// sampleBookings returns n confirmed bookings spread over four travelers
// with a few airlines and a spread of prices.
func sampleBookings(n int) []models.Booking {
	airlines := []string{"Air France", "British Airways", "Lufthansa", "KLM"}
	base := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	out := make([]models.Booking, n)
	for i := range out {
		out[i] = models.Booking{
			ID:            fmt.Sprintf("b%02d", i),
			TravelerID:    fmt.Sprintf("t%d", i%4),
			Airline:       airlines[(i/4+i)%len(airlines)],
			Price:         float64(150 + (i*37)%400),
			Currency:      "EUR",
			DepartureDate: base.AddDate(0, 0, i*3),
			DepartureTime: fmt.Sprintf("%02d:15", 6+(i*5)%16),
			DurationHours: 1.5 + float64(i%5),
			Direct:        i%3 != 0,
			State:         models.BookingStateConfirmed,
			CreatedAt:     base.AddDate(0, 0, -i),
		}
	}
	return out
}
