// Skyrank - Personalized Flight Offer Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skyrank

package profile

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/skyrank/internal/models"
)

// mockSource is an in-memory BookingSource.
type mockSource struct {
	mu        sync.Mutex
	emails    map[string][]string
	bookings  map[string][]models.Booking
	err       error
	calls     int
	lastSince time.Time
	lastLimit int
}

func (m *mockSource) TravelerIDsByEmail(_ context.Context, email string) ([]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.emails[email], nil
}

func (m *mockSource) ConfirmedBookings(_ context.Context, ids []string, since time.Time, limit int) ([]models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.lastSince = since
	m.lastLimit = limit
	if m.err != nil {
		return nil, m.err
	}
	var out []models.Booking
	for _, id := range ids {
		out = append(out, m.bookings[id]...)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func newTestSource() *mockSource {
	return &mockSource{
		emails: map[string][]string{
			"ana@example.com": {"t1", "t2"},
		},
		bookings: map[string][]models.Booking{
			"t1": {booking("AF", 300, "2024-05-06", "09:00", 2, true)},
			"t2": {booking("BA", 500, "2024-04-01", "19:00", 6, false)},
			"t3": {booking("KL", 100, "2024-03-01", "07:00", 1, true)},
		},
	}
}

func TestBuilder_Build(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		subject  Subject
		wantIDs  []string
		wantN    int
		wantErr  error
		airlines []string
	}{
		{"traveler id only", Subject{TravelerID: "t3"}, []string{"t3"}, 1, nil, []string{"KL"}},
		{"email merges accounts", Subject{Email: "ana@example.com"}, []string{"t1", "t2"}, 2, nil, []string{"AF", "BA"}},
		{"id plus email deduplicates", Subject{TravelerID: "t2", Email: "ana@example.com"}, []string{"t2", "t1"}, 2, nil, []string{"BA", "AF"}},
		{"unknown email", Subject{Email: "nobody@example.com"}, nil, 0, ErrUnknownTraveler, nil},
		{"empty subject", Subject{}, nil, 0, ErrUnknownTraveler, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			b := NewBuilder(newTestSource(), nil, DefaultConfig(), zerolog.Nop())

			p, err := b.Build(context.Background(), tt.subject)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			if !reflect.DeepEqual(p.TravelerIDs, tt.wantIDs) {
				t.Errorf("TravelerIDs = %v, want %v", p.TravelerIDs, tt.wantIDs)
			}
			if p.BookingCount != tt.wantN {
				t.Errorf("BookingCount = %d, want %d", p.BookingCount, tt.wantN)
			}
			if !reflect.DeepEqual(p.PreferredAirlines, tt.airlines) {
				t.Errorf("PreferredAirlines = %v, want %v", p.PreferredAirlines, tt.airlines)
			}
		})
	}
}

func TestBuilder_WindowAndLimit(t *testing.T) {
	t.Parallel()

	src := newTestSource()
	b := NewBuilder(src, nil, Config{Lookback: 30 * 24 * time.Hour, MaxBookings: 7}, zerolog.Nop())
	now := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }

	if _, err := b.Build(context.Background(), Subject{TravelerID: "t1"}); err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if want := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC); !src.lastSince.Equal(want) {
		t.Errorf("since = %v, want %v", src.lastSince, want)
	}
	if src.lastLimit != 7 {
		t.Errorf("limit = %d, want 7", src.lastLimit)
	}
}

func TestBuilder_SourceError(t *testing.T) {
	t.Parallel()

	src := newTestSource()
	src.err = errors.New("connection refused")
	b := NewBuilder(src, nil, DefaultConfig(), zerolog.Nop())

	if _, err := b.Build(context.Background(), Subject{TravelerID: "t1"}); err == nil {
		t.Fatal("expected error from failing source")
	}
}

func TestBuilder_UsesCache(t *testing.T) {
	t.Parallel()

	src := newTestSource()
	b := NewBuilder(src, NewMemoryCache(10), DefaultConfig(), zerolog.Nop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := b.Build(ctx, Subject{TravelerID: "t1"}); err != nil {
			t.Fatalf("Build() error = %v", err)
		}
	}
	if src.calls != 1 {
		t.Errorf("source calls = %d, want 1", src.calls)
	}

	if _, err := b.Refresh(ctx, "t1"); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if src.calls != 2 {
		t.Errorf("source calls after refresh = %d, want 2", src.calls)
	}
}

func TestMemoryCache_Expiry(t *testing.T) {
	t.Parallel()

	c := NewMemoryCache(2)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	c.Set(ctx, "a", &TravelerProfile{BookingCount: 1}, time.Minute)
	if p, ok := c.Get(ctx, "a"); !ok || p.BookingCount != 1 {
		t.Fatalf("Get(a) = %v, %v", p, ok)
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get(ctx, "a"); ok {
		t.Error("expected expired entry to miss")
	}

	c.Set(ctx, "b", &TravelerProfile{}, time.Minute)
	c.Set(ctx, "c", &TravelerProfile{}, time.Minute)
	if c.Len() > 2 {
		t.Errorf("Len() = %d, want at most 2", c.Len())
	}
}
