// Skyrank - Personalized Flight Offer Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skyrank

package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/skyrank/internal/models"
)

// setupTestDB opens a private in-memory database.
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(&Config{Path: ":memory:", Threads: 1}, zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestNew_AppliesMigrationsOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "skyrank.duckdb")
	cfg := &Config{Path: path, MaxMemory: "256MB", Threads: 1}

	db, err := New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	version, err := db.GetCurrentSchemaVersion(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if version != len(migrations) {
		t.Errorf("schema version = %d, want %d", version, len(migrations))
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	db, err = New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer db.Close()
	version, _ = db.GetCurrentSchemaVersion(context.Background())
	if version != len(migrations) {
		t.Errorf("schema version after reopen = %d", version)
	}
}

func TestNew_RequiresPath(t *testing.T) {
	if _, err := New(&Config{}, zerolog.Nop()); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestConnectionString(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"memory", Config{Path: ":memory:", Threads: 2}, "?threads=2&autoinstall_known_extensions=false&autoload_known_extensions=false"},
		{"file with memory cap", Config{Path: "/data/x.duckdb", Threads: 4, MaxMemory: "1GB"}, "/data/x.duckdb?threads=4&autoinstall_known_extensions=false&autoload_known_extensions=false&max_memory=1GB"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := connectionString(&tt.cfg); got != tt.want {
				t.Errorf("connectionString() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsTransactionConflict(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errString("TransactionContext Error: Transaction conflict: cannot update"), true},
		{errString("Conflict on update"), true},
		{errString("syntax error"), false},
	}
	for _, tt := range tests {
		if got := isTransactionConflict(tt.err); got != tt.want {
			t.Errorf("isTransactionConflict(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

type errString string

func (e errString) Error() string { return string(e) }

func TestGetRecordCounts(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	seedBookings(t, db)

	counts, err := db.GetRecordCounts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counts["travelers"] != 3 || counts["bookings"] != 6 || counts["model_artifacts"] != 0 {
		t.Errorf("counts = %v", counts)
	}
}

var seedTime = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func seedBookings(t *testing.T, db *DB) {
	t.Helper()
	ctx := context.Background()
	for _, tr := range []models.Traveler{
		{ID: "t1", Email: "ana@example.com"},
		{ID: "t2", Email: "ANA@example.com"},
		{ID: "t3", Email: "bo@example.com"},
	} {
		if err := db.UpsertTraveler(ctx, &tr); err != nil {
			t.Fatal(err)
		}
	}

	booking := func(id, traveler, airline, state string, daysAgo int) models.Booking {
		return models.Booking{
			ID: id, TravelerID: traveler, Airline: airline, Price: 250, Currency: "EUR",
			DepartureDate: seedTime.AddDate(0, 1, 0), DepartureTime: "08:30", DurationHours: 2,
			Direct: true, State: state, CreatedAt: seedTime.AddDate(0, 0, -daysAgo),
		}
	}
	n, err := db.UpsertBookings(ctx, []models.Booking{
		booking("b1", "t1", "AF", models.BookingStateConfirmed, 30),
		booking("b2", "t1", "BA", models.BookingStateConfirmed, 10),
		booking("b3", "t2", "AF", models.BookingStateConfirmed, 5),
		booking("b4", "t2", "KL", models.BookingStateDraft, 1),
		booking("b5", "t3", "LH", models.BookingStateConfirmed, 400),
		booking("b6", "t3", "LH", models.BookingStateCancelled, 2),
	})
	if err != nil || n != 6 {
		t.Fatalf("UpsertBookings() = %d, %v", n, err)
	}
}

func TestTravelerIDsByEmail(t *testing.T) {
	db := setupTestDB(t)
	seedBookings(t, db)

	tests := []struct {
		email string
		want  []string
	}{
		{"ana@example.com", []string{"t1", "t2"}},
		{"  Ana@Example.com ", []string{"t1", "t2"}},
		{"bo@example.com", []string{"t3"}},
		{"nobody@example.com", nil},
		{"", nil},
	}
	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			got, err := db.TravelerIDsByEmail(context.Background(), tt.email)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestConfirmedBookings(t *testing.T) {
	db := setupTestDB(t)
	seedBookings(t, db)
	ctx := context.Background()

	tests := []struct {
		name  string
		ids   []string
		since time.Time
		limit int
		want  []string
	}{
		{"merged accounts newest first", []string{"t1", "t2"}, time.Time{}, 0, []string{"b3", "b2", "b1"}},
		{"limit", []string{"t1", "t2"}, time.Time{}, 2, []string{"b3", "b2"}},
		{"since", []string{"t1"}, seedTime.AddDate(0, 0, -20), 0, []string{"b2"}},
		{"cancelled excluded", []string{"t3"}, time.Time{}, 0, []string{"b5"}},
		{"no ids", nil, time.Time{}, 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.ConfirmedBookings(ctx, tt.ids, tt.since, tt.limit)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d bookings, want %d", len(got), len(tt.want))
			}
			for i, b := range got {
				if b.ID != tt.want[i] {
					t.Errorf("booking %d = %s, want %s", i, b.ID, tt.want[i])
				}
			}
		})
	}

	got, _ := db.ConfirmedBookings(ctx, []string{"t1"}, time.Time{}, 1)
	b := got[0]
	if b.Airline != "BA" || b.Currency != "EUR" || b.DepartureTime != "08:30" || !b.Direct || b.FlightNumber != "" {
		t.Errorf("booking fields not round-tripped: %+v", b)
	}
}

func TestAllConfirmedBookings(t *testing.T) {
	db := setupTestDB(t)
	seedBookings(t, db)
	ctx := context.Background()

	all, err := db.AllConfirmedBookings(ctx, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 4 || all[0].ID != "b5" {
		t.Errorf("AllConfirmedBookings() = %d rows, first %v", len(all), all)
	}

	recent, _ := db.AllConfirmedBookings(ctx, seedTime.AddDate(-1, 0, 0))
	if len(recent) != 3 {
		t.Errorf("lookback rows = %d, want 3", len(recent))
	}
}

func TestUpsertBookings_UpdatesState(t *testing.T) {
	db := setupTestDB(t)
	seedBookings(t, db)
	ctx := context.Background()

	cancelled := models.Booking{
		ID: "b2", TravelerID: "t1", Airline: "BA", Price: 250,
		DepartureDate: seedTime, State: models.BookingStateCancelled,
	}
	if _, err := db.UpsertBookings(ctx, []models.Booking{cancelled}); err != nil {
		t.Fatal(err)
	}
	got, _ := db.ConfirmedBookings(ctx, []string{"t1"}, time.Time{}, 0)
	if len(got) != 1 || got[0].ID != "b1" {
		t.Errorf("after cancellation got %v", got)
	}

	if _, err := db.UpsertBookings(ctx, []models.Booking{{ID: "x"}}); err == nil {
		t.Error("expected error for booking without traveler")
	}
}

func TestRecentTravelerIDs(t *testing.T) {
	db := setupTestDB(t)
	seedBookings(t, db)

	ids, err := db.RecentTravelerIDs(context.Background(), seedTime.AddDate(0, 0, -15))
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 || ids[0] != "t1" || ids[1] != "t2" {
		t.Errorf("RecentTravelerIDs() = %v, want [t1 t2]", ids)
	}
}
