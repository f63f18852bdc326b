// Skyrank - Personalized Flight Offer Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skyrank

package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/skyrank/internal/models"
)

const bookingColumns = `id, traveler_id, airline, flight_number, price, currency,
	departure_date, departure_time, duration_hours, direct, state, created_at`

// UpsertTraveler inserts a traveler or updates its email and name.
func (db *DB) UpsertTraveler(ctx context.Context, t *models.Traveler) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if t.ID == "" {
		return fmt.Errorf("traveler id is required")
	}
	createdAt := t.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	start := time.Now()
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO travelers (id, email, name, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET email = excluded.email, name = excluded.name`,
		t.ID, nullString(t.Email), nullString(t.Name), createdAt)
	observe("upsert", "travelers", start, err)
	if err != nil {
		return fmt.Errorf("failed to upsert traveler %s: %w", t.ID, err)
	}
	return nil
}

// UpsertBookings writes bookings in one transaction. Existing bookings are
// updated in place, which is how state changes such as cancellations reach
// the mirror.
func (db *DB) UpsertBookings(ctx context.Context, bookings []models.Booking) (int, error) {
	if len(bookings) == 0 {
		return 0, nil
	}
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO bookings (`+bookingColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				airline = excluded.airline,
				flight_number = excluded.flight_number,
				price = excluded.price,
				currency = excluded.currency,
				departure_date = excluded.departure_date,
				departure_time = excluded.departure_time,
				duration_hours = excluded.duration_hours,
				direct = excluded.direct,
				state = excluded.state`)
		if err != nil {
			return fmt.Errorf("prepare booking upsert: %w", err)
		}
		defer closeWithLog(stmt, db.logger, "booking statement")

		for i := range bookings {
			b := &bookings[i]
			if b.ID == "" || b.TravelerID == "" {
				return fmt.Errorf("booking %d: id and traveler_id are required", i)
			}
			createdAt := b.CreatedAt
			if createdAt.IsZero() {
				createdAt = time.Now().UTC()
			}
			departureTime := b.DepartureTime
			if departureTime == "" {
				departureTime = "12:00"
			}
			if _, err := stmt.ExecContext(ctx,
				b.ID, b.TravelerID, b.Airline, nullString(b.FlightNumber), b.Price, nullString(b.Currency),
				b.DepartureDate, departureTime, b.DurationHours, b.Direct, b.State, createdAt,
			); err != nil {
				return fmt.Errorf("upsert booking %s: %w", b.ID, err)
			}
		}
		return nil
	})
	observe("upsert", "bookings", start, err)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert bookings: %w", err)
	}
	return len(bookings), nil
}

// TravelerIDsByEmail returns the ids of every account registered with
// email, compared case-insensitively.
func (db *DB) TravelerIDsByEmail(ctx context.Context, email string) ([]string, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	email = strings.TrimSpace(email)
	if email == "" {
		return nil, nil
	}

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id FROM travelers WHERE lower(email) = lower(?) ORDER BY id`, email)
	if err != nil {
		observe("select", "travelers", start, err)
		return nil, fmt.Errorf("failed to query travelers by email: %w", err)
	}
	defer closeWithLog(rows, db.logger, "traveler rows")

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan traveler id: %w", err)
		}
		ids = append(ids, id)
	}
	err = rows.Err()
	observe("select", "travelers", start, err)
	return ids, err
}

// ConfirmedBookings returns confirmed bookings of the given travelers
// created at or after since, newest first, at most limit rows. A zero
// since or non-positive limit disables that bound.
func (db *DB) ConfirmedBookings(ctx context.Context, travelerIDs []string, since time.Time, limit int) ([]models.Booking, error) {
	if len(travelerIDs) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(travelerIDs)), ", ")
	args := make([]any, 0, len(travelerIDs)+3)
	args = append(args, models.BookingStateConfirmed)
	for _, id := range travelerIDs {
		args = append(args, id)
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings
		WHERE state = ? AND traveler_id IN (` + placeholders + `)`
	if !since.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, since.UTC())
	}
	query += ` ORDER BY created_at DESC, id`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return db.queryBookings(ctx, query, args...)
}

// AllConfirmedBookings returns every confirmed booking created at or after
// since, oldest first.
func (db *DB) AllConfirmedBookings(ctx context.Context, since time.Time) ([]models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE state = ?`
	args := []any{models.BookingStateConfirmed}
	if !since.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, since.UTC())
	}
	query += ` ORDER BY created_at, id`
	return db.queryBookings(ctx, query, args...)
}

// RecentTravelerIDs returns the travelers with a confirmed booking created
// at or after since.
func (db *DB) RecentTravelerIDs(ctx context.Context, since time.Time) ([]string, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, `
		SELECT DISTINCT traveler_id FROM bookings
		WHERE state = ? AND created_at >= ?
		ORDER BY traveler_id`,
		models.BookingStateConfirmed, since.UTC())
	if err != nil {
		observe("select", "bookings", start, err)
		return nil, fmt.Errorf("failed to query recent travelers: %w", err)
	}
	defer closeWithLog(rows, db.logger, "traveler rows")

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan traveler id: %w", err)
		}
		ids = append(ids, id)
	}
	err = rows.Err()
	observe("select", "bookings", start, err)
	return ids, err
}

func (db *DB) queryBookings(ctx context.Context, query string, args ...any) ([]models.Booking, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		observe("select", "bookings", start, err)
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer closeWithLog(rows, db.logger, "booking rows")

	var out []models.Booking
	for rows.Next() {
		var b models.Booking
		var flightNumber, currency sql.NullString
		if err := rows.Scan(
			&b.ID, &b.TravelerID, &b.Airline, &flightNumber, &b.Price, &currency,
			&b.DepartureDate, &b.DepartureTime, &b.DurationHours, &b.Direct, &b.State, &b.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		b.FlightNumber = flightNumber.String
		b.Currency = currency.String
		out = append(out, b)
	}
	err = rows.Err()
	observe("select", "bookings", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to iterate bookings: %w", err)
	}
	return out, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
