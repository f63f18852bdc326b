// Skyrank - Personalized Flight Offer Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skyrank

package bookings

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tomtom215/skyrank/internal/metrics"
	"github.com/tomtom215/skyrank/internal/models"
)

// travelerRow maps the booking system's travelers table.
type travelerRow struct {
	ID        string    `gorm:"column:id;primaryKey"`
	Email     string    `gorm:"column:email;index"`
	Name      string    `gorm:"column:name"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (travelerRow) TableName() string { return "travelers" }

// bookingRow maps the booking system's bookings table.
type bookingRow struct {
	ID            string    `gorm:"column:id;primaryKey"`
	TravelerID    string    `gorm:"column:traveler_id;not null;index:idx_bookings_traveler_state"`
	Airline       string    `gorm:"column:airline"`
	FlightNumber  string    `gorm:"column:flight_number"`
	Price         float64   `gorm:"column:price"`
	Currency      string    `gorm:"column:currency"`
	DepartureDate time.Time `gorm:"column:departure_date;type:date"`
	DepartureTime string    `gorm:"column:departure_time"`
	DurationHours float64   `gorm:"column:duration_hours"`
	Direct        bool      `gorm:"column:direct"`
	State         string    `gorm:"column:state;not null;index:idx_bookings_traveler_state"`
	CreatedAt     time.Time `gorm:"column:created_at;index"`
}

func (bookingRow) TableName() string { return "bookings" }

func (r *bookingRow) toModel() models.Booking {
	return models.Booking{
		ID:            r.ID,
		TravelerID:    r.TravelerID,
		Airline:       r.Airline,
		FlightNumber:  r.FlightNumber,
		Price:         r.Price,
		Currency:      r.Currency,
		DepartureDate: r.DepartureDate,
		DepartureTime: r.DepartureTime,
		DurationHours: r.DurationHours,
		Direct:        r.Direct,
		State:         r.State,
		CreatedAt:     r.CreatedAt,
	}
}

func bookingRowFrom(b *models.Booking) bookingRow {
	return bookingRow{
		ID:            b.ID,
		TravelerID:    b.TravelerID,
		Airline:       b.Airline,
		FlightNumber:  b.FlightNumber,
		Price:         b.Price,
		Currency:      b.Currency,
		DepartureDate: b.DepartureDate,
		DepartureTime: b.DepartureTime,
		DurationHours: b.DurationHours,
		Direct:        b.Direct,
		State:         b.State,
		CreatedAt:     b.CreatedAt,
	}
}

// PostgresSource reads booking history from PostgreSQL.
type PostgresSource struct {
	db      *gorm.DB
	timeout time.Duration
}

var _ Source = (*PostgresSource)(nil)

// OpenPostgres connects to the booking database.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func OpenPostgres(cfg Config, logger zerolog.Logger) (*PostgresSource, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to booking database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access booking database pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(min(cfg.MaxOpenConns, 2))
	sqlDB.SetConnMaxLifetime(time.Hour)

	logger.Info().Str("component", "bookings").Msg("Connected to booking database")
	return NewPostgresSource(db, cfg.QueryTimeout), nil
}

// NewPostgresSource wraps an open gorm connection.
func NewPostgresSource(db *gorm.DB, timeout time.Duration) *PostgresSource {
	return &PostgresSource{db: db, timeout: timeout}
}

// AutoMigrate creates the travelers and bookings tables. The booking
// system owns its schema in production; this serves tests and local setups.
func (s *PostgresSource) AutoMigrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&travelerRow{}, &bookingRow{})
}

// Ping checks the connection.
func (s *PostgresSource) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the connection pool.
func (s *PostgresSource) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *PostgresSource) query(ctx context.Context) (*gorm.DB, context.CancelFunc) {
	if s.timeout <= 0 {
		return s.db.WithContext(ctx), func() {}
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	return s.db.WithContext(ctx), cancel
}

// UpsertTraveler inserts or updates a traveler.
func (s *PostgresSource) UpsertTraveler(ctx context.Context, t *models.Traveler) error {
	db, cancel := s.query(ctx)
	defer cancel()

	row := travelerRow{ID: t.ID, Email: t.Email, Name: t.Name, CreatedAt: t.CreatedAt}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "name"}),
	}).Create(&row).Error
}

// UpsertBookings inserts or updates bookings in one statement.
func (s *PostgresSource) UpsertBookings(ctx context.Context, bookings []models.Booking) error {
	if len(bookings) == 0 {
		return nil
	}
	db, cancel := s.query(ctx)
	defer cancel()

	rows := make([]bookingRow, len(bookings))
	for i := range bookings {
		rows[i] = bookingRowFrom(&bookings[i])
		if rows[i].CreatedAt.IsZero() {
			rows[i].CreatedAt = time.Now().UTC()
		}
	}
	return db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"airline", "flight_number", "price", "currency", "departure_date",
			"departure_time", "duration_hours", "direct", "state",
		}),
	}).Create(&rows).Error
}

// TravelerIDsByEmail implements Source.
func (s *PostgresSource) TravelerIDsByEmail(ctx context.Context, email string) ([]string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, nil
	}
	db, cancel := s.query(ctx)
	defer cancel()

	start := time.Now()
	var ids []string
	err := db.Model(&travelerRow{}).
		Where("lower(email) = lower(?)", email).
		Order("id").
		Pluck("id", &ids).Error
	metrics.RecordDBQuery("select", "pg_travelers", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query travelers by email: %w", err)
	}
	return ids, nil
}

// ConfirmedBookings implements Source.
func (s *PostgresSource) ConfirmedBookings(ctx context.Context, travelerIDs []string, since time.Time, limit int) ([]models.Booking, error) {
	if len(travelerIDs) == 0 {
		return nil, nil
	}
	db, cancel := s.query(ctx)
	defer cancel()

	q := db.Where("state = ? AND traveler_id IN ?", models.BookingStateConfirmed, travelerIDs)
	if !since.IsZero() {
		q = q.Where("created_at >= ?", since.UTC())
	}
	q = q.Order("created_at DESC").Order("id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	return s.find(q)
}

// AllConfirmedBookings implements Source.
func (s *PostgresSource) AllConfirmedBookings(ctx context.Context, since time.Time) ([]models.Booking, error) {
	db, cancel := s.query(ctx)
	defer cancel()

	q := db.Where("state = ?", models.BookingStateConfirmed)
	if !since.IsZero() {
		q = q.Where("created_at >= ?", since.UTC())
	}
	return s.find(q.Order("created_at").Order("id"))
}

// RecentTravelerIDs implements Source.
func (s *PostgresSource) RecentTravelerIDs(ctx context.Context, since time.Time) ([]string, error) {
	db, cancel := s.query(ctx)
	defer cancel()

	start := time.Now()
	var ids []string
	err := db.Model(&bookingRow{}).
		Distinct("traveler_id").
		Where("state = ? AND created_at >= ?", models.BookingStateConfirmed, since.UTC()).
		Order("traveler_id").
		Pluck("traveler_id", &ids).Error
	metrics.RecordDBQuery("select", "pg_bookings", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent travelers: %w", err)
	}
	return ids, nil
}

func (s *PostgresSource) find(q *gorm.DB) ([]models.Booking, error) {
	start := time.Now()
	var rows []bookingRow
	err := q.Find(&rows).Error
	metrics.RecordDBQuery("select", "pg_bookings", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	out := make([]models.Booking, len(rows))
	for i := range rows {
		out[i] = rows[i].toModel()
	}
	return out, nil
}
