package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/freightworks/stowage/internal/core/domain"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const dateLayout = "2006-01-02"

// =============================================================================
// SQLiteStore
// =============================================================================

// SQLiteStore implements Store using SQLite. Reservations rely on a
// single-row conditional update, so the no-oversell invariant holds for any
// interleaving of concurrent callers without cross-container coordination.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore creates a new SQLite store and runs migrations.
// Transactions are opened in immediate mode so concurrent reservations
// queue on the write lock instead of failing with a busy error.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite3", dsn+"?_foreign_keys=on&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to open database", ErrConnectionFailed)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to ping database", ErrConnectionFailed)
	}

	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", err.Error(), ErrMigrationFailed)
	}

	return &SQLiteStore{db: db}, nil
}

// runMigrations runs database migrations using embedded SQL files.
func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Ping verifies the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// =============================================================================
// Rows
// =============================================================================

// containerRow represents a container row in the database.
type containerRow struct {
	ID             string  `db:"id"`
	Origin         string  `db:"origin"`
	Destination    string  `db:"destination"`
	DepartureDate  string  `db:"departure_date"`
	TotalCapacity  float64 `db:"total_capacity"`
	BookedCapacity float64 `db:"booked_capacity"`
	Cost           float64 `db:"cost"`
	CreatedAt      string  `db:"created_at"`
	UpdatedAt      string  `db:"updated_at"`
}

func rowToContainer(row *containerRow) (*domain.Container, error) {
	departure, err := time.Parse(dateLayout, row.DepartureDate)
	if err != nil {
		return nil, fmt.Errorf("corrupt departure_date %q: %w", row.DepartureDate, err)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, row.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("corrupt created_at %q: %w", row.CreatedAt, err)
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, row.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("corrupt updated_at %q: %w", row.UpdatedAt, err)
	}

	return &domain.Container{
		ID:             row.ID,
		Origin:         row.Origin,
		Destination:    row.Destination,
		DepartureDate:  departure,
		TotalCapacity:  row.TotalCapacity,
		BookedCapacity: row.BookedCapacity,
		Cost:           row.Cost,
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
	}, nil
}

// bookingRow represents a booking row in the database.
type bookingRow struct {
	ID          string  `db:"id"`
	ContainerID string  `db:"container_id"`
	Volume      float64 `db:"volume"`
	BookedAt    string  `db:"booked_at"`
}

func rowToBooking(row *bookingRow) (*domain.Booking, error) {
	bookedAt, err := time.Parse(time.RFC3339Nano, row.BookedAt)
	if err != nil {
		return nil, fmt.Errorf("corrupt booked_at %q: %w", row.BookedAt, err)
	}

	return &domain.Booking{
		ID:          row.ID,
		ContainerID: row.ContainerID,
		Volume:      row.Volume,
		BookedAt:    bookedAt,
	}, nil
}

// =============================================================================
// Container Operations
// =============================================================================

// CreateContainer persists a new container.
func (s *SQLiteStore) CreateContainer(ctx context.Context, container *domain.Container) error {
	if err := container.Validate(); err != nil {
		return err
	}

	const q = `INSERT INTO containers
		(id, origin, destination, departure_date, total_capacity, booked_capacity, cost, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, q,
		container.ID,
		container.Origin,
		container.Destination,
		container.DepartureDate.Format(dateLayout),
		container.TotalCapacity,
		container.BookedCapacity,
		container.Cost,
		container.CreatedAt.Format(time.RFC3339Nano),
		container.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return NewStoreError("CreateContainer", "container", container.ID, "already exists", ErrDuplicateID)
		}
		return NewStoreError("CreateContainer", "container", container.ID, err.Error(), ErrTxFailed)
	}
	return nil
}

// GetContainer returns a container by ID.
func (s *SQLiteStore) GetContainer(ctx context.Context, id string) (*domain.Container, error) {
	const q = `SELECT id, origin, destination, departure_date, total_capacity, booked_capacity, cost, created_at, updated_at
		FROM containers WHERE id = ?`

	var row containerRow
	if err := s.db.GetContext(ctx, &row, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetContainer", "container", id, "not found", ErrNotFound)
		}
		return nil, NewStoreError("GetContainer", "container", id, err.Error(), ErrTxFailed)
	}

	container, err := rowToContainer(&row)
	if err != nil {
		return nil, NewStoreError("GetContainer", "container", id, err.Error(), ErrTxFailed)
	}
	return container, nil
}

// ListContainers returns containers ordered by creation.
func (s *SQLiteStore) ListContainers(ctx context.Context, opts ListOptions) ([]domain.Container, error) {
	opts = opts.Normalize()

	const q = `SELECT id, origin, destination, departure_date, total_capacity, booked_capacity, cost, created_at, updated_at
		FROM containers ORDER BY rowid ASC LIMIT ? OFFSET ?`

	var rows []containerRow
	if err := s.db.SelectContext(ctx, &rows, q, opts.Limit, opts.Offset); err != nil {
		return nil, NewStoreError("ListContainers", "container", "", err.Error(), ErrTxFailed)
	}

	containers := make([]domain.Container, 0, len(rows))
	for i := range rows {
		container, err := rowToContainer(&rows[i])
		if err != nil {
			return nil, NewStoreError("ListContainers", "container", rows[i].ID, err.Error(), ErrTxFailed)
		}
		containers = append(containers, *container)
	}
	return containers, nil
}

// FindFeasible returns containers matching the query. Ordering among the
// results is not significant at this layer; ranking happens above the store.
func (s *SQLiteStore) FindFeasible(ctx context.Context, q FeasibilityQuery) ([]domain.Container, error) {
	const query = `SELECT id, origin, destination, departure_date, total_capacity, booked_capacity, cost, created_at, updated_at
		FROM containers
		WHERE origin = ?
		  AND destination = ?
		  AND departure_date >= ?
		  AND (total_capacity - booked_capacity) >= ?
		ORDER BY departure_date ASC, rowid ASC`

	var rows []containerRow
	err := s.db.SelectContext(ctx, &rows, query,
		q.Origin,
		q.Destination,
		q.NotBefore.Format(dateLayout),
		q.MinAvailable,
	)
	if err != nil {
		return nil, NewStoreError("FindFeasible", "container", "", err.Error(), ErrTxFailed)
	}

	containers := make([]domain.Container, 0, len(rows))
	for i := range rows {
		container, err := rowToContainer(&rows[i])
		if err != nil {
			return nil, NewStoreError("FindFeasible", "container", rows[i].ID, err.Error(), ErrTxFailed)
		}
		containers = append(containers, *container)
	}
	return containers, nil
}

// =============================================================================
// Reservation Transaction
// =============================================================================

// Reserve converts available capacity into a booking in one atomic unit.
// The capacity check and increment are a single conditional UPDATE, so two
// reservations against the same container can never both pass validation
// against the same pre-increment snapshot. The booking insert commits in the
// same transaction; on any failure the transaction rolls back and no partial
// state survives.
func (s *SQLiteStore) Reserve(ctx context.Context, containerID string, volume float64) (*domain.Booking, error) {
	if volume <= 0 {
		return nil, domain.ErrVolumeNotPositive
	}

	// Unknown containers fail before the atomic unit is entered.
	var exists int
	if err := s.db.GetContext(ctx, &exists, `SELECT COUNT(1) FROM containers WHERE id = ?`, containerID); err != nil {
		return nil, NewStoreError("Reserve", "container", containerID, err.Error(), ErrTxFailed)
	}
	if exists == 0 {
		return nil, NewStoreError("Reserve", "container", containerID, "not found", ErrNotFound)
	}

	booking, err := domain.NewBooking(containerID, volume)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, NewStoreError("Reserve", "container", containerID, "failed to begin transaction", ErrTxFailed)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	const claim = `UPDATE containers
		SET booked_capacity = booked_capacity + ?, updated_at = ?
		WHERE id = ? AND booked_capacity + ? <= total_capacity`

	res, err := tx.ExecContext(ctx, claim,
		volume,
		booking.BookedAt.Format(time.RFC3339Nano),
		containerID,
		volume,
	)
	if err != nil {
		return nil, NewStoreError("Reserve", "container", containerID, err.Error(), ErrTxFailed)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, NewStoreError("Reserve", "container", containerID, err.Error(), ErrTxFailed)
	}
	if affected == 0 {
		// The conditional update matched nothing: the requested volume
		// exceeds what is currently available.
		return nil, NewStoreError("Reserve", "container", containerID, "insufficient capacity", ErrInsufficientCapacity)
	}

	const insert = `INSERT INTO bookings (id, container_id, volume, booked_at) VALUES (?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, insert,
		booking.ID,
		booking.ContainerID,
		booking.Volume,
		booking.BookedAt.Format(time.RFC3339Nano),
	); err != nil {
		return nil, NewStoreError("Reserve", "booking", booking.ID, err.Error(), ErrTxFailed)
	}

	if err := tx.Commit(); err != nil {
		return nil, NewStoreError("Reserve", "container", containerID, "failed to commit transaction", ErrTxFailed)
	}
	committed = true

	return booking, nil
}

// =============================================================================
// Booking Operations
// =============================================================================

// ListBookings returns all bookings in creation order.
func (s *SQLiteStore) ListBookings(ctx context.Context, opts ListOptions) ([]domain.Booking, error) {
	opts = opts.Normalize()

	const q = `SELECT id, container_id, volume, booked_at
		FROM bookings ORDER BY rowid ASC LIMIT ? OFFSET ?`

	var rows []bookingRow
	if err := s.db.SelectContext(ctx, &rows, q, opts.Limit, opts.Offset); err != nil {
		return nil, NewStoreError("ListBookings", "booking", "", err.Error(), ErrTxFailed)
	}

	bookings := make([]domain.Booking, 0, len(rows))
	for i := range rows {
		booking, err := rowToBooking(&rows[i])
		if err != nil {
			return nil, NewStoreError("ListBookings", "booking", rows[i].ID, err.Error(), ErrTxFailed)
		}
		bookings = append(bookings, *booking)
	}
	return bookings, nil
}

// =============================================================================
// Helpers
// =============================================================================

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
