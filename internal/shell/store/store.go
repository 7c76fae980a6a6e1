package store

import (
	"context"
	"time"

	"github.com/freightworks/stowage/internal/core/domain"
)

// =============================================================================
// Store Interface
// =============================================================================

// Store defines the persistence interface for containers and bookings. It is
// the sole mutator of a container's booked capacity; Reserve is the only
// operation that writes it, and it does so atomically with the booking insert.
type Store interface {
	// Container operations
	CreateContainer(ctx context.Context, container *domain.Container) error
	GetContainer(ctx context.Context, id string) (*domain.Container, error)
	ListContainers(ctx context.Context, opts ListOptions) ([]domain.Container, error)

	// FindFeasible returns containers matching the route exactly, departing
	// on or after notBefore, with at least minAvailable capacity open.
	// A query that matches nothing yields an empty slice, not an error.
	FindFeasible(ctx context.Context, q FeasibilityQuery) ([]domain.Container, error)

	// Reserve atomically converts available capacity into a booking.
	// It returns ErrNotFound for an unknown container,
	// domain.ErrVolumeNotPositive for a non-positive volume, and
	// ErrInsufficientCapacity when the requested volume exceeds what is
	// available; the last is an expected business outcome, not a fault.
	Reserve(ctx context.Context, containerID string, volume float64) (*domain.Booking, error)

	// ListBookings returns bookings ordered by creation time ascending.
	ListBookings(ctx context.Context, opts ListOptions) ([]domain.Booking, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Close() error
}

// =============================================================================
// Queries and Options
// =============================================================================

// FeasibilityQuery selects containers able to carry a shipment.
type FeasibilityQuery struct {
	Origin       string
	Destination  string
	NotBefore    time.Time
	MinAvailable float64
}

// ListOptions defines pagination options.
type ListOptions struct {
	Limit  int
	Offset int
}

// DefaultListOptions returns default list options.
func DefaultListOptions() ListOptions {
	return ListOptions{
		Limit:  100,
		Offset: 0,
	}
}

// Normalize ensures list options have valid values.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = 100
	}
	if o.Limit > 1000 {
		o.Limit = 1000
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}
