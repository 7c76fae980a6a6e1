// Package domain contains the core domain types and validation logic.
// This is part of the Functional Core - all functions are pure with no I/O.
package domain

import (
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// Route validation errors
	ErrOriginRequired      = errors.New("origin is required")
	ErrDestinationRequired = errors.New("destination is required")
	ErrDepartureRequired   = errors.New("departure date is required")

	// Capacity validation errors
	ErrCapacityNotPositive = errors.New("total capacity must be positive")
	ErrBookedNegative      = errors.New("booked capacity cannot be negative")
	ErrBookedExceedsTotal  = errors.New("booked capacity cannot exceed total capacity")

	// Cost validation errors
	ErrCostNegative = errors.New("cost cannot be negative")

	// Volume validation errors
	ErrVolumeNotPositive = errors.New("volume must be positive")
)

// =============================================================================
// Container
// =============================================================================

// Container represents a scheduled freight slot with a fixed volume capacity.
// TotalCapacity and Cost are immutable after creation; BookedCapacity is
// mutated only by the store's reservation transaction.
type Container struct {
	ID             string    `json:"id"`
	Origin         string    `json:"origin"`
	Destination    string    `json:"destination"`
	DepartureDate  time.Time `json:"departure_date"`
	TotalCapacity  float64   `json:"total_capacity"`
	BookedCapacity float64   `json:"booked_capacity"`
	Cost           float64   `json:"cost"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewContainer creates a container with the given route, departure date,
// capacity and cost. Returns an error if validation fails.
func NewContainer(origin, destination string, departure time.Time, totalCapacity, cost float64) (*Container, error) {
	if strings.TrimSpace(origin) == "" {
		return nil, ErrOriginRequired
	}
	if strings.TrimSpace(destination) == "" {
		return nil, ErrDestinationRequired
	}
	if departure.IsZero() {
		return nil, ErrDepartureRequired
	}
	if totalCapacity <= 0 {
		return nil, ErrCapacityNotPositive
	}
	if cost < 0 {
		return nil, ErrCostNegative
	}

	now := time.Now().UTC()
	return &Container{
		ID:             "cnt_" + uuid.New().String()[:8],
		Origin:         origin,
		Destination:    destination,
		DepartureDate:  departure.UTC(),
		TotalCapacity:  totalCapacity,
		BookedCapacity: 0,
		Cost:           cost,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// Available returns the capacity still open for reservation.
func (c *Container) Available() float64 {
	return c.TotalCapacity - c.BookedCapacity
}

// Utilization returns the booked share of capacity as a percentage,
// rounded to two decimal places.
func (c *Container) Utilization() float64 {
	if c.TotalCapacity <= 0 {
		return 0
	}
	return round2(c.BookedCapacity / c.TotalCapacity * 100)
}

// Validate checks the container invariant: 0 <= booked <= total.
func (c *Container) Validate() error {
	if c.TotalCapacity <= 0 {
		return ErrCapacityNotPositive
	}
	if c.BookedCapacity < 0 {
		return ErrBookedNegative
	}
	if c.BookedCapacity > c.TotalCapacity {
		return ErrBookedExceedsTotal
	}
	return nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
