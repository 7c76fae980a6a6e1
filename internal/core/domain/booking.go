package domain

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Booking
// =============================================================================

// Booking represents one committed reservation against a container. Bookings
// are created exactly once by the reservation transaction, in the same atomic
// unit that increments the parent container's booked capacity. They are never
// updated or deleted afterwards.
type Booking struct {
	ID          string    `json:"id"`
	ContainerID string    `json:"container_id"`
	Volume      float64   `json:"volume"`
	BookedAt    time.Time `json:"booked_at"`
}

// NewBooking creates a booking for the given container and volume.
// Returns an error if the volume is not positive.
func NewBooking(containerID string, volume float64) (*Booking, error) {
	if volume <= 0 {
		return nil, ErrVolumeNotPositive
	}
	return &Booking{
		ID:          "bkg_" + uuid.New().String()[:8],
		ContainerID: containerID,
		Volume:      volume,
		BookedAt:    time.Now().UTC(),
	}, nil
}
