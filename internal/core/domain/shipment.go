package domain

import (
	"strings"
	"time"
)

// =============================================================================
// Shipment Request
// =============================================================================

// ShipmentRequest describes a request for freight capacity on a route.
// All fields are required and the volume must be positive.
type ShipmentRequest struct {
	Origin        string    `json:"origin"`
	Destination   string    `json:"destination"`
	DepartureDate time.Time `json:"departure_date"`
	Volume        float64   `json:"volume"`
}

// Validate checks that all required fields are present and the volume is
// positive. It returns the first sentinel validation error encountered.
func (r ShipmentRequest) Validate() error {
	if strings.TrimSpace(r.Origin) == "" {
		return ErrOriginRequired
	}
	if strings.TrimSpace(r.Destination) == "" {
		return ErrDestinationRequired
	}
	if r.DepartureDate.IsZero() {
		return ErrDepartureRequired
	}
	if r.Volume <= 0 {
		return ErrVolumeNotPositive
	}
	return nil
}
