package api

import (
	"time"

	"github.com/freightworks/stowage/internal/shell/allocator"
)

// =============================================================================
// Request Types
// =============================================================================

// RecommendationRequest is the request body for a shipment recommendation.
type RecommendationRequest struct {
	Origin        string  `json:"origin"`
	Destination   string  `json:"destination"`
	DepartureDate string  `json:"departure_date"` // calendar date, "2006-01-02"
	Volume        float64 `json:"volume"`
}

// CreateBookingRequest is the request body for reserving capacity.
type CreateBookingRequest struct {
	ContainerID string  `json:"container_id"`
	Volume      float64 `json:"volume"`
}

// CreateContainerRequest is the request body for registering a container.
type CreateContainerRequest struct {
	Origin        string  `json:"origin"`
	Destination   string  `json:"destination"`
	DepartureDate string  `json:"departure_date"` // calendar date, "2006-01-02"
	TotalCapacity float64 `json:"total_capacity"`
	Cost          float64 `json:"cost"`
}

// =============================================================================
// Response Types
// =============================================================================

// ContainerResponse is the response for container operations.
type ContainerResponse struct {
	ID                string    `json:"id"`
	Origin            string    `json:"origin"`
	Destination       string    `json:"destination"`
	DepartureDate     string    `json:"departure_date"`
	TotalCapacity     float64   `json:"total_capacity"`
	BookedCapacity    float64   `json:"booked_capacity"`
	AvailableCapacity float64   `json:"available_capacity"`
	Cost              float64   `json:"cost"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// BookingResponse is the response for booking operations.
type BookingResponse struct {
	ID          string    `json:"id"`
	ContainerID string    `json:"container_id"`
	Volume      float64   `json:"volume"`
	BookedAt    time.Time `json:"booked_at"`
}

// RecommendationsResponse wraps a ranked recommendation list.
type RecommendationsResponse struct {
	Recommendations []allocator.Recommendation `json:"recommendations"`
}

// BookingListResponse wraps a booking list.
type BookingListResponse struct {
	Bookings []BookingResponse `json:"bookings"`
	Count    int               `json:"count"`
}

// ContainerListResponse wraps a container list.
type ContainerListResponse struct {
	Containers []ContainerResponse `json:"containers"`
	Count      int                 `json:"count"`
}

// DashboardResponse wraps the provider utilization dashboard.
type DashboardResponse struct {
	Containers []allocator.DashboardEntry `json:"containers"`
	Count      int                        `json:"count"`
}

// HealthResponse is the response for health checks.
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse is the response for readiness checks.
type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
