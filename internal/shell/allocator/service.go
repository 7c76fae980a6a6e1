// Package allocator provides the allocation service for container selection
// and reservation with I/O. This is part of the Imperative Shell - it handles
// I/O and calls the pure ranking algorithm.
package allocator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/freightworks/stowage/internal/core/domain"
	"github.com/freightworks/stowage/internal/core/features"
	"github.com/freightworks/stowage/internal/core/ranking"
	"github.com/freightworks/stowage/internal/shell/events"
	"github.com/freightworks/stowage/internal/shell/oracle"
	"github.com/freightworks/stowage/internal/shell/store"
)

// =============================================================================
// Allocation Service
// =============================================================================

// Service provides container recommendation and reservation with I/O.
// It loads feasible containers from the store, scores them with the
// reliability oracle and the pure ranking algorithm, and delegates
// reservations to the store's atomic transaction.
type Service struct {
	store     store.Store
	oracle    oracle.Oracle
	extractor features.Extractor
	publisher events.Publisher
	logger    *slog.Logger
}

// NewService creates a new allocation service.
// publisher may be nil when event publishing is disabled.
func NewService(s store.Store, o oracle.Oracle, e features.Extractor, p events.Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if p == nil {
		p = events.NewNoOpPublisher()
	}
	return &Service{
		store:     s,
		oracle:    o,
		extractor: e,
		publisher: p,
		logger:    logger,
	}
}

// =============================================================================
// Recommendation
// =============================================================================

// Recommendation is one ranked container offered for a shipment.
type Recommendation struct {
	ContainerID       string  `json:"container_id"`
	Origin            string  `json:"origin"`
	Destination       string  `json:"destination"`
	DepartureDate     string  `json:"departure_date"`
	AvailableCapacity float64 `json:"available_capacity"`
	ReliabilityScore  float64 `json:"reliability_score"`
	Cost              float64 `json:"cost"`
	FinalScore        float64 `json:"final_score"`
}

// Recommend returns feasible containers for the shipment, ranked best first.
// An empty result means no container can carry the shipment; that is a valid
// answer, not an error. Any oracle failure faults the whole recommendation so
// a partial candidate list is never returned.
func (s *Service) Recommend(ctx context.Context, req domain.ShipmentRequest) ([]Recommendation, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	feasible, err := s.store.FindFeasible(ctx, store.FeasibilityQuery{
		Origin:       req.Origin,
		Destination:  req.Destination,
		NotBefore:    req.DepartureDate,
		MinAvailable: req.Volume,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find feasible containers: %w", err)
	}

	candidates := make([]ranking.Candidate, 0, len(feasible))
	for _, c := range feasible {
		reliability, err := s.oracle.Predict(s.extractor.Extract(c))
		if err != nil {
			return nil, fmt.Errorf("reliability prediction failed for container %s: %w", c.ID, err)
		}
		candidates = append(candidates, ranking.Candidate{
			Container:   c,
			Reliability: reliability,
		})
	}

	ranked := ranking.Rank(candidates)

	s.logger.Debug("recommendation computed",
		"origin", req.Origin,
		"destination", req.Destination,
		"volume", req.Volume,
		"candidates", len(ranked),
		"oracle_version", s.oracle.Version(),
	)

	recommendations := make([]Recommendation, 0, len(ranked))
	for _, r := range ranked {
		recommendations = append(recommendations, Recommendation{
			ContainerID:       r.Container.ID,
			Origin:            r.Container.Origin,
			Destination:       r.Container.Destination,
			DepartureDate:     r.Container.DepartureDate.Format("2006-01-02"),
			AvailableCapacity: r.Container.Available(),
			ReliabilityScore:  r.Reliability,
			Cost:              r.Container.Cost,
			FinalScore:        r.FinalScore,
		})
	}
	return recommendations, nil
}

// =============================================================================
// Reservation
// =============================================================================

// Reserve books volume on a container. The store performs the atomic
// capacity check and booking insert; this layer only adds event publishing,
// which never affects the outcome of the reservation itself.
func (s *Service) Reserve(ctx context.Context, containerID string, volume float64) (*domain.Booking, error) {
	booking, err := s.store.Reserve(ctx, containerID, volume)
	if err != nil {
		return nil, err
	}

	s.logger.Info("booking created",
		"booking_id", booking.ID,
		"container_id", booking.ContainerID,
		"volume", booking.Volume,
	)

	if err := s.publisher.PublishBookingCreated(ctx, events.NewBookingCreatedEvent(booking)); err != nil {
		// The booking is already committed; a lost event is recoverable
		// downstream, a lost booking is not.
		s.logger.Error("failed to publish booking event",
			"booking_id", booking.ID,
			"error", err,
		)
	}

	return booking, nil
}

// ListBookings returns all bookings in creation order.
func (s *Service) ListBookings(ctx context.Context, opts store.ListOptions) ([]domain.Booking, error) {
	return s.store.ListBookings(ctx, opts)
}

// =============================================================================
// Provider Dashboard
// =============================================================================

// DashboardEntry summarizes the utilization of one container.
type DashboardEntry struct {
	ContainerID        string  `json:"container_id"`
	Route              string  `json:"route"`
	DepartureDate      string  `json:"departure_date"`
	TotalCapacity      float64 `json:"total_capacity"`
	BookedCapacity     float64 `json:"booked_capacity"`
	AvailableCapacity  float64 `json:"available_capacity"`
	UtilizationPercent float64 `json:"utilization_percent"`
	Cost               float64 `json:"cost"`
}

// Dashboard returns a utilization summary for every container.
func (s *Service) Dashboard(ctx context.Context, opts store.ListOptions) ([]DashboardEntry, error) {
	containers, err := s.store.ListContainers(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	entries := make([]DashboardEntry, 0, len(containers))
	for _, c := range containers {
		entries = append(entries, DashboardEntry{
			ContainerID:        c.ID,
			Route:              c.Origin + " → " + c.Destination,
			DepartureDate:      c.DepartureDate.Format("2006-01-02"),
			TotalCapacity:      c.TotalCapacity,
			BookedCapacity:     c.BookedCapacity,
			AvailableCapacity:  c.Available(),
			UtilizationPercent: c.Utilization(),
			Cost:               c.Cost,
		})
	}
	return entries, nil
}
