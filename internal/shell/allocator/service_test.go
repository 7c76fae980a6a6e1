package allocator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freightworks/stowage/internal/core/domain"
	"github.com/freightworks/stowage/internal/core/features"
	"github.com/freightworks/stowage/internal/shell/events"
	"github.com/freightworks/stowage/internal/shell/store"
)

// =============================================================================
// Stubs
// =============================================================================

type stubStore struct {
	containers  []domain.Container
	feasibleErr error
	reserveFn   func(containerID string, volume float64) (*domain.Booking, error)
	bookings    []domain.Booking
}

func (s *stubStore) CreateContainer(ctx context.Context, c *domain.Container) error { return nil }

func (s *stubStore) GetContainer(ctx context.Context, id string) (*domain.Container, error) {
	for i := range s.containers {
		if s.containers[i].ID == id {
			return &s.containers[i], nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *stubStore) ListContainers(ctx context.Context, opts store.ListOptions) ([]domain.Container, error) {
	return s.containers, nil
}

func (s *stubStore) FindFeasible(ctx context.Context, q store.FeasibilityQuery) ([]domain.Container, error) {
	if s.feasibleErr != nil {
		return nil, s.feasibleErr
	}
	matched := make([]domain.Container, 0)
	for _, c := range s.containers {
		if c.Origin == q.Origin && c.Destination == q.Destination &&
			!c.DepartureDate.Before(q.NotBefore) && c.Available() >= q.MinAvailable {
			matched = append(matched, c)
		}
	}
	return matched, nil
}

func (s *stubStore) Reserve(ctx context.Context, containerID string, volume float64) (*domain.Booking, error) {
	if s.reserveFn != nil {
		return s.reserveFn(containerID, volume)
	}
	return nil, store.ErrNotFound
}

func (s *stubStore) ListBookings(ctx context.Context, opts store.ListOptions) ([]domain.Booking, error) {
	return s.bookings, nil
}

func (s *stubStore) Ping(ctx context.Context) error { return nil }
func (s *stubStore) Close() error                   { return nil }

// stubOracle returns a fixed probability per container cost, or an error.
type stubOracle struct {
	probability float64
	err         error
}

func (o *stubOracle) Predict(v features.Vector) (float64, error) {
	if o.err != nil {
		return 0, o.err
	}
	return o.probability, nil
}

func (o *stubOracle) Version() string { return "stub" }

// recordingPublisher captures published events and optionally fails.
type recordingPublisher struct {
	published []events.BookingCreatedEvent
	err       error
}

func (p *recordingPublisher) PublishBookingCreated(ctx context.Context, e events.BookingCreatedEvent) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func testContainer(t *testing.T, origin, destination string, departure time.Time, total, booked, cost float64) domain.Container {
	t.Helper()
	c, err := domain.NewContainer(origin, destination, departure, total, cost)
	require.NoError(t, err)
	c.BookedCapacity = booked
	return *c
}

var departure = time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)

func newTestService(s store.Store, probability float64) *Service {
	return NewService(s, &stubOracle{probability: probability}, features.NewFixedExtractor(), nil, nil)
}

// =============================================================================
// Recommendation Tests
// =============================================================================

func TestRecommend_RanksByFinalScore(t *testing.T) {
	cheap := testContainer(t, "NLRTM", "SGSIN", departure, 100, 0, 500)
	pricey := testContainer(t, "NLRTM", "SGSIN", departure, 100, 0, 1900)
	st := &stubStore{containers: []domain.Container{pricey, cheap}}

	svc := newTestService(st, 0.8)

	recs, err := svc.Recommend(context.Background(), domain.ShipmentRequest{
		Origin:        "NLRTM",
		Destination:   "SGSIN",
		DepartureDate: departure,
		Volume:        10,
	})
	require.NoError(t, err)
	require.Len(t, recs, 2)

	// Same reliability and capacity, so the cheaper container wins.
	assert.Equal(t, cheap.ID, recs[0].ContainerID)
	assert.Equal(t, pricey.ID, recs[1].ContainerID)
	assert.Greater(t, recs[0].FinalScore, recs[1].FinalScore)
	assert.Equal(t, 0.8, recs[0].ReliabilityScore)
	assert.Equal(t, 100.0, recs[0].AvailableCapacity)
}

func TestRecommend_ScoreArithmetic(t *testing.T) {
	c := testContainer(t, "NLRTM", "SGSIN", departure, 100, 40, 1000)
	st := &stubStore{containers: []domain.Container{c}}

	svc := newTestService(st, 0.8)

	recs, err := svc.Recommend(context.Background(), domain.ShipmentRequest{
		Origin:        "NLRTM",
		Destination:   "SGSIN",
		DepartureDate: departure,
		Volume:        10,
	})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	// 0.6*0.8 + 0.3*(1 - 1000/2000) + 0.1*(60/100)
	assert.InDelta(t, 0.69, recs[0].FinalScore, 1e-9)
}

func TestRecommend_EmptyResultIsNotError(t *testing.T) {
	st := &stubStore{}
	svc := newTestService(st, 0.8)

	recs, err := svc.Recommend(context.Background(), domain.ShipmentRequest{
		Origin:        "NLRTM",
		Destination:   "SGSIN",
		DepartureDate: departure,
		Volume:        10,
	})
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.NotNil(t, recs)
}

func TestRecommend_InvalidRequest(t *testing.T) {
	st := &stubStore{}
	svc := newTestService(st, 0.8)

	_, err := svc.Recommend(context.Background(), domain.ShipmentRequest{
		Origin:        "",
		Destination:   "SGSIN",
		DepartureDate: departure,
		Volume:        10,
	})
	assert.ErrorIs(t, err, domain.ErrOriginRequired)

	_, err = svc.Recommend(context.Background(), domain.ShipmentRequest{
		Origin:        "NLRTM",
		Destination:   "SGSIN",
		DepartureDate: departure,
		Volume:        0,
	})
	assert.ErrorIs(t, err, domain.ErrVolumeNotPositive)
}

func TestRecommend_OracleFailureFaultsWholeRecommendation(t *testing.T) {
	a := testContainer(t, "NLRTM", "SGSIN", departure, 100, 0, 500)
	b := testContainer(t, "NLRTM", "SGSIN", departure, 100, 0, 900)
	st := &stubStore{containers: []domain.Container{a, b}}

	oracleErr := errors.New("feature dimension mismatch")
	svc := NewService(st, &stubOracle{err: oracleErr}, features.NewFixedExtractor(), nil, nil)

	recs, err := svc.Recommend(context.Background(), domain.ShipmentRequest{
		Origin:        "NLRTM",
		Destination:   "SGSIN",
		DepartureDate: departure,
		Volume:        10,
	})
	assert.ErrorIs(t, err, oracleErr)
	assert.Nil(t, recs)
}

func TestRecommend_StoreFailure(t *testing.T) {
	st := &stubStore{feasibleErr: store.ErrTxFailed}
	svc := newTestService(st, 0.8)

	_, err := svc.Recommend(context.Background(), domain.ShipmentRequest{
		Origin:        "NLRTM",
		Destination:   "SGSIN",
		DepartureDate: departure,
		Volume:        10,
	})
	assert.ErrorIs(t, err, store.ErrTxFailed)
}

// =============================================================================
// Reservation Tests
// =============================================================================

func TestReserve_PublishesEvent(t *testing.T) {
	booking, err := domain.NewBooking("cnt_abc12345", 30)
	require.NoError(t, err)

	st := &stubStore{
		reserveFn: func(containerID string, volume float64) (*domain.Booking, error) {
			return booking, nil
		},
	}
	pub := &recordingPublisher{}
	svc := NewService(st, &stubOracle{probability: 0.5}, features.NewFixedExtractor(), pub, nil)

	got, err := svc.Reserve(context.Background(), "cnt_abc12345", 30)
	require.NoError(t, err)
	assert.Equal(t, booking.ID, got.ID)

	require.Len(t, pub.published, 1)
	assert.Equal(t, booking.ID, pub.published[0].BookingID)
	assert.Equal(t, 30.0, pub.published[0].Volume)
}

func TestReserve_PublishFailureDoesNotFailBooking(t *testing.T) {
	booking, err := domain.NewBooking("cnt_abc12345", 30)
	require.NoError(t, err)

	st := &stubStore{
		reserveFn: func(containerID string, volume float64) (*domain.Booking, error) {
			return booking, nil
		},
	}
	pub := &recordingPublisher{err: errors.New("broker unavailable")}
	svc := NewService(st, &stubOracle{probability: 0.5}, features.NewFixedExtractor(), pub, nil)

	got, err := svc.Reserve(context.Background(), "cnt_abc12345", 30)
	require.NoError(t, err)
	assert.Equal(t, booking.ID, got.ID)
}

func TestReserve_StoreErrorsPassThrough(t *testing.T) {
	st := &stubStore{
		reserveFn: func(containerID string, volume float64) (*domain.Booking, error) {
			return nil, store.ErrInsufficientCapacity
		},
	}
	pub := &recordingPublisher{}
	svc := NewService(st, &stubOracle{probability: 0.5}, features.NewFixedExtractor(), pub, nil)

	_, err := svc.Reserve(context.Background(), "cnt_abc12345", 500)
	assert.ErrorIs(t, err, store.ErrInsufficientCapacity)
	assert.Empty(t, pub.published)
}

// =============================================================================
// Dashboard Tests
// =============================================================================

func TestDashboard(t *testing.T) {
	c := testContainer(t, "NLRTM", "SGSIN", departure, 100, 33.333, 1500)
	st := &stubStore{containers: []domain.Container{c}}
	svc := newTestService(st, 0.8)

	entries, err := svc.Dashboard(context.Background(), store.DefaultListOptions())
	require.NoError(t, err)
	require.Len(t, entries, 1)

	entry := entries[0]
	assert.Equal(t, c.ID, entry.ContainerID)
	assert.Equal(t, "NLRTM → SGSIN", entry.Route)
	assert.Equal(t, "2026-10-15", entry.DepartureDate)
	assert.Equal(t, 100.0, entry.TotalCapacity)
	assert.Equal(t, 33.333, entry.BookedCapacity)
	assert.InDelta(t, 66.667, entry.AvailableCapacity, 1e-9)
	assert.Equal(t, 33.33, entry.UtilizationPercent)
	assert.Equal(t, 1500.0, entry.Cost)
}

func TestDashboard_Empty(t *testing.T) {
	st := &stubStore{}
	svc := newTestService(st, 0.8)

	entries, err := svc.Dashboard(context.Background(), store.DefaultListOptions())
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.NotNil(t, entries)
}
