// Package api provides HTTP handlers for the Stowage API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/freightworks/stowage/internal/core/domain"
	"github.com/freightworks/stowage/internal/shell/allocator"
	"github.com/freightworks/stowage/internal/shell/cache"
	"github.com/freightworks/stowage/internal/shell/store"
)

const (
	dateLayout        = "2006-01-02"
	dashboardCacheKey = "dashboard"
)

// =============================================================================
// Handler
// =============================================================================

// Handler provides HTTP handlers for the API.
type Handler struct {
	store     store.Store
	allocator *allocator.Service
	cache     cache.Cache
	cacheTTL  time.Duration
	logger    *slog.Logger
}

// NewHandler creates a new API handler.
// c may be nil to disable dashboard caching.
func NewHandler(s store.Store, a *allocator.Service, c cache.Cache, cacheTTL time.Duration, l *slog.Logger) *Handler {
	if l == nil {
		l = slog.Default()
	}
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	return &Handler{
		store:     s,
		allocator: a,
		cache:     c,
		cacheTTL:  cacheTTL,
		logger:    l,
	}
}

// Routes returns the router with all routes configured.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.jsonContentType)
	r.Use(h.requestIDHeader)

	// Health endpoints
	r.Get("/health", h.handleHealth)
	r.Get("/ready", h.handleReady)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/recommendations", h.handleRecommend)

		r.Route("/bookings", func(r chi.Router) {
			r.Post("/", h.handleCreateBooking)
			r.Get("/", h.handleListBookings)
		})

		r.Route("/containers", func(r chi.Router) {
			r.Post("/", h.handleCreateContainer)
			r.Get("/", h.handleListContainers)
			r.Get("/{id}", h.handleGetContainer)
		})

		r.Get("/provider/dashboard", h.handleDashboard)
	})

	return r
}

// =============================================================================
// Middleware
// =============================================================================

// jsonContentType sets Content-Type header to application/json.
func (h *Handler) jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// requestIDHeader copies the request ID to the response header.
func (h *Handler) requestIDHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reqID := middleware.GetReqID(r.Context()); reqID != "" {
			w.Header().Set("X-Request-ID", reqID)
		}
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Health Handlers
// =============================================================================

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)

	if err := h.store.Ping(r.Context()); err != nil {
		checks["database"] = "failed"
		h.writeJSON(w, http.StatusServiceUnavailable, ReadyResponse{
			Status: "not_ready",
			Checks: checks,
		})
		return
	}
	checks["database"] = "ok"

	h.writeJSON(w, http.StatusOK, ReadyResponse{
		Status: "ready",
		Checks: checks,
	})
}

// =============================================================================
// Recommendation Handlers
// =============================================================================

func (h *Handler) handleRecommend(w http.ResponseWriter, r *http.Request) {
	var req RecommendationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "validation_error")
		return
	}

	departure, err := parseDate(req.DepartureDate)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "departure_date must be a calendar date (YYYY-MM-DD)", "validation_error")
		return
	}

	recs, err := h.allocator.Recommend(r.Context(), domain.ShipmentRequest{
		Origin:        req.Origin,
		Destination:   req.Destination,
		DepartureDate: departure,
		Volume:        req.Volume,
	})
	if err != nil {
		if isValidationError(err) {
			h.writeError(w, http.StatusBadRequest, err.Error(), "validation_error")
			return
		}
		h.logger.Error("recommendation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to compute recommendations", "internal_error")
		return
	}

	h.writeJSON(w, http.StatusOK, RecommendationsResponse{Recommendations: recs})
}

// =============================================================================
// Booking Handlers
// =============================================================================

func (h *Handler) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var req CreateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "validation_error")
		return
	}
	if req.ContainerID == "" {
		h.writeError(w, http.StatusBadRequest, "container_id is required", "validation_error")
		return
	}

	booking, err := h.allocator.Reserve(r.Context(), req.ContainerID, req.Volume)
	if err != nil {
		switch {
		case isValidationError(err):
			h.writeError(w, http.StatusBadRequest, err.Error(), "validation_error")
		case errors.Is(err, store.ErrNotFound):
			h.writeError(w, http.StatusNotFound, "container not found", "container_not_found")
		case errors.Is(err, store.ErrInsufficientCapacity):
			h.writeError(w, http.StatusConflict, "requested volume exceeds available capacity", "insufficient_capacity")
		default:
			h.logger.Error("failed to create booking", "error", err)
			h.writeError(w, http.StatusInternalServerError, "failed to create booking", "internal_error")
		}
		return
	}

	h.invalidateDashboard(r.Context())
	h.writeJSON(w, http.StatusCreated, bookingToResponse(booking))
}

func (h *Handler) handleListBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.allocator.ListBookings(r.Context(), parseListOptions(r))
	if err != nil {
		h.logger.Error("failed to list bookings", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list bookings", "internal_error")
		return
	}

	resp := BookingListResponse{
		Bookings: make([]BookingResponse, 0, len(bookings)),
		Count:    len(bookings),
	}
	for i := range bookings {
		resp.Bookings = append(resp.Bookings, bookingToResponse(&bookings[i]))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// Container Handlers
// =============================================================================

func (h *Handler) handleCreateContainer(w http.ResponseWriter, r *http.Request) {
	var req CreateContainerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "validation_error")
		return
	}

	departure, err := parseDate(req.DepartureDate)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "departure_date must be a calendar date (YYYY-MM-DD)", "validation_error")
		return
	}

	container, err := domain.NewContainer(req.Origin, req.Destination, departure, req.TotalCapacity, req.Cost)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error(), "validation_error")
		return
	}

	if err := h.store.CreateContainer(r.Context(), container); err != nil {
		h.logger.Error("failed to create container", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to create container", "internal_error")
		return
	}

	h.invalidateDashboard(r.Context())
	h.writeJSON(w, http.StatusCreated, containerToResponse(container))
}

func (h *Handler) handleGetContainer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	container, err := h.store.GetContainer(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "container not found", "container_not_found")
			return
		}
		h.logger.Error("failed to get container", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to get container", "internal_error")
		return
	}

	h.writeJSON(w, http.StatusOK, containerToResponse(container))
}

func (h *Handler) handleListContainers(w http.ResponseWriter, r *http.Request) {
	containers, err := h.store.ListContainers(r.Context(), parseListOptions(r))
	if err != nil {
		h.logger.Error("failed to list containers", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list containers", "internal_error")
		return
	}

	resp := ContainerListResponse{
		Containers: make([]ContainerResponse, 0, len(containers)),
		Count:      len(containers),
	}
	for i := range containers {
		resp.Containers = append(resp.Containers, containerToResponse(&containers[i]))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// Dashboard Handlers
// =============================================================================

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	opts := parseListOptions(r)

	// Only the default-options view is cached; a single key cannot serve
	// every limit/offset combination, and write-path invalidation must cover
	// whatever was cached.
	cacheable := h.cache != nil && opts == store.DefaultListOptions()

	if cacheable {
		if cached, err := h.cache.Get(r.Context(), dashboardCacheKey); err == nil {
			w.WriteHeader(http.StatusOK)
			w.Write(cached)
			return
		}
	}

	entries, err := h.allocator.Dashboard(r.Context(), opts)
	if err != nil {
		h.logger.Error("failed to build dashboard", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to build dashboard", "internal_error")
		return
	}

	resp := DashboardResponse{Containers: entries, Count: len(entries)}

	if cacheable {
		if body, err := json.Marshal(resp); err == nil {
			if err := h.cache.Set(r.Context(), dashboardCacheKey, body, h.cacheTTL); err != nil {
				h.logger.Warn("failed to cache dashboard", "error", err)
			}
		}
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// invalidateDashboard drops the cached dashboard after a write.
func (h *Handler) invalidateDashboard(ctx context.Context) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Invalidate(ctx, dashboardCacheKey); err != nil {
		h.logger.Warn("failed to invalidate dashboard cache", "error", err)
	}
}

// =============================================================================
// Helpers
// =============================================================================

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode JSON", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message, code string) {
	h.writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(dateLayout, s)
}

func parseListOptions(r *http.Request) store.ListOptions {
	opts := store.DefaultListOptions()
	if limit := r.URL.Query().Get("limit"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil {
			opts.Limit = l
		}
	}
	if offset := r.URL.Query().Get("offset"); offset != "" {
		if o, err := strconv.Atoi(offset); err == nil {
			opts.Offset = o
		}
	}
	return opts.Normalize()
}

// isValidationError reports whether err is a request validation failure
// rather than an infrastructure fault.
func isValidationError(err error) bool {
	return errors.Is(err, domain.ErrOriginRequired) ||
		errors.Is(err, domain.ErrDestinationRequired) ||
		errors.Is(err, domain.ErrDepartureRequired) ||
		errors.Is(err, domain.ErrVolumeNotPositive) ||
		errors.Is(err, domain.ErrCapacityNotPositive) ||
		errors.Is(err, domain.ErrCostNegative)
}

func containerToResponse(c *domain.Container) ContainerResponse {
	return ContainerResponse{
		ID:                c.ID,
		Origin:            c.Origin,
		Destination:       c.Destination,
		DepartureDate:     c.DepartureDate.Format(dateLayout),
		TotalCapacity:     c.TotalCapacity,
		BookedCapacity:    c.BookedCapacity,
		AvailableCapacity: c.Available(),
		Cost:              c.Cost,
		CreatedAt:         c.CreatedAt,
		UpdatedAt:         c.UpdatedAt,
	}
}

func bookingToResponse(b *domain.Booking) BookingResponse {
	return BookingResponse{
		ID:          b.ID,
		ContainerID: b.ContainerID,
		Volume:      b.Volume,
		BookedAt:    b.BookedAt,
	}
}
