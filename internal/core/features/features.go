// Package features defines the feature vectors consumed by the reliability
// oracle. This is part of the Functional Core - all functions are pure with
// no I/O.
package features

import (
	"github.com/freightworks/stowage/internal/core/domain"
)

// Vector is a fixed-length numeric feature vector describing a route leg.
// The order of elements is part of the contract with the model artifact:
// incoming-leg departure delay, incoming-leg receipt delay, total hop count.
type Vector []float64

// Extractor derives a feature vector from a candidate container. The
// extraction step is injectable so a real feature pipeline can replace the
// placeholder without touching scoring or the reservation transaction.
type Extractor interface {
	Extract(c domain.Container) Vector
}

// =============================================================================
// Fixed Extractor
// =============================================================================

// FixedExtractor returns the same feature vector for every container. This
// mirrors the behaviour of the offline pipeline's serving path, which does
// not yet derive per-container leg telemetry.
// TODO: replace with a telemetry-backed extractor once leg delay data is
// ingested per container.
type FixedExtractor struct {
	DepartureDelay float64
	ReceiptDelay   float64
	TotalHops      float64
}

// NewFixedExtractor returns the default placeholder extractor: no observed
// delays and a two-hop route.
func NewFixedExtractor() *FixedExtractor {
	return &FixedExtractor{
		DepartureDelay: 0,
		ReceiptDelay:   0,
		TotalHops:      2,
	}
}

// Extract returns the fixed vector regardless of the container.
func (e *FixedExtractor) Extract(_ domain.Container) Vector {
	return Vector{e.DepartureDelay, e.ReceiptDelay, e.TotalHops}
}
