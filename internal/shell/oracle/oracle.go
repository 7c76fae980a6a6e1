// Package oracle loads the reliability model artifact and serves on-time
// delivery predictions. The artifact is produced by the offline training job
// and loaded exactly once at process start; the loaded model is immutable.
package oracle

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/freightworks/stowage/internal/core/features"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrArtifactUnreadable is returned when the artifact file cannot be read.
	ErrArtifactUnreadable = errors.New("model artifact unreadable")

	// ErrArtifactInvalid is returned when the artifact content fails validation.
	ErrArtifactInvalid = errors.New("model artifact invalid")

	// ErrFeatureMismatch is returned when a feature vector does not match the
	// dimensionality the loaded model was trained on.
	ErrFeatureMismatch = errors.New("feature vector does not match model dimensions")
)

// =============================================================================
// Oracle Interface
// =============================================================================

// Oracle predicts the probability of on-time delivery for a feature vector.
// Implementations must be deterministic for a fixed loaded artifact and must
// not mutate any shared state.
type Oracle interface {
	// Predict returns a probability in [0, 1].
	Predict(v features.Vector) (float64, error)

	// Version identifies the loaded model artifact.
	Version() string
}

// =============================================================================
// Artifact
// =============================================================================

// artifact is the on-disk layout of the model blob. The format is owned by
// the offline training job; this package only validates what it needs to
// serve predictions.
type artifact struct {
	Version      string    `json:"version"`
	Algorithm    string    `json:"algorithm"`
	FeatureNames []string  `json:"features"`
	Coefficients []float64 `json:"coefficients"`
	Intercept    float64   `json:"intercept"`
}

// =============================================================================
// Model
// =============================================================================

// Model is a loaded reliability model. All fields are fixed after Load;
// Predict is safe for concurrent use.
type Model struct {
	version      string
	coefficients []float64
	intercept    float64
}

// Load reads and validates a model artifact from the given path.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArtifactUnreadable, err)
	}

	var a artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArtifactInvalid, err)
	}

	if a.Version == "" {
		return nil, fmt.Errorf("%w: missing version", ErrArtifactInvalid)
	}
	if a.Algorithm != "logistic" {
		return nil, fmt.Errorf("%w: unsupported algorithm %q", ErrArtifactInvalid, a.Algorithm)
	}
	if len(a.Coefficients) == 0 {
		return nil, fmt.Errorf("%w: no coefficients", ErrArtifactInvalid)
	}
	if len(a.FeatureNames) != len(a.Coefficients) {
		return nil, fmt.Errorf("%w: %d feature names for %d coefficients",
			ErrArtifactInvalid, len(a.FeatureNames), len(a.Coefficients))
	}

	return &Model{
		version:      a.Version,
		coefficients: a.Coefficients,
		intercept:    a.Intercept,
	}, nil
}

// Predict returns the modelled probability of on-time delivery.
func (m *Model) Predict(v features.Vector) (float64, error) {
	if len(v) != len(m.coefficients) {
		return 0, fmt.Errorf("%w: got %d, want %d", ErrFeatureMismatch, len(v), len(m.coefficients))
	}

	z := m.intercept
	for i, w := range m.coefficients {
		z += w * v[i]
	}
	return sigmoid(z), nil
}

// Version returns the artifact version the model was loaded from.
func (m *Model) Version() string {
	return m.version
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

// =============================================================================
// Neutral Fallback
// =============================================================================

// Neutral is the degraded-mode oracle used when the model artifact cannot be
// loaded and the fallback is explicitly enabled. It answers every prediction
// with the same configured probability so that recommendations keep working
// on cost and capacity alone.
type Neutral struct {
	probability float64
}

// NewNeutral creates a neutral oracle. Probabilities outside [0, 1] are
// clamped to the nearest bound.
func NewNeutral(probability float64) *Neutral {
	if probability < 0 {
		probability = 0
	}
	if probability > 1 {
		probability = 1
	}
	return &Neutral{probability: probability}
}

// Predict returns the configured constant probability.
func (n *Neutral) Predict(_ features.Vector) (float64, error) {
	return n.probability, nil
}

// Version identifies the fallback so it is visible in logs and diagnostics.
func (n *Neutral) Version() string {
	return "neutral-fallback"
}
