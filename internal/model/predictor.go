package model

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/heron-analytics/heron/internal/domain"
)

// Predictor applies the frozen linear decision function followed by a
// logistic transform. Pure and deterministic: identical vector and
// identical weights always yield the identical probability.
type Predictor struct {
	artifact *Artifact
}

// NewPredictor creates a predictor over a loaded artifact.
func NewPredictor(artifact *Artifact) *Predictor {
	return &Predictor{artifact: artifact}
}

// Artifact exposes the underlying artifact (model info endpoint).
func (p *Predictor) Artifact() *Artifact {
	return p.artifact
}

// Predict returns the churn prediction for an encoded vector. A vector
// whose length does not match the frozen weight dimensionality fails
// with domain.ErrDimensionMismatch; no partial inference is attempted.
func (p *Predictor) Predict(vec []float64) (*domain.Prediction, error) {
	if len(vec) != len(p.artifact.Weights) {
		return nil, fmt.Errorf("%w: vector length %d, weights length %d",
			domain.ErrDimensionMismatch, len(vec), len(p.artifact.Weights))
	}

	z := p.artifact.Intercept
	for i, w := range p.artifact.Weights {
		z += w * vec[i]
	}

	prob := sigmoid(z)
	threshold := p.artifact.LabelThreshold()

	label := domain.RiskLow
	if prob >= threshold {
		label = domain.RiskHigh
	}

	return &domain.Prediction{
		ID:           uuid.New().String(),
		Probability:  prob,
		RiskLabel:    label,
		Threshold:    threshold,
		ModelVersion: p.artifact.Version,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// sigmoid is the logistic transform; output is always in (0,1).
func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}
