// Package model loads the frozen churn model artifact and applies it
// to encoded vectors.
package model

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/heron-analytics/heron/internal/domain"
)

// Artifact is the versioned, offline-produced model blob: the fitted
// schema plus frozen logistic-regression weights. Read-only for the
// process lifetime; safe to share across concurrent requests.
type Artifact struct {
	Version   string        `json:"version"`
	Schema    domain.Schema `json:"schema"`
	Weights   []float64     `json:"weights"`
	Intercept float64       `json:"intercept"`

	// Threshold for the High/Low risk label. Zero means 0.5.
	Threshold float64 `json:"threshold,omitempty"`
}

// Load reads and validates an artifact from disk. Any failure here is
// fatal at startup, never recoverable per-request.
func Load(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrArtifactLoad, err)
	}

	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("%w: corrupt artifact %s: %v", domain.ErrArtifactLoad, path, err)
	}

	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrArtifactLoad, err)
	}

	return &a, nil
}

// Validate checks internal consistency: the schema must be sound and
// the weight vector must match the schema's encoded width exactly.
func (a *Artifact) Validate() error {
	if a.Version == "" {
		return fmt.Errorf("artifact version is required")
	}
	if err := a.Schema.Validate(); err != nil {
		return fmt.Errorf("artifact schema: %v", err)
	}
	if len(a.Weights) == 0 {
		return fmt.Errorf("artifact has no weights")
	}
	if got, want := len(a.Weights), a.Schema.Width(); got != want {
		return fmt.Errorf("weight count %d does not match schema width %d", got, want)
	}
	if a.Threshold < 0 || a.Threshold > 1 {
		return fmt.Errorf("threshold %.3f outside [0,1]", a.Threshold)
	}
	return nil
}

// LabelThreshold returns the configured threshold, defaulting to 0.5.
func (a *Artifact) LabelThreshold() float64 {
	if a.Threshold == 0 {
		return 0.5
	}
	return a.Threshold
}
