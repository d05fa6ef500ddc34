package domain

import "time"

// Risk labels derived from the churn probability.
const (
	RiskHigh = "High"
	RiskLow  = "Low"
)

// Prediction is the churn model output for one customer record:
// a probability in [0,1] plus the derived binary risk label.
// Predictions are recomputed per request and persisted for retrieval.
type Prediction struct {
	ID           string    `json:"id"`
	Probability  float64   `json:"probability"`
	RiskLabel    string    `json:"riskLabel"` // "High" or "Low"
	Threshold    float64   `json:"threshold"`
	ModelVersion string    `json:"modelVersion"`
	CreatedAt    time.Time `json:"createdAt"`

	// Input echoed back for audit; the encoded vector is transient
	// and never stored.
	Input Record `json:"input,omitempty"`

	// Insights emitted for this prediction.
	Insights []Insight `json:"insights,omitempty"`
}
