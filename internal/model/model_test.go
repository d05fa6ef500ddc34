package model

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/heron-analytics/heron/internal/domain"
)

func testArtifact() *Artifact {
	return &Artifact{
		Version: "churn-v1",
		Schema: domain.Schema{
			Fields: []domain.FieldSpec{
				{Name: "plan", Kind: domain.FieldCategorical, Vocabulary: []string{"basic", "plus"}},
				{Name: "tenure_months", Kind: domain.FieldNumeric, Mean: 24, Scale: 12},
			},
		},
		Weights:   []float64{0.5, -0.5, -1.0},
		Intercept: 0.25,
		Threshold: 0.5,
	}
}

func TestArtifactValidate(t *testing.T) {
	a := testArtifact()
	if err := a.Validate(); err != nil {
		t.Fatalf("valid artifact rejected: %v", err)
	}

	bad := testArtifact()
	bad.Weights = []float64{0.5, -0.5}
	if err := bad.Validate(); err == nil {
		t.Error("expected error for weight/width mismatch")
	}

	bad = testArtifact()
	bad.Threshold = 1.5
	if err := bad.Validate(); err == nil {
		t.Error("expected error for threshold outside [0,1]")
	}

	bad = testArtifact()
	bad.Version = ""
	if err := bad.Validate(); err == nil {
		t.Error("expected error for missing version")
	}

	bad = testArtifact()
	bad.Schema.Fields[1].Scale = 0
	if err := bad.Validate(); err == nil {
		t.Error("expected error for zero scale")
	}
}

func TestPredictDimensionMismatch(t *testing.T) {
	p := NewPredictor(testArtifact())

	_, err := p.Predict([]float64{1, 0})
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestPredictDeterministic(t *testing.T) {
	p := NewPredictor(testArtifact())
	vec := []float64{1, 0, 0.5}

	first, err := p.Predict(vec)
	if err != nil {
		t.Fatalf("predict failed: %v", err)
	}
	second, err := p.Predict(vec)
	if err != nil {
		t.Fatalf("predict failed: %v", err)
	}

	if first.Probability != second.Probability {
		t.Errorf("identical vectors produced %.6f and %.6f", first.Probability, second.Probability)
	}
	if first.Probability <= 0 || first.Probability >= 1 {
		t.Errorf("probability %.6f outside (0,1)", first.Probability)
	}
}

func TestPredictLabel(t *testing.T) {
	p := NewPredictor(testArtifact())

	// z = 0.25 + 0.5*1 = 0.75, sigmoid(0.75) ~ 0.68 >= 0.5
	pred, err := p.Predict([]float64{1, 0, 0})
	if err != nil {
		t.Fatalf("predict failed: %v", err)
	}
	if pred.RiskLabel != domain.RiskHigh {
		t.Errorf("expected High for probability %.4f, got %s", pred.Probability, pred.RiskLabel)
	}

	// z = 0.25 - 0.5 - 2 = -2.25, sigmoid ~ 0.095 < 0.5
	pred, err = p.Predict([]float64{0, 1, 2})
	if err != nil {
		t.Fatalf("predict failed: %v", err)
	}
	if pred.RiskLabel != domain.RiskLow {
		t.Errorf("expected Low for probability %.4f, got %s", pred.Probability, pred.RiskLabel)
	}
	if pred.ModelVersion != "churn-v1" {
		t.Errorf("expected model version churn-v1, got %s", pred.ModelVersion)
	}
}

func TestPredictProbabilityAtThreshold(t *testing.T) {
	// z = 0 gives exactly 0.5; the boundary labels High.
	a := testArtifact()
	a.Intercept = 0
	p := NewPredictor(a)

	pred, err := p.Predict([]float64{0, 0, 0})
	if err != nil {
		t.Fatalf("predict failed: %v", err)
	}
	if pred.Probability != 0.5 {
		t.Fatalf("expected probability 0.5, got %.6f", pred.Probability)
	}
	if pred.RiskLabel != domain.RiskHigh {
		t.Errorf("probability equal to threshold must label High, got %s", pred.RiskLabel)
	}
}

func TestLoadArtifact(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.json")

	artifactJSON := `{
		"version": "churn-v2",
		"schema": {
			"fields": [
				{"name": "plan", "kind": "categorical", "vocabulary": ["basic", "plus"]},
				{"name": "tenure_months", "kind": "numeric", "mean": 24, "scale": 12}
			]
		},
		"weights": [0.4, -0.4, -0.9],
		"intercept": 0.1,
		"threshold": 0.6
	}`
	if err := os.WriteFile(path, []byte(artifactJSON), 0o644); err != nil {
		t.Fatalf("failed to write artifact: %v", err)
	}

	a, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if a.Version != "churn-v2" {
		t.Errorf("expected version churn-v2, got %s", a.Version)
	}
	if a.LabelThreshold() != 0.6 {
		t.Errorf("expected threshold 0.6, got %.2f", a.LabelThreshold())
	}
}

func TestLoadArtifactFailures(t *testing.T) {
	if _, err := Load("/nonexistent/model.json"); !errors.Is(err, domain.ErrArtifactLoad) {
		t.Errorf("expected ErrArtifactLoad for missing file, got %v", err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "corrupt.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	if _, err := Load(path); !errors.Is(err, domain.ErrArtifactLoad) {
		t.Errorf("expected ErrArtifactLoad for corrupt file, got %v", err)
	}

	// Structurally valid JSON but weights do not match schema width.
	path = filepath.Join(dir, "mismatch.json")
	bad := `{
		"version": "churn-v2",
		"schema": {"fields": [{"name": "tenure", "kind": "numeric", "mean": 1, "scale": 1}]},
		"weights": [0.1, 0.2],
		"intercept": 0
	}`
	if err := os.WriteFile(path, []byte(bad), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	if _, err := Load(path); !errors.Is(err, domain.ErrArtifactLoad) {
		t.Errorf("expected ErrArtifactLoad for weight mismatch, got %v", err)
	}
}
