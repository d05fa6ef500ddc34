// Load generator for Heron.
//
// Usage:
//   go run cmd/benchmark/main.go -artifact ./churn_model.json -url http://localhost:8080
//
// This tool:
//  1. Reads the model artifact to learn the feature schema
//  2. Generates synthetic customer records and scores them via /churn/predict
//  3. Fires random filter combinations at /incidents/query
//  4. Reports latency percentiles and risk label distribution
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/heron-analytics/heron/internal/domain"
	"github.com/heron-analytics/heron/internal/model"
)

// PredictResponse mirrors the /churn/predict response envelope.
type PredictResponse struct {
	Prediction struct {
		ID          string  `json:"id"`
		Probability float64 `json:"probability"`
		RiskLabel   string  `json:"riskLabel"`
	} `json:"prediction"`
}

// FiltersResponse mirrors the /incidents/filters response.
type FiltersResponse struct {
	Dimensions map[string][]string `json:"dimensions"`
}

// Metrics tracks benchmark results.
type Metrics struct {
	Requests int64
	Errors   int64
	HighRisk int64
	LowRisk  int64

	mu        sync.Mutex
	latencies []time.Duration
}

func (m *Metrics) record(d time.Duration) {
	m.mu.Lock()
	m.latencies = append(m.latencies, d)
	m.mu.Unlock()
}

func (m *Metrics) percentile(p float64) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.latencies) == 0 {
		return 0
	}
	sorted := make([]time.Duration, len(m.latencies))
	copy(sorted, m.latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := int(p * float64(len(sorted)-1))
	return sorted[idx]
}

func main() {
	artifactPath := flag.String("artifact", "./churn_model.json", "Path to the model artifact JSON")
	baseURL := flag.String("url", "http://localhost:8080", "Heron base URL")
	predictions := flag.Int("predictions", 1000, "Number of /churn/predict requests")
	queries := flag.Int("queries", 200, "Number of /incidents/query requests")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	seed := flag.Int64("seed", time.Now().UnixNano(), "Random seed")
	flag.Parse()

	fmt.Println("╔═══════════════════════════════════════════════════╗")
	fmt.Println("║            HERON BENCHMARK - Load Generator        ║")
	fmt.Println("╚═══════════════════════════════════════════════════╝")
	fmt.Printf("\nArtifact:    %s\n", *artifactPath)
	fmt.Printf("Heron URL:   %s\n", *baseURL)
	fmt.Printf("Predictions: %d\n", *predictions)
	fmt.Printf("Queries:     %d\n", *queries)
	fmt.Printf("Workers:     %d\n", *workers)
	fmt.Println()

	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Heron not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Heron is running:")
		fmt.Println("  go run cmd/heron/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ Heron is healthy")

	// The artifact schema drives synthetic record generation.
	artifact, err := model.Load(*artifactPath)
	if err != nil {
		fmt.Printf("ERROR: Failed to load artifact: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Artifact loaded (version %s, %d fields)\n", artifact.Version, len(artifact.Schema.Fields))

	dims, err := fetchFilterDimensions(*baseURL)
	if err != nil {
		fmt.Printf("ERROR: Failed to fetch filter dimensions: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Filter dimensions fetched (%d dimensions)\n", len(dims))

	rng := rand.New(rand.NewSource(*seed))

	// Churn prediction phase
	fmt.Printf("\nScoring %d synthetic customers...\n", *predictions)
	predictMetrics := &Metrics{}
	start := time.Now()
	runPhase(*workers, *predictions, func(r *rand.Rand) {
		rec := syntheticRecord(&artifact.Schema, r)
		reqStart := time.Now()
		resp, err := predict(*baseURL, rec)
		predictMetrics.record(time.Since(reqStart))
		atomic.AddInt64(&predictMetrics.Requests, 1)
		if err != nil {
			atomic.AddInt64(&predictMetrics.Errors, 1)
			return
		}
		if resp.Prediction.RiskLabel == domain.RiskHigh {
			atomic.AddInt64(&predictMetrics.HighRisk, 1)
		} else {
			atomic.AddInt64(&predictMetrics.LowRisk, 1)
		}
	}, rng)
	predictDuration := time.Since(start)

	// Incident query phase
	fmt.Printf("Running %d incident queries...\n", *queries)
	queryMetrics := &Metrics{}
	start = time.Now()
	runPhase(*workers, *queries, func(r *rand.Rand) {
		filter := randomFilter(dims, r)
		reqStart := time.Now()
		err := queryIncidents(*baseURL, filter)
		queryMetrics.record(time.Since(reqStart))
		atomic.AddInt64(&queryMetrics.Requests, 1)
		if err != nil {
			atomic.AddInt64(&queryMetrics.Errors, 1)
		}
	}, rng)
	queryDuration := time.Since(start)

	printResults("CHURN PREDICTIONS", predictMetrics, predictDuration)
	fmt.Printf("   High Risk:  %d\n", predictMetrics.HighRisk)
	fmt.Printf("   Low Risk:   %d\n", predictMetrics.LowRisk)
	printResults("INCIDENT QUERIES", queryMetrics, queryDuration)
	fmt.Println()
}

// runPhase fans n invocations of fn out over the worker pool. Each
// worker owns a derived RNG so record generation is race-free.
func runPhase(workers, n int, fn func(*rand.Rand), rng *rand.Rand) {
	work := make(chan struct{}, 100)
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		workerRng := rand.New(rand.NewSource(rng.Int63()))
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range work {
				fn(workerRng)
			}
		}()
	}

	for i := 0; i < n; i++ {
		work <- struct{}{}
	}
	close(work)
	wg.Wait()
}

// syntheticRecord draws a plausible customer record from the schema:
// a random vocabulary entry for each categorical field, and a value
// around the training mean for each numeric field.
func syntheticRecord(schema *domain.Schema, rng *rand.Rand) domain.Record {
	rec := make(domain.Record, len(schema.Fields))
	for _, f := range schema.Fields {
		switch f.Kind {
		case domain.FieldCategorical:
			rec[f.Name] = f.Vocabulary[rng.Intn(len(f.Vocabulary))]
		case domain.FieldNumeric:
			rec[f.Name] = f.Mean + rng.NormFloat64()*f.Scale
		}
	}
	return rec
}

// randomFilter picks zero or more values per dimension. Roughly half
// of the queries go out unfiltered to exercise the cache.
func randomFilter(dims map[string][]string, rng *rand.Rand) *domain.IncidentFilter {
	filter := &domain.IncidentFilter{}
	if rng.Intn(2) == 0 {
		return filter
	}

	pick := func(values []string) []string {
		if len(values) == 0 || rng.Intn(3) != 0 {
			return nil
		}
		return []string{values[rng.Intn(len(values))]}
	}

	filter.Regions = pick(dims["region"])
	filter.Channels = pick(dims["channel"])
	filter.Severities = pick(dims["severity_level"])
	filter.Categories = pick(dims["category"])
	filter.Subsystems = pick(dims["subsystem"])

	if rng.Intn(4) == 0 {
		breached := rng.Intn(2) == 0
		filter.SLABreached = &breached
	}

	return filter
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func fetchFilterDimensions(baseURL string) (map[string][]string, error) {
	resp, err := http.Get(baseURL + "/incidents/filters")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var fr FiltersResponse
	if err := json.NewDecoder(resp.Body).Decode(&fr); err != nil {
		return nil, err
	}
	return fr.Dimensions, nil
}

var client = &http.Client{Timeout: 10 * time.Second}

func predict(baseURL string, rec domain.Record) (*PredictResponse, error) {
	body, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}

	resp, err := client.Post(baseURL+"/churn/predict", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result PredictResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

func queryIncidents(baseURL string, filter *domain.IncidentFilter) error {
	body, err := json.Marshal(filter)
	if err != nil {
		return err
	}

	resp, err := client.Post(baseURL+"/incidents/query", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

func printResults(title string, m *Metrics, duration time.Duration) {
	fmt.Printf("\n📊 %s\n", title)
	fmt.Printf("   Requests:   %d\n", m.Requests)
	fmt.Printf("   Errors:     %d\n", m.Errors)
	fmt.Printf("   Duration:   %v\n", duration.Round(time.Millisecond))
	if m.Requests > 0 {
		fmt.Printf("   Throughput: %.2f req/sec\n", float64(m.Requests)/duration.Seconds())
	}
	fmt.Printf("   p50:        %v\n", m.percentile(0.50).Round(time.Microsecond))
	fmt.Printf("   p90:        %v\n", m.percentile(0.90).Round(time.Microsecond))
	fmt.Printf("   p99:        %v\n", m.percentile(0.99).Round(time.Microsecond))
}
