// Package dataset loads the static incident dataset from CSV.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/heron-analytics/heron/internal/domain"
)

// Expected CSV columns. Column order is free; mapping is by header.
const (
	colID           = "incident_id"
	colDate         = "date"
	colRegion       = "region"
	colChannel      = "channel"
	colSeverity     = "severity_level"
	colCategory     = "category"
	colSubsystem    = "subsystem"
	colRootCause    = "root_cause"
	colSLABreached  = "sla_breached"
	colResolveHours = "time_to_resolve_hours"
	colFinancialUSD = "financial_impact_usd"
	colRepeated     = "is_repeated_incident"
)

const dateLayout = "2006-01-02"

// Result reports what a load produced.
type Result struct {
	Incidents []*domain.Incident
	Skipped   int // malformed rows dropped
}

// LoadFile reads an incident dataset from disk. A missing or unreadable
// file is fatal at startup; individual malformed rows are skipped and
// counted, never fatal.
func LoadFile(path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset %s: %w", path, err)
	}
	defer f.Close()
	return Load(f)
}

// Load parses incident CSV from a reader.
func Load(r io.Reader) (*Result, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV headers: %w", err)
	}

	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}

	required := []string{
		colID, colDate, colRegion, colChannel, colSeverity,
		colCategory, colSubsystem, colRootCause, colSLABreached,
		colResolveHours, colFinancialUSD, colRepeated,
	}
	for _, col := range required {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("dataset is missing column %q", col)
		}
	}

	res := &Result{}
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			res.Skipped++
			continue
		}

		inc, err := parseRow(row, idx)
		if err != nil {
			res.Skipped++
			continue
		}
		res.Incidents = append(res.Incidents, inc)
	}

	if len(res.Incidents) == 0 {
		return nil, fmt.Errorf("dataset contains no parseable rows")
	}
	return res, nil
}

func parseRow(row []string, idx map[string]int) (*domain.Incident, error) {
	field := func(col string) (string, error) {
		i := idx[col]
		if i >= len(row) {
			return "", fmt.Errorf("row too short for column %q", col)
		}
		return strings.TrimSpace(row[i]), nil
	}

	id, err := field(colID)
	if err != nil || id == "" {
		return nil, fmt.Errorf("missing incident id")
	}

	dateStr, err := field(colDate)
	if err != nil {
		return nil, err
	}
	date, err := time.Parse(dateLayout, dateStr)
	if err != nil {
		return nil, fmt.Errorf("bad date %q: %w", dateStr, err)
	}

	inc := &domain.Incident{ID: id, Date: date}

	if inc.Region, err = field(colRegion); err != nil {
		return nil, err
	}
	if inc.Channel, err = field(colChannel); err != nil {
		return nil, err
	}
	if inc.Severity, err = field(colSeverity); err != nil {
		return nil, err
	}
	if inc.Category, err = field(colCategory); err != nil {
		return nil, err
	}
	if inc.Subsystem, err = field(colSubsystem); err != nil {
		return nil, err
	}
	if inc.RootCause, err = field(colRootCause); err != nil {
		return nil, err
	}

	slaStr, err := field(colSLABreached)
	if err != nil {
		return nil, err
	}
	if inc.SLABreached, err = parseFlag(slaStr); err != nil {
		return nil, fmt.Errorf("bad sla_breached %q: %w", slaStr, err)
	}

	hoursStr, err := field(colResolveHours)
	if err != nil {
		return nil, err
	}
	if inc.ResolveHours, err = strconv.ParseFloat(hoursStr, 64); err != nil {
		return nil, fmt.Errorf("bad time_to_resolve_hours %q: %w", hoursStr, err)
	}

	usdStr, err := field(colFinancialUSD)
	if err != nil {
		return nil, err
	}
	if inc.FinancialUSD, err = strconv.ParseFloat(usdStr, 64); err != nil {
		return nil, fmt.Errorf("bad financial_impact_usd %q: %w", usdStr, err)
	}

	repStr, err := field(colRepeated)
	if err != nil {
		return nil, err
	}
	if inc.Repeated, err = parseFlag(repStr); err != nil {
		return nil, fmt.Errorf("bad is_repeated_incident %q: %w", repStr, err)
	}

	return inc, nil
}

// parseFlag accepts the flag spellings seen across dataset exports.
func parseFlag(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "yes", "true", "1":
		return true, nil
	case "no", "false", "0", "":
		return false, nil
	}
	return false, fmt.Errorf("unrecognized flag value")
}
