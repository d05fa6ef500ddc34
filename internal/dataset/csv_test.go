package dataset

import (
	"strings"
	"testing"
)

const sampleCSV = `incident_id,date,region,channel,severity_level,category,subsystem,root_cause,sla_breached,time_to_resolve_hours,financial_impact_usd,is_repeated_incident
INC-001,2024-01-05,EMEA,web,high,outage,payments,config error,Yes,10.5,5000,No
INC-002,2024-01-10,APAC,mobile,low,degradation,search,capacity,No,2,300.25,Yes
INC-003,2024-02-01,AMER,api,medium,security,auth,third party,false,4,1200,true
`

func TestLoad(t *testing.T) {
	res, err := Load(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if len(res.Incidents) != 3 {
		t.Fatalf("expected 3 incidents, got %d", len(res.Incidents))
	}
	if res.Skipped != 0 {
		t.Errorf("expected 0 skipped rows, got %d", res.Skipped)
	}

	first := res.Incidents[0]
	if first.ID != "INC-001" {
		t.Errorf("expected INC-001, got %s", first.ID)
	}
	if first.Date.Format("2006-01-02") != "2024-01-05" {
		t.Errorf("expected date 2024-01-05, got %s", first.Date)
	}
	if !first.SLABreached || first.Repeated {
		t.Errorf("expected breached non-repeated, got %+v", first)
	}
	if first.ResolveHours != 10.5 || first.FinancialUSD != 5000 {
		t.Errorf("unexpected numerics: %+v", first)
	}

	// Flag parsing accepts yes/no and true/false spellings.
	third := res.Incidents[2]
	if third.SLABreached || !third.Repeated {
		t.Errorf("expected non-breached repeated, got %+v", third)
	}
}

func TestLoadHeaderOrderFree(t *testing.T) {
	reordered := `date,incident_id,channel,region,category,severity_level,root_cause,subsystem,time_to_resolve_hours,sla_breached,is_repeated_incident,financial_impact_usd
2024-01-05,INC-001,web,EMEA,outage,high,config error,payments,10.5,Yes,No,5000
`
	res, err := Load(strings.NewReader(reordered))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	inc := res.Incidents[0]
	if inc.ID != "INC-001" || inc.Region != "EMEA" || inc.Subsystem != "payments" {
		t.Errorf("header mapping broken: %+v", inc)
	}
}

func TestLoadSkipsMalformedRows(t *testing.T) {
	withBadRows := sampleCSV +
		"INC-004,not-a-date,EMEA,web,high,outage,payments,config error,Yes,1,1,No\n" +
		"INC-005,2024-03-01,EMEA,web,high,outage,payments,config error,maybe,1,1,No\n" +
		"INC-006,2024-03-02,EMEA,web,high,outage,payments,config error,Yes,plenty,1,No\n"

	res, err := Load(strings.NewReader(withBadRows))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(res.Incidents) != 3 {
		t.Errorf("expected 3 good incidents, got %d", len(res.Incidents))
	}
	if res.Skipped != 3 {
		t.Errorf("expected 3 skipped rows, got %d", res.Skipped)
	}
}

func TestLoadMissingColumn(t *testing.T) {
	truncated := `incident_id,date,region
INC-001,2024-01-05,EMEA
`
	if _, err := Load(strings.NewReader(truncated)); err == nil {
		t.Error("expected error for missing columns")
	}
}

func TestLoadNoParseableRows(t *testing.T) {
	headerOnly := sampleCSV[:strings.Index(sampleCSV, "\n")+1]
	if _, err := Load(strings.NewReader(headerOnly)); err == nil {
		t.Error("expected error for dataset with zero rows")
	}

	allBad := headerOnly + "INC-001,bad-date,EMEA,web,high,outage,payments,x,Yes,1,1,No\n"
	if _, err := Load(strings.NewReader(allBad)); err == nil {
		t.Error("expected error for dataset with zero parseable rows")
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile("/nonexistent/incidents.csv"); err == nil {
		t.Error("expected error for missing file")
	}
}
