package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"idcprov/idcprov/types"
)

func sampleReport() *Report {
	sub := types.Failed("HTTP 400 - bad")
	return &Report{
		RunID:           "3f1c",
		CSVFile:         "users.csv",
		IdentityStoreID: "d-123",
		StartedAt:       time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC),
		FinishedAt:      time.Date(2024, 5, 6, 7, 9, 0, 0, time.UTC),
		Summary:         types.BatchSummary{Total: 2, Succeeded: 1, Failed: 1, Subscribing: true, SubscribeFailed: 2},
		Results: []types.ProvisioningResult{
			{Record: types.UserRecord{Line: 2, Username: "a"}, Create: types.Succeeded("u-1"), Subscription: &sub},
			{Record: types.UserRecord{Line: 3, Username: "b"}, Create: types.Failed("ConflictException: dup")},
		},
	}
}

func TestFormatFor(t *testing.T) {
	tests := map[string]string{
		"out.json":      FormatJSON,
		"out.YAML":      FormatYAML,
		"dir/out.yml":   FormatYAML,
		"report":        FormatJSON,
		"report.ndjson": FormatJSON,
	}
	for name, want := range tests {
		if got := FormatFor(name); got != want {
			t.Errorf("FormatFor(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestRenderJSONAndYAML(t *testing.T) {
	r := sampleReport()

	data, err := r.Render(FormatJSON)
	if err != nil {
		t.Fatalf("Render json: %v", err)
	}
	var decoded Report
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if decoded.Summary.Failed != 1 || len(decoded.Results) != 2 || decoded.Results[1].Subscription != nil {
		t.Errorf("unexpected decoded report: %+v", decoded)
	}
	if !strings.Contains(string(data), `"run_id": "3f1c"`) {
		t.Errorf("json missing run id: %s", data)
	}

	data, err = r.Render(FormatYAML)
	if err != nil {
		t.Fatalf("Render yaml: %v", err)
	}
	var generic map[string]interface{}
	if err := yaml.Unmarshal(data, &generic); err != nil {
		t.Fatalf("invalid yaml: %v", err)
	}
	if generic["identity_store_id"] != "d-123" {
		t.Errorf("yaml missing store id: %s", data)
	}

	if _, err := r.Render("xml"); err == nil {
		t.Errorf("expected error for unknown format")
	}
}

func TestWriteFile(t *testing.T) {
	name := filepath.Join(t.TempDir(), "nested", "report.yaml")
	if err := sampleReport().WriteFile(name); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	data, err := os.ReadFile(name)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), "run_id: 3f1c") {
		t.Errorf("expected yaml report, got %s", data)
	}
}

func TestObjectKey(t *testing.T) {
	r := sampleReport()
	if got := r.ObjectKey("/reports/"); got != "reports/2024-05-06/3f1c.json" {
		t.Errorf("unexpected key %q", got)
	}
	if got := r.ObjectKey(""); got != "2024-05-06/3f1c.json" {
		t.Errorf("unexpected key %q", got)
	}
}
