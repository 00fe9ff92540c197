package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"idcprov/idcprov/types"
)

const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Report is the artifact written at the end of a run.
type Report struct {
	RunID           string                     `json:"run_id" yaml:"run_id"`
	CSVFile         string                     `json:"csv_file" yaml:"csv_file"`
	IdentityStoreID string                     `json:"identity_store_id" yaml:"identity_store_id"`
	StartedAt       time.Time                  `json:"started_at" yaml:"started_at"`
	FinishedAt      time.Time                  `json:"finished_at" yaml:"finished_at"`
	Summary         types.BatchSummary         `json:"summary" yaml:"summary"`
	Results         []types.ProvisioningResult `json:"results" yaml:"results"`
}

// FormatFor picks the encoding from a file name; anything not .yaml/.yml is JSON.
func FormatFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

func ContentType(format string) string {
	if format == FormatYAML {
		return "application/yaml"
	}
	return "application/json"
}

func (r *Report) Render(format string) ([]byte, error) {
	switch format {
	case FormatJSON:
		return json.MarshalIndent(r, "", "  ")
	case FormatYAML:
		return yaml.Marshal(r)
	default:
		return nil, fmt.Errorf("unsupported report format %q", format)
	}
}

func (r *Report) WriteFile(name string) error {
	data, err := r.Render(FormatFor(name))
	if err != nil {
		return err
	}
	if dir := filepath.Dir(name); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}
	if err := os.WriteFile(name, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// ObjectKey is the storage key for the report: <prefix>/<date>/<run id>.json.
func (r *Report) ObjectKey(prefix string) string {
	name := fmt.Sprintf("%s.json", r.RunID)
	return path.Join(strings.Trim(prefix, "/"), r.StartedAt.UTC().Format("2006-01-02"), name)
}
