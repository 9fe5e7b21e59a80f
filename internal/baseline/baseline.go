// Package baseline subtracts findings already accepted in an earlier report.
package baseline

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/acheong08/pyextras/pkg/models"
)

// DedupedReport is the result after deduplication
type DedupedReport struct {
	*models.Report
	BaselineSource string         `json:"baseline_source"`
	Removed        int            `json:"removed"`
	RemovedByRule  map[string]int `json:"removed_by_rule,omitempty"`
}

// LoadBaseline loads a report previously written with `check --format json`
func LoadBaseline(filename string) (*models.Report, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read baseline: %w", err)
	}

	var report models.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to parse baseline JSON: %w", err)
	}

	return &report, nil
}

// Dedup removes from target every finding whose fingerprint appears in
// baseline. target is not modified.
func Dedup(target, baseline *models.Report) *DedupedReport {
	known := make(map[string]int, len(baseline.Findings))
	for _, f := range baseline.Findings {
		known[f.Fingerprint()]++
	}

	out := *target
	out.Findings = make([]models.Finding, 0, len(target.Findings))

	result := &DedupedReport{
		Report:         &out,
		BaselineSource: baseline.ID,
		RemovedByRule:  make(map[string]int),
	}

	for _, f := range target.Findings {
		// Each baseline entry absorbs one finding
		if known[f.Fingerprint()] > 0 {
			known[f.Fingerprint()]--
			result.Removed++
			result.RemovedByRule[f.Rule]++
			continue
		}
		out.Findings = append(out.Findings, f)
	}

	return result
}
