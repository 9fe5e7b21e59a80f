package models

import "fmt"

// Severity of a finding
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Finding is a single rule violation or observation
type Finding struct {
	Rule     string   `json:"rule"`            // "undefined-extra"
	Severity Severity `json:"severity"`        // "error", "warning", "info"
	Group    string   `json:"group,omitempty"` // extra the finding belongs to, if any
	Message  string   `json:"message"`
	Detail   []string `json:"detail,omitempty"`
}

// Fingerprint identifies a finding across runs
func (f Finding) Fingerprint() string {
	return fmt.Sprintf("%s|%s|%s", f.Rule, f.Group, f.Message)
}

// Report is the result of auditing one manifest
type Report struct {
	ID       string              `json:"id"`
	Project  string              `json:"project"`
	Version  string              `json:"version,omitempty"`
	Path     string              `json:"path,omitempty"`
	Groups   int                 `json:"groups"`
	Edges    int                 `json:"edges"`
	Findings []Finding           `json:"findings"`
	Closures map[string][]string `json:"closures,omitempty"` // group -> requirement keys
}

// Add appends findings to the report
func (r *Report) Add(findings ...Finding) {
	r.Findings = append(r.Findings, findings...)
}

// Count returns the number of findings of the given severity
func (r *Report) Count(sev Severity) int {
	n := 0
	for _, f := range r.Findings {
		if f.Severity == sev {
			n++
		}
	}
	return n
}

// Errors returns the number of error findings
func (r *Report) Errors() int { return r.Count(SeverityError) }

// Warnings returns the number of warning findings
func (r *Report) Warnings() int { return r.Count(SeverityWarning) }

// HasErrors reports whether any error finding is present
func (r *Report) HasErrors() bool { return r.Errors() > 0 }

// Filter drops findings whose rule is listed in ignore
func (r *Report) Filter(ignore []string) {
	if len(ignore) == 0 {
		return
	}
	skip := make(map[string]bool, len(ignore))
	for _, rule := range ignore {
		skip[rule] = true
	}
	kept := r.Findings[:0]
	for _, f := range r.Findings {
		if !skip[f.Rule] {
			kept = append(kept, f)
		}
	}
	r.Findings = kept
}
