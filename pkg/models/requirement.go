package models

import (
	"sort"
	"strings"
)

// Requirement is a decoded PEP 508 dependency specifier
type Requirement struct {
	Raw       string   `json:"raw"`                 // "numpy[typing]>=1.22; python_version>='3.10'"
	Name      string   `json:"name"`                // normalized: "numpy"
	Extras    []string `json:"extras,omitempty"`    // normalized: ["typing"]
	Specifier string   `json:"specifier,omitempty"` // ">=1.22"
	URL       string   `json:"url,omitempty"`       // set for "name @ url" requirements
	Marker    string   `json:"marker,omitempty"`    // "python_version>='3.10'"
}

// Key returns the canonical identity of the requirement. Two requirements
// with the same key install the same thing.
func (r Requirement) Key() string {
	var b strings.Builder
	b.WriteString(r.Name)
	if len(r.Extras) > 0 {
		extras := append([]string(nil), r.Extras...)
		sort.Strings(extras)
		b.WriteString("[")
		b.WriteString(strings.Join(extras, ","))
		b.WriteString("]")
	}
	if r.URL != "" {
		b.WriteString(" @ ")
		b.WriteString(r.URL)
	} else if r.Specifier != "" {
		b.WriteString(strings.Join(strings.Fields(r.Specifier), ""))
	}
	if r.Marker != "" {
		b.WriteString("; ")
		b.WriteString(strings.Join(strings.Fields(r.Marker), " "))
	}
	return b.String()
}

// String returns the raw specifier if known, else the canonical key
func (r Requirement) String() string {
	if r.Raw != "" {
		return r.Raw
	}
	return r.Key()
}

// SortRequirements sorts requirements by key in place
func SortRequirements(reqs []Requirement) {
	sort.Slice(reqs, func(i, j int) bool {
		return reqs[i].Key() < reqs[j].Key()
	})
}
