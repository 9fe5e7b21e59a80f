package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/acheong08/pyextras/pkg/models"
)

var (
	// PEP 508 distribution name
	nameRegex = regexp.MustCompile(`^([A-Za-z0-9](?:[A-Za-z0-9._-]*[A-Za-z0-9])?)`)
	// a single extra inside brackets
	extraNameRegex = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9._-]*[A-Za-z0-9])?$`)
	// one comma-separated version clause: ">=1.22", "==2.*", "~=3.1"
	clauseRegex = regexp.MustCompile(`^(~=|===|==|!=|<=|>=|<|>)\s*([A-Za-z0-9.*+!_-]+)$`)
	// runs of separators collapsed by PEP 503 / PEP 685
	separatorRegex = regexp.MustCompile(`[-_.]+`)
)

// NormalizeName normalizes a distribution name per PEP 503
func NormalizeName(name string) string {
	return separatorRegex.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
}

// NormalizeExtra normalizes an extra name per PEP 685
func NormalizeExtra(extra string) string {
	return NormalizeName(extra)
}

// DecodeRequirement parses a PEP 508 dependency specifier such as
// `numpy[typing]>=1.22; python_version >= "3.10"` or `pkg @ https://...`.
func DecodeRequirement(raw string) (models.Requirement, error) {
	line := strings.TrimSpace(raw)
	if line == "" {
		return models.Requirement{}, fmt.Errorf("empty requirement")
	}

	req := models.Requirement{Raw: line}

	// Split off the environment marker
	if idx := strings.Index(line, ";"); idx != -1 {
		req.Marker = strings.TrimSpace(line[idx+1:])
		line = strings.TrimSpace(line[:idx])
		if req.Marker == "" {
			return models.Requirement{}, fmt.Errorf("empty marker in %q", raw)
		}
	}

	matches := nameRegex.FindStringSubmatch(line)
	if len(matches) < 2 {
		return models.Requirement{}, fmt.Errorf("invalid distribution name in %q", raw)
	}
	req.Name = NormalizeName(matches[1])
	rest := strings.TrimSpace(line[len(matches[1]):])

	// Extras like "[security,dev]"
	if strings.HasPrefix(rest, "[") {
		end := strings.Index(rest, "]")
		if end == -1 {
			return models.Requirement{}, fmt.Errorf("unbalanced brackets in %q", raw)
		}
		for _, extra := range strings.Split(rest[1:end], ",") {
			extra = strings.TrimSpace(extra)
			if extra == "" {
				continue
			}
			if !extraNameRegex.MatchString(extra) {
				return models.Requirement{}, fmt.Errorf("invalid extra %q in %q", extra, raw)
			}
			req.Extras = append(req.Extras, NormalizeExtra(extra))
		}
		rest = strings.TrimSpace(rest[end+1:])
	}
	if strings.ContainsAny(rest, "[]") {
		return models.Requirement{}, fmt.Errorf("unbalanced brackets in %q", raw)
	}

	// Direct reference: "name @ url"
	if strings.HasPrefix(rest, "@") {
		req.URL = strings.TrimSpace(rest[1:])
		if req.URL == "" {
			return models.Requirement{}, fmt.Errorf("missing URL in %q", raw)
		}
		return req, nil
	}

	// Version specifier, optionally parenthesized
	if strings.HasPrefix(rest, "(") {
		if !strings.HasSuffix(rest, ")") {
			return models.Requirement{}, fmt.Errorf("unbalanced parentheses in %q", raw)
		}
		rest = strings.TrimSpace(rest[1 : len(rest)-1])
	}
	if rest != "" {
		for _, clause := range strings.Split(rest, ",") {
			if !clauseRegex.MatchString(strings.TrimSpace(clause)) {
				return models.Requirement{}, fmt.Errorf("invalid version clause %q in %q", strings.TrimSpace(clause), raw)
			}
		}
		req.Specifier = rest
	}

	return req, nil
}

// SplitClauses splits a specifier into (operator, version) pairs
func SplitClauses(specifier string) [][2]string {
	var clauses [][2]string
	for _, clause := range strings.Split(specifier, ",") {
		m := clauseRegex.FindStringSubmatch(strings.TrimSpace(clause))
		if m == nil {
			continue
		}
		clauses = append(clauses, [2]string{m[1], m[2]})
	}
	return clauses
}
