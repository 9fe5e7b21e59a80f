package extras

import (
	"fmt"
	"sort"

	"github.com/acheong08/pyextras/internal/parser"
	"github.com/acheong08/pyextras/pkg/models"
)

const (
	RuleLockDrift          = "lock-drift"
	RuleLockMissingPackage = "lock-missing-package"
)

// CheckLock compares the extras graph against a uv.lock: every declared
// extra should be locked for the project, and every external requirement
// should resolve to a locked package.
func CheckLock(g *models.ExtrasGraph, lock *parser.UvLock) []models.Finding {
	root := lock.Package(g.Project)
	if root == nil {
		return []models.Finding{{
			Rule:     RuleLockDrift,
			Severity: models.SeverityWarning,
			Message:  fmt.Sprintf("project %q not found in uv.lock", g.Project),
		}}
	}

	var findings []models.Finding

	locked := make(map[string]bool, len(root.OptionalDependencies))
	for extra := range root.OptionalDependencies {
		locked[parser.NormalizeExtra(extra)] = true
	}

	for _, name := range g.Order {
		if !locked[name] {
			findings = append(findings, models.Finding{
				Rule:     RuleLockDrift,
				Severity: models.SeverityWarning,
				Group:    name,
				Message:  fmt.Sprintf("extra %q is not locked", name),
			})
		}
	}

	var stale []string
	for extra := range locked {
		if !g.HasGroup(extra) {
			stale = append(stale, extra)
		}
	}
	sort.Strings(stale)
	for _, extra := range stale {
		findings = append(findings, models.Finding{
			Rule:     RuleLockDrift,
			Severity: models.SeverityWarning,
			Group:    extra,
			Message:  fmt.Sprintf("locked extra %q is not declared", extra),
		})
	}

	reported := make(map[string]bool)
	for _, name := range g.Order {
		for _, req := range g.Groups[name].Requirements {
			if req.URL != "" || reported[req.Name] {
				continue
			}
			if lock.Package(req.Name) == nil {
				reported[req.Name] = true
				findings = append(findings, models.Finding{
					Rule:     RuleLockMissingPackage,
					Severity: models.SeverityWarning,
					Group:    name,
					Message:  fmt.Sprintf("requirement %q has no locked package", req.Name),
				})
			}
		}
	}

	return findings
}
