package extras

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/acheong08/pyextras/internal/parser"
	"github.com/acheong08/pyextras/pkg/models"
)

// Rule IDs
const (
	RuleMissingField        = "missing-field"
	RuleUndefinedExtra      = "undefined-extra"
	RuleExtrasCycle         = "extras-cycle"
	RuleAllMismatch         = "all-mismatch"
	RuleAllMissing          = "all-missing"
	RuleInvalidRequirement  = "invalid-requirement"
	RuleExtraCollision      = "extra-collision"
	RuleExtraNotNormalized  = "extra-not-normalized"
	RuleDuplicate           = "duplicate-requirement"
	RuleEmptyExtra          = "empty-extra"
	RuleUnsatisfiableBounds = "unsatisfiable-bounds"
	RuleBuildSystem         = "build-system"
	RuleDynamicConflict     = "dynamic-conflict"
)

// Checker audits manifests
type Checker struct {
	AllGroup   string
	AllExclude []string
	Ignore     []string
}

// Option configures a Checker
type Option func(*Checker)

// WithAllGroup sets the extra expected to aggregate every other extra
func WithAllGroup(name string) Option {
	return func(c *Checker) {
		if name != "" {
			c.AllGroup = name
		}
	}
}

// WithAllExclude sets extras left out of the `all` comparison
func WithAllExclude(groups ...string) Option {
	return func(c *Checker) {
		if len(groups) > 0 {
			c.AllExclude = groups
		}
	}
}

// WithIgnore drops findings of the given rules
func WithIgnore(rules ...string) Option {
	return func(c *Checker) {
		if len(rules) > 0 {
			c.Ignore = rules
		}
	}
}

// ToolOptions converts a [tool.pyextras] table into options
func ToolOptions(cfg models.ToolConfig) []Option {
	return []Option{
		WithAllGroup(cfg.AllGroup),
		WithAllExclude(cfg.AllExclude...),
		WithIgnore(cfg.Ignore...),
	}
}

// NewChecker creates a checker. Later options override earlier ones.
func NewChecker(opts ...Option) *Checker {
	c := &Checker{AllGroup: parser.DefaultAllGroup}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check builds the extras graph of m and audits it
func (c *Checker) Check(m *models.Manifest) *models.Report {
	return c.CheckGraph(m, Build(m))
}

// CheckGraph audits a manifest whose graph was already built
func (c *Checker) CheckGraph(m *models.Manifest, g *models.ExtrasGraph) *models.Report {
	report := &models.Report{
		ID:       uuid.NewString(),
		Project:  m.Project.Name,
		Version:  m.Project.Version,
		Path:     m.Path,
		Groups:   len(g.Groups),
		Edges:    len(g.Edges()),
		Findings: []models.Finding{},
		Closures: make(map[string][]string, len(g.Groups)),
	}

	report.Add(checkFields(m)...)
	report.Add(checkDynamic(m)...)
	report.Add(checkBuildSystem(m)...)
	report.Add(checkNames(g)...)
	report.Add(checkInvalid(g)...)
	report.Add(checkGroups(g)...)
	report.Add(checkUndefined(g)...)
	report.Add(checkCycles(g)...)
	report.Add(c.checkAll(g)...)

	for _, name := range g.Order {
		if res, err := Closure(g, name); err == nil {
			report.Closures[name] = res.Keys()
		}
	}

	report.Filter(c.Ignore)
	return report
}

func checkFields(m *models.Manifest) []models.Finding {
	var findings []models.Finding
	p := &m.Project

	missing := func(field string) {
		findings = append(findings, models.Finding{
			Rule:     RuleMissingField,
			Severity: models.SeverityError,
			Message:  fmt.Sprintf("project.%s is empty", field),
		})
	}

	if strings.TrimSpace(p.Name) == "" {
		missing("name")
	}
	if strings.TrimSpace(p.Version) == "" && !p.IsDynamic("version") {
		findings = append(findings, models.Finding{
			Rule:     RuleMissingField,
			Severity: models.SeverityError,
			Message:  "project.version is empty and not listed in project.dynamic",
		})
	}
	if p.License.Empty() && len(p.LicenseFiles) == 0 && !p.IsDynamic("license") {
		missing("license")
	}

	hasAuthor := false
	for _, a := range p.Authors {
		if !a.Empty() {
			hasAuthor = true
			break
		}
	}
	if !hasAuthor && !p.IsDynamic("authors") {
		missing("authors")
	}

	return findings
}

func checkDynamic(m *models.Manifest) []models.Finding {
	p := &m.Project
	static := map[string]bool{
		"version":               p.Version != "",
		"description":           p.Description != "",
		"readme":                p.Readme != (models.Readme{}),
		"license":               !p.License.Empty(),
		"authors":               len(p.Authors) > 0,
		"maintainers":           len(p.Maintainers) > 0,
		"classifiers":           len(p.Classifiers) > 0,
		"keywords":              len(p.Keywords) > 0,
		"requires-python":       p.RequiresPython != "",
		"dependencies":          len(p.Dependencies) > 0,
		"optional-dependencies": len(p.OptionalDependencies) > 0,
		"urls":                  len(p.URLs) > 0,
	}

	var findings []models.Finding
	for _, field := range p.Dynamic {
		if field == "name" {
			findings = append(findings, models.Finding{
				Rule:     RuleDynamicConflict,
				Severity: models.SeverityError,
				Message:  "project.name cannot be dynamic",
			})
			continue
		}
		if static[field] {
			findings = append(findings, models.Finding{
				Rule:     RuleDynamicConflict,
				Severity: models.SeverityError,
				Message:  fmt.Sprintf("project.%s is listed in project.dynamic but also set statically", field),
			})
		}
	}
	return findings
}

func checkBuildSystem(m *models.Manifest) []models.Finding {
	warn := func(msg string) models.Finding {
		return models.Finding{Rule: RuleBuildSystem, Severity: models.SeverityWarning, Message: msg}
	}

	if !m.HasBuildSystem {
		return []models.Finding{warn("no [build-system] table")}
	}

	var findings []models.Finding
	if len(m.BuildSystem.Requires) == 0 {
		findings = append(findings, warn("build-system.requires is empty"))
	}
	if m.BuildSystem.Backend == "" {
		findings = append(findings, warn("build-system.build-backend is not set"))
	}
	return findings
}

func checkNames(g *models.ExtrasGraph) []models.Finding {
	var findings []models.Finding
	for _, name := range g.Order {
		aliases := g.Aliases[name]
		if len(aliases) > 1 {
			findings = append(findings, models.Finding{
				Rule:     RuleExtraCollision,
				Severity: models.SeverityError,
				Group:    name,
				Message:  fmt.Sprintf("extras %s all normalize to %q", quoteAll(aliases), name),
			})
		}
		for _, declared := range aliases {
			if declared != name {
				findings = append(findings, models.Finding{
					Rule:     RuleExtraNotNormalized,
					Severity: models.SeverityInfo,
					Group:    name,
					Message:  fmt.Sprintf("extra %q is not normalized, installers see it as %q", declared, name),
				})
			}
		}
	}
	return findings
}

func checkInvalid(g *models.ExtrasGraph) []models.Finding {
	var findings []models.Finding
	for _, inv := range g.Invalid {
		findings = append(findings, models.Finding{
			Rule:     RuleInvalidRequirement,
			Severity: models.SeverityError,
			Group:    inv.Group,
			Message:  fmt.Sprintf("cannot parse %q: %s", inv.Raw, inv.Err),
		})
	}
	return findings
}

func checkGroups(g *models.ExtrasGraph) []models.Finding {
	var findings []models.Finding
	for _, name := range g.Order {
		group := g.Groups[name]

		if group.Entries == 0 {
			findings = append(findings, models.Finding{
				Rule:     RuleEmptyExtra,
				Severity: models.SeverityWarning,
				Group:    name,
				Message:  fmt.Sprintf("extra %q has no entries", name),
			})
		}

		seen := make(map[string]bool)
		dup := func(key string) {
			if seen[key] {
				findings = append(findings, models.Finding{
					Rule:     RuleDuplicate,
					Severity: models.SeverityWarning,
					Group:    name,
					Message:  fmt.Sprintf("%q is listed more than once", key),
				})
			}
			seen[key] = true
		}
		for _, req := range group.Requirements {
			dup(req.Key())
		}
		for _, inc := range group.Includes {
			dup(fmt.Sprintf("%s[%s]", g.Project, inc))
		}

		for _, req := range group.Requirements {
			if err := CheckBounds(req); err != nil {
				findings = append(findings, models.Finding{
					Rule:     RuleUnsatisfiableBounds,
					Severity: models.SeverityWarning,
					Group:    name,
					Message:  fmt.Sprintf("%q: %v", req.Raw, err),
				})
			}
		}
	}
	return findings
}

func checkUndefined(g *models.ExtrasGraph) []models.Finding {
	var findings []models.Finding
	for _, name := range g.Order {
		for _, nbr := range g.Neighbors(name) {
			if !g.HasGroup(nbr) {
				findings = append(findings, models.Finding{
					Rule:     RuleUndefinedExtra,
					Severity: models.SeverityError,
					Group:    name,
					Message:  fmt.Sprintf("extra %q references undefined extra %q", name, nbr),
				})
			}
		}
	}
	return findings
}

func checkCycles(g *models.ExtrasGraph) []models.Finding {
	var findings []models.Finding
	for _, cycle := range FindCycles(g) {
		findings = append(findings, models.Finding{
			Rule:     RuleExtrasCycle,
			Severity: models.SeverityError,
			Group:    cycle[0],
			Message:  "extras cycle: " + strings.Join(cycle, " -> "),
		})
	}
	return findings
}

// checkAll compares the closure of the `all` extra with the union of the
// closures of every other extra that is not excluded.
func (c *Checker) checkAll(g *models.ExtrasGraph) []models.Finding {
	allName := parser.NormalizeExtra(c.AllGroup)
	if !g.HasGroup(allName) {
		return []models.Finding{{
			Rule:     RuleAllMissing,
			Severity: models.SeverityInfo,
			Message:  fmt.Sprintf("no %q extra, aggregate check skipped", c.AllGroup),
		}}
	}

	excluded := map[string]bool{allName: true}
	for _, name := range c.AllExclude {
		excluded[parser.NormalizeExtra(name)] = true
	}

	all, err := Closure(g, allName)
	if err != nil {
		return nil
	}
	actual := make(map[string]bool, len(all.Requirements))
	for _, key := range all.Keys() {
		actual[key] = true
	}

	expected := make(map[string]string)
	for _, name := range g.Order {
		if excluded[name] {
			continue
		}
		res, err := Closure(g, name)
		if err != nil {
			continue
		}
		for _, key := range res.Keys() {
			if _, ok := expected[key]; !ok {
				expected[key] = name
			}
		}
	}

	var missing, unexpected []string
	for _, key := range sortedKeys(expected) {
		if !actual[key] {
			missing = append(missing, fmt.Sprintf("%s (from %s)", key, expected[key]))
		}
	}
	for _, key := range all.Keys() {
		if _, ok := expected[key]; !ok {
			unexpected = append(unexpected, key)
		}
	}

	var findings []models.Finding
	if len(missing) > 0 {
		findings = append(findings, models.Finding{
			Rule:     RuleAllMismatch,
			Severity: models.SeverityError,
			Group:    allName,
			Message:  fmt.Sprintf("extra %q is missing %d requirement(s) declared by other extras", allName, len(missing)),
			Detail:   missing,
		})
	}
	if len(unexpected) > 0 {
		findings = append(findings, models.Finding{
			Rule:     RuleAllMismatch,
			Severity: models.SeverityError,
			Group:    allName,
			Message:  fmt.Sprintf("extra %q pulls %d requirement(s) no other extra declares", allName, len(unexpected)),
			Detail:   unexpected,
		})
	}
	return findings
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func quoteAll(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = fmt.Sprintf("%q", v)
	}
	return strings.Join(quoted, ", ")
}
