package extras

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acheong08/pyextras/pkg/models"
)

// demoManifest returns a complete manifest for project "demo" with extra
// [project] keys and the given optional-dependencies body.
func demoManifest(project, extras string) string {
	return fmt.Sprintf(`
[project]
name = "demo"
version = "1.0"
license = "MIT"
authors = [{name = "A"}]
%s

[build-system]
requires = ["flit_core"]
build-backend = "flit_core.buildapi"

[project.optional-dependencies]
%s
`, project, extras)
}

func byRule(report *models.Report, rule string) []models.Finding {
	var out []models.Finding
	for _, f := range report.Findings {
		if f.Rule == rule {
			out = append(out, f)
		}
	}
	return out
}

func TestCheckTestdata(t *testing.T) {
	manifest := loadTestdata(t)
	report := NewChecker(ToolOptions(manifest.Tool)...).Check(manifest)

	assert.NotEmpty(t, report.ID)
	assert.Equal(t, "etils", report.Project)
	assert.Equal(t, 18, report.Groups)
	assert.False(t, report.HasErrors())
	assert.Zero(t, report.Warnings())

	require.Len(t, report.Findings, 1)
	f := report.Findings[0]
	assert.Equal(t, RuleExtraNotNormalized, f.Rule)
	assert.Equal(t, models.SeverityInfo, f.Severity)
	assert.Equal(t, "array-types", f.Group)

	assert.Equal(t, []string{"absl-py", "einops", "numpy", "tqdm", "typing-extensions"}, report.Closures["etree"])
	assert.Len(t, report.Closures, 18)
}

func TestCheckTestdataWithoutExclusions(t *testing.T) {
	// Without [tool.pyextras], dev is part of the expected union
	report := NewChecker().Check(loadTestdata(t))

	mismatch := byRule(report, RuleAllMismatch)
	require.Len(t, mismatch, 1)
	assert.Contains(t, mismatch[0].Detail, "pytest (from dev)")
	assert.Contains(t, mismatch[0].Detail, "pylint>=2.6.0 (from dev)")
}

func TestCheckRules(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		rule     string
		severity models.Severity
		group    string
		message  string
		detail   []string
	}{
		{
			name:     "undefined extra",
			content:  demoManifest("", `a = ["demo[missing]"]`+"\n"+`all = ["demo[a]"]`),
			rule:     RuleUndefinedExtra,
			severity: models.SeverityError,
			group:    "a",
			message:  `extra "a" references undefined extra "missing"`,
		},
		{
			name:     "cycle",
			content:  demoManifest("", `a = ["demo[b]"]`+"\n"+`b = ["demo[a]"]`),
			rule:     RuleExtrasCycle,
			severity: models.SeverityError,
			group:    "a",
			message:  "extras cycle: a -> b -> a",
		},
		{
			name:     "all is missing requirements",
			content:  demoManifest("", `a = ["x"]`+"\n"+`b = ["y"]`+"\n"+`all = ["demo[a]"]`),
			rule:     RuleAllMismatch,
			severity: models.SeverityError,
			group:    "all",
			message:  `extra "all" is missing 1 requirement(s) declared by other extras`,
			detail:   []string{"y (from b)"},
		},
		{
			name:     "all pulls extra requirements",
			content:  demoManifest("", `a = ["x"]`+"\n"+`all = ["demo[a]", "z"]`),
			rule:     RuleAllMismatch,
			severity: models.SeverityError,
			group:    "all",
			message:  `extra "all" pulls 1 requirement(s) no other extra declares`,
			detail:   []string{"z"},
		},
		{
			name:     "no all extra",
			content:  demoManifest("", `a = ["x"]`),
			rule:     RuleAllMissing,
			severity: models.SeverityInfo,
			message:  `no "all" extra, aggregate check skipped`,
		},
		{
			name:     "dynamic conflict",
			content:  demoManifest(`dynamic = ["version"]`, `all = []`),
			rule:     RuleDynamicConflict,
			severity: models.SeverityError,
			message:  "project.version is listed in project.dynamic but also set statically",
		},
		{
			name:     "collision",
			content:  demoManifest("", `a_b = ["x"]`+"\n"+`a-b = ["y"]`),
			rule:     RuleExtraCollision,
			severity: models.SeverityError,
			group:    "a-b",
			message:  `extras "a_b", "a-b" all normalize to "a-b"`,
		},
		{
			name:     "empty extra",
			content:  demoManifest("", `a = []`),
			rule:     RuleEmptyExtra,
			severity: models.SeverityWarning,
			group:    "a",
			message:  `extra "a" has no entries`,
		},
		{
			name:     "duplicate requirement",
			content:  demoManifest("", `a = ["x>=1", "X >= 1"]`),
			rule:     RuleDuplicate,
			severity: models.SeverityWarning,
			group:    "a",
			message:  `"x>=1" is listed more than once`,
		},
		{
			name:     "duplicate self reference",
			content:  demoManifest("", `a = ["x"]`+"\n"+`b = ["demo[a]", "Demo[A]"]`),
			rule:     RuleDuplicate,
			severity: models.SeverityWarning,
			group:    "b",
			message:  `"demo[a]" is listed more than once`,
		},
		{
			name:     "unsatisfiable bounds",
			content:  demoManifest("", `a = ["x>=2,<1"]`),
			rule:     RuleUnsatisfiableBounds,
			severity: models.SeverityWarning,
			group:    "a",
			message:  `"x>=2,<1": unsatisfiable version bounds: lower bound >=2 excludes upper bound <1`,
		},
		{
			name:     "invalid requirement",
			content:  demoManifest("", `a = ["x >>1"]`),
			rule:     RuleInvalidRequirement,
			severity: models.SeverityError,
			group:    "a",
			message:  `cannot parse "x >>1": invalid version clause ">>1" in "x >>1"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := NewChecker().Check(manifestFrom(t, tt.content))

			found := byRule(report, tt.rule)
			require.NotEmpty(t, found, "expected a %s finding, got %+v", tt.rule, report.Findings)
			assert.Equal(t, tt.severity, found[0].Severity)
			assert.Equal(t, tt.group, found[0].Group)
			assert.Equal(t, tt.message, found[0].Message)
			if tt.detail != nil {
				assert.Equal(t, tt.detail, found[0].Detail)
			}
		})
	}
}

func TestCheckMissingFields(t *testing.T) {
	report := NewChecker().Check(manifestFrom(t, `
[project]
name = "demo"
`))

	var messages []string
	for _, f := range byRule(report, RuleMissingField) {
		assert.Equal(t, models.SeverityError, f.Severity)
		messages = append(messages, f.Message)
	}
	assert.Equal(t, []string{
		"project.version is empty and not listed in project.dynamic",
		"project.license is empty",
		"project.authors is empty",
	}, messages)

	build := byRule(report, RuleBuildSystem)
	require.Len(t, build, 1)
	assert.Equal(t, "no [build-system] table", build[0].Message)
}

func TestCheckWhitespaceFieldsAreMissing(t *testing.T) {
	report := NewChecker().Check(manifestFrom(t, `
[project]
name = " "
version = " "
license = "  "
authors = [{name = " "}, {email = "\t"}]
`))

	var messages []string
	for _, f := range byRule(report, RuleMissingField) {
		messages = append(messages, f.Message)
	}
	assert.Equal(t, []string{
		"project.name is empty",
		"project.version is empty and not listed in project.dynamic",
		"project.license is empty",
		"project.authors is empty",
	}, messages)
}

func TestCheckDynamicFieldsSatisfyRequired(t *testing.T) {
	report := NewChecker().Check(manifestFrom(t, `
[project]
name = "demo"
dynamic = ["version", "license", "authors"]

[build-system]
requires = ["hatchling"]
build-backend = "hatchling.build"
`))

	assert.Empty(t, byRule(report, RuleMissingField))
	assert.Empty(t, byRule(report, RuleDynamicConflict))
}

func TestCheckerOptions(t *testing.T) {
	cfg := models.ToolConfig{AllGroup: "everything", AllExclude: []string{"dev"}, Ignore: []string{RuleAllMissing}}

	c := NewChecker(ToolOptions(cfg)...)
	assert.Equal(t, "everything", c.AllGroup)
	assert.Equal(t, []string{"dev"}, c.AllExclude)

	// Later options win, empty ones leave the value alone
	c = NewChecker(append(ToolOptions(cfg), WithAllGroup("full"), WithAllExclude())...)
	assert.Equal(t, "full", c.AllGroup)
	assert.Equal(t, []string{"dev"}, c.AllExclude)

	report := NewChecker(WithIgnore(RuleAllMissing)).Check(manifestFrom(t, demoManifest("", `a = ["x"]`)))
	assert.Empty(t, byRule(report, RuleAllMissing))
}

func TestCheckCustomAllGroup(t *testing.T) {
	content := demoManifest("", `a = ["x"]`+"\n"+`b = ["y"]`+"\n"+`full = ["demo[a,b]"]`)
	report := NewChecker(WithAllGroup("full")).Check(manifestFrom(t, content))

	assert.False(t, report.HasErrors())
	assert.Empty(t, byRule(report, RuleAllMissing))
}
