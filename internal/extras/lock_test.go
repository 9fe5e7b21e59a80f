package extras

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acheong08/pyextras/internal/parser"
	"github.com/acheong08/pyextras/pkg/models"
)

func TestCheckLock(t *testing.T) {
	graph := Build(loadTestdata(t))
	lock, err := parser.ParseUvLock("../../testdata/uv.lock")
	require.NoError(t, err)

	findings := CheckLock(graph, lock)

	drift := make(map[string]bool)
	missing := make(map[string]bool)
	for _, f := range findings {
		assert.Equal(t, models.SeverityWarning, f.Severity)
		switch f.Rule {
		case RuleLockDrift:
			drift[f.Group] = true
		case RuleLockMissingPackage:
			missing[f.Message] = true
		}
	}

	assert.Len(t, drift, 14)
	for _, locked := range []string{"epy", "enp", "array-types", "etqdm"} {
		assert.False(t, drift[locked], "%s is locked", locked)
	}
	assert.True(t, drift["ecolab"])

	assert.True(t, missing[`requirement "simple-parsing" has no locked package`])
	assert.True(t, missing[`requirement "jax" has no locked package`])
	assert.False(t, missing[`requirement "numpy" has no locked package`])
	assert.False(t, missing[`requirement "typing-extensions" has no locked package`])
}

func TestCheckLockStaleAndMissingRoot(t *testing.T) {
	graph := Build(manifestFrom(t, demoManifest("", `a = ["x"]`)))

	lock, err := parser.ParseUvLockBytes([]byte(`
version = 1
requires-python = ">=3.10"

[[package]]
name = "demo"
version = "1.0"
source = { editable = "." }

[package.optional-dependencies]
a = [{ name = "x" }]
old = [{ name = "y" }]

[[package]]
name = "x"
version = "2.0"
source = { registry = "https://pypi.org/simple" }
`))
	require.NoError(t, err)

	findings := CheckLock(graph, lock)
	require.Len(t, findings, 1)
	assert.Equal(t, RuleLockDrift, findings[0].Rule)
	assert.Equal(t, "old", findings[0].Group)
	assert.Equal(t, `locked extra "old" is not declared`, findings[0].Message)

	other := Build(manifestFrom(t, `
[project]
name = "other"
`))
	findings = CheckLock(other, lock)
	require.Len(t, findings, 1)
	assert.Equal(t, `project "other" not found in uv.lock`, findings[0].Message)
}
