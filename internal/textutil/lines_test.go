package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLines(t *testing.T) {
	lines := NewLines(0)
	lines.Append("dict(")
	lines.Indent(func() {
		lines.Append("a=1,")
		lines.Append("b=2,")
	})
	lines.Append(")")

	assert.Equal(t, 4, lines.Len())
	assert.Equal(t, "dict(\n    a=1,\n    b=2,\n)", lines.Join(false))
	assert.Equal(t, "dict(a=1,b=2,)", lines.Join(true))
	assert.Equal(t, lines.Join(false), lines.String())
}

func TestLinesNestedMultiline(t *testing.T) {
	lines := NewLines(2)
	lines.Append("root")
	lines.Indent(func() {
		lines.Append("a\n\nb")
		lines.Indent(func() {
			lines.Extend("c", "d")
		})
		lines.Appendf("%s=%d", "e", 5)
	})

	assert.Equal(t, "root\n  a\n\n  b\n    c\n    d\n  e=5", lines.Join(false))
}

func TestMakeBlock(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		fields   []Field
		braces   Braces
		expected string
	}{
		{
			name:     "empty",
			header:   "A",
			braces:   Parens,
			expected: "A()",
		},
		{
			name:     "single field collapses",
			header:   "A",
			fields:   []Field{{"x", "1"}},
			braces:   Parens,
			expected: "A(x=1)",
		},
		{
			name:     "multiple fields",
			header:   "A",
			fields:   []Field{{"x", "1"}, {"y", "2"}},
			braces:   Parens,
			expected: "A(\n    x=1,\n    y=2,\n)",
		},
		{
			name:     "brackets",
			header:   "",
			fields:   []Field{{"x", "1"}, {"y", "2"}},
			braces:   Brackets,
			expected: "[\n    x=1,\n    y=2,\n]",
		},
		{
			name:     "custom braces",
			header:   "B",
			fields:   []Field{{"k", "v"}},
			braces:   Braces{"<", ">"},
			expected: "B<k=v>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, MakeBlock(tt.header, tt.fields, tt.braces))
		})
	}
}

func TestDedent(t *testing.T) {
	text := `
      A(
         x=1,
      )
      `
	assert.Equal(t, "A(\n   x=1,\n)", Dedent(text))
	assert.Equal(t, "a\n\nb", Dedent("\t a\n   \n\t b\n"))
	assert.Equal(t, "", Dedent("   \n  "))
}
