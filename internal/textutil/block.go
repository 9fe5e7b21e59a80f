package textutil

import "strings"

// Braces is an opening/closing pair
type Braces [2]string

var (
	Parens   = Braces{"(", ")"}
	Brackets = Braces{"[", "]"}
	Curly    = Braces{"{", "}"}
)

// Field is one key=value entry of a block
type Field struct {
	Key   string
	Value string
}

// MakeBlock formats a code-like block:
//
//	header(
//	    k=v,
//	    ...
//	)
//
// With at most one field the block is collapsed onto a single line.
func MakeBlock(header string, fields []Field, braces Braces) string {
	collapse := len(fields) <= 1
	trailing := ","
	if collapse {
		trailing = ""
	}

	lines := NewLines(defaultIndent)
	lines.Append(header + braces[0])
	lines.Indent(func() {
		for _, f := range fields {
			lines.Append(f.Key + "=" + f.Value + trailing)
		}
	})
	lines.Append(braces[1])

	return lines.Join(collapse)
}

// Dedent removes the whitespace prefix common to all non-blank lines, then
// trims the result.
func Dedent(text string) string {
	sub := strings.Split(text, "\n")

	margin := ""
	first := true
	for i, s := range sub {
		if strings.TrimSpace(s) == "" {
			sub[i] = ""
			continue
		}
		lead := s[:len(s)-len(strings.TrimLeft(s, " \t"))]
		if first {
			margin = lead
			first = false
			continue
		}
		margin = commonPrefix(margin, lead)
	}

	if margin != "" {
		for i, s := range sub {
			sub[i] = strings.TrimPrefix(s, margin)
		}
	}
	return strings.TrimSpace(strings.Join(sub, "\n"))
}

func commonPrefix(a, b string) string {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return a[:i]
		}
	}
	return a[:n]
}
