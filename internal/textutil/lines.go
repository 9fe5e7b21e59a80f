// Package textutil builds indented multi-line text for human readable output.
//
//	lines := textutil.NewLines(4)
//	lines.Append("dict(")
//	lines.Indent(func() {
//		lines.Append("a=1,")
//		lines.Append("b=2,")
//	})
//	lines.Append(")")
//	text := lines.Join(false)
//
// produces
//
//	dict(
//	    a=1,
//	    b=2,
//	)
package textutil

import (
	"fmt"
	"strings"
)

const defaultIndent = 4

type line struct {
	content    string
	indentLvl  int
	indentSize int
}

// Lines accumulates lines, each tagged with the indentation level active
// when it was added.
type Lines struct {
	lines      []line
	indentSize int
	indentLvl  int
}

// NewLines creates an empty builder. A non-positive indent defaults to 4.
func NewLines(indent int) *Lines {
	if indent <= 0 {
		indent = defaultIndent
	}
	return &Lines{indentSize: indent}
}

// Append adds a line. The content may itself span several lines.
func (l *Lines) Append(content string) {
	l.lines = append(l.lines, line{
		content:    content,
		indentLvl:  l.indentLvl,
		indentSize: l.indentSize,
	})
}

// Appendf adds a formatted line
func (l *Lines) Appendf(format string, args ...interface{}) {
	l.Append(fmt.Sprintf(format, args...))
}

// Extend adds every line
func (l *Lines) Extend(contents ...string) {
	for _, c := range contents {
		l.Append(c)
	}
}

// Indent runs fn with the indentation level increased by one
func (l *Lines) Indent(fn func()) {
	l.indentLvl++
	defer func() { l.indentLvl-- }()
	fn()
}

// Len returns the number of lines added
func (l *Lines) Len() int {
	return len(l.lines)
}

// Join returns the text. With collapse, lines are concatenated without
// separator or indentation.
func (l *Lines) Join(collapse bool) string {
	parts := make([]string, 0, len(l.lines))
	for _, ln := range l.lines {
		content := ln.content
		if !collapse {
			content = indent(content, strings.Repeat(" ", ln.indentLvl*ln.indentSize))
		}
		parts = append(parts, content)
	}

	sep := "\n"
	if collapse {
		sep = ""
	}
	return strings.Join(parts, sep)
}

// String implements fmt.Stringer
func (l *Lines) String() string {
	return l.Join(false)
}

// indent prefixes every non-blank sub-line of text
func indent(text, prefix string) string {
	if prefix == "" {
		return text
	}
	sub := strings.Split(text, "\n")
	for i, s := range sub {
		if strings.TrimSpace(s) != "" {
			sub[i] = prefix + s
		}
	}
	return strings.Join(sub, "\n")
}
