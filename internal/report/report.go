// Package report renders check reports, extras graphs and closures.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/acheong08/pyextras/internal/textutil"
	"github.com/acheong08/pyextras/pkg/models"
)

// Format selects a renderer
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatTree Format = "tree"
	FormatDot  Format = "dot"
)

// Options tunes text output
type Options struct {
	NoColor    bool
	Verbose    bool // also print the closure of every extra
	Suppressed int  // findings removed by a baseline
}

// palette holds the colors used by text output
type palette struct {
	err, warn, info, ok, bold, faint *color.Color
}

func newPalette(noColor bool) *palette {
	p := &palette{
		err:   color.New(color.FgRed, color.Bold),
		warn:  color.New(color.FgYellow),
		info:  color.New(color.FgCyan),
		ok:    color.New(color.FgGreen),
		bold:  color.New(color.Bold),
		faint: color.New(color.Faint),
	}
	if noColor {
		for _, c := range []*color.Color{p.err, p.warn, p.info, p.ok, p.bold, p.faint} {
			c.DisableColor()
		}
	}
	return p
}

func (p *palette) severity(s models.Severity) string {
	label := fmt.Sprintf("%-7s", s)
	switch s {
	case models.SeverityError:
		return p.err.Sprint(label)
	case models.SeverityWarning:
		return p.warn.Sprint(label)
	default:
		return p.info.Sprint(label)
	}
}

// Render writes rep to w
func Render(w io.Writer, rep *models.Report, format Format, opts Options) error {
	switch format {
	case FormatJSON:
		return WriteJSON(w, rep)
	case FormatText, "":
		_, err := io.WriteString(w, renderText(rep, opts)+"\n")
		return err
	default:
		return fmt.Errorf("unsupported report format: %s", format)
	}
}

// WriteJSON writes v as indented JSON
func WriteJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

func renderText(rep *models.Report, opts Options) string {
	p := newPalette(opts.NoColor)
	lines := textutil.NewLines(2)

	header := p.bold.Sprint(rep.Project)
	if rep.Version != "" {
		header += " " + rep.Version
	}
	if rep.Path != "" {
		header += p.faint.Sprintf(" (%s)", rep.Path)
	}
	lines.Append(header)
	lines.Indent(func() {
		lines.Appendf("%d extras, %d references", rep.Groups, rep.Edges)
	})

	if len(rep.Findings) > 0 {
		lines.Append("")
	}
	for _, f := range rep.Findings {
		where := ""
		if f.Group != "" {
			where = fmt.Sprintf(" [%s]", f.Group)
		}
		lines.Appendf("%s %s%s: %s", p.severity(f.Severity), f.Rule, where, f.Message)
		if len(f.Detail) > 0 {
			lines.Indent(func() {
				lines.Indent(func() {
					for _, d := range f.Detail {
						lines.Append("- " + d)
					}
				})
			})
		}
	}

	if opts.Verbose && len(rep.Closures) > 0 {
		lines.Append("")
		lines.Append(p.bold.Sprint("closures"))
		lines.Indent(func() {
			for _, name := range sortedKeys(rep.Closures) {
				keys := rep.Closures[name]
				lines.Appendf("%s (%d)", name, len(keys))
				lines.Indent(func() {
					lines.Extend(keys...)
				})
			}
		})
	}

	lines.Append("")
	lines.Append(summary(rep, opts, p))
	return lines.Join(false)
}

func summary(rep *models.Report, opts Options, p *palette) string {
	errs, warns, infos := rep.Errors(), rep.Warnings(), rep.Count(models.SeverityInfo)

	var parts []string
	switch {
	case errs > 0:
		parts = append(parts, p.err.Sprintf("%d error(s)", errs))
	case warns == 0 && infos == 0:
		parts = append(parts, p.ok.Sprint("no problems found"))
	}
	if warns > 0 {
		parts = append(parts, p.warn.Sprintf("%d warning(s)", warns))
	}
	if infos > 0 {
		parts = append(parts, p.info.Sprintf("%d info", infos))
	}
	if opts.Suppressed > 0 {
		parts = append(parts, p.faint.Sprintf("%d suppressed by baseline", opts.Suppressed))
	}
	return strings.Join(parts, ", ")
}
