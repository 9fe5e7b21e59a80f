package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/acheong08/pyextras/internal/extras"
	"github.com/acheong08/pyextras/internal/textutil"
	"github.com/acheong08/pyextras/pkg/models"
)

// RenderGraph writes the extras graph as an indented tree, Graphviz DOT or JSON
func RenderGraph(w io.Writer, g *models.ExtrasGraph, format Format) error {
	var out string
	switch format {
	case FormatTree, FormatText, "":
		out = renderTree(g)
	case FormatDot:
		out = renderDot(g)
	case FormatJSON:
		return WriteJSON(w, g)
	default:
		return fmt.Errorf("unsupported graph format: %s", format)
	}
	_, err := io.WriteString(w, out+"\n")
	return err
}

// renderTree prints every extra nobody references as a root, then any
// extra left unvisited (only reachable through a cycle).
func renderTree(g *models.ExtrasGraph) string {
	incoming := make(map[string]bool)
	for _, e := range g.Edges() {
		if e.From != e.To {
			incoming[e.To] = true
		}
	}

	lines := textutil.NewLines(2)
	lines.Append(g.Project)

	printed := make(map[string]bool)
	onPath := make(map[string]bool)

	var walk func(name string)
	walk = func(name string) {
		group, ok := g.Groups[name]
		switch {
		case !ok:
			lines.Appendf("%s (undefined)", name)
			return
		case onPath[name]:
			lines.Appendf("%s (cycle)", name)
			return
		}

		label := name
		if n := len(group.Requirements); n > 0 {
			label = fmt.Sprintf("%s [%d]", name, n)
		}
		if printed[name] && len(g.Neighbors(name)) > 0 {
			lines.Append(label + " ...")
			return
		}
		lines.Append(label)
		printed[name] = true

		onPath[name] = true
		lines.Indent(func() {
			for _, nbr := range g.Neighbors(name) {
				walk(nbr)
			}
		})
		onPath[name] = false
	}

	lines.Indent(func() {
		for _, name := range g.Order {
			if !incoming[name] {
				walk(name)
			}
		}
		for _, name := range g.Order {
			if !printed[name] {
				walk(name)
			}
		}
	})

	return lines.Join(false)
}

func renderDot(g *models.ExtrasGraph) string {
	lines := textutil.NewLines(2)
	lines.Appendf("digraph %q {", g.Project)
	lines.Indent(func() {
		lines.Append("rankdir=LR;")
		lines.Append("node [shape=box];")

		undefined := make(map[string]bool)
		for _, name := range g.Order {
			group := g.Groups[name]
			lines.Appendf("%q [label=%q];", name, fmt.Sprintf("%s\n%d req", name, len(group.Requirements)))
		}
		for _, e := range g.Edges() {
			if !g.HasGroup(e.To) {
				undefined[e.To] = true
			}
		}
		for _, name := range sortedSet(undefined) {
			lines.Appendf("%q [style=dashed, color=red];", name)
		}

		inCycle := make(map[models.Edge]bool)
		for _, cycle := range extras.FindCycles(g) {
			for i := 0; i+1 < len(cycle); i++ {
				inCycle[models.Edge{From: cycle[i], To: cycle[i+1]}] = true
			}
		}
		for _, e := range g.Edges() {
			attrs := ""
			if inCycle[e] {
				attrs = " [color=red]"
			}
			lines.Appendf("%q -> %q%s;", e.From, e.To, attrs)
		}
	})
	lines.Append("}")
	return lines.Join(false)
}

// RenderClosure writes the resolution of one extra
func RenderClosure(w io.Writer, res *extras.Resolution, format Format) error {
	switch format {
	case FormatJSON:
		return WriteJSON(w, res)
	case FormatText, "":
	default:
		return fmt.Errorf("unsupported closure format: %s", format)
	}

	fields := []textutil.Field{{Key: "extras", Value: strings.Join(res.Groups, " ")}}
	if len(res.Missing) > 0 {
		fields = append(fields, textutil.Field{Key: "missing", Value: strings.Join(res.Missing, " ")})
	}

	lines := textutil.NewLines(4)
	lines.Append(textutil.MakeBlock(res.Group, fields, textutil.Parens))
	lines.Indent(func() {
		for _, req := range res.Requirements {
			lines.Append(req.Key())
		}
	})

	_, err := io.WriteString(w, lines.Join(false)+"\n")
	return err
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedSet(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
