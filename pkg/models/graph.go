package models

import "sort"

// Group is a single optional-dependency group ("extra") in the graph
type Group struct {
	Name         string        `json:"name"`               // normalized: "array-types"
	Declared     string        `json:"declared"`           // as written: "array_types"
	Requirements []Requirement `json:"requirements"`       // third-party entries
	Includes     []string      `json:"includes,omitempty"` // self-referenced groups, normalized
	Entries      int           `json:"entries"`            // number of raw entries in the manifest
}

// InvalidRequirement is a group entry that could not be decoded
type InvalidRequirement struct {
	Group string `json:"group"`
	Raw   string `json:"raw"`
	Err   string `json:"error"`
}

// Edge is a self-reference from one group to another
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// ExtrasGraph is the reference graph between the extras of one project
type ExtrasGraph struct {
	Project string               `json:"project"` // normalized project name
	Groups  map[string]*Group    `json:"groups"`  // keyed by normalized name
	Order   []string             `json:"order"`   // normalized names in declaration order
	Invalid []InvalidRequirement `json:"invalid,omitempty"`
	Aliases map[string][]string  `json:"-"` // normalized name -> declared names
}

// NewExtrasGraph creates a new empty graph
func NewExtrasGraph(project string) *ExtrasGraph {
	return &ExtrasGraph{
		Project: project,
		Groups:  make(map[string]*Group),
		Aliases: make(map[string][]string),
	}
}

// AddGroup adds a group to the graph. A group whose normalized name is
// already present is merged into the existing one.
func (g *ExtrasGraph) AddGroup(group *Group) {
	g.Aliases[group.Name] = append(g.Aliases[group.Name], group.Declared)
	if existing, ok := g.Groups[group.Name]; ok {
		existing.Requirements = append(existing.Requirements, group.Requirements...)
		existing.Includes = append(existing.Includes, group.Includes...)
		existing.Entries += group.Entries
		return
	}
	g.Groups[group.Name] = group
	g.Order = append(g.Order, group.Name)
}

// HasGroup reports whether a group with the normalized name exists
func (g *ExtrasGraph) HasGroup(name string) bool {
	_, ok := g.Groups[name]
	return ok
}

// Names returns the group names sorted lexicographically
func (g *ExtrasGraph) Names() []string {
	names := make([]string, 0, len(g.Groups))
	for name := range g.Groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Edges returns every self-reference, sorted by (from, to)
func (g *ExtrasGraph) Edges() []Edge {
	var edges []Edge
	for _, name := range g.Names() {
		seen := make(map[string]bool)
		for _, to := range g.Groups[name].Includes {
			if seen[to] {
				continue
			}
			seen[to] = true
			edges = append(edges, Edge{From: name, To: to})
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})
	return edges
}

// Neighbors returns the distinct groups referenced by name, sorted
func (g *ExtrasGraph) Neighbors(name string) []string {
	group, ok := g.Groups[name]
	if !ok {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, to := range group.Includes {
		if !seen[to] {
			seen[to] = true
			out = append(out, to)
		}
	}
	sort.Strings(out)
	return out
}
