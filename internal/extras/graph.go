// Package extras builds and audits the reference graph between the
// optional-dependency groups of a pyproject.toml.
package extras

import (
	"sort"

	"github.com/acheong08/pyextras/internal/parser"
	"github.com/acheong08/pyextras/pkg/models"
)

// Build constructs the extras graph of a manifest. An entry naming the
// project itself (`etils[epy]`) becomes an edge to each listed extra; every
// other entry is kept as an external requirement. Entries that fail to
// decode are collected in Invalid.
func Build(m *models.Manifest) *models.ExtrasGraph {
	project := parser.NormalizeName(m.Project.Name)
	graph := models.NewExtrasGraph(project)

	for _, declared := range orderedExtras(&m.Project) {
		entries := m.Project.OptionalDependencies[declared]
		group := &models.Group{
			Name:     parser.NormalizeExtra(declared),
			Declared: declared,
			Entries:  len(entries),
		}

		for _, raw := range entries {
			req, err := parser.DecodeRequirement(raw)
			if err != nil {
				graph.Invalid = append(graph.Invalid, models.InvalidRequirement{
					Group: group.Name,
					Raw:   raw,
					Err:   err.Error(),
				})
				continue
			}

			if project != "" && req.Name == project {
				group.Includes = append(group.Includes, req.Extras...)
				continue
			}
			group.Requirements = append(group.Requirements, req)
		}

		graph.AddGroup(group)
	}

	return graph
}

// orderedExtras returns the declared group names, in declaration order when known
func orderedExtras(p *models.Project) []string {
	if len(p.ExtraOrder) == len(p.OptionalDependencies) {
		return p.ExtraOrder
	}
	names := make([]string, 0, len(p.OptionalDependencies))
	for name := range p.OptionalDependencies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
