package extras

import (
	"errors"
	"fmt"
	"sort"

	"github.com/acheong08/pyextras/internal/parser"
	"github.com/acheong08/pyextras/pkg/models"
)

// ErrUnknownGroup is returned when resolving an extra that is not declared
var ErrUnknownGroup = errors.New("unknown extra")

// Resolution is the transitive expansion of one extra
type Resolution struct {
	Group        string               `json:"group"`
	Groups       []string             `json:"groups"`            // every extra visited, sorted
	Requirements []models.Requirement `json:"requirements"`      // deduplicated, sorted by key
	Missing      []string             `json:"missing,omitempty"` // undefined extras referenced on the way
}

// Keys returns the canonical keys of the resolved requirements
func (r *Resolution) Keys() []string {
	keys := make([]string, 0, len(r.Requirements))
	for _, req := range r.Requirements {
		keys = append(keys, req.Key())
	}
	return keys
}

// Closure resolves an extra by following self-references. Cycles are
// tolerated; each group is expanded once.
func Closure(g *models.ExtrasGraph, group string) (*Resolution, error) {
	start := parser.NormalizeExtra(group)
	if !g.HasGroup(start) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGroup, group)
	}

	res := &Resolution{Group: start}
	visited := map[string]bool{start: true}
	missing := make(map[string]bool)
	reqs := make(map[string]models.Requirement)
	queue := []string{start}

	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		res.Groups = append(res.Groups, name)

		for _, req := range g.Groups[name].Requirements {
			if _, ok := reqs[req.Key()]; !ok {
				reqs[req.Key()] = req
			}
		}

		for _, nbr := range g.Neighbors(name) {
			if !g.HasGroup(nbr) {
				missing[nbr] = true
				continue
			}
			if !visited[nbr] {
				visited[nbr] = true
				queue = append(queue, nbr)
			}
		}
	}

	sort.Strings(res.Groups)
	for name := range missing {
		res.Missing = append(res.Missing, name)
	}
	sort.Strings(res.Missing)
	for _, req := range reqs {
		res.Requirements = append(res.Requirements, req)
	}
	models.SortRequirements(res.Requirements)

	return res, nil
}
