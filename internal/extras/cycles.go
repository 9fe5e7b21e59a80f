package extras

import (
	"errors"
	"sort"
	"strings"

	"github.com/acheong08/pyextras/pkg/models"
)

// ErrCycleDetected is returned by TopoOrder when the graph is cyclic
var ErrCycleDetected = errors.New("extras: cycle detected")

const (
	white = iota // not visited
	gray         // on the DFS stack
	black        // finished
)

// FindCycles returns every simple cycle of the graph. Cycles are searched
// from each group in lexicographic order, visiting only groups that sort
// after the start, so each cycle is found once with its smallest member
// first. Cycles are closed ([a b a]) and sorted. References to undefined
// groups are ignored here.
func FindCycles(g *models.ExtrasGraph) [][]string {
	if g == nil {
		return nil
	}

	var cycles [][]string
	for _, start := range g.Names() {
		onPath := map[string]bool{start: true}
		path := []string{start}

		var visit func(id string)
		visit = func(id string) {
			for _, nbr := range g.Neighbors(id) {
				if !g.HasGroup(nbr) || nbr < start {
					continue
				}
				if nbr == start {
					cycle := append(append([]string(nil), path...), start)
					cycles = append(cycles, cycle)
					continue
				}
				if onPath[nbr] {
					continue
				}
				onPath[nbr] = true
				path = append(path, nbr)
				visit(nbr)
				path = path[:len(path)-1]
				onPath[nbr] = false
			}
		}
		visit(start)
	}

	sort.Slice(cycles, func(i, j int) bool {
		return strings.Join(cycles[i], ",") < strings.Join(cycles[j], ",")
	})
	return cycles
}

// TopoOrder returns the groups ordered so that every group comes after the
// groups it references. Undefined references are ignored.
func TopoOrder(g *models.ExtrasGraph) ([]string, error) {
	state := make(map[string]int, len(g.Groups))
	order := make([]string, 0, len(g.Groups))

	var visit func(id string) error
	visit = func(id string) error {
		state[id] = gray
		for _, nbr := range g.Neighbors(id) {
			if !g.HasGroup(nbr) {
				continue
			}
			switch state[nbr] {
			case gray:
				return ErrCycleDetected
			case white:
				if err := visit(nbr); err != nil {
					return err
				}
			}
		}
		state[id] = black
		order = append(order, id)
		return nil
	}

	for _, name := range g.Names() {
		if state[name] == white {
			if err := visit(name); err != nil {
				return nil, err
			}
		}
	}
	return order, nil
}
