package index

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/acheong08/pyextras/pkg/models"
)

// Rule IDs
const (
	RuleUnknownPackage = "unknown-package"
	RuleUnknownExtra   = "unknown-extra"
)

// ProgressFunc is called after each lookup completes
type ProgressFunc func(done, total int, name string)

// lookup is one distinct external package of the graph
type lookup struct {
	name   string
	group  string          // first group that requires it
	extras map[string]bool // union of requested extras
}

// CheckGraph looks up every distinct external requirement of g on the
// index. Requirements pinned to a URL are skipped. A project the index does
// not know yields an unknown-package finding; a requested extra the project
// does not provide yields unknown-extra. Any other lookup error aborts.
func (c *Client) CheckGraph(ctx context.Context, g *models.ExtrasGraph, progress ProgressFunc) ([]models.Finding, error) {
	lookups := collect(g)
	if len(lookups) == 0 {
		return nil, nil
	}

	c.logMsg(fmt.Sprintf("Looking up %d packages on %s...", len(lookups), c.BaseURL), "info")

	results := make([][]models.Finding, len(lookups))
	var mu sync.Mutex
	done := 0

	eg, egCtx := errgroup.WithContext(ctx)
	if c.Concurrency > 0 {
		eg.SetLimit(c.Concurrency)
	}

	for i, l := range lookups {
		eg.Go(func() error {
			findings, err := c.checkOne(egCtx, l)
			if err != nil {
				return err
			}
			results[i] = findings

			mu.Lock()
			done++
			n := done
			mu.Unlock()
			if progress != nil {
				progress(n, len(lookups), l.name)
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var findings []models.Finding
	for _, r := range results {
		findings = append(findings, r...)
	}

	c.logMsg(fmt.Sprintf("Index lookup finished: %d finding(s)", len(findings)), "success")
	return findings, nil
}

func (c *Client) checkOne(ctx context.Context, l *lookup) ([]models.Finding, error) {
	info, err := c.ProjectInfo(ctx, l.name)
	if errors.Is(err, ErrNotFound) {
		return []models.Finding{{
			Rule:     RuleUnknownPackage,
			Severity: models.SeverityError,
			Group:    l.group,
			Message:  fmt.Sprintf("package %q not found on the index", l.name),
		}}, nil
	}
	if err != nil {
		return nil, err
	}

	provided := make(map[string]bool)
	for _, e := range ProvidedExtras(info) {
		provided[e] = true
	}

	var findings []models.Finding
	for _, extra := range sortedSet(l.extras) {
		if !provided[extra] {
			findings = append(findings, models.Finding{
				Rule:     RuleUnknownExtra,
				Severity: models.SeverityWarning,
				Group:    l.group,
				Message:  fmt.Sprintf("package %q does not provide extra %q", l.name, extra),
			})
		}
	}
	return findings, nil
}

// collect gathers the distinct external packages of g, sorted by name
func collect(g *models.ExtrasGraph) []*lookup {
	byName := make(map[string]*lookup)
	for _, name := range g.Order {
		for _, req := range g.Groups[name].Requirements {
			if req.URL != "" {
				continue
			}
			l, ok := byName[req.Name]
			if !ok {
				l = &lookup{name: req.Name, group: name, extras: make(map[string]bool)}
				byName[req.Name] = l
			}
			for _, e := range req.Extras {
				l.extras[e] = true
			}
		}
	}

	out := make([]*lookup, 0, len(byName))
	for _, l := range byName {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

func sortedSet(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
