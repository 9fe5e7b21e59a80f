package extras

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	version "github.com/aquasecurity/go-pep440-version"

	"github.com/acheong08/pyextras/internal/parser"
	"github.com/acheong08/pyextras/pkg/models"
)

// ErrUnsatisfiable is returned when no version can satisfy a specifier
var ErrUnsatisfiable = errors.New("unsatisfiable version bounds")

var releaseRegex = regexp.MustCompile(`^(?:(\d+)!)?(\d+(?:\.\d+)*)`)

type bound struct {
	version   version.Version
	raw       string
	inclusive bool
}

func newBound(raw string, inclusive bool) (*bound, error) {
	v, err := version.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &bound{version: v, raw: raw, inclusive: inclusive}, nil
}

// CheckBounds verifies that the lower and upper bounds of a requirement's
// specifier leave room for at least one version. Versions follow PEP 440:
// "~=X.Y" admits [X.Y, X+1) and "==X.*" admits [X, X+1). Clauses whose
// version does not parse, "!=" and "===" clauses are skipped.
func CheckBounds(req models.Requirement) error {
	if req.Specifier == "" {
		return nil
	}

	var lower, upper *bound
	for _, clause := range parser.SplitClauses(req.Specifier) {
		op, raw := clause[0], clause[1]

		if op == "==" && strings.HasSuffix(raw, ".*") {
			prefix := strings.TrimSuffix(raw, ".*")
			lo, err := newBound(prefix, true)
			if err != nil {
				continue
			}
			hi, err := prefixUpper(prefix, 0)
			if err != nil {
				continue
			}
			lower = tighterLower(lower, lo)
			upper = tighterUpper(upper, hi)
			continue
		}
		if strings.Contains(raw, "*") {
			continue
		}

		switch op {
		case ">=", ">", "<=", "<", "==":
			b, err := newBound(raw, op != ">" && op != "<")
			if err != nil {
				continue
			}
			if op != "<=" && op != "<" {
				lower = tighterLower(lower, b)
			}
			if op != ">=" && op != ">" {
				upper = tighterUpper(upper, b)
			}
		case "~=":
			lo, err := newBound(raw, true)
			if err != nil {
				continue
			}
			lower = tighterLower(lower, lo)
			if hi, err := prefixUpper(raw, 1); err == nil {
				upper = tighterUpper(upper, hi)
			}
		}
	}

	if lower == nil || upper == nil {
		return nil
	}

	cmp := lower.version.Compare(upper.version)
	if cmp > 0 || (cmp == 0 && !(lower.inclusive && upper.inclusive)) {
		return fmt.Errorf("%w: lower bound %s%s excludes upper bound %s%s",
			ErrUnsatisfiable, lowerOp(lower), lower.raw, upperOp(upper), upper.raw)
	}
	return nil
}

// prefixUpper returns the exclusive upper bound obtained by dropping the
// last drop release segments of raw and incrementing the new last one:
// ("1.4.2", 1) gives <1.5, ("2", 0) gives <3. The epoch is kept.
func prefixUpper(raw string, drop int) (*bound, error) {
	m := releaseRegex.FindStringSubmatch(raw)
	if m == nil {
		return nil, fmt.Errorf("invalid release segment in %q", raw)
	}
	segments := strings.Split(m[2], ".")
	if len(segments)-drop < 1 {
		return nil, fmt.Errorf("%q has too few release segments", raw)
	}
	segments = segments[:len(segments)-drop]

	last, err := strconv.Atoi(segments[len(segments)-1])
	if err != nil {
		return nil, err
	}
	segments[len(segments)-1] = strconv.Itoa(last + 1)

	upper := strings.Join(segments, ".")
	if m[1] != "" {
		upper = m[1] + "!" + upper
	}
	return newBound(upper, false)
}

func tighterLower(cur, next *bound) *bound {
	if cur == nil {
		return next
	}
	switch cmp := next.version.Compare(cur.version); {
	case cmp > 0:
		return next
	case cmp == 0 && !next.inclusive:
		return next
	}
	return cur
}

func tighterUpper(cur, next *bound) *bound {
	if cur == nil {
		return next
	}
	switch cmp := next.version.Compare(cur.version); {
	case cmp < 0:
		return next
	case cmp == 0 && !next.inclusive:
		return next
	}
	return cur
}

func lowerOp(b *bound) string {
	if b.inclusive {
		return ">="
	}
	return ">"
}

func upperOp(b *bound) string {
	if b.inclusive {
		return "<="
	}
	return "<"
}
