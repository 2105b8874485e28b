// Package similarity stores symmetric degree-of-match values between sort
// labels.
//
// A Relation is a leaf component: it knows nothing about which sorts a
// knowledge base declares. Reflexivity is implicit (a sort is always fully
// similar to itself) and undeclared pairs have degree 0.
package similarity

import (
	"bufio"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/cognicore/cedar/pkg/cedar/internalerr"
)

// Pair is a declared similarity entry. A and B are stored in lexical order.
type Pair struct {
	A      string
	B      string
	Degree float64
}

type pairKey struct {
	a, b string
}

func keyOf(a, b string) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{a: a, b: b}
}

// Relation maps unordered sort pairs to a degree in [0, 1].
//
// A Relation is populated once and then only read. Declare must not race
// with DegreeOf.
type Relation struct {
	degrees map[pairKey]float64
	order   []pairKey // first-declaration order
}

// New creates an empty relation.
func New() *Relation {
	return &Relation{
		degrees: make(map[pairKey]float64),
	}
}

// Declare records the degree for the unordered pair {a, b}. Re-declaring a
// pair overwrites the previous degree.
func (r *Relation) Declare(a, b string, degree float64) error {
	if a == "" || b == "" {
		return errors.Wrapf(internalerr.ErrInvalidInput, "declare %q~%q: empty sort label", a, b)
	}
	if a == b {
		return errors.WithHint(
			errors.Wrapf(internalerr.ErrSelfSimilarity, "declare %q~%q", a, b),
			"a sort is always fully similar to itself; drop this entry",
		)
	}
	if !internalerr.ValidDegree(degree) {
		return errors.WithHint(
			errors.Wrapf(internalerr.ErrInvalidDegree, "declare %q~%q: degree %v", a, b, degree),
			"degrees must lie in [0, 1]",
		)
	}

	key := keyOf(a, b)
	if _, ok := r.degrees[key]; !ok {
		r.order = append(r.order, key)
	}
	r.degrees[key] = degree
	return nil
}

// DegreeOf returns 1 when a == b, the declared degree for {a, b}, or 0 when
// nothing was declared.
func (r *Relation) DegreeOf(a, b string) float64 {
	if a == b {
		return 1
	}
	return r.degrees[keyOf(a, b)]
}

// Pairs returns every declared pair in first-declaration order.
func (r *Relation) Pairs() []Pair {
	out := make([]Pair, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, Pair{A: key.a, B: key.b, Degree: r.degrees[key]})
	}
	return out
}

// Len returns the number of declared pairs.
func (r *Relation) Len() int {
	return len(r.order)
}

// LoadRules declares similarities from rule text.
// Format:
//
//	similar(horror, thriller, 0.5)
//	similar(flu, covid, 0.7)
//	# comments
func (r *Relation) LoadRules(rules string) error {
	scanner := bufio.NewScanner(strings.NewReader(rules))
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		p, err := parseRule(line)
		if err != nil {
			return errors.Wrapf(err, "line %d", lineNum)
		}
		if err := r.Declare(p.A, p.B, p.Degree); err != nil {
			return errors.Wrapf(err, "line %d", lineNum)
		}
	}

	return scanner.Err()
}

// parseRule parses "similar(a, b, degree)".
func parseRule(line string) (Pair, error) {
	openParen := strings.Index(line, "(")
	if openParen == -1 {
		return Pair{}, errors.Wrapf(internalerr.ErrInvalidInput, "missing '(': %s", line)
	}

	name := strings.TrimSpace(line[:openParen])
	if name != "similar" {
		return Pair{}, errors.Wrapf(internalerr.ErrInvalidInput, "unknown rule %q: %s", name, line)
	}

	closeParen := strings.LastIndex(line, ")")
	if closeParen < openParen {
		return Pair{}, errors.Wrapf(internalerr.ErrInvalidInput, "missing ')': %s", line)
	}

	parts := strings.Split(line[openParen+1:closeParen], ",")
	if len(parts) != 3 {
		return Pair{}, errors.Wrapf(internalerr.ErrInvalidInput, "expected 3 arguments, got %d: %s", len(parts), line)
	}

	degree, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
	if err != nil {
		return Pair{}, errors.Wrapf(internalerr.ErrInvalidDegree, "parse degree %q", strings.TrimSpace(parts[2]))
	}

	return Pair{
		A:      strings.TrimSpace(parts[0]),
		B:      strings.TrimSpace(parts[1]),
		Degree: degree,
	}, nil
}
