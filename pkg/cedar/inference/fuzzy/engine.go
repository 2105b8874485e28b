package fuzzy

import (
	"cmp"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/cognicore/cedar/pkg/cedar/inference"
	"github.com/cognicore/cedar/pkg/cedar/internalerr"
	"github.com/cognicore/cedar/pkg/cedar/kb"
	"github.com/cognicore/cedar/pkg/cedar/similarity"
)

// Engine is the in-memory fuzzy reasoner. It holds read references to a
// knowledge base and a similarity relation and never mutates either, so
// Query is safe for concurrent use once both are loaded.
//
// Degrees are single-hop: an instance's sort is compared to the target sort
// directly. Similarities are never chained through intermediate sorts.
type Engine struct {
	kb  *kb.KnowledgeBase
	sim *similarity.Relation
}

var _ inference.Reasoner = (*Engine)(nil)

// New creates an engine over the given stores.
func New(k *kb.KnowledgeBase, sim *similarity.Relation) *Engine {
	return &Engine{kb: k, sim: sim}
}

// Query scans every instance in stored order, scores it by the similarity of
// its sort to q.Sort, drops zero-degree instances, instances failing a
// constraint and instances below q.MinDegree, then ranks the rest by degree
// descending. Ties keep stored order.
func (e *Engine) Query(q inference.Query) ([]inference.Match, error) {
	if !e.kb.HasSort(q.Sort) {
		return nil, errors.WithHint(
			errors.Wrapf(internalerr.ErrUnknownSort, "query %q", q.Sort),
			"query one of the declared sorts",
		)
	}
	if !internalerr.ValidDegree(q.MinDegree) {
		return nil, errors.Wrapf(internalerr.ErrInvalidDegree, "query %q: min degree %v", q.Sort, q.MinDegree)
	}

	matches := []inference.Match{}
	for inst := range e.kb.AllInstances() {
		d := e.sim.DegreeOf(inst.Sort, q.Sort)
		if d == 0 {
			continue
		}
		if !satisfies(inst.Features, q.Constraints) {
			continue
		}
		if d < q.MinDegree {
			continue
		}

		matches = append(matches, inference.Match{
			ID:      inst.ID,
			Degree:  d,
			Unifier: Binding(inst),
		})
	}

	slices.SortStableFunc(matches, func(a, b inference.Match) int {
		return cmp.Compare(b.Degree, a.Degree)
	})
	return matches, nil
}

// Explain reports how instanceID scores against sort.
func (e *Engine) Explain(instanceID, sort string) (inference.Explanation, error) {
	if !e.kb.HasSort(sort) {
		return inference.Explanation{}, errors.Wrapf(internalerr.ErrUnknownSort, "explain %q", sort)
	}
	inst, ok := e.kb.Instance(instanceID)
	if !ok {
		return inference.Explanation{}, errors.Wrapf(internalerr.ErrNotFound, "explain: instance %q", instanceID)
	}

	ex := inference.Explanation{
		InstanceID:   inst.ID,
		InstanceSort: inst.Sort,
		TargetSort:   sort,
		Degree:       e.sim.DegreeOf(inst.Sort, sort),
	}
	switch {
	case inst.Sort == sort:
		ex.Basis = inference.BasisExact
	case ex.Degree > 0:
		ex.Basis = inference.BasisDeclared
	default:
		ex.Basis = inference.BasisUnrelated
	}
	return ex, nil
}

// satisfies reports whether every constrained key is present with an equal
// value.
func satisfies(features kb.Features, constraints map[string]kb.Value) bool {
	for key, want := range constraints {
		got, ok := features.Get(key)
		if !ok || !got.Equal(want) {
			return false
		}
	}
	return true
}

// Binding renders the unifier for inst: sort(key -> 'value', ...), listing
// every feature in stored order.
func Binding(inst kb.Instance) string {
	var b strings.Builder
	b.WriteString(inst.Sort)
	b.WriteByte('(')
	first := true
	for key, val := range inst.Features.All() {
		if !first {
			b.WriteString(", ")
		}
		first = false
		b.WriteString(key)
		b.WriteString(" -> '")
		b.WriteString(val.String())
		b.WriteByte('\'')
	}
	b.WriteByte(')')
	return b.String()
}
