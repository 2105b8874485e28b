package inference

import (
	"fmt"

	"github.com/cognicore/cedar/pkg/cedar/kb"
)

// Reasoner answers fuzzy subsumption queries over a knowledge base.
// This interface allows swapping implementations (the in-memory fuzzy engine,
// a multi-hop variant, a remote engine, etc.)
type Reasoner interface {
	// Query returns the instances that satisfy q.Sort to some nonzero degree
	// and every feature constraint, ranked by degree descending.
	Query(q Query) ([]Match, error)

	// Explain describes how the degree of one instance against a sort is
	// obtained.
	Explain(instanceID, sort string) (Explanation, error)
}

// Query is a single reasoning request.
type Query struct {
	Sort        string
	Constraints map[string]kb.Value // exact-match filters; nil or empty means none
	MinDegree   float64             // inclusive lower bound in [0, 1]
}

// Match is one ranked answer.
type Match struct {
	ID      string  `json:"id"`
	Degree  float64 `json:"degree"`
	Unifier string  `json:"unifier"`
}

// Basis says where a degree came from.
type Basis string

const (
	BasisExact     Basis = "exact"     // instance sort equals the target
	BasisDeclared  Basis = "declared"  // a direct similarity was declared
	BasisUnrelated Basis = "unrelated" // nothing declared, degree 0
)

// Explanation is the single step linking an instance's sort to a target sort.
type Explanation struct {
	InstanceID   string
	InstanceSort string
	TargetSort   string
	Degree       float64
	Basis        Basis
}

func (e Explanation) String() string {
	switch e.Basis {
	case BasisExact:
		return fmt.Sprintf("%s is a %s: degree 1", e.InstanceID, e.TargetSort)
	case BasisDeclared:
		return fmt.Sprintf("%s is a %s, similar(%s, %s, %g): degree %g",
			e.InstanceID, e.InstanceSort, e.InstanceSort, e.TargetSort, e.Degree, e.Degree)
	default:
		return fmt.Sprintf("%s is a %s, no similarity to %s declared: degree 0",
			e.InstanceID, e.InstanceSort, e.TargetSort)
	}
}
