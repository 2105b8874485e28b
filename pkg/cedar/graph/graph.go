// Package graph renders the sort similarity network as nodes and links for
// visualization front ends.
package graph

import (
	"github.com/cockroachdb/errors"

	"github.com/cognicore/cedar/pkg/cedar/internalerr"
	"github.com/cognicore/cedar/pkg/cedar/kb"
	"github.com/cognicore/cedar/pkg/cedar/similarity"
)

// Node is a declared sort.
type Node struct {
	ID    string `json:"id"`
	Group int    `json:"group"`
}

// Link is a declared similarity between two sorts.
type Link struct {
	Source string  `json:"source"`
	Target string  `json:"target"`
	Value  float64 `json:"value"`
}

// Data is the full graph payload.
type Data struct {
	Nodes []Node `json:"nodes"`
	Links []Link `json:"links"`
}

// Build returns every declared sort as a node and every declared similarity
// with degree >= threshold as a link, both in declaration order. Zero-degree
// pairs are never linked.
func Build(k *kb.KnowledgeBase, sim *similarity.Relation, threshold float64) (Data, error) {
	if !internalerr.ValidDegree(threshold) {
		return Data{}, errors.Wrapf(internalerr.ErrInvalidDegree, "graph threshold %v", threshold)
	}

	sorts := k.Sorts()
	data := Data{
		Nodes: make([]Node, 0, len(sorts)),
		Links: []Link{},
	}
	for _, s := range sorts {
		data.Nodes = append(data.Nodes, Node{ID: s, Group: 1})
	}

	for _, p := range sim.Pairs() {
		if p.Degree == 0 || p.Degree < threshold {
			continue
		}
		data.Links = append(data.Links, Link{Source: p.A, Target: p.B, Value: p.Degree})
	}
	return data, nil
}
