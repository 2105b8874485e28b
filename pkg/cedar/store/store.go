package store

import (
	"context"
	"slices"

	"github.com/cockroachdb/errors"

	"github.com/cognicore/cedar/pkg/cedar/kb"
	"github.com/cognicore/cedar/pkg/cedar/similarity"
)

// Source supplies bootstrap data for a knowledge base and its similarity
// relation. Sources are read once at startup.
type Source interface {
	Load(ctx context.Context) (Seed, error)
	Close() error
}

// Seed is a well-formed set of sorts, instances and similarity pairs.
// Order is significant: it becomes the knowledge base's insertion order.
type Seed struct {
	Sorts        []string
	Instances    []kb.Instance
	Similarities []similarity.Pair
}

// Apply loads seed into k and sim: sorts first, then instances, then
// similarities. It stops at the first error, which wraps the underlying
// kb or similarity sentinel.
func Apply(seed Seed, k *kb.KnowledgeBase, sim *similarity.Relation) error {
	for _, s := range seed.Sorts {
		if err := k.DeclareSort(s); err != nil {
			return errors.Wrap(err, "apply seed")
		}
	}
	for _, inst := range seed.Instances {
		if err := k.AddInstance(inst); err != nil {
			return errors.Wrap(err, "apply seed")
		}
	}
	for _, p := range seed.Similarities {
		if err := sim.Declare(p.A, p.B, p.Degree); err != nil {
			return errors.Wrap(err, "apply seed")
		}
	}
	return nil
}

// Snapshot captures the current contents of k and sim as a Seed.
func Snapshot(k *kb.KnowledgeBase, sim *similarity.Relation) Seed {
	return Seed{
		Sorts:        k.Sorts(),
		Instances:    slices.Collect(k.AllInstances()),
		Similarities: sim.Pairs(),
	}
}
