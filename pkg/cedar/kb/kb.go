// Package kb holds the knowledge base: typed, feature-bearing concept
// instances and the set of declared sorts.
//
// The knowledge base is loaded once at startup and read many times
// afterwards. Mutations (DeclareSort, AddInstance) must not run concurrently
// with each other or with readers; once loading is done, any number of
// goroutines may read without locking.
package kb

import (
	"iter"
	"slices"

	"github.com/cockroachdb/errors"

	"github.com/cognicore/cedar/pkg/cedar/internalerr"
)

// Instance is a concept record tagged with exactly one sort.
type Instance struct {
	ID       string
	Sort     string
	Features Features
}

// KnowledgeBase owns every instance and the declared sorts.
type KnowledgeBase struct {
	sorts     []string
	sortSet   map[string]struct{}
	instances []Instance
	ids       map[string]int
}

// New creates an empty knowledge base.
func New() *KnowledgeBase {
	return &KnowledgeBase{
		sortSet: make(map[string]struct{}),
		ids:     make(map[string]int),
	}
}

// DeclareSort registers a sort label. Declaring the same sort again is a
// no-op.
func (k *KnowledgeBase) DeclareSort(sort string) error {
	if sort == "" {
		return errors.Wrap(internalerr.ErrInvalidInput, "declare sort: empty label")
	}
	if _, ok := k.sortSet[sort]; ok {
		return nil
	}
	k.sortSet[sort] = struct{}{}
	k.sorts = append(k.sorts, sort)
	return nil
}

// AddInstance inserts inst. The id must be new and the sort declared.
func (k *KnowledgeBase) AddInstance(inst Instance) error {
	if inst.ID == "" {
		return errors.Wrap(internalerr.ErrInvalidInput, "add instance: empty id")
	}
	if _, dup := k.ids[inst.ID]; dup {
		return errors.Wrapf(internalerr.ErrDuplicateID, "add instance %q", inst.ID)
	}
	if !k.HasSort(inst.Sort) {
		return errors.WithHint(
			errors.Wrapf(internalerr.ErrUnknownSort, "add instance %q: sort %q", inst.ID, inst.Sort),
			"declare the sort before adding its instances",
		)
	}

	k.ids[inst.ID] = len(k.instances)
	k.instances = append(k.instances, inst)
	return nil
}

// HasSort reports whether sort was declared.
func (k *KnowledgeBase) HasSort(sort string) bool {
	_, ok := k.sortSet[sort]
	return ok
}

// Instance returns the instance with the given id.
func (k *KnowledgeBase) Instance(id string) (Instance, bool) {
	i, ok := k.ids[id]
	if !ok {
		return Instance{}, false
	}
	return k.instances[i], true
}

// InstancesOfSort yields instances whose sort is exactly sort, in insertion
// order. The sequence can be ranged over any number of times.
func (k *KnowledgeBase) InstancesOfSort(sort string) iter.Seq[Instance] {
	return func(yield func(Instance) bool) {
		for _, inst := range k.instances {
			if inst.Sort != sort {
				continue
			}
			if !yield(inst) {
				return
			}
		}
	}
}

// AllInstances yields every instance in insertion order. The sequence can be
// ranged over any number of times.
func (k *KnowledgeBase) AllInstances() iter.Seq[Instance] {
	return func(yield func(Instance) bool) {
		for _, inst := range k.instances {
			if !yield(inst) {
				return
			}
		}
	}
}

// Sorts returns the declared sorts in declaration order.
func (k *KnowledgeBase) Sorts() []string {
	return slices.Clone(k.sorts)
}

// Len returns the number of instances.
func (k *KnowledgeBase) Len() int {
	return len(k.instances)
}
