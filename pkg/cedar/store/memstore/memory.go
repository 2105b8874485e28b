package memstore

import (
	"context"
	"slices"

	"github.com/cognicore/cedar/pkg/cedar/kb"
	"github.com/cognicore/cedar/pkg/cedar/similarity"
	"github.com/cognicore/cedar/pkg/cedar/store"
)

// Store is an in-memory store.Source.
type Store struct {
	seed store.Seed
}

// New creates a source that serves a copy of seed.
func New(seed store.Seed) *Store {
	return &Store{seed: copySeed(seed)}
}

// Close implements store.Source.
func (s *Store) Close() error { return nil }

// Load implements store.Source.
func (s *Store) Load(ctx context.Context) (store.Seed, error) {
	if err := ctx.Err(); err != nil {
		return store.Seed{}, err
	}
	return copySeed(s.seed), nil
}

// Builtin returns the illustrative seed: movie genres and kinds of teacher.
func Builtin() *Store {
	str := func(k, v string) kb.Feature { return kb.Feature{Key: k, Value: kb.String(v)} }

	return New(store.Seed{
		Sorts: []string{
			"movie", "thriller", "slasher", "horror",
			"teacher", "university_teacher", "school_teacher",
		},
		Instances: []kb.Instance{
			{ID: "memento", Sort: "thriller", Features: kb.MustFeatures(str("title", "Memento"))},
			{ID: "psycho", Sort: "slasher", Features: kb.MustFeatures(str("title", "Psycho"))},
			{ID: "halloween", Sort: "thriller", Features: kb.MustFeatures(
				str("title", "Halloween"),
				kb.Feature{Key: "year", Value: kb.Number(1979)},
			)},
			{ID: "carol", Sort: "university_teacher", Features: kb.MustFeatures(str("works_at", "university"))},
			{ID: "bob", Sort: "school_teacher", Features: kb.MustFeatures(str("works_at", "school"))},
		},
		Similarities: []similarity.Pair{
			{A: "thriller", B: "movie", Degree: 0.8},
			{A: "horror", B: "movie", Degree: 0.8},
			{A: "slasher", B: "movie", Degree: 0.7},
			{A: "slasher", B: "horror", Degree: 0.9},
			{A: "horror", B: "thriller", Degree: 0.5},
			{A: "university_teacher", B: "teacher", Degree: 0.85},
			{A: "school_teacher", B: "teacher", Degree: 0.85},
			{A: "university_teacher", B: "school_teacher", Degree: 0.6},
		},
	})
}

func copySeed(s store.Seed) store.Seed {
	return store.Seed{
		Sorts:        slices.Clone(s.Sorts),
		Instances:    slices.Clone(s.Instances),
		Similarities: slices.Clone(s.Similarities),
	}
}
