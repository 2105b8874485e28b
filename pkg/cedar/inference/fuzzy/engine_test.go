package fuzzy

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/cedar/pkg/cedar/inference"
	"github.com/cognicore/cedar/pkg/cedar/internalerr"
	"github.com/cognicore/cedar/pkg/cedar/kb"
	"github.com/cognicore/cedar/pkg/cedar/similarity"
)

func movies(t *testing.T) *Engine {
	t.Helper()
	k := kb.New()
	for _, s := range []string{"slasher", "horror", "thriller"} {
		require.NoError(t, k.DeclareSort(s))
	}
	require.NoError(t, k.AddInstance(kb.Instance{ID: "psycho", Sort: "slasher"}))
	require.NoError(t, k.AddInstance(kb.Instance{
		ID:       "halloween",
		Sort:     "slasher",
		Features: kb.MustFeatures(kb.Feature{Key: "year", Value: kb.Number(1979)}),
	}))
	require.NoError(t, k.AddInstance(kb.Instance{
		ID:       "memento",
		Sort:     "thriller",
		Features: kb.MustFeatures(kb.Feature{Key: "title", Value: kb.String("Memento")}),
	}))

	sim := similarity.New()
	require.NoError(t, sim.Declare("horror", "thriller", 0.5))
	return New(k, sim)
}

func diseases(t *testing.T) *Engine {
	t.Helper()
	k := kb.New()
	require.NoError(t, k.DeclareSort("flu"))
	require.NoError(t, k.DeclareSort("covid"))
	require.NoError(t, k.DeclareSort("measles"))
	require.NoError(t, k.AddInstance(kb.Instance{ID: "patient-1", Sort: "covid"}))
	require.NoError(t, k.AddInstance(kb.Instance{ID: "patient-2", Sort: "flu"}))
	require.NoError(t, k.AddInstance(kb.Instance{ID: "patient-3", Sort: "measles"}))
	require.NoError(t, k.AddInstance(kb.Instance{ID: "patient-4", Sort: "flu"}))

	sim := similarity.New()
	require.NoError(t, sim.Declare("flu", "covid", 0.7))
	return New(k, sim)
}

func matchIDs(ms []inference.Match) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.ID
	}
	return out
}

func TestQueryNoTransitiveChaining(t *testing.T) {
	e := movies(t)

	got, err := e.Query(inference.Query{Sort: "thriller"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, inference.Match{ID: "memento", Degree: 1, Unifier: "thriller(title -> 'Memento')"}, got[0])
}

func TestQueryDirectSimilarity(t *testing.T) {
	e := movies(t)
	require.NoError(t, e.sim.Declare("slasher", "thriller", 0.6))

	got, err := e.Query(inference.Query{Sort: "thriller"})
	require.NoError(t, err)
	assert.Equal(t, []string{"memento", "psycho", "halloween"}, matchIDs(got))
	assert.Equal(t, 0.6, got[1].Degree)
	assert.Equal(t, 0.6, got[2].Degree)
}

func TestQueryThresholdExcludesBelow(t *testing.T) {
	e := diseases(t)

	got, err := e.Query(inference.Query{Sort: "flu", MinDegree: 0.8})
	require.NoError(t, err)
	assert.Equal(t, []string{"patient-2", "patient-4"}, matchIDs(got))
	for _, m := range got {
		assert.Equal(t, 1.0, m.Degree)
	}
}

func TestQueryThresholdInclusive(t *testing.T) {
	e := diseases(t)

	got, err := e.Query(inference.Query{Sort: "flu", MinDegree: 0.7})
	require.NoError(t, err)
	assert.Equal(t, []string{"patient-2", "patient-4", "patient-1"}, matchIDs(got))
}

func TestQueryFeatureConstraint(t *testing.T) {
	e := movies(t)

	got, err := e.Query(inference.Query{
		Sort:        "slasher",
		Constraints: map[string]kb.Value{"year": kb.Number(1979)},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "halloween", got[0].ID)
	assert.Equal(t, "slasher(year -> '1979')", got[0].Unifier)
}

func TestQueryConstraintKindMustMatch(t *testing.T) {
	e := movies(t)

	got, err := e.Query(inference.Query{
		Sort:        "slasher",
		Constraints: map[string]kb.Value{"year": kb.String("1979")},
	})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestQueryConstraintMissingKeyExcludes(t *testing.T) {
	e := movies(t)

	got, err := e.Query(inference.Query{
		Sort:        "thriller",
		Constraints: map[string]kb.Value{"director": kb.String("Nolan")},
	})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)
}

func TestQueryNeverReturnsZeroDegree(t *testing.T) {
	e := diseases(t)
	require.NoError(t, e.sim.Declare("measles", "flu", 0))

	for _, sort := range []string{"flu", "covid", "measles"} {
		got, err := e.Query(inference.Query{Sort: sort})
		require.NoError(t, err)
		for _, m := range got {
			assert.Greater(t, m.Degree, 0.0, "%s: %s", sort, m.ID)
		}
	}

	got, err := e.Query(inference.Query{Sort: "flu"})
	require.NoError(t, err)
	assert.NotContains(t, matchIDs(got), "patient-3")
}

func TestQueryRankingStableOnTies(t *testing.T) {
	k := kb.New()
	for _, s := range []string{"a", "b", "c"} {
		require.NoError(t, k.DeclareSort(s))
	}
	for _, inst := range []kb.Instance{
		{ID: "z1", Sort: "b"},
		{ID: "y2", Sort: "c"},
		{ID: "x3", Sort: "a"},
		{ID: "w4", Sort: "b"},
		{ID: "v5", Sort: "c"},
	} {
		require.NoError(t, k.AddInstance(inst))
	}
	sim := similarity.New()
	require.NoError(t, sim.Declare("a", "b", 0.4))
	require.NoError(t, sim.Declare("a", "c", 0.4))

	got, err := New(k, sim).Query(inference.Query{Sort: "a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"x3", "z1", "y2", "w4", "v5"}, matchIDs(got))
}

func TestQueryThresholdMonotonic(t *testing.T) {
	e := movies(t)
	require.NoError(t, e.sim.Declare("slasher", "thriller", 0.6))
	require.NoError(t, e.sim.Declare("horror", "slasher", 0.9))

	thresholds := []float64{0, 0.1, 0.5, 0.6, 0.61, 0.9, 1}
	for _, sort := range []string{"thriller", "horror", "slasher"} {
		prev, err := e.Query(inference.Query{Sort: sort})
		require.NoError(t, err)
		for _, th := range thresholds[1:] {
			cur, err := e.Query(inference.Query{Sort: sort, MinDegree: th})
			require.NoError(t, err)
			assert.LessOrEqual(t, len(cur), len(prev))
			assert.Subset(t, matchIDs(prev), matchIDs(cur), "%s at %v", sort, th)
			prev = cur
		}
	}
}

func TestQueryDeterministic(t *testing.T) {
	e := movies(t)
	require.NoError(t, e.sim.Declare("slasher", "thriller", 0.6))

	q := inference.Query{Sort: "thriller", Constraints: map[string]kb.Value{}}
	first, err := e.Query(q)
	require.NoError(t, err)
	second, err := e.Query(q)
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestQueryConcurrent(t *testing.T) {
	e := diseases(t)
	want, err := e.Query(inference.Query{Sort: "flu"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := e.Query(inference.Query{Sort: "flu"})
			assert.NoError(t, err)
			assert.Equal(t, want, got)
		}()
	}
	wg.Wait()
}

func TestQueryErrors(t *testing.T) {
	e := movies(t)

	_, err := e.Query(inference.Query{Sort: "scifi"})
	assert.True(t, errors.Is(err, internalerr.ErrUnknownSort))

	_, err = e.Query(inference.Query{Sort: "thriller", MinDegree: -0.01})
	assert.True(t, errors.Is(err, internalerr.ErrInvalidDegree))

	_, err = e.Query(inference.Query{Sort: "thriller", MinDegree: 1.5})
	assert.True(t, errors.Is(err, internalerr.ErrInvalidDegree))
}

func TestQueryIsolatedSortReturnsOwnInstances(t *testing.T) {
	e := diseases(t)
	got, err := e.Query(inference.Query{Sort: "measles"})
	require.NoError(t, err)
	assert.Equal(t, []string{"patient-3"}, matchIDs(got))
}

func TestBinding(t *testing.T) {
	inst := kb.Instance{
		ID:   "halloween",
		Sort: "thriller",
		Features: kb.MustFeatures(
			kb.Feature{Key: "title", Value: kb.String("Halloween")},
			kb.Feature{Key: "year", Value: kb.Number(1979)},
		),
	}
	assert.Equal(t, "thriller(title -> 'Halloween', year -> '1979')", Binding(inst))
	assert.Equal(t, "slasher()", Binding(kb.Instance{ID: "psycho", Sort: "slasher"}))
}

func TestExplain(t *testing.T) {
	e := movies(t)

	ex, err := e.Explain("memento", "thriller")
	require.NoError(t, err)
	assert.Equal(t, inference.BasisExact, ex.Basis)
	assert.Equal(t, 1.0, ex.Degree)

	ex, err = e.Explain("memento", "horror")
	require.NoError(t, err)
	assert.Equal(t, inference.BasisDeclared, ex.Basis)
	assert.Equal(t, 0.5, ex.Degree)
	assert.Equal(t, "memento is a thriller, similar(thriller, horror, 0.5): degree 0.5", ex.String())

	ex, err = e.Explain("psycho", "thriller")
	require.NoError(t, err)
	assert.Equal(t, inference.BasisUnrelated, ex.Basis)
	assert.Equal(t, 0.0, ex.Degree)

	_, err = e.Explain("alien", "thriller")
	assert.True(t, errors.Is(err, internalerr.ErrNotFound))

	_, err = e.Explain("memento", "scifi")
	assert.True(t, errors.Is(err, internalerr.ErrUnknownSort))
}
