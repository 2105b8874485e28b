package store

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/cedar/pkg/cedar/internalerr"
	"github.com/cognicore/cedar/pkg/cedar/kb"
	"github.com/cognicore/cedar/pkg/cedar/similarity"
)

func TestApplyAndSnapshot(t *testing.T) {
	seed := Seed{
		Sorts: []string{"flu", "covid"},
		Instances: []kb.Instance{
			{ID: "p1", Sort: "covid"},
			{ID: "p2", Sort: "flu", Features: kb.MustFeatures(kb.Feature{Key: "age", Value: kb.Number(41)})},
		},
		Similarities: []similarity.Pair{{A: "flu", B: "covid", Degree: 0.7}},
	}

	k, sim := kb.New(), similarity.New()
	require.NoError(t, Apply(seed, k, sim))
	assert.Equal(t, 2, k.Len())
	assert.Equal(t, 0.7, sim.DegreeOf("covid", "flu"))

	snap := Snapshot(k, sim)
	assert.Equal(t, []string{"flu", "covid"}, snap.Sorts)
	require.Len(t, snap.Instances, 2)
	assert.Equal(t, "p1", snap.Instances[0].ID)
	assert.Equal(t, []similarity.Pair{{A: "covid", B: "flu", Degree: 0.7}}, snap.Similarities)
}

func TestApplyStopsAtFirstError(t *testing.T) {
	cases := map[string]struct {
		seed Seed
		want error
	}{
		"unknown sort": {
			seed: Seed{Sorts: []string{"flu"}, Instances: []kb.Instance{{ID: "p1", Sort: "covid"}}},
			want: internalerr.ErrUnknownSort,
		},
		"duplicate id": {
			seed: Seed{Sorts: []string{"flu"}, Instances: []kb.Instance{{ID: "p1", Sort: "flu"}, {ID: "p1", Sort: "flu"}}},
			want: internalerr.ErrDuplicateID,
		},
		"bad degree": {
			seed: Seed{Similarities: []similarity.Pair{{A: "flu", B: "covid", Degree: 7}}},
			want: internalerr.ErrInvalidDegree,
		},
		"self similarity": {
			seed: Seed{Similarities: []similarity.Pair{{A: "flu", B: "flu", Degree: 0.5}}},
			want: internalerr.ErrSelfSimilarity,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			err := Apply(tc.seed, kb.New(), similarity.New())
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}
}
