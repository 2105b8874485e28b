package memstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/cedar/pkg/cedar/kb"
	"github.com/cognicore/cedar/pkg/cedar/similarity"
	"github.com/cognicore/cedar/pkg/cedar/store"
)

func TestBuiltinSeedApplies(t *testing.T) {
	s := Builtin()
	defer s.Close()

	seed, err := s.Load(context.Background())
	require.NoError(t, err)

	k, sim := kb.New(), similarity.New()
	require.NoError(t, store.Apply(seed, k, sim))

	assert.Equal(t, 5, k.Len())
	assert.Len(t, k.Sorts(), 7)
	assert.Equal(t, 0.9, sim.DegreeOf("horror", "slasher"))
	assert.Equal(t, 0.0, sim.DegreeOf("slasher", "thriller"))

	halloween, ok := k.Instance("halloween")
	require.True(t, ok)
	year, ok := halloween.Features.Get("year")
	require.True(t, ok)
	assert.True(t, year.Equal(kb.Number(1979)))
}

func TestLoadReturnsCopy(t *testing.T) {
	s := New(store.Seed{Sorts: []string{"flu"}})

	first, err := s.Load(context.Background())
	require.NoError(t, err)
	first.Sorts[0] = "mutated"

	second, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"flu"}, second.Sorts)
}

func TestLoadHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Builtin().Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
