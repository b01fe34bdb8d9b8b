package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/roster-engine/engine"
)

func ids(n ...int64) []engine.ParticipantID {
	out := make([]engine.ParticipantID, len(n))
	for i, v := range n {
		out[i] = engine.ParticipantID(v)
	}
	return out
}

func TestRNG_SameSeedSameStream(t *testing.T) {
	a, b := engine.NewRNG(), engine.NewRNG()
	a.Reseed(1700000000000)
	b.Reseed(1700000000000)

	assert.Equal(t, a.Shuffle(ids(1, 2, 3, 4, 5, 6)), b.Shuffle(ids(1, 2, 3, 4, 5, 6)))
	assert.Equal(t, a.Uniform01(), b.Uniform01())
}

func TestRNG_ReseedRestartsStream(t *testing.T) {
	g := engine.NewRNG()
	g.Reseed(-42)
	first := g.Uniform01()
	g.Uniform01()
	g.Reseed(-42)

	assert.Equal(t, first, g.Uniform01())
}

func TestRNG_ShuffleIsPermutation(t *testing.T) {
	g := engine.NewRNG()
	in := ids(5, 3, 9, 1)
	g.Reseed(7)
	out := g.Shuffle(in)

	assert.ElementsMatch(t, in, out)
	assert.Equal(t, ids(5, 3, 9, 1), in, "input must not be modified")
}

func TestRNG_SampleSizes(t *testing.T) {
	g := engine.NewRNG()
	g.Reseed(3)

	assert.Len(t, g.Sample(ids(1, 2, 3, 4), 2), 2)
	assert.Len(t, g.Sample(ids(1, 2), 5), 2)
	assert.Empty(t, g.Sample(ids(1, 2), 0))
	assert.Empty(t, g.Sample(nil, 3))
}

func TestRNG_Uniform01Range(t *testing.T) {
	g := engine.NewRNG()
	for seed := int64(0); seed < 200; seed++ {
		g.Reseed(seed)
		u := g.Uniform01()
		require.GreaterOrEqual(t, u, 0.0)
		require.Less(t, u, 1.0)
	}
}

func TestRNG_UnseededUsePanics(t *testing.T) {
	assert.Panics(t, func() { engine.NewRNG().Uniform01() })
}
