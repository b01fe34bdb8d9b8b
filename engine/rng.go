package engine

import (
	"math/rand/v2"
)

// =============================================================================
// RNG SCOPE - Reseedable, reproducible random source
// =============================================================================

// RNG is an explicit random source owned by one allocation pass.
//
// Every randomized decision reseeds it from stable inputs (cycle start, slot
// index, participant id) right before drawing, so re-running the allocator
// on unchanged input reproduces the same rosters. It never touches the
// process-wide generator.
type RNG struct {
	src    *rand.PCG
	r      *rand.Rand
	seeded bool
}

// NewRNG returns an unseeded scope. Drawing before Reseed panics.
func NewRNG() *RNG {
	src := rand.NewPCG(0, 0)
	return &RNG{src: src, r: rand.New(src)}
}

// Reseed re-initializes the stream. Negative seeds are fine; they are folded
// into the unsigned PCG state bit-for-bit.
func (g *RNG) Reseed(seed int64) {
	g.src.Seed(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15)
	g.seeded = true
}

// Uniform01 draws from [0, 1).
func (g *RNG) Uniform01() float64 {
	g.mustBeSeeded()
	return g.r.Float64()
}

// Shuffle returns a shuffled copy of ids; the input is left untouched.
func (g *RNG) Shuffle(ids []ParticipantID) []ParticipantID {
	return g.Sample(ids, len(ids))
}

// Sample returns k ids drawn without replacement: a full shuffle, truncated.
func (g *RNG) Sample(ids []ParticipantID, k int) []ParticipantID {
	out := append([]ParticipantID(nil), ids...)
	g.permute(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	if k < 0 {
		k = 0
	}
	if k < len(out) {
		out = out[:k]
	}
	return out
}

// ShuffleSlots returns the slots in a random processing order.
func (g *RNG) ShuffleSlots(slots []*Slot) []*Slot {
	out := append([]*Slot(nil), slots...)
	g.permute(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// permute walks backwards, swapping position i with a uniform index in [0, i].
func (g *RNG) permute(n int, swap func(i, j int)) {
	g.mustBeSeeded()
	for i := n - 1; i >= 0; i-- {
		j := int(float64(i+1) * g.r.Float64())
		swap(j, i)
	}
}

func (g *RNG) mustBeSeeded() {
	if !g.seeded {
		panic("engine: RNG used before Reseed")
	}
}
