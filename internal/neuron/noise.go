package neuron

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// Noise samples the contribution of the rest of the brain: Cext
// excitatory neurons firing as independent Poisson processes. Each call
// to Sample draws the number of external spikes arriving in one step and
// scales it by the excitatory amplitude.
//
// A Noise is not safe for concurrent use; give each worker its own.
type Noise struct {
	amplitude float64
	dist      distuv.Poisson
}

// NewNoise returns a background source with the given per-step Poisson
// mean and spike amplitude. A zero seed draws a random one, so successive
// runs differ. An infinite rate panics; a NaN or non-positive rate yields
// no background input.
func NewNoise(rate, amplitude float64, seed uint64) *Noise {
	if math.IsInf(rate, 0) {
		panic(fmt.Sprintf("neuron: background rate must be finite, got %v", rate))
	}
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &Noise{
		amplitude: amplitude,
		dist: distuv.Poisson{
			Lambda: rate,
			Src:    rand.NewPCG(seed, seed^0x9e3779b97f4a7c15),
		},
	}
}

// NewModelNoise returns a background source matching m.
func NewModelNoise(m *Model, seed uint64) *Noise {
	return NewNoise(m.BackgroundRate, m.Amplitudes.Excitatory, seed)
}

// Rate returns the Poisson mean of external spikes per step.
func (n *Noise) Rate() float64 { return n.dist.Lambda }

// Sample returns the background input for one step.
func (n *Noise) Sample() float64 {
	if !(n.dist.Lambda > 0) {
		return 0
	}
	return n.amplitude * n.dist.Rand()
}
