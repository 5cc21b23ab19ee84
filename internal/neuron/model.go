package neuron

import (
	"github.com/nvandessel/brunel/internal/params"
)

// Kind distinguishes the two neuron classes of the network. They differ
// only in the sign and magnitude of the spike they emit.
type Kind uint8

const (
	Excitatory Kind = iota
	Inhibitory
)

func (k Kind) String() string {
	switch k {
	case Excitatory:
		return "excitatory"
	case Inhibitory:
		return "inhibitory"
	default:
		return "unknown"
	}
}

// Amplitudes is the spike amplitude policy shared by a population.
type Amplitudes struct {
	// Excitatory is J, the jump caused by an excitatory spike.
	Excitatory float64
	// InhibitoryRatio is g; inhibitory neurons emit -(J * g).
	InhibitoryRatio float64
}

// Of returns the amplitude emitted by a neuron of kind k.
func (a Amplitudes) Of(k Kind) float64 {
	if k == Inhibitory {
		return -(a.Excitatory * a.InhibitoryRatio)
	}
	return a.Excitatory
}

// Model holds the constants every neuron of a population reads on each
// step. Derived values are computed once by NewModel.
type Model struct {
	Threshold        float64
	Reset            float64
	InitialPotential float64
	Refractory       int
	Delay            int

	// Decay is exp(-h/tau).
	Decay float64
	// Resistance is R = tau/C, applied to the external current.
	Resistance float64

	Amplitudes Amplitudes

	// BackgroundRate is the Poisson mean of external spikes per step.
	BackgroundRate float64
}

// NewModel derives the per-step constants from p. The parameters are
// expected to be valid; see params.Params.Validate.
func NewModel(p params.Params) *Model {
	return &Model{
		Threshold:        p.Threshold,
		Reset:            p.ResetPotential,
		InitialPotential: p.InitialPotential,
		Refractory:       p.RefractoryPeriod,
		Delay:            p.Delay,
		Decay:            p.Decay(),
		Resistance:       p.Resistance(),
		Amplitudes: Amplitudes{
			Excitatory:      p.ExcitatoryAmplitude,
			InhibitoryRatio: p.InhibitoryRatio,
		},
		BackgroundRate: p.BackgroundRate(),
	}
}
