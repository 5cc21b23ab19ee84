// Package neuron implements the leaky integrate-and-fire unit of a Brunel
// network: membrane dynamics, refractoriness, delayed synaptic input and
// the spike amplitude policy of excitatory and inhibitory cells.
//
// Neurons refer to their targets by index into a Population owned by the
// caller. A neuron never owns the neurons it signals.
package neuron

import "fmt"

// Drive selects the term that pulls the membrane potential on a
// non-spiking step.
type Drive uint8

const (
	// DriveBackground uses a Poisson sample of external excitatory input.
	DriveBackground Drive = iota
	// DriveCurrent uses the constant external current I * R.
	DriveCurrent
)

// Deliverer receives the spikes a neuron emits. Deliver is called once
// per registered target with the step at which the spike was emitted.
type Deliverer interface {
	Deliver(target, step int, amplitude float64)
}

// Neuron is one LIF unit. Create it with New.
type Neuron struct {
	model        *Model
	kind         Kind
	potential    float64
	inputCurrent float64
	spikes       []int
	targets      []int
	clock        int
	buffer       DelayBuffer
}

// New returns a neuron at rest at its model's initial potential.
func New(kind Kind, m *Model) Neuron {
	return Neuron{
		model:     m,
		kind:      kind,
		potential: m.InitialPotential,
		buffer:    NewDelayBuffer(m.Delay),
	}
}

func (n *Neuron) Kind() Kind { return n.kind }

// MembranePotential returns the current potential in mV.
func (n *Neuron) MembranePotential() float64 { return n.potential }

// SpikeCount returns how many times the neuron has fired.
func (n *Neuron) SpikeCount() int { return len(n.spikes) }

// Spikes returns the steps at which the neuron fired, ascending. The
// slice must not be modified.
func (n *Neuron) Spikes() []int { return n.spikes[:len(n.spikes):len(n.spikes)] }

// Clock returns the number of steps the neuron has been advanced.
func (n *Neuron) Clock() int { return n.clock }

// Targets returns the indices of the postsynaptic neurons. The slice must
// not be modified.
func (n *Neuron) Targets() []int { return n.targets[:len(n.targets):len(n.targets)] }

// NumTargets returns the out-degree, counting duplicate connections.
func (n *Neuron) NumTargets() int { return len(n.targets) }

// NumExcitatoryTargets returns how many of the targets, resolved in pop,
// are excitatory.
func (n *Neuron) NumExcitatoryTargets(pop Population) int {
	count := 0
	for _, t := range n.targets {
		if pop[t].kind == Excitatory {
			count++
		}
	}
	return count
}

// SpikeAmplitude returns the jump this neuron causes in its targets.
func (n *Neuron) SpikeAmplitude() float64 { return n.model.Amplitudes.Of(n.kind) }

// SetInputCurrent sets the constant external current used by
// UpdateWithoutBackgroundNoise.
func (n *Neuron) SetInputCurrent(current float64) { n.inputCurrent = current }

func (n *Neuron) InputCurrent() float64 { return n.inputCurrent }

// AddTarget registers a postsynaptic neuron by index. A negative index is
// the absent reference and is ignored; duplicates are kept and each one
// carries a spike.
func (n *Neuron) AddTarget(target int) {
	if target < 0 {
		return
	}
	n.targets = append(n.targets, target)
}

// ReceiveSpike schedules amplitude for step+delay.
func (n *Neuron) ReceiveSpike(step int, amplitude float64) {
	n.buffer.Schedule(step, amplitude)
}

// Refractory reports whether the neuron fired less than the refractory
// period ago.
func (n *Neuron) Refractory() bool {
	if len(n.spikes) == 0 {
		return false
	}
	return n.clock-n.spikes[len(n.spikes)-1] < n.model.Refractory
}

// Update advances one step with background noise drawn from noise.
func (n *Neuron) Update(noise *Noise, out Deliverer) {
	n.Step(DriveBackground, noise, out)
}

// UpdateWithoutBackgroundNoise advances one step driven by the external
// current. The result depends only on the neuron's state and its input,
// so trajectories are reproducible bit for bit.
func (n *Neuron) UpdateWithoutBackgroundNoise(out Deliverer) {
	n.Step(DriveCurrent, nil, out)
}

// Step advances the neuron by one step:
//
//   - while refractory the potential is frozen;
//   - at or above threshold the neuron fires: the step is recorded, the
//     potential resets and every target is sent the spike amplitude;
//   - otherwise the potential decays and integrates drive + delayed input.
//
// The slot read for this step is always cleared before the clock ticks,
// so input that arrives during refractoriness is lost.
func (n *Neuron) Step(drive Drive, noise *Noise, out Deliverer) {
	if !n.Refractory() {
		if n.potential >= n.model.Threshold {
			n.fire(out)
		} else {
			n.potential = n.potential*n.model.Decay + (n.drive(drive, noise) + n.buffer.Read(n.clock))
		}
	}
	n.buffer.Clear(n.clock)
	n.clock++
}

func (n *Neuron) drive(drive Drive, noise *Noise) float64 {
	switch drive {
	case DriveBackground:
		if noise == nil {
			panic("neuron: background drive without a noise source")
		}
		return noise.Sample()
	case DriveCurrent:
		return n.inputCurrent * n.model.Resistance * (1 - n.model.Decay)
	default:
		panic(fmt.Sprintf("neuron: unknown drive %d", drive))
	}
}

func (n *Neuron) fire(out Deliverer) {
	n.spikes = append(n.spikes, n.clock)
	n.potential = n.model.Reset
	if len(n.targets) == 0 {
		return
	}
	amplitude := n.SpikeAmplitude()
	for _, t := range n.targets {
		out.Deliver(t, n.clock, amplitude)
	}
}
