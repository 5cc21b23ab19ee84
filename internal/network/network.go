// Package network builds a sparsely connected Brunel network of excitatory
// and inhibitory LIF neurons and advances it synchronously, one step at a
// time.
//
// The network owns its neurons. Connectivity is wired once at
// construction: every neuron receives Ce inputs from randomly chosen
// excitatory neurons and Ci inputs from randomly chosen inhibitory ones,
// drawn with replacement. Self-connections are kept.
package network

import (
	"fmt"
	"math/rand/v2"

	"github.com/nvandessel/brunel/internal/neuron"
	"github.com/nvandessel/brunel/internal/params"
)

// DefaultSeed seeds the connectivity generator when Options.Seed is zero.
const DefaultSeed uint64 = params.DefaultConnectivitySeed

// MaxWorkers bounds the goroutines used per step.
const MaxWorkers = 256

// Options tune how a network is built and stepped.
type Options struct {
	// Seed seeds the connectivity generator. Zero selects DefaultSeed, so
	// a given configuration always produces the same topology.
	Seed uint64

	// NoiseSeed seeds the background input. Zero draws a random seed.
	NoiseSeed uint64

	// Workers is the number of goroutines used per step. Values below two
	// step the population sequentially; values above MaxWorkers or the
	// population size are clamped.
	Workers int
}

// Network is a fixed population of neurons and their connections.
type Network struct {
	model      *neuron.Model
	neurons    neuron.Population
	excitatory int
	stepSize   float64
	clock      int

	// noise holds one background source per worker.
	noise []*neuron.Noise
	// logs holds one delivery log per worker for parallel steps.
	logs    []deliveryLog
	workers int
}

// New builds the population described by p and wires its connectivity.
// The parameters are expected to be valid; inconsistent population sizes
// are programming errors and panic.
func New(p params.Params, opts Options) *Network {
	m := neuron.NewModel(p)
	return build(m, p, opts)
}

func build(m *neuron.Model, p params.Params, opts Options) *Network {
	size, excitatory := p.Neurons, p.Excitatory()
	ce, ci := p.ExcitatoryConnections(), p.InhibitoryConnections()
	if size <= 0 {
		panic(fmt.Sprintf("network: population size must be positive, got %d", size))
	}
	if excitatory < 0 || excitatory > size {
		panic(fmt.Sprintf("network: excitatory count %d outside [0, %d]", excitatory, size))
	}
	if ce > 0 && excitatory == 0 {
		panic(fmt.Sprintf("network: %d excitatory inputs per neuron but no excitatory neurons", ce))
	}
	if ci > 0 && excitatory == size {
		panic(fmt.Sprintf("network: %d inhibitory inputs per neuron but no inhibitory neurons", ci))
	}

	workers := min(max(opts.Workers, 1), size, MaxWorkers)
	n := &Network{
		model:      m,
		neurons:    neuron.NewPopulation(m, size, excitatory),
		excitatory: excitatory,
		stepSize:   p.StepSize,
		workers:    workers,
		noise:      make([]*neuron.Noise, workers),
	}
	for w := range n.noise {
		seed := opts.NoiseSeed
		if seed != 0 {
			seed += uint64(w)
		}
		n.noise[w] = neuron.NewModelNoise(m, seed)
	}
	if workers > 1 {
		n.logs = make([]deliveryLog, workers)
	}
	n.SetInputCurrent(p.ExternalCurrent)

	seed := opts.Seed
	if seed == 0 {
		seed = DefaultSeed
	}
	n.connect(rand.New(rand.NewPCG(seed, seed+1)), ce, ci)
	return n
}

// connect draws, for every destination, ce excitatory and ci inhibitory
// sources and registers the destination as their target.
func (n *Network) connect(rng *rand.Rand, ce, ci int) {
	inhibitory := len(n.neurons) - n.excitatory
	for dst := range n.neurons {
		for range ce {
			n.neurons.Connect(rng.IntN(n.excitatory), dst)
		}
		for range ci {
			n.neurons.Connect(n.excitatory+rng.IntN(inhibitory), dst)
		}
	}
}

// Size returns the number of neurons.
func (n *Network) Size() int { return len(n.neurons) }

// Excitatory returns the number of excitatory neurons; they occupy
// indices [0, Excitatory()).
func (n *Network) Excitatory() int { return n.excitatory }

// Time returns the number of steps advanced so far.
func (n *Network) Time() int { return n.clock }

// StepSize returns the duration of one step in milliseconds.
func (n *Network) StepSize() float64 { return n.stepSize }

// Model returns the constants shared by every neuron.
func (n *Network) Model() *neuron.Model { return n.model }

// Neuron returns the neuron at index i. It panics if i is out of range.
func (n *Network) Neuron(i int) *neuron.Neuron {
	if i < 0 || i >= len(n.neurons) {
		panic(fmt.Sprintf("network: neuron %d outside population of %d", i, len(n.neurons)))
	}
	return &n.neurons[i]
}

// SetInputCurrent sets the external current of every neuron.
func (n *Network) SetInputCurrent(current float64) {
	for i := range n.neurons {
		n.neurons[i].SetInputCurrent(current)
	}
}

// Population exposes the neuron arena for read-only inspection.
func (n *Network) Population() neuron.Population { return n.neurons }

// Update advances every neuron by one step with background input.
func (n *Network) Update() {
	n.step(neuron.DriveBackground)
}

// UpdateWithoutBackgroundNoise advances every neuron by one step driven
// by its external current only.
func (n *Network) UpdateWithoutBackgroundNoise() {
	n.step(neuron.DriveCurrent)
}

func (n *Network) step(drive neuron.Drive) {
	if n.workers > 1 {
		n.stepParallel(drive)
	} else {
		noise := n.noise[0]
		for i := range n.neurons {
			n.neurons[i].Step(drive, noise, n.neurons)
		}
	}
	n.clock++
}
