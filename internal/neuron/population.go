package neuron

import "fmt"

// Population is an arena of neurons addressed by index. It delivers
// spikes directly into the targets' delay buffers.
type Population []Neuron

// NewPopulation returns size neurons; the first excitatory of them are
// excitatory and the rest inhibitory.
func NewPopulation(m *Model, size, excitatory int) Population {
	if size <= 0 {
		panic(fmt.Sprintf("neuron: population size must be positive, got %d", size))
	}
	if excitatory < 0 || excitatory > size {
		panic(fmt.Sprintf("neuron: excitatory count %d outside [0, %d]", excitatory, size))
	}
	pop := make(Population, size)
	for i := range pop {
		kind := Inhibitory
		if i < excitatory {
			kind = Excitatory
		}
		pop[i] = New(kind, m)
	}
	return pop
}

// Connect adds target to the targets of source.
func (p Population) Connect(source, target int) {
	p.check(source)
	p.check(target)
	p[source].AddTarget(target)
}

// Deliver implements Deliverer.
func (p Population) Deliver(target, step int, amplitude float64) {
	p[target].ReceiveSpike(step, amplitude)
}

func (p Population) check(i int) {
	if i < 0 || i >= len(p) {
		panic(fmt.Sprintf("neuron: index %d outside population of %d", i, len(p)))
	}
}
