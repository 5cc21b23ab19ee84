package network

import (
	"fmt"
	"iter"
	"slices"
)

// Window bounds a spike query. The zero value selects every spike.
type Window struct {
	bounded    bool
	begin, end int
}

// All selects the full spike record.
func All() Window { return Window{} }

// Interval selects spikes whose step lies in [begin, end], inclusive.
// It panics if end < begin.
func Interval(begin, end int) Window {
	if end < begin {
		panic(fmt.Sprintf("network: interval end %d before begin %d", end, begin))
	}
	return Window{bounded: true, begin: begin, end: end}
}

// Bounded reports whether w restricts steps.
func (w Window) Bounded() bool { return w.bounded }

// Bounds returns the inclusive step bounds of a bounded window.
func (w Window) Bounds() (begin, end int) { return w.begin, w.end }

// Contains reports whether step falls inside w.
func (w Window) Contains(step int) bool {
	return !w.bounded || (step >= w.begin && step <= w.end)
}

// Select returns the part of the ascending history inside w.
func (w Window) Select(history []int) []int {
	if !w.bounded {
		return history
	}
	lo, _ := slices.BinarySearch(history, w.begin)
	hi, found := slices.BinarySearch(history, w.end)
	if found {
		hi++
	}
	return history[lo:hi]
}

func (w Window) String() string {
	if !w.bounded {
		return "all"
	}
	return fmt.Sprintf("[%d, %d]", w.begin, w.end)
}

// Spike is one recorded firing event.
type Spike struct {
	Neuron int
	Step   int
}

// Spikes yields every spike inside w, grouped by neuron in index order and
// ascending in step within a neuron.
func (n *Network) Spikes(w Window) iter.Seq[Spike] {
	return func(yield func(Spike) bool) {
		for i := range n.neurons {
			for _, step := range w.Select(n.neurons[i].Spikes()) {
				if !yield(Spike{Neuron: i, Step: step}) {
					return
				}
			}
		}
	}
}

// SpikesOf returns the steps at which neuron i fired inside w.
func (n *Network) SpikesOf(i int, w Window) []int {
	return w.Select(n.Neuron(i).Spikes())
}

// CountSpikes returns the number of spikes inside w across the population.
func (n *Network) CountSpikes(w Window) int {
	total := 0
	for i := range n.neurons {
		total += len(w.Select(n.neurons[i].Spikes()))
	}
	return total
}

// MeanSpikeRateInInterval returns the population firing rate in Hz over
// the steps [begin, end]. It panics if end < begin or end lies beyond the
// simulated horizon. A zero-length interval has rate 0.
func (n *Network) MeanSpikeRateInInterval(begin, end int) float64 {
	if end < begin {
		panic(fmt.Sprintf("network: interval end %d before begin %d", end, begin))
	}
	if end > n.clock {
		panic(fmt.Sprintf("network: interval end %d beyond simulated time %d", end, n.clock))
	}
	if end == begin {
		return 0
	}
	spikes := n.CountSpikes(Interval(begin, end))
	return float64(spikes) / RateNormalizer(len(n.neurons), begin, end, n.stepSize)
}

// RateNormalizer returns neurons * (end-begin) * stepSize * 1e-3, the
// neuron-seconds covered by [begin, end].
func RateNormalizer(neurons, begin, end int, stepSize float64) float64 {
	return float64(neurons) * float64(end-begin) * stepSize * 1e-3
}

// MeanNumberOfTargetsPerNeuron returns the average out-degree.
func (n *Network) MeanNumberOfTargetsPerNeuron() float64 {
	total := 0
	for i := range n.neurons {
		total += n.neurons[i].NumTargets()
	}
	return float64(total) / float64(len(n.neurons))
}

// MeanNumberOfExcitatoryTargetsPerNeuron returns the average number of
// excitatory targets per neuron.
func (n *Network) MeanNumberOfExcitatoryTargetsPerNeuron() float64 {
	total := 0
	for i := range n.neurons {
		total += n.neurons[i].NumExcitatoryTargets(n.neurons)
	}
	return float64(total) / float64(len(n.neurons))
}
