package neuron

import "fmt"

// DelayBuffer is a fixed-size ring of pending synaptic input. A spike
// emitted at step t is accumulated in the slot that is read at step
// t+delay; the buffer holds delay+1 slots so that the slot being read and
// the slot being written never coincide.
type DelayBuffer struct {
	delay int
	slots []float64
}

// NewDelayBuffer returns an empty buffer for the given delay in steps.
// It panics if delay is negative.
func NewDelayBuffer(delay int) DelayBuffer {
	if delay < 0 {
		panic(fmt.Sprintf("neuron: negative delay %d", delay))
	}
	return DelayBuffer{delay: delay, slots: make([]float64, delay+1)}
}

// Delay returns the transmission delay in steps.
func (b *DelayBuffer) Delay() int { return b.delay }

// Len returns the number of slots, delay+1.
func (b *DelayBuffer) Len() int { return len(b.slots) }

// Schedule adds amplitude to the slot read at sendStep+delay. Spikes that
// land on the same slot before it is consumed are summed.
func (b *DelayBuffer) Schedule(sendStep int, amplitude float64) {
	b.slots[b.index(sendStep+b.delay)] += amplitude
}

// Read returns the input accumulated for step.
func (b *DelayBuffer) Read(step int) float64 {
	return b.slots[b.index(step)]
}

// Clear zeroes the slot of step so that it can accumulate input for
// step+Len().
func (b *DelayBuffer) Clear(step int) {
	b.slots[b.index(step)] = 0
}

func (b *DelayBuffer) index(step int) int {
	if step < 0 {
		panic(fmt.Sprintf("neuron: negative step %d", step))
	}
	return step % len(b.slots)
}
