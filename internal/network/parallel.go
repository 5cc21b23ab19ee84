package network

import (
	"golang.org/x/sync/errgroup"

	"github.com/nvandessel/brunel/internal/neuron"
)

// delivery is a spike emitted during a parallel step, applied once every
// worker has finished.
type delivery struct {
	target    int
	step      int
	amplitude float64
}

// deliveryLog buffers the spikes one worker emits during a step.
type deliveryLog []delivery

func (l *deliveryLog) Deliver(target, step int, amplitude float64) {
	*l = append(*l, delivery{target: target, step: step, amplitude: amplitude})
}

// stepParallel splits the population into contiguous chunks, one per
// worker. Spikes land in worker-local logs and are merged in worker order
// after the step. A spike emitted at step t is scheduled for t+delay and
// delay is at least one, so no neuron reads it during the current step;
// deferring the merge leaves the result unchanged, and merging in index
// order keeps the floating-point sums identical to a sequential step.
func (n *Network) stepParallel(drive neuron.Drive) {
	size := len(n.neurons)
	chunk := (size + n.workers - 1) / n.workers

	var g errgroup.Group
	for w := range n.workers {
		lo := w * chunk
		hi := min(lo+chunk, size)
		log := &n.logs[w]
		*log = (*log)[:0]
		if lo >= hi {
			continue
		}
		noise := n.noise[w]
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				n.neurons[i].Step(drive, noise, log)
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, log := range n.logs {
		for _, d := range log {
			n.neurons[d.target].ReceiveSpike(d.step, d.amplitude)
		}
	}
}
