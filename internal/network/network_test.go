package network

import (
	"math"
	"slices"
	"testing"

	"github.com/nvandessel/brunel/internal/params"
)

// smallParams returns a tenth of the reference network: 1000 excitatory and
// 250 inhibitory neurons with Ce = 100 and Ci = 25.
func smallParams(t *testing.T) params.Params {
	t.Helper()
	p := params.Default()
	p.Neurons = 1250
	return p
}

func TestNew_Connectivity(t *testing.T) {
	p := smallParams(t)
	n := New(p, Options{})

	if n.Size() != 1250 || n.Excitatory() != 1000 {
		t.Fatalf("Size() = %d, Excitatory() = %d, want 1250 / 1000", n.Size(), n.Excitatory())
	}
	if got := n.MeanNumberOfTargetsPerNeuron(); got != 125 {
		t.Errorf("MeanNumberOfTargetsPerNeuron() = %v, want 125", got)
	}
	if got := n.MeanNumberOfExcitatoryTargetsPerNeuron(); got != 100 {
		t.Errorf("MeanNumberOfExcitatoryTargetsPerNeuron() = %v, want 100", got)
	}

	for i := range n.Size() {
		for _, target := range n.Neuron(i).Targets() {
			if target < 0 || target >= n.Size() {
				t.Fatalf("neuron %d targets %d outside population", i, target)
			}
		}
	}
}

func TestNew_SourcesComeFromTheRightPools(t *testing.T) {
	p := smallParams(t)
	n := New(p, Options{Seed: 11})

	excitatoryIn := make([]int, n.Size())
	inhibitoryIn := make([]int, n.Size())
	for i := range n.Size() {
		for _, target := range n.Neuron(i).Targets() {
			if i < n.Excitatory() {
				excitatoryIn[target]++
			} else {
				inhibitoryIn[target]++
			}
		}
	}
	for j := range n.Size() {
		if excitatoryIn[j] != 100 || inhibitoryIn[j] != 25 {
			t.Fatalf("neuron %d has %d excitatory and %d inhibitory inputs, want 100 / 25", j, excitatoryIn[j], inhibitoryIn[j])
		}
	}
}

func TestNew_SeedFixesTopology(t *testing.T) {
	p := smallParams(t)
	a := New(p, Options{Seed: 3})
	b := New(p, Options{Seed: 3})
	c := New(p, Options{Seed: 4})

	same, differ := true, false
	for i := range a.Size() {
		if !slices.Equal(a.Neuron(i).Targets(), b.Neuron(i).Targets()) {
			same = false
		}
		if !slices.Equal(a.Neuron(i).Targets(), c.Neuron(i).Targets()) {
			differ = true
		}
	}
	if !same {
		t.Error("equal seeds produced different topologies")
	}
	if !differ {
		t.Error("different seeds produced the same topology")
	}
}

func TestMeanSpikeRateInInterval_NoiseFree(t *testing.T) {
	p := smallParams(t)
	p.ConnectionRatio = 0
	p.ExternalCurrent = 1.01
	n := New(p, Options{})

	for range 2001 {
		n.UpdateWithoutBackgroundNoise()
	}
	// Every neuron fires at steps 924 and 1868: 2 spikes over 0.2 s.
	if got := n.MeanSpikeRateInInterval(0, 2000); math.Abs(got-10) > 1e-9 {
		t.Errorf("MeanSpikeRateInInterval(0, 2000) = %v, want 10", got)
	}
	// Both ends are inclusive.
	if got, want := n.CountSpikes(Interval(924, 1868)), 2*n.Size(); got != want {
		t.Errorf("CountSpikes([924, 1868]) = %d, want %d", got, want)
	}
	if got := n.CountSpikes(Interval(925, 1867)); got != 0 {
		t.Errorf("CountSpikes([925, 1867]) = %d, want 0", got)
	}
	if got := n.MeanSpikeRateInInterval(924, 924); got != 0 {
		t.Errorf("zero-length interval rate = %v, want 0", got)
	}
}

func TestUpdate_RefractoryPeriodHolds(t *testing.T) {
	p := smallParams(t)
	p.InhibitoryRatio, p.ExternalRatio = 6, 4
	n := New(p, Options{NoiseSeed: 99})

	for range 1000 {
		n.Update()
	}
	if n.Time() != 1000 {
		t.Fatalf("Time() = %d, want 1000", n.Time())
	}
	if n.CountSpikes(All()) == 0 {
		t.Fatal("expected the driven network to fire")
	}
	for i := range n.Size() {
		spikes := n.SpikesOf(i, All())
		for k := 1; k < len(spikes); k++ {
			if spikes[k]-spikes[k-1] < p.RefractoryPeriod {
				t.Fatalf("neuron %d fired at %d and %d", i, spikes[k-1], spikes[k])
			}
		}
	}
}

func TestUpdate_ParallelMatchesSequential(t *testing.T) {
	p := smallParams(t)
	p.ExternalCurrent = 1.02
	seq := New(p, Options{Seed: 21})
	par := New(p, Options{Seed: 21, Workers: 4})

	for range 3000 {
		seq.UpdateWithoutBackgroundNoise()
		par.UpdateWithoutBackgroundNoise()
	}
	if seq.CountSpikes(All()) == 0 {
		t.Fatal("expected spikes")
	}
	for i := range seq.Size() {
		a, b := seq.Neuron(i), par.Neuron(i)
		if !slices.Equal(a.Spikes(), b.Spikes()) {
			t.Fatalf("neuron %d spike histories differ: %v vs %v", i, a.Spikes(), b.Spikes())
		}
		if math.Float64bits(a.MembranePotential()) != math.Float64bits(b.MembranePotential()) {
			t.Fatalf("neuron %d potentials differ: %v vs %v", i, a.MembranePotential(), b.MembranePotential())
		}
	}
}

func TestUpdate_ParallelWithNoise(t *testing.T) {
	p := smallParams(t)
	p.InhibitoryRatio, p.ExternalRatio = 5, 2
	n := New(p, Options{NoiseSeed: 5, Workers: 3})
	for range 500 {
		n.Update()
	}
	if n.Time() != 500 || n.CountSpikes(All()) == 0 {
		t.Errorf("Time() = %d, spikes = %d, want 500 steps with activity", n.Time(), n.CountSpikes(All()))
	}
}

func TestNew_ClampsWorkers(t *testing.T) {
	p := smallParams(t)
	p.Neurons = 20
	p.ExternalCurrent = 1.02

	tests := []struct {
		name    string
		workers int
		want    int
	}{
		{"sequential", 0, 1},
		{"population size", 1 << 50, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := New(p, Options{Seed: 3, Workers: tt.workers})
			if n.workers != tt.want || len(n.noise) != tt.want {
				t.Fatalf("workers = %d with %d noise sources, want %d", n.workers, len(n.noise), tt.want)
			}
			for range 1000 {
				n.UpdateWithoutBackgroundNoise()
			}
			if n.CountSpikes(All()) == 0 {
				t.Error("expected spikes")
			}
		})
	}

	p.Neurons = 2 * MaxWorkers
	if n := New(p, Options{Workers: 1 << 20}); n.workers != MaxWorkers {
		t.Errorf("workers = %d, want MaxWorkers", n.workers)
	}
}

func TestPopulation_SharesNeurons(t *testing.T) {
	n := New(smallParams(t), Options{Seed: 9})
	pop := n.Population()
	if len(pop) != n.Size() {
		t.Fatalf("len(Population()) = %d, want %d", len(pop), n.Size())
	}
	for i := range pop {
		if &pop[i] != n.Neuron(i) {
			t.Fatalf("Population()[%d] is not the network's neuron", i)
		}
	}
	total := 0
	for i := range pop {
		total += pop[i].NumExcitatoryTargets(pop)
	}
	if got := float64(total) / float64(n.Size()); got != n.MeanNumberOfExcitatoryTargetsPerNeuron() {
		t.Errorf("mean excitatory targets from population = %v, want %v", got, n.MeanNumberOfExcitatoryTargetsPerNeuron())
	}
}

func TestSpikes_OrderAndWindow(t *testing.T) {
	p := smallParams(t)
	p.Neurons = 10
	p.ConnectionRatio = 0
	n := New(p, Options{})
	for i := range n.Size() {
		n.Neuron(i).SetInputCurrent(1.01 + float64(i)*0.01)
	}
	for range 3000 {
		n.UpdateWithoutBackgroundNoise()
	}

	var all []Spike
	for s := range n.Spikes(All()) {
		all = append(all, s)
	}
	if len(all) != n.CountSpikes(All()) {
		t.Fatalf("iterated %d spikes, counted %d", len(all), n.CountSpikes(All()))
	}
	for k := 1; k < len(all); k++ {
		prev, cur := all[k-1], all[k]
		if cur.Neuron < prev.Neuron || (cur.Neuron == prev.Neuron && cur.Step <= prev.Step) {
			t.Fatalf("spikes out of order at %d: %+v then %+v", k, prev, cur)
		}
	}

	w := Interval(1000, 2000)
	for s := range n.Spikes(w) {
		if !w.Contains(s.Step) {
			t.Errorf("spike %+v outside %v", s, w)
		}
	}

	// Stopping early must not panic.
	seen := 0
	for range n.Spikes(All()) {
		seen++
		if seen == 3 {
			break
		}
	}
}

func TestWindow_Select(t *testing.T) {
	history := []int{3, 7, 10, 15, 20}
	tests := []struct {
		name string
		w    Window
		want []int
	}{
		{"all", All(), history},
		{"inclusive bounds", Interval(7, 15), []int{7, 10, 15}},
		{"between spikes", Interval(8, 14), []int{10}},
		{"empty", Interval(11, 14), []int{}},
		{"before history", Interval(0, 2), []int{}},
		{"single step", Interval(20, 20), []int{20}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.w.Select(history); !slices.Equal(got, tt.want) {
				t.Errorf("Select() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPreconditions(t *testing.T) {
	p := smallParams(t)
	p.Neurons = 20
	n := New(p, Options{})
	n.Update()

	tests := []struct {
		name string
		fn   func()
	}{
		{"inverted interval", func() { Interval(5, 3) }},
		{"rate end before begin", func() { n.MeanSpikeRateInInterval(1, 0) }},
		{"rate beyond horizon", func() { n.MeanSpikeRateInInterval(0, 2) }},
		{"neuron out of range", func() { n.Neuron(20) }},
		{"negative neuron", func() { n.Neuron(-1) }},
		{"empty network", func() {
			q := smallParams(t)
			q.Neurons = 0
			New(q, Options{})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("expected panic")
				}
			}()
			tt.fn()
		})
	}
}
