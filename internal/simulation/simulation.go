package simulation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nvandessel/brunel/internal/logging"
	"github.com/nvandessel/brunel/internal/network"
	"github.com/nvandessel/brunel/internal/params"
)

// progressEvery is the number of steps between trace-level progress logs
// and cancellation checks.
const progressEvery = 1000

// Options tune a Simulation.
type Options struct {
	Network network.Options
	// Logger receives progress records. Nil discards them.
	Logger *slog.Logger
}

// Simulation advances one network in time.
type Simulation struct {
	params params.Params
	net    *network.Network
	logger *slog.Logger
}

// New validates p and builds its network.
func New(p params.Params, opts Options) (*Simulation, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("failed to configure simulation: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Simulation{
		params: p,
		net:    network.New(p, opts.Network),
		logger: logger,
	}, nil
}

// Params returns the parameters the simulation was built with.
func (s *Simulation) Params() params.Params { return s.params }

// Network returns the simulated network.
func (s *Simulation) Network() *network.Network { return s.net }

// Time returns the number of steps simulated so far.
func (s *Simulation) Time() int { return s.net.Time() }

// Run advances the network by duration steps with background input.
func (s *Simulation) Run(duration int) {
	_ = s.RunContext(context.Background(), duration)
}

// RunUntil advances the network until it has simulated step steps. It
// does nothing if the network is already there.
func (s *Simulation) RunUntil(step int) {
	if step > s.net.Time() {
		s.Run(step - s.net.Time())
	}
}

// RunContext advances the network by duration steps, stopping early when
// ctx is cancelled. The network is left at a step boundary either way.
func (s *Simulation) RunContext(ctx context.Context, duration int) error {
	target := s.net.Time() + duration
	for s.net.Time() < target {
		s.net.Update()
		if now := s.net.Time(); now%progressEvery == 0 {
			s.logger.Log(ctx, logging.LevelTrace, "simulation progress", "step", now, "target", target)
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("simulation stopped at step %d: %w", now, err)
			}
		}
	}
	return nil
}

// MeanSpikeRateInInterval runs the network to end, if needed, and returns
// the population rate over [begin, end] in Hz.
func (s *Simulation) MeanSpikeRateInInterval(begin, end int) float64 {
	if end < begin {
		panic(fmt.Sprintf("simulation: interval end %d before begin %d", end, begin))
	}
	s.RunUntil(end)
	return s.net.MeanSpikeRateInInterval(begin, end)
}
