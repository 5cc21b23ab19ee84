// Package params holds the named model parameters of a Brunel network
// simulation, their defaults and the values derived from them.
//
// Times are expressed in simulation steps unless the field name says
// otherwise. StepSize converts steps to milliseconds.
package params

import (
	"errors"
	"fmt"
	"math"
)

// Defaults, taken from Brunel (2000), figure 8.
const (
	DefaultStepSize           = 0.1 // ms
	DefaultDelay              = 15  // steps
	DefaultRefractoryPeriod   = 20  // steps
	DefaultNeurons            = 12500
	DefaultExcitatoryPercent  = 80.0
	DefaultConnectionRatio    = 0.1
	DefaultThreshold          = 20.0 // mV
	DefaultResetPotential     = 0.0  // mV
	DefaultInitialPotential   = 0.0  // mV
	DefaultTimeConstant       = 20.0 // ms
	DefaultConnections        = 1
	DefaultExcitatoryJ        = 0.1 // mV
	DefaultInhibitoryRatio    = 4.5
	DefaultExternalRatio      = 0.9
	DefaultFinalTime          = 12000
	DefaultWindowBegin        = 10000
	DefaultWindowEnd          = 12000
	DefaultConnectivitySeed   = 5489
	DefaultOutputFileName     = "simulationData.txt"
	DefaultExternalCurrent    = 0.0
	DefaultRateMeasureBegin   = 2000
	DefaultRateMeasureEnd     = 12000
	defaultPercentDenominator = 100
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid parameters")

// Params contains every tunable of the model. The zero value is not
// usable; start from Default.
type Params struct {
	// StepSize is the duration of one simulation step, in milliseconds.
	StepSize float64 `json:"step_size_ms" yaml:"step_size_ms"`

	// Delay is the uniform synaptic transmission delay, in steps. Must be >= 1.
	Delay int `json:"delay" yaml:"delay"`

	// RefractoryPeriod is the number of steps after a spike during which
	// the membrane potential is frozen.
	RefractoryPeriod int `json:"refractory_period" yaml:"refractory_period"`

	// Neurons is the population size N.
	Neurons int `json:"neurons" yaml:"neurons"`

	// ExcitatoryPercent is the share of excitatory neurons, 0..100.
	ExcitatoryPercent float64 `json:"excitatory_percent" yaml:"excitatory_percent"`

	// ConnectionRatio is Ce/Ne, which equals Ci/Ni.
	ConnectionRatio float64 `json:"connection_ratio" yaml:"connection_ratio"`

	Threshold        float64 `json:"threshold_mv" yaml:"threshold_mv"`
	ResetPotential   float64 `json:"reset_potential_mv" yaml:"reset_potential_mv"`
	InitialPotential float64 `json:"initial_potential_mv" yaml:"initial_potential_mv"`

	// TimeConstant is the membrane time constant tau, in milliseconds.
	TimeConstant float64 `json:"time_constant_ms" yaml:"time_constant_ms"`

	// Connections is C in R = tau/C, the membrane resistance used by the
	// external-current drive.
	Connections float64 `json:"connections" yaml:"connections"`

	// ExcitatoryAmplitude is J, the potential jump caused by one excitatory spike.
	ExcitatoryAmplitude float64 `json:"excitatory_amplitude_mv" yaml:"excitatory_amplitude_mv"`

	// InhibitoryRatio is g = J_I / J_E, shared by all inhibitory neurons.
	InhibitoryRatio float64 `json:"inhibitory_ratio" yaml:"inhibitory_ratio"`

	// ExternalRatio is vext/vthr, the background rate relative to the rate
	// needed to reach threshold without feedback.
	ExternalRatio float64 `json:"external_ratio" yaml:"external_ratio"`

	// ExternalCurrent is the constant drive used by the noise-free update.
	ExternalCurrent float64 `json:"external_current" yaml:"external_current"`

	// FinalTime is the default run length, in steps.
	FinalTime int `json:"final_time" yaml:"final_time"`

	// WindowBegin and WindowEnd bound the exported spike records, in steps.
	WindowBegin int `json:"window_begin" yaml:"window_begin"`
	WindowEnd   int `json:"window_end" yaml:"window_end"`
}

// Default returns the parameters of the reference simulation.
func Default() Params {
	return Params{
		StepSize:            DefaultStepSize,
		Delay:               DefaultDelay,
		RefractoryPeriod:    DefaultRefractoryPeriod,
		Neurons:             DefaultNeurons,
		ExcitatoryPercent:   DefaultExcitatoryPercent,
		ConnectionRatio:     DefaultConnectionRatio,
		Threshold:           DefaultThreshold,
		ResetPotential:      DefaultResetPotential,
		InitialPotential:    DefaultInitialPotential,
		TimeConstant:        DefaultTimeConstant,
		Connections:         DefaultConnections,
		ExcitatoryAmplitude: DefaultExcitatoryJ,
		InhibitoryRatio:     DefaultInhibitoryRatio,
		ExternalRatio:       DefaultExternalRatio,
		ExternalCurrent:     DefaultExternalCurrent,
		FinalTime:           DefaultFinalTime,
		WindowBegin:         DefaultWindowBegin,
		WindowEnd:           DefaultWindowEnd,
	}
}

// Excitatory returns Ne, the number of excitatory neurons.
func (p Params) Excitatory() int {
	return int(float64(p.Neurons) * p.ExcitatoryPercent / defaultPercentDenominator)
}

// Inhibitory returns Ni = N - Ne.
func (p Params) Inhibitory() int {
	return p.Neurons - p.Excitatory()
}

// ExcitatoryConnections returns Ce, the excitatory inputs of every neuron.
// It also stands for Cext, the number of external excitatory inputs.
func (p Params) ExcitatoryConnections() int {
	return int(float64(p.Excitatory()) * p.ConnectionRatio)
}

// InhibitoryConnections returns Ci, the inhibitory inputs of every neuron.
func (p Params) InhibitoryConnections() int {
	return int(float64(p.Inhibitory()) * p.ConnectionRatio)
}

// Decay returns exp(-h/tau), the per-step retention of the membrane potential.
func (p Params) Decay() float64 {
	return math.Exp(-p.StepSize / p.TimeConstant)
}

// Resistance returns R = tau/C.
func (p Params) Resistance() float64 {
	return p.TimeConstant / p.Connections
}

// InhibitoryAmplitude returns -(J * g).
func (p Params) InhibitoryAmplitude() float64 {
	return -(p.ExcitatoryAmplitude * p.InhibitoryRatio)
}

// BackgroundRate returns the Poisson mean of external spikes per step,
// vext * Cext * h, expressed through the threshold rate
// vthr = theta / (J * Ce * tau).
func (p Params) BackgroundRate() float64 {
	return p.ExternalRatio * p.Threshold * p.StepSize / (p.ExcitatoryAmplitude * p.TimeConstant)
}

// StepToMillis converts a step index into simulated milliseconds.
func (p Params) StepToMillis(step int) float64 {
	return float64(step) * p.StepSize
}

// Validate checks that the parameters describe a computable model.
// Combinations that would divide by zero or feed a degenerate
// distribution are rejected here rather than surfacing as NaN later.
func (p Params) Validate() error {
	for _, f := range p.floatFields() {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return fmt.Errorf("%w: %s must be finite, got %v", ErrInvalid, f.name, f.value)
		}
	}
	if rate := p.BackgroundRate(); math.IsInf(rate, 0) || math.IsNaN(rate) {
		return fmt.Errorf("%w: background rate overflows, got %v", ErrInvalid, rate)
	}

	switch {
	case !(p.StepSize > 0) || math.IsInf(p.StepSize, 0):
		return fmt.Errorf("%w: step_size_ms must be positive, got %v", ErrInvalid, p.StepSize)
	case !(p.TimeConstant > 0) || math.IsInf(p.TimeConstant, 0):
		return fmt.Errorf("%w: time_constant_ms must be positive, got %v", ErrInvalid, p.TimeConstant)
	case !(p.Connections > 0):
		return fmt.Errorf("%w: connections must be positive, got %v", ErrInvalid, p.Connections)
	case !(p.ExcitatoryAmplitude > 0):
		return fmt.Errorf("%w: excitatory_amplitude_mv must be positive, got %v", ErrInvalid, p.ExcitatoryAmplitude)
	case p.Delay < 1:
		return fmt.Errorf("%w: delay must be at least one step, got %d", ErrInvalid, p.Delay)
	case p.RefractoryPeriod < 0:
		return fmt.Errorf("%w: refractory_period must be non-negative, got %d", ErrInvalid, p.RefractoryPeriod)
	case p.Neurons <= 0:
		return fmt.Errorf("%w: neurons must be positive, got %d", ErrInvalid, p.Neurons)
	case p.ExcitatoryPercent < 0 || p.ExcitatoryPercent > 100:
		return fmt.Errorf("%w: excitatory_percent must be between 0 and 100, got %v", ErrInvalid, p.ExcitatoryPercent)
	case p.ConnectionRatio < 0:
		return fmt.Errorf("%w: connection_ratio must be non-negative, got %v", ErrInvalid, p.ConnectionRatio)
	case p.InhibitoryRatio < 0:
		return fmt.Errorf("%w: inhibitory_ratio must be non-negative, got %v", ErrInvalid, p.InhibitoryRatio)
	case p.ExternalRatio < 0:
		return fmt.Errorf("%w: external_ratio must be non-negative, got %v", ErrInvalid, p.ExternalRatio)
	case p.FinalTime < 0:
		return fmt.Errorf("%w: final_time must be non-negative, got %d", ErrInvalid, p.FinalTime)
	case p.WindowBegin < 0 || p.WindowEnd < p.WindowBegin:
		return fmt.Errorf("%w: window [%d, %d] is empty or negative", ErrInvalid, p.WindowBegin, p.WindowEnd)
	}
	return nil
}

type namedFloat struct {
	name  string
	value float64
}

func (p Params) floatFields() []namedFloat {
	return []namedFloat{
		{"step_size_ms", p.StepSize},
		{"excitatory_percent", p.ExcitatoryPercent},
		{"connection_ratio", p.ConnectionRatio},
		{"threshold_mv", p.Threshold},
		{"reset_potential_mv", p.ResetPotential},
		{"initial_potential_mv", p.InitialPotential},
		{"time_constant_ms", p.TimeConstant},
		{"connections", p.Connections},
		{"excitatory_amplitude_mv", p.ExcitatoryAmplitude},
		{"inhibitory_ratio", p.InhibitoryRatio},
		{"external_ratio", p.ExternalRatio},
		{"external_current", p.ExternalCurrent},
	}
}
