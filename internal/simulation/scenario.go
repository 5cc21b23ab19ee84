package simulation

import (
	"fmt"
	"strings"

	"github.com/nvandessel/brunel/internal/params"
)

// Scenario is one panel of Brunel's figure 8.
type Scenario struct {
	Name        string
	Description string

	// InhibitoryRatio is g, ExternalRatio is vext/vthr.
	InhibitoryRatio float64
	ExternalRatio   float64

	// WindowBegin and WindowEnd bound the exported spikes, in steps. The
	// network is run until WindowEnd.
	WindowBegin int
	WindowEnd   int

	// MeasureRate enables the mean rate over [RateBegin, RateEnd].
	MeasureRate bool
	RateBegin   int
	RateEnd     int

	// TheoryRate and SimulatedRate are the values Brunel reports, in Hz.
	TheoryRate    float64
	SimulatedRate float64
}

var (
	ScenarioA = Scenario{
		Name:            "A",
		Description:     "synchronous regular: strong excitation, fast oscillation",
		InhibitoryRatio: 3,
		ExternalRatio:   2,
		WindowBegin:     5000,
		WindowEnd:       6000,
	}
	ScenarioB = Scenario{
		Name:            "B",
		Description:     "synchronous irregular, fast oscillation",
		InhibitoryRatio: 6,
		ExternalRatio:   4,
		WindowBegin:     params.DefaultWindowBegin,
		WindowEnd:       params.DefaultWindowEnd,
		MeasureRate:     true,
		RateBegin:       params.DefaultRateMeasureBegin,
		RateEnd:         params.DefaultRateMeasureEnd,
		TheoryRate:      55.8,
		SimulatedRate:   60.7,
	}
	ScenarioC = Scenario{
		Name:            "C",
		Description:     "asynchronous irregular",
		InhibitoryRatio: 5,
		ExternalRatio:   2,
		WindowBegin:     params.DefaultWindowBegin,
		WindowEnd:       params.DefaultWindowEnd,
		MeasureRate:     true,
		RateBegin:       params.DefaultRateMeasureBegin,
		RateEnd:         params.DefaultRateMeasureEnd,
		TheoryRate:      38.0,
		SimulatedRate:   37.7,
	}
	ScenarioD = Scenario{
		Name:            "D",
		Description:     "synchronous irregular, slow oscillation",
		InhibitoryRatio: 4.5,
		ExternalRatio:   0.9,
		WindowBegin:     params.DefaultWindowBegin,
		WindowEnd:       params.DefaultWindowEnd,
		MeasureRate:     true,
		RateBegin:       params.DefaultRateMeasureBegin,
		RateEnd:         params.DefaultRateMeasureEnd,
		TheoryRate:      6.5,
		SimulatedRate:   5.5,
	}
)

// Scenarios lists the figure panels in menu order.
var Scenarios = []Scenario{ScenarioA, ScenarioB, ScenarioC, ScenarioD}

// Lookup returns the scenario with the given name, ignoring case and
// surrounding space.
func Lookup(name string) (Scenario, bool) {
	name = strings.TrimSpace(name)
	for _, sc := range Scenarios {
		if strings.EqualFold(sc.Name, name) {
			return sc, true
		}
	}
	return Scenario{}, false
}

// Names returns the scenario names in menu order.
func Names() []string {
	names := make([]string, len(Scenarios))
	for i, sc := range Scenarios {
		names[i] = sc.Name
	}
	return names
}

// Duration returns the number of steps the scenario runs.
func (sc Scenario) Duration() int {
	if sc.MeasureRate {
		return max(sc.WindowEnd, sc.RateEnd)
	}
	return sc.WindowEnd
}

// Apply returns p with the scenario's ratios, export window and run
// length.
func (sc Scenario) Apply(p params.Params) params.Params {
	p.InhibitoryRatio = sc.InhibitoryRatio
	p.ExternalRatio = sc.ExternalRatio
	p.WindowBegin = sc.WindowBegin
	p.WindowEnd = sc.WindowEnd
	p.FinalTime = sc.Duration()
	return p
}

// Validate checks that the windows are well formed.
func (sc Scenario) Validate() error {
	if sc.WindowBegin < 0 || sc.WindowEnd < sc.WindowBegin {
		return fmt.Errorf("scenario %s: export window [%d, %d] is empty or negative", sc.Name, sc.WindowBegin, sc.WindowEnd)
	}
	if sc.MeasureRate && (sc.RateBegin < 0 || sc.RateEnd < sc.RateBegin) {
		return fmt.Errorf("scenario %s: rate interval [%d, %d] is empty or negative", sc.Name, sc.RateBegin, sc.RateEnd)
	}
	return nil
}

// Reference returns the sentence quoting Brunel's rates, or "" when the
// scenario measures none.
func (sc Scenario) Reference() string {
	if !sc.MeasureRate {
		return ""
	}
	return fmt.Sprintf("The corresponding value for this setting from Brunel is in Theory: %.1f Hz and in Simulation: %.1f Hz.",
		sc.TheoryRate, sc.SimulatedRate)
}
