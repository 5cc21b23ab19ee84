package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/brunel/internal/network"
	"github.com/nvandessel/brunel/internal/ratelimit"
	"github.com/nvandessel/brunel/internal/simulation"
	"github.com/nvandessel/brunel/internal/store"
)

const (
	// maxNeurons bounds the network size an agent may request.
	maxNeurons = 50000

	defaultRunsLimit = 20

	runResourcePrefix = "brunel://runs/"
)

// registerTools registers all brunel MCP tools with the server.
func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "brunel_scenarios",
		Description: "List the figure 8 scenarios of Brunel (2000) with their parameters and reference rates",
	}, s.handleBrunelScenarios)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "brunel_run",
		Description: "Simulate one figure 8 scenario, store the spike record and report the mean firing rate",
	}, s.handleBrunelRun)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "brunel_rate",
		Description: "Compute the mean population firing rate of a stored run over a step interval",
	}, s.handleBrunelRate)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "brunel_runs",
		Description: "List stored simulation runs, newest first",
	}, s.handleBrunelRuns)
}

// registerResources registers MCP resources.
func (s *Server) registerResources() {
	s.server.AddResource(&sdk.Resource{
		URI:         "brunel://scenarios",
		Name:        "brunel-scenarios",
		Description: "The four network states of Brunel's figure 8 and the rates reported for them.",
		MIMEType:    "text/markdown",
	}, s.handleScenariosResource)

	s.server.AddResourceTemplate(&sdk.ResourceTemplate{
		URITemplate: runResourcePrefix + "{id}",
		Name:        "brunel-run",
		Description: "Parameters and results of one stored run.",
		MIMEType:    "text/markdown",
	}, s.handleRunResource)
}

func (s *Server) handleScenariosResource(ctx context.Context, req *sdk.ReadResourceRequest) (*sdk.ReadResourceResult, error) {
	var sb strings.Builder
	sb.WriteString("# Brunel (2000), figure 8\n\n")
	sb.WriteString("| Panel | g | vext/vthr | Steps | Theory (Hz) | Simulation (Hz) |\n")
	sb.WriteString("|---|---|---|---|---|---|\n")
	for _, sc := range simulation.Scenarios {
		theory, paper := "-", "-"
		if sc.MeasureRate {
			theory, paper = fmt.Sprintf("%.1f", sc.TheoryRate), fmt.Sprintf("%.1f", sc.SimulatedRate)
		}
		fmt.Fprintf(&sb, "| %s | %g | %g | %d | %s | %s |\n",
			sc.Name, sc.InhibitoryRatio, sc.ExternalRatio, sc.Duration(), theory, paper)
	}

	return &sdk.ReadResourceResult{
		Contents: []*sdk.ResourceContents{
			{
				URI:      req.Params.URI,
				MIMEType: "text/markdown",
				Text:     sb.String(),
			},
		},
	}, nil
}

func (s *Server) handleRunResource(ctx context.Context, req *sdk.ReadResourceRequest) (*sdk.ReadResourceResult, error) {
	uri := req.Params.URI
	if !strings.HasPrefix(uri, runResourcePrefix) {
		return nil, fmt.Errorf("invalid URI format: %s", uri)
	}
	id := strings.TrimPrefix(uri, runResourcePrefix)
	if id == "" {
		return nil, fmt.Errorf("run ID is required")
	}

	run, err := s.store.GetRun(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}
	if run == nil {
		return nil, sdk.ResourceNotFoundError(uri)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# Run %s\n\n", run.ID)
	fmt.Fprintf(&sb, "**Scenario:** %s\n", run.Scenario)
	fmt.Fprintf(&sb, "**Created:** %s\n", run.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(&sb, "**Neurons:** %d\n", run.Params.Neurons)
	fmt.Fprintf(&sb, "**g:** %g, **vext/vthr:** %g\n", run.Params.InhibitoryRatio, run.Params.ExternalRatio)
	fmt.Fprintf(&sb, "**Seed:** %d, **noise seed:** %d, **workers:** %d\n\n", run.Seed, run.NoiseSeed, run.Workers)
	fmt.Fprintf(&sb, "- Steps: %d\n", run.Steps)
	fmt.Fprintf(&sb, "- Spikes: %d\n", run.SpikeCount)
	if run.Rate != nil {
		fmt.Fprintf(&sb, "- Mean rate over [%d, %d]: %.6g Hz\n", run.RateBegin, run.RateEnd, *run.Rate)
	}
	fmt.Fprintf(&sb, "- Wall time: %s\n", run.Duration.Round(time.Millisecond))

	return &sdk.ReadResourceResult{
		Contents: []*sdk.ResourceContents{
			{
				URI:      uri,
				MIMEType: "text/markdown",
				Text:     sb.String(),
			},
		},
	}, nil
}

// handleBrunelScenarios implements the brunel_scenarios tool.
func (s *Server) handleBrunelScenarios(ctx context.Context, req *sdk.CallToolRequest, args BrunelScenariosInput) (_ *sdk.CallToolResult, _ BrunelScenariosOutput, retErr error) {
	start := time.Now()
	defer func() { s.auditTool("brunel_scenarios", start, retErr, nil) }()

	if err := ratelimit.CheckLimit(s.toolLimiters, "brunel_scenarios"); err != nil {
		return nil, BrunelScenariosOutput{}, err
	}

	items := make([]ScenarioItem, 0, len(simulation.Scenarios))
	for _, sc := range simulation.Scenarios {
		items = append(items, ScenarioItem{
			Name:            sc.Name,
			Description:     sc.Description,
			InhibitoryRatio: sc.InhibitoryRatio,
			ExternalRatio:   sc.ExternalRatio,
			Steps:           sc.Duration(),
			TheoryHz:        sc.TheoryRate,
			PaperHz:         sc.SimulatedRate,
		})
	}
	return nil, BrunelScenariosOutput{Scenarios: items}, nil
}

// handleBrunelRun implements the brunel_run tool.
func (s *Server) handleBrunelRun(ctx context.Context, req *sdk.CallToolRequest, args BrunelRunInput) (_ *sdk.CallToolResult, _ BrunelRunOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("brunel_run", start, retErr, map[string]any{
			"scenario": args.Scenario, "neurons": args.Neurons, "seed": args.Seed,
			"noise_seed": args.NoiseSeed, "workers": args.Workers,
		})
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "brunel_run"); err != nil {
		return nil, BrunelRunOutput{}, err
	}

	sc, ok := simulation.Lookup(args.Scenario)
	if !ok {
		return nil, BrunelRunOutput{}, fmt.Errorf("unknown scenario %q (valid: %s)", args.Scenario, strings.Join(simulation.Names(), ", "))
	}
	if args.Neurons < 0 || args.Neurons > maxNeurons {
		return nil, BrunelRunOutput{}, fmt.Errorf("neurons must be between 1 and %d, got %d", maxNeurons, args.Neurons)
	}
	if args.Workers < 0 || args.Workers > network.MaxWorkers {
		return nil, BrunelRunOutput{}, fmt.Errorf("workers must be between 0 and %d, got %d", network.MaxWorkers, args.Workers)
	}

	p := s.base.Model
	if args.Neurons > 0 {
		p.Neurons = args.Neurons
	}
	opts := s.base.Network.Options()
	if args.Seed != 0 {
		opts.Seed = args.Seed
	}
	if args.NoiseSeed != 0 {
		opts.NoiseSeed = args.NoiseSeed
	}
	if args.Workers != 0 {
		opts.Workers = args.Workers
	}

	s.runMu.Lock()
	defer s.runMu.Unlock()

	runner := simulation.NewRunner(p, simulation.RunnerOptions{
		Network: opts,
		Output:  simulation.Output{Skip: true},
		Store:   s.store,
		Logger:  s.logger,
	})
	res, err := runner.Run(ctx, sc)
	if err != nil {
		return nil, BrunelRunOutput{}, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}

	out := BrunelRunOutput{
		RunID:      res.RunID,
		Scenario:   sc.Name,
		Neurons:    res.Neurons,
		Steps:      res.Steps,
		Spikes:     res.Spikes,
		RateHz:     res.Rate,
		TheoryHz:   sc.TheoryRate,
		PaperHz:    sc.SimulatedRate,
		DurationMs: res.Duration.Milliseconds(),
		Failures:   res.Failures,
		Message:    res.Summary(),
	}
	return nil, out, nil
}

// handleBrunelRate implements the brunel_rate tool.
func (s *Server) handleBrunelRate(ctx context.Context, req *sdk.CallToolRequest, args BrunelRateInput) (_ *sdk.CallToolResult, _ BrunelRateOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("brunel_rate", start, retErr, map[string]any{
			"run_id": args.RunID, "begin": args.Begin, "end": args.End,
		})
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "brunel_rate"); err != nil {
		return nil, BrunelRateOutput{}, err
	}
	if args.RunID == "" {
		return nil, BrunelRateOutput{}, fmt.Errorf("'run_id' parameter is required")
	}
	if args.Begin < 0 {
		return nil, BrunelRateOutput{}, fmt.Errorf("'begin' must be non-negative, got %d", args.Begin)
	}

	rate, err := store.MeanSpikeRate(ctx, s.store, args.RunID, args.Begin, args.End)
	if err != nil {
		return nil, BrunelRateOutput{}, err
	}
	count, err := s.store.CountSpikes(ctx, args.RunID, network.Interval(args.Begin, args.End))
	if err != nil {
		return nil, BrunelRateOutput{}, fmt.Errorf("failed to count spikes: %w", err)
	}

	return nil, BrunelRateOutput{
		RunID:  args.RunID,
		Begin:  args.Begin,
		End:    args.End,
		Spikes: count,
		RateHz: rate,
	}, nil
}

// handleBrunelRuns implements the brunel_runs tool.
func (s *Server) handleBrunelRuns(ctx context.Context, req *sdk.CallToolRequest, args BrunelRunsInput) (_ *sdk.CallToolResult, _ BrunelRunsOutput, retErr error) {
	start := time.Now()
	defer func() { s.auditTool("brunel_runs", start, retErr, map[string]any{"limit": args.Limit}) }()

	if err := ratelimit.CheckLimit(s.toolLimiters, "brunel_runs"); err != nil {
		return nil, BrunelRunsOutput{}, err
	}

	limit := args.Limit
	if limit <= 0 {
		limit = defaultRunsLimit
	}
	runs, err := s.store.ListRuns(ctx, limit)
	if err != nil {
		return nil, BrunelRunsOutput{}, fmt.Errorf("failed to list runs: %w", err)
	}

	items := make([]RunListItem, 0, len(runs))
	for _, r := range runs {
		items = append(items, RunListItem{
			ID:         r.ID,
			Scenario:   r.Scenario,
			CreatedAt:  r.CreatedAt,
			Neurons:    r.Params.Neurons,
			Steps:      r.Steps,
			SpikeCount: r.SpikeCount,
			RateHz:     r.Rate,
		})
	}
	return nil, BrunelRunsOutput{Runs: items, Count: len(items)}, nil
}
