package mcp

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/kuramap/internal/dataset"
	"github.com/nvandessel/kuramap/internal/pathutil"
	"github.com/nvandessel/kuramap/internal/ratelimit"
	"github.com/nvandessel/kuramap/internal/session"
	"github.com/nvandessel/kuramap/internal/store"
	"github.com/nvandessel/kuramap/internal/visualization"
)

// Request size limits. Training and integration run inside the request.
const (
	maxUnits     = 4096
	maxSamples   = 20000
	maxEpochs    = 1000
	maxSyncSteps = 100000
	defaultLimit = 20
	maxLimit     = 500

	maxDataFileBytes = 32 << 20
)

// recentRunsURI is the resource listing the latest runs.
const recentRunsURI = "kuramap://runs/recent"

// registerTools registers all kuramap MCP tools with the server.
func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "kuramap_train",
		Description: "Train a Kuramoto-coupled self-organizing map on inline or synthetic samples and report quantization error and synchronization",
	}, s.handleTrain)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "kuramap_sync",
		Description: "Run the oscillator field alone on a grid and report the order parameter over time",
	}, s.handleSync)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "kuramap_runs",
		Description: "List recorded training runs, or show one run with its per-epoch metrics",
	}, s.handleRuns)
}

// registerResources registers MCP resources for auto-loading into context.
func (s *Server) registerResources() {
	s.server.AddResource(&sdk.Resource{
		URI:         recentRunsURI,
		Name:        "kuramap-recent-runs",
		Description: "The most recent training runs with their final quantization error and order parameter.",
		MIMEType:    "text/markdown",
	}, s.handleRecentRunsResource)
}

// handleTrain implements the kuramap_train tool.
func (s *Server) handleTrain(ctx context.Context, req *sdk.CallToolRequest, args TrainInput) (_ *sdk.CallToolResult, _ TrainOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("kuramap_train", start, retErr, sanitizeToolParams(trainParams(args)))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "kuramap_train"); err != nil {
		return nil, TrainOutput{}, err
	}

	treq, err := s.trainRequest(args)
	if err != nil {
		return nil, TrainOutput{}, err
	}

	opts := session.Options{Trace: s.trace, Logger: s.logger}
	if s.settings.Run.Record && !args.NoRecord {
		opts.Store = s.store
	}

	res, err := session.Train(ctx, treq, opts)
	if err != nil {
		return nil, TrainOutput{}, fmt.Errorf("training failed: %w", err)
	}

	out := TrainOutput{
		RunID:     res.RunID,
		Stats:     res.Stats,
		Order:     res.Order,
		MeanPhase: res.MeanPhase,
		History:   res.History,
		Message: fmt.Sprintf("Trained %dx%d lattice on %d %s samples for %d epochs (%s): QE %.4f -> %.4f, R=%.3f",
			res.Rows, res.Cols, len(treq.Samples), treq.Source, res.Stats.Epochs, res.Stats.State,
			res.Stats.InitialError, res.Stats.FinalError, res.Order),
	}
	if args.Maps {
		maps, err := res.Maps()
		if err != nil {
			return nil, TrainOutput{}, fmt.Errorf("rendering maps: %w", err)
		}
		out.Maps = maps
	}
	return nil, out, nil
}

// trainRequest merges args over the configured engine settings.
func (s *Server) trainRequest(args TrainInput) (session.TrainRequest, error) {
	eng := s.settings.Engine
	if args.Rows > 0 {
		eng.Rows = args.Rows
	}
	if args.Cols > 0 {
		eng.Cols = args.Cols
	}
	if args.Epochs > 0 {
		eng.Epochs = args.Epochs
	}
	if args.CouplingMode != "" {
		eng.CouplingMode = args.CouplingMode
	}
	if args.Neighborhood != "" {
		eng.Neighborhood = args.Neighborhood
	}
	if args.Seed != nil {
		eng.Seed = *args.Seed
	}
	samples, source, err := s.requestSamples(args)
	if err != nil {
		return session.TrainRequest{}, err
	}
	switch {
	case args.Dim > 0:
		eng.Dim = args.Dim
	case len(samples) > 0:
		eng.Dim = len(samples[0])
	}

	if !withinUnits(eng.Rows, eng.Cols) {
		return session.TrainRequest{}, fmt.Errorf("lattice too large: %dx%d exceeds %d units", eng.Rows, eng.Cols, maxUnits)
	}
	if eng.Epochs > maxEpochs {
		return session.TrainRequest{}, fmt.Errorf("epochs %d exceeds the limit of %d", eng.Epochs, maxEpochs)
	}

	cfg, err := eng.TrainingConfig()
	if err != nil {
		return session.TrainRequest{}, err
	}

	treq := session.TrainRequest{Config: cfg, CoherenceRadius: s.settings.Run.CoherenceRadius}
	if samples != nil {
		treq.Samples, treq.Source = samples, source
		return treq, nil
	}

	n := args.Samples
	if n == 0 {
		n = s.settings.Run.Samples
	}
	if n <= 0 || n > maxSamples {
		return session.TrainRequest{}, fmt.Errorf("samples must be in [1, %d], got %d", maxSamples, n)
	}
	treq.Samples = session.SyntheticSamples(cfg.Seed, n, cfg.Dim)
	treq.Source = "synthetic"
	return treq, nil
}

func trainParams(args TrainInput) map[string]any {
	p := map[string]any{}
	if args.Rows > 0 {
		p["rows"] = args.Rows
	}
	if args.Cols > 0 {
		p["cols"] = args.Cols
	}
	if args.Dim > 0 {
		p["dim"] = args.Dim
	}
	if args.Epochs > 0 {
		p["epochs"] = args.Epochs
	}
	if args.Samples > 0 {
		p["samples"] = args.Samples
	}
	if len(args.Data) > 0 {
		p["data"] = len(args.Data)
	}
	if args.CouplingMode != "" {
		p["coupling_mode"] = args.CouplingMode
	}
	if args.Neighborhood != "" {
		p["neighborhood"] = args.Neighborhood
	}
	if args.Seed != nil {
		p["seed"] = *args.Seed
	}
	if args.DataPath != "" {
		p["data_path"] = args.DataPath
	}
	return p
}

// requestSamples returns the inline or file samples of args, or nil when
// the caller asked for synthetic data.
func (s *Server) requestSamples(args TrainInput) ([][]float64, string, error) {
	switch {
	case len(args.Data) > 0 && args.DataPath != "":
		return nil, "", fmt.Errorf("data and data_path are mutually exclusive")
	case len(args.Data) > 0:
		if len(args.Data) > maxSamples {
			return nil, "", fmt.Errorf("%d samples exceeds the limit of %d", len(args.Data), maxSamples)
		}
		return args.Data, "inline", nil
	case args.DataPath != "":
		path, err := pathutil.Resolve(args.DataPath, s.dataDirs)
		if err != nil {
			return nil, "", err
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, "", fmt.Errorf("failed to open %s: %w", pathutil.RedactPath(path), err)
		}
		defer f.Close()

		samples, err := dataset.LoadCSV(io.LimitReader(f, maxDataFileBytes), args.Dim)
		if err != nil {
			return nil, "", fmt.Errorf("failed to load %s: %w", pathutil.RedactPath(path), err)
		}
		if len(samples) == 0 || len(samples) > maxSamples {
			return nil, "", fmt.Errorf("%s holds %d samples, want 1 to %d", pathutil.RedactPath(path), len(samples), maxSamples)
		}
		return samples, filepath.Base(path), nil
	}
	return nil, "", nil
}

// handleSync implements the kuramap_sync tool.
func (s *Server) handleSync(ctx context.Context, req *sdk.CallToolRequest, args SyncInput) (_ *sdk.CallToolResult, _ SyncOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("kuramap_sync", start, retErr, sanitizeToolParams(syncParams(args)))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "kuramap_sync"); err != nil {
		return nil, SyncOutput{}, err
	}

	format, err := visualization.ParseFormat(args.Format)
	if err != nil {
		return nil, SyncOutput{}, err
	}

	sreq := s.syncRequest(args)
	if !withinUnits(sreq.Rows, sreq.Cols) {
		return nil, SyncOutput{}, fmt.Errorf("grid too large: %dx%d exceeds %d units", sreq.Rows, sreq.Cols, maxUnits)
	}
	if sreq.Steps > maxSyncSteps {
		return nil, SyncOutput{}, fmt.Errorf("steps %d exceeds the limit of %d", sreq.Steps, maxSyncSteps)
	}

	res, err := session.Sync(ctx, sreq, session.Options{Trace: s.trace, Logger: s.logger})
	if err != nil {
		return nil, SyncOutput{}, fmt.Errorf("sync failed: %w", err)
	}

	out := SyncOutput{
		Steps:      res.Steps,
		Order:      res.Order,
		MeanPhase:  res.MeanPhase,
		Trajectory: res.Trajectory,
		Message: fmt.Sprintf("Integrated %dx%d oscillators for %d steps: R %.3f -> %.3f",
			res.Rows, res.Cols, res.Steps, res.Trajectory[0].Order, res.Order),
	}
	switch format {
	case visualization.FormatASCII:
		out.Rendering, err = visualization.PhaseMap(res.Phases, res.Rows, res.Cols)
	case visualization.FormatDOT:
		out.Rendering, err = res.DOT()
	case visualization.FormatJSON:
		out.Phases = res.Phases
	}
	if err != nil {
		return nil, SyncOutput{}, fmt.Errorf("rendering phases: %w", err)
	}
	return nil, out, nil
}

// syncRequest merges args over the configured engine settings.
func (s *Server) syncRequest(args SyncInput) session.SyncRequest {
	eng := s.settings.Engine
	sreq := session.DefaultSyncRequest()
	sreq.Rows, sreq.Cols = eng.Rows, eng.Cols
	sreq.CouplingStrength = eng.CouplingStrength
	sreq.Dt = eng.Dt
	sreq.NoiseStd = eng.NoiseStd
	sreq.FrequencyMean, sreq.FrequencyStd = eng.FrequencyMean, eng.FrequencyStd
	sreq.CouplingRadius = eng.CouplingRadius
	sreq.CoherenceRadius = s.settings.Run.CoherenceRadius
	sreq.Seed = eng.Seed
	sreq.Workers = eng.WorkerCount()

	if args.Rows > 0 {
		sreq.Rows = args.Rows
	}
	if args.Cols > 0 {
		sreq.Cols = args.Cols
	}
	if args.Steps > 0 {
		sreq.Steps = args.Steps
	}
	if args.CouplingStrength != nil {
		sreq.CouplingStrength = *args.CouplingStrength
	}
	if args.CouplingRadius != nil {
		sreq.CouplingRadius = *args.CouplingRadius
	}
	if args.Dt > 0 {
		sreq.Dt = args.Dt
	}
	if args.NoiseStd != nil {
		sreq.NoiseStd = *args.NoiseStd
	}
	if args.Seed != nil {
		sreq.Seed = *args.Seed
	}
	sreq.PerturbStep = args.PerturbStep
	sreq.PerturbIntensity = args.PerturbIntensity
	return sreq
}

func syncParams(args SyncInput) map[string]any {
	p := map[string]any{}
	if args.Rows > 0 {
		p["rows"] = args.Rows
	}
	if args.Cols > 0 {
		p["cols"] = args.Cols
	}
	if args.Steps > 0 {
		p["steps"] = args.Steps
	}
	if args.CouplingStrength != nil {
		p["coupling_strength"] = *args.CouplingStrength
	}
	if args.CouplingRadius != nil {
		p["coupling_radius"] = *args.CouplingRadius
	}
	if args.NoiseStd != nil {
		p["noise_std"] = *args.NoiseStd
	}
	if args.Seed != nil {
		p["seed"] = *args.Seed
	}
	if args.Format != "" {
		p["format"] = args.Format
	}
	return p
}

// handleRuns implements the kuramap_runs tool.
func (s *Server) handleRuns(ctx context.Context, req *sdk.CallToolRequest, args RunsInput) (_ *sdk.CallToolResult, _ RunsOutput, retErr error) {
	start := time.Now()
	defer func() {
		p := map[string]any{}
		if args.ID != "" {
			p["id"] = args.ID
		}
		if args.Limit != 0 {
			p["limit"] = args.Limit
		}
		s.auditTool("kuramap_runs", start, retErr, sanitizeToolParams(p))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "kuramap_runs"); err != nil {
		return nil, RunsOutput{}, err
	}

	if args.ID != "" {
		run, err := s.store.GetRun(ctx, args.ID)
		if err != nil {
			return nil, RunsOutput{}, fmt.Errorf("failed to get run: %w", err)
		}
		epochs, err := s.store.Epochs(ctx, args.ID)
		if err != nil {
			return nil, RunsOutput{}, fmt.Errorf("failed to get epochs: %w", err)
		}
		item := runItem(*run)
		return nil, RunsOutput{Run: &item, Epochs: epochs, Count: 1}, nil
	}

	limit := args.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	limit = min(limit, maxLimit)

	runs, err := s.store.ListRuns(ctx, limit)
	if err != nil {
		return nil, RunsOutput{}, fmt.Errorf("failed to list runs: %w", err)
	}
	items := make([]RunItem, len(runs))
	for i, r := range runs {
		items[i] = runItem(r)
	}
	return nil, RunsOutput{Runs: items, Count: len(items)}, nil
}

// handleRecentRunsResource renders the latest runs as a markdown table.
func (s *Server) handleRecentRunsResource(ctx context.Context, req *sdk.ReadResourceRequest) (*sdk.ReadResourceResult, error) {
	runs, err := s.store.ListRuns(ctx, 10)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return &sdk.ReadResourceResult{
		Contents: []*sdk.ResourceContents{{
			URI:      recentRunsURI,
			MIMEType: "text/markdown",
			Text:     formatRunsMarkdown(runs),
		}},
	}, nil
}

func formatRunsMarkdown(runs []store.Run) string {
	var b strings.Builder
	b.WriteString("# Recent kuramap runs\n\n")
	if len(runs) == 0 {
		b.WriteString("No runs recorded yet. Train one with `kuramap_train`.\n")
		return b.String()
	}
	b.WriteString("| ID | Created | Grid | Mode | State | Epochs | QE | R |\n")
	b.WriteString("|---|---|---|---|---|---|---|---|\n")
	for _, r := range runs {
		fmt.Fprintf(&b, "| %s | %s | %dx%d | %s | %s | %d | %.4f | %.3f |\n",
			shortID(r.ID), r.CreatedAt.UTC().Format(time.RFC3339), r.Rows, r.Cols,
			r.Mode, r.State, r.Epochs, r.FinalError, r.FinalOrder)
	}
	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// withinUnits reports whether a rows×cols grid stays under maxUnits. Each
// axis is bounded before multiplying so the product cannot wrap.
func withinUnits(rows, cols int) bool {
	if rows > maxUnits || cols > maxUnits {
		return false
	}
	return rows*cols <= maxUnits
}
