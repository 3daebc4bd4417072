package mcp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/sdrsweep/internal/backup"
	"github.com/nvandessel/sdrsweep/internal/experiment"
	"github.com/nvandessel/sdrsweep/internal/models"
	"github.com/nvandessel/sdrsweep/internal/pathutil"
	"github.com/nvandessel/sdrsweep/internal/ratelimit"
	"github.com/nvandessel/sdrsweep/internal/report"
	"github.com/nvandessel/sdrsweep/internal/sanitize"
	"github.com/nvandessel/sdrsweep/internal/store"
)

const (
	defaultResultsLimit = 20
	maxResultsLimit     = 500
	exportsToKeep       = 10

	recentResultsURI = "sdrsweep://results/recent"
)

// registerTools registers all sdrsweep MCP tools with the server.
func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "sdrsweep_run",
		Description: "Run a spatial-learning stability experiment and return its convergence summary",
	}, s.handleRun)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "sdrsweep_results",
		Description: "List stored experiment results, newest first, or fetch one by row key",
	}, s.handleResults)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "sdrsweep_export",
		Description: "Export all stored experiment results to a compressed, checksummed file",
	}, s.handleExport)
}

// registerResources registers MCP resources for auto-loading into context.
func (s *Server) registerResources() {
	s.server.AddResource(&sdk.Resource{
		URI:         recentResultsURI,
		Name:        "sdrsweep-recent-results",
		Description: "The most recent experiment results as a markdown table.",
		MIMEType:    "text/markdown",
	}, s.handleRecentResource)
}

// handleRun implements the sdrsweep_run tool.
func (s *Server) handleRun(ctx context.Context, req *sdk.CallToolRequest, args RunInput) (_ *sdk.CallToolResult, _ RunOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("sdrsweep_run", start, retErr, sanitizeToolParams(map[string]any{
			"name": args.Name, "description": args.Description,
			"min_value": args.MinValue, "max_value": args.MaxValue,
			"boost_max": args.BoostMax, "min_pct_overlap_duty_cycles": args.MinPctOverlapDutyCycles,
			"input_bits": args.InputBits, "num_columns": args.NumColumns,
			"window_length": args.WindowLength, "max_sweeps": args.MaxSweeps,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "sdrsweep_run"); err != nil {
		return nil, RunOutput{}, err
	}

	request := requestFromInput(args)
	if err := request.Validate(); err != nil {
		return nil, RunOutput{}, err
	}

	cfg := s.experiment
	if args.WindowLength > 0 {
		cfg.WindowLength = args.WindowLength
	}
	if args.MaxSweeps > 0 {
		cfg.MaxSweeps = args.MaxSweeps
	}

	outputPath := filepath.Join(s.outputDir, fmt.Sprintf("%s-%s.txt", sanitize.Name(request.Name), request.ExperimentID))
	out, err := experiment.New(cfg, s.logger, nil).Execute(ctx, request, outputPath)
	if err != nil {
		return nil, RunOutput{}, fmt.Errorf("experiment failed: %w", err)
	}

	summary := report.Summarize(out.Convergence)
	rowKey, err := s.results.Save(ctx, out.Result)
	if err != nil {
		s.logger.Warn("failed to store result", "experiment_id", request.ExperimentID, "error", err)
	}

	return nil, RunOutput{
		ExperimentID: request.ExperimentID,
		RowKey:       rowKey,
		OutputFile:   outputPath,
		Summary:      summary,
		Message:      runMessage(summary),
	}, nil
}

// requestFromInput overlays the non-zero tool arguments on the default request.
func requestFromInput(args RunInput) models.Request {
	request := models.DefaultRequest()
	request.ExperimentID = uuid.NewString()

	if name := sanitize.Text(args.Name); name != "" {
		request.Name = name
	}
	request.Description = sanitize.Text(args.Description)
	if args.MinValue != 0 {
		request.MinValue = args.MinValue
	}
	if args.MaxValue != 0 {
		request.MaxValue = args.MaxValue
	}
	if args.BoostMax != 0 {
		request.BoostMax = args.BoostMax
	}
	if args.MinPctOverlapDutyCycles != 0 {
		request.MinPctOverlapDutyCycles = args.MinPctOverlapDutyCycles
	}
	if args.InputBits != 0 {
		request.InputBits = args.InputBits
	}
	if args.NumColumns != 0 {
		request.NumColumns = args.NumColumns
	}
	return request
}

func runMessage(s report.Summary) string {
	if s.Converged {
		return fmt.Sprintf("Stability achieved at sweep %d after %d sweeps (window %d-%d)",
			*s.WindowStart, s.Sweeps, *s.WindowStart, *s.WindowEnd)
	}
	return fmt.Sprintf("Convergence not reached after %d sweeps (stable sweeps at exit: %d)", s.Sweeps, s.StableSweeps)
}

// handleResults implements the sdrsweep_results tool.
func (s *Server) handleResults(ctx context.Context, req *sdk.CallToolRequest, args ResultsInput) (_ *sdk.CallToolResult, _ ResultsOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("sdrsweep_results", start, retErr, sanitizeToolParams(map[string]any{
			"row_key": args.RowKey, "limit": args.Limit,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "sdrsweep_results"); err != nil {
		return nil, ResultsOutput{}, err
	}

	total, err := s.results.Count(ctx)
	if err != nil {
		return nil, ResultsOutput{}, fmt.Errorf("failed to count results: %w", err)
	}

	if args.RowKey != "" {
		res, err := s.results.Get(ctx, args.RowKey)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, ResultsOutput{}, fmt.Errorf("no result with row key %q", args.RowKey)
			}
			return nil, ResultsOutput{}, fmt.Errorf("failed to get result: %w", err)
		}
		return nil, ResultsOutput{Results: []ResultItem{toItem(*res)}, Count: 1, Total: total}, nil
	}

	limit := args.Limit
	if limit <= 0 {
		limit = defaultResultsLimit
	}
	limit = min(limit, maxResultsLimit)

	results, err := s.results.List(ctx, limit)
	if err != nil {
		return nil, ResultsOutput{}, fmt.Errorf("failed to list results: %w", err)
	}

	items := make([]ResultItem, 0, len(results))
	for _, res := range results {
		items = append(items, toItem(res))
	}
	return nil, ResultsOutput{Results: items, Count: len(items), Total: total}, nil
}

func toItem(res models.Result) ResultItem {
	return ResultItem{
		RowKey:           res.RowKey,
		ExperimentID:     res.ExperimentID,
		Name:             res.Name,
		State:            res.State,
		Converged:        res.Converged,
		Sweeps:           res.Sweeps,
		FirstStableSweep: res.FirstStableSweep,
		LastStableSweep:  res.LastStableSweep,
		DurationSec:      res.DurationSec,
		StartTime:        res.StartTime,
		OutputFile:       res.OutputFile,
	}
}

// handleExport implements the sdrsweep_export tool.
func (s *Server) handleExport(ctx context.Context, req *sdk.CallToolRequest, args ExportInput) (_ *sdk.CallToolResult, _ ExportOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("sdrsweep_export", start, retErr, sanitizeToolParams(map[string]any{
			"output_path": args.OutputPath,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "sdrsweep_export"); err != nil {
		return nil, ExportOutput{}, err
	}

	outputPath := args.OutputPath
	if outputPath == "" {
		dir, err := backup.DefaultDir()
		if err != nil {
			return nil, ExportOutput{}, fmt.Errorf("failed to get export directory: %w", err)
		}
		outputPath = backup.GeneratePath(dir)
	} else {
		allowed, err := pathutil.AllowedExportDirs(s.root)
		if err != nil {
			return nil, ExportOutput{}, fmt.Errorf("failed to determine allowed export dirs: %w", err)
		}
		if err := pathutil.ValidatePath(outputPath, allowed); err != nil {
			return nil, ExportOutput{}, fmt.Errorf("export path rejected: %w", err)
		}
	}

	header, err := backup.ExportResults(ctx, s.results, outputPath)
	if err != nil {
		return nil, ExportOutput{}, fmt.Errorf("export failed: %w", err)
	}

	if _, err := backup.Rotate(filepath.Dir(outputPath), exportsToKeep); err != nil {
		s.logger.Warn("failed to apply export retention", "error", err)
	}

	var sizeBytes int64
	if info, err := os.Stat(outputPath); err == nil {
		sizeBytes = info.Size()
	}

	return nil, ExportOutput{
		Path:      outputPath,
		RowCount:  header.RowCount,
		Checksum:  header.Checksum,
		SizeBytes: sizeBytes,
		Message:   fmt.Sprintf("Exported %d results to %s", header.RowCount, pathutil.RedactPath(outputPath)),
	}, nil
}

// handleRecentResource renders the latest results as a markdown table.
func (s *Server) handleRecentResource(ctx context.Context, req *sdk.ReadResourceRequest) (*sdk.ReadResourceResult, error) {
	results, err := s.results.List(ctx, defaultResultsLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("# Recent sdrsweep results\n\n")
	if len(results) == 0 {
		sb.WriteString("No experiments have been run yet.\n")
	} else {
		sb.WriteString("| Name | State | Sweeps | Stable window | Duration (s) | Row key |\n")
		sb.WriteString("|---|---|---|---|---|---|\n")
		for _, res := range results {
			window := "-"
			if res.Converged {
				window = fmt.Sprintf("%d-%d", res.FirstStableSweep, res.LastStableSweep)
			}
			fmt.Fprintf(&sb, "| %s | %s | %d | %s | %d | %s |\n",
				res.Name, res.State, res.Sweeps, window, res.DurationSec, res.RowKey)
		}
	}

	return &sdk.ReadResourceResult{
		Contents: []*sdk.ResourceContents{
			{
				URI:      recentResultsURI,
				MIMEType: "text/markdown",
				Text:     sb.String(),
			},
		},
	}, nil
}
