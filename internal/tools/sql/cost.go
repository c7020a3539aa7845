package sqltools

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/malbeclabs/oracle-mcp/internal/explain"
	"github.com/malbeclabs/oracle-mcp/internal/metrics"
)

const CostToolName = "validate_and_estimate_cost"

type CostInput struct {
	Query string `json:"query" jsonschema:"SQL statement to validate. It is explained with EXPLAIN PLAN and never executed. SELECT, WITH, INSERT, UPDATE, DELETE and MERGE are supported."`
}

type CostToolConfig struct {
	ToolConfig

	Estimator *explain.Estimator
}

func (cfg *CostToolConfig) Validate() error {
	if err := cfg.ToolConfig.Validate(); err != nil {
		return err
	}
	if cfg.Estimator == nil {
		return fmt.Errorf("estimator is required")
	}
	return nil
}

// CostTool validates a statement against the optimizer and reports its
// estimated cost without running it.
type CostTool struct {
	cfg CostToolConfig
}

func NewCostTool(cfg CostToolConfig) (*CostTool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate cost tool config: %w", err)
	}
	return &CostTool{cfg: cfg}, nil
}

func (t *CostTool) Register(server *mcp.Server) error {
	req, err := jsonschema.For[CostInput](nil)
	if err != nil {
		return fmt.Errorf("failed to create cost input schema: %w", err)
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:        CostToolName,
		Description: "Validates an SQL query and returns its execution plan with the optimizer's estimated cost. The statement is only explained, never executed. Failures are reported as text prefixed with the error kind, e.g. ValidationError, UnsupportedStatementError or ConnectionError.",
		InputSchema: req,
	}, func(ctx context.Context, _ *mcp.CallToolRequest, req CostInput) (*mcp.CallToolResult, any, error) {
		plan, err := t.Run(ctx, req)
		if err != nil {
			return &mcp.CallToolResult{
				IsError: true,
				Content: []mcp.Content{&mcp.TextContent{Text: explain.Describe(err)}},
			}, nil, nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: explain.Format(plan)}},
		}, plan, nil
	})
	return nil
}

// Run pins a session for the duration of the estimate. Statements rejected
// up front never borrow one.
func (t *CostTool) Run(ctx context.Context, req CostInput) (*explain.Plan, error) {
	plan, err := call(ctx, t.cfg.ToolConfig, CostToolName, func(ctx context.Context) (*explain.Plan, error) {
		if _, _, err := explain.Check(req.Query); err != nil {
			return nil, err
		}

		conn, err := t.cfg.DB.Conn(ctx)
		if err != nil {
			return nil, explain.SessionError(err)
		}
		defer conn.Close()

		plan, err := t.cfg.Estimator.Estimate(ctx, conn, req.Query)
		if errors.Is(err, explain.ErrConnection) {
			observe(ctx, t.cfg.DB, errors.Unwrap(err))
		}
		return plan, err
	})
	if err != nil {
		kind := explain.KindOf(err)
		metrics.EstimateErrorsTotal.WithLabelValues(string(kind)).Inc()
		t.cfg.Logger.Info("cost: estimate failed", "kind", kind, "error", err)
		return nil, err
	}
	metrics.EstimatedCost.Observe(float64(plan.EstimatedCost))
	return plan, nil
}
