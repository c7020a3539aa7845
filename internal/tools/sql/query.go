package sqltools

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const defaultQueryLimit = 100

type QueryInput struct {
	SQL string `json:"sql" jsonschema:"SQL statement to execute against the Oracle database. At most the configured row limit is returned."`
}

type QueryToolConfig struct {
	ToolConfig

	Name        string
	Description string

	// Limit caps the number of rows returned per call.
	Limit int
}

func (cfg *QueryToolConfig) Validate() error {
	if err := cfg.ToolConfig.Validate(); err != nil {
		return err
	}
	if cfg.Name == "" {
		return fmt.Errorf("name is required")
	}
	if cfg.Description == "" {
		return fmt.Errorf("description is required")
	}
	if cfg.Limit < 0 {
		return fmt.Errorf("limit must not be negative")
	}
	if cfg.Limit == 0 {
		cfg.Limit = defaultQueryLimit
	}
	return nil
}

// QueryTool runs arbitrary SQL and returns the first rows as JSON objects.
// Every call runs in its own transaction, which is rolled back.
type QueryTool struct {
	cfg QueryToolConfig
}

func NewQueryTool(cfg QueryToolConfig) (*QueryTool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate query tool config: %w", err)
	}
	return &QueryTool{cfg: cfg}, nil
}

func (t *QueryTool) Register(server *mcp.Server) error {
	req, err := jsonschema.For[QueryInput](nil)
	if err != nil {
		return fmt.Errorf("failed to create query input schema: %w", err)
	}

	res, err := jsonschema.For[QueryOutput](nil)
	if err != nil {
		return fmt.Errorf("failed to create query output schema: %w", err)
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:         t.cfg.Name,
		Description:  t.cfg.Description,
		InputSchema:  req,
		OutputSchema: res,
	}, func(ctx context.Context, _ *mcp.CallToolRequest, req QueryInput) (*mcp.CallToolResult, QueryOutput, error) {
		res, err := t.Run(ctx, req)
		if err != nil {
			return nil, QueryOutput{}, err
		}
		return nil, res, nil
	})
	return nil
}

func (t *QueryTool) Run(ctx context.Context, req QueryInput) (QueryOutput, error) {
	return call(ctx, t.cfg.ToolConfig, t.cfg.Name, func(ctx context.Context) (QueryOutput, error) {
		return t.handleQuery(ctx, req)
	})
}

func (t *QueryTool) handleQuery(ctx context.Context, req QueryInput) (QueryOutput, error) {
	query := strings.TrimSpace(req.SQL)
	if query == "" {
		return QueryOutput{}, fmt.Errorf("sql is required")
	}
	t.cfg.Logger.Debug("query: running query tool", "sql", query)

	conn, err := t.cfg.DB.Conn(ctx)
	if err != nil {
		return QueryOutput{}, fmt.Errorf("failed to acquire database session: %w", err)
	}
	defer conn.Close()

	// The transaction is never committed, so DML run through this tool is
	// rolled back. DDL still commits implicitly in Oracle.
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		observe(ctx, t.cfg.DB, err)
		return QueryOutput{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			t.cfg.Logger.Warn("query: failed to roll back", "error", err)
		}
	}()

	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		observe(ctx, t.cfg.DB, err)
		return QueryOutput{}, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	res, err := scanRows(rows, t.cfg.Limit)
	if err != nil {
		return QueryOutput{}, err
	}
	if res.Truncated {
		t.cfg.Logger.Debug("query: result truncated", "limit", t.cfg.Limit)
	}
	return res, nil
}
