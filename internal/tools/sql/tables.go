package sqltools

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	TablesToolName = "get_tables"

	listTablesSQL = `SELECT TABLE_NAME FROM ALL_TABLES WHERE OWNER = :schema ORDER BY TABLE_NAME`
)

type TablesInput struct {
	Schema string `json:"schema" jsonschema:"Schema (owner) to list tables for. Case-insensitive."`
}

type Table struct {
	TableName string `json:"table_name"`
}

type TablesOutput struct {
	Tables []Table `json:"tables"`
}

type TablesToolConfig struct {
	ToolConfig

	Whitelist Whitelist
}

// TablesTool lists the tables of a schema, filtered by the whitelist.
type TablesTool struct {
	cfg TablesToolConfig
}

func NewTablesTool(cfg TablesToolConfig) (*TablesTool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate tables tool config: %w", err)
	}
	return &TablesTool{cfg: cfg}, nil
}

func (t *TablesTool) Register(server *mcp.Server) error {
	req, err := jsonschema.For[TablesInput](nil)
	if err != nil {
		return fmt.Errorf("failed to create tables input schema: %w", err)
	}

	res, err := jsonschema.For[TablesOutput](nil)
	if err != nil {
		return fmt.Errorf("failed to create tables output schema: %w", err)
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:         TablesToolName,
		Description:  "Retrieve a list of table names for the given schema.",
		InputSchema:  req,
		OutputSchema: res,
	}, func(ctx context.Context, _ *mcp.CallToolRequest, req TablesInput) (*mcp.CallToolResult, TablesOutput, error) {
		res, err := t.Run(ctx, req)
		if err != nil {
			return nil, TablesOutput{}, err
		}
		return nil, res, nil
	})
	return nil
}

func (t *TablesTool) Run(ctx context.Context, req TablesInput) (TablesOutput, error) {
	return call(ctx, t.cfg.ToolConfig, TablesToolName, func(ctx context.Context) (TablesOutput, error) {
		schema := strings.ToUpper(strings.TrimSpace(req.Schema))
		if schema == "" {
			return TablesOutput{}, fmt.Errorf("schema is required")
		}

		rows, err := t.cfg.DB.QueryContext(ctx, listTablesSQL, sql.Named("schema", schema))
		if err != nil {
			return TablesOutput{}, fmt.Errorf("failed to list tables: %w", err)
		}
		defer rows.Close()

		out := TablesOutput{Tables: []Table{}}
		for rows.Next() {
			var tbl Table
			if err := rows.Scan(&tbl.TableName); err != nil {
				return TablesOutput{}, fmt.Errorf("failed to scan table: %w", err)
			}
			if !t.cfg.Whitelist.Allows(schema, tbl.TableName) {
				continue
			}
			out.Tables = append(out.Tables, tbl)
		}
		if err := rows.Err(); err != nil {
			return TablesOutput{}, fmt.Errorf("error iterating tables: %w", err)
		}
		return out, nil
	})
}
