package server

import (
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	sqltools "github.com/malbeclabs/oracle-mcp/internal/tools/sql"
)

const (
	QueryToolName = "execute_sql"

	queryToolDescription = `
		Executes an SQL query on the Oracle Database and returns the rows as JSON objects.
		Only the first rows up to the configured limit are returned; "truncated" is set when more were available.
		Use get_schemas, get_tables and get_table_metadata to discover objects before writing SQL,
		and validate_and_estimate_cost to check expensive statements before running them.
	`
)

type tool interface {
	Register(server *mcp.Server) error
}

// Tools is the set of tools the server exposes. The CLI runs them directly.
type Tools struct {
	Query         *sqltools.QueryTool
	Schemas       *sqltools.SchemasTool
	Tables        *sqltools.TablesTool
	TableMetadata *sqltools.TableMetadataTool
	Cost          *sqltools.CostTool
}

// NewTools builds every tool from the server config.
func NewTools(cfg Config) (*Tools, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	base := sqltools.ToolConfig{
		Logger:  cfg.Logger,
		DB:      cfg.DB,
		Clock:   cfg.Clock,
		Timeout: cfg.ToolTimeout,
	}
	whitelist := sqltools.Whitelist(cfg.WhitelistTables)

	var (
		t   Tools
		err error
	)
	t.Query, err = sqltools.NewQueryTool(sqltools.QueryToolConfig{
		ToolConfig:  base,
		Name:        QueryToolName,
		Description: queryToolDescription,
		Limit:       cfg.QueryLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create query tool: %w", err)
	}

	t.Schemas, err = sqltools.NewSchemasTool(sqltools.SchemasToolConfig{ToolConfig: base})
	if err != nil {
		return nil, fmt.Errorf("failed to create schemas tool: %w", err)
	}

	t.Tables, err = sqltools.NewTablesTool(sqltools.TablesToolConfig{
		ToolConfig: base,
		Whitelist:  whitelist,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create tables tool: %w", err)
	}

	t.TableMetadata, err = sqltools.NewTableMetadataTool(sqltools.TableMetadataToolConfig{
		ToolConfig: base,
		Whitelist:  whitelist,
		Limit:      cfg.QueryLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create table metadata tool: %w", err)
	}

	t.Cost, err = sqltools.NewCostTool(sqltools.CostToolConfig{
		ToolConfig: base,
		Estimator:  cfg.Estimator,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create cost tool: %w", err)
	}

	return &t, nil
}

func (t *Tools) Register(server *mcp.Server) error {
	for _, tool := range []tool{t.Query, t.Schemas, t.Tables, t.TableMetadata, t.Cost} {
		if err := tool.Register(server); err != nil {
			return err
		}
	}
	return nil
}
