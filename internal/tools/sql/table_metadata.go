package sqltools

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const TableMetadataToolName = "get_table_metadata"

const tableMetadataSQL = `
	SELECT
		col.COLUMN_NAME,
		col.DATA_TYPE,
		col.DATA_LENGTH,
		col.NULLABLE,
		col.NUM_DISTINCT,
		col.NUM_NULLS,
		CASE WHEN idx.COLUMN_NAME IS NOT NULL THEN 'YES' ELSE 'NO' END AS IS_INDEXED,
		CASE WHEN part.COLUMN_NAME IS NOT NULL THEN 'YES' ELSE 'NO' END AS IS_PARTITION_KEY,
		CASE WHEN subpart.COLUMN_NAME IS NOT NULL THEN 'YES' ELSE 'NO' END AS IS_SUBPARTITION_KEY
	FROM ALL_TAB_COLUMNS col
	LEFT JOIN ALL_IND_COLUMNS idx
		ON col.OWNER = idx.TABLE_OWNER
		AND col.TABLE_NAME = idx.TABLE_NAME
		AND col.COLUMN_NAME = idx.COLUMN_NAME
	LEFT JOIN ALL_PART_KEY_COLUMNS part
		ON col.OWNER = part.OWNER
		AND col.TABLE_NAME = part.NAME
		AND col.COLUMN_NAME = part.COLUMN_NAME
	LEFT JOIN ALL_SUBPART_KEY_COLUMNS subpart
		ON col.OWNER = subpart.OWNER
		AND col.TABLE_NAME = subpart.NAME
		AND col.COLUMN_NAME = subpart.COLUMN_NAME
	WHERE col.OWNER = :schema
		AND col.TABLE_NAME = :table_name
	ORDER BY col.COLUMN_ID`

type TableMetadataInput struct {
	Schema    string `json:"schema" jsonschema:"Schema (owner) of the table. Case-insensitive."`
	TableName string `json:"table_name" jsonschema:"Table to describe. Case-insensitive."`
}

type TableMetadataToolConfig struct {
	ToolConfig

	Whitelist Whitelist
	// Limit caps the number of column rows returned.
	Limit int
}

func (cfg *TableMetadataToolConfig) Validate() error {
	if err := cfg.ToolConfig.Validate(); err != nil {
		return err
	}
	if cfg.Limit < 0 {
		return fmt.Errorf("limit must not be negative")
	}
	if cfg.Limit == 0 {
		cfg.Limit = defaultQueryLimit
	}
	return nil
}

// TableMetadataTool describes the columns of one table: type, nullability,
// optimizer statistics and whether the column takes part in an index or a
// partitioning key.
type TableMetadataTool struct {
	cfg TableMetadataToolConfig
}

func NewTableMetadataTool(cfg TableMetadataToolConfig) (*TableMetadataTool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate table metadata tool config: %w", err)
	}
	return &TableMetadataTool{cfg: cfg}, nil
}

func (t *TableMetadataTool) Register(server *mcp.Server) error {
	req, err := jsonschema.For[TableMetadataInput](nil)
	if err != nil {
		return fmt.Errorf("failed to create table metadata input schema: %w", err)
	}

	res, err := jsonschema.For[QueryOutput](nil)
	if err != nil {
		return fmt.Errorf("failed to create table metadata output schema: %w", err)
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:         TableMetadataToolName,
		Description:  "Retrieve column metadata for the given schema and table: data type, length, nullability, distinct and null counts, and whether the column is indexed or part of a partition or subpartition key.",
		InputSchema:  req,
		OutputSchema: res,
	}, func(ctx context.Context, _ *mcp.CallToolRequest, req TableMetadataInput) (*mcp.CallToolResult, QueryOutput, error) {
		res, err := t.Run(ctx, req)
		if err != nil {
			return nil, QueryOutput{}, err
		}
		return nil, res, nil
	})
	return nil
}

func (t *TableMetadataTool) Run(ctx context.Context, req TableMetadataInput) (QueryOutput, error) {
	return call(ctx, t.cfg.ToolConfig, TableMetadataToolName, func(ctx context.Context) (QueryOutput, error) {
		schema := strings.ToUpper(strings.TrimSpace(req.Schema))
		table := strings.ToUpper(strings.TrimSpace(req.TableName))
		if schema == "" {
			return QueryOutput{}, fmt.Errorf("schema is required")
		}
		if table == "" {
			return QueryOutput{}, fmt.Errorf("table_name is required")
		}
		if !t.cfg.Whitelist.Allows(schema, table) {
			return QueryOutput{}, fmt.Errorf("table %s.%s is not in the whitelist", schema, table)
		}

		rows, err := t.cfg.DB.QueryContext(ctx, tableMetadataSQL,
			sql.Named("schema", schema),
			sql.Named("table_name", table),
		)
		if err != nil {
			return QueryOutput{}, fmt.Errorf("failed to get table metadata: %w", err)
		}
		defer rows.Close()

		return scanRows(rows, t.cfg.Limit)
	})
}
