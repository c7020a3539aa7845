package sqltools

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	SchemasToolName = "get_schemas"

	listSchemasSQL = `SELECT USERNAME FROM ALL_USERS ORDER BY USERNAME`
)

type SchemasInput struct{}

type Schema struct {
	Schema string `json:"schema"`
}

type SchemasOutput struct {
	Schemas []Schema `json:"schemas"`
}

type SchemasToolConfig struct {
	ToolConfig
}

// SchemasTool lists the schemas (users) visible to the connected account.
type SchemasTool struct {
	cfg SchemasToolConfig
}

func NewSchemasTool(cfg SchemasToolConfig) (*SchemasTool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate schemas tool config: %w", err)
	}
	return &SchemasTool{cfg: cfg}, nil
}

func (t *SchemasTool) Register(server *mcp.Server) error {
	req, err := jsonschema.For[SchemasInput](nil)
	if err != nil {
		return fmt.Errorf("failed to create schemas input schema: %w", err)
	}

	res, err := jsonschema.For[SchemasOutput](nil)
	if err != nil {
		return fmt.Errorf("failed to create schemas output schema: %w", err)
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:         SchemasToolName,
		Description:  "Retrieve a list of available schemas (users) in the database.",
		InputSchema:  req,
		OutputSchema: res,
	}, func(ctx context.Context, _ *mcp.CallToolRequest, req SchemasInput) (*mcp.CallToolResult, SchemasOutput, error) {
		res, err := t.Run(ctx, req)
		if err != nil {
			return nil, SchemasOutput{}, err
		}
		return nil, res, nil
	})
	return nil
}

func (t *SchemasTool) Run(ctx context.Context, _ SchemasInput) (SchemasOutput, error) {
	return call(ctx, t.cfg.ToolConfig, SchemasToolName, func(ctx context.Context) (SchemasOutput, error) {
		rows, err := t.cfg.DB.QueryContext(ctx, listSchemasSQL)
		if err != nil {
			return SchemasOutput{}, fmt.Errorf("failed to list schemas: %w", err)
		}
		defer rows.Close()

		out := SchemasOutput{Schemas: []Schema{}}
		for rows.Next() {
			var s Schema
			if err := rows.Scan(&s.Schema); err != nil {
				return SchemasOutput{}, fmt.Errorf("failed to scan schema: %w", err)
			}
			out.Schemas = append(out.Schemas, s)
		}
		if err := rows.Err(); err != nil {
			return SchemasOutput{}, fmt.Errorf("error iterating schemas: %w", err)
		}
		return out, nil
	})
}
