package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/malbeclabs/oracle-mcp/internal/explain"
	sqltools "github.com/malbeclabs/oracle-mcp/internal/tools/sql"
)

type SchemasCmd struct{ open OpenFunc }

func NewSchemasCmd(open OpenFunc) *SchemasCmd {
	return &SchemasCmd{open: open}
}

func (c *SchemasCmd) Command() *cobra.Command {
	return &cobra.Command{
		Use:   "schemas",
		Short: "List schemas visible to the connected user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTools(cmd, c.open, func(s *session) error {
				res, err := s.tools.Schemas.Run(cmd.Context(), sqltools.SchemasInput{})
				if err != nil {
					return err
				}
				if s.asJSON {
					return s.printJSON(res)
				}
				rows := make([][]string, 0, len(res.Schemas))
				for _, schema := range res.Schemas {
					rows = append(rows, []string{schema.Schema})
				}
				s.printTable([]string{"SCHEMA"}, rows)
				return nil
			})
		},
	}
}

type TablesCmd struct{ open OpenFunc }

func NewTablesCmd(open OpenFunc) *TablesCmd {
	return &TablesCmd{open: open}
}

func (c *TablesCmd) Command() *cobra.Command {
	return &cobra.Command{
		Use:   "tables SCHEMA",
		Short: "List tables of a schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTools(cmd, c.open, func(s *session) error {
				res, err := s.tools.Tables.Run(cmd.Context(), sqltools.TablesInput{Schema: args[0]})
				if err != nil {
					return err
				}
				if s.asJSON {
					return s.printJSON(res)
				}
				rows := make([][]string, 0, len(res.Tables))
				for _, t := range res.Tables {
					rows = append(rows, []string{t.TableName})
				}
				s.printTable([]string{"TABLE_NAME"}, rows)
				return nil
			})
		},
	}
}

type DescribeCmd struct{ open OpenFunc }

func NewDescribeCmd(open OpenFunc) *DescribeCmd {
	return &DescribeCmd{open: open}
}

func (c *DescribeCmd) Command() *cobra.Command {
	return &cobra.Command{
		Use:   "describe SCHEMA TABLE",
		Short: "Show column metadata of a table",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTools(cmd, c.open, func(s *session) error {
				res, err := s.tools.TableMetadata.Run(cmd.Context(), sqltools.TableMetadataInput{
					Schema:    args[0],
					TableName: args[1],
				})
				if err != nil {
					return err
				}
				return s.printQuery(res)
			})
		},
	}
}

type QueryCmd struct{ open OpenFunc }

func NewQueryCmd(open OpenFunc) *QueryCmd {
	return &QueryCmd{open: open}
}

func (c *QueryCmd) Command() *cobra.Command {
	return &cobra.Command{
		Use:   "query SQL",
		Short: "Execute a SQL statement and print the first rows",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTools(cmd, c.open, func(s *session) error {
				res, err := s.tools.Query.Run(cmd.Context(), sqltools.QueryInput{SQL: strings.Join(args, " ")})
				if err != nil {
					return err
				}
				return s.printQuery(res)
			})
		},
	}
}

type ExplainCmd struct{ open OpenFunc }

func NewExplainCmd(open OpenFunc) *ExplainCmd {
	return &ExplainCmd{open: open}
}

func (c *ExplainCmd) Command() *cobra.Command {
	return &cobra.Command{
		Use:   "explain SQL",
		Short: "Validate a statement and estimate its cost without running it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTools(cmd, c.open, func(s *session) error {
				plan, err := s.tools.Cost.Run(cmd.Context(), sqltools.CostInput{Query: strings.Join(args, " ")})
				if err != nil {
					return errors.New(explain.Describe(err))
				}
				if s.asJSON {
					return s.printJSON(plan)
				}
				fmt.Fprint(cmd.OutOrStdout(), explain.Format(plan))
				return nil
			})
		},
	}
}
