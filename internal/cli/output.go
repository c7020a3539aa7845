package cli

import (
	"encoding/json"
	"fmt"

	"github.com/olekukonko/tablewriter"

	sqltools "github.com/malbeclabs/oracle-mcp/internal/tools/sql"
)

func (s *session) printJSON(v any) error {
	enc := json.NewEncoder(s.cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	return nil
}

func (s *session) printTable(header []string, rows [][]string) {
	table := tablewriter.NewWriter(s.cmd.OutOrStdout())
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	table.SetBorder(true)
	table.SetHeader(header)
	table.AppendBulk(rows)
	table.Render()
}

func (s *session) printQuery(res sqltools.QueryOutput) error {
	if s.asJSON {
		return s.printJSON(res)
	}
	rows := make([][]string, 0, len(res.Rows))
	for _, r := range res.Rows {
		row := make([]string, len(res.Columns))
		for i, col := range res.Columns {
			if v := r[col]; v == nil {
				row[i] = "NULL"
			} else {
				row[i] = fmt.Sprint(v)
			}
		}
		rows = append(rows, row)
	}
	s.printTable(res.Columns, rows)

	out := s.cmd.OutOrStdout()
	fmt.Fprintf(out, "%d row(s)", res.Count)
	if res.Truncated {
		fmt.Fprint(out, ", truncated")
	}
	fmt.Fprintln(out)
	return nil
}
