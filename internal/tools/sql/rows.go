package sqltools

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/godror/godror"
)

type QueryRow map[string]any

// QueryOutput is a generic tabular result.
type QueryOutput struct {
	Columns []string   `json:"columns"`
	Rows    []QueryRow `json:"rows"`
	Count   int        `json:"count"`
	// Truncated is set when more rows were available than the row limit.
	Truncated bool `json:"truncated,omitempty"`
}

// scanRows reads at most limit rows; a limit of zero reads them all.
func scanRows(rows *sql.Rows, limit int) (QueryOutput, error) {
	columns, err := rows.Columns()
	if err != nil {
		return QueryOutput{}, fmt.Errorf("failed to get columns: %w", err)
	}

	out := QueryOutput{
		Columns: columns,
		Rows:    []QueryRow{},
	}
	for rows.Next() {
		if limit > 0 && len(out.Rows) >= limit {
			out.Truncated = true
			break
		}

		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return QueryOutput{}, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(QueryRow, len(columns))
		for i, col := range columns {
			row[col] = jsonValue(values[i])
		}
		out.Rows = append(out.Rows, row)
	}

	if err := rows.Err(); err != nil {
		return QueryOutput{}, fmt.Errorf("error iterating rows: %w", err)
	}
	out.Count = len(out.Rows)
	return out, nil
}

func jsonValue(val any) any {
	switch v := val.(type) {
	case nil:
		return nil
	case []byte:
		return string(v)
	case godror.Number:
		// NUMBER columns arrive as decimal strings; keep them numeric in JSON
		// without losing precision.
		return json.Number(v)
	default:
		return val
	}
}
