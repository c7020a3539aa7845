package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/malbeclabs/oracle-mcp/internal/explain"
	"github.com/malbeclabs/oracle-mcp/internal/oracle/oracletest"
	"github.com/malbeclabs/oracle-mcp/internal/server"
)

func testOpen(t *testing.T, engine *oracletest.Engine) OpenFunc {
	return func(ctx context.Context, log *slog.Logger) (*server.Tools, func() error, error) {
		db := engine.DB(t)
		est, err := explain.New(explain.Config{Logger: log, CostThreshold: 10})
		if err != nil {
			return nil, nil, err
		}
		tools, err := server.NewTools(server.Config{
			Logger:    log,
			Clock:     clockwork.NewFakeClock(),
			DB:        db,
			Estimator: est,
		})
		if err != nil {
			return nil, nil, err
		}
		return tools, func() error { return nil }, nil
	}
}

func testEngine() *oracletest.Engine {
	engine := oracletest.NewEngine()
	engine.AddTable(oracletest.Table{Owner: "HR", Name: "employees", Rows: 107, Cost: 3})
	engine.Respond("FROM ALL_USERS", []string{"USERNAME"}, []any{"HR"}, []any{"SCOTT"})
	engine.Respond("FROM ALL_TABLES", []string{"TABLE_NAME"}, []any{"EMPLOYEES"})
	engine.Respond("FROM ALL_TAB_COLUMNS", []string{"COLUMN_NAME", "DATA_TYPE", "NUM_DISTINCT"},
		[]any{"EMPLOYEE_ID", "NUMBER", int64(107)},
		[]any{"COMMISSION_PCT", "NUMBER", nil},
	)
	return engine
}

func execute(t *testing.T, engine *oracletest.Engine, args ...string) (string, string, error) {
	var out, errOut bytes.Buffer
	cmd := NewRootCmd(&out, &errOut, testOpen(t, engine))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(t.Context())
	return out.String(), errOut.String(), err
}

func TestCLI_Commands(t *testing.T) {
	t.Parallel()

	t.Run("schemas", func(t *testing.T) {
		t.Parallel()

		out, _, err := execute(t, testEngine(), "schemas")
		require.NoError(t, err)
		require.Contains(t, out, "SCHEMA")
		require.Contains(t, out, "SCOTT")
	})

	t.Run("tables as json", func(t *testing.T) {
		t.Parallel()

		out, _, err := execute(t, testEngine(), "tables", "hr", "--json")
		require.NoError(t, err)

		var res struct {
			Tables []struct {
				TableName string `json:"table_name"`
			} `json:"tables"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &res))
		require.Len(t, res.Tables, 1)
		require.Equal(t, "EMPLOYEES", res.Tables[0].TableName)
	})

	t.Run("describe", func(t *testing.T) {
		t.Parallel()

		out, _, err := execute(t, testEngine(), "describe", "hr", "employees")
		require.NoError(t, err)
		require.Contains(t, out, "COMMISSION_PCT")
		require.Contains(t, out, "NULL")
		require.Contains(t, out, "2 row(s)")
	})

	t.Run("explain", func(t *testing.T) {
		t.Parallel()

		engine := testEngine()
		out, _, err := execute(t, engine, "explain", "SELECT", "*", "FROM", "employees")
		require.NoError(t, err)
		require.Contains(t, out, "Estimated cost: 3")
		require.Contains(t, out, "TABLE ACCESS FULL")
		require.Zero(t, engine.PlanTableSize())
	})

	t.Run("explain reports error kind", func(t *testing.T) {
		t.Parallel()

		_, errOut, err := execute(t, testEngine(), "explain", "DROP TABLE employees")
		require.EqualError(t, err, "UnsupportedStatementError: DDL statements (DROP) cannot be validated without executing them")
		require.Contains(t, errOut, "UnsupportedStatementError")
	})

	t.Run("open failure", func(t *testing.T) {
		t.Parallel()

		var out, errOut bytes.Buffer
		cmd := NewRootCmd(&out, &errOut, func(context.Context, *slog.Logger) (*server.Tools, func() error, error) {
			return nil, nil, errors.New("DWH_USERNAME is required")
		})
		cmd.SetArgs([]string{"schemas"})
		require.EqualError(t, cmd.ExecuteContext(t.Context()), "DWH_USERNAME is required")
	})

	t.Run("argument count", func(t *testing.T) {
		t.Parallel()

		_, _, err := execute(t, testEngine(), "describe", "hr")
		require.Error(t, err)
	})
}
