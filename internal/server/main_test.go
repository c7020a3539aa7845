package server

import (
	"log/slog"
	"os"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/malbeclabs/oracle-mcp/internal/explain"
	"github.com/malbeclabs/oracle-mcp/internal/oracle/oracletest"
)

func testLogger(t *testing.T) *slog.Logger {
	debugLevel := os.Getenv("DEBUG") == "1"
	if debugLevel {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func testEstimator(t *testing.T) *explain.Estimator {
	est, err := explain.New(explain.Config{Logger: testLogger(t)})
	require.NoError(t, err)
	return est
}

func testEngine() *oracletest.Engine {
	engine := oracletest.NewEngine()
	engine.AddTable(oracletest.Table{Owner: "HR", Name: "employees", Rows: 107, Cost: 3, Index: "EMP_SALARY_IX"})
	engine.Respond("FROM ALL_USERS", []string{"USERNAME"}, []any{"HR"}, []any{"SCOTT"})
	engine.Respond("FROM ALL_TABLES", []string{"TABLE_NAME"}, []any{"DEPARTMENTS"}, []any{"EMPLOYEES"})
	engine.Respond("FROM HR.EMPLOYEES", []string{"EMPLOYEE_ID", "LAST_NAME"}, []any{int64(100), "King"}, []any{int64(101), "Kochhar"})
	return engine
}

func testConfig(t *testing.T, engine *oracletest.Engine) Config {
	return Config{
		Logger:    testLogger(t),
		Clock:     clockwork.NewFakeClock(),
		DB:        engine.DB(t),
		Estimator: testEstimator(t),
		Version:   "test",
	}
}

func testServer(t *testing.T, cfg Config) *Server {
	s, err := New(cfg)
	require.NoError(t, err)
	return s
}
