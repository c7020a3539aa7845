package sqltools

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"sync"
	"testing"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/malbeclabs/oracle-mcp/internal/oracle/oracletest"
)

func testLogger(t *testing.T) *slog.Logger {
	debugLevel := os.Getenv("DEBUG") == "1"
	if debugLevel {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// testDuckDB returns an in-memory DuckDB database for exercising the generic
// SQL paths.
func testDuckDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("duckdb", "")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testToolConfig(t *testing.T, db DB) ToolConfig {
	return ToolConfig{
		Logger: testLogger(t),
		DB:     db,
		Clock:  clockwork.NewFakeClock(),
	}
}

func testOracle(t *testing.T) (*oracletest.Engine, *sql.DB) {
	engine := oracletest.NewEngine()
	return engine, engine.DB(t)
}

// observingDB records the session errors a tool hands back to its handle.
type observingDB struct {
	DB

	mu       sync.Mutex
	observed []error
}

func (o *observingDB) Observe(_ context.Context, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.observed = append(o.observed, err)
}

func (o *observingDB) Observed() []error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]error(nil), o.observed...)
}
