package oracle

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/malbeclabs/oracle-mcp/internal/metrics"
	"github.com/malbeclabs/oracle-mcp/internal/oracle/oracletest"
)

func testLogger(t *testing.T) *slog.Logger {
	debugLevel := os.Getenv("DEBUG") == "1"
	if debugLevel {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func testDB(t *testing.T, engine *oracletest.Engine) *DB {
	t.Helper()
	db, err := NewDB(t.Context(), Config{
		Logger:              testLogger(t),
		Connector:           engine.Connector(),
		PingRetries:         3,
		PingInitialInterval: time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOracle_Config_Validate(t *testing.T) {
	t.Parallel()

	log := testLogger(t)
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"missing logger", Config{Username: "u", Password: "p", DSN: "d"}, "logger is required"},
		{"missing username", Config{Logger: log, Password: "p", DSN: "d"}, "username is required"},
		{"missing password", Config{Logger: log, Username: "u", DSN: "d"}, "password is required"},
		{"missing dsn", Config{Logger: log, Username: "u", Password: "p"}, "dsn is required"},
		{"credentials", Config{Logger: log, Username: "u", Password: "p", DSN: "localhost:1521/FREEPDB1"}, ""},
		{"connector only", Config{Logger: log, Connector: oracletest.NewEngine().Connector()}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.cfg.Validate()
			if tt.wantErr != "" {
				require.EqualError(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, defaultMaxOpenConns, tt.cfg.MaxOpenConns)
			require.Equal(t, defaultMaxIdleConns, tt.cfg.MaxIdleConns)
			require.Equal(t, defaultConnMaxLifetime, tt.cfg.ConnMaxLifetime)
			require.Equal(t, uint64(defaultPingRetries), tt.cfg.PingRetries)
			require.Equal(t, defaultPingInitialInterval, tt.cfg.PingInitialInterval)
		})
	}
}

func TestOracle_NewDB(t *testing.T) {
	t.Parallel()

	t.Run("retries failed pings", func(t *testing.T) {
		t.Parallel()

		engine := oracletest.NewEngine()
		engine.FailPings(
			errors.New("ORA-01033: ORACLE initialization or shutdown in progress"),
			errors.New("ORA-01033: ORACLE initialization or shutdown in progress"),
		)
		db := testDB(t, engine)
		require.NoError(t, db.PingContext(t.Context()))
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		t.Parallel()

		engine := oracletest.NewEngine()
		pingErr := errors.New("ORA-12541: TNS:no listener")
		engine.FailPings(pingErr, pingErr, pingErr, pingErr, pingErr)

		_, err := NewDB(t.Context(), Config{
			Logger:              testLogger(t),
			Connector:           engine.Connector(),
			PingRetries:         2,
			PingInitialInterval: time.Millisecond,
		})
		require.ErrorContains(t, err, "failed to connect to oracle")
		require.ErrorContains(t, err, "ORA-12541")
	})

	t.Run("stops when context is canceled", func(t *testing.T) {
		t.Parallel()

		engine := oracletest.NewEngine()
		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		_, err := NewDB(ctx, Config{
			Logger:    testLogger(t),
			Connector: engine.Connector(),
		})
		require.Error(t, err)
	})

	t.Run("invalid config", func(t *testing.T) {
		t.Parallel()

		_, err := NewDB(t.Context(), Config{})
		require.ErrorContains(t, err, "failed to validate oracle config")
	})
}

func TestOracle_DB_Queries(t *testing.T) {
	t.Parallel()

	engine := oracletest.NewEngine()
	engine.Respond("FROM ALL_USERS", []string{"USERNAME"}, []any{"HR"}, []any{"SCOTT"})
	db := testDB(t, engine)

	rows, err := db.QueryContext(t.Context(), "SELECT USERNAME FROM ALL_USERS ORDER BY USERNAME")
	require.NoError(t, err)
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		names = append(names, name)
	}
	require.NoError(t, rows.Err())
	require.Equal(t, []string{"HR", "SCOTT"}, names)

	conn, err := db.Conn(t.Context())
	require.NoError(t, err)
	defer conn.Close()

	var user string
	require.NoError(t, conn.QueryRowContext(t.Context(), "SELECT USERNAME FROM ALL_USERS").Scan(&user))
	require.Equal(t, "HR", user)
}

func TestOracle_DB_Recovery(t *testing.T) {
	t.Parallel()

	t.Run("reopens pool on lost connection", func(t *testing.T) {
		t.Parallel()

		engine := oracletest.NewEngine()
		engine.FailOn("FROM LOST", errors.New("ORA-03113: end-of-file on communication channel"))
		engine.Respond("FROM DUAL", []string{"X"}, []any{"X"})
		db := testDB(t, engine)

		before := db.current()
		recoveries := testutil.ToFloat64(metrics.DBRecoveriesTotal.WithLabelValues("reopened"))

		_, err := db.QueryContext(t.Context(), "SELECT * FROM lost")
		require.ErrorContains(t, err, "ORA-03113")

		require.NotSame(t, before, db.current())
		require.GreaterOrEqual(t, testutil.ToFloat64(metrics.DBRecoveriesTotal.WithLabelValues("reopened")), recoveries+1)

		rows, err := db.QueryContext(t.Context(), "SELECT * FROM dual")
		require.NoError(t, err)
		rows.Close()
	})

	t.Run("keeps pool on statement error", func(t *testing.T) {
		t.Parallel()

		engine := oracletest.NewEngine()
		db := testDB(t, engine)
		before := db.current()

		_, err := db.QueryContext(t.Context(), "SELECT * FROM missing")
		require.ErrorContains(t, err, "ORA-00942")
		require.Same(t, before, db.current())
	})

	t.Run("keeps pool when caller gave up", func(t *testing.T) {
		t.Parallel()

		engine := oracletest.NewEngine()
		db := testDB(t, engine)
		before := db.current()

		ctx, cancel := context.WithCancel(t.Context())
		cancel()
		_, err := db.QueryContext(ctx, "SELECT * FROM dual")
		require.Error(t, err)
		require.Same(t, before, db.current())
	})
}

func TestOracle_DB_RecoveryRace(t *testing.T) {
	t.Parallel()

	lost := errors.New("ORA-03113: end-of-file on communication channel")

	t.Run("call on a replaced pool is retried on the new one", func(t *testing.T) {
		t.Parallel()

		engine := oracletest.NewEngine()
		engine.Respond("FROM DUAL", []string{"X"}, []any{"X"})
		db := testDB(t, engine)

		var pools []*sql.DB
		conn, err := withPool(t.Context(), db, func(pool *sql.DB) (*sql.Conn, error) {
			pools = append(pools, pool)
			if len(pools) == 1 {
				// Another caller recovers the pool while this one is in flight.
				db.recover(pool, lost)
			}
			return pool.Conn(t.Context())
		})
		require.NoError(t, err)
		defer conn.Close()

		require.Len(t, pools, 2)
		require.NotSame(t, pools[0], pools[1])
		require.Same(t, pools[1], db.current())

		var x string
		require.NoError(t, conn.QueryRowContext(t.Context(), "SELECT * FROM dual").Scan(&x))
		require.Equal(t, "X", x)
	})

	t.Run("stale recovery is ignored", func(t *testing.T) {
		t.Parallel()

		db := testDB(t, oracletest.NewEngine())
		stale := db.current()
		db.recover(stale, lost)
		fresh := db.current()
		require.NotSame(t, stale, fresh)

		db.recover(stale, lost)
		require.Same(t, fresh, db.current())
	})

	t.Run("closed handle is not reopened", func(t *testing.T) {
		t.Parallel()

		db := testDB(t, oracletest.NewEngine())
		before := db.current()
		require.NoError(t, db.Close())

		_, err := db.Conn(t.Context())
		require.Error(t, err)
		require.True(t, IsConnectionError(err))
		require.Same(t, before, db.current())
	})
}

func TestOracle_DB_Observe(t *testing.T) {
	t.Parallel()

	db := testDB(t, oracletest.NewEngine())
	before := db.current()

	db.Observe(t.Context(), errors.New("ORA-00942: table or view does not exist"))
	require.Same(t, before, db.current())

	db.Observe(t.Context(), nil)
	require.Same(t, before, db.current())

	db.Observe(t.Context(), errors.New("ORA-03113: end-of-file on communication channel"))
	require.NotSame(t, before, db.current())
}
