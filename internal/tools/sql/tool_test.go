package sqltools

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSQLTools_ToolConfig_Validate(t *testing.T) {
	t.Parallel()

	db := testDuckDB(t)
	log := testLogger(t)

	tests := []struct {
		name    string
		cfg     ToolConfig
		wantErr string
	}{
		{"missing logger", ToolConfig{DB: db}, "logger is required"},
		{"missing db", ToolConfig{Logger: log}, "database is required"},
		{"negative timeout", ToolConfig{Logger: log, DB: db, Timeout: -time.Second}, "timeout must not be negative"},
		{"defaults clock", ToolConfig{Logger: log, DB: db}, ""},
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
			require.NotNil(t, tt.cfg.Clock)
		})
	}
}

func TestSQLTools_Call(t *testing.T) {
	t.Parallel()

	t.Run("applies timeout", func(t *testing.T) {
		t.Parallel()

		cfg := testToolConfig(t, testDuckDB(t))
		cfg.Timeout = time.Minute

		_, err := call(t.Context(), cfg, "test", func(ctx context.Context) (struct{}, error) {
			deadline, ok := ctx.Deadline()
			require.True(t, ok)
			require.WithinDuration(t, time.Now().Add(time.Minute), deadline, 5*time.Second)
			return struct{}{}, nil
		})
		require.NoError(t, err)
	})

	t.Run("no timeout when zero", func(t *testing.T) {
		t.Parallel()

		cfg := testToolConfig(t, testDuckDB(t))
		_, err := call(t.Context(), cfg, "test", func(ctx context.Context) (int, error) {
			_, ok := ctx.Deadline()
			require.False(t, ok)
			return 1, nil
		})
		require.NoError(t, err)
	})

	t.Run("passes errors through", func(t *testing.T) {
		t.Parallel()

		cfg := testToolConfig(t, testDuckDB(t))
		boom := errors.New("boom")
		_, err := call(t.Context(), cfg, "test", func(context.Context) (int, error) {
			return 0, boom
		})
		require.ErrorIs(t, err, boom)
	})
}

func TestSQLTools_Whitelist(t *testing.T) {
	t.Parallel()

	require.True(t, Whitelist(nil).Allows("HR", "EMPLOYEES"))

	w := Whitelist{"employees", "SALES.ORDERS"}
	require.True(t, w.Allows("HR", "EMPLOYEES"))
	require.True(t, w.Allows("hr", "employees"))
	require.True(t, w.Allows("SALES", "ORDERS"))
	require.False(t, w.Allows("HR", "ORDERS"))
	require.False(t, w.Allows("HR", "DEPARTMENTS"))
}
