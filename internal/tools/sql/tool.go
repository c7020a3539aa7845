package sqltools

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/malbeclabs/oracle-mcp/internal/metrics"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// ToolConfig holds what every tool needs.
type ToolConfig struct {
	Logger *slog.Logger
	DB     DB
	Clock  clockwork.Clock

	// Timeout bounds a single call. Zero means no limit beyond the caller's.
	Timeout time.Duration
}

func (cfg *ToolConfig) Validate() error {
	if cfg.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if cfg.DB == nil {
		return fmt.Errorf("database is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	return nil
}

// call runs fn under the tool timeout and records the outcome in the tool
// call metrics.
func call[T any](ctx context.Context, cfg ToolConfig, name string, fn func(context.Context) (T, error)) (T, error) {
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	start := cfg.Clock.Now()
	res, err := fn(ctx)
	duration := cfg.Clock.Since(start)

	status := statusSuccess
	if err != nil {
		status = statusError
	}
	metrics.ToolCallsTotal.WithLabelValues(name, status).Inc()
	metrics.ToolCallDuration.WithLabelValues(name).Observe(duration.Seconds())

	cfg.Logger.Debug("tools: call finished", "tool", name, "status", status, "duration", duration)
	return res, err
}
