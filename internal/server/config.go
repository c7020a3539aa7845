package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/malbeclabs/oracle-mcp/internal/explain"
	sqltools "github.com/malbeclabs/oracle-mcp/internal/tools/sql"
)

const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"

	defaultReadHeaderTimeout = 5 * time.Second
	defaultShutdownTimeout   = 5 * time.Second
	defaultListenAddr        = "0.0.0.0:8010"
)

// DB is the database the tools run against. Pings back /readyz.
type DB interface {
	sqltools.DB
	PingContext(ctx context.Context) error
}

type Config struct {
	Logger    *slog.Logger
	Clock     clockwork.Clock
	DB        DB
	Estimator *explain.Estimator

	Version           string
	Transport         string
	ListenAddr        string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
	AllowedTokens     []string // Bearer tokens allowed for MCP endpoint authentication

	ToolTimeout     time.Duration
	QueryLimit      int
	WhitelistTables []string
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if c.DB == nil {
		return fmt.Errorf("database is required")
	}
	if c.Estimator == nil {
		return fmt.Errorf("estimator is required")
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.Transport == "" {
		c.Transport = TransportStdio
	}
	if c.Transport != TransportStdio && c.Transport != TransportHTTP {
		return fmt.Errorf("unsupported transport %q", c.Transport)
	}
	if c.ListenAddr == "" {
		c.ListenAddr = defaultListenAddr
	}
	if c.ReadHeaderTimeout == 0 {
		c.ReadHeaderTimeout = defaultReadHeaderTimeout
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = defaultShutdownTimeout
	}
	if c.ToolTimeout < 0 {
		return fmt.Errorf("tool timeout must not be negative")
	}
	if c.QueryLimit < 0 {
		return fmt.Errorf("query limit must not be negative")
	}
	return nil
}
