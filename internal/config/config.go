package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"

	DefaultCostThreshold = 100000
	DefaultQueryLimit    = 100
	DefaultListenAddr    = "0.0.0.0:8010"
	DefaultToolTimeout   = 30 * time.Second
)

const (
	EnvUsername        = "DWH_USERNAME"
	EnvPassword        = "DWH_PASSWORD"
	EnvDSN             = "DSN"
	EnvCostThreshold   = "COST_THRESHOLD"
	EnvQueryLimit      = "QUERY_LIMIT_SIZE"
	EnvWhitelistTables = "WHITELIST_TABLES"
	EnvTransport       = "MCP_TRANSPORT"
	EnvListenAddr      = "MCP_LISTEN_ADDR"
	EnvAllowedTokens   = "MCP_ALLOWED_TOKENS"
	EnvToolTimeout     = "MCP_TOOL_TIMEOUT"
)

// Config is the process configuration sourced from the environment (and a
// .env file when one is present).
type Config struct {
	Username string
	Password string
	DSN      string

	CostThreshold   int64
	QueryLimit      int
	WhitelistTables []string

	Transport     string
	ListenAddr    string
	AllowedTokens []string
	ToolTimeout   time.Duration
}

// Load reads a .env file from the working directory if it exists and then
// builds the config from the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}
	return FromEnv(os.Getenv)
}

func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		Username:        getenv(EnvUsername),
		Password:        getenv(EnvPassword),
		DSN:             getenv(EnvDSN),
		WhitelistTables: splitList(getenv(EnvWhitelistTables), true),
		Transport:       strings.ToLower(strings.TrimSpace(getenv(EnvTransport))),
		ListenAddr:      getenv(EnvListenAddr),
		AllowedTokens:   splitList(getenv(EnvAllowedTokens), false),
	}

	if v := strings.TrimSpace(getenv(EnvCostThreshold)); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", EnvCostThreshold, v, err)
		}
		cfg.CostThreshold = n
	}
	if v := strings.TrimSpace(getenv(EnvQueryLimit)); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", EnvQueryLimit, v, err)
		}
		cfg.QueryLimit = n
	}
	if v := strings.TrimSpace(getenv(EnvToolTimeout)); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", EnvToolTimeout, v, err)
		}
		cfg.ToolTimeout = d
	}

	return cfg, nil
}

// Validate checks required fields and fills in defaults.
func (c *Config) Validate() error {
	if c.Username == "" {
		return fmt.Errorf("%s is required", EnvUsername)
	}
	if c.Password == "" {
		return fmt.Errorf("%s is required", EnvPassword)
	}
	if c.DSN == "" {
		return fmt.Errorf("%s is required", EnvDSN)
	}
	if c.CostThreshold < 0 {
		return fmt.Errorf("%s must not be negative", EnvCostThreshold)
	}
	if c.CostThreshold == 0 {
		c.CostThreshold = DefaultCostThreshold
	}
	if c.QueryLimit < 0 {
		return fmt.Errorf("%s must not be negative", EnvQueryLimit)
	}
	if c.QueryLimit == 0 {
		c.QueryLimit = DefaultQueryLimit
	}
	if c.Transport == "" {
		c.Transport = TransportStdio
	}
	if c.Transport != TransportStdio && c.Transport != TransportHTTP {
		return fmt.Errorf("unsupported transport %q (expected %s or %s)", c.Transport, TransportStdio, TransportHTTP)
	}
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.ToolTimeout < 0 {
		return fmt.Errorf("%s must not be negative", EnvToolTimeout)
	}
	if c.ToolTimeout == 0 {
		c.ToolTimeout = DefaultToolTimeout
	}
	return nil
}

// splitList splits a comma separated value, dropping empty entries.
func splitList(v string, upper bool) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if upper {
			part = strings.ToUpper(part)
		}
		out = append(out, part)
	}
	return out
}
