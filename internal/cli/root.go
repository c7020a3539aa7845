package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/malbeclabs/oracle-mcp/internal/config"
	"github.com/malbeclabs/oracle-mcp/internal/explain"
	"github.com/malbeclabs/oracle-mcp/internal/logger"
	"github.com/malbeclabs/oracle-mcp/internal/oracle"
	"github.com/malbeclabs/oracle-mcp/internal/server"
)

type ExitCode int

const (
	exitCodeSuccess = 0
	exitCodeError   = 1
)

// OpenFunc connects to the database and builds the tools. The returned close
// function releases the connection.
type OpenFunc func(ctx context.Context, log *slog.Logger) (*server.Tools, func() error, error)

func Run() ExitCode {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rootCmd := NewRootCmd(os.Stdout, os.Stderr, Open)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		return exitCodeError
	}
	return exitCodeSuccess
}

func NewRootCmd(out, errOut io.Writer, open OpenFunc) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "oracle-cli",
		Short:        "Run the Oracle MCP server tools from a terminal.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := cmd.Help()
			if err != nil {
				return fmt.Errorf("failed to show help: %w", err)
			}
			return nil
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	var verbose bool
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "set debug logging level")

	var asJSON bool
	rootCmd.PersistentFlags().BoolVar(&asJSON, "json", false, "print results as JSON")

	rootCmd.AddCommand(
		NewSchemasCmd(open).Command(),
		NewTablesCmd(open).Command(),
		NewDescribeCmd(open).Command(),
		NewQueryCmd(open).Command(),
		NewExplainCmd(open).Command(),
	)
	return rootCmd
}

// Open is the OpenFunc used by the binary: configuration from the
// environment and a real Oracle connection.
func Open(ctx context.Context, log *slog.Logger) (*server.Tools, func() error, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	db, err := oracle.NewDB(ctx, oracle.Config{
		Logger:      log,
		Username:    cfg.Username,
		Password:    cfg.Password,
		DSN:         cfg.DSN,
		PingRetries: 1,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	estimator, err := explain.New(explain.Config{
		Logger:        log,
		CostThreshold: cfg.CostThreshold,
	})
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to create estimator: %w", err)
	}

	tools, err := server.NewTools(server.Config{
		Logger:          log,
		Clock:           clockwork.NewRealClock(),
		DB:              db,
		Estimator:       estimator,
		ToolTimeout:     cfg.ToolTimeout,
		QueryLimit:      cfg.QueryLimit,
		WhitelistTables: cfg.WhitelistTables,
	})
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return tools, db.Close, nil
}

// session is what every subcommand needs once flags are parsed.
type session struct {
	cmd    *cobra.Command
	tools  *server.Tools
	asJSON bool
}

func withTools(cmd *cobra.Command, open OpenFunc, fn func(s *session) error) error {
	verbose, err := cmd.Root().PersistentFlags().GetBool("verbose")
	if err != nil {
		return fmt.Errorf("failed to get verbose flag: %w", err)
	}
	asJSON, err := cmd.Root().PersistentFlags().GetBool("json")
	if err != nil {
		return fmt.Errorf("failed to get json flag: %w", err)
	}

	log := logger.New(cmd.ErrOrStderr(), verbose)
	tools, closeFn, err := open(cmd.Context(), log)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeFn(); err != nil {
			log.Debug("cli: failed to close database", "error", err)
		}
	}()

	return fn(&session{cmd: cmd, tools: tools, asJSON: asJSON})
}
