package oracletesting

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/malbeclabs/oracle-mcp/internal/oracle"
)

// EnvIntegration enables tests that start an Oracle container.
const EnvIntegration = "ORACLE_INTEGRATION"

type DBConfig struct {
	Username       string
	Password       string
	Service        string
	Port           string
	ContainerImage string
}

func (cfg *DBConfig) Validate() error {
	if cfg.Username == "" {
		cfg.Username = "mcp"
	}
	if cfg.Password == "" {
		cfg.Password = "password"
	}
	if cfg.Service == "" {
		cfg.Service = "FREEPDB1"
	}
	if cfg.Port == "" {
		cfg.Port = "1521"
	}
	if cfg.ContainerImage == "" {
		cfg.ContainerImage = "gvenzl/oracle-free:23-slim-faststart"
	}
	return nil
}

// SkipUnlessEnabled skips the test unless container tests were requested.
func SkipUnlessEnabled(t testing.TB) {
	t.Helper()
	if testing.Short() || os.Getenv(EnvIntegration) != "1" {
		t.Skipf("set %s=1 to run Oracle container tests", EnvIntegration)
	}
}

func NewDefaultDB(t testing.TB) *oracle.DB {
	return NewDB(t, nil)
}

// NewDB starts an Oracle Free container with an application user and returns
// a pool connected as that user.
func NewDB(t testing.TB, cfg *DBConfig) *oracle.DB {
	ctx := t.Context()

	if cfg == nil {
		cfg = &DBConfig{}
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("failed to validate DB config: %v", err)
	}

	port := nat.Port(fmt.Sprintf("%s/tcp", cfg.Port))

	// Retry container start up to 3 times for retryable errors
	var container testcontainers.Container
	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		var err error
		container, err = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        cfg.ContainerImage,
				ExposedPorts: []string{string(port)},
				Env: map[string]string{
					"ORACLE_PASSWORD":   cfg.Password,
					"APP_USER":          cfg.Username,
					"APP_USER_PASSWORD": cfg.Password,
				},
				WaitingFor: wait.ForLog("DATABASE IS READY TO USE!").WithStartupTimeout(5 * time.Minute),
			},
			Started: true,
		})
		testcontainers.CleanupContainer(t, container)
		if err != nil {
			lastErr = err
			if isRetryableContainerStartErr(err) && attempt < 3 {
				time.Sleep(time.Duration(attempt) * 750 * time.Millisecond)
				continue
			}
			require.NoError(t, err)
		}
		break
	}

	if container == nil {
		t.Fatalf("failed to start Oracle container after retries: %v", lastErr)
	}

	host, err := container.Host(ctx)
	require.NoError(t, err)

	mappedPort, err := container.MappedPort(ctx, port)
	require.NoError(t, err)

	db, err := oracle.NewDB(ctx, oracle.Config{
		Logger:              slog.Default(),
		Username:            cfg.Username,
		Password:            cfg.Password,
		DSN:                 fmt.Sprintf("%s:%s/%s", host, mappedPort.Port(), cfg.Service),
		PingRetries:         10,
		PingInitialInterval: time.Second,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("failed to close Oracle pool: %v", err)
		}
	})
	return db
}

func isRetryableContainerStartErr(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "wait until ready") ||
		strings.Contains(s, "mapped port") ||
		strings.Contains(s, "timeout") ||
		strings.Contains(s, "context deadline exceeded")
}
