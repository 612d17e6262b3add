//go:build conntest

package conntest

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/vvka-141/mssqlretry/internal/db"
	"github.com/vvka-141/mssqlretry/internal/logging"
	"github.com/vvka-141/mssqlretry/internal/retry"
	"github.com/vvka-141/mssqlretry/internal/testinfra"
	"github.com/vvka-141/mssqlretry/pkg/mssqlretry"
)

var (
	stdContainer *testinfra.SQLServerContainer
	tlsContainer *testinfra.SQLServerContainer
	certPaths    *testinfra.CertPaths
)

func TestMain(m *testing.M) {
	ctx := context.Background()

	bundle, err := testinfra.GenerateCertBundle([]string{"localhost", "127.0.0.1"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "generate certs: %v\n", err)
		os.Exit(1)
	}

	dir, err := os.MkdirTemp("", "mssqlretry-conntest-*")
	if err != nil {
		fmt.Fprintf(os.Stderr, "create temp dir: %v\n", err)
		os.Exit(1)
	}

	paths, err := bundle.WriteToDir(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "write certs: %v\n", err)
		os.Exit(1)
	}
	certPaths = paths

	std, err := testinfra.StartSQLServer(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "start sql server: %v\n", err)
		os.Exit(1)
	}
	stdContainer = std

	tls, err := testinfra.StartTLSSQLServer(ctx, certPaths)
	if err != nil {
		fmt.Fprintf(os.Stderr, "start TLS sql server: %v\n", err)
		stdContainer.Terminate(ctx) //nolint:errcheck
		os.Exit(1)
	}
	tlsContainer = tls

	code := m.Run()

	stdContainer.Terminate(ctx) //nolint:errcheck
	tlsContainer.Terminate(ctx) //nolint:errcheck
	db.CloseCloudSQL()          //nolint:errcheck
	os.RemoveAll(dir)
	os.Exit(code)
}

// quickConnectionPolicy keeps failing tests fast.
func quickConnectionPolicy(t *testing.T) *retry.Policy {
	t.Helper()
	p, err := retry.NewPolicy("connection", retry.NewConfig(3,
		retry.WithMinInterval(50*time.Millisecond),
		retry.WithMaxInterval(200*time.Millisecond),
	), retry.NewNetworkConnectivityStrategy())
	if err != nil {
		t.Fatalf("build policy: %v", err)
	}
	return p
}

func stdConfig(t *testing.T) *mssqlretry.ConnectionConfig {
	t.Helper()
	config := *stdContainer.Config
	return &config
}

func tlsConfig(t *testing.T) *mssqlretry.ConnectionConfig {
	t.Helper()
	config := *tlsContainer.Config
	config.AdditionalParams = map[string]string{}
	return &config
}

func connectWithConfig(t *testing.T, config *mssqlretry.ConnectionConfig) *sql.DB {
	t.Helper()

	connector, err := db.NewConnector(config, quickConnectionPolicy(t), logging.NewNullLogger())
	if err != nil {
		t.Fatalf("create connector: %v", err)
	}

	pool, err := connector.Connect(context.Background())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	t.Cleanup(func() { pool.Close() })
	return pool
}

func queryVersion(t *testing.T, pool *sql.DB) string {
	t.Helper()
	var version string
	if err := db.NewCommandExecutor(pool, nil).Get(context.Background(), &version, "SELECT @@VERSION"); err != nil {
		t.Fatalf("query version: %v", err)
	}
	return version
}
