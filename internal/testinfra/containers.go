package testinfra

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	mssql "github.com/microsoft/go-mssqldb"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/vvka-141/mssqlretry/internal/db"
	"github.com/vvka-141/mssqlretry/pkg/mssqlretry"
)

const (
	SQLServerImage    = "mcr.microsoft.com/mssql/server:2022-latest"
	SQLServerUser     = "sa"
	SQLServerPassword = "Retry-Test-Passw0rd!"
	SQLServerDB       = "master"

	sqlServerPort = "1433/tcp"
	readyLog      = "SQL Server is now ready for client connections"

	containerCertPath = "/var/opt/mssql/certs/server.crt"
	containerKeyPath  = "/var/opt/mssql/private/server.key"
	containerConfPath = "/var/opt/mssql/mssql.conf"
)

// SQLServerContainer is a running SQL Server with a ready login.
type SQLServerContainer struct {
	testcontainers.Container
	Config     *mssqlretry.ConnectionConfig
	ConnString string
}

// StartSQLServer starts SQL Server without forced encryption.
func StartSQLServer(ctx context.Context) (*SQLServerContainer, error) {
	return startSQLServer(ctx, nil)
}

// StartTLSSQLServer starts SQL Server that forces encryption with the server
// certificate from certPaths.
func StartTLSSQLServer(ctx context.Context, certPaths *CertPaths) (*SQLServerContainer, error) {
	confPath, err := writeTLSConfig(filepath.Dir(certPaths.CACert))
	if err != nil {
		return nil, err
	}

	files := []testcontainers.ContainerFile{
		{HostFilePath: certPaths.ServerCert, ContainerFilePath: containerCertPath, FileMode: 0o644},
		{HostFilePath: certPaths.ServerKey, ContainerFilePath: containerKeyPath, FileMode: 0o644},
		{HostFilePath: confPath, ContainerFilePath: containerConfPath, FileMode: 0o644},
	}
	return startSQLServer(ctx, files)
}

func startSQLServer(ctx context.Context, files []testcontainers.ContainerFile) (*SQLServerContainer, error) {
	req := testcontainers.ContainerRequest{
		Image:        SQLServerImage,
		ExposedPorts: []string{sqlServerPort},
		Env: map[string]string{
			"ACCEPT_EULA":       "Y",
			"MSSQL_SA_PASSWORD": SQLServerPassword,
			"MSSQL_PID":         "Developer",
		},
		Files:      files,
		WaitingFor: wait.ForLog(readyLog).WithStartupTimeout(3 * time.Minute),
	}

	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("start sql server: %w", err)
	}

	config, err := containerConfig(ctx, ctr)
	if err != nil {
		ctr.Terminate(ctx) //nolint:errcheck
		return nil, err
	}

	if err := waitForLogin(ctx, config); err != nil {
		ctr.Terminate(ctx) //nolint:errcheck
		return nil, err
	}

	return &SQLServerContainer{
		Container:  ctr,
		Config:     config,
		ConnString: db.BuildConnectionString(config),
	}, nil
}

func containerConfig(ctx context.Context, ctr testcontainers.Container) (*mssqlretry.ConnectionConfig, error) {
	host, err := ctr.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("get container host: %w", err)
	}
	port, err := ctr.MappedPort(ctx, sqlServerPort)
	if err != nil {
		return nil, fmt.Errorf("get mapped port: %w", err)
	}

	return &mssqlretry.ConnectionConfig{
		Host:                   host,
		Port:                   port.Int(),
		Username:               SQLServerUser,
		Password:               SQLServerPassword,
		Database:               SQLServerDB,
		TrustServerCertificate: true,
		AuthMethod:             mssqlretry.AuthMethodStandard,
		AppName:                "mssqlretry-tests",
		ConnectTimeout:         15 * time.Second,
	}, nil
}

// waitForLogin polls until the sa login works. The ready log line can appear
// before the login is accepted, and login errors during upgrade scripts are
// not transient by code, so this uses a plain elapsed-time backoff.
func waitForLogin(ctx context.Context, config *mssqlretry.ConnectionConfig) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = 2 * time.Minute

	connector, err := mssql.NewConnector(db.BuildConnectionString(config))
	if err != nil {
		return fmt.Errorf("build connector: %w", err)
	}

	err = backoff.Retry(func() error {
		pool := sql.OpenDB(connector)
		defer pool.Close()
		return pool.PingContext(ctx)
	}, backoff.WithContext(b, ctx))
	if err != nil {
		return fmt.Errorf("wait for sql server login: %w", err)
	}
	return nil
}

func writeTLSConfig(dir string) (string, error) {
	conf := fmt.Sprintf(`[network]
tlscert = %s
tlskey = %s
tlsprotocols = 1.2
forceencryption = 1
`, containerCertPath, containerKeyPath)

	path := filepath.Join(dir, "mssql.conf")
	if err := os.WriteFile(path, []byte(conf), 0644); err != nil {
		return "", fmt.Errorf("write mssql.conf: %w", err)
	}
	return path, nil
}
