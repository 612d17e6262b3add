package manager

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

const queryDatabaseCount = "SELECT COUNT(*) FROM sys.databases WHERE name = @p1"

// Runner executes statements. *db.CommandExecutor satisfies it.
type Runner interface {
	Exec(ctx context.Context, query string, args ...any) (sql.Result, error)
	Get(ctx context.Context, dest any, query string, args ...any) error
}

// Manager implements database lifecycle operations on top of a Runner.
type Manager struct {
	runner Runner
}

// New creates a Manager.
func New(runner Runner) *Manager {
	return &Manager{runner: runner}
}

// Exists checks if a database exists.
func (m *Manager) Exists(ctx context.Context, dbName string) (bool, error) {
	var n int
	if err := m.runner.Get(ctx, &n, queryDatabaseCount, dbName); err != nil {
		return false, fmt.Errorf("failed to check database existence: %w", err)
	}
	return n > 0, nil
}

// Create creates a database unless it already exists.
func (m *Manager) Create(ctx context.Context, dbName string) error {
	query := fmt.Sprintf("IF DB_ID(%s) IS NULL CREATE DATABASE %s", quoteLiteral(dbName), quoteIdentifier(dbName))
	if _, err := m.runner.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create database %q: %w", dbName, err)
	}
	return nil
}

// Drop drops a database if it exists.
func (m *Manager) Drop(ctx context.Context, dbName string) error {
	query := fmt.Sprintf("IF DB_ID(%s) IS NOT NULL DROP DATABASE %s", quoteLiteral(dbName), quoteIdentifier(dbName))
	if _, err := m.runner.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to drop database %q: %w", dbName, err)
	}
	return nil
}

// CloseSessions rolls back open transactions and disconnects every other
// session of the database by switching it to single-user mode.
func (m *Manager) CloseSessions(ctx context.Context, dbName string) error {
	query := fmt.Sprintf("IF DB_ID(%s) IS NOT NULL ALTER DATABASE %s SET SINGLE_USER WITH ROLLBACK IMMEDIATE",
		quoteLiteral(dbName), quoteIdentifier(dbName))
	if _, err := m.runner.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to close sessions of database %q: %w", dbName, err)
	}
	return nil
}

func quoteIdentifier(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

func quoteLiteral(s string) string {
	return "N'" + strings.ReplaceAll(s, "'", "''") + "'"
}
