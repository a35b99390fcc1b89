// Package executor applies generated DDL to a live database, one statement
// at a time, stopping at the first failure.
package executor

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// Execer is the part of *sqlx.DB (and *sql.DB) the executor needs.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// StatementError reports the statement that stopped an execution run.
// Index is 1-based.
type StatementError struct {
	Index int
	SQL   string
	Err   error
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("Failed to execute: %s\nError: %v", e.SQL, e.Err)
}

func (e *StatementError) Unwrap() error { return e.Err }

// Execute runs statements in order against db. Nothing is wrapped in a
// transaction: statements that succeeded before a failure stay applied.
// A cancelled context stops the run between statements.
func Execute(ctx context.Context, db Execer, statements []string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	total := len(statements)
	for i, stmt := range statements {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("execution stopped before statement %d/%d: %w", i+1, total, err)
		}
		logger.Info("executing statement", "n", i+1, "total", total)
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			logger.Error("statement failed", "n", i+1, "sql", stmt, "error", err)
			return &StatementError{Index: i + 1, SQL: stmt, Err: err}
		}
	}
	logger.Info("execution completed", "statements", total)
	return nil
}
