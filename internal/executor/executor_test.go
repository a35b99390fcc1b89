package executor

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExecer struct {
	ran    []string
	failOn string
	err    error
	after  func()
}

func (f *fakeExecer) ExecContext(_ context.Context, query string, _ ...any) (sql.Result, error) {
	f.ran = append(f.ran, query)
	if f.after != nil {
		f.after()
	}
	if query == f.failOn {
		return nil, f.err
	}
	return nil, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestExecuteRunsAllInOrder(t *testing.T) {
	db := &fakeExecer{}
	stmts := []string{"A;", "B;", "C;"}

	require.NoError(t, Execute(context.Background(), db, stmts, quietLogger()))
	assert.Equal(t, stmts, db.ran)
}

func TestExecuteStopsAtFirstFailure(t *testing.T) {
	boom := errors.New("table exists")
	db := &fakeExecer{failOn: "B;", err: boom}

	err := Execute(context.Background(), db, []string{"A;", "B;", "C;"}, quietLogger())

	var stmtErr *StatementError
	require.True(t, errors.As(err, &stmtErr))
	assert.Equal(t, 2, stmtErr.Index)
	assert.Equal(t, "B;", stmtErr.SQL)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "Failed to execute: B;\nError: table exists", err.Error())
	assert.Equal(t, []string{"A;", "B;"}, db.ran, "C must never run")
}

func TestExecuteEmpty(t *testing.T) {
	db := &fakeExecer{}
	assert.NoError(t, Execute(context.Background(), db, nil, nil))
	assert.Empty(t, db.ran)
}

func TestExecuteHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	db := &fakeExecer{after: cancel}

	err := Execute(ctx, db, []string{"A;", "B;"}, quietLogger())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"A;"}, db.ran)
}
