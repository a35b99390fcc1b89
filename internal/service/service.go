// Package service orchestrates the user-facing operations: managing saved
// connection profiles, comparing two databases, and applying the resulting
// DDL. The CLI, HTTP API, MCP server and scheduler all go through it.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/structsync/structsync/internal/config"
	"github.com/structsync/structsync/internal/connector"
	"github.com/structsync/structsync/internal/diff"
	"github.com/structsync/structsync/internal/executor"
	"github.com/structsync/structsync/internal/model"
	"github.com/structsync/structsync/internal/snapshot"
	"github.com/structsync/structsync/internal/tunnel"
)

// Options configure a Service.
type Options struct {
	Logger *slog.Logger
	Tunnel tunnel.Options
}

// Service is safe for concurrent use. Every operation opens its own
// database connections and closes them before returning.
type Service struct {
	store    *config.Store
	registry *connector.Registry
	logger   *slog.Logger
	tunnel   tunnel.Options
}

func New(store *config.Store, registry *connector.Registry, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tun := opts.Tunnel
	if tun.Logger == nil {
		tun.Logger = logger
	}
	return &Service{store: store, registry: registry, logger: logger, tunnel: tun}
}

// CompareRequest names the two profiles to compare. The optional database
// fields override the profile's own database for that side.
type CompareRequest struct {
	SourceID string `json:"source_id"`
	TargetID string `json:"target_id"`
	SourceDB string `json:"source_database,omitempty"`
	TargetDB string `json:"target_database,omitempty"`
}

// ExecuteRequest carries statements to run against a target profile.
type ExecuteRequest struct {
	TargetID   string   `json:"target_id"`
	TargetDB   string   `json:"target_database,omitempty"`
	Statements []string `json:"statements"`
}

// ---------------------------------------------------------------------------
// Connection profiles
// ---------------------------------------------------------------------------

func (s *Service) ListConnections(ctx context.Context) ([]model.Connection, error) {
	conns, err := s.store.ListConnections(ctx)
	if err != nil {
		return nil, newError(KindStorage, "", err)
	}
	return conns, nil
}

// GetConnection resolves a profile by ID or name.
func (s *Service) GetConnection(ctx context.Context, ref string) (*model.Connection, error) {
	c, err := s.store.ResolveConnection(ctx, ref)
	if err != nil {
		return nil, s.storeError(err, "connection %q not found", ref)
	}
	return c, nil
}

func (s *Service) SaveConnection(ctx context.Context, in model.ConnectionInput) (*model.Connection, error) {
	if err := in.Validate(); err != nil {
		return nil, newError(KindValidation, "", err)
	}
	c, err := s.store.CreateConnection(ctx, in)
	if err != nil {
		return nil, s.storeError(err, "")
	}
	s.logger.Info("connection saved", "id", c.ID, "name", c.Name)
	return c, nil
}

func (s *Service) UpdateConnection(ctx context.Context, id string, in model.ConnectionInput) (*model.Connection, error) {
	if err := in.Validate(); err != nil {
		return nil, newError(KindValidation, "", err)
	}
	c, err := s.store.UpdateConnection(ctx, id, in)
	if err != nil {
		return nil, s.storeError(err, "connection %q not found", id)
	}
	return c, nil
}

func (s *Service) DeleteConnection(ctx context.Context, id string) error {
	if err := s.store.DeleteConnection(ctx, id); err != nil {
		return s.storeError(err, "connection %q not found", id)
	}
	s.logger.Info("connection deleted", "id", id)
	return nil
}

// TestConnection connects with an unsaved profile and pings the server.
func (s *Service) TestConnection(ctx context.Context, in model.ConnectionInput) error {
	if err := in.Validate(); err != nil {
		return newError(KindValidation, "", err)
	}
	s.logger.Info("testing connection", "name", in.Name, "host", in.Host)

	sess, err := s.open(ctx, in.ToConnection(), "")
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := sess.conn.Ping(ctx); err != nil {
		return newError(KindConnection, "", err)
	}
	s.logger.Info("connection test successful", "name", in.Name)
	return nil
}

// ListDatabases lists the user databases reachable through a saved profile.
func (s *Service) ListDatabases(ctx context.Context, ref string) ([]string, error) {
	c, err := s.GetConnection(ctx, ref)
	if err != nil {
		return nil, err
	}
	sess, err := s.open(ctx, *c, "")
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	dbs, err := sess.conn.ListDatabases(ctx)
	if err != nil {
		return nil, newError(KindDatabase, "", err)
	}
	s.logger.Info("listed databases", "connection", c.Name, "count", len(dbs))
	return dbs, nil
}

// ---------------------------------------------------------------------------
// Compare and execute
// ---------------------------------------------------------------------------

// Compare reads both schemas and diffs them. SQL in the result is written
// in the target's dialect.
func (s *Service) Compare(ctx context.Context, req CompareRequest) (*model.DiffResult, error) {
	source, err := s.GetConnection(ctx, req.SourceID)
	if err != nil {
		return nil, err
	}
	target, err := s.GetConnection(ctx, req.TargetID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("comparing databases", "source", source.Name, "target", target.Name)

	srcSess, err := s.open(ctx, *source, req.SourceDB)
	if err != nil {
		return nil, err
	}
	defer srcSess.Close()
	tgtSess, err := s.open(ctx, *target, req.TargetDB)
	if err != nil {
		return nil, err
	}
	defer tgtSess.Close()

	s.logger.Info("fetching source schema", "connection", source.Name)
	sourceTables, err := srcSess.conn.GetTables(ctx)
	if err != nil {
		return nil, newError(KindDatabase, fmt.Sprintf("read source schema: %v", err), err)
	}
	s.logger.Info("fetching target schema", "connection", target.Name)
	targetTables, err := tgtSess.conn.GetTables(ctx)
	if err != nil {
		return nil, newError(KindDatabase, fmt.Sprintf("read target schema: %v", err), err)
	}

	result, err := s.compareTables(sourceTables, targetTables, tgtSess.conn)
	if err != nil {
		return nil, err
	}

	run := &model.CompareRun{
		SourceID:     source.ID,
		TargetID:     target.ID,
		SourceTables: result.SourceTables,
		TargetTables: result.TargetTables,
		ItemCount:    len(result.Items),
	}
	if err := s.store.RecordCompareRun(ctx, run); err != nil {
		s.logger.Warn("failed to record compare run", "error", err)
	}
	return result, nil
}

// CompareSnapshots diffs two captured snapshots offline. An empty driver
// uses the target snapshot's driver for SQL generation.
func (s *Service) CompareSnapshots(source, target *snapshot.Snapshot, driver string) (*model.DiffResult, error) {
	if driver == "" {
		driver = target.Driver
	}
	gen, err := s.registry.Generator(driver)
	if err != nil {
		return nil, newError(KindValidation, "", err)
	}
	return s.compareTables(source.Tables, target.Tables, gen)
}

func (s *Service) compareTables(source, target []model.TableSchema, gen connector.SQLGenerator) (*model.DiffResult, error) {
	if err := diff.Validate(source); err != nil {
		return nil, newError(KindValidation, "source schema: "+err.Error(), err)
	}
	if err := diff.Validate(target); err != nil {
		return nil, newError(KindValidation, "target schema: "+err.Error(), err)
	}
	s.logger.Info("comparing schemas", "source_tables", len(source), "target_tables", len(target))
	result := diff.Compare(source, target, gen)
	s.logger.Info("comparison complete", "differences", len(result.Items))
	return &result, nil
}

// Snapshot captures the schema behind a saved profile.
func (s *Service) Snapshot(ctx context.Context, ref, database string) (*snapshot.Snapshot, error) {
	c, err := s.GetConnection(ctx, ref)
	if err != nil {
		return nil, err
	}
	sess, err := s.open(ctx, *c, database)
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	if database == "" {
		database = c.Database
	}
	snap, err := snapshot.Capture(ctx, sess.conn, database)
	if err != nil {
		return nil, newError(KindDatabase, "", err)
	}
	return snap, nil
}

// Execute runs the statements against the target in order and stops at the
// first failure. Items holding several statements are split so each one is
// sent on its own; the returned count is of those split statements.
func (s *Service) Execute(ctx context.Context, req ExecuteRequest) (int, error) {
	target, err := s.GetConnection(ctx, req.TargetID)
	if err != nil {
		return 0, err
	}
	var stmts []string
	for _, sql := range req.Statements {
		stmts = append(stmts, model.SplitStatements(sql)...)
	}
	if len(stmts) == 0 {
		return 0, newError(KindValidation, "no statements to execute", nil)
	}

	sess, err := s.open(ctx, *target, req.TargetDB)
	if err != nil {
		return 0, err
	}
	defer sess.Close()

	s.logger.Info("executing sync", "target", target.Name, "statements", len(stmts))
	if err := executor.Execute(ctx, sess.conn.DB(), stmts, s.logger); err != nil {
		return 0, Classify(err)
	}
	s.logger.Info("sync execution completed successfully", "target", target.Name)
	return len(stmts), nil
}

// CompareRuns returns the most recent comparison runs.
func (s *Service) CompareRuns(ctx context.Context, limit int) ([]model.CompareRun, error) {
	runs, err := s.store.ListCompareRuns(ctx, limit)
	if err != nil {
		return nil, newError(KindStorage, "", err)
	}
	return runs, nil
}

// SaveSQLFile writes content to path, creating parent directories.
func (s *Service) SaveSQLFile(path, content string) error {
	s.logger.Info("saving sql file", "path", path)
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return newError(KindInternal, "", fmt.Errorf("create directory: %w", err))
		}
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return newError(KindInternal, "", fmt.Errorf("write sql file: %w", err))
	}
	return nil
}

// ---------------------------------------------------------------------------
// Sessions
// ---------------------------------------------------------------------------

// session is one open database connection plus the tunnel it rides on.
type session struct {
	conn   connector.Connector
	tunnel *tunnel.Tunnel
}

func (s *session) Close() error {
	err := s.conn.Disconnect()
	if s.tunnel != nil {
		if terr := s.tunnel.Close(); terr != nil && err == nil {
			err = terr
		}
	}
	return err
}

// open dials c, through its SSH tunnel when one is configured. A non-empty
// database overrides the profile's database.
func (s *Service) open(ctx context.Context, c model.Connection, database string) (*session, error) {
	target := connector.Target{Host: c.Host, Port: c.Port, Database: c.Database}
	if database != "" {
		target.Database = database
	}

	var tun *tunnel.Tunnel
	if c.SSH != nil && c.SSH.Enabled {
		var err error
		tun, err = tunnel.Open(ctx, *c.SSH, c.Host, c.Port, s.tunnel)
		if err != nil {
			return nil, newError(KindSSHTunnel, "", err)
		}
		target.Host = tun.LocalHost()
		target.Port = tun.LocalPort()
	}
	closeTunnel := func() {
		if tun != nil {
			tun.Close()
		}
	}

	cfg, err := connector.NewConnectionConfig(c, target)
	if err != nil {
		closeTunnel()
		if c.SSL != nil && c.SSL.Enabled {
			return nil, newError(KindSSLConfig, "", err)
		}
		return nil, newError(KindValidation, "", err)
	}

	s.logger.Info("connecting", "connection", c.Name, "db_type", c.DbType, "database", target.Database)
	conn, err := s.registry.Open(cfg)
	if err != nil {
		closeTunnel()
		s.logger.Error("failed to connect", "connection", c.Name, "error", err)
		return nil, newError(KindConnection, fmt.Sprintf("%s: %v", c.Name, err), err)
	}
	return &session{conn: conn, tunnel: tun}, nil
}

func (s *Service) storeError(err error, format string, args ...any) error {
	switch {
	case errors.Is(err, config.ErrNotFound):
		return newError(KindNotFound, fmt.Sprintf(format, args...), err)
	case errors.Is(err, config.ErrDuplicateName):
		return newError(KindValidation, "", err)
	}
	return newError(KindStorage, "", err)
}
