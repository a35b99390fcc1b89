package config

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/structsync/structsync/internal/model"
)

// Store manages structsync's local state backed by SQLite: saved connection
// profiles and the history of comparison runs. Passwords never touch the
// database; they go to the SecretStore.
type Store struct {
	db      *sqlx.DB
	secrets SecretStore
}

// NewStore creates a new config store. Pass empty string for in-memory and
// nil secrets for a process-local secret store.
func NewStore(dataDir string, secrets SecretStore) (*Store, error) {
	var dsn string
	if dataDir == "" {
		dsn = ":memory:?_journal_mode=WAL"
	} else {
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		dsn = filepath.Join(dataDir, "structsync.db") + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open config database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	if secrets == nil {
		secrets = NewMemorySecrets()
	}
	s := &Store{db: db, secrets: secrets}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate config database: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// Connection profiles
// ---------------------------------------------------------------------------

// connectionRow maps 1:1 to the connections table. SSH and SSL settings are
// stored as JSON with their secrets stripped.
type connectionRow struct {
	ID                string    `db:"id"`
	Name              string    `db:"name"`
	DbType            string    `db:"db_type"`
	Host              string    `db:"host"`
	Port              int       `db:"port"`
	Username          string    `db:"username"`
	DatabaseName      string    `db:"database_name"`
	SSHJSON           string    `db:"ssh_json"`
	SSLJSON           string    `db:"ssl_json"`
	MaxOpenConns      int       `db:"max_open_conns"`
	MaxIdleConns      int       `db:"max_idle_conns"`
	ConnMaxLifetimeMs int64     `db:"conn_max_lifetime_ms"`
	ConnMaxIdleTimeMs int64     `db:"conn_max_idle_time_ms"`
	CreatedAt         time.Time `db:"created_at"`
	UpdatedAt         time.Time `db:"updated_at"`
}

func connectionRowFromModel(c *model.Connection) (connectionRow, error) {
	row := connectionRow{
		ID:                c.ID,
		Name:              c.Name,
		DbType:            string(c.DbType),
		Host:              c.Host,
		Port:              int(c.Port),
		Username:          c.Username,
		DatabaseName:      c.Database,
		MaxOpenConns:      c.Pool.MaxOpenConns,
		MaxIdleConns:      c.Pool.MaxIdleConns,
		ConnMaxLifetimeMs: c.Pool.ConnMaxLifetime.Milliseconds(),
		ConnMaxIdleTimeMs: c.Pool.ConnMaxIdleTime.Milliseconds(),
		CreatedAt:         c.CreatedAt,
		UpdatedAt:         c.UpdatedAt,
	}
	if c.SSH != nil && c.SSH.Enabled {
		ssh := *c.SSH
		ssh.Password = ""
		ssh.Passphrase = ""
		b, err := json.Marshal(ssh)
		if err != nil {
			return connectionRow{}, fmt.Errorf("marshal ssh config: %w", err)
		}
		row.SSHJSON = string(b)
	}
	if c.SSL != nil && c.SSL.Enabled {
		b, err := json.Marshal(c.SSL)
		if err != nil {
			return connectionRow{}, fmt.Errorf("marshal ssl config: %w", err)
		}
		row.SSLJSON = string(b)
	}
	return row, nil
}

func (r connectionRow) toModel() (model.Connection, error) {
	c := model.Connection{
		ID:       r.ID,
		Name:     r.Name,
		DbType:   model.DbType(r.DbType),
		Host:     r.Host,
		Port:     uint16(r.Port),
		Username: r.Username,
		Database: r.DatabaseName,
		Pool: model.PoolConfig{
			MaxOpenConns:    r.MaxOpenConns,
			MaxIdleConns:    r.MaxIdleConns,
			ConnMaxLifetime: time.Duration(r.ConnMaxLifetimeMs) * time.Millisecond,
			ConnMaxIdleTime: time.Duration(r.ConnMaxIdleTimeMs) * time.Millisecond,
		},
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.SSHJSON != "" {
		c.SSH = &model.SSHConfig{}
		if err := json.Unmarshal([]byte(r.SSHJSON), c.SSH); err != nil {
			return model.Connection{}, fmt.Errorf("unmarshal ssh config: %w", err)
		}
	}
	if r.SSLJSON != "" {
		c.SSL = &model.SSLConfig{}
		if err := json.Unmarshal([]byte(r.SSLJSON), c.SSL); err != nil {
			return model.Connection{}, fmt.Errorf("unmarshal ssl config: %w", err)
		}
	}
	return c, nil
}

// loadSecrets fills the password fields of c from the secret store. A
// missing database password reads as empty.
func (s *Store) loadSecrets(c *model.Connection) error {
	pw, err := s.secrets.GetSecret(c.ID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	c.Password = pw

	if c.SSH == nil {
		return nil
	}
	key := sshPasswordKey(c.ID)
	dst := &c.SSH.Password
	if c.SSH.AuthMethod == model.SSHAuthPrivateKey {
		key = sshPassphraseKey(c.ID)
		dst = &c.SSH.Passphrase
	}
	v, err := s.secrets.GetSecret(key)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	*dst = v
	return nil
}

// storeSecrets writes the password fields of c to the secret store. When
// keepEmpty is set, empty passwords leave the stored value untouched.
func (s *Store) storeSecrets(c *model.Connection, keepEmpty bool) error {
	put := func(key, value string) error {
		if value == "" && keepEmpty {
			return nil
		}
		return s.secrets.SetSecret(key, value)
	}
	if err := put(c.ID, c.Password); err != nil {
		return err
	}
	if c.SSH == nil || !c.SSH.Enabled {
		return nil
	}
	switch c.SSH.AuthMethod {
	case model.SSHAuthPassword:
		return put(sshPasswordKey(c.ID), c.SSH.Password)
	case model.SSHAuthPrivateKey:
		if c.SSH.Passphrase == "" && !keepEmpty {
			return s.secrets.DeleteSecret(sshPassphraseKey(c.ID))
		}
		return put(sshPassphraseKey(c.ID), c.SSH.Passphrase)
	}
	return nil
}

const connectionColumns = `id, name, db_type, host, port, username, database_name, ssh_json, ssl_json,
	max_open_conns, max_idle_conns, conn_max_lifetime_ms, conn_max_idle_time_ms, created_at, updated_at`

// CreateConnection validates in, assigns a fresh UUID and persists the
// profile. Passwords go to the secret store.
func (s *Store) CreateConnection(ctx context.Context, in model.ConnectionInput) (*model.Connection, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	c := in.ToConnection()
	c.ID = uuid.New().String()
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	row, err := connectionRowFromModel(&c)
	if err != nil {
		return nil, err
	}
	if err := s.storeSecrets(&c, false); err != nil {
		return nil, err
	}

	const q = `INSERT INTO connections (` + connectionColumns + `) VALUES
		(:id, :name, :db_type, :host, :port, :username, :database_name, :ssh_json, :ssl_json,
		 :max_open_conns, :max_idle_conns, :conn_max_lifetime_ms, :conn_max_idle_time_ms, :created_at, :updated_at)`

	if _, err := s.db.NamedExecContext(ctx, q, row); err != nil {
		err = nameError(c.Name, fmt.Errorf("insert connection: %w", err))
		if derr := s.deleteSecrets(c.ID); derr != nil {
			err = errors.Join(err, fmt.Errorf("remove secrets of unsaved connection %s: %w", c.ID, derr))
		}
		return nil, err
	}
	return &c, nil
}

// GetConnection returns a profile by ID with its secrets filled in.
func (s *Store) GetConnection(ctx context.Context, id string) (*model.Connection, error) {
	return s.getConnection(ctx, "SELECT * FROM connections WHERE id = ?", id)
}

// GetConnectionByName returns a profile by its unique name.
func (s *Store) GetConnectionByName(ctx context.Context, name string) (*model.Connection, error) {
	return s.getConnection(ctx, "SELECT * FROM connections WHERE name = ?", name)
}

// ResolveConnection looks a profile up by ID, then by name.
func (s *Store) ResolveConnection(ctx context.Context, ref string) (*model.Connection, error) {
	c, err := s.GetConnection(ctx, ref)
	if errors.Is(err, ErrNotFound) {
		return s.GetConnectionByName(ctx, ref)
	}
	return c, err
}

func (s *Store) getConnection(ctx context.Context, q string, arg string) (*model.Connection, error) {
	var row connectionRow
	if err := s.db.GetContext(ctx, &row, q, arg); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get connection: %w", err)
	}
	c, err := row.toModel()
	if err != nil {
		return nil, err
	}
	if err := s.loadSecrets(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

// ListConnections returns every profile ordered by name.
func (s *Store) ListConnections(ctx context.Context) ([]model.Connection, error) {
	var rows []connectionRow
	if err := s.db.SelectContext(ctx, &rows, "SELECT * FROM connections ORDER BY name"); err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}

	conns := make([]model.Connection, len(rows))
	for i, r := range rows {
		c, err := r.toModel()
		if err != nil {
			return nil, err
		}
		if err := s.loadSecrets(&c); err != nil {
			return nil, err
		}
		conns[i] = c
	}
	return conns, nil
}

// UpdateConnection replaces the profile with the given ID. Empty passwords
// in the input keep the stored ones.
func (s *Store) UpdateConnection(ctx context.Context, id string, in model.ConnectionInput) (*model.Connection, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	existing, err := s.GetConnection(ctx, id)
	if err != nil {
		return nil, err
	}

	c := in.ToConnection()
	c.ID = id
	c.Pool = existing.Pool
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = time.Now().UTC()

	row, err := connectionRowFromModel(&c)
	if err != nil {
		return nil, err
	}

	const q = `UPDATE connections SET
		name = :name, db_type = :db_type, host = :host, port = :port, username = :username,
		database_name = :database_name, ssh_json = :ssh_json, ssl_json = :ssl_json,
		updated_at = :updated_at
		WHERE id = :id`

	result, err := s.db.NamedExecContext(ctx, q, row)
	if err != nil {
		return nil, nameError(c.Name, fmt.Errorf("update connection: %w", err))
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update connection rows affected: %w", err)
	}
	if n == 0 {
		return nil, ErrNotFound
	}

	if err := s.storeSecrets(&c, true); err != nil {
		return nil, err
	}
	if err := s.loadSecrets(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

// DeleteConnection removes a profile and every secret filed under its ID.
func (s *Store) DeleteConnection(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM connections WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete connection: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete connection rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	return s.deleteSecrets(id)
}

func (s *Store) deleteSecrets(id string) error {
	for _, key := range []string{id, sshPasswordKey(id), sshPassphraseKey(id)} {
		if err := s.secrets.DeleteSecret(key); err != nil {
			return err
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Compare run history
// ---------------------------------------------------------------------------

// RecordCompareRun appends a finished comparison to the history. ID and
// CreatedAt are populated on success.
func (s *Store) RecordCompareRun(ctx context.Context, run *model.CompareRun) error {
	run.CreatedAt = time.Now().UTC()

	const q = `INSERT INTO compare_runs
		(source_id, target_id, source_tables, target_tables, item_count, created_at)
		VALUES
		(:source_id, :target_id, :source_tables, :target_tables, :item_count, :created_at)`

	result, err := s.db.NamedExecContext(ctx, q, run)
	if err != nil {
		return fmt.Errorf("insert compare run: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get compare run id: %w", err)
	}
	run.ID = id
	return nil
}

// ListCompareRuns returns the most recent runs first. A limit of zero or
// less returns every run.
func (s *Store) ListCompareRuns(ctx context.Context, limit int) ([]model.CompareRun, error) {
	if limit <= 0 {
		limit = -1
	}
	runs := []model.CompareRun{}
	if err := s.db.SelectContext(ctx, &runs,
		"SELECT * FROM compare_runs ORDER BY created_at DESC, id DESC LIMIT ?", limit); err != nil {
		return nil, fmt.Errorf("list compare runs: %w", err)
	}
	return runs, nil
}

// nameError maps a UNIQUE violation on connections.name to ErrDuplicateName.
func nameError(name string, err error) error {
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("connection name %q: %w", name, ErrDuplicateName)
	}
	return err
}
