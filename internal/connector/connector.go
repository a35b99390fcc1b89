package connector

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/structsync/structsync/internal/model"
)

// SQLGenerator emits dialect-specific DDL for schema objects. Every method is
// a pure function of its arguments; statements end with ";" and methods that
// need more than one statement join them with a newline.
type SQLGenerator interface {
	QuoteIdentifier(name string) string

	GenerateCreateTable(table model.TableSchema) string
	GenerateDropTable(table string) string

	GenerateAddColumn(table string, column model.Column) string
	GenerateDropColumn(table, column string) string
	GenerateModifyColumn(table string, column model.Column) string

	GenerateAddIndex(table string, index model.Index) string
	GenerateDropIndex(table, index string) string

	GenerateAddForeignKey(table string, fk model.ForeignKey) string
	GenerateDropForeignKey(table, fk string) string

	GenerateAddUnique(table string, uc model.UniqueConstraint) string
	GenerateDropUnique(table, constraint string) string
}

// ConnectionConfig holds database connection parameters.
type ConnectionConfig struct {
	Driver          string
	DSN             string
	Database        string
	TLSServerName   string // certificate host when DSN dials a tunnel endpoint
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// Connector is the interface that all database connectors must implement.
// A connector reads schema snapshots from one database and, as the target of
// a sync, is also the generator for its own dialect.
type Connector interface {
	SQLGenerator

	// Connection management
	Connect(cfg ConnectionConfig) error
	Disconnect() error
	Ping(ctx context.Context) error
	DB() *sqlx.DB

	// Schema introspection
	ListDatabases(ctx context.Context) ([]string, error)
	GetTables(ctx context.Context) ([]model.TableSchema, error)

	DriverName() string
}

// ApplyPool copies the pool settings of a profile into cfg.
func (cfg *ConnectionConfig) ApplyPool(p model.PoolConfig) {
	cfg.MaxOpenConns = p.MaxOpenConns
	cfg.MaxIdleConns = p.MaxIdleConns
	cfg.ConnMaxLifetime = p.ConnMaxLifetime
	cfg.ConnMaxIdleTime = p.ConnMaxIdleTime
}

// ConfigurePool applies the pool settings in cfg to db. Zero values leave the
// driver defaults in place.
func ConfigurePool(db *sqlx.DB, cfg ConnectionConfig) {
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
}
