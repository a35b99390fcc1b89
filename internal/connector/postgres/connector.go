package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/structsync/structsync/internal/connector"
)

// PostgresConnector implements connector.Connector for PostgreSQL databases.
// Introspection is limited to one schema, "public" unless configured.
type PostgresConnector struct {
	Generator
	db         *sqlx.DB
	schemaName string
}

// New creates a new PostgresConnector with default settings.
func New() connector.Connector {
	return &PostgresConnector{schemaName: "public"}
}

// Connect establishes a connection to the PostgreSQL database using the
// provided configuration and configures connection pool settings.
func (c *PostgresConnector) Connect(cfg connector.ConnectionConfig) error {
	connCfg, err := pgx.ParseConfig(cfg.DSN)
	if err != nil {
		return fmt.Errorf("postgres connect: %w", err)
	}
	setTLSServerName(connCfg, cfg.TLSServerName)

	db := sqlx.NewDb(stdlib.OpenDB(*connCfg), "pgx")
	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("postgres connect: %w", err)
	}
	connector.ConfigurePool(db, cfg)

	c.db = db
	return nil
}

// setTLSServerName points certificate verification at name. pgx derives the
// server name from the dialed host, which is 127.0.0.1 behind an SSH tunnel.
func setTLSServerName(cfg *pgx.ConnConfig, name string) {
	if name == "" {
		return
	}
	if cfg.TLSConfig != nil {
		cfg.TLSConfig.ServerName = name
	}
	for _, fb := range cfg.Fallbacks {
		if fb.TLSConfig != nil {
			fb.TLSConfig.ServerName = name
		}
	}
}

// Disconnect closes the database connection pool.
func (c *PostgresConnector) Disconnect() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Ping verifies the database connection is alive.
func (c *PostgresConnector) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// DB returns the underlying sqlx.DB connection pool.
func (c *PostgresConnector) DB() *sqlx.DB {
	return c.db
}

// DriverName returns the driver identifier for PostgreSQL.
func (c *PostgresConnector) DriverName() string { return "postgres" }
