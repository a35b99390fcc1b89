package model

import (
	"fmt"
	"time"
)

// DbType identifies the database engine behind a connection profile.
type DbType string

const (
	MySQL      DbType = "mysql"
	MariaDB    DbType = "mariadb"
	PostgreSQL DbType = "postgresql"
	SQLServer  DbType = "mssql"
)

// ParseDbType accepts the canonical names plus a few common aliases.
func ParseDbType(s string) (DbType, error) {
	switch s {
	case "mysql":
		return MySQL, nil
	case "mariadb":
		return MariaDB, nil
	case "postgresql", "postgres", "pg":
		return PostgreSQL, nil
	case "mssql", "sqlserver":
		return SQLServer, nil
	}
	return "", fmt.Errorf("unsupported database type %q (supported: mysql, mariadb, postgresql, mssql)", s)
}

// DefaultPort returns the engine's standard listening port.
func (t DbType) DefaultPort() uint16 {
	switch t {
	case PostgreSQL:
		return 5432
	case SQLServer:
		return 1433
	default:
		return 3306
	}
}

// Driver returns the connector registry key for the engine. MariaDB shares
// the MySQL connector.
func (t DbType) Driver() string {
	switch t {
	case PostgreSQL:
		return "postgres"
	case SQLServer:
		return "mssql"
	default:
		return "mysql"
	}
}

// SSHAuthMethod selects how the SSH tunnel authenticates.
type SSHAuthMethod string

const (
	SSHAuthPassword   SSHAuthMethod = "password"
	SSHAuthPrivateKey SSHAuthMethod = "privatekey"
)

// SSHConfig describes an SSH jump host used to reach the database.
type SSHConfig struct {
	Enabled        bool          `json:"enabled" yaml:"enabled"`
	Host           string        `json:"host" yaml:"host"`
	Port           uint16        `json:"port" yaml:"port"`
	Username       string        `json:"username" yaml:"username"`
	AuthMethod     SSHAuthMethod `json:"auth_method" yaml:"auth_method"`
	Password       string        `json:"password,omitempty" yaml:"-"`
	PrivateKeyPath string        `json:"private_key_path,omitempty" yaml:"private_key_path,omitempty"`
	Passphrase     string        `json:"passphrase,omitempty" yaml:"-"`
}

// SSLConfig describes TLS settings for the database connection.
type SSLConfig struct {
	Enabled        bool   `json:"enabled" yaml:"enabled"`
	CACertPath     string `json:"ca_cert_path,omitempty" yaml:"ca_cert_path,omitempty"`
	ClientCertPath string `json:"client_cert_path,omitempty" yaml:"client_cert_path,omitempty"`
	ClientKeyPath  string `json:"client_key_path,omitempty" yaml:"client_key_path,omitempty"`
	VerifyServer   bool   `json:"verify_server" yaml:"verify_server"`
}

// Connection is a saved connection profile. The password fields are filled
// from the secret store on read and are never persisted in the profile table.
type Connection struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	DbType    DbType     `json:"db_type"`
	Host      string     `json:"host"`
	Port      uint16     `json:"port"`
	Username  string     `json:"username"`
	Password  string     `json:"-"`
	Database  string     `json:"database"`
	SSH       *SSHConfig `json:"ssh_config,omitempty"`
	SSL       *SSLConfig `json:"ssl_config,omitempty"`
	Pool      PoolConfig `json:"pool"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// ConnectionInput is the user-supplied shape of a profile for create,
// update and ad-hoc connection tests.
type ConnectionInput struct {
	Name     string     `json:"name"`
	DbType   DbType     `json:"db_type"`
	Host     string     `json:"host"`
	Port     uint16     `json:"port"`
	Username string     `json:"username"`
	Password string     `json:"password"`
	Database string     `json:"database"`
	SSH      *SSHConfig `json:"ssh_config,omitempty"`
	SSL      *SSLConfig `json:"ssl_config,omitempty"`
}

// Validate checks the fields every profile needs and fills the default port.
func (in *ConnectionInput) Validate() error {
	if in.Name == "" {
		return fmt.Errorf("name is required")
	}
	if in.Host == "" {
		return fmt.Errorf("host is required")
	}
	if _, err := ParseDbType(string(in.DbType)); err != nil {
		return err
	}
	if in.Port == 0 {
		in.Port = in.DbType.DefaultPort()
	}
	if in.SSH != nil && in.SSH.Enabled {
		if in.SSH.Host == "" || in.SSH.Username == "" {
			return fmt.Errorf("ssh host and username are required when ssh is enabled")
		}
		if in.SSH.Port == 0 {
			in.SSH.Port = 22
		}
		switch in.SSH.AuthMethod {
		case SSHAuthPassword:
		case SSHAuthPrivateKey:
			if in.SSH.PrivateKeyPath == "" {
				return fmt.Errorf("ssh private key path is required for private key auth")
			}
		default:
			return fmt.Errorf("unsupported ssh auth method %q", in.SSH.AuthMethod)
		}
	}
	return nil
}

// ToConnection builds a profile from the input without an ID or timestamps.
func (in ConnectionInput) ToConnection() Connection {
	return Connection{
		Name:     in.Name,
		DbType:   in.DbType,
		Host:     in.Host,
		Port:     in.Port,
		Username: in.Username,
		Password: in.Password,
		Database: in.Database,
		SSH:      in.SSH,
		SSL:      in.SSL,
		Pool:     DefaultPoolConfig(),
	}
}

// PoolConfig controls the database connection pool behavior for a profile.
type PoolConfig struct {
	MaxOpenConns    int           `yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" json:"conn_max_idle_time"`
}

// DefaultPoolConfig returns the pool settings applied to new profiles.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 1 * time.Minute,
	}
}
