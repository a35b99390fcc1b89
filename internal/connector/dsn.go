package connector

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"

	mysqldriver "github.com/go-sql-driver/mysql"

	"github.com/structsync/structsync/internal/model"
)

// Target describes where a connector should dial. Host and Port differ from
// the profile's own when traffic goes through an SSH tunnel; Database is the
// profile database unless the caller overrides it.
type Target struct {
	Host     string
	Port     uint16
	Database string
}

// NewConnectionConfig builds the driver name, DSN and pool settings for a
// profile dialed at t.
func NewConnectionConfig(conn model.Connection, t Target) (ConnectionConfig, error) {
	dsn, err := BuildDSN(conn, t)
	if err != nil {
		return ConnectionConfig{}, err
	}
	cfg := ConnectionConfig{
		Driver:   conn.DbType.Driver(),
		DSN:      dsn,
		Database: t.Database,
	}
	if tunneled(conn, t) {
		cfg.TLSServerName = conn.Host
	}
	cfg.ApplyPool(conn.Pool)
	return cfg, nil
}

// BuildDSN renders the driver-specific DSN for a profile. Credentials are
// escaped by the driver's own formatter (mysql) or by net/url (postgres and
// mssql), so passwords containing @, # or % need no special handling.
func BuildDSN(conn model.Connection, t Target) (string, error) {
	addr := net.JoinHostPort(t.Host, strconv.Itoa(int(t.Port)))

	switch conn.DbType {
	case model.MySQL, model.MariaDB:
		return mysqlDSN(conn, addr, t.Database)
	case model.PostgreSQL:
		return postgresDSN(conn, addr, t.Database), nil
	case model.SQLServer:
		return mssqlDSN(conn, addr, t.Database, tunneled(conn, t)), nil
	default:
		return "", fmt.Errorf("unsupported database type %q", conn.DbType)
	}
}

// tunneled reports whether t is a local tunnel endpoint rather than the
// profile's own host. Certificates must then be checked against conn.Host.
func tunneled(conn model.Connection, t Target) bool {
	return conn.SSL != nil && conn.SSL.Enabled && conn.Host != "" && t.Host != conn.Host
}

func mysqlDSN(conn model.Connection, addr, database string) (string, error) {
	cfg := mysqldriver.NewConfig()
	cfg.User = conn.Username
	cfg.Passwd = conn.Password
	cfg.Net = "tcp"
	cfg.Addr = addr
	cfg.DBName = database

	if ssl := conn.SSL; ssl != nil && ssl.Enabled {
		switch {
		// A named config pins ServerName to the profile host, which
		// "tls=true" would take from the (possibly tunneled) address.
		case ssl.VerifyServer || ssl.CACertPath != "" || ssl.ClientCertPath != "":
			tlsCfg, err := LoadTLSConfig(ssl, conn.Host)
			if err != nil {
				return "", err
			}
			name := "structsync-" + conn.ID
			if conn.ID == "" {
				name = "structsync-" + conn.Name
			}
			if err := mysqldriver.RegisterTLSConfig(name, tlsCfg); err != nil {
				return "", fmt.Errorf("register tls config: %w", err)
			}
			cfg.TLSConfig = name
		default:
			cfg.TLSConfig = "skip-verify"
		}
	}
	return cfg.FormatDSN(), nil
}

func postgresDSN(conn model.Connection, addr, database string) string {
	if database == "" {
		database = "postgres"
	}
	q := url.Values{}
	q.Set("sslmode", "disable")
	if ssl := conn.SSL; ssl != nil && ssl.Enabled {
		q.Set("sslmode", "require")
		if ssl.VerifyServer {
			q.Set("sslmode", "verify-full")
		}
		if ssl.CACertPath != "" {
			q.Set("sslrootcert", ssl.CACertPath)
		}
		if ssl.ClientCertPath != "" {
			q.Set("sslcert", ssl.ClientCertPath)
		}
		if ssl.ClientKeyPath != "" {
			q.Set("sslkey", ssl.ClientKeyPath)
		}
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(conn.Username, conn.Password),
		Host:     addr,
		Path:     "/" + database,
		RawQuery: q.Encode(),
	}
	return u.String()
}

func mssqlDSN(conn model.Connection, addr, database string, viaTunnel bool) string {
	q := url.Values{}
	if database != "" {
		q.Set("database", database)
	}
	q.Set("encrypt", "disable")
	if ssl := conn.SSL; ssl != nil && ssl.Enabled {
		q.Set("encrypt", "true")
		q.Set("TrustServerCertificate", strconv.FormatBool(!ssl.VerifyServer))
		if ssl.CACertPath != "" {
			q.Set("certificate", ssl.CACertPath)
		}
		if viaTunnel {
			q.Set("hostNameInCertificate", conn.Host)
		}
	}
	u := url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(conn.Username, conn.Password),
		Host:     addr,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// LoadTLSConfig builds a client TLS configuration from certificate files.
func LoadTLSConfig(ssl *model.SSLConfig, serverName string) (*tls.Config, error) {
	cfg := &tls.Config{
		ServerName:         serverName,
		InsecureSkipVerify: !ssl.VerifyServer,
	}
	if ssl.CACertPath != "" {
		pem, err := os.ReadFile(ssl.CACertPath)
		if err != nil {
			return nil, fmt.Errorf("read ca cert: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("ca cert %s: no certificates found", ssl.CACertPath)
		}
		cfg.RootCAs = pool
	}
	if ssl.ClientCertPath != "" || ssl.ClientKeyPath != "" {
		if ssl.ClientCertPath == "" || ssl.ClientKeyPath == "" {
			return nil, fmt.Errorf("client cert and key must be provided together")
		}
		cert, err := tls.LoadX509KeyPair(ssl.ClientCertPath, ssl.ClientKeyPath)
		if err != nil {
			return nil, fmt.Errorf("load client cert: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}
	return cfg, nil
}
