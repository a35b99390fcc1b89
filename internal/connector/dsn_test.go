package connector

import (
	"net/url"
	"strings"
	"testing"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/structsync/structsync/internal/model"
)

func TestBuildDSNMySQL(t *testing.T) {
	conn := model.Connection{
		ID: "abc", DbType: model.MySQL,
		Username: "app", Password: "p@ss#w%rd",
	}
	dsn, err := BuildDSN(conn, Target{Host: "db.internal", Port: 3307, Database: "shop"})
	require.NoError(t, err)

	cfg, err := mysqldriver.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, "app", cfg.User)
	assert.Equal(t, "p@ss#w%rd", cfg.Passwd)
	assert.Equal(t, "tcp", cfg.Net)
	assert.Equal(t, "db.internal:3307", cfg.Addr)
	assert.Equal(t, "shop", cfg.DBName)
}

func TestBuildDSNMySQLSkipVerify(t *testing.T) {
	conn := model.Connection{
		DbType: model.MariaDB, Username: "u",
		SSL: &model.SSLConfig{Enabled: true},
	}
	dsn, err := BuildDSN(conn, Target{Host: "h", Port: 3306})
	require.NoError(t, err)
	assert.Contains(t, dsn, "tls=skip-verify")
}

func TestBuildDSNPostgres(t *testing.T) {
	conn := model.Connection{
		DbType: model.PostgreSQL, Username: "admin", Password: "a:b@c/d",
		SSL: &model.SSLConfig{Enabled: true, VerifyServer: true, CACertPath: "/etc/ca.pem"},
	}
	dsn, err := BuildDSN(conn, Target{Host: "127.0.0.1", Port: 6543, Database: "app"})
	require.NoError(t, err)

	u, err := url.Parse(dsn)
	require.NoError(t, err)
	assert.Equal(t, "postgres", u.Scheme)
	assert.Equal(t, "127.0.0.1:6543", u.Host)
	assert.Equal(t, "/app", u.Path)
	pass, _ := u.User.Password()
	assert.Equal(t, "a:b@c/d", pass)
	assert.Equal(t, "verify-full", u.Query().Get("sslmode"))
	assert.Equal(t, "/etc/ca.pem", u.Query().Get("sslrootcert"))
}

func TestBuildDSNPostgresDefaults(t *testing.T) {
	conn := model.Connection{DbType: model.PostgreSQL, Username: "u"}
	dsn, err := BuildDSN(conn, Target{Host: "h", Port: 5432})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(dsn, "postgres://u:@h:5432/postgres?"), dsn)
	assert.Contains(t, dsn, "sslmode=disable")
}

func TestBuildDSNSQLServer(t *testing.T) {
	conn := model.Connection{
		DbType: model.SQLServer, Username: "sa", Password: "x",
		SSL: &model.SSLConfig{Enabled: true},
	}
	dsn, err := BuildDSN(conn, Target{Host: "sql", Port: 1433, Database: "wwi"})
	require.NoError(t, err)

	u, err := url.Parse(dsn)
	require.NoError(t, err)
	assert.Equal(t, "sqlserver", u.Scheme)
	assert.Equal(t, "wwi", u.Query().Get("database"))
	assert.Equal(t, "true", u.Query().Get("encrypt"))
	assert.Equal(t, "true", u.Query().Get("TrustServerCertificate"))
}

func TestTunneledTLSChecksProfileHost(t *testing.T) {
	endpoint := Target{Host: "127.0.0.1", Port: 40123, Database: "app"}

	pg := model.Connection{
		DbType: model.PostgreSQL, Host: "db.example.com", Username: "u",
		SSL: &model.SSLConfig{Enabled: true, VerifyServer: true},
	}
	cfg, err := NewConnectionConfig(pg, endpoint)
	require.NoError(t, err)
	assert.Equal(t, "db.example.com", cfg.TLSServerName)

	direct, err := NewConnectionConfig(pg, Target{Host: "db.example.com", Port: 5432})
	require.NoError(t, err)
	assert.Empty(t, direct.TLSServerName)

	ms := model.Connection{
		DbType: model.SQLServer, Host: "sql.example.com", Username: "sa",
		SSL: &model.SSLConfig{Enabled: true, VerifyServer: true},
	}
	dsn, err := BuildDSN(ms, endpoint)
	require.NoError(t, err)
	u, err := url.Parse(dsn)
	require.NoError(t, err)
	assert.Equal(t, "sql.example.com", u.Query().Get("hostNameInCertificate"))

	my := model.Connection{
		ID: "tunnel-verify", DbType: model.MySQL, Host: "mysql.example.com", Username: "u",
		SSL: &model.SSLConfig{Enabled: true, VerifyServer: true},
	}
	dsn, err = BuildDSN(my, endpoint)
	require.NoError(t, err)
	mc, err := mysqldriver.ParseDSN(dsn)
	require.NoError(t, err)
	require.NotNil(t, mc.TLS)
	assert.Equal(t, "mysql.example.com", mc.TLS.ServerName)
}

func TestBuildDSNUnsupported(t *testing.T) {
	_, err := BuildDSN(model.Connection{DbType: "oracle"}, Target{Host: "h", Port: 1})
	assert.Error(t, err)
}

func TestNewConnectionConfig(t *testing.T) {
	conn := model.Connection{DbType: model.PostgreSQL, Pool: model.DefaultPoolConfig()}
	cfg, err := NewConnectionConfig(conn, Target{Host: "h", Port: 5432, Database: "x"})
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Driver)
	assert.Equal(t, "x", cfg.Database)
	assert.Equal(t, 5, cfg.MaxOpenConns)
}

func TestLoadTLSConfigRequiresPair(t *testing.T) {
	_, err := LoadTLSConfig(&model.SSLConfig{Enabled: true, ClientCertPath: "/tmp/c.pem"}, "h")
	assert.ErrorContains(t, err, "together")

	cfg, err := LoadTLSConfig(&model.SSLConfig{Enabled: true}, "db.example.com")
	require.NoError(t, err)
	assert.True(t, cfg.InsecureSkipVerify)
	assert.Equal(t, "db.example.com", cfg.ServerName)
}
