package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"

	"github.com/structsync/structsync/internal/config"
	"github.com/structsync/structsync/internal/connector"
	"github.com/structsync/structsync/internal/connector/mssql"
	"github.com/structsync/structsync/internal/connector/mysql"
	"github.com/structsync/structsync/internal/connector/postgres"
	"github.com/structsync/structsync/internal/server"
	"github.com/structsync/structsync/internal/service"
	"github.com/structsync/structsync/internal/tunnel"
)

// dataDir holds the --data-dir persistent flag value (set on root command).
var dataDir string

// resolveDataDir returns the data directory from --data-dir flag,
// STRUCTSYNC_DATA_DIR env var, or ~/.structsync as fallback.
func resolveDataDir() string {
	if dataDir != "" {
		return dataDir
	}
	if envDir := os.Getenv("STRUCTSYNC_DATA_DIR"); envDir != "" {
		return envDir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".structsync")
}

// envOverrides are config keys that STRUCTSYNC_* environment variables may
// override, e.g. STRUCTSYNC_AUTH_JWT_SECRET for auth.jwt_secret.
func envOverrides(cfg *config.YAMLConfig) map[string]*string {
	return map[string]*string{
		"auth.jwt_secret":       &cfg.Auth.JWTSecret,
		"keyring.backend":       &cfg.Keyring.Backend,
		"keyring.file_password": &cfg.Keyring.FilePassword,
		"logging.level":         &cfg.Logging.Level,
		"logging.format":        &cfg.Logging.Format,
		"ssh.known_hosts_file":  &cfg.SSH.KnownHostsFile,
	}
}

// loadConfig reads the config file viper located, falling back to defaults
// when there is none, then applies environment overrides.
func loadConfig() (*config.YAMLConfig, error) {
	cfg := config.DefaultYAMLConfig()
	if path := viper.ConfigFileUsed(); path != "" {
		if _, err := os.Stat(path); err == nil {
			cfg, err = config.LoadYAMLConfig(path)
			if err != nil {
				return nil, err
			}
		} else if cfgFile != "" {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
	}
	for key, dst := range envOverrides(cfg) {
		env := "STRUCTSYNC_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if _, ok := os.LookupEnv(env); ok {
			*dst = viper.GetString(key)
		}
	}
	return cfg, nil
}

// newLogger builds the process logger. Logs always go to stderr so stdout
// stays clean for SQL and JSON output.
func newLogger(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// openConfigStore opens the profile database with passwords kept in the
// configured keyring backend.
func openConfigStore(cfg *config.YAMLConfig) (*config.Store, error) {
	dir := resolveDataDir()
	secrets, err := config.OpenKeyring(config.KeyringOptions{
		Backend:      cfg.Keyring.Backend,
		Dir:          dir,
		FilePassword: cfg.Keyring.FilePassword,
	})
	if err != nil {
		return nil, err
	}
	return config.NewStore(dir, secrets)
}

// newRegistry creates a connector registry with all supported database drivers registered.
func newRegistry() *connector.Registry {
	registry := connector.NewRegistry()
	registry.RegisterDriver("mysql", func() connector.Connector { return mysql.New() })
	registry.RegisterDriver("mariadb", func() connector.Connector { return mysql.New() })
	registry.RegisterDriver("postgres", func() connector.Connector { return postgres.New() })
	registry.RegisterDriver("mssql", func() connector.Connector { return mssql.New() })
	return registry
}

// app bundles what every command that touches profiles needs.
type app struct {
	cfg    *config.YAMLConfig
	logger *slog.Logger
	store  *config.Store
	svc    *service.Service
}

func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg.Logging, os.Stderr)

	store, err := openConfigStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("open config store: %w", err)
	}
	logger.Debug("config store opened", "path", resolveDataDir())

	timeout, err := parseDuration(cfg.SSH.Timeout, 15*time.Second)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("ssh.timeout: %w", err)
	}
	svc := service.New(store, newRegistry(), service.Options{
		Logger: logger,
		Tunnel: tunnel.Options{
			KnownHostsFile: cfg.SSH.KnownHostsFile,
			Timeout:        timeout,
			Logger:         logger,
		},
	})
	return &app{cfg: cfg, logger: logger, store: store, svc: svc}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// serverConfig translates the file config into server settings.
func serverConfig(cfg *config.YAMLConfig) (server.Config, error) {
	out := server.DefaultConfig()
	out.Host = cfg.Server.Host
	out.Port = cfg.Server.Port
	out.RateLimit = cfg.Server.RateLimit
	out.Version = versionString()
	out.ExportDir = filepath.Join(resolveDataDir(), "exports")
	if len(cfg.Server.CORS.Origins) > 0 {
		out.CORSOrigins = cfg.Server.CORS.Origins
	}
	if len(cfg.Server.CORS.Methods) > 0 {
		out.CORSMethods = cfg.Server.CORS.Methods
	}
	if cfg.Server.TLS.Enabled {
		out.TLSCertFile = cfg.Server.TLS.CertFile
		out.TLSKeyFile = cfg.Server.TLS.KeyFile
	}

	if cfg.Server.MaxBodySize != "" {
		n, err := humanize.ParseBytes(cfg.Server.MaxBodySize)
		if err != nil {
			return out, fmt.Errorf("server.max_body_size: %w", err)
		}
		out.MaxBodySize = int64(n)
	}
	d, err := parseDuration(cfg.Server.ShutdownTimeout, out.ShutdownTimeout)
	if err != nil {
		return out, fmt.Errorf("server.shutdown_timeout: %w", err)
	}
	out.ShutdownTimeout = d
	return out, nil
}

func parseDuration(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	return time.ParseDuration(s)
}

// versionString returns a display version string.
func versionString() string {
	if appVersion == "" || appVersion == "dev" {
		return "dev"
	}
	if strings.HasPrefix(appVersion, "v") {
		return appVersion
	}
	return "v" + appVersion
}
