package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// YAMLConfig represents the top-level structsync configuration file.
type YAMLConfig struct {
	Server  ServerConfig  `yaml:"server"`
	Auth    AuthConfig    `yaml:"auth"`
	MCP     MCPConfig     `yaml:"mcp"`
	Keyring KeyringConfig `yaml:"keyring"`
	SSH     SSHConfig     `yaml:"ssh"`
	Watches []WatchYAML   `yaml:"watches,omitempty"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig controls the HTTP server behavior.
type ServerConfig struct {
	Host            string     `yaml:"host"`
	Port            int        `yaml:"port"`
	MaxBodySize     string     `yaml:"max_body_size"`
	ShutdownTimeout string     `yaml:"shutdown_timeout"`
	RateLimit       int        `yaml:"rate_limit"`
	CORS            CORSConfig `yaml:"cors"`
	TLS             TLSConfig  `yaml:"tls"`
}

// CORSConfig controls cross-origin resource sharing settings.
// Origins "*" is honored only when auth.jwt_secret is set.
type CORSConfig struct {
	Origins []string `yaml:"origins"`
	Methods []string `yaml:"methods"`
}

// TLSConfig controls TLS termination at the server level.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// AuthConfig controls bearer token authentication for the HTTP API. An
// empty secret disables authentication.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	JWTExpiry string `yaml:"jwt_expiry"`
}

// MCPConfig controls the MCP (Model Context Protocol) server.
type MCPConfig struct {
	Transport    string `yaml:"transport"`
	AllowExecute bool   `yaml:"allow_execute"`
}

// KeyringConfig selects where connection passwords are kept.
type KeyringConfig struct {
	Backend      string `yaml:"backend"`
	FilePassword string `yaml:"file_password"`
}

// SSHConfig tunes SSH tunnels opened for profiles that use one.
type SSHConfig struct {
	KnownHostsFile string `yaml:"known_hosts_file,omitempty"`
	Timeout        string `yaml:"timeout"`
}

// WatchYAML defines one scheduled drift check between two saved profiles.
type WatchYAML struct {
	Name     string `yaml:"name"`
	Source   string `yaml:"source"`
	Target   string `yaml:"target"`
	SourceDB string `yaml:"source_db,omitempty"`
	TargetDB string `yaml:"target_db,omitempty"`
	Schedule string `yaml:"schedule"`
	Out      string `yaml:"out,omitempty"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// LoadYAMLConfig reads and parses a YAML configuration file. Environment
// variables referenced as ${VAR_NAME} in the file are expanded before parsing.
// Fields missing from the file keep their defaults.
func LoadYAMLConfig(path string) (*YAMLConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Expand environment variables: ${VAR_NAME}
	content := os.ExpandEnv(string(data))

	cfg := DefaultYAMLConfig()
	if err := yaml.Unmarshal([]byte(content), cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	for i, w := range cfg.Watches {
		if w.Source == "" || w.Target == "" || w.Schedule == "" {
			return nil, fmt.Errorf("watch %d (%q): source, target and schedule are required", i, w.Name)
		}
	}
	return cfg, nil
}

// DefaultYAMLConfig returns a YAMLConfig pre-filled with sensible defaults.
func DefaultYAMLConfig() *YAMLConfig {
	return &YAMLConfig{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8642,
			MaxBodySize:     "10MB",
			ShutdownTimeout: "30s",
			RateLimit:       120,
			CORS: CORSConfig{
				Methods: []string{"GET", "POST", "PUT", "DELETE"},
			},
		},
		Auth: AuthConfig{
			JWTExpiry: "24h",
		},
		MCP: MCPConfig{
			Transport: "stdio",
		},
		SSH: SSHConfig{
			Timeout: "15s",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// WriteDefaultConfig writes the default configuration to a YAML file.
func WriteDefaultConfig(path string) error {
	cfg := DefaultYAMLConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
