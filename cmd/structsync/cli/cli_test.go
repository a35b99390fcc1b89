package cli

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/structsync/structsync/internal/config"
	"github.com/structsync/structsync/internal/model"
)

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		got, err := confirm(strings.NewReader(tt.input), &out, "go? ")
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "input %q", tt.input)
		assert.Equal(t, "go? ", out.String())
	}
}

func TestIsLoopback(t *testing.T) {
	assert.True(t, isLoopback("127.0.0.1"))
	assert.True(t, isLoopback("::1"))
	assert.True(t, isLoopback("localhost"))
	assert.False(t, isLoopback("0.0.0.0"))
	assert.False(t, isLoopback("db.example.com"))
}

func TestServerConfig(t *testing.T) {
	cfg := config.DefaultYAMLConfig()
	cfg.Server.MaxBodySize = "1MiB"
	cfg.Server.ShutdownTimeout = "5s"
	cfg.Server.TLS = config.TLSConfig{Enabled: true, CertFile: "c.pem", KeyFile: "k.pem"}

	out, err := serverConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, int64(1<<20), out.MaxBodySize)
	assert.Equal(t, 5*time.Second, out.ShutdownTimeout)
	assert.Equal(t, "c.pem", out.TLSCertFile)
	assert.Equal(t, "127.0.0.1:8642", out.Addr())
	assert.Empty(t, out.CORSOrigins)
	assert.Equal(t, "exports", filepath.Base(out.ExportDir))

	cfg.Server.MaxBodySize = "lots"
	_, err = serverConfig(cfg)
	assert.Error(t, err)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("STRUCTSYNC_AUTH_JWT_SECRET", "from-env")
	initConfig()

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
}

func TestNewLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(config.LoggingConfig{Level: "warn", Format: "json"}, &buf)
	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
}

func TestPrintSummary(t *testing.T) {
	idx := "idx_email"
	result := &model.DiffResult{
		SourceTables: 2,
		TargetTables: 1,
		Items: []model.DiffItem{
			{ID: "a", DiffType: model.TableAdded, TableName: "orders", Selected: true},
			{ID: "b", DiffType: model.IndexAdded, TableName: "users", ObjectName: &idx},
		},
	}

	var buf bytes.Buffer
	printSummary(&buf, result)
	out := buf.String()
	assert.Contains(t, out, "Source tables: 2, target tables: 1")
	assert.Contains(t, out, "2 difference(s)")
	assert.Contains(t, out, "idx_email (excluded)")
	assert.Contains(t, out, "\nID    TYPE")
	assert.Contains(t, out, "\na     table_added")

	buf.Reset()
	printSummary(&buf, &model.DiffResult{})
	assert.Contains(t, buf.String(), "Schemas are in sync.")
}

func TestRedactedKeepsOriginal(t *testing.T) {
	c := model.Connection{Name: "prod", Password: "pw", SSH: &model.SSHConfig{Enabled: true, Password: "ssh", Passphrase: "pp"}}

	r := redacted(c)
	assert.Empty(t, r.SSH.Password)
	assert.Empty(t, r.SSH.Passphrase)
	assert.Equal(t, "ssh", c.SSH.Password)

	in := inputFrom(c)
	assert.Equal(t, "pw", in.Password)
	assert.Equal(t, "prod", in.Name)
}

func TestWatchesFromConfig(t *testing.T) {
	cfg := config.DefaultYAMLConfig()
	cfg.Watches = []config.WatchYAML{
		{Source: "dev", Target: "prod", TargetDB: "shop", Schedule: "@hourly", Out: "drift.sql"},
	}

	watches := watchesFromConfig(cfg)
	require.Len(t, watches, 1)
	assert.Equal(t, "dev->prod", watches[0].Label())
	assert.Equal(t, "shop", watches[0].Request.TargetDB)
	assert.Equal(t, "drift.sql", watches[0].Out)
}
