package tunnel

import (
	"bufio"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	"github.com/structsync/structsync/internal/model"
)

type netDialer struct{}

func (netDialer) Dial(network, addr string) (net.Conn, error) { return net.Dial(network, addr) }

type closeRecorder struct{ closed bool }

func (c *closeRecorder) Close() error { c.closed = true; return nil }

func echoServer(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer c.Close()
				io.Copy(c, c) //nolint:errcheck
			}()
		}
	}()
	return ln.Addr().String()
}

func TestForwardsTraffic(t *testing.T) {
	remote := echoServer(t)
	closer := &closeRecorder{}

	tun, err := start(netDialer{}, closer, remote, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	conn, err := net.Dial("tcp", net.JoinHostPort(tun.LocalHost(), strconv.Itoa(int(tun.LocalPort()))))
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("ping\n"))
	require.NoError(t, err)
	line, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "ping\n", line)

	require.NoError(t, tun.Close())
	assert.True(t, closer.closed)
	assert.NoError(t, tun.Close(), "second close is a no-op")
}

func writeKey(t *testing.T, passphrase string) string {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	var block *pem.Block
	if passphrase == "" {
		block, err = ssh.MarshalPrivateKey(priv, "test")
	} else {
		block, err = ssh.MarshalPrivateKeyWithPassphrase(priv, "test", []byte(passphrase))
	}
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "id_ed25519")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(block), 0600))
	return path
}

func TestAuthMethods(t *testing.T) {
	methods, err := authMethods(model.SSHConfig{AuthMethod: model.SSHAuthPassword, Password: "pw"})
	require.NoError(t, err)
	assert.Len(t, methods, 1)

	plain := writeKey(t, "")
	methods, err = authMethods(model.SSHConfig{AuthMethod: model.SSHAuthPrivateKey, PrivateKeyPath: plain})
	require.NoError(t, err)
	assert.Len(t, methods, 1)

	locked := writeKey(t, "unlock")
	_, err = authMethods(model.SSHConfig{AuthMethod: model.SSHAuthPrivateKey, PrivateKeyPath: locked})
	assert.ErrorContains(t, err, "no passphrase")

	_, err = authMethods(model.SSHConfig{AuthMethod: model.SSHAuthPrivateKey, PrivateKeyPath: locked, Passphrase: "unlock"})
	assert.NoError(t, err)

	_, err = authMethods(model.SSHConfig{AuthMethod: model.SSHAuthPrivateKey, PrivateKeyPath: filepath.Join(t.TempDir(), "missing")})
	assert.Error(t, err)

	_, err = authMethods(model.SSHConfig{AuthMethod: "kerberos"})
	assert.Error(t, err)
}

func TestClientConfig(t *testing.T) {
	cfg, err := clientConfig(model.SSHConfig{Username: "ops", AuthMethod: model.SSHAuthPassword}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "ops", cfg.User)
	assert.NotZero(t, cfg.Timeout)
	assert.NotNil(t, cfg.HostKeyCallback)

	_, err = clientConfig(model.SSHConfig{AuthMethod: model.SSHAuthPassword}, Options{KnownHostsFile: filepath.Join(t.TempDir(), "nope")})
	assert.Error(t, err)
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".ssh/id_rsa"), expandHome("~/.ssh/id_rsa"))
	assert.Equal(t, "/etc/key", expandHome("/etc/key"))
	assert.Equal(t, "~user/key", expandHome("~user/key"))
}
