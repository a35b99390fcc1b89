// Package tunnel forwards a local TCP port to a database host through an SSH
// jump server.
package tunnel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/structsync/structsync/internal/model"
)

// Options tune how the SSH connection is established.
type Options struct {
	// KnownHostsFile verifies the server key when set. Otherwise any host
	// key is accepted.
	KnownHostsFile string
	Timeout        time.Duration
	Logger         *slog.Logger
}

// dialer opens connections on the far side of the tunnel. *ssh.Client
// satisfies it.
type dialer interface {
	Dial(network, addr string) (net.Conn, error)
}

// Tunnel is a running local port forward. Close it when the database
// connection that uses it is closed.
type Tunnel struct {
	listener net.Listener
	remote   string
	dial     dialer
	closer   io.Closer
	logger   *slog.Logger

	wg   sync.WaitGroup
	once sync.Once
}

// Open connects to the SSH server in cfg and starts forwarding a random
// loopback port to remoteHost:remotePort.
func Open(ctx context.Context, cfg model.SSHConfig, remoteHost string, remotePort uint16, opts Options) (*Tunnel, error) {
	clientCfg, err := clientConfig(cfg, opts)
	if err != nil {
		return nil, err
	}

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(int(cfg.Port)))
	var d net.Dialer
	d.Timeout = clientCfg.Timeout
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial ssh server %s: %w", addr, err)
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, clientCfg)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh handshake with %s: %w", addr, err)
	}
	client := ssh.NewClient(c, chans, reqs)

	remote := net.JoinHostPort(remoteHost, strconv.Itoa(int(remotePort)))
	t, err := start(client, client, remote, opts.Logger)
	if err != nil {
		client.Close()
		return nil, err
	}
	return t, nil
}

func start(d dialer, closer io.Closer, remote string, logger *slog.Logger) (*Tunnel, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("listen for tunnel: %w", err)
	}
	t := &Tunnel{listener: ln, remote: remote, dial: d, closer: closer, logger: logger}
	t.wg.Add(1)
	go t.serve()
	logger.Info("ssh tunnel established", "local", ln.Addr().String(), "remote", remote)
	return t, nil
}

// LocalHost is the address the database client should dial.
func (t *Tunnel) LocalHost() string { return "127.0.0.1" }

// LocalPort is the loopback port forwarded to the remote database.
func (t *Tunnel) LocalPort() uint16 {
	return uint16(t.listener.Addr().(*net.TCPAddr).Port)
}

// Close stops accepting connections and closes the SSH client, which ends
// any forwards still open.
func (t *Tunnel) Close() error {
	var err error
	t.once.Do(func() {
		err = t.listener.Close()
		t.wg.Wait()
		if t.closer != nil {
			if cerr := t.closer.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}
	})
	return err
}

func (t *Tunnel) serve() {
	defer t.wg.Done()
	for {
		local, err := t.listener.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				t.logger.Warn("tunnel accept failed", "error", err)
			}
			return
		}
		go t.forward(local)
	}
}

func (t *Tunnel) forward(local net.Conn) {
	defer local.Close()
	remote, err := t.dial.Dial("tcp", t.remote)
	if err != nil {
		t.logger.Warn("tunnel dial failed", "remote", t.remote, "error", err)
		return
	}
	defer remote.Close()

	done := make(chan struct{}, 2)
	pipe := func(dst, src net.Conn) {
		io.Copy(dst, src) //nolint:errcheck
		done <- struct{}{}
	}
	go pipe(remote, local)
	go pipe(local, remote)
	<-done
}

func clientConfig(cfg model.SSHConfig, opts Options) (*ssh.ClientConfig, error) {
	auth, err := authMethods(cfg)
	if err != nil {
		return nil, err
	}

	hostKey := ssh.InsecureIgnoreHostKey()
	if opts.KnownHostsFile != "" {
		hostKey, err = knownhosts.New(expandHome(opts.KnownHostsFile))
		if err != nil {
			return nil, fmt.Errorf("load known hosts: %w", err)
		}
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &ssh.ClientConfig{
		User:            cfg.Username,
		Auth:            auth,
		HostKeyCallback: hostKey,
		Timeout:         timeout,
	}, nil
}

func authMethods(cfg model.SSHConfig) ([]ssh.AuthMethod, error) {
	switch cfg.AuthMethod {
	case model.SSHAuthPassword:
		return []ssh.AuthMethod{ssh.Password(cfg.Password)}, nil
	case model.SSHAuthPrivateKey:
		pem, err := os.ReadFile(expandHome(cfg.PrivateKeyPath))
		if err != nil {
			return nil, fmt.Errorf("read ssh private key: %w", err)
		}
		signer, err := parseKey(pem, cfg.Passphrase)
		if err != nil {
			return nil, err
		}
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
	}
	return nil, fmt.Errorf("unsupported ssh auth method %q", cfg.AuthMethod)
}

func parseKey(pem []byte, passphrase string) (ssh.Signer, error) {
	var (
		signer ssh.Signer
		err    error
	)
	if passphrase != "" {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(pem, []byte(passphrase))
	} else {
		signer, err = ssh.ParsePrivateKey(pem)
	}
	if err != nil {
		var missing *ssh.PassphraseMissingError
		if errors.As(err, &missing) {
			return nil, fmt.Errorf("ssh private key is encrypted and no passphrase is stored")
		}
		return nil, fmt.Errorf("parse ssh private key: %w", err)
	}
	return signer, nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
