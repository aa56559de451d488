// Package remote runs commands on the peer controller over SSH, used to
// pass a fire alarm on to it.
package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/opensesame/core/internal/infrastructure/config"
)

// ErrDisabled is returned by New when the remote peer is not configured.
var ErrDisabled = errors.New("remote: disabled")

const defaultTimeout = 10 * time.Second

// Client connects to the peer for every command. Alarms are rare, so no
// connection is kept open.
type Client struct {
	addr    string
	config  *ssh.ClientConfig
	timeout time.Duration
	dial    func(ctx context.Context, network, addr string) (net.Conn, error)
}

// New reads the private key and known hosts file and returns a Client.
func New(cfg config.RemoteConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	key, err := os.ReadFile(cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("reading ssh key: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("parsing ssh key %s: %w", cfg.KeyFile, err)
	}

	hostKeys, err := knownhosts.New(cfg.KnownHostsFile)
	if err != nil {
		return nil, fmt.Errorf("reading known hosts: %w", err)
	}

	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return NewWithConfig(net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)), &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: hostKeys,
		Timeout:         timeout,
	}), nil
}

// NewWithConfig returns a Client for addr with a prepared SSH configuration.
func NewWithConfig(addr string, cc *ssh.ClientConfig) *Client {
	timeout := cc.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	d := &net.Dialer{Timeout: timeout}
	return &Client{addr: addr, config: cc, timeout: timeout, dial: d.DialContext}
}

// Run executes command on the peer and waits for it to finish. The whole
// exchange is bounded by the configured timeout.
func (c *Client) Run(ctx context.Context, command string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	conn, err := c.dial(ctx, "tcp", c.addr)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", c.addr, err)
	}
	// Unblocks the handshake and the session when ctx ends.
	stop := context.AfterFunc(ctx, func() { conn.Close() }) //nolint:errcheck // best effort
	defer stop()

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, c.addr, c.config)
	if err != nil {
		conn.Close() //nolint:errcheck // handshake failed
		return fmt.Errorf("ssh handshake with %s: %w", c.addr, err)
	}
	client := ssh.NewClient(sshConn, chans, reqs)
	defer client.Close() //nolint:errcheck // connection is discarded

	session, err := client.NewSession()
	if err != nil {
		return fmt.Errorf("opening ssh session: %w", err)
	}
	defer session.Close() //nolint:errcheck // session is discarded

	if out, err := session.CombinedOutput(command); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("running %q: %w", command, ctx.Err())
		}
		return fmt.Errorf("running %q: %w (output %q)", command, err, out)
	}
	return nil
}
