// internal/ssh/tunnel.go

package ssh

import (
	"context"
	"errors"
	"fmt"
	"herokuPlugins/internal/apperror"
	"herokuPlugins/internal/logging"
	"herokuPlugins/internal/models"
	"io"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
)

const defaultDialTimeout = 10 * time.Second

// TunnelOptions configures how the bastion is reached.
type TunnelOptions struct {
	// KnownHostsFile enables host key verification. Empty accepts any host key.
	KnownHostsFile string
	DialTimeout    time.Duration
	Logger         *zap.Logger
}

// Tunnel is a local TCP listener whose connections are forwarded over SSH.
type Tunnel struct {
	config   models.TunnelConfig
	client   *ssh.Client
	listener net.Listener
	logger   *zap.Logger

	wg        sync.WaitGroup
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// OpenTunnel connects to the bastion and starts forwarding
// cfg.LocalAddr() to cfg.DstAddr(). The caller must Close the tunnel.
func OpenTunnel(ctx context.Context, cfg models.TunnelConfig, opts TunnelOptions) (*Tunnel, error) {
	logger := logging.OrNop(opts.Logger).With(zap.String("bastion", cfg.BastionAddr()))

	signer, err := ssh.ParsePrivateKey([]byte(cfg.PrivateKey))
	if err != nil {
		return nil, apperror.New(apperror.TunnelError, "failed to parse bastion key", err)
	}

	hostKeyCallback, err := newHostKeyCallback(opts.KnownHostsFile)
	if err != nil {
		return nil, apperror.New(apperror.TunnelError, "failed to load known hosts", err)
	}

	timeout := opts.DialTimeout
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}

	sshConfig := &ssh.ClientConfig{
		User:            cfg.Username,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: hostKeyCallback,
		Timeout:         timeout,
	}

	logger.Debug("Dialing bastion", zap.String("user", cfg.Username))
	client, err := dial(ctx, cfg.BastionAddr(), sshConfig)
	if err != nil {
		return nil, apperror.New(apperror.TunnelError,
			fmt.Sprintf("failed to connect to bastion %s", cfg.BastionAddr()), err)
	}

	listener, err := net.Listen("tcp", cfg.LocalAddr())
	if err != nil {
		client.Close()
		return nil, apperror.New(apperror.TunnelError,
			fmt.Sprintf("failed to listen on %s", cfg.LocalAddr()), err)
	}

	t := &Tunnel{
		config:   cfg,
		client:   client,
		listener: listener,
		logger:   logger,
		done:     make(chan struct{}),
	}

	t.wg.Add(1)
	go t.acceptLoop()

	logger.Debug("Tunnel established",
		zap.String("local", listener.Addr().String()),
		zap.String("destination", cfg.DstAddr()),
	)
	return t, nil
}

// dial nawiązuje połączenie SSH z uwzględnieniem kontekstu
func dial(ctx context.Context, addr string, config *ssh.ClientConfig) (*ssh.Client, error) {
	dialer := net.Dialer{Timeout: config.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	// Handshake nie obsługuje kontekstu - zamykamy połączenie przy anulowaniu
	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})

	if err := conn.SetDeadline(time.Now().Add(config.Timeout)); err != nil {
		stop()
		conn.Close()
		return nil, err
	}

	c, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if !stop() {
		if err == nil {
			c.Close()
		}
		return nil, ctx.Err()
	}
	if err != nil {
		conn.Close()
		return nil, err
	}

	if err := conn.SetDeadline(time.Time{}); err != nil {
		c.Close()
		return nil, err
	}

	return ssh.NewClient(c, chans, reqs), nil
}

func (t *Tunnel) acceptLoop() {
	defer t.wg.Done()

	for {
		local, err := t.listener.Accept()
		if err != nil {
			select {
			case <-t.done:
			default:
				if !errors.Is(err, net.ErrClosed) {
					t.logger.Warn("Tunnel listener failed", zap.Error(err))
				}
			}
			return
		}

		t.wg.Add(1)
		go t.forward(local)
	}
}

// forward copies bytes between one local connection and the destination.
// Whichever side finishes first closes both.
func (t *Tunnel) forward(local net.Conn) {
	defer t.wg.Done()

	remote, err := t.client.Dial("tcp", t.config.DstAddr())
	if err != nil {
		t.logger.Warn("Failed to open forwarded connection",
			zap.String("destination", t.config.DstAddr()),
			zap.Error(err),
		)
		local.Close()
		return
	}

	finished := make(chan struct{}, 2)
	pipe := func(dst io.Writer, src io.Reader) {
		io.Copy(dst, src)
		finished <- struct{}{}
	}

	go pipe(remote, local)
	go pipe(local, remote)

	<-finished
	local.Close()
	remote.Close()
	<-finished
}

// Addr returns the address of the local listener.
func (t *Tunnel) Addr() string {
	return t.listener.Addr().String()
}

// LocalHost returns the host the local listener is bound to.
func (t *Tunnel) LocalHost() string {
	if addr, ok := t.listener.Addr().(*net.TCPAddr); ok {
		return addr.IP.String()
	}
	return t.config.LocalHost
}

// LocalPort returns the bound local port. It differs from the configured one
// only when port 0 was requested.
func (t *Tunnel) LocalPort() int {
	if addr, ok := t.listener.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return t.config.LocalPort
}

// Close stops accepting, tears down every forwarded connection and closes
// the SSH client. It is safe to call more than once.
func (t *Tunnel) Close() error {
	t.closeOnce.Do(func() {
		close(t.done)

		var errs []error
		if err := t.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, fmt.Errorf("listener close error: %w", err))
		}
		if err := t.client.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, fmt.Errorf("client close error: %w", err))
		}

		t.wg.Wait()
		t.closeErr = errors.Join(errs...)
		t.logger.Debug("Tunnel closed", zap.String("local", t.config.LocalAddr()))
	})
	return t.closeErr
}
