package psql

import (
	"context"
	"herokuPlugins/internal/models"
	"herokuPlugins/internal/ssh"
)

// Tunnel is an open local forward to the database.
type Tunnel interface {
	LocalHost() string
	LocalPort() int
	Close() error
}

// TunnelOpener opens the bastion tunnel for one invocation.
type TunnelOpener interface {
	Open(ctx context.Context, cfg models.TunnelConfig) (Tunnel, error)
}

// SSHTunnelOpener opens tunnels with golang.org/x/crypto/ssh.
type SSHTunnelOpener struct {
	Options ssh.TunnelOptions
}

func (o SSHTunnelOpener) Open(ctx context.Context, cfg models.TunnelConfig) (Tunnel, error) {
	tunnel, err := ssh.OpenTunnel(ctx, cfg, o.Options)
	if err != nil {
		return nil, err
	}
	return tunnel, nil
}
