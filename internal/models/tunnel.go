// internal/models/tunnel.go

package models

import (
	"fmt"
	"net"
	"strconv"
)

const (
	BastionUsername  = "bastion"
	TunnelLocalHost  = "127.0.0.1"
	LocalPortMin     = 49152
	LocalPortMax     = 65535 // wyłącznie
	DefaultLocalPort = LocalPortMin
)

// TunnelConfig describes one SSH local forward. It lives only as long as the
// tunnel it configures.
type TunnelConfig struct {
	Username   string
	Host       string
	Port       int
	PrivateKey string
	DstHost    string
	DstPort    int
	LocalHost  string
	LocalPort  int
}

// NewTunnelConfig derives the forward for a bastion descriptor.
func NewTunnelConfig(db ConnectionDescriptor, localPort int) TunnelConfig {
	return TunnelConfig{
		Username:   BastionUsername,
		Host:       db.BastionHost,
		Port:       db.EffectiveBastionPort(),
		PrivateKey: db.BastionKey,
		DstHost:    db.Host,
		DstPort:    db.EffectivePort(),
		LocalHost:  TunnelLocalHost,
		LocalPort:  localPort,
	}
}

// BastionAddr returns host:port of the SSH server.
func (c TunnelConfig) BastionAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// DstAddr returns host:port of the forwarded destination.
func (c TunnelConfig) DstAddr() string {
	return net.JoinHostPort(c.DstHost, strconv.Itoa(c.DstPort))
}

// LocalAddr returns host:port of the local listener.
func (c TunnelConfig) LocalAddr() string {
	return net.JoinHostPort(c.LocalHost, strconv.Itoa(c.LocalPort))
}

func (c TunnelConfig) String() string {
	return fmt.Sprintf("%s -> %s@%s -> %s", c.LocalAddr(), c.Username, c.BastionAddr(), c.DstAddr())
}
