// internal/models/database.go

package models

import (
	"fmt"
	"herokuPlugins/internal/apperror"
	"strconv"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	DefaultPostgresPort = 5432
	DefaultBastionPort  = 22
)

// AttachmentApp identifies the app a database is attached to.
type AttachmentApp struct {
	Name string `json:"name"`
}

// Attachment is used only for prompts and history file naming.
type Attachment struct {
	App  AttachmentApp `json:"app"`
	Name string        `json:"name"`
}

// ConnectionDescriptor describes how to reach a database.
// Treat it as a value: methods never modify the receiver.
type ConnectionDescriptor struct {
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	Host     string `json:"host"`
	Hostname string `json:"hostname"`
	Port     int    `json:"port"`

	// Pola bastionu (opcjonalne)
	BastionHost string `json:"bastionHost,omitempty"`
	BastionKey  string `json:"bastionKey,omitempty"`
	BastionPort int    `json:"bastionPort,omitempty"`

	Attachment *Attachment `json:"attachment,omitempty"`
}

// ParseDatabaseURL builds a descriptor from a postgres:// URL or keyword/value DSN.
func ParseDatabaseURL(databaseURL string) (ConnectionDescriptor, error) {
	if databaseURL == "" {
		return ConnectionDescriptor{}, apperror.New(apperror.ValidationError, "database URL is empty", nil)
	}

	cfg, err := pgconn.ParseConfig(databaseURL)
	if err != nil {
		return ConnectionDescriptor{}, apperror.New(apperror.ValidationError, "invalid database URL", err)
	}

	return ConnectionDescriptor{
		User:     cfg.User,
		Password: cfg.Password,
		Database: cfg.Database,
		Host:     cfg.Host,
		Hostname: cfg.Host,
		Port:     int(cfg.Port),
	}, nil
}

// UsesBastion reports whether traffic must be tunneled through the bastion.
func (d ConnectionDescriptor) UsesBastion() bool {
	return d.BastionHost != ""
}

// Validate checks the descriptor before anything is opened or spawned.
func (d ConnectionDescriptor) Validate() error {
	if d.UsesBastion() && d.BastionKey == "" {
		return apperror.New(apperror.ValidationError,
			fmt.Sprintf("bastion host %s is set but no bastion key was provided", d.BastionHost), nil)
	}
	if d.Port < 0 || d.Port > 65535 {
		return apperror.New(apperror.ValidationError, fmt.Sprintf("invalid port %d", d.Port), nil)
	}
	if d.BastionPort < 0 || d.BastionPort > 65535 {
		return apperror.New(apperror.ValidationError, fmt.Sprintf("invalid bastion port %d", d.BastionPort), nil)
	}
	return nil
}

// EffectivePort returns Port, or 5432 when unset.
func (d ConnectionDescriptor) EffectivePort() int {
	if d.Port == 0 {
		return DefaultPostgresPort
	}
	return d.Port
}

// EffectiveBastionPort returns BastionPort, or 22 when unset.
func (d ConnectionDescriptor) EffectiveBastionPort() int {
	if d.BastionPort == 0 {
		return DefaultBastionPort
	}
	return d.BastionPort
}

// WithTarget returns a copy of d that connects to host:port.
func (d ConnectionDescriptor) WithTarget(host string, port int) ConnectionDescriptor {
	d.Host = host
	d.Port = port
	return d
}

// AppName returns the attachment's app name, or "" without an attachment.
func (d ConnectionDescriptor) AppName() string {
	if d.Attachment == nil {
		return ""
	}
	return d.Attachment.App.Name
}

// AttachmentName returns the attachment name, or "" without an attachment.
func (d ConnectionDescriptor) AttachmentName() string {
	if d.Attachment == nil {
		return ""
	}
	return d.Attachment.Name
}

// Env returns the libpq environment for the descriptor's current target.
func (d ConnectionDescriptor) Env() []string {
	return []string{
		"PGUSER=" + d.User,
		"PGPASSWORD=" + d.Password,
		"PGDATABASE=" + d.Database,
		"PGHOST=" + d.Host,
		"PGPORT=" + strconv.Itoa(d.EffectivePort()),
	}
}

// String hides the password.
func (d ConnectionDescriptor) String() string {
	s := fmt.Sprintf("%s@%s:%d/%s", d.User, d.Host, d.EffectivePort(), d.Database)
	if d.UsesBastion() {
		s += fmt.Sprintf(" via %s:%d", d.BastionHost, d.EffectiveBastionPort())
	}
	return s
}
