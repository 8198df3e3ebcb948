package main

import (
	"context"
	"fmt"
	"herokuPlugins/internal/apperror"
	"herokuPlugins/internal/models"
	"herokuPlugins/internal/psql"
	"herokuPlugins/internal/ssh"
	"herokuPlugins/internal/utils"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
)

type psqlFlags struct {
	command        string
	file           string
	app            string
	attachment     string
	bastionHost    string
	bastionPort    int
	bastionKeyFile string
	timeout        time.Duration
}

func runPsql(ctx context.Context, e *env, args []string) (int, error) {
	var f psqlFlags
	fs := newFlagSet("psql", e)
	fs.StringVarP(&f.command, "command", "c", "", "SQL command to run")
	fs.StringVarP(&f.file, "file", "f", "", "SQL file to run")
	fs.StringVarP(&f.app, "app", "a", "", "app the database is attached to, used for the prompt and history file")
	fs.StringVar(&f.attachment, "attachment", "DATABASE", "attachment name, used for the prompt")
	fs.StringVar(&f.bastionHost, "bastion-host", "", "bastion host to tunnel through")
	fs.IntVar(&f.bastionPort, "bastion-port", models.DefaultBastionPort, "bastion SSH port")
	fs.StringVar(&f.bastionKeyFile, "bastion-key-file", "", "private key for the bastion")
	fs.DurationVar(&f.timeout, "timeout", 0, "kill psql after this long, 0 means no limit")
	if err := fs.Parse(args); err != nil {
		return 1, err
	}

	if f.command != "" && f.file != "" {
		return 1, apperror.New(apperror.ValidationError, "--command and --file cannot be used together", nil)
	}
	if fs.NArg() > 1 {
		return 1, apperror.New(apperror.ValidationError, fmt.Sprintf("unexpected arguments: %s", strings.Join(fs.Args()[1:], " ")), nil)
	}

	databaseURL := e.cfg.Psql.DatabaseURL
	if fs.NArg() == 1 {
		databaseURL = fs.Arg(0)
	}
	db, err := buildDescriptor(databaseURL, f)
	if err != nil {
		return 1, err
	}

	executor := psql.NewExecutor(psql.Config{
		Binary:  e.cfg.Psql.Binary,
		History: e.cfg.Psql.History,
		Tunnels: psql.SSHTunnelOpener{Options: ssh.TunnelOptions{
			KnownHostsFile: e.cfg.Psql.KnownHostsFile,
			Logger:         e.logger,
		}},
		Stdin:  e.stdin,
		Stdout: e.stdout,
		Stderr: e.stderr,
		Logger: e.logger,
	})

	e.logger.Debug("Running psql", zap.Stringer("database", db))

	if f.command == "" && f.file == "" {
		return executor.Interactive(ctx, db, f.timeout)
	}

	ctx, cancel := signalContext(ctx)
	defer cancel()

	var out string
	if f.command != "" {
		out, err = executor.Exec(ctx, db, f.command, f.timeout)
	} else {
		out, err = executor.ExecFile(ctx, db, f.file, f.timeout)
	}
	if err != nil {
		return 1, err
	}
	fmt.Fprint(e.stdout, out)
	return 0, nil
}

// buildDescriptor combines the database URL with the bastion and attachment
// flags.
func buildDescriptor(databaseURL string, f psqlFlags) (models.ConnectionDescriptor, error) {
	if databaseURL == "" {
		return models.ConnectionDescriptor{}, apperror.New(apperror.ValidationError,
			"no database URL given, pass one as an argument or set DATABASE_URL", nil)
	}
	db, err := models.ParseDatabaseURL(databaseURL)
	if err != nil {
		return models.ConnectionDescriptor{}, err
	}

	if f.app != "" {
		db.Attachment = &models.Attachment{
			App:  models.AttachmentApp{Name: f.app},
			Name: f.attachment,
		}
	}

	if f.bastionHost != "" {
		db.BastionHost = f.bastionHost
		db.BastionPort = f.bastionPort
		if f.bastionKeyFile != "" {
			path, err := utils.ExpandHome(f.bastionKeyFile)
			if err != nil {
				return models.ConnectionDescriptor{}, apperror.New(apperror.ConfigError, "failed to resolve bastion key path", err)
			}
			key, err := os.ReadFile(path)
			if err != nil {
				return models.ConnectionDescriptor{}, apperror.New(apperror.ConfigError,
					fmt.Sprintf("failed to read bastion key %s", path), err)
			}
			db.BastionKey = string(key)
		}
	}

	return db, db.Validate()
}
