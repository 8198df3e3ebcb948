package main

import (
	"context"
	"errors"
	"fmt"
	"herokuPlugins/internal/api"
	"herokuPlugins/internal/apperror"
	"herokuPlugins/internal/config"
	"herokuPlugins/internal/logging"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

const usage = `Usage: hkp <command> [flags]

Commands:
  psql [DATABASE_URL]                  open a psql shell or run SQL against a database
  dashboard                            display information about favorite apps
  enterprises:members:remove EMAIL     remove a member from an enterprise account

Run "hkp <command> --help" for the flags of a command.
`

// env carries what every command needs.
type env struct {
	cfg    *config.Config
	logger *zap.Logger
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

type command func(ctx context.Context, e *env, args []string) (int, error)

var commands = map[string]command{
	"psql":                       runPsql,
	"dashboard":                  runDashboard,
	"enterprises:members:remove": runMembersRemove,
	"enterprises:members-remove": runMembersRemove,
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		fmt.Fprint(stdout, usage)
		return 0
	}

	name, rest := args[0], args[1:]
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stderr, "error: unknown command %q\n\n%s", name, usage)
		return 1
	}

	configPath, rest := extractConfigFlag(rest)
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	logger, err := logging.New(cfg.Debug)
	if err != nil {
		fmt.Fprintf(stderr, "error: failed to create logger: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	e := &env{cfg: cfg, logger: logger.Named(name), stdin: stdin, stdout: stdout, stderr: stderr}

	code, err := cmd(context.Background(), e, rest)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "error: %v\n", err)
		if code == 0 {
			code = 1
		}
	}
	return code
}

// extractConfigFlag pulls --config out of args so Load can run before the
// command parses its own flags.
func extractConfigFlag(args []string) (string, []string) {
	var path string
	rest := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--config" && i+1 < len(args):
			path = args[i+1]
			i++
		case strings.HasPrefix(arg, "--config="):
			path = strings.TrimPrefix(arg, "--config=")
		default:
			rest = append(rest, arg)
		}
	}
	return path, rest
}

func newFlagSet(name string, e *env) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(e.stderr)
	return fs
}

// signalContext cancels on Ctrl-C. Interactive psql must not use it, the
// child handles its own interrupts.
func signalContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt)
}

func newAPIClient(e *env) (*api.Client, error) {
	if _, err := e.cfg.RequireAPIKey(); err != nil {
		return nil, apperror.New(apperror.ConfigError, err.Error(), nil)
	}
	return api.NewClient(e.cfg, e.logger), nil
}
