// Package psql runs the local psql client against a remote database,
// tunneling through a bastion host when the database requires it.
//
// Every call owns its tunnel and child process. Both are released before the
// call returns, in reverse order of acquisition: the child is reaped first,
// then the tunnel is closed.
package psql

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"herokuPlugins/internal/apperror"
	"herokuPlugins/internal/logging"
	"herokuPlugins/internal/models"
	"io"
	"math/rand/v2"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
)

const (
	DefaultBinary = "psql"

	// defaultWaitDelay bounds how long Wait keeps copying output after the
	// child exits or is killed.
	defaultWaitDelay = 2 * time.Second
)

// Result is what a finished psql invocation produced.
type Result struct {
	// Output is the captured stdout. Empty in interactive mode.
	Output string
	// ExitCode is the child's exit status. Captured modes only succeed on 0.
	ExitCode int
	// Args is the argv the child was started with, without the binary.
	Args []string
}

// Config configures an Executor. Zero values pick sensible defaults.
type Config struct {
	Binary string
	// History is the HEROKU_PSQL_HISTORY value.
	History string
	Tunnels TunnelOpener
	// Rand picks the local tunnel port. Nil uses the global source.
	Rand   *rand.Rand
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	// Env is the base environment of the child. Nil uses os.Environ().
	Env    []string
	Logger *zap.Logger
}

// Executor runs psql. It is safe for concurrent use.
type Executor struct {
	binary  string
	history string
	tunnels TunnelOpener
	stdin   io.Reader
	stdout  io.Writer
	stderr  io.Writer
	env     []string
	logger  *zap.Logger

	waitDelay time.Duration

	randMu sync.Mutex
	rand   *rand.Rand
}

// NewExecutor creates an Executor from cfg.
func NewExecutor(cfg Config) *Executor {
	e := &Executor{
		binary:  cfg.Binary,
		history: cfg.History,
		tunnels: cfg.Tunnels,
		stdin:   cfg.Stdin,
		stdout:  cfg.Stdout,
		stderr:  cfg.Stderr,
		env:     cfg.Env,
		logger:  logging.OrNop(cfg.Logger),
		rand:    cfg.Rand,

		waitDelay: defaultWaitDelay,
	}
	if e.binary == "" {
		e.binary = DefaultBinary
	}
	if e.tunnels == nil {
		e.tunnels = SSHTunnelOpener{}
	}
	if e.stdin == nil {
		e.stdin = os.Stdin
	}
	if e.stdout == nil {
		e.stdout = os.Stdout
	}
	if e.stderr == nil {
		e.stderr = os.Stderr
	}
	return e
}

// Exec runs a single statement and returns its output.
func (e *Executor) Exec(ctx context.Context, db models.ConnectionDescriptor, sql string, timeout time.Duration) (string, error) {
	res, err := e.Execute(ctx, db, ModeExec, sql, timeout)
	if err != nil {
		return "", err
	}
	return res.Output, nil
}

// ExecFile runs the statements in path and returns their output.
func (e *Executor) ExecFile(ctx context.Context, db models.ConnectionDescriptor, path string, timeout time.Duration) (string, error) {
	res, err := e.Execute(ctx, db, ModeExecFile, path, timeout)
	if err != nil {
		return "", err
	}
	return res.Output, nil
}

// Interactive attaches psql to the terminal and returns its exit code. A
// positive timeout kills the session once it expires.
func (e *Executor) Interactive(ctx context.Context, db models.ConnectionDescriptor, timeout time.Duration) (int, error) {
	res, err := e.Execute(ctx, db, ModeInteractive, "", timeout)
	if err != nil {
		return 0, err
	}
	return res.ExitCode, nil
}

// Execute opens the tunnel if db needs one, runs psql in the given mode and
// cleans up. input is the SQL for ModeExec and the file path for
// ModeExecFile; it is ignored in ModeInteractive. A positive timeout starts
// once the child is running.
func (e *Executor) Execute(ctx context.Context, db models.ConnectionDescriptor, mode Mode, input string, timeout time.Duration) (*Result, error) {
	if err := db.Validate(); err != nil {
		return nil, err
	}
	if mode != ModeInteractive && input == "" {
		return nil, apperror.New(apperror.ValidationError, fmt.Sprintf("%s requires input", mode), nil)
	}

	logger := e.logger.With(zap.Stringer("mode", mode), zap.Stringer("database", db))

	target := db
	if db.UsesBastion() {
		cfg := models.NewTunnelConfig(db, e.localPort())
		logger.Debug("Opening bastion tunnel", zap.Stringer("tunnel", cfg))

		tunnel, err := e.tunnels.Open(ctx, cfg)
		if err != nil {
			if apperror.Is(err, apperror.TunnelError) {
				return nil, err
			}
			return nil, apperror.New(apperror.TunnelError, "failed to open bastion tunnel", err)
		}
		defer func() {
			if cerr := tunnel.Close(); cerr != nil {
				logger.Warn("Failed to close bastion tunnel", zap.Error(cerr))
			}
		}()

		target = db.WithTarget(tunnel.LocalHost(), tunnel.LocalPort())
	}

	args := e.args(db, mode, input)

	cmd := exec.Command(e.binary, args...)
	cmd.Env = e.childEnv(target, mode)
	cmd.WaitDelay = e.waitDelay

	logger.Debug("Starting psql", zap.String("binary", e.binary), zap.Int("argc", len(args)))

	var (
		res *Result
		err error
	)
	if mode == ModeInteractive {
		res, err = e.runInteractive(ctx, cmd, timeout)
	} else {
		res, err = e.runCaptured(ctx, cmd, timeout)
	}
	if err != nil {
		logger.Debug("psql failed", zap.Error(err))
		return nil, err
	}
	res.Args = args
	return res, nil
}

func (e *Executor) args(db models.ConnectionDescriptor, mode Mode, input string) []string {
	switch mode {
	case ModeExec:
		return ExecArgs(input)
	case ModeExecFile:
		return ExecFileArgs(input)
	default:
		histFile, err := ResolveHistoryFile(e.history, db.AppName())
		if err != nil {
			fmt.Fprintln(e.stderr, err.Error())
		}
		return InteractiveArgs(db, histFile)
	}
}

func (e *Executor) childEnv(target models.ConnectionDescriptor, mode Mode) []string {
	base := e.env
	if base == nil {
		base = os.Environ()
	}
	env := make([]string, 0, len(base)+6)
	env = append(env, base...)
	env = append(env, target.Env()...)
	return append(env, "PGAPPNAME="+appName(mode))
}

func (e *Executor) localPort() int {
	span := models.LocalPortMax - models.LocalPortMin
	if e.rand == nil {
		return models.LocalPortMin + rand.IntN(span)
	}
	e.randMu.Lock()
	defer e.randMu.Unlock()
	return models.LocalPortMin + e.rand.IntN(span)
}

func (e *Executor) runCaptured(ctx context.Context, cmd *exec.Cmd, timeout time.Duration) (*Result, error) {
	var stdout, stderr bytes.Buffer
	cmd.Stdin = nil
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := e.wait(ctx, cmd, timeout); err != nil && !exitedCleanly(cmd, err) {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, apperror.NewProcessExit(e.binary, exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return nil, e.typed(err)
	}

	out := stdout.String()
	if !utf8.ValidString(out) {
		out = strings.ToValidUTF8(out, "\uFFFD")
	}
	return &Result{Output: out}, nil
}

func (e *Executor) runInteractive(ctx context.Context, cmd *exec.Cmd, timeout time.Duration) (*Result, error) {
	cmd.Stdin = e.stdin
	cmd.Stdout = e.stdout
	cmd.Stderr = e.stderr

	restore := holdTerminal(e.stdin, e.logger)
	defer restore()

	if err := e.wait(ctx, cmd, timeout); err != nil && !exitedCleanly(cmd, err) {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &Result{ExitCode: exitErr.ExitCode()}, nil
		}
		return nil, e.typed(err)
	}
	return &Result{}, nil
}

// exitedCleanly reports whether psql itself exited 0 and err only says that
// something it left behind still held the output pipes after waitDelay.
func exitedCleanly(cmd *exec.Cmd, err error) bool {
	return errors.Is(err, exec.ErrWaitDelay) && cmd.ProcessState != nil && cmd.ProcessState.Success()
}

// typed keeps AppErrors and reports anything else as a SpawnError.
func (e *Executor) typed(err error) error {
	if _, ok := apperror.As(err); ok {
		return err
	}
	return apperror.New(apperror.SpawnError, fmt.Sprintf("%s failed", e.binary), err)
}

// wait starts cmd and blocks until it exits, the timeout fires or ctx is
// done. In the latter two cases the child is killed and reaped before
// returning.
func (e *Executor) wait(ctx context.Context, cmd *exec.Cmd, timeout time.Duration) error {
	if err := cmd.Start(); err != nil {
		return apperror.New(apperror.SpawnError,
			fmt.Sprintf("failed to start %s, is it installed and on your PATH?", e.binary), err)
	}

	exited := make(chan error, 1)
	go func() {
		exited <- cmd.Wait()
	}()

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case err := <-exited:
		return err
	case <-expired:
		e.kill(cmd)
		<-exited
		return apperror.New(apperror.TimeoutError,
			fmt.Sprintf("%s did not finish within %s", e.binary, timeout), nil)
	case <-ctx.Done():
		e.kill(cmd)
		<-exited
		return apperror.New(apperror.CancelledError, fmt.Sprintf("%s interrupted", e.binary), ctx.Err())
	}
}

func (e *Executor) kill(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		e.logger.Warn("Failed to kill psql", zap.Int("pid", cmd.Process.Pid), zap.Error(err))
	}
}
