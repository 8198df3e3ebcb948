package psql

import (
	"bytes"
	"context"
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"herokuPlugins/internal/apperror"
	"herokuPlugins/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var db = models.ConnectionDescriptor{
	User:     "jeff",
	Password: "pass",
	Database: "mydb",
	Port:     5432,
	Host:     "localhost",
	Hostname: "localhost",
}

var bastionDB = models.ConnectionDescriptor{
	User:        "jeff",
	Password:    "pass",
	Database:    "mydb",
	Port:        5432,
	BastionHost: "bastion-host",
	BastionKey:  "super-private-key",
	Host:        "localhost",
	Hostname:    "localhost",
}

var attachedDB = models.ConnectionDescriptor{
	Attachment: &models.Attachment{
		App:  models.AttachmentApp{Name: "sleepy-hollow-9876"},
		Name: "DATABASE",
	},
}

// echoScript prints its argv and the connection environment, one item per line.
const echoScript = `
for a in "$@"; do printf 'ARG:%s\n' "$a"; done
printf 'ENV:PGUSER=%s\n' "$PGUSER"
printf 'ENV:PGPASSWORD=%s\n' "$PGPASSWORD"
printf 'ENV:PGDATABASE=%s\n' "$PGDATABASE"
printf 'ENV:PGHOST=%s\n' "$PGHOST"
printf 'ENV:PGPORT=%s\n' "$PGPORT"
printf 'ENV:PGAPPNAME=%s\n' "$PGAPPNAME"
`

type fakeTunnel struct {
	cfg    models.TunnelConfig
	mu     sync.Mutex
	closed bool
}

func (t *fakeTunnel) LocalHost() string { return t.cfg.LocalHost }
func (t *fakeTunnel) LocalPort() int    { return t.cfg.LocalPort }

func (t *fakeTunnel) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

func (t *fakeTunnel) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

type fakeOpener struct {
	mu      sync.Mutex
	calls   []models.TunnelConfig
	tunnels []*fakeTunnel
	err     error
}

func (o *fakeOpener) Open(_ context.Context, cfg models.TunnelConfig) (Tunnel, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, cfg)
	if o.err != nil {
		return nil, o.err
	}
	tunnel := &fakeTunnel{cfg: cfg}
	o.tunnels = append(o.tunnels, tunnel)
	return tunnel, nil
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fakes need /bin/sh")
	}
	path := filepath.Join(t.TempDir(), "psql")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0755))
	return path
}

type harness struct {
	exec   *Executor
	opener *fakeOpener
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

func newHarness(t *testing.T, binary, history string) *harness {
	t.Helper()
	h := &harness{
		opener: &fakeOpener{},
		stdout: &bytes.Buffer{},
		stderr: &bytes.Buffer{},
	}
	h.exec = NewExecutor(Config{
		Binary:  binary,
		History: history,
		Tunnels: h.opener,
		Rand:    rand.New(rand.NewPCG(1, 2)),
		Stdin:   strings.NewReader(""),
		Stdout:  h.stdout,
		Stderr:  h.stderr,
		Env:     []string{"PATH=" + os.Getenv("PATH")},
		Logger:  zap.NewNop(),
	})
	return h
}

// expectedLocalPort is the port the harness's seeded source yields first.
func expectedLocalPort() int {
	return models.LocalPortMin + rand.New(rand.NewPCG(1, 2)).IntN(models.LocalPortMax-models.LocalPortMin)
}

func parseOutput(out string) (args []string, env map[string]string) {
	env = map[string]string{}
	for _, line := range strings.Split(strings.TrimRight(out, "\n"), "\n") {
		switch {
		case strings.HasPrefix(line, "ARG:"):
			args = append(args, strings.TrimPrefix(line, "ARG:"))
		case strings.HasPrefix(line, "ENV:"):
			kv := strings.SplitN(strings.TrimPrefix(line, "ENV:"), "=", 2)
			env[kv[0]] = kv[1]
		}
	}
	return args, env
}

func TestExec_RunsPsql(t *testing.T) {
	h := newHarness(t, writeScript(t, echoScript), "")

	out, err := h.exec.Exec(context.Background(), db, "SELECT NOW();", 0)
	require.NoError(t, err)

	args, env := parseOutput(out)
	assert.Equal(t, []string{"-c", "SELECT NOW();", "--set", "sslmode=require"}, args)
	assert.Equal(t, map[string]string{
		"PGUSER":     "jeff",
		"PGPASSWORD": "pass",
		"PGDATABASE": "mydb",
		"PGHOST":     "localhost",
		"PGPORT":     "5432",
		"PGAPPNAME":  "psql non-interactive",
	}, env)
	assert.Empty(t, h.opener.calls, "direct databases must not open a tunnel")
}

func TestExec_OpensTunnelForBastionDatabases(t *testing.T) {
	h := newHarness(t, writeScript(t, echoScript), "")

	out, err := h.exec.Exec(context.Background(), bastionDB, "SELECT NOW();", time.Second)
	require.NoError(t, err)

	require.Len(t, h.opener.calls, 1)
	assert.Equal(t, models.TunnelConfig{
		Username:   "bastion",
		Host:       "bastion-host",
		Port:       22,
		PrivateKey: "super-private-key",
		DstHost:    "localhost",
		DstPort:    5432,
		LocalHost:  "127.0.0.1",
		LocalPort:  expectedLocalPort(),
	}, h.opener.calls[0])

	args, env := parseOutput(out)
	assert.Equal(t, []string{"-c", "SELECT NOW();", "--set", "sslmode=require"}, args)
	// psql was started against the tunnel, so the tunnel existed first.
	assert.Equal(t, "127.0.0.1", env["PGHOST"])
	assert.Equal(t, strconv.Itoa(expectedLocalPort()), env["PGPORT"])

	require.Len(t, h.opener.tunnels, 1)
	assert.True(t, h.opener.tunnels[0].isClosed())
	assert.Equal(t, "localhost", bastionDB.Host, "descriptor must not be mutated")
}

func TestExecFile_RunsPsql(t *testing.T) {
	h := newHarness(t, writeScript(t, echoScript), "")

	res, err := h.exec.Execute(context.Background(), db, ModeExecFile, "test.sql", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"-f", "test.sql", "--set", "sslmode=require"}, res.Args)
	assert.Empty(t, h.opener.calls)
}

func TestExecFile_OpensTunnelForBastionDatabases(t *testing.T) {
	h := newHarness(t, writeScript(t, echoScript), "")

	out, err := h.exec.ExecFile(context.Background(), bastionDB, "test.sql", time.Second)
	require.NoError(t, err)

	args, _ := parseOutput(out)
	assert.Equal(t, []string{"-f", "test.sql", "--set", "sslmode=require"}, args)

	require.Len(t, h.opener.calls, 1)
	assert.Equal(t, "bastion", h.opener.calls[0].Username)
	assert.Equal(t, "bastion-host", h.opener.calls[0].Host)
	assert.Equal(t, "super-private-key", h.opener.calls[0].PrivateKey)
	assert.Equal(t, "localhost", h.opener.calls[0].DstHost)
	assert.Equal(t, 5432, h.opener.calls[0].DstPort)
	assert.Equal(t, "127.0.0.1", h.opener.calls[0].LocalHost)
	assert.True(t, h.opener.tunnels[0].isClosed())
}

func TestInteractive_History(t *testing.T) {
	historyDir := t.TempDir()
	historyFile := filepath.Join(t.TempDir(), "psql_history")
	require.NoError(t, os.WriteFile(historyFile, nil, 0600))
	missing := filepath.Join("/", "path", "to", "history")

	prompt := []string{
		"--set", "PROMPT1=sleepy-hollow-9876::DATABASE%R%# ",
		"--set", "PROMPT2=sleepy-hollow-9876::DATABASE%R%# ",
	}

	tests := []struct {
		name       string
		history    string
		wantArgs   []string
		wantStderr string
	}{
		{
			name:     "unset",
			history:  "",
			wantArgs: append(append([]string{}, prompt...), "--set", "sslmode=require"),
		},
		{
			name:    "directory",
			history: historyDir,
			wantArgs: append(append([]string{}, prompt...),
				"--set", "HISTFILE="+filepath.Join(historyDir, "sleepy-hollow-9876"),
				"--set", "sslmode=require"),
		},
		{
			name:    "file",
			history: historyFile,
			wantArgs: append(append([]string{}, prompt...),
				"--set", "HISTFILE="+historyFile,
				"--set", "sslmode=require"),
		},
		{
			name:       "invalid path",
			history:    missing,
			wantArgs:   append(append([]string{}, prompt...), "--set", "sslmode=require"),
			wantStderr: "HEROKU_PSQL_HISTORY is set but is not a valid path (" + missing + ")\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, writeScript(t, echoScript), tt.history)

			code, err := h.exec.Interactive(context.Background(), attachedDB, 0)
			require.NoError(t, err)
			assert.Equal(t, 0, code)

			args, env := parseOutput(h.stdout.String())
			assert.Equal(t, tt.wantArgs, args)
			assert.Equal(t, "psql interactive", env["PGAPPNAME"])
			assert.Equal(t, tt.wantStderr, h.stderr.String())
		})
	}
}

func TestInteractive_ForwardsExitCode(t *testing.T) {
	h := newHarness(t, writeScript(t, "exit 7\n"), "")

	code, err := h.exec.Interactive(context.Background(), attachedDB, 0)
	require.NoError(t, err)
	assert.Equal(t, 7, code)
}

func TestExec_NonZeroExit(t *testing.T) {
	h := newHarness(t, writeScript(t, "echo 'FATAL: password authentication failed' >&2\nexit 3\n"), "")

	_, err := h.exec.Exec(context.Background(), bastionDB, "SELECT 1", 0)
	require.Error(t, err)

	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, apperror.ProcessExitError, appErr.Type)
	assert.Equal(t, 3, appErr.ExitCode)
	assert.Equal(t, "FATAL: password authentication failed", appErr.Stderr)
	assert.True(t, h.opener.tunnels[0].isClosed(), "tunnel must be closed after a failed run")
}

func TestExec_Timeout(t *testing.T) {
	h := newHarness(t, writeScript(t, "exec sleep 30\n"), "")

	start := time.Now()
	_, err := h.exec.Exec(context.Background(), bastionDB, "SELECT pg_sleep(30)", 100*time.Millisecond)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.TimeoutError))
	assert.False(t, apperror.Is(err, apperror.ProcessExitError))
	assert.Less(t, elapsed, 10*time.Second, "child must be killed, not waited for")
	assert.True(t, h.opener.tunnels[0].isClosed())
}

func TestExec_ContextCancelled(t *testing.T) {
	h := newHarness(t, writeScript(t, "exec sleep 30\n"), "")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := h.exec.Exec(ctx, db, "SELECT 1", 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.True(t, apperror.Is(err, apperror.CancelledError))
	assert.False(t, apperror.Is(err, apperror.TimeoutError))
}

func TestExec_OutputHeldOpenAfterCleanExit(t *testing.T) {
	// The background sleep inherits stdout and outlives psql.
	h := newHarness(t, writeScript(t, "sleep 5 &\necho hi\nexit 0\n"), "")
	h.exec.waitDelay = 100 * time.Millisecond

	out, err := h.exec.Exec(context.Background(), bastionDB, "SELECT 1", 0)
	require.NoError(t, err)
	assert.Equal(t, "hi\n", out)
	assert.True(t, h.opener.tunnels[0].isClosed())
}

func TestExec_OutputHeldOpenAfterFailure(t *testing.T) {
	h := newHarness(t, writeScript(t, "sleep 5 &\necho oops >&2\nexit 2\n"), "")
	h.exec.waitDelay = 100 * time.Millisecond

	_, err := h.exec.Exec(context.Background(), db, "SELECT 1", 0)
	require.Error(t, err)

	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, apperror.ProcessExitError, appErr.Type)
	assert.Equal(t, 2, appErr.ExitCode)
}

func TestInteractive_OutputHeldOpenAfterCleanExit(t *testing.T) {
	h := newHarness(t, writeScript(t, "sleep 5 &\nexit 0\n"), "")
	h.exec.waitDelay = 100 * time.Millisecond

	code, err := h.exec.Interactive(context.Background(), attachedDB, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, code)
}

func TestInteractive_Timeout(t *testing.T) {
	h := newHarness(t, writeScript(t, "exec sleep 30\n"), "")

	start := time.Now()
	_, err := h.exec.Interactive(context.Background(), attachedDB, 100*time.Millisecond)

	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.TimeoutError))
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestExec_SpawnError(t *testing.T) {
	h := newHarness(t, filepath.Join(t.TempDir(), "no-such-psql"), "")

	_, err := h.exec.Exec(context.Background(), bastionDB, "SELECT 1", 0)
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.SpawnError))
	assert.True(t, h.opener.tunnels[0].isClosed())
}

func TestExec_TunnelFailureSkipsSpawn(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "spawned")
	h := newHarness(t, writeScript(t, "touch '"+marker+"'\n"), "")
	h.opener.err = errors.New("connection refused")

	_, err := h.exec.Exec(context.Background(), bastionDB, "SELECT 1", 0)
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.TunnelError))
	assert.Len(t, h.opener.calls, 1, "no retry")

	_, statErr := os.Stat(marker)
	assert.True(t, os.IsNotExist(statErr), "psql must not start without a tunnel")
}

func TestExec_BastionWithoutKey(t *testing.T) {
	h := newHarness(t, writeScript(t, echoScript), "")
	noKey := bastionDB
	noKey.BastionKey = ""

	_, err := h.exec.Exec(context.Background(), noKey, "SELECT 1", 0)
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.ValidationError))
	assert.Empty(t, h.opener.calls)
}

func TestExec_RequiresInput(t *testing.T) {
	h := newHarness(t, writeScript(t, echoScript), "")

	_, err := h.exec.Exec(context.Background(), db, "", 0)
	assert.True(t, apperror.Is(err, apperror.ValidationError))
}

func TestLocalPort_InRange(t *testing.T) {
	e := NewExecutor(Config{})
	for i := 0; i < 1000; i++ {
		port := e.localPort()
		assert.GreaterOrEqual(t, port, models.LocalPortMin)
		assert.Less(t, port, models.LocalPortMax)
	}
}
