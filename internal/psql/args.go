package psql

import (
	"fmt"
	"herokuPlugins/internal/models"
)

// Mode selects how psql is run.
type Mode int

const (
	// ModeExec runs one statement and captures the output.
	ModeExec Mode = iota
	// ModeExecFile runs a .sql file and captures the output.
	ModeExecFile
	// ModeInteractive attaches psql to the caller's terminal.
	ModeInteractive
)

func (m Mode) String() string {
	switch m {
	case ModeExec:
		return "exec"
	case ModeExecFile:
		return "execFile"
	case ModeInteractive:
		return "interactive"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

const sslModeRequire = "sslmode=require"

// Prompt returns the psql prompt for the descriptor's attachment.
func Prompt(db models.ConnectionDescriptor) string {
	return fmt.Sprintf("%s::%s%%R%%# ", db.AppName(), db.AttachmentName())
}

// ExecArgs returns the argv for running a single statement.
func ExecArgs(sql string) []string {
	return []string{"-c", sql, "--set", sslModeRequire}
}

// ExecFileArgs returns the argv for running a file.
func ExecFileArgs(path string) []string {
	return []string{"-f", path, "--set", sslModeRequire}
}

// InteractiveArgs returns the argv for an interactive session. histFile is
// omitted when empty.
func InteractiveArgs(db models.ConnectionDescriptor, histFile string) []string {
	prompt := Prompt(db)
	args := []string{
		"--set", "PROMPT1=" + prompt,
		"--set", "PROMPT2=" + prompt,
	}
	if histFile != "" {
		args = append(args, "--set", "HISTFILE="+histFile)
	}
	return append(args, "--set", sslModeRequire)
}

// appName is what the server sees in pg_stat_activity.
func appName(mode Mode) string {
	if mode == ModeInteractive {
		return "psql interactive"
	}
	return "psql non-interactive"
}
