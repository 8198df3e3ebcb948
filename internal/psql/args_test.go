package psql

import (
	"testing"

	"herokuPlugins/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestExecArgs(t *testing.T) {
	assert.Equal(t, []string{"-c", "SELECT NOW();", "--set", "sslmode=require"}, ExecArgs("SELECT NOW();"))
}

func TestExecFileArgs(t *testing.T) {
	assert.Equal(t, []string{"-f", "test.sql", "--set", "sslmode=require"}, ExecFileArgs("test.sql"))
}

func TestInteractiveArgs(t *testing.T) {
	tests := []struct {
		name     string
		db       models.ConnectionDescriptor
		histFile string
		want     []string
	}{
		{
			name:     "with history",
			db:       attachedDB,
			histFile: "/tmp/hist",
			want: []string{
				"--set", "PROMPT1=sleepy-hollow-9876::DATABASE%R%# ",
				"--set", "PROMPT2=sleepy-hollow-9876::DATABASE%R%# ",
				"--set", "HISTFILE=/tmp/hist",
				"--set", "sslmode=require",
			},
		},
		{
			name: "without attachment",
			db:   db,
			want: []string{
				"--set", "PROMPT1=::%R%# ",
				"--set", "PROMPT2=::%R%# ",
				"--set", "sslmode=require",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InteractiveArgs(tt.db, tt.histFile))
		})
	}
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "exec", ModeExec.String())
	assert.Equal(t, "execFile", ModeExecFile.String())
	assert.Equal(t, "interactive", ModeInteractive.String())
	assert.Equal(t, "mode(9)", Mode(9).String())
}
