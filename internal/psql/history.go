package psql

import (
	"fmt"
	"herokuPlugins/internal/apperror"
	"herokuPlugins/internal/utils"
	"os"
	"path/filepath"
)

// HistoryEnvVar overrides where interactive sessions keep their history.
const HistoryEnvVar = "HEROKU_PSQL_HISTORY"

// defaultHistoryName is used inside a history directory when the database
// has no attachment to name the file after.
const defaultHistoryName = "default"

// ResolveHistoryFile maps the HEROKU_PSQL_HISTORY value to a HISTFILE path.
//
// An empty value yields "" and no error. A directory yields <dir>/<app>, a
// file yields the file itself. A path that does not exist yields "" and an
// InvalidHistoryPathError, which callers report as a warning.
func ResolveHistoryFile(value, app string) (string, error) {
	if value == "" {
		return "", nil
	}

	path, err := utils.ExpandHome(value)
	if err != nil {
		path = value
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", apperror.New(apperror.InvalidHistoryPathError,
			fmt.Sprintf("%s is set but is not a valid path (%s)", HistoryEnvVar, value), nil)
	}

	if info.IsDir() {
		name := utils.SafeFileName(app)
		if name == "" {
			name = defaultHistoryName
		}
		return filepath.Join(path, name), nil
	}
	return path, nil
}
