package psql

import (
	"os"
	"os/signal"

	"go.uber.org/zap"
	"golang.org/x/term"
)

// holdTerminal prepares the parent for an interactive child: interrupts are
// left to psql (it shares the terminal's process group) and, when stdin is a
// terminal, its state is restored afterwards in case psql is killed while
// the terminal is in raw mode. The returned func undoes both.
func holdTerminal(stdin any, logger *zap.Logger) func() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)

	stopSignals := func() {
		signal.Stop(sigChan)
	}

	file, ok := stdin.(*os.File)
	if !ok || !term.IsTerminal(int(file.Fd())) {
		return stopSignals
	}

	fd := int(file.Fd())
	state, err := term.GetState(fd)
	if err != nil {
		logger.Debug("Failed to get terminal state", zap.Error(err))
		return stopSignals
	}

	return func() {
		stopSignals()
		if err := term.Restore(fd, state); err != nil {
			logger.Warn("Failed to restore terminal state", zap.Error(err))
		}
	}
}
