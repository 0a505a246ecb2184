package server

import (
	"log"
	"strings"

	"github.com/soyeahso/orchestrator/internal/logging"
)

type errorLogWriter struct{ log *logging.Logger }

func (w errorLogWriter) Write(p []byte) (int, error) {
	w.log.Debug().Msg(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

// newErrorLog routes net/http's internal errors (TLS handshakes, broken
// connections) into the structured log at debug level.
func newErrorLog(l *logging.Logger) *log.Logger {
	return log.New(errorLogWriter{log: l}, "", 0)
}
