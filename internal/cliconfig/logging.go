package cliconfig

import (
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/bft-labs/perfship/pkg/log"
)

// Logger returns a console logger on stderr at the given level. Unknown
// levels fall back to info.
func Logger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return log.NewConsoleLogger(os.Stderr, lvl)
}
