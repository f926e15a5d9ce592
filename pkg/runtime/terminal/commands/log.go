package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/de-tools/commerce-atlas/pkg/services/config"
	"github.com/rs/zerolog"
)

// newLogger writes to the console and, when a log dir is set, to
// <dir>/<command>.log which is truncated on every run.
func newLogger(cfg config.Log, command string, console io.Writer) (zerolog.Logger, func() error, error) {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		l, err := zerolog.ParseLevel(cfg.Level)
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		level = l
	}

	consoleWriter := zerolog.ConsoleWriter{Out: console, TimeFormat: time.RFC3339}
	if cfg.Dir == "" {
		logger := zerolog.New(consoleWriter).Level(level).With().Timestamp().Logger()
		return logger, func() error { return nil }, nil
	}

	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(cfg.Dir, command+".log"), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("open log file: %w", err)
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(consoleWriter, f)).
		Level(level).
		With().Timestamp().
		Logger()
	return logger, f.Close, nil
}
