// Package logging configures the process-wide zerolog logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls where and how much the bot logs.
type Options struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
}

// Setup replaces the global logger. Console output always goes to stderr;
// when File is set a rotating JSON log is written alongside it.
func Setup(opts Options) error {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return err
	}

	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(level)

	var w io.Writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	if opts.File != "" {
		w = zerolog.MultiLevelWriter(w, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    orDefault(opts.MaxSizeMB, 10),
			MaxBackups: orDefault(opts.MaxBackups, 3),
			Compress:   true,
		})
	}

	log.Logger = zerolog.New(w).With().Timestamp().Logger()
	return nil
}

// ParseLevel accepts zerolog level names; empty means info.
func ParseLevel(s string) (zerolog.Level, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(s)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

// Module returns a child of the global logger tagged with a module name.
func Module(name string) zerolog.Logger {
	return log.With().Str("module", name).Logger()
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
