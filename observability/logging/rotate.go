package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileOptions describes an optional rotating log file. Zero-valued limits fall
// back to lumberjack's defaults.
type FileOptions struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// SetupWithFile behaves like Setup but additionally tees log output to a
// size-rotated file. When the path is empty it is identical to Setup.
func SetupWithFile(service, env string, opts FileOptions) *slog.Logger {
	path := strings.TrimSpace(opts.Path)
	if path == "" {
		return Setup(service, env)
	}
	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   true,
	}
	return setup(io.MultiWriter(os.Stdout, rotator), service, env)
}
