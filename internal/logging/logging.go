package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"visa-notifier/internal/config"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New creates a zerolog logger configured from cfg. Output goes to stdout and,
// when cfg.Dir is set, to a rotating JSON file in that directory.
// The returned closer flushes the file sink.
func New(cfg config.LogConfig) (zerolog.Logger, io.Closer, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var stdout io.Writer = os.Stdout
	if strings.ToLower(cfg.Format) != "json" {
		stdout = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	if cfg.Dir == "" {
		return zerolog.New(stdout).Level(level).With().Timestamp().Logger(), nopCloser{}, nil
	}

	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return zerolog.Nop(), nil, err
	}
	file := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.Dir, "visa-notifier.log"),
		MaxSize:    10, // MB
		MaxBackups: 5,
		MaxAge:     14, // days
		Compress:   true,
	}
	out := zerolog.MultiLevelWriter(stdout, file)
	return zerolog.New(out).Level(level).With().Timestamp().Logger(), file, nil
}

// Redact hides secrets in logs; keeps a short preview.
func Redact(s string) string {
	if len(s) <= 10 {
		return "***"
	}
	return s[:4] + "..." + s[len(s)-2:]
}
