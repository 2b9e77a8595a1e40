package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

var log *logrus.Logger

// Init configures the process-wide logger. When path is non-empty the log is
// written to that file; a TUI owns stdout, so the default config points here
// at a file under the state dir.
func Init(level, format, path string) error {
	log = logrus.New()

	switch level {
	case "debug":
		log.SetLevel(logrus.DebugLevel)
	case "info":
		log.SetLevel(logrus.InfoLevel)
	case "warn":
		log.SetLevel(logrus.WarnLevel)
	case "error":
		log.SetLevel(logrus.ErrorLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}

	switch format {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	var out io.Writer = os.Stderr
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		out = f
	}
	log.SetOutput(out)

	return nil
}

func WithField(key string, value any) *logrus.Entry {
	if log == nil {
		_ = Init("info", "text", "")
	}
	return log.WithField(key, value)
}

func Debugf(format string, args ...any) {
	if log != nil {
		log.Debugf(format, args...)
	}
}

func Infof(format string, args ...any) {
	if log != nil {
		log.Infof(format, args...)
	}
}

func Warnf(format string, args ...any) {
	if log != nil {
		log.Warnf(format, args...)
	}
}

func Errorf(format string, args ...any) {
	if log != nil {
		log.Errorf(format, args...)
	} else {
		fmt.Fprintf(os.Stderr, "ERROR: "+format+"\n", args...)
	}
}

func Fatalf(format string, args ...any) {
	if log != nil {
		log.Fatalf(format, args...)
	} else {
		fmt.Fprintf(os.Stderr, "FATAL: "+format+"\n", args...)
		os.Exit(1)
	}
}
