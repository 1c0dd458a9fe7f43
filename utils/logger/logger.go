package logger

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/paycrest/e2e/config"
	"github.com/sirupsen/logrus"
)

var logger = logrus.New()

// sentryEnabled is true when warnings and errors are also shipped to Sentry
var sentryEnabled bool

func init() {
	Init(*config.ServerConfig(), os.Stderr)
}

// Init (re)configures the logger. Sentry is only wired for shared CI environments,
// local runs write to the given output.
func Init(cfg config.ServerConfiguration, output io.Writer) {
	logger.Formatter = &formatter{}
	logger.Out = output

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.Level = level

	sentryEnabled = false
	if (cfg.Environment == "ci" || cfg.Environment == "staging") && cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.Environment,
			AttachStacktrace: true,
		})
		if err != nil {
			logger.Errorf("Sentry initialization failed: %v", err)
		} else {
			sentryEnabled = true
		}
	}
}

// SetLogLevel sets the log level for the logger.
func SetLogLevel(level logrus.Level) {
	logger.Level = level
}

// SetOutput redirects log output, used by tests to capture lines.
func SetOutput(w io.Writer) {
	logger.Out = w
}

// Fields type, used to pass to `WithFields`.
type Fields logrus.Fields

// Entry is a log line under construction carrying fields
type Entry struct {
	fields Fields
}

// WithFields starts a log line with structured context
func WithFields(fields Fields) *Entry {
	return &Entry{fields: fields}
}

// Debugf logs a message at level Debug
func (e *Entry) Debugf(format string, args ...interface{}) {
	logger.WithFields(logrus.Fields(e.fields)).Debugf(format, args...)
}

// Infof logs a message at level Info
func (e *Entry) Infof(format string, args ...interface{}) {
	logger.WithFields(logrus.Fields(e.fields)).Infof(format, args...)
}

// Warnf logs a message at level Warn and reports it to Sentry
func (e *Entry) Warnf(format string, args ...interface{}) {
	if logger.Level < logrus.WarnLevel {
		return
	}
	capture(sentry.LevelWarning, fmt.Sprintf(format, args...), e.fields)
	logger.WithFields(logrus.Fields(e.fields)).Warnf(format, args...)
}

// Errorf logs a message at level Error and reports it to Sentry
func (e *Entry) Errorf(format string, args ...interface{}) {
	if logger.Level < logrus.ErrorLevel {
		return
	}
	capture(sentry.LevelError, fmt.Sprintf(format, args...), e.fields)
	logger.WithFields(logrus.Fields(e.fields)).Errorf(format, args...)
}

// Fatalf logs a message at level Fatal and exits
func (e *Entry) Fatalf(format string, args ...interface{}) {
	capture(sentry.LevelFatal, fmt.Sprintf(format, args...), e.fields)
	if sentryEnabled {
		sentry.Flush(2 * time.Second)
	}
	logger.WithFields(logrus.Fields(e.fields)).Fatalf(format, args...)
}

// Debugf logs a message at level Debug
func Debugf(format string, args ...interface{}) {
	WithFields(nil).Debugf(format, args...)
}

// Infof logs a message at level Info
func Infof(format string, args ...interface{}) {
	WithFields(nil).Infof(format, args...)
}

// Warnf logs a message at level Warn
func Warnf(format string, args ...interface{}) {
	WithFields(nil).Warnf(format, args...)
}

// Errorf logs a message at level Error
func Errorf(format string, args ...interface{}) {
	WithFields(nil).Errorf(format, args...)
}

// Fatalf logs a message at level Fatal
func Fatalf(format string, args ...interface{}) {
	WithFields(nil).Fatalf(format, args...)
}

func capture(level sentry.Level, msg string, fields Fields) {
	if !sentryEnabled {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(level)
		for key, value := range fields {
			switch v := value.(type) {
			case string:
				scope.SetTag(key, v)
			default:
				scope.SetExtra(key, value)
			}
		}
		sentry.CaptureMessage(msg)
	})
}

// Formatter implements logrus.Formatter interface
type formatter struct {
	prefix string
}

// Format building log message
func (f *formatter) Format(entry *logrus.Entry) ([]byte, error) {
	var sb bytes.Buffer
	sb.WriteString(strings.ToUpper(entry.Level.String()))
	sb.WriteString(" ")
	sb.WriteString(entry.Time.Format(time.RFC3339))
	sb.WriteString(" ")
	sb.WriteString(f.prefix)
	sb.WriteString(entry.Message)

	if len(entry.Data) > 0 {
		keys := make([]string, 0, len(entry.Data))
		for key := range entry.Data {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		sb.WriteString(" [")
		for _, key := range keys {
			sb.WriteString(fmt.Sprintf("%s=%v ", key, entry.Data[key]))
		}
		sb.WriteString("]")
	}
	sb.WriteString("\n")

	return sb.Bytes(), nil
}
