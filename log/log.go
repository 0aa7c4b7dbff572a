// Package log provides a thin structured-logging facade over zerolog, with
// printf-style and key-value pair call forms. The global logger is configured
// once via Init and used package-wide through top-level functions.
package log

import (
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

// Log levels accepted by Init.
const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
	LogLevelFatal = "fatal"
)

const (
	logTestWriterName = "logTest"
	timeFormat        = "2006-01-02T15:04:05.000-0700"
)

var (
	log zerolog.Logger
	// level keeps the level string passed to Init, for Level().
	level string
	// logTestWriter is the writer used when Init is called with the special
	// output "logTest". Used by tests and benchmarks.
	logTestWriter io.Writer = io.Discard

	// panicOnInvalidChars causes the logger to panic when a log line carries
	// invalid UTF-8, typically raw binary that should have been hex-encoded.
	// Enabled via LOG_PANIC_ON_INVALIDCHARS=true, only meant for testing.
	panicOnInvalidChars = os.Getenv("LOG_PANIC_ON_INVALIDCHARS") == "true"
)

// Logger returns the global logger.
func Logger() *zerolog.Logger { return &log }

// Level returns the level string the global logger was initialized with.
func Level() string { return level }

// invalidCharChecker panics on invalid UTF-8 when panicOnInvalidChars is set.
// It hooks every log event so mistakes like logging raw bytes surface early
// in tests instead of producing garbled production logs.
type invalidCharChecker struct{}

func (invalidCharChecker) Run(_ *zerolog.Event, _ zerolog.Level, message string) {
	if !utf8.ValidString(message) {
		panic(fmt.Sprintf("log line with invalid chars: %q", message))
	}
}

// Init initializes the global logger with the given level and output. The
// output can be "stdout", "stderr", "logTest" or a file path. If errorOutput
// is not nil, error and fatal messages are duplicated to it.
func Init(logLevel, output string, errorOutput io.Writer) {
	var out io.Writer
	switch output {
	case "stdout":
		out = os.Stdout
	case "stderr":
		out = os.Stderr
	case logTestWriterName:
		out = &syncLogTestWriter{}
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			panic(fmt.Sprintf("cannot create log output: %v", err))
		}
		out = f
	}
	out = zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: timeFormat,
		NoColor:    output != "stdout" && output != "stderr",
	}
	if errorOutput != nil {
		out = zerolog.MultiLevelWriter(out, errLevelWriter{errorOutput})
	}
	zerolog.TimeFieldFormat = timeFormat
	lvl, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		panic(fmt.Sprintf("invalid log level %q: %v", logLevel, err))
	}
	level = logLevel
	log = zerolog.New(out).Level(lvl).With().Timestamp().Caller().Logger()
	if panicOnInvalidChars {
		log = log.Hook(invalidCharChecker{})
	}
	log.Info().Msgf("logger construction succeeded at level %s with output %s", logLevel, output)
}

// syncLogTestWriter defers writes to the current logTestWriter, so tests can
// swap the destination after Init.
type syncLogTestWriter struct{}

func (syncLogTestWriter) Write(p []byte) (int, error) { return logTestWriter.Write(p) }

// errLevelWriter duplicates error-and-above messages to a secondary writer.
type errLevelWriter struct {
	w io.Writer
}

func (w errLevelWriter) Write(p []byte) (int, error) { return len(p), nil }

func (w errLevelWriter) WriteLevel(lvl zerolog.Level, p []byte) (int, error) {
	if lvl >= zerolog.ErrorLevel {
		return w.w.Write(p)
	}
	return len(p), nil
}

// withKeyValues attaches alternating key/value pairs to an event. Odd
// trailing arguments are dropped.
func withKeyValues(ev *zerolog.Event, keyvalues ...any) *zerolog.Event {
	for i := 0; i+1 < len(keyvalues); i += 2 {
		key, ok := keyvalues[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", keyvalues[i])
		}
		ev = ev.Interface(key, keyvalues[i+1])
	}
	return ev
}

// Debug logs the arguments at debug level.
func Debug(args ...any) { log.Debug().CallerSkipFrame(1).Msg(fmt.Sprint(args...)) }

// Debugf formats and logs at debug level.
func Debugf(format string, args ...any) {
	log.Debug().CallerSkipFrame(1).Msgf(format, args...)
}

// Debugw logs a message with alternating key/value pairs at debug level.
func Debugw(msg string, keyvalues ...any) {
	withKeyValues(log.Debug().CallerSkipFrame(1), keyvalues...).Msg(msg)
}

// Info logs the arguments at info level.
func Info(args ...any) { log.Info().CallerSkipFrame(1).Msg(fmt.Sprint(args...)) }

// Infof formats and logs at info level.
func Infof(format string, args ...any) {
	log.Info().CallerSkipFrame(1).Msgf(format, args...)
}

// Infow logs a message with alternating key/value pairs at info level.
func Infow(msg string, keyvalues ...any) {
	withKeyValues(log.Info().CallerSkipFrame(1), keyvalues...).Msg(msg)
}

// Warn logs the arguments at warn level.
func Warn(args ...any) { log.Warn().CallerSkipFrame(1).Msg(fmt.Sprint(args...)) }

// Warnf formats and logs at warn level.
func Warnf(format string, args ...any) {
	log.Warn().CallerSkipFrame(1).Msgf(format, args...)
}

// Warnw logs a message with alternating key/value pairs at warn level.
func Warnw(msg string, keyvalues ...any) {
	withKeyValues(log.Warn().CallerSkipFrame(1), keyvalues...).Msg(msg)
}

// Error logs the arguments at error level.
func Error(args ...any) { log.Error().CallerSkipFrame(1).Msg(fmt.Sprint(args...)) }

// Errorf formats and logs at error level.
func Errorf(format string, args ...any) {
	log.Error().CallerSkipFrame(1).Msgf(format, args...)
}

// Errorw logs an error with a message at error level.
func Errorw(err error, msg string) {
	log.Error().CallerSkipFrame(1).Err(err).Msg(msg)
}

// Fatalf formats and logs at fatal level, then exits.
func Fatalf(format string, args ...any) {
	log.Fatal().CallerSkipFrame(1).Msgf(format, args...)
}
