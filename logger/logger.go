// Package logger adapts zerolog to the crowdfund.Logger contract.
//
//	TRACE (-1) → DEBUG (0) → INFO (1) → WARN (2) → ERROR (3)
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	crowdfund "github.com/goliatone/go-crowdfund"
	"github.com/rs/zerolog"
)

var _ crowdfund.Logger = (*Logger)(nil)

// Options controls logger behaviour at initialisation time.
type Options struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	// Defaults to "info" when empty or unrecognised.
	Level string
	// Pretty enables human-friendly console output.
	Pretty bool
	// Output is the writer logs are sent to. Defaults to os.Stdout.
	Output io.Writer
}

// Logger implements crowdfund.Logger on top of zerolog.
type Logger struct {
	zl zerolog.Logger
}

// New builds a logger. Every call returns an independent instance.
func New(opts Options) *Logger {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	if opts.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	zl := zerolog.New(out).
		Level(parseLevel(opts.Level)).
		With().
		Timestamp().
		Logger()

	return &Logger{zl: zl}
}

// Named returns a child logger tagged with a component name.
func (l *Logger) Named(component string) *Logger {
	return &Logger{zl: l.zl.With().Str("component", component).Logger()}
}

func (l *Logger) Debug(msg string, args ...any) {
	l.zl.Debug().Fields(Fields(args)).Msg(msg)
}

func (l *Logger) Info(msg string, args ...any) {
	l.zl.Info().Fields(Fields(args)).Msg(msg)
}

func (l *Logger) Warn(msg string, args ...any) {
	l.zl.Warn().Fields(Fields(args)).Msg(msg)
}

func (l *Logger) Error(msg string, args ...any) {
	l.zl.Error().Fields(Fields(args)).Msg(msg)
}

// Fields turns key/value pairs into a field map. A trailing key without a
// value is logged under "extra".
func Fields(args []any) map[string]any {
	fields := make(map[string]any, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		if i+1 >= len(args) {
			fields["extra"] = args[i]
			break
		}
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		if err, ok := args[i+1].(error); ok {
			fields[key] = err.Error()
			continue
		}
		fields[key] = args[i+1]
	}
	return fields
}

// parseLevel converts a string to a zerolog.Level.
func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
