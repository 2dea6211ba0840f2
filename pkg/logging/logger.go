// Package logging provides structured logging for the flight simulator and
// its tools. It wraps slog with correlation IDs, attribute redaction and an
// optional rotating log file.
package logging

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Environment variables read by NewLogger
const (
	EnvLogLevel = "FLIGHT_LOG_LEVEL"
	EnvLogFile  = "FLIGHT_LOG_FILE"
)

// Logger wraps slog.Logger to provide application-specific logging functionality
// with correlation ID support and security-conscious formatting.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger instance with JSON output and configurable level.
// The log level can be controlled via the FLIGHT_LOG_LEVEL environment variable.
// Valid levels: DEBUG, INFO, WARN, ERROR. Defaults to INFO. When FLIGHT_LOG_FILE
// is set, output goes to that file and is rotated instead of stdout.
func NewLogger() *Logger {
	var out io.Writer = os.Stdout
	if path := os.Getenv(EnvLogFile); path != "" {
		out = NewRotatingWriter(path)
	}
	return NewLoggerWithWriter(out, LevelFromEnv())
}

// NewLoggerWithWriter creates a JSON Logger writing to w at the given level
func NewLoggerWithWriter(w io.Writer, level slog.Level) *Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: sanitizeAttributes,
	})
	return &Logger{slog.New(handler)}
}

// NewRotatingWriter returns a size-rotated log file writer
func NewRotatingWriter(path string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    50, // megabytes
		MaxBackups: 5,
		MaxAge:     14, // days
		Compress:   true,
	}
}

// With returns a Logger that adds args to every record
func (l *Logger) With(args ...any) *Logger {
	return &Logger{l.Logger.With(args...)}
}

// LogWithContext logs msg at level, adding the correlation ID and any
// attributes carried by ctx.
func (l *Logger) LogWithContext(ctx context.Context, level slog.Level, msg string, args ...any) {
	if lc, ok := ctx.Value(logContextKey{}).(*logContext); ok {
		args = append(args, lc.attrs...)
		if lc.correlationID != "" {
			args = append(args, "correlation_id", lc.correlationID)
		}
	}
	l.Log(ctx, level, msg, args...)
}

func (l *Logger) Info(ctx context.Context, msg string, args ...any) {
	l.LogWithContext(ctx, slog.LevelInfo, msg, args...)
}

func (l *Logger) Warn(ctx context.Context, msg string, args ...any) {
	l.LogWithContext(ctx, slog.LevelWarn, msg, args...)
}

// Error logs msg with err under the "error" key.
func (l *Logger) Error(ctx context.Context, msg string, err error, args ...any) {
	if err != nil {
		args = append(args, "error", err.Error())
	}
	l.LogWithContext(ctx, slog.LevelError, msg, args...)
}

func (l *Logger) Debug(ctx context.Context, msg string, args ...any) {
	l.LogWithContext(ctx, slog.LevelDebug, msg, args...)
}

type logContextKey struct{}

// logContext is immutable once stored; derivations copy it.
type logContext struct {
	correlationID string
	attrs         []any
}

func fromContext(ctx context.Context) logContext {
	if lc, ok := ctx.Value(logContextKey{}).(*logContext); ok {
		return *lc
	}
	return logContext{}
}

// WithCorrelationID returns ctx carrying correlationID, generating one when
// it is empty.
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	if correlationID == "" {
		correlationID = GenerateCorrelationID()
	}
	lc := fromContext(ctx)
	lc.correlationID = correlationID
	return context.WithValue(ctx, logContextKey{}, &lc)
}

// WithAttrs returns ctx carrying key/value pairs that every record logged
// with it will include, after the call site's own.
func WithAttrs(ctx context.Context, args ...any) context.Context {
	if len(args) == 0 {
		return ctx
	}
	lc := fromContext(ctx)
	attrs := make([]any, 0, len(lc.attrs)+len(args))
	attrs = append(attrs, lc.attrs...)
	lc.attrs = append(attrs, args...)
	return context.WithValue(ctx, logContextKey{}, &lc)
}

// GetCorrelationID returns the correlation ID in ctx, or "".
func GetCorrelationID(ctx context.Context) string {
	return fromContext(ctx).correlationID
}

// GenerateCorrelationID returns 16 random hex characters.
func GenerateCorrelationID() string {
	bytes := make([]byte, 8)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

// LevelFromEnv returns the level named by FLIGHT_LOG_LEVEL, INFO by default
func LevelFromEnv() slog.Level {
	levelStr := strings.ToUpper(os.Getenv(EnvLogLevel))
	switch levelStr {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// sanitizeAttributes masks credential-like keys and renders non-finite floats
// as strings, which JSON cannot encode.
func sanitizeAttributes(groups []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindFloat64 {
		if f := a.Value.Float64(); math.IsNaN(f) || math.IsInf(f, 0) {
			return slog.String(a.Key, strconv.FormatFloat(f, 'g', -1, 64))
		}
	}

	key := strings.ToLower(a.Key)
	for _, sensitive := range sensitiveKeys {
		if strings.Contains(key, sensitive) {
			return slog.String(a.Key, "[REDACTED]")
		}
	}
	return a
}

// sensitiveKeys are matched as substrings of lower-cased attribute keys
var sensitiveKeys = []string{
	"password", "passwd", "pwd",
	"token", "authorization", "api_key", "apikey",
	"secret", "private", "cookie",
}

// WrapError prefixes err with a formatted context, keeping it unwrappable.
func WrapError(err error, context string, args ...any) error {
	if err == nil {
		return nil
	}
	if len(args) > 0 {
		context = fmt.Sprintf(context, args...)
	}
	return fmt.Errorf("%s: %w", context, err)
}
