package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
)

const serviceName = "virtual-mentor"

// PII attribute keys. Values under these keys are masked to their last four
// characters before they reach the handler.
var maskedKeys = map[string]struct{}{
	"phone":        {},
	"phone_number": {},
}

// New returns a JSON logger on stdout; local and dev run at debug level.
func New(appEnv string) *slog.Logger {
	return NewWithWriter(appEnv, os.Stdout)
}

func NewWithWriter(appEnv string, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if appEnv == "local" || appEnv == "dev" {
		level = slog.LevelDebug
	}
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: maskPII,
	})
	return slog.New(h).With("service", serviceName, "env", appEnv)
}

func maskPII(groups []string, a slog.Attr) slog.Attr {
	if _, ok := maskedKeys[a.Key]; !ok || a.Value.Kind() != slog.KindString {
		return a
	}
	return slog.String(a.Key, Mask(a.Value.String()))
}

// Mask keeps the last four characters of s, e.g. +15551234567 -> ********4567.
func Mask(s string) string {
	const keep = 4
	if len(s) <= keep {
		return s
	}
	b := make([]byte, len(s))
	for i := range b[:len(s)-keep] {
		b[i] = '*'
	}
	copy(b[len(s)-keep:], s[len(s)-keep:])
	return string(b)
}

type ctxKey struct{}

func With(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// From returns the request-scoped logger, or slog.Default outside a request.
func From(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}
