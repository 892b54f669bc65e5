package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"gopkg.in/natefinch/lumberjack.v2"
)

type ctxKey struct{}

const ginKey = "logger"

var (
	once sync.Once
	base *slog.Logger
)

// secretAttrs never reach the log sink, whatever logs them.
var secretAttrs = map[string]struct{}{
	"password":   {},
	"salt_key":   {},
	"jwt_secret": {},
	"checksum":   {},
}

// Init builds the process logger once: JSON to stdout and to a rotated file.
// An unparsable level falls back to info.
func Init(component, filePath, level string) *slog.Logger {
	once.Do(func() {
		out := io.Writer(os.Stdout)
		if filePath != "" {
			_ = os.MkdirAll(filepath.Dir(filePath), 0o755)
			out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
				Filename:   filePath,
				MaxSize:    50, // MB
				MaxBackups: 5,
				MaxAge:     14, // days
				Compress:   true,
			})
		}

		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
			lvl = slog.LevelInfo
		}
		h := slog.NewJSONHandler(out, &slog.HandlerOptions{
			Level:       lvl,
			ReplaceAttr: redactAttr,
		})
		base = slog.New(h).With("component", component)
	})
	return base
}

func redactAttr(_ []string, a slog.Attr) slog.Attr {
	if _, ok := secretAttrs[strings.ToLower(a.Key)]; ok {
		return slog.String(a.Key, "***")
	}
	return a
}

// Base returns the process logger, initialising a stdout-only one if main never did.
func Base() *slog.Logger {
	if base == nil {
		return Init("app", "", "info")
	}
	return base
}

func WithCtx(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// Enrich returns ctx carrying the current logger extended with args.
func Enrich(ctx context.Context, args ...any) context.Context {
	return WithCtx(ctx, FromCtx(ctx).With(args...))
}

// FromCtx fetches a logger from ctx or falls back to the global one.
func FromCtx(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return Base()
}

// With stores the request logger on the gin context.
func With(c *gin.Context, l *slog.Logger) {
	c.Set(ginKey, l)
}

func From(c *gin.Context) *slog.Logger {
	if v, ok := c.Get(ginKey); ok {
		if l, ok := v.(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return Base()
}
