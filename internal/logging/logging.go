// Package logging provides component-scoped structured loggers. Structured
// records always go to stderr; human-facing status lines additionally
// route to stdout when it is a terminal, matching the §6 terminal
// detection rule, and are colorized via fatih/color unless NO_COLOR is set
// or stdout is not a TTY.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/fatih/color"
	"golang.org/x/term"
)

var (
	initOnce   sync.Once
	isTTY      bool
	noColor    bool
	baseLogger *slog.Logger
)

func initGlobals() {
	isTTY = term.IsTerminal(int(os.Stdout.Fd()))
	noColor = os.Getenv("NO_COLOR") != ""
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	baseLogger = slog.New(handler)
}

// Logger is a component-scoped wrapper around slog plus a colorized
// human-facing status writer.
type Logger struct {
	component string
	slog      *slog.Logger
}

// For returns a logger scoped to the named component, mirroring the
// teacher's NewComponentLogger convention.
func For(component string) *Logger {
	initOnce.Do(initGlobals)
	return &Logger{
		component: component,
		slog:      baseLogger.With(slog.String("component", component)),
	}
}

func (l *Logger) Info(msg string, args ...any)  { l.slog.Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.slog.Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.slog.Error(msg, args...) }
func (l *Logger) Debug(msg string, args ...any) { l.slog.Debug(msg, args...) }

// Status writes a human-facing banner line. It goes to stdout when stdout
// is a terminal (colorized per component), else it mirrors to stderr via
// slog only — keeping piped stdout free of log noise.
func (l *Logger) Status(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	l.slog.Info(line)
	if !isTTY {
		return
	}
	w := statusWriter()
	c := statusColor(l.component)
	fmt.Fprintln(w, c.Sprintf("[%s] %s", l.component, line))
}

func statusWriter() io.Writer {
	return os.Stdout
}

func statusColor(component string) *color.Color {
	if noColor {
		return color.New()
	}
	switch component {
	case "driver":
		return color.New(color.FgCyan)
	case "pipeline":
		return color.New(color.FgGreen)
	case "guard", "workspace":
		return color.New(color.FgYellow)
	case "agent", "supervisor":
		return color.New(color.FgMagenta)
	default:
		return color.New(color.FgWhite)
	}
}

// ContextKey is used to thread a request-scoped logger through context.
type contextKey struct{}

// WithContext attaches l to ctx.
func WithContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

// FromContext retrieves the logger attached by WithContext, or a default
// "app" logger if none was attached.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(contextKey{}).(*Logger); ok {
		return l
	}
	return For("app")
}
