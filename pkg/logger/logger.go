// Package logger provides leveled, component-tagged logging for wahook.
//
// Components pass a short tag ("lifecycle", "identity", "forward") so log
// lines can be filtered per subsystem. Backed by log/slog.
package logger

import (
	"context"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync/atomic"
)

type Level = slog.Level

const (
	DEBUG Level = slog.LevelDebug
	INFO  Level = slog.LevelInfo
	WARN  Level = slog.LevelWarn
	ERROR Level = slog.LevelError
)

var (
	levelVar      slog.LevelVar
	defaultLogger atomic.Pointer[slog.Logger]
)

func init() {
	levelVar.Set(INFO)
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &levelVar})
	defaultLogger.Store(slog.New(h))
}

// SetLevel changes the minimum level for all subsequent log calls.
func SetLevel(level Level) {
	levelVar.Set(level)
}

// SetLevelFromString parses a level name ("debug", "info", "warn", "error").
// Unknown names fall back to INFO.
func SetLevelFromString(name string) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		SetLevel(DEBUG)
	case "warn", "warning":
		SetLevel(WARN)
	case "error":
		SetLevel(ERROR)
	default:
		SetLevel(INFO)
	}
}

// SetOutput replaces the backing handler, mainly for tests.
func SetOutput(l *slog.Logger) {
	defaultLogger.Store(l)
}

func DebugC(component, msg string) { logC(DEBUG, component, msg, nil) }
func InfoC(component, msg string)  { logC(INFO, component, msg, nil) }
func WarnC(component, msg string)  { logC(WARN, component, msg, nil) }
func ErrorC(component, msg string) { logC(ERROR, component, msg, nil) }

func DebugCF(component, msg string, fields map[string]any) { logC(DEBUG, component, msg, fields) }
func InfoCF(component, msg string, fields map[string]any)  { logC(INFO, component, msg, fields) }
func WarnCF(component, msg string, fields map[string]any)  { logC(WARN, component, msg, fields) }
func ErrorCF(component, msg string, fields map[string]any) { logC(ERROR, component, msg, fields) }

func logC(level Level, component, msg string, fields map[string]any) {
	attrs := make([]slog.Attr, 0, len(fields)+1)
	attrs = append(attrs, slog.String("component", component))

	// Sort keys so log lines are stable across runs.
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, fields[k]))
	}

	defaultLogger.Load().LogAttrs(context.Background(), level, msg, attrs...)
}
