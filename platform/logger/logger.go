// Package logger provides structured logging infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// Context key types for storing values in context
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"
	// SessionIDKey is the context key for the inspection session ID
	SessionIDKey contextKey = "session_id"
)

// Logger wraps slog.Logger for structured logging
type Logger struct {
	*slog.Logger
}

// New creates a new logger based on environment
func New(env string) *Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithContext returns a logger with context values extracted.
// Supports request_id and session_id from context.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}

	newLogger := l

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		newLogger = newLogger.WithRequestID(requestID)
	}

	if sessionID, ok := ctx.Value(SessionIDKey).(string); ok && sessionID != "" {
		newLogger = &Logger{
			Logger: newLogger.With(slog.String("session_id", sessionID)),
		}
	}

	return newLogger
}

// WithRequestID returns a logger with request ID
func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("request_id", requestID)),
	}
}

// HTTPRequest logs an HTTP request
func (l *Logger) HTTPRequest(method, path string, status int, latencyMs float64, clientIP string) {
	l.Info("http_request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("latency_ms", latencyMs),
		slog.String("client_ip", clientIP),
	)
}

// UploadEvent logs a photo upload outcome.
func (l *Logger) UploadEvent(sessionID, stepType string, attempt int, success bool, reason string) {
	if success {
		l.Info("upload_event",
			slog.String("session_id", sessionID),
			slog.String("step_type", stepType),
			slog.Int("attempt", attempt),
			slog.Bool("success", success),
		)
	} else {
		l.Warn("upload_event",
			slog.String("session_id", sessionID),
			slog.String("step_type", stepType),
			slog.Int("attempt", attempt),
			slog.Bool("success", success),
			slog.String("reason", reason),
		)
	}
}

// AnalysisEvent logs an AI analysis outcome for a photo step.
func (l *Logger) AnalysisEvent(sessionID, stepType string, described, detected bool) {
	l.Info("analysis_event",
		slog.String("session_id", sessionID),
		slog.String("step_type", stepType),
		slog.Bool("described", described),
		slog.Bool("damage_detected", detected),
	)
}

// LockEvent logs the terminal lock transition for a session.
func (l *Logger) LockEvent(sessionID, kind string) {
	l.Info("lock_event",
		slog.String("session_id", sessionID),
		slog.String("kind", kind),
	)
}

// DatabaseError logs database errors
func (l *Logger) DatabaseError(operation string, err error) {
	l.Error("database_error",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}
