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
	// LeadIDKey is the context key for the lead being processed
	LeadIDKey contextKey = "lead_id"
)

// Logger wraps slog.Logger for structured logging
type Logger struct {
	*slog.Logger
}

// New creates a new logger based on environment
func New(env string) *Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	var handler slog.Handler
	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return &Logger{Logger: slog.New(handler)}
}

// WithContext returns a logger with context values extracted.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}

	out := l
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		out = &Logger{Logger: out.With(slog.String("request_id", requestID))}
	}
	if leadID, ok := ctx.Value(LeadIDKey).(string); ok && leadID != "" {
		out = &Logger{Logger: out.With(slog.String("lead_id", leadID))}
	}
	return out
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

// SweepSummary logs the outcome of one batch sweep run.
func (l *Logger) SweepSummary(sweep string, processed, sent, archived, failed int) {
	l.Info("sweep_summary",
		slog.String("sweep", sweep),
		slog.Int("processed", processed),
		slog.Int("sent", sent),
		slog.Int("archived", archived),
		slog.Int("failed", failed),
	)
}

// EmailEvent logs an outbound email attempt.
func (l *Logger) EmailEvent(template, recipient string, err error) {
	if err != nil {
		l.Error("email_send_failed",
			slog.String("template", template),
			slog.String("recipient", recipient),
			slog.String("error", err.Error()),
		)
		return
	}
	l.Info("email_sent",
		slog.String("template", template),
		slog.String("recipient", recipient),
	)
}

// DatabaseError logs database errors
func (l *Logger) DatabaseError(operation string, err error) {
	l.Error("database_error",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}

// RateLimitExceeded logs rate limit events
func (l *Logger) RateLimitExceeded(clientIP, path string) {
	l.Warn("rate_limit_exceeded",
		slog.String("client_ip", clientIP),
		slog.String("path", path),
	)
}
