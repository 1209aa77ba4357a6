package app

import (
	"log/slog"
	"os"
)

// NewLogger builds the process logger: JSON in production-style deployments,
// text locally. Source locations are attached so ERROR lines from the
// posting path point at the failing call site.
func NewLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true}
	if cfg != nil && cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
