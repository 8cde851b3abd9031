// Package logging builds the zerolog logger shared by every clubflow component.
package logging

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"clubflow/internal/config"
)

// New creates a logger writing to w at the configured level.
//
// Format "json" writes one JSON object per line; anything else uses the
// human-readable console writer. Unknown levels fall back to warn.
func New(cfg config.LogConfig, w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.WarnLevel
	}

	out := w
	if !strings.EqualFold(cfg.Format, "json") {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly, NoColor: true}
	}

	return zerolog.New(out).Level(level).With().Timestamp().Str("service", "clubflow").Logger()
}
