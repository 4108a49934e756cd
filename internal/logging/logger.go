// Package logging builds the diagnostic logger shared by all components.
package logging

import (
	"io"
	"log/slog"
	"strings"
	"time"

	charmlog "github.com/charmbracelet/log"
)

// New returns an slog.Logger writing human-readable records to w.
// level is one of debug, info, warn or error; unknown values mean warn.
func New(w io.Writer, level string) *slog.Logger {
	handler := charmlog.NewWithOptions(w, charmlog.Options{
		Prefix:          "cwtail",
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
		Level:           parseLevel(level),
	})
	return slog.New(handler)
}

// NewNop returns a logger that discards everything.
func NewNop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func parseLevel(level string) charmlog.Level {
	lvl, err := charmlog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return charmlog.WarnLevel
	}
	return lvl
}
