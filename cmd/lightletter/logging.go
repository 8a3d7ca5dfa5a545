package main

import (
	"io"
	"log/slog"
	"strings"

	"github.com/light-letter/lightletter/internal/config"
	"github.com/light-letter/lightletter/internal/errors"
)

// newLogger builds the root logger from [log].
func newLogger(cfg config.LogConfig, w io.Writer) (*slog.Logger, error) {
	level := slog.LevelInfo
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, errors.New(errors.CodeConfigParse).
				WithSubject("log.level " + cfg.Level).
				WithDetail("log.level must be debug, info, warn or error.")
		}
	}
	opts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(cfg.Format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, errors.New(errors.CodeConfigParse).
			WithSubject("log.format " + cfg.Format).
			WithDetail(`log.format must be "text" or "json".`)
	}
}
