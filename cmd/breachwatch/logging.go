package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"breachwatch/internal/config"
)

const (
	logLevelEnvKey  = config.LogLevelEnvKey
	logFormatEnvKey = "BREACHWATCH_LOG_FORMAT"
)

// logSetting is one candidate value for a logging option and where it came from.
type logSetting struct {
	value  string
	origin string
}

// firstSet returns the first candidate with a non-blank value.
func firstSet(candidates ...logSetting) (logSetting, bool) {
	for _, c := range candidates {
		if strings.TrimSpace(c.value) != "" {
			return c, true
		}
	}
	return logSetting{}, false
}

// setupLogging installs the process logger. Level comes from --log-level, then
// BREACHWATCH_LOG_LEVEL, then log_level in config. A bad flag value is an
// error; a bad env or config value falls back to info and yields a warning for
// stderr. Format is text unless --log-format or BREACHWATCH_LOG_FORMAT says
// json, which suits cron jobs whose output is shipped to a log collector.
func setupLogging(w io.Writer, flagLevel, configLevel, flagFormat string) (string, error) {
	level := slog.LevelInfo
	var warning string

	if chosen, ok := firstSet(
		logSetting{flagLevel, "--log-level"},
		logSetting{os.Getenv(logLevelEnvKey), logLevelEnvKey},
		logSetting{configLevel, "log_level"},
	); ok {
		parsed, err := parseLogLevel(chosen.value)
		switch {
		case err == nil:
			level = parsed
		case chosen.origin == "--log-level":
			return "", fmt.Errorf("invalid --log-level %q (want debug, info, warn or error)", chosen.value)
		default:
			warning = fmt.Sprintf("warning: invalid %s=%q; defaulting to %s", chosen.origin, chosen.value, config.DefaultLogLevel)
		}
	}

	format := "text"
	if chosen, ok := firstSet(
		logSetting{flagFormat, "--log-format"},
		logSetting{os.Getenv(logFormatEnvKey), logFormatEnvKey},
	); ok {
		format = strings.ToLower(strings.TrimSpace(chosen.value))
		if format != "text" && format != "json" {
			return "", fmt.Errorf("invalid %s %q (want text or json)", chosen.origin, chosen.value)
		}
	}

	slog.SetDefault(newLogger(w, level, format))
	return warning, nil
}

// parseLogLevel accepts slog level names, "warning", and numeric levels.
func parseLogLevel(raw string) (slog.Level, error) {
	value := strings.TrimSpace(raw)
	if strings.EqualFold(value, "warning") {
		value = "warn"
	}
	if numeric, err := strconv.Atoi(value); err == nil {
		return slog.Level(numeric), nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(value)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", raw)
	}
	return level, nil
}

func newLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
