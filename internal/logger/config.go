package logger

import (
	"log/slog"
	"strings"
)

// Log formats.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// Config represents logger configuration.
type Config struct {
	Level       string `json:"level"`  // "debug", "info", "warn", "error"
	Format      string `json:"format"` // "json", "text"
	ServiceName string `json:"service_name"`
	Version     string `json:"version"`
	Environment string `json:"environment"` // "dev", "prod"
	AddSource   bool   `json:"add_source"`
}

// DefaultConfig returns the node's defaults.
func DefaultConfig() Config {
	return Config{
		Level:       "info",
		Format:      FormatText,
		ServiceName: "purgenode",
		Version:     "dev",
		Environment: "dev",
	}
}

// LogLevel converts the string level to slog.Level.
func (c Config) LogLevel() slog.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (c Config) IsJSON() bool {
	return strings.ToLower(c.Format) == FormatJSON
}

// BaseAttributes are attached to every record.
func (c Config) BaseAttributes() []slog.Attr {
	return []slog.Attr{
		slog.String("service", c.ServiceName),
		slog.String("version", c.Version),
		slog.String("environment", c.Environment),
	}
}
