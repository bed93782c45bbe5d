package logging

import (
	"encoding/hex"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/nerrad567/noolite-bridge/internal/infrastructure/config"
)

const serviceName = "noolite-bridge"

// redacted replaces the value of any attribute whose key is a credential.
const redacted = "[redacted]"

// credentialKeys are attribute keys whose values never reach the output.
var credentialKeys = map[string]struct{}{
	"password": {},
	"token":    {},
}

// Identity is attached to every entry of a process logger.
type Identity struct {
	Version  string
	BridgeID string // omitted when empty
}

// Logger is a slog.Logger with the bridge's handler setup.
type Logger struct {
	*slog.Logger
}

// New builds the process logger writing to cfg.Output.
func New(cfg config.LoggingConfig, id Identity) *Logger {
	var output io.Writer = os.Stdout
	if strings.EqualFold(cfg.Output, "stderr") {
		output = os.Stderr
	}
	return NewWithWriter(output, cfg, id)
}

// NewWithWriter is New with an explicit destination. Output in cfg is ignored.
//
// Byte slices are rendered as space-separated hex, so radio frames can be
// logged as-is, and credential attributes are redacted.
func NewWithWriter(w io.Writer, cfg config.LoggingConfig, id Identity) *Logger {
	opts := &slog.HandlerOptions{
		Level:       parseLevel(cfg.Level),
		ReplaceAttr: replaceAttr,
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	attrs := []slog.Attr{
		slog.String("service", serviceName),
		slog.String("version", id.Version),
	}
	if id.BridgeID != "" {
		attrs = append(attrs, slog.String("bridge", id.BridgeID))
	}
	return &Logger{Logger: slog.New(handler.WithAttrs(attrs))}
}

func replaceAttr(_ []string, a slog.Attr) slog.Attr {
	if _, ok := credentialKeys[strings.ToLower(a.Key)]; ok {
		return slog.String(a.Key, redacted)
	}
	if a.Value.Kind() == slog.KindAny {
		if b, ok := a.Value.Any().([]byte); ok {
			return slog.String(a.Key, formatBytes(b))
		}
	}
	return a
}

// formatBytes renders b as "ad 00 02".
func formatBytes(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	enc := hex.EncodeToString(b)
	var sb strings.Builder
	sb.Grow(len(b) * 3)
	for i := 0; i < len(enc); i += 2 {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(enc[i : i+2])
	}
	return sb.String()
}

// parseLevel maps debug, info, warn(ing) and error; anything else is info.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// Component returns a child logger tagged component=name.
func (l *Logger) Component(name string) *Logger {
	return &Logger{Logger: l.Logger.With("component", name)}
}

// Default is the logger used before configuration is loaded: JSON to
// stdout at info.
func Default() *Logger {
	return New(config.LoggingConfig{Level: "info", Format: "json"}, Identity{Version: "dev"})
}
