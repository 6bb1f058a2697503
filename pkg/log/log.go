package log

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/cuemby/warden/pkg/types"
	"github.com/rs/zerolog"
)

// Logger is the process-wide root logger. It starts as a no-op so a
// library embedding Warden stays silent until the host process calls
// Init; packages never log through it directly but derive component
// loggers with WithComponent.
var Logger = zerolog.Nop()

// Level names a verbosity threshold. The zero value means info.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

func (l Level) zerologLevel() zerolog.Level {
	switch strings.ToLower(string(l)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Config controls the root logger. JSON selects machine-readable
// output; the default is a console writer for interactive use.
type Config struct {
	Level  Level
	JSON   bool
	Output io.Writer
}

// Init builds the root logger. Call once, early, from the host
// process; loggers derived with WithComponent before Init keep
// pointing at the no-op root, so derive after Init.
func Init(cfg Config) {
	zerolog.SetGlobalLevel(cfg.Level.zerologLevel())

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	if !cfg.JSON {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	Logger = zerolog.New(out).With().Timestamp().Logger()
}

// WithComponent derives a logger stamped with the owning subsystem
// ("router", "actor", "vault", "snapshot", "sync").
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithClient stamps l with a client identity. The id renders as its
// hex content hash, never as the path bytes it was derived from: the
// path a caller chose may itself be sensitive, the hash is not.
func WithClient(l zerolog.Logger, client types.ClientId) zerolog.Logger {
	return l.With().Str("client", client.String()).Logger()
}
