package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Level names a verbosity threshold. Parsing is lenient: an unknown or
// empty value falls back to info rather than failing startup.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

func (l Level) zerologLevel() zerolog.Level {
	parsed, err := zerolog.ParseLevel(string(l))
	if err != nil || parsed == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return parsed
}

// Config selects the root logger's verbosity and encoding. JSONOutput
// emits one JSON object per line for collectors; the default console
// encoding is for a human at a terminal.
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// root is the logger every component derives from. Before Init runs it
// emits console lines at debug and above on stderr, so components constructed ahead
// of configuration still log somewhere visible.
var root = consoleLogger(os.Stderr)

func consoleLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
	}).With().Timestamp().Logger()
}

// Init replaces the root logger according to cfg. Call once at startup,
// before constructing components: child loggers handed out earlier keep
// the settings they were derived under.
func Init(cfg Config) {
	zerolog.SetGlobalLevel(cfg.Level.zerologLevel())

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	if cfg.JSONOutput {
		root = zerolog.New(out).With().Timestamp().Logger()
		return
	}
	root = consoleLogger(out)
}

// WithComponent returns a child logger tagged with the owning subsystem
// (coordinator, bus, topology, pool, consensus, federation). Component is
// the one field every swarmcore log line carries.
func WithComponent(component string) zerolog.Logger {
	return root.With().Str("component", component).Logger()
}

// Scoped returns a child logger carrying whichever of the swarm's three
// identity dimensions are in play for the operation being logged. Empty
// ids are omitted entirely rather than logged as blank fields.
func Scoped(swarmID, agentID, taskID string) zerolog.Logger {
	ctx := root.With()
	if swarmID != "" {
		ctx = ctx.Str("swarm_id", swarmID)
	}
	if agentID != "" {
		ctx = ctx.Str("agent_id", agentID)
	}
	if taskID != "" {
		ctx = ctx.Str("task_id", taskID)
	}
	return ctx.Logger()
}
