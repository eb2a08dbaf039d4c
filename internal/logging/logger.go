package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Identifier tags journal entries (SYSLOG_IDENTIFIER).
const Identifier = "camview"

// Config represents logging configuration.
type Config struct {
	Level   string            `toml:"level"`
	Format  string            `toml:"format"`
	Modules map[string]string `toml:"modules"`

	// Output overrides stdout detection. Used by tests.
	Output io.Writer `toml:"-"`
}

var (
	mutex           sync.RWMutex
	globalConfig    Config
	isInitialized   bool
	moduleLoggers   = make(map[string]*slog.Logger)
	moduleLevelVars = make(map[string]*slog.LevelVar)
)

// Initialize configures output and levels. Loggers handed out before the call
// are rebuilt, so package-level loggers pick up the configuration too.
func Initialize(config Config) {
	mutex.Lock()
	defer mutex.Unlock()

	globalConfig = config
	isInitialized = true

	for module, levelVar := range moduleLevelVars {
		levelVar.Set(moduleLevel(module))
		moduleLoggers[module] = slog.New(createHandler(config, levelVar)).With("module", module)
	}

	global := &slog.LevelVar{}
	global.Set(levelOr(config.Level, slog.LevelInfo))
	slog.SetDefault(slog.New(createHandler(config, global)))
}

// GetLogger returns the logger for module, creating it if needed.
func GetLogger(module string) *slog.Logger {
	mutex.RLock()
	logger, ok := moduleLoggers[module]
	mutex.RUnlock()
	if ok {
		return logger
	}

	mutex.Lock()
	defer mutex.Unlock()
	if logger, ok := moduleLoggers[module]; ok {
		return logger
	}

	levelVar := &slog.LevelVar{}
	levelVar.Set(moduleLevel(module))

	logger = slog.New(createHandler(globalConfig, levelVar)).With("module", module)
	moduleLoggers[module] = logger
	moduleLevelVars[module] = levelVar
	return logger
}

// SetLevel changes a module's level at runtime.
// It reports false if the level string is not recognised.
func SetLevel(module, level string) bool {
	parsed := parseLevel(level)
	if parsed == nil {
		return false
	}
	GetLogger(module)

	mutex.Lock()
	defer mutex.Unlock()
	moduleLevelVars[module].Set(*parsed)
	return true
}

// moduleLevel returns the configured level for module. Caller holds mutex.
func moduleLevel(module string) slog.Level {
	if !isInitialized {
		return slog.LevelInfo
	}
	level := levelOr(globalConfig.Level, slog.LevelInfo)
	if s, ok := globalConfig.Modules[module]; ok {
		level = levelOr(s, level)
	}
	return level
}

// createHandler builds the handler chain: stdout (text or json) and the
// systemd journal, whichever are available.
func createHandler(config Config, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}

	out := config.Output
	useJournal := false
	if out == nil {
		out = os.Stdout
		useJournal = IsJournalAvailable()
		if !isStdoutAvailable() {
			out = nil
		}
	}

	var handlers []slog.Handler
	if out != nil {
		if config.Format == "json" {
			handlers = append(handlers, slog.NewJSONHandler(out, opts))
		} else {
			handlers = append(handlers, slog.NewTextHandler(out, opts))
		}
	}
	if useJournal {
		handlers = append(handlers, NewJournalHandler(Identifier, level))
	}

	switch len(handlers) {
	case 0:
		return slog.NewTextHandler(os.Stderr, opts)
	case 1:
		return handlers[0]
	default:
		return NewMultiHandler(handlers...)
	}
}

// isStdoutAvailable reports whether stdout is a terminal, pipe, socket, or file.
func isStdoutAvailable() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	mode := fi.Mode()
	return mode&os.ModeCharDevice != 0 || mode&os.ModeNamedPipe != 0 || mode&os.ModeSocket != 0 || mode.IsRegular()
}

func levelOr(s string, def slog.Level) slog.Level {
	if l := parseLevel(s); l != nil {
		return *l
	}
	return def
}

// parseLevel converts a level name to slog.Level, or nil if unknown.
func parseLevel(level string) *slog.Level {
	var l slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		l = slog.LevelDebug
	case "info":
		l = slog.LevelInfo
	case "warn", "warning":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		return nil
	}
	return &l
}
