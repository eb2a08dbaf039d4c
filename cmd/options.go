package cmd

import (
	"strings"
	"time"

	"github.com/smazurov/camview/internal/devices"
	"github.com/smazurov/camview/internal/logging"
	"github.com/smazurov/camview/internal/player"
	"github.com/smazurov/camview/internal/streams"
)

// Options is the flat CLI configuration shared by the server and every
// sub-command. Keys map to config.toml sections and CAMVIEW_* variables.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port string `help:"Port to listen on" short:"p" default:":8091" toml:"server.port" env:"SERVER_PORT"`

	// Device catalog
	DevicesFile string `help:"Device catalog file" default:"devices.toml" toml:"devices.file" env:"DEVICES_FILE"`

	// Player settings
	PlayerName    string `help:"Player binary name" default:"mpv" toml:"player.name" env:"PLAYER_NAME"`
	PlayerPattern string `help:"Process pattern for orphan sweeps (defaults to the player name)" toml:"player.pattern" env:"PLAYER_PATTERN"`
	PlayerPaths   string `help:"Comma-separated directories probed when the player is not on PATH" toml:"player.paths" env:"PLAYER_PATHS"`

	// Launcher settings
	LauncherScript       string `help:"Launcher script file name" default:"launch-stream.sh" toml:"launcher.script" env:"LAUNCHER_SCRIPT"`
	LauncherDirs         string `help:"Comma-separated directories searched for the launcher" toml:"launcher.dirs" env:"LAUNCHER_DIRS"`
	LauncherStartMarkers string `help:"Comma-separated output tokens that mean the player is rendering" default:"STREAM_STARTED" toml:"launcher.start_markers" env:"LAUNCHER_START_MARKERS"`

	// Timing settings
	GracePeriodMs    int `help:"Wait after SIGTERM before SIGKILL (ms)" default:"300" toml:"timing.grace_period_ms" env:"TIMING_GRACE_PERIOD_MS"`
	SettleDelayMs    int `help:"Wait after a sweep before checking again (ms)" default:"500" toml:"timing.settle_delay_ms" env:"TIMING_SETTLE_DELAY_MS"`
	CleanupTimeoutMs int `help:"Upper bound for a full cleanup (ms)" default:"10000" toml:"timing.cleanup_timeout_ms" env:"TIMING_CLEANUP_TIMEOUT_MS"`

	// Auth settings
	AuthUsername string `help:"Basic auth username (empty disables auth)" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Logging settings
	LoggingLevel   string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat  string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingStreams string `help:"Player registry logging level" default:"info" toml:"logging.streams" env:"LOGGING_STREAMS"`
	LoggingPlayer  string `help:"Player output logging level" default:"info" toml:"logging.player" env:"LOGGING_PLAYER"`
	LoggingAPI     string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
}

// InitLogging configures the logging system from opts.
func (o *Options) InitLogging() {
	logging.Initialize(logging.Config{
		Level:  o.LoggingLevel,
		Format: o.LoggingFormat,
		Modules: map[string]string{
			"streams": o.LoggingStreams,
			"player":  o.LoggingPlayer,
			"api":     o.LoggingAPI,
			"http":    o.LoggingAPI,
		},
	})
}

// Resolver builds the player and launcher resolver.
func (o *Options) Resolver() *player.Resolver {
	dirs := splitList(o.LauncherDirs)
	if len(dirs) == 0 {
		dirs = player.DefaultScriptDirs("/usr/share/camview", "", "/etc/camview")
	}
	return &player.Resolver{
		ScriptName:  o.LauncherScript,
		ScriptDirs:  dirs,
		PlayerName:  o.PlayerName,
		PlayerPaths: splitList(o.PlayerPaths),
	}
}

// NewRegistry builds the player registry. pub may be nil.
func (o *Options) NewRegistry(pub streams.Publisher) *streams.Registry {
	return streams.NewRegistry(&streams.Options{
		Resolver:      o.Resolver(),
		Publisher:     pub,
		PlayerPattern: o.PlayerPattern,
		StartMarkers:  splitList(o.LauncherStartMarkers),
		GracePeriod:   millis(o.GracePeriodMs),
		SettleDelay:   millis(o.SettleDelayMs),
	})
}

// CleanupTimeout bounds a full cleanup.
func (o *Options) CleanupTimeout() time.Duration {
	return millis(o.CleanupTimeoutMs)
}

// LoadCatalog opens the device catalog. A missing file is an empty catalog.
func (o *Options) LoadCatalog() (*devices.Catalog, error) {
	c := devices.NewCatalog(o.DevicesFile)
	if err := c.Load(); err != nil {
		return nil, err
	}
	return c, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
