package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/spf13/cobra"
)

type testOptions struct {
	Config string

	PlayerName    string        `toml:"player.name" env:"PLAYER_NAME"`
	PlayerPaths   []string      `toml:"player.paths" env:"PLAYER_PATHS"`
	GracePeriodMs int           `toml:"timing.grace_period_ms" env:"TIMING_GRACE_PERIOD_MS"`
	SettleDelay   time.Duration `toml:"timing.settle_delay" env:"TIMING_SETTLE_DELAY"`
	AuthEnabled   bool          `toml:"auth.enabled" env:"AUTH_ENABLED"`
	LoggingLevel  string        `toml:"logging.level" env:"LOGGING_LEVEL"`
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigFromTOML(t *testing.T) {
	path := writeConfig(t, `
[player]
name = "vlc"
paths = ["/opt/vlc/bin", "/usr/bin"]

[timing]
grace_period_ms = 750
settle_delay = "250ms"

[auth]
enabled = true
`)

	opts := &testOptions{Config: path, LoggingLevel: "info"}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if opts.PlayerName != "vlc" {
		t.Errorf("PlayerName = %q, want vlc", opts.PlayerName)
	}
	if want := []string{"/opt/vlc/bin", "/usr/bin"}; !reflect.DeepEqual(opts.PlayerPaths, want) {
		t.Errorf("PlayerPaths = %v, want %v", opts.PlayerPaths, want)
	}
	if opts.GracePeriodMs != 750 {
		t.Errorf("GracePeriodMs = %d, want 750", opts.GracePeriodMs)
	}
	if opts.SettleDelay != 250*time.Millisecond {
		t.Errorf("SettleDelay = %v, want 250ms", opts.SettleDelay)
	}
	if !opts.AuthEnabled {
		t.Error("AuthEnabled = false, want true")
	}
	if opts.LoggingLevel != "info" {
		t.Errorf("expected default to survive, got %q", opts.LoggingLevel)
	}
}

func TestLoadConfigIntegerDurationIsMilliseconds(t *testing.T) {
	path := writeConfig(t, "[timing]\nsettle_delay = 40\n")

	opts := &testOptions{Config: path}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if opts.SettleDelay != 40*time.Millisecond {
		t.Errorf("SettleDelay = %v, want 40ms", opts.SettleDelay)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("CAMVIEW_PLAYER_NAME", "ffplay")
	t.Setenv("CAMVIEW_PLAYER_PATHS", " /a , /b ,")
	t.Setenv("CAMVIEW_TIMING_GRACE_PERIOD_MS", "100")
	t.Setenv("CAMVIEW_TIMING_SETTLE_DELAY", "1s")
	t.Setenv("CAMVIEW_AUTH_ENABLED", "true")

	opts := &testOptions{}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if opts.PlayerName != "ffplay" {
		t.Errorf("PlayerName = %q", opts.PlayerName)
	}
	if want := []string{"/a", "/b"}; !reflect.DeepEqual(opts.PlayerPaths, want) {
		t.Errorf("PlayerPaths = %v, want %v", opts.PlayerPaths, want)
	}
	if opts.GracePeriodMs != 100 {
		t.Errorf("GracePeriodMs = %d", opts.GracePeriodMs)
	}
	if opts.SettleDelay != time.Second {
		t.Errorf("SettleDelay = %v", opts.SettleDelay)
	}
	if !opts.AuthEnabled {
		t.Error("AuthEnabled = false")
	}
}

func TestLoadConfigEnvOverridesTOML(t *testing.T) {
	path := writeConfig(t, "[player]\nname = \"vlc\"\n[timing]\ngrace_period_ms = 900\n")
	t.Setenv("CAMVIEW_PLAYER_NAME", "mpv")
	t.Setenv("CAMVIEW_TIMING_GRACE_PERIOD_MS", "not-a-number")

	opts := &testOptions{Config: path}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if opts.PlayerName != "mpv" {
		t.Errorf("expected env override, got %q", opts.PlayerName)
	}
	if opts.GracePeriodMs != 900 {
		t.Errorf("expected unparseable env to be ignored, got %d", opts.GracePeriodMs)
	}
}

func TestLoadConfigChangedFlagsWin(t *testing.T) {
	path := writeConfig(t, "[player]\nname = \"vlc\"\n[logging]\nlevel = \"warn\"\n")
	t.Setenv("CAMVIEW_PLAYER_NAME", "ffplay")

	opts := &testOptions{Config: path}
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().StringVar(&opts.PlayerName, "player-name", "mpv", "")
	cmd.Flags().StringVar(&opts.LoggingLevel, "logging-level", "info", "")
	if err := cmd.Flags().Parse([]string{"--player-name=celluloid"}); err != nil {
		t.Fatal(err)
	}

	if err := LoadConfig(opts, cmd); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if opts.PlayerName != "celluloid" {
		t.Errorf("expected CLI flag to win, got %q", opts.PlayerName)
	}
	if opts.LoggingLevel != "warn" {
		t.Errorf("expected unchanged flag to take file value, got %q", opts.LoggingLevel)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"invalid syntax", "[player\nname = "},
		{"wrong type", "[timing]\ngrace_period_ms = \"fast\"\n"},
		{"bad duration", "[timing]\nsettle_delay = \"soon\"\n"},
		{"mixed array", "[player]\npaths = [\"/a\", 1]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := &testOptions{Config: writeConfig(t, tt.content)}
			if err := LoadConfig(opts, nil); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	opts := &testOptions{Config: filepath.Join(t.TempDir(), "missing.toml")}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("missing file should not fail: %v", err)
	}
}

func TestLoadConfigRequiresStructPointer(t *testing.T) {
	if err := LoadConfig(testOptions{}, nil); err == nil {
		t.Error("expected error for non-pointer")
	}
}

func TestGetNestedValue(t *testing.T) {
	data := map[string]any{
		"player": map[string]any{
			"name": "mpv",
			"launcher": map[string]any{
				"script": "launch-stream.sh",
			},
		},
		"root": "value",
	}

	tests := []struct {
		path string
		want any
	}{
		{"root", "value"},
		{"player.name", "mpv"},
		{"player.launcher.script", "launch-stream.sh"},
		{"missing", nil},
		{"player.missing", nil},
		{"root.child", nil},
	}

	for _, tt := range tests {
		if got := getNestedValue(data, tt.path); got != tt.want {
			t.Errorf("getNestedValue(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestFieldNameToFlag(t *testing.T) {
	tests := map[string]string{
		"Port":          "port",
		"PlayerName":    "player-name",
		"GracePeriodMs": "grace-period-ms",
	}
	for in, want := range tests {
		if got := fieldNameToFlag(in); got != want {
			t.Errorf("fieldNameToFlag(%q) = %q, want %q", in, got, want)
		}
	}
}
