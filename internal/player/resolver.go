package player

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// Sentinel errors returned by the resolver.
var (
	ErrBinaryNotFound = errors.New("player binary not found")
	ErrScriptNotFound = errors.New("launcher script not found")
)

// Defaults for the player and its launcher.
const (
	DefaultPlayerName = "mpv"
	DefaultScriptName = "launch-stream.sh"
)

// DefaultPlayerPaths are probed when the player is not on PATH.
var DefaultPlayerPaths = []string{
	"/opt/homebrew/bin",
	"/usr/local/bin",
	"/usr/bin",
	"/snap/bin",
}

// Resolver locates the launcher script and the player binary.
type Resolver struct {
	// ScriptName is the launcher file name looked up in each of ScriptDirs.
	ScriptName string
	// ScriptDirs in priority order: packaged assets, development sources,
	// working directory, support directory.
	ScriptDirs []string
	// PlayerName is the binary name looked up on PATH.
	PlayerName string
	// PlayerPaths are directories probed after the PATH lookup fails.
	PlayerPaths []string
	// LookPath defaults to exec.LookPath.
	LookPath func(file string) (string, error)
}

// DefaultScriptDirs returns the standard candidate directories for the launcher.
// Empty arguments are skipped.
func DefaultScriptDirs(assetsDir, sourceDir, supportDir string) []string {
	var dirs []string
	for _, d := range []string{assetsDir, sourceDir} {
		if d != "" {
			dirs = append(dirs, d)
		}
	}
	if wd, err := os.Getwd(); err == nil {
		dirs = append(dirs, filepath.Join(wd, "scripts"), wd)
	}
	if supportDir != "" {
		dirs = append(dirs, supportDir)
	}
	return dirs
}

// ResolvePlayer returns the path of the player binary.
func (r *Resolver) ResolvePlayer() (string, error) {
	name := r.PlayerName
	if name == "" {
		name = DefaultPlayerName
	}

	// An explicit path skips discovery.
	if filepath.IsAbs(name) {
		if isFile(name) {
			return name, nil
		}
		return "", fmt.Errorf("%w: %s", ErrBinaryNotFound, name)
	}

	lookPath := r.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	if path, err := lookPath(name); err == nil {
		return path, nil
	}

	dirs := r.PlayerPaths
	if dirs == nil {
		dirs = DefaultPlayerPaths
	}
	for _, dir := range dirs {
		candidate := filepath.Join(dir, name)
		if isFile(candidate) {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("%w: %s", ErrBinaryNotFound, name)
}

// ResolveScript returns the first existing launcher script among the candidates.
func (r *Resolver) ResolveScript() (string, error) {
	name := r.ScriptName
	if name == "" {
		name = DefaultScriptName
	}

	if filepath.IsAbs(name) {
		if isFile(name) {
			return name, nil
		}
		return "", fmt.Errorf("%w: %s", ErrScriptNotFound, name)
	}

	for _, dir := range r.ScriptDirs {
		candidate := filepath.Join(dir, name)
		if isFile(candidate) {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("%w: %s (searched %d locations)", ErrScriptNotFound, name, len(r.ScriptDirs))
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
