package streams

import (
	"errors"
	"fmt"
	"strings"

	"github.com/smazurov/camview/internal/player"
)

// Kind classifies a stream failure.
type Kind string

// Failure kinds.
const (
	KindBinaryNotFound      Kind = "BinaryNotFound"
	KindScriptNotFound      Kind = "ScriptNotFound"
	KindPermissionFixFailed Kind = "PermissionFixFailed"
	KindSpawnFailure        Kind = "SpawnFailure"
	KindConnectionError     Kind = "ConnectionError"
	KindInvalidStreamData   Kind = "InvalidStreamData"
	KindUnknownExit         Kind = "UnknownExit"
)

// Remediation actions attached to failures.
const (
	RemediationInstallPlayer = "install-player"
	RemediationCheckDevice   = "check-device-online"
)

// ErrCleanupInProgress is returned by Start while Cleanup is running.
var ErrCleanupInProgress = errors.New("cleanup in progress")

// StreamError is a classified failure for one device.
type StreamError struct {
	Kind        Kind
	DeviceID    string
	Message     string
	ExitCode    int
	Remediation string
	Cause       error
}

func (e *StreamError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.DeviceID != "" {
		msg = fmt.Sprintf("device %s: %s", e.DeviceID, msg)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *StreamError) Unwrap() error {
	return e.Cause
}

// KindOf returns the failure kind of err, or "" if err is not a StreamError.
func KindOf(err error) Kind {
	var se *StreamError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// resolveError maps resolver errors to their kinds.
func resolveError(deviceID string, err error) *StreamError {
	switch {
	case errors.Is(err, player.ErrBinaryNotFound):
		return &StreamError{
			Kind:        KindBinaryNotFound,
			DeviceID:    deviceID,
			Message:     "player is not installed",
			Remediation: RemediationInstallPlayer,
			Cause:       err,
		}
	case errors.Is(err, player.ErrScriptNotFound):
		return &StreamError{
			Kind:     KindScriptNotFound,
			DeviceID: deviceID,
			Message:  "launcher script is missing",
			Cause:    err,
		}
	default:
		return &StreamError{Kind: KindSpawnFailure, DeviceID: deviceID, Message: "launch failed", Cause: err}
	}
}

var (
	connectionPatterns = []string{
		"connection refused",
		"failed to connect",
		"could not connect",
		"connection timed out",
		"no route to host",
		"network is unreachable",
	}
	invalidDataPatterns = []string{
		"invalid data",
	}
)

// Classify returns the failure kind for a finished process, and false when the
// exit is not a failure: zero exit, or the player had signalled it started.
func Classify(exitCode int, output string, started bool) (Kind, bool) {
	if exitCode == 0 || started {
		return "", false
	}

	text := strings.ToLower(output)
	for _, p := range connectionPatterns {
		if strings.Contains(text, p) {
			return KindConnectionError, true
		}
	}
	for _, p := range invalidDataPatterns {
		if strings.Contains(text, p) {
			return KindInvalidStreamData, true
		}
	}
	return KindUnknownExit, true
}

// exitError builds the failure for a classified exit.
func exitError(deviceID string, kind Kind, exitCode int, diagnostic string) *StreamError {
	e := &StreamError{Kind: kind, DeviceID: deviceID, ExitCode: exitCode}
	switch kind {
	case KindConnectionError:
		e.Message = "could not connect to camera"
		e.Remediation = RemediationCheckDevice
	case KindInvalidStreamData:
		e.Message = "camera sent invalid stream data"
	default:
		e.Message = fmt.Sprintf("player exited with code %d", exitCode)
	}
	if diagnostic != "" {
		e.Message += ": " + diagnostic
	}
	return e
}

// lastLine returns the last non-empty line of text, trimmed.
func lastLine(text string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
