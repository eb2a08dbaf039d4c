// Package process provides the subprocess primitives used to supervise players.
//
// The package offers three pieces:
//
// Process wraps os/exec for a single long-lived, detached subprocess:
//   - Spawned in its own session, signalled as a process group
//   - Terminate (SIGTERM) and Kill (SIGKILL) are safe after exit
//   - Output streaming with pluggable log parsing and line handlers
//
// Runner executes short-lived commands and never fails: launch errors are
// folded into the Result as exit code 1.
//
// Scanner finds and signals processes system-wide by command-line pattern
// (pgrep/pkill), for orphans that no handle tracks.
//
// Example:
//
//	proc := process.New("cam-1", "/usr/share/camview/launch-stream.sh",
//	    []string{url, "Front door", "--player-path=/usr/bin/mpv"}, logger)
//	if err := proc.Start(); err != nil {
//	    return err
//	}
//	<-proc.Done()
package process
