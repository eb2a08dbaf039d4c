package player

import "strings"

// ParseLogLevel extracts the log level from player output.
// ffmpeg-family tools print "[level] message" or "[component @ 0x...] [level] message";
// mpv prints "[module] message" with no level, which is treated as info.
func ParseLogLevel(line string) (level, msg string) {
	if len(line) < 3 || line[0] != '[' {
		return "info", line
	}

	end := strings.Index(line, "] ")
	if end == -1 {
		return "info", line
	}

	if bracket := line[1:end]; isLogLevel(bracket) {
		return normalizeLevel(bracket), line[end+2:]
	}

	// Component prefix: keep the component, strip only the [level].
	component := line[:end+2]
	rest := line[end+2:]
	if len(rest) > 2 && rest[0] == '[' {
		if nextEnd := strings.Index(rest, "] "); nextEnd != -1 {
			if next := rest[1:nextEnd]; isLogLevel(next) {
				return normalizeLevel(next), component + rest[nextEnd+2:]
			}
		}
	}

	return "info", line
}

func isLogLevel(s string) bool {
	switch s {
	case "quiet", "panic", "fatal", "error", "warning", "warn", "info", "verbose", "debug", "trace":
		return true
	}
	return false
}

func normalizeLevel(s string) string {
	if s == "warn" {
		return "warning"
	}
	return s
}
