package player

import "testing"

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantLevel string
		wantMsg   string
	}{
		{
			name:      "ffmpeg error",
			input:     "[error] Connection refused",
			wantLevel: "error",
			wantMsg:   "Connection refused",
		},
		{
			name:      "warn normalized",
			input:     "[warn] buffering",
			wantLevel: "warning",
			wantMsg:   "buffering",
		},
		{
			name:      "component prefix with level",
			input:     "[rtsp @ 0x7f673c439fc0] [error] method DESCRIBE failed: 401 Unauthorized",
			wantLevel: "error",
			wantMsg:   "[rtsp @ 0x7f673c439fc0] method DESCRIBE failed: 401 Unauthorized",
		},
		{
			name:      "mpv module prefix",
			input:     "[cplayer] Playing: rtsp://10.0.0.5/live",
			wantLevel: "info",
			wantMsg:   "[cplayer] Playing: rtsp://10.0.0.5/live",
		},
		{
			name:      "no prefix",
			input:     "STREAM_STARTED",
			wantLevel: "info",
			wantMsg:   "STREAM_STARTED",
		},
		{
			name:      "unterminated bracket",
			input:     "[error",
			wantLevel: "info",
			wantMsg:   "[error",
		},
		{
			name:      "empty line",
			input:     "",
			wantLevel: "info",
			wantMsg:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotLevel, gotMsg := ParseLogLevel(tt.input)
			if gotLevel != tt.wantLevel {
				t.Errorf("ParseLogLevel() level = %q, want %q", gotLevel, tt.wantLevel)
			}
			if gotMsg != tt.wantMsg {
				t.Errorf("ParseLogLevel() msg = %q, want %q", gotMsg, tt.wantMsg)
			}
		})
	}
}
