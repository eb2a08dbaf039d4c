package process

import (
	"context"
	"os/exec"
	"reflect"
	"testing"
)

type call struct {
	name string
	args []string
}

type fakeRunner struct {
	calls   []call
	results map[string]Result
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) Result {
	f.calls = append(f.calls, call{name: name, args: args})
	return f.results[name]
}

func TestScannerIsRunning(t *testing.T) {
	tests := []struct {
		name   string
		result Result
		want   bool
	}{
		{"match", Result{Code: 0, Stdout: "1234\n"}, true},
		{"no match", Result{Code: 1}, false},
		{"success but empty", Result{Code: 0, Stdout: "\n"}, false},
		{"pgrep missing", Result{Code: 1, Stderr: "executable file not found"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &fakeRunner{results: map[string]Result{"pgrep": tt.result}}
			s := NewScanner(r, testLogger())

			if got := s.IsRunning(context.Background(), "mpv"); got != tt.want {
				t.Errorf("IsRunning = %v, want %v", got, tt.want)
			}
			want := []call{{name: "pgrep", args: []string{"-f", "mpv"}}}
			if !reflect.DeepEqual(r.calls, want) {
				t.Errorf("calls = %v, want %v", r.calls, want)
			}
		})
	}
}

func TestScannerKillAll(t *testing.T) {
	tests := []struct {
		name     string
		force    bool
		result   Result
		wantArgs []string
		wantErr  bool
	}{
		{"graceful signalled", false, Result{Code: 0}, []string{"-f", "mpv"}, false},
		{"graceful nothing matched", false, Result{Code: 1}, []string{"-f", "mpv"}, false},
		{"graceful failed", false, Result{Code: 3, Stderr: "operation not permitted"}, []string{"-f", "mpv"}, true},
		{"pkill missing", false, Result{Code: 1, Stderr: "executable file not found", LaunchErr: exec.ErrNotFound}, []string{"-f", "mpv"}, true},
		{"forced", true, Result{Code: 0}, []string{"-9", "-f", "mpv"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &fakeRunner{results: map[string]Result{"pkill": tt.result}}
			s := NewScanner(r, testLogger())

			err := s.KillAll(context.Background(), "mpv", tt.force)
			if (err != nil) != tt.wantErr {
				t.Errorf("KillAll error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(r.calls) != 1 || !reflect.DeepEqual(r.calls[0].args, tt.wantArgs) {
				t.Errorf("calls = %v, want pkill %v", r.calls, tt.wantArgs)
			}
		})
	}
}
