package preflight

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/randomizedcoder/go-othello-arena/internal/engine"
)

func writeFile(t *testing.T, name, content string, mode os.FileMode) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), mode); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

const readyEngine = `#!/bin/sh
while read line; do
  case "$line" in
    isready) echo ready ;;
    quit) exit 0 ;;
  esac
done
`

func probeOptions() engine.Options {
	opts := engine.DefaultOptions()
	opts.HandshakeTimeout = 300 * time.Millisecond
	opts.QuitTimeout = time.Second
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return opts
}

func TestCheck_String(t *testing.T) {
	tests := []struct {
		name  string
		check Check
		want  []string
	}{
		{
			name:  "passed with required",
			check: Check{Name: "fds", Required: 100, Actual: 200, Passed: true},
			want:  []string{"✓", "200", "100"},
		},
		{
			name:  "failed",
			check: Check{Name: "fds", Required: 100, Actual: 50},
			want:  []string{"✗"},
		},
		{
			name:  "warning",
			check: Check{Name: "x", Passed: true, Warning: true, Message: "warning message"},
			want:  []string{"⚠", "warning message"},
		},
		{
			name:  "message only",
			check: Check{Name: "x", Passed: true, Message: "all good"},
			want:  []string{"✓", "all good"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tt.check.String()
			for _, w := range tt.want {
				if !strings.Contains(s, w) {
					t.Errorf("String() = %q, missing %q", s, w)
				}
			}
		})
	}
}

func TestRunAll(t *testing.T) {
	engineA := writeFile(t, "a.sh", readyEngine, 0o755)
	engineB := writeFile(t, "b.sh", readyEngine, 0o755)
	notExec := writeFile(t, "plain.txt", "x", 0o644)
	goodBook := writeFile(t, "book.txt", "c4 e3\nd3 c5\n", 0o644)
	emptyBook := writeFile(t, "empty.txt", "\n", 0o644)

	tests := []struct {
		name       string
		opts       Options
		wantPassed bool
		wantFailed string
	}{
		{
			name:       "all good",
			opts:       Options{Engines: [2]string{engineA, engineB}, BookPath: goodBook, Workers: 2},
			wantPassed: true,
		},
		{
			name:       "engine not executable",
			opts:       Options{Engines: [2]string{engineA, notExec}, BookPath: goodBook, Workers: 2},
			wantFailed: "engine_b",
		},
		{
			name:       "engine missing",
			opts:       Options{Engines: [2]string{filepath.Join(t.TempDir(), "nope"), engineB}, BookPath: goodBook, Workers: 2},
			wantFailed: "engine_a",
		},
		{
			name:       "book missing",
			opts:       Options{Engines: [2]string{engineA, engineB}, BookPath: filepath.Join(t.TempDir(), "none.txt"), Workers: 2},
			wantFailed: "book",
		},
		{
			name:       "book empty",
			opts:       Options{Engines: [2]string{engineA, engineB}, BookPath: emptyBook, Workers: 2},
			wantFailed: "book",
		},
		{
			name:       "fd limit exceeded",
			opts:       Options{Engines: [2]string{engineA, engineB}, BookPath: goodBook, Workers: 100_000_000},
			wantFailed: "file_descriptors",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := RunAll(context.Background(), tt.opts)
			if result.Passed != tt.wantPassed {
				t.Errorf("Passed = %v, want %v: %+v", result.Passed, tt.wantPassed, result.Checks)
			}
			if tt.wantFailed == "" {
				return
			}
			for _, c := range result.Checks {
				if c.Name == tt.wantFailed {
					if c.Passed {
						t.Errorf("%s should fail", c.Name)
					}
					return
				}
			}
			t.Errorf("no check named %s", tt.wantFailed)
		})
	}
}

func TestRunAll_Probe(t *testing.T) {
	good := writeFile(t, "good.sh", readyEngine, 0o755)
	mute := writeFile(t, "mute.sh", "#!/bin/sh\nwhile read line; do :; done\n", 0o755)
	bookPath := writeFile(t, "book.txt", "c4 e3\n", 0o644)

	result := RunAll(context.Background(), Options{
		Engines:       [2]string{good, mute},
		BookPath:      bookPath,
		Workers:       1,
		Probe:         true,
		EngineOptions: probeOptions(),
	})

	got := map[string]bool{}
	for _, c := range result.Checks {
		got[c.Name] = c.Passed
	}
	if passed, ok := got["handshake_a"]; !ok || !passed {
		t.Errorf("handshake_a = %v (present %v), want passed", passed, ok)
	}
	if passed, ok := got["handshake_b"]; !ok || passed {
		t.Errorf("handshake_b = %v (present %v), want failed", passed, ok)
	}
	if result.Passed {
		t.Error("a mute engine should fail preflight")
	}
}

func TestRunAll_ProbeSkippedWhenStaticChecksFail(t *testing.T) {
	good := writeFile(t, "good.sh", readyEngine, 0o755)
	result := RunAll(context.Background(), Options{
		Engines:       [2]string{good, good},
		BookPath:      filepath.Join(t.TempDir(), "missing.txt"),
		Workers:       1,
		Probe:         true,
		EngineOptions: probeOptions(),
	})
	for _, c := range result.Checks {
		if strings.HasPrefix(c.Name, "handshake_") {
			t.Errorf("probe %s ran despite failed static checks", c.Name)
		}
	}
}

func TestCheckFileDescriptors_Scaling(t *testing.T) {
	small := checkFileDescriptors(1)
	large := checkFileDescriptors(64)
	if large.Required <= small.Required {
		t.Error("required FDs should grow with workers")
	}
	if want := 1*2*fdsPerEngine + fdOverhead; small.Required != want {
		t.Errorf("Required = %d, want %d", small.Required, want)
	}
}

func TestParseMaxProcesses(t *testing.T) {
	tests := []struct {
		name   string
		limits string
		want   int
	}{
		{
			name:   "numeric",
			limits: "Limit                     Soft Limit           Hard Limit           Units\nMax processes             4096                 63704                processes\n",
			want:   4096,
		},
		{
			name:   "unlimited",
			limits: "Max processes             unlimited            unlimited            processes\n",
			want:   1000000,
		},
		{
			name:   "missing",
			limits: "Max open files            1024                 4096                 files\n",
			want:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseMaxProcesses(tt.limits); got != tt.want {
				t.Errorf("parseMaxProcesses() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSuggestFix(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"file_descriptors", "ulimit -n"},
		{"process_limit", "ulimit -u"},
		{"book", "-book"},
		{"engine_a", "chmod"},
		{"handshake_b", "isready"},
		{"something_else", "documentation"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := suggestFix(tt.name); !strings.Contains(got, tt.want) {
				t.Errorf("suggestFix(%q) = %q, want it to mention %q", tt.name, got, tt.want)
			}
		})
	}
}

func TestPrintResults(t *testing.T) {
	result := &Result{
		Checks: []Check{
			{Name: "book", Passed: true, Message: "ok"},
			{Name: "file_descriptors", Passed: false, Required: 100, Actual: 50},
		},
	}

	var buf bytes.Buffer
	PrintResults(&buf, result)
	out := buf.String()
	for _, want := range []string{"Preflight checks:", "book: ok", "Fix: ulimit -n"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
