// Package preflight provides startup validation checks.
package preflight

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"github.com/randomizedcoder/go-othello-arena/internal/book"
	"github.com/randomizedcoder/go-othello-arena/internal/engine"
	"github.com/randomizedcoder/go-othello-arena/internal/process"
	"github.com/randomizedcoder/go-othello-arena/internal/protocol"
)

// Note: syscall.RLIMIT_NPROC is not exported in Go's syscall package,
// so we read process limits from /proc/self/limits instead.

const (
	// fdsPerEngine counts the parent's pipe ends for one engine
	// (stdin, stdout, stderr).
	fdsPerEngine = 3

	// fdOverhead covers the metrics listener, results file and logging.
	fdOverhead = 50
)

// Check represents the result of a single preflight check.
type Check struct {
	Name     string // Name of the check
	Required int    // Required value (if applicable)
	Actual   int    // Actual value found
	Passed   bool   // Whether the check passed
	Warning  bool   // True if it's a warning (non-fatal)
	Message  string // Additional context
}

// Result holds the results of all preflight checks.
type Result struct {
	Checks []Check
	Passed bool
}

func (r *Result) add(c Check) {
	r.Checks = append(r.Checks, c)
	if !c.Passed {
		r.Passed = false
	}
}

// Options selects what RunAll verifies.
type Options struct {
	Engines  [2]string
	BookPath string
	Workers  int

	// Probe runs the isready/ready handshake against each engine.
	Probe         bool
	EngineOptions engine.Options
}

// String returns a human-readable summary of the check.
func (c Check) String() string {
	status := "✓"
	if !c.Passed {
		status = "✗"
	} else if c.Warning {
		status = "⚠"
	}

	if c.Required > 0 {
		return fmt.Sprintf("  %s %s: %d available (need %d)", status, c.Name, c.Actual, c.Required)
	}
	return fmt.Sprintf("  %s %s: %s", status, c.Name, c.Message)
}

// RunAll executes all preflight checks.
func RunAll(ctx context.Context, opts Options) *Result {
	result := &Result{
		Checks: make([]Check, 0, 7),
		Passed: true,
	}

	for slot, path := range opts.Engines {
		result.add(checkEngine(engineCheckName(slot), path))
	}

	bookCheck, b := checkBook(opts.BookPath)
	result.add(bookCheck)

	result.add(checkFileDescriptors(opts.Workers))
	result.add(checkProcessLimit(opts.Workers))

	// Probing needs a runnable engine and a position to pass it.
	if opts.Probe && result.Passed && b != nil {
		for slot, path := range opts.Engines {
			result.add(checkHandshake(ctx, "handshake_"+slotSuffix(slot), path, b.At(0), opts.EngineOptions))
		}
	}

	return result
}

func slotSuffix(slot int) string {
	if slot == 0 {
		return "a"
	}
	return "b"
}

func engineCheckName(slot int) string {
	return "engine_" + slotSuffix(slot)
}

// checkEngine verifies the engine path resolves to an executable.
func checkEngine(name, path string) Check {
	resolved, err := exec.LookPath(path)
	if err != nil {
		return Check{
			Name:    name,
			Passed:  false,
			Message: fmt.Sprintf("not executable: %v", err),
		}
	}
	return Check{
		Name:    name,
		Passed:  true,
		Message: fmt.Sprintf("found at %s", resolved),
	}
}

// checkBook verifies the opening book loads and is non-empty.
func checkBook(path string) (Check, *book.Book) {
	b, err := book.Load(path)
	if err != nil {
		return Check{Name: "book", Passed: false, Message: err.Error()}, nil
	}
	if b.Len() == 0 {
		return Check{Name: "book", Passed: false, Message: fmt.Sprintf("%s has no positions", path)}, nil
	}
	return Check{
		Name:    "book",
		Passed:  true,
		Message: fmt.Sprintf("%s (%d positions)", path, b.Len()),
	}, b
}

// checkFileDescriptors verifies sufficient file descriptors are available.
func checkFileDescriptors(workers int) Check {
	var limit syscall.Rlimit
	syscall.Getrlimit(syscall.RLIMIT_NOFILE, &limit)

	// Two engines per worker.
	required := workers*2*fdsPerEngine + fdOverhead
	actual := math.MaxInt32
	if limit.Cur < math.MaxInt32 {
		actual = int(limit.Cur)
	}

	return Check{
		Name:     "file_descriptors",
		Required: required,
		Actual:   actual,
		Passed:   actual >= required,
		Message:  fmt.Sprintf("ulimit -n %d (need %d for %d workers)", actual, required, workers),
	}
}

// checkProcessLimit verifies sufficient process slots are available.
func checkProcessLimit(workers int) Check {
	required := workers*2 + 50

	data, err := os.ReadFile("/proc/self/limits")
	if err != nil {
		// Non-Linux or restricted access, assume OK
		return Check{
			Name:    "process_limit",
			Passed:  true,
			Warning: true,
			Message: "unable to check (non-Linux or restricted)",
		}
	}

	actual := parseMaxProcesses(string(data))
	if actual == 0 {
		return Check{
			Name:    "process_limit",
			Passed:  true,
			Warning: true,
			Message: "unable to determine (assuming OK)",
		}
	}

	return Check{
		Name:     "process_limit",
		Required: required,
		Actual:   actual,
		Passed:   actual >= required,
		Message:  fmt.Sprintf("ulimit -u %d (need %d)", actual, required),
	}
}

// parseMaxProcesses reads the soft "Max processes" limit from
// /proc/self/limits content. Unlimited maps to a large value; 0 means unknown.
func parseMaxProcesses(limits string) int {
	for _, line := range strings.Split(limits, "\n") {
		if !strings.HasPrefix(line, "Max processes") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 4 {
			return 0
		}
		if fields[2] == "unlimited" {
			return 1000000
		}
		var n int
		fmt.Sscanf(fields[2], "%d", &n)
		return n
	}
	return 0
}

// checkHandshake starts the engine, waits for ready and shuts it down.
func checkHandshake(ctx context.Context, name, path string, pos book.Position, opts engine.Options) Check {
	inv := process.Invocation{Path: path, Color: protocol.Black, Position: pos}

	h, err := engine.Start(ctx, inv, opts)
	if err != nil {
		return Check{Name: name, Passed: false, Message: err.Error()}
	}
	err = h.WaitReady(ctx)
	closeErr := h.Close()
	if err != nil {
		return Check{Name: name, Passed: false, Message: err.Error()}
	}
	if closeErr != nil {
		return Check{
			Name:    name,
			Passed:  true,
			Warning: true,
			Message: fmt.Sprintf("ready, but did not exit on quit: %v", closeErr),
		}
	}
	return Check{Name: name, Passed: true, Message: "ready"}
}

// PrintResults writes the preflight check results to w.
func PrintResults(w io.Writer, result *Result) {
	fmt.Fprintln(w, "Preflight checks:")
	for _, check := range result.Checks {
		fmt.Fprintln(w, check.String())
		if !check.Passed {
			fmt.Fprintf(w, "    Fix: %s\n", suggestFix(check.Name))
		}
	}
	fmt.Fprintln(w)
}

// suggestFix returns a suggestion for fixing a failed check.
func suggestFix(name string) string {
	switch {
	case name == "file_descriptors":
		return "ulimit -n 8192 (or edit /etc/security/limits.conf)"
	case name == "process_limit":
		return "ulimit -u 4096 (or edit /etc/security/limits.conf)"
	case name == "book":
		return "pass -book with a file of two-field opening lines"
	case strings.HasPrefix(name, "engine_"):
		return "check the engine path and chmod +x it"
	case strings.HasPrefix(name, "handshake_"):
		return "the engine must answer \"isready\" with a line \"ready\"; rerun with -engine-stderr -v"
	default:
		return "see documentation"
	}
}
