package cli

import (
	"bufio"
	"context"
	"strings"
	"testing"
)

type fakeExec struct {
	calls []string
	args  [][]string
	reset error
}

func (f *fakeExec) record(name string, args []string) error {
	f.calls = append(f.calls, name)
	f.args = append(f.args, args)
	return nil
}

func (f *fakeExec) Add(context.Context) error                 { return f.record("add", nil) }
func (f *fakeExec) List(_ context.Context, a []string) error   { return f.record("list", a) }
func (f *fakeExec) Mood(_ context.Context, a []string) error   { return f.record("mood", a) }
func (f *fakeExec) Days(context.Context) error                { return f.record("days", nil) }
func (f *fakeExec) Delete(_ context.Context, a []string) error { return f.record("delete", a) }
func (f *fakeExec) Clear(_ context.Context, a []string) error  { return f.record("clear", a) }
func (f *fakeExec) Status(context.Context) error              { return f.record("status", nil) }
func (f *fakeExec) Keys(context.Context) error                { return f.record("keys", nil) }
func (f *fakeExec) Reset(context.Context) error {
	_ = f.record("reset", nil)
	return f.reset
}

func silence(t *testing.T) *[]string {
	t.Helper()
	var lines []string
	origPrint := printlnFn
	printlnFn = func(a ...any) (int, error) {
		parts := make([]string, len(a))
		for i, v := range a {
			parts[i], _ = v.(string)
		}
		lines = append(lines, strings.Join(parts, " "))
		return 0, nil
	}
	t.Cleanup(func() { printlnFn = origPrint })
	return &lines
}

func TestRunREPL_DispatchesCommands(t *testing.T) {
	out := silence(t)

	input := strings.NewReader(strings.Join([]string{
		"help",
		"add",
		"l 2026-05-04",
		"mood today",
		"days",
		"",
		"rm 0193",
		"clear 2026-05-01",
		"status",
		"keys",
		"foobar",
		"exit",
		"add",
	}, "\n"))

	exec := &fakeExec{}
	runREPL(context.Background(), exec, func() string { return "(lobby)" }, bufio.NewScanner(input))

	want := []string{"add", "list", "mood", "days", "delete", "clear", "status", "keys"}
	if strings.Join(exec.calls, ",") != strings.Join(want, ",") {
		t.Fatalf("calls = %v, want %v", exec.calls, want)
	}
	if got := exec.args[1]; len(got) != 1 || got[0] != "2026-05-04" {
		t.Fatalf("list args = %v", got)
	}
	if got := exec.args[4]; len(got) != 1 || got[0] != "0193" {
		t.Fatalf("delete args = %v", got)
	}

	joined := strings.Join(*out, "\n")
	for _, s := range []string{helpText, "Unknown command: foobar", "Bye!", "moodlog (lobby) > "} {
		if !strings.Contains(joined, s) {
			t.Fatalf("output missing %q:\n%s", s, joined)
		}
	}
}

func TestRunREPL_QuitFromCommand(t *testing.T) {
	silence(t)

	exec := &fakeExec{reset: errQuit}
	runREPL(context.Background(), exec, func() string { return "" }, bufio.NewScanner(strings.NewReader("reset\nadd\n")))

	if len(exec.calls) != 1 || exec.calls[0] != "reset" {
		t.Fatalf("unexpected calls: %v", exec.calls)
	}
}

func TestRunREPL_StopsOnCancelledContext(t *testing.T) {
	silence(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exec := &fakeExec{}
	runREPL(ctx, exec, func() string { return "" }, bufio.NewScanner(strings.NewReader("add\n")))

	if len(exec.calls) != 0 {
		t.Fatalf("unexpected calls: %v", exec.calls)
	}
}
