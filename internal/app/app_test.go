package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"synclog/internal/config"
	"synclog/internal/storage"
	logx "synclog/pkg/logx"
)

func noEnv(string) (string, bool) { return "", false }

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "synclog.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func newTestApp(t *testing.T, cfgBody string, stdin string) (*App, *syncBuffer) {
	t.Helper()
	console := &syncBuffer{}
	a, err := New(writeConfig(t, cfgBody),
		WithLookup(noEnv),
		WithStdin(strings.NewReader(stdin)),
		WithLogOptions(logx.WithConsoleOutput(console)),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a, console
}

func stopApp(t *testing.T, a *App, reason StopReason) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Stop(ctx, reason); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestRunCapturesStdinThroughFilters(t *testing.T) {
	recPath := filepath.Join(t.TempDir(), "records.jsonl")
	a, console := newTestApp(t, `
logging:
  level: info
  file: {enabled: false}
storage:
  driver: file
  path: `+recPath+`
`, "copied users\nSELECT * FROM users\nSELECT * FROM users\n{\"id\": 1}\nsame\nsame\ntail")

	ctx := context.Background()
	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	reason, err := a.Run(ctx, nil)
	if err != nil || reason != StopInputEOF {
		t.Fatalf("Run = %v, %v; want input_eof", reason, err)
	}
	stopApp(t, a, reason)

	out := console.String()
	for _, want := range []string{
		":INFO:stdout: copied users\n",
		`:INFO:stdout: {"id": 1}` + "\n",
		":INFO:stdout: tail\n",
		"reason=input_eof",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("console missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "SELECT") {
		t.Fatalf("sql noise reached the console:\n%s", out)
	}
	if n := strings.Count(out, ":stdout: same\n"); n != 1 {
		t.Fatalf("repeated line emitted %d times, want 1:\n%s", n, out)
	}

	st, err := storage.Open(storage.Config{Driver: "file", Path: recPath}, logx.Nop())
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer st.Close()
	entries, err := st.Recent(ctx, 100)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	var captured []string
	for _, e := range entries {
		if e.Logger == config.DefaultCaptureLogger {
			captured = append(captured, e.Message)
		}
	}
	want := []string{"copied users", `{"id": 1}`, "same", "tail"}
	if strings.Join(captured, "|") != strings.Join(want, "|") {
		t.Fatalf("stored capture lines = %q, want %q", captured, want)
	}
}

func TestRunCommandRoutesStdout(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	a, console := newTestApp(t, `
logging:
  level: debug
  file: {enabled: false}
capture:
  logger: sync
  level: debug
`, "")

	ctx := context.Background()
	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	reason, err := a.Run(ctx, []string{"sh", "-c", `printf 'first\nsecond'`})
	if err != nil || reason != StopChildExit {
		t.Fatalf("Run = %v, %v", reason, err)
	}
	stopApp(t, a, reason)

	out := console.String()
	if !strings.Contains(out, ":DEBUG:sync: first\n") || !strings.Contains(out, ":DEBUG:sync: second\n") {
		t.Fatalf("unexpected console output:\n%s", out)
	}
}

func TestRunCommandExitCode(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	a, _ := newTestApp(t, "logging: {file: {enabled: false}}\n", "")
	defer stopApp(t, a, StopChildExit)

	_, err := a.Run(context.Background(), []string{"sh", "-c", "exit 3"})
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) || exitErr.ExitCode() != 3 {
		t.Fatalf("Run err = %v, want exit status 3", err)
	}
}

func TestCaptureDisabledUsesProcessStdout(t *testing.T) {
	a, _ := newTestApp(t, "logging: {file: {enabled: false}}\ncapture: {enabled: false}\n", "")
	defer stopApp(t, a, StopUnknown)
	if a.Stdout() != os.Stdout {
		t.Fatal("Stdout() should be the process stdout when capture is disabled")
	}
	if _, err := a.Recent(context.Background(), 1); err != storage.ErrDisabled {
		t.Fatalf("Recent without storage = %v, want ErrDisabled", err)
	}
}

func TestApplyTogglesFilters(t *testing.T) {
	a, console := newTestApp(t, "logging: {file: {enabled: false}}\n", "")
	defer stopApp(t, a, StopUnknown)

	old := a.cfgm.Get()
	next := *old
	next.Logging.Dedup.Enabled = false
	next.Capture.SQLFilter = false
	a.apply(old, &next)

	w := a.Stdout()
	_, _ = w.Write([]byte("SELECT 1\nrepeat\nrepeat\n"))

	out := console.String()
	if !strings.Contains(out, ":stdout: SELECT 1\n") {
		t.Fatalf("sql filter still active:\n%s", out)
	}
	if n := strings.Count(out, ":stdout: repeat\n"); n != 2 {
		t.Fatalf("dedup still active, repeat emitted %d times:\n%s", n, out)
	}
	if !strings.Contains(out, "changed=logging,capture") {
		t.Fatalf("missing reload summary:\n%s", out)
	}
}

func TestNewRejectsInvalidStorage(t *testing.T) {
	_, err := New(writeConfig(t, "storage: {driver: redis, path: x}\n"), WithLookup(noEnv))
	if err == nil {
		t.Fatal("expected error for unknown storage driver")
	}
}

func TestRunStdinStopsOnCancel(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	console := &syncBuffer{}
	a, err := New(writeConfig(t, "logging: {file: {enabled: false}}\n"),
		WithLookup(noEnv),
		WithStdin(pr),
		WithLogOptions(logx.WithConsoleOutput(console)),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer stopApp(t, a, StopSignal)

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan StopReason, 1)
	go func() {
		reason, _ := a.Run(ctx, nil)
		result <- reason
	}()

	if _, err := pw.Write([]byte("before cancel\n")); err != nil {
		t.Fatalf("pipe write: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for !strings.Contains(console.String(), ":stdout: before cancel\n") {
		if time.Now().After(deadline) {
			t.Fatalf("line written before cancel never logged:\n%s", console.String())
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	select {
	case reason := <-result:
		if reason != StopSignal {
			t.Fatalf("reason = %v, want signal", reason)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	// The copy goroutine is still parked in Read; this line must be dropped.
	if _, err := pw.Write([]byte("after cancel\n")); err != nil {
		t.Fatalf("pipe write: %v", err)
	}
	if out := console.String(); strings.Contains(out, "after cancel") {
		t.Fatalf("line read after cancel reached the log:\n%s", out)
	}
}
