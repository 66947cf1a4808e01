package main

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/r0lh/rlinject/locator"
	"github.com/r0lh/rlinject/pinjector"
	"github.com/r0lh/rlinject/winsys/winsystest"
)

type proc struct {
	pid int
	exe string
}

func (p proc) Pid() int           { return p.pid }
func (p proc) Executable() string { return p.exe }

type recorder struct {
	titles []string
}

func (r *recorder) Notify(title, message string) {
	r.titles = append(r.titles, title)
}

type harness struct {
	app      *app
	fake     *winsystest.Fake
	notes    *recorder
	enumRuns int
}

func newHarness(t *testing.T, dll string, procs ...proc) *harness {
	t.Helper()
	h := &harness{fake: winsystest.New(), notes: &recorder{}}
	enum := func() ([]locator.Process, error) {
		h.enumRuns++
		out := make([]locator.Process, len(procs))
		for n, p := range procs {
			out[n] = p
		}
		return out, nil
	}
	h.app = &app{
		cfg:      config{Process: defaultProcess, DllPath: dll},
		log:      log.New(io.Discard),
		sys:      h.fake,
		enum:     enum,
		notifier: h.notes,
	}
	return h
}

func existingDLL(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bakkesmod.dll")
	if err := os.WriteFile(path, []byte("MZ"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunPayloadMissing(t *testing.T) {
	h := newHarness(t, filepath.Join(t.TempDir(), "bakkesmod.dll"), proc{9120, defaultProcess})
	res := h.app.run()
	if res.ExitCode() != 1 {
		t.Fatalf("exit code = %d, want 1", res.ExitCode())
	}
	if h.enumRuns != 0 || len(h.fake.Calls) != 0 {
		t.Errorf("locate or inject attempted: enum=%d calls=%v", h.enumRuns, h.fake.Calls)
	}
	if len(h.notes.titles) != 1 {
		t.Errorf("notifications = %v, want one", h.notes.titles)
	}
}

func TestRunProcessMissing(t *testing.T) {
	h := newHarness(t, existingDLL(t), proc{4, "System"}, proc{812, "explorer.exe"})
	res := h.app.run()
	if res.ExitCode() != 2 {
		t.Fatalf("exit code = %d, want 2", res.ExitCode())
	}
	if h.fake.ProcessesOpened != 0 || len(h.fake.Calls) != 0 {
		t.Errorf("handles opened: %v", h.fake.Calls)
	}
	if len(h.notes.titles) != 1 {
		t.Errorf("notifications = %v, want one", h.notes.titles)
	}
}

func TestRunOpenFails(t *testing.T) {
	h := newHarness(t, existingDLL(t), proc{9120, defaultProcess})
	h.fake.FailOpen = true
	if res := h.app.run(); res != pinjector.ProcessNotFound {
		t.Fatalf("result = %v, want process not found", res)
	}
}

func TestRunSuccess(t *testing.T) {
	h := newHarness(t, existingDLL(t), proc{4, "System"}, proc{9120, defaultProcess})
	res := h.app.run()
	if res.ExitCode() != 0 {
		t.Fatalf("exit code = %d, want 0", res.ExitCode())
	}
	if !h.fake.Balanced() {
		t.Errorf("resources not balanced")
	}
	if len(h.notes.titles) != 0 {
		t.Errorf("unexpected notifications: %v", h.notes.titles)
	}
}

func TestRunRemoteLoadFails(t *testing.T) {
	h := newHarness(t, existingDLL(t), proc{9120, defaultProcess})
	h.fake.ExitCode = 0
	res := h.app.run()
	if res.ExitCode() != 3 {
		t.Fatalf("exit code = %d, want 3", res.ExitCode())
	}
	if h.fake.ThreadsCreated != 1 {
		t.Errorf("remote thread not started")
	}
	if len(h.notes.titles) != 1 {
		t.Errorf("inject failure not reported: %v", h.notes.titles)
	}
}

func TestParseConfig(t *testing.T) {
	cfg, err := parseConfig([]string{"rlinject"})
	if err != nil {
		t.Fatalf("parseConfig: %v", err)
	}
	if cfg.Process != defaultProcess || cfg.Timeout != 0 || cfg.Enumerator != "go-ps" || cfg.LogLevel != log.InfoLevel {
		t.Errorf("defaults = %+v", cfg)
	}

	cfg, err = parseConfig([]string{"rlinject", "-p", "Game.exe", "-d", `C:\mods\x.dll`, "-t", "30s", "-e", "gopsutil", "-q", "-l", "debug"})
	if err != nil {
		t.Fatalf("parseConfig: %v", err)
	}
	if cfg.Process != "Game.exe" || cfg.DllPath != `C:\mods\x.dll` || cfg.Timeout != 30*time.Second ||
		cfg.Enumerator != "gopsutil" || !cfg.Quiet || cfg.LogLevel != log.DebugLevel {
		t.Errorf("parsed = %+v", cfg)
	}

	if _, err := parseConfig([]string{"rlinject", "-t", "soon"}); err == nil {
		t.Errorf("bad timeout accepted")
	}
	if _, err := parseConfig([]string{"rlinject", "-e", "wmi"}); err == nil {
		t.Errorf("unknown enumerator accepted")
	}
}
