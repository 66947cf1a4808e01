package pinjector

import (
	"fmt"

	"github.com/r0lh/rlinject/winsys"
)

// Result is the terminal outcome of a run. It maps one-to-one onto the
// program exit status.
type Result int

const (
	Success Result = iota
	DllNotFound
	ProcessNotFound
	InjectFailed
)

func (r Result) ExitCode() int {
	return int(r)
}

func (r Result) String() string {
	switch r {
	case Success:
		return "success"
	case DllNotFound:
		return "dll not found"
	case ProcessNotFound:
		return "process not found"
	case InjectFailed:
		return "inject failed"
	}
	return fmt.Sprintf("Result(%d)", int(r))
}

// Stage names a step of the injection sequence.
type Stage int

const (
	StageOpen Stage = iota + 1
	StageResolve
	StageAlloc
	StageWrite
	StageExecute
	StageAwait
)

var stageNames = map[Stage]string{
	StageOpen:    "open",
	StageResolve: "resolve loader",
	StageAlloc:   "allocate",
	StageWrite:   "write",
	StageExecute: "execute",
	StageAwait:   "await",
}

func (s Stage) String() string {
	if n, ok := stageNames[s]; ok {
		return n
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// Result maps a failed stage onto the caller-visible outcome. Only a failed
// open is reported as a missing process.
func (s Stage) Result() Result {
	if s == StageOpen {
		return ProcessNotFound
	}
	return InjectFailed
}

// StageError carries the OS-level failure of one stage.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Inject is the per-run state of one injection sequence. A zero field means
// the resource has not been acquired.
type Inject struct {
	Pid              uint32
	DllPath          string
	DLLBytes         []byte
	RemoteProcHandle winsys.Handle
	Lpaddr           uintptr
	LoadLibAddr      uintptr
	RThread          winsys.Handle
	ExitCode         uint32

	// keepBuffer is set when the wait deadline expired and the remote thread
	// may still be reading Lpaddr.
	keepBuffer bool
}
