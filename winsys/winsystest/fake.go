// Package winsystest provides an in-memory winsys.System that counts every
// acquisition and release, so tests can check that nothing leaks on any
// failure branch.
package winsystest

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/r0lh/rlinject/winsys"
)

var ErrInjected = errors.New("winsystest: injected failure")

const (
	processBase = 0x100
	threadBase  = 0x800
	bufferBase  = 0x7ff000010000
)

// Fake is a scriptable winsys.System. The Fail* fields make the matching
// call return ErrInjected.
type Fake struct {
	FailOpen        bool
	FailProcAddress bool
	FailAlloc       bool
	FailWrite       bool
	ShortWrite      bool
	FailThread      bool
	FailWait        bool
	FailExitCode    bool
	WaitEvent       uint32
	ExitCode        uint32
	LocalBase       uintptr
	LocalBaseErr    error
	RemoteBase      uintptr
	RemoteBaseErr   error
	LoaderAddr      uintptr

	// Calls lists every call in order, e.g. "OpenProcess", "CloseHandle(thread)".
	Calls []string

	// ThreadArg holds the bytes at the thread parameter address at the moment
	// the remote thread was created.
	ThreadArg []byte

	ProcessesOpened  int
	ProcessesClosed  int
	BuffersAllocated int
	BuffersFreed     int
	ThreadsCreated   int
	ThreadsClosed    int
	DoubleReleases   int

	LastAccess   uint32
	LastAllocLen uintptr
	LastProtect  uint32
	LastStart    uintptr
	LastWait     uint32

	nextProcess winsys.Handle
	nextThread  winsys.Handle
	nextBuffer  uintptr
	handles     map[winsys.Handle]string
	memory      map[uintptr][]byte
}

// New returns a Fake on which every stage succeeds and the remote loader
// reports a non-zero module handle.
func New() *Fake {
	return &Fake{
		ExitCode:   0x6a2c0000,
		WaitEvent:  winsys.WAIT_OBJECT_0,
		LocalBase:  0x7ffb10000000,
		RemoteBase: 0x7ffb10000000,
		LoaderAddr: 0x7ffb10021a80,
	}
}

func (f *Fake) init() {
	if f.handles == nil {
		f.handles = make(map[winsys.Handle]string)
		f.memory = make(map[uintptr][]byte)
		f.nextProcess = processBase
		f.nextThread = threadBase
		f.nextBuffer = bufferBase
	}
}

func (f *Fake) record(call string) {
	f.Calls = append(f.Calls, call)
}

func (f *Fake) OpenProcess(access uint32, pid uint32) (winsys.Handle, error) {
	f.init()
	f.record("OpenProcess")
	f.LastAccess = access
	if f.FailOpen {
		return 0, ErrInjected
	}
	f.nextProcess++
	h := f.nextProcess
	f.handles[h] = "process"
	f.ProcessesOpened++
	return h, nil
}

func (f *Fake) CloseHandle(h winsys.Handle) error {
	f.init()
	kind, ok := f.handles[h]
	if !ok {
		f.record("CloseHandle(?)")
		f.DoubleReleases++
		return errors.Errorf("winsystest: close of unknown handle %#x", h)
	}
	f.record(fmt.Sprintf("CloseHandle(%s)", kind))
	delete(f.handles, h)
	switch kind {
	case "process":
		f.ProcessesClosed++
	case "thread":
		f.ThreadsClosed++
	}
	return nil
}

func (f *Fake) LocalModuleBase(module string) (uintptr, error) {
	f.record("LocalModuleBase")
	if f.LocalBaseErr != nil {
		return 0, f.LocalBaseErr
	}
	return f.LocalBase, nil
}

func (f *Fake) RemoteModuleBase(pid uint32, module string) (uintptr, error) {
	f.record("RemoteModuleBase")
	if f.RemoteBaseErr != nil {
		return 0, f.RemoteBaseErr
	}
	return f.RemoteBase, nil
}

func (f *Fake) ProcAddress(module, proc string) (uintptr, error) {
	f.record("ProcAddress")
	if f.FailProcAddress {
		return 0, ErrInjected
	}
	return f.LoaderAddr, nil
}

func (f *Fake) VirtualAllocEx(process winsys.Handle, size uintptr, allocType, protect uint32) (uintptr, error) {
	f.init()
	f.record("VirtualAllocEx")
	f.LastAllocLen = size
	f.LastProtect = protect
	if f.FailAlloc {
		return 0, ErrInjected
	}
	addr := f.nextBuffer
	f.nextBuffer += 0x10000
	f.memory[addr] = make([]byte, size)
	f.BuffersAllocated++
	return addr, nil
}

func (f *Fake) VirtualFreeEx(process winsys.Handle, addr uintptr) error {
	f.init()
	f.record("VirtualFreeEx")
	if _, ok := f.memory[addr]; !ok {
		f.DoubleReleases++
		return errors.Errorf("winsystest: free of unknown region %#x", addr)
	}
	delete(f.memory, addr)
	f.BuffersFreed++
	return nil
}

func (f *Fake) WriteProcessMemory(process winsys.Handle, addr uintptr, data []byte) (uintptr, error) {
	f.init()
	f.record("WriteProcessMemory")
	if f.FailWrite {
		return 0, ErrInjected
	}
	region, ok := f.memory[addr]
	if !ok {
		return 0, errors.Errorf("winsystest: write to unknown region %#x", addr)
	}
	n := copy(region, data)
	if f.ShortWrite && n > 0 {
		n--
	}
	return uintptr(n), nil
}

func (f *Fake) CreateRemoteThread(process winsys.Handle, start, param uintptr) (winsys.Handle, error) {
	f.init()
	f.record("CreateRemoteThread")
	f.LastStart = start
	if f.FailThread {
		return 0, ErrInjected
	}
	if region, ok := f.memory[param]; ok {
		f.ThreadArg = append([]byte(nil), region...)
	}
	f.nextThread++
	h := f.nextThread
	f.handles[h] = "thread"
	f.ThreadsCreated++
	return h, nil
}

func (f *Fake) WaitForSingleObject(h winsys.Handle, milliseconds uint32) (uint32, error) {
	f.record("WaitForSingleObject")
	f.LastWait = milliseconds
	if f.FailWait {
		return winsys.WAIT_FAILED, ErrInjected
	}
	return f.WaitEvent, nil
}

func (f *Fake) GetExitCodeThread(thread winsys.Handle) (uint32, error) {
	f.record("GetExitCodeThread")
	if f.FailExitCode {
		return 0, ErrInjected
	}
	return f.ExitCode, nil
}

// Balanced reports whether every resource acquired so far has been released
// exactly once.
func (f *Fake) Balanced() bool {
	return f.ProcessesOpened == f.ProcessesClosed &&
		f.BuffersAllocated == f.BuffersFreed &&
		f.ThreadsCreated == f.ThreadsClosed &&
		f.DoubleReleases == 0
}

var _ winsys.System = (*Fake)(nil)
