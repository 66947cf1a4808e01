// Package pinjector loads a DLL into a running process by starting a remote
// thread on kernel32!LoadLibraryW with the DLL path staged in the target.
//
// The technique depends on one platform invariant: system DLLs such as
// kernel32.dll are mapped at the same base address in every process of a
// session, so the LoadLibraryW address resolved locally is valid in the
// target too. Options.VerifyLoaderBase asserts this before any memory is
// touched in the target.
package pinjector

import (
	"encoding/binary"
	"fmt"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"

	"github.com/r0lh/rlinject/winsys"
)

const (
	loaderModule = "kernel32.dll"
	loaderProc   = "LoadLibraryW"

	// Exactly the rights the sequence needs.
	openRights = winsys.PROCESS_CREATE_THREAD | winsys.PROCESS_VM_OPERATION | winsys.PROCESS_VM_WRITE | winsys.PROCESS_VM_READ
)

var (
	ErrLoaderBaseMismatch = errors.New("loader module mapped at a different base in target")
	ErrShortWrite         = errors.New("short write to remote buffer")
	ErrWaitTimeout        = errors.New("remote loader thread did not finish in time")
	ErrLoadFailed         = errors.New("LoadLibraryW returned NULL in target")
	ErrInvalidPath        = errors.New("dll path contains NUL")
)

type Options struct {
	// WaitTimeout bounds the wait for the remote loader thread. Zero waits
	// forever.
	WaitTimeout time.Duration
	// VerifyLoaderBase compares the kernel32.dll base of the target with
	// ours before starting the remote thread.
	VerifyLoaderBase bool
}

type Injector struct {
	sys  winsys.System
	log  *log.Logger
	opts Options
}

func New(sys winsys.System, logger *log.Logger, opts Options) *Injector {
	if logger == nil {
		logger = log.Default()
	}
	return &Injector{sys: sys, log: logger, opts: opts}
}

// Inject runs the full sequence against pid. The returned error, if any, is
// a *StageError describing the first stage that failed; the Result is what
// the caller should act on.
func (in *Injector) Inject(pid uint32, dllPath string) (Result, error) {
	i := &Inject{Pid: pid, DllPath: dllPath}
	err := in.run(i)
	if err != nil {
		var se *StageError
		if errors.As(err, &se) {
			in.log.Error("injection failed", "pid", pid, "stage", se.Stage, "err", se.Err)
			return se.Stage.Result(), err
		}
		in.log.Error("injection failed", "pid", pid, "err", err)
		return InjectFailed, err
	}
	in.log.Info("dll injected", "pid", pid, "module", hexAddr(uintptr(i.ExitCode)))
	return Success, nil
}

func (in *Injector) run(i *Inject) error {
	if err := in.OpenProcessHandle(i); err != nil {
		return &StageError{StageOpen, err}
	}
	defer in.closeHandle(i.RemoteProcHandle, "process")

	if err := in.GetLoadLibAddress(i); err != nil {
		return &StageError{StageResolve, err}
	}

	if err := encodePath(i); err != nil {
		return &StageError{StageWrite, err}
	}

	if err := in.VirtualAllocEx(i); err != nil {
		return &StageError{StageAlloc, err}
	}
	defer in.VirtualFreeEx(i)

	if err := in.WriteProcessMemory(i); err != nil {
		return &StageError{StageWrite, err}
	}

	if err := in.CreateRemoteThread(i); err != nil {
		return &StageError{StageExecute, err}
	}
	defer in.closeHandle(i.RThread, "thread")

	if err := in.WaitForSingleObject(i); err != nil {
		return &StageError{StageAwait, err}
	}
	return nil
}

func (in *Injector) OpenProcessHandle(i *Inject) error {
	h, err := in.sys.OpenProcess(openRights, i.Pid)
	if err != nil {
		return errors.Wrap(err, "can't open remote process")
	}
	i.RemoteProcHandle = h
	in.log.Debug("process opened", "pid", i.Pid, "handle", hexAddr(uintptr(h)))
	return nil
}

func (in *Injector) GetLoadLibAddress(i *Inject) error {
	addr, err := in.sys.ProcAddress(loaderModule, loaderProc)
	if err != nil {
		return errors.Wrap(err, "can't resolve loader")
	}
	if in.opts.VerifyLoaderBase {
		if err := in.verifyLoaderBase(i.Pid); err != nil {
			return err
		}
	}
	i.LoadLibAddr = addr
	in.log.Debug("loader resolved", "proc", loaderProc, "addr", hexAddr(addr))
	return nil
}

func (in *Injector) verifyLoaderBase(pid uint32) error {
	local, err := in.sys.LocalModuleBase(loaderModule)
	if err != nil {
		return errors.Wrap(err, "can't find local loader module")
	}
	remote, err := in.sys.RemoteModuleBase(pid, loaderModule)
	if err != nil {
		in.log.Warn("loader base check skipped", "pid", pid, "err", err)
		return nil
	}
	if local != remote {
		return errors.Wrapf(ErrLoaderBaseMismatch, "local %s, remote %s", hexAddr(local), hexAddr(remote))
	}
	return nil
}

func (in *Injector) VirtualAllocEx(i *Inject) error {
	addr, err := in.sys.VirtualAllocEx(
		i.RemoteProcHandle,
		uintptr(len(i.DLLBytes)),
		winsys.MEM_COMMIT|winsys.MEM_RESERVE,
		winsys.PAGE_READWRITE)
	if err != nil {
		return errors.Wrap(err, "can't allocate memory on remote process")
	}
	i.Lpaddr = addr
	in.log.Debug("remote buffer allocated", "addr", hexAddr(addr), "size", len(i.DLLBytes))
	return nil
}

func (in *Injector) WriteProcessMemory(i *Inject) error {
	n, err := in.sys.WriteProcessMemory(i.RemoteProcHandle, i.Lpaddr, i.DLLBytes)
	if err != nil {
		return errors.Wrap(err, "can't write to process memory")
	}
	if n != uintptr(len(i.DLLBytes)) {
		return errors.Wrapf(ErrShortWrite, "wrote %d of %d bytes", n, len(i.DLLBytes))
	}
	return nil
}

func (in *Injector) CreateRemoteThread(i *Inject) error {
	h, err := in.sys.CreateRemoteThread(i.RemoteProcHandle, i.LoadLibAddr, i.Lpaddr)
	if err != nil {
		return errors.Wrap(err, "can't create remote thread")
	}
	i.RThread = h
	in.log.Debug("remote thread created", "handle", hexAddr(uintptr(h)))
	return nil
}

func (in *Injector) WaitForSingleObject(i *Inject) error {
	event, err := in.sys.WaitForSingleObject(i.RThread, waitMilliseconds(in.opts.WaitTimeout))
	if err != nil {
		return errors.Wrap(err, "can't wait on remote thread")
	}
	if event == winsys.WAIT_TIMEOUT {
		i.keepBuffer = true
		return errors.Wrapf(ErrWaitTimeout, "after %s", in.opts.WaitTimeout)
	}
	code, err := in.sys.GetExitCodeThread(i.RThread)
	if err != nil {
		return errors.Wrap(err, "can't read thread exit code")
	}
	i.ExitCode = code
	if code == 0 {
		return ErrLoadFailed
	}
	return nil
}

func (in *Injector) VirtualFreeEx(i *Inject) {
	if i.keepBuffer {
		in.log.Warn("remote buffer left allocated", "addr", hexAddr(i.Lpaddr))
		return
	}
	if err := in.sys.VirtualFreeEx(i.RemoteProcHandle, i.Lpaddr); err != nil {
		in.log.Warn("can't free remote buffer", "addr", hexAddr(i.Lpaddr), "err", err)
	}
}

func (in *Injector) closeHandle(h winsys.Handle, kind string) {
	if err := in.sys.CloseHandle(h); err != nil {
		in.log.Warn("can't close handle", "kind", kind, "err", err)
	}
}

// encodePath stores the NUL-terminated UTF-16LE form of DllPath. Callers
// pass an absolute path: LoadLibraryW resolves relative ones against the
// target's search path, not ours.
func encodePath(i *Inject) error {
	if strings.ContainsRune(i.DllPath, 0) {
		return ErrInvalidPath
	}
	i.DLLBytes = WidePath(i.DllPath)
	return nil
}

// WidePath returns s as NUL-terminated UTF-16LE bytes, the layout LoadLibraryW
// expects. Its length is (len(utf16(s)) + 1) * 2.
func WidePath(s string) []byte {
	u := append(utf16.Encode([]rune(s)), 0)
	b := make([]byte, len(u)*2)
	for n, c := range u {
		binary.LittleEndian.PutUint16(b[n*2:], c)
	}
	return b
}

func waitMilliseconds(d time.Duration) uint32 {
	if d <= 0 {
		return winsys.INFINITE
	}
	ms := d.Milliseconds()
	if ms < 1 {
		return 1
	}
	if ms >= winsys.INFINITE {
		return winsys.INFINITE - 1
	}
	return uint32(ms)
}

func hexAddr(a uintptr) string {
	return fmt.Sprintf("0x%X", a)
}
