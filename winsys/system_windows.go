//go:build windows

package winsys

import (
	"strings"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/windows"
)

var (
	ModKernel32 = windows.NewLazySystemDLL("kernel32.dll")

	ProcVirtualAllocEx     = ModKernel32.NewProc("VirtualAllocEx")
	ProcVirtualFreeEx      = ModKernel32.NewProc("VirtualFreeEx")
	ProcCreateRemoteThread = ModKernel32.NewProc("CreateRemoteThread")
	ProcGetExitCodeThread  = ModKernel32.NewProc("GetExitCodeThread")
)

type windowsSystem struct{}

// New returns the live Win32 implementation.
func New() System {
	return windowsSystem{}
}

func (windowsSystem) OpenProcess(access uint32, pid uint32) (Handle, error) {
	h, err := windows.OpenProcess(access, false, pid)
	if err != nil {
		return 0, errors.Wrapf(err, "OpenProcess(%d)", pid)
	}
	return Handle(h), nil
}

func (windowsSystem) CloseHandle(h Handle) error {
	return errors.Wrap(windows.CloseHandle(windows.Handle(h)), "CloseHandle")
}

func (windowsSystem) LocalModuleBase(module string) (uintptr, error) {
	dll := windows.NewLazySystemDLL(module)
	if err := dll.Load(); err != nil {
		return 0, errors.Wrapf(err, "load %s", module)
	}
	return dll.Handle(), nil
}

func (windowsSystem) RemoteModuleBase(pid uint32, module string) (uintptr, error) {
	snap, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPMODULE|windows.TH32CS_SNAPMODULE32, pid)
	if err != nil {
		return 0, errors.Wrapf(err, "CreateToolhelp32Snapshot(%d)", pid)
	}
	defer windows.CloseHandle(snap)

	var me windows.ModuleEntry32
	me.Size = uint32(unsafe.Sizeof(me))
	if err := windows.Module32First(snap, &me); err != nil {
		return 0, errors.Wrap(err, "Module32First")
	}
	for {
		if strings.EqualFold(windows.UTF16ToString(me.Module[:]), module) {
			return me.ModBaseAddr, nil
		}
		if err := windows.Module32Next(snap, &me); err != nil {
			if err == windows.ERROR_NO_MORE_FILES {
				break
			}
			return 0, errors.Wrap(err, "Module32Next")
		}
	}
	return 0, errors.Errorf("module %s not mapped in %d", module, pid)
}

func (s windowsSystem) ProcAddress(module, proc string) (uintptr, error) {
	base, err := s.LocalModuleBase(module)
	if err != nil {
		return 0, err
	}
	addr, err := windows.GetProcAddress(windows.Handle(base), proc)
	if err != nil {
		return 0, errors.Wrapf(err, "GetProcAddress(%s!%s)", module, proc)
	}
	return addr, nil
}

func (windowsSystem) VirtualAllocEx(process Handle, size uintptr, allocType, protect uint32) (uintptr, error) {
	addr, _, lastErr := ProcVirtualAllocEx.Call(
		uintptr(process),
		uintptr(nullRef),
		size,
		uintptr(allocType),
		uintptr(protect))
	if addr == 0 {
		return 0, errors.Wrap(lastErr, "VirtualAllocEx")
	}
	return addr, nil
}

func (windowsSystem) VirtualFreeEx(process Handle, addr uintptr) error {
	var size uint32 = 0
	ok, _, lastErr := ProcVirtualFreeEx.Call(
		uintptr(process),
		addr,
		uintptr(size),
		uintptr(MEM_RELEASE))
	if ok == 0 {
		return errors.Wrap(lastErr, "VirtualFreeEx")
	}
	return nil
}

func (windowsSystem) WriteProcessMemory(process Handle, addr uintptr, data []byte) (uintptr, error) {
	if len(data) == 0 {
		return 0, nil
	}
	var written uintptr
	err := windows.WriteProcessMemory(windows.Handle(process), addr, &data[0], uintptr(len(data)), &written)
	if err != nil {
		return written, errors.Wrap(err, "WriteProcessMemory")
	}
	return written, nil
}

func (windowsSystem) CreateRemoteThread(process Handle, start, param uintptr) (Handle, error) {
	var threadId uint32
	var dwCreationFlags uint32 = 0
	thread, _, lastErr := ProcCreateRemoteThread.Call(
		uintptr(process),
		uintptr(nullRef),
		uintptr(nullRef),
		start,
		param,
		uintptr(dwCreationFlags),
		uintptr(unsafe.Pointer(&threadId)))
	if thread == 0 {
		return 0, errors.Wrap(lastErr, "CreateRemoteThread")
	}
	return Handle(thread), nil
}

func (windowsSystem) WaitForSingleObject(h Handle, milliseconds uint32) (uint32, error) {
	event, err := windows.WaitForSingleObject(windows.Handle(h), milliseconds)
	if event == WAIT_FAILED {
		return event, errors.Wrap(err, "WaitForSingleObject")
	}
	return event, nil
}

func (windowsSystem) GetExitCodeThread(thread Handle) (uint32, error) {
	var code uint32
	ok, _, lastErr := ProcGetExitCodeThread.Call(
		uintptr(thread),
		uintptr(unsafe.Pointer(&code)))
	if ok == 0 {
		return 0, errors.Wrap(lastErr, "GetExitCodeThread")
	}
	return code, nil
}
