package winsys

import "github.com/pkg/errors"

const (
	PROCESS_CREATE_THREAD             = 0x0002
	PROCESS_VM_OPERATION              = 0x0008
	PROCESS_VM_READ                   = 0x0010
	PROCESS_VM_WRITE                  = 0x0020
	PROCESS_QUERY_INFORMATION         = 0x0400
	PROCESS_QUERY_LIMITED_INFORMATION = 0x1000

	PAGE_READWRITE = 0x00000004

	MEM_COMMIT  = 0x1000
	MEM_RESERVE = 0x2000
	MEM_RELEASE = 0x8000

	WAIT_OBJECT_0 = 0x00000000
	WAIT_TIMEOUT  = 0x00000102
	WAIT_FAILED   = 0xFFFFFFFF
	INFINITE      = 0xFFFFFFFF

	nullRef = 0
)

// Handle is a raw OS handle. The zero value is never a valid handle.
type Handle uintptr

var ErrUnsupported = errors.New("winsys: not supported on this platform")

// System is the slice of the Win32 API the injector drives. Every call maps
// one-to-one onto a kernel32 routine so that fakes can count acquisitions
// and releases exactly.
type System interface {
	OpenProcess(access uint32, pid uint32) (Handle, error)
	CloseHandle(h Handle) error

	// LocalModuleBase returns the base of a module already mapped into the
	// calling process.
	LocalModuleBase(module string) (uintptr, error)
	// RemoteModuleBase walks a module snapshot of pid.
	RemoteModuleBase(pid uint32, module string) (uintptr, error)
	ProcAddress(module, proc string) (uintptr, error)

	VirtualAllocEx(process Handle, size uintptr, allocType, protect uint32) (uintptr, error)
	VirtualFreeEx(process Handle, addr uintptr) error
	WriteProcessMemory(process Handle, addr uintptr, data []byte) (uintptr, error)

	CreateRemoteThread(process Handle, start, param uintptr) (Handle, error)
	WaitForSingleObject(h Handle, milliseconds uint32) (uint32, error)
	GetExitCodeThread(thread Handle) (uint32, error)
}
