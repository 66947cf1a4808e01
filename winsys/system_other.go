//go:build !windows

package winsys

type unsupportedSystem struct{}

// New returns a System whose every call fails with ErrUnsupported.
func New() System {
	return unsupportedSystem{}
}

func (unsupportedSystem) OpenProcess(uint32, uint32) (Handle, error) {
	return 0, ErrUnsupported
}
func (unsupportedSystem) CloseHandle(Handle) error {
	return ErrUnsupported
}
func (unsupportedSystem) LocalModuleBase(string) (uintptr, error) {
	return 0, ErrUnsupported
}
func (unsupportedSystem) RemoteModuleBase(uint32, string) (uintptr, error) {
	return 0, ErrUnsupported
}
func (unsupportedSystem) ProcAddress(string, string) (uintptr, error) {
	return 0, ErrUnsupported
}
func (unsupportedSystem) VirtualAllocEx(Handle, uintptr, uint32, uint32) (uintptr, error) {
	return 0, ErrUnsupported
}
func (unsupportedSystem) VirtualFreeEx(Handle, uintptr) error {
	return ErrUnsupported
}
func (unsupportedSystem) WriteProcessMemory(Handle, uintptr, []byte) (uintptr, error) {
	return 0, ErrUnsupported
}
func (unsupportedSystem) CreateRemoteThread(Handle, uintptr, uintptr) (Handle, error) {
	return 0, ErrUnsupported
}
func (unsupportedSystem) WaitForSingleObject(Handle, uint32) (uint32, error) {
	return WAIT_FAILED, ErrUnsupported
}
func (unsupportedSystem) GetExitCodeThread(Handle) (uint32, error) {
	return 0, ErrUnsupported
}
