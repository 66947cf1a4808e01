// Package locator finds a running process by executable name.
package locator

import (
	"github.com/mitchellh/go-ps"
	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/process"
)

// NotFound is returned in place of a pid when no process matches. The OS
// never hands out pid 0 to a user process.
const NotFound uint32 = 0

var (
	ErrNotFound       = errors.New("process not found")
	ErrUnknownBackend = errors.New("unknown process enumerator")
)

// Process is the part of a process table entry the locator looks at.
// ps.Process satisfies it.
type Process interface {
	Pid() int
	Executable() string
}

// Enumerator takes a snapshot of the process table. The order of the
// returned slice is the OS enumeration order.
type Enumerator func() ([]Process, error)

// Find returns the pid of the first process whose executable name equals
// name byte for byte. With duplicates, the earliest entry in enumeration
// order wins.
func Find(enum Enumerator, name string) (uint32, error) {
	procs, err := enum()
	if err != nil {
		return NotFound, errors.Wrap(err, "can't snapshot process list")
	}
	for _, p := range procs {
		if p.Executable() == name {
			return uint32(p.Pid()), nil
		}
	}
	return NotFound, errors.Wrap(ErrNotFound, name)
}

// GoPS enumerates through github.com/mitchellh/go-ps, which walks a
// toolhelp snapshot on Windows.
func GoPS() ([]Process, error) {
	list, err := ps.Processes()
	if err != nil {
		return nil, err
	}
	procs := make([]Process, 0, len(list))
	for _, p := range list {
		procs = append(procs, p)
	}
	return procs, nil
}

type entry struct {
	pid int
	exe string
}

func (e entry) Pid() int           { return e.pid }
func (e entry) Executable() string { return e.exe }

// Gopsutil enumerates through github.com/shirou/gopsutil. Processes that
// exit or deny access before their name is read are skipped.
func Gopsutil() ([]Process, error) {
	list, err := process.Processes()
	if err != nil {
		return nil, err
	}
	procs := make([]Process, 0, len(list))
	for _, p := range list {
		name, err := p.Name()
		if err != nil {
			continue
		}
		procs = append(procs, entry{pid: int(p.Pid), exe: name})
	}
	return procs, nil
}

// Backends lists the enumerators selectable by name.
var Backends = map[string]Enumerator{
	"go-ps":    GoPS,
	"gopsutil": Gopsutil,
}

func ByName(name string) (Enumerator, error) {
	enum, ok := Backends[name]
	if !ok {
		return nil, errors.Wrap(ErrUnknownBackend, name)
	}
	return enum, nil
}
