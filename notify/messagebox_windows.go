//go:build windows

package notify

import (
	"github.com/charmbracelet/log"
	"golang.org/x/sys/windows"
)

// MessageBox shows a modal MB_OK|MB_ICONERROR box and blocks until it is
// dismissed.
type MessageBox struct {
	Logger *log.Logger
}

func (m MessageBox) Notify(title, message string) {
	t, err := windows.UTF16PtrFromString(title)
	if err != nil {
		m.fallback(title, message)
		return
	}
	msg, err := windows.UTF16PtrFromString(message)
	if err != nil {
		m.fallback(title, message)
		return
	}
	if _, err := windows.MessageBox(0, msg, t, windows.MB_OK|windows.MB_ICONERROR); err != nil {
		m.fallback(title, message)
	}
}

func (m MessageBox) fallback(title, message string) {
	Log{Logger: m.Logger}.Notify(title, message)
}

// Default returns the desktop notifier for this platform.
func Default(logger *log.Logger) Notifier {
	return MessageBox{Logger: logger}
}
