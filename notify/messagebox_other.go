//go:build !windows

package notify

import "github.com/charmbracelet/log"

// Default returns the desktop notifier for this platform.
func Default(logger *log.Logger) Notifier {
	return Log{Logger: logger}
}
