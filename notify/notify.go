// Package notify reports terminal failures to the person who launched the
// injector.
package notify

import "github.com/charmbracelet/log"

type Notifier interface {
	Notify(title, message string)
}

// Log writes notifications to a logger. It is the fallback where no
// desktop message box is available.
type Log struct {
	Logger *log.Logger
}

func (l Log) Notify(title, message string) {
	l.Logger.Error(message, "title", title)
}

// Nop drops every notification.
type Nop struct{}

func (Nop) Notify(string, string) {}
