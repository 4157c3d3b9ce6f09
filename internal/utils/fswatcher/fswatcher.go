package fswatcher

import "github.com/fsnotify/fsnotify"

// Event exposes filesystem watcher events without leaking external dependency across the codebase.
type Event = fsnotify.Event

// Op is the set of operations an Event reports.
type Op = fsnotify.Op

// Watcher is an alias to fsnotify.Watcher so call sites can rely on a thin wrapper.
type Watcher = fsnotify.Watcher

const (
	Write  = fsnotify.Write
	Create = fsnotify.Create
	Rename = fsnotify.Rename
	Remove = fsnotify.Remove
)

// New creates a new filesystem watcher. Callers are responsible for closing it.
func New() (*fsnotify.Watcher, error) {
	return fsnotify.NewWatcher()
}
