package watcher

import (
	"sort"
	"time"
)

type EventType int

const (
	EventCreate EventType = iota
	EventModify
	EventDelete
	EventRename
)

func (e EventType) String() string {
	switch e {
	case EventCreate:
		return "create"
	case EventModify:
		return "modify"
	case EventDelete:
		return "delete"
	case EventRename:
		return "rename"
	default:
		return "unknown"
	}
}

type FileEvent struct {
	Path      string
	Type      EventType
	Timestamp time.Time
}

// Batch is one debounced set of changes, split by whether the file still
// exists.
type Batch struct {
	Changed []string
	Removed []string
}

func (b Batch) Empty() bool {
	return len(b.Changed) == 0 && len(b.Removed) == 0
}

// NewBatch sorts events by path. The debouncer keeps only the last event
// per path, so each path lands in exactly one list.
func NewBatch(events []FileEvent) Batch {
	var b Batch
	for _, e := range events {
		switch e.Type {
		case EventDelete, EventRename:
			b.Removed = append(b.Removed, e.Path)
		default:
			b.Changed = append(b.Changed, e.Path)
		}
	}
	sort.Strings(b.Changed)
	sort.Strings(b.Removed)
	return b
}
