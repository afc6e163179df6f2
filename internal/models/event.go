// Package models defines core data structures for documents, queries, and results.
package models

// EventKind classifies a document lifecycle change reported by a source.
type EventKind int

const (
	EventCreate EventKind = iota
	EventModify
	EventDelete
)

// String returns the lowercase name of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventCreate:
		return "create"
	case EventModify:
		return "modify"
	case EventDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Event is a single document lifecycle change.
type Event struct {
	Kind EventKind `json:"kind"`
	Path string    `json:"path"`
}
