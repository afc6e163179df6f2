package vector

import "fmt"

// InitError reports a failed collection existence check or creation.
type InitError struct {
	Collection string
	StatusCode int
	Message    string
	Err        error
}

func (e *InitError) Error() string {
	return format("init collection", e.Collection, e.StatusCode, e.Message, e.Err)
}

func (e *InitError) Unwrap() error {
	return e.Err
}

// WriteError reports a failed upsert or delete.
type WriteError struct {
	Op         string // "upsert" or "delete"
	Collection string
	PointID    string
	StatusCode int
	Message    string
	Err        error
}

func (e *WriteError) Error() string {
	return format(e.Op+" point "+e.PointID, e.Collection, e.StatusCode, e.Message, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// QueryError reports a failed similarity search.
type QueryError struct {
	Collection string
	StatusCode int
	Message    string
	Err        error
}

func (e *QueryError) Error() string {
	return format("search", e.Collection, e.StatusCode, e.Message, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

func format(op, collection string, status int, message string, err error) string {
	s := fmt.Sprintf("vector store: %s in %q", op, collection)
	if status != 0 {
		s += fmt.Sprintf(": status %d", status)
	}
	if message != "" {
		s += ": " + message
	}
	if err != nil {
		s += ": " + err.Error()
	}
	return s
}
