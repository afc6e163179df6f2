package indexer

import "fmt"

// QueryError reports a failed related-documents query. The index itself is
// untouched by a failed query; a later attempt may succeed.
type QueryError struct {
	Path string
	Err  error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("related query for %s: %v", e.Path, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}
