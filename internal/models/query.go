package models

import "fmt"

// RelatedQuery is a request for documents similar to the one at Path.
type RelatedQuery struct {
	Path string `json:"path"`
	// Limit caps the number of results. Zero means the configured default.
	Limit int `json:"limit,omitempty"`
	// MinScore is the minimum similarity score. Zero means the configured
	// default; pass a negative value to disable the threshold entirely.
	MinScore float64 `json:"min_score,omitempty"`
}

// Validate ensures the query has valid fields. Returns an error if the path
// is empty; otherwise caps the limit at 100.
func (q *RelatedQuery) Validate() error {
	if q.Path == "" {
		return fmt.Errorf("path cannot be empty")
	}
	if q.Limit < 0 {
		return fmt.Errorf("limit cannot be negative")
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	return nil
}
