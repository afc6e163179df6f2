package models

// RelatedNote is a single similar-document hit.
type RelatedNote struct {
	Path  string  `json:"path"`
	Score float64 `json:"score"`
}

// RelatedResponse is the response for a related-documents request.
type RelatedResponse struct {
	Path      string        `json:"path"`
	Results   []RelatedNote `json:"results"`
	Total     int           `json:"total"`
	QueryTime int64         `json:"query_time_ms"`
}
