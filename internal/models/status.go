package models

// StatusResponse describes the current state of the index.
type StatusResponse struct {
	Vault        string         `json:"vault"`
	Collection   string         `json:"collection"`
	Model        string         `json:"model"`
	Dimensions   int            `json:"dimensions"`
	Reindexing   bool           `json:"reindexing"`
	Documents    map[string]int `json:"documents"`
	CatalogBytes int64          `json:"catalog_bytes"`
}
