// Package vector provides point storage and similarity search backed by an
// external vector store.
package vector

import "context"

// Distance selects the similarity metric of a collection.
type Distance string

const (
	DistanceCosine Distance = "Cosine"
	DistanceEuclid Distance = "Euclid"
	DistanceDot    Distance = "Dot"
)

// Payload is the metadata stored alongside a point.
type Payload struct {
	Path string `json:"path"`
}

// Point is a stored vector with its identity and payload.
type Point struct {
	ID      string    `json:"id"`
	Vector  []float32 `json:"vector"`
	Payload Payload   `json:"payload"`
}

// ScoredPoint is a single similarity search hit.
type ScoredPoint struct {
	ID      string  `json:"id"`
	Score   float64 `json:"score"`
	Payload Payload `json:"payload"`
}

// Store defines vector point storage and similarity search.
//
// EnsureCollection is idempotent: it creates the named collection when absent
// and is a no-op when it already exists. Upsert overwrites any previous point
// with the same ID. Delete of an unknown ID succeeds. Search returns up to
// limit points scoring at least scoreThreshold, best first; a negative
// scoreThreshold disables score filtering.
type Store interface {
	EnsureCollection(ctx context.Context, name string, dimensions int, distance Distance) error
	Upsert(ctx context.Context, collection string, point Point) error
	Delete(ctx context.Context, collection string, id string) error
	Search(ctx context.Context, collection string, vector []float32, limit int, scoreThreshold float64) ([]ScoredPoint, error)
	Close() error
}
