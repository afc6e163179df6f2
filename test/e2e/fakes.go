// Package e2e exercises the full engine against wire-faithful fakes of the
// embeddings service and the vector store.
package e2e

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
)

// vocabulary fixes the embedding space: one dimension per word, so cosine
// similarity between test documents is exact and predictable.
var vocabulary = []string{"apple", "fruit", "banana", "car", "engine"}

func embedVocabulary(prompt string) []float64 {
	vec := make([]float64, len(vocabulary))
	for _, word := range strings.Fields(strings.ToLower(prompt)) {
		for i, v := range vocabulary {
			if word == v {
				vec[i]++
			}
		}
	}
	return vec
}

// fakeEmbeddings serves the embeddings REST surface over the fixed vocabulary.
type fakeEmbeddings struct {
	srv *httptest.Server

	mu         sync.Mutex
	requests   int
	models     map[string]int
	failSubstr string
}

func newFakeEmbeddings() *fakeEmbeddings {
	f := &fakeEmbeddings{models: make(map[string]int)}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/embeddings", f.handleEmbed)
	f.srv = httptest.NewServer(mux)
	return f
}

func (f *fakeEmbeddings) handleEmbed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Model  string `json:"model"`
		Prompt string `json:"prompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.requests++
	f.models[req.Model]++
	failSubstr := f.failSubstr
	f.mu.Unlock()

	if failSubstr != "" && strings.Contains(req.Prompt, failSubstr) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"model runner crashed"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"embedding": embedVocabulary(req.Prompt)})
}

func (f *fakeEmbeddings) URL() string { return f.srv.URL }

func (f *fakeEmbeddings) Close() { f.srv.Close() }

func (f *fakeEmbeddings) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests
}

func (f *fakeEmbeddings) modelCount(model string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.models[model]
}

func (f *fakeEmbeddings) failPromptsContaining(substr string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failSubstr = substr
}

// wire types mirror the vector store REST protocol; the fake deliberately
// decodes raw JSON rather than sharing structs with the client under test.
type wirePayload struct {
	Path string `json:"path"`
}

type wirePoint struct {
	ID      string      `json:"id"`
	Vector  []float32   `json:"vector"`
	Payload wirePayload `json:"payload"`
}

type wireScored struct {
	ID      string      `json:"id"`
	Score   float64     `json:"score"`
	Payload wirePayload `json:"payload"`
}

// fakeQdrant serves the vector store REST surface backed by an in-memory map.
type fakeQdrant struct {
	srv *httptest.Server

	mu          sync.Mutex
	collections map[string]int
	points      map[string]map[string]wirePoint
}

func newFakeQdrant() *fakeQdrant {
	f := &fakeQdrant{
		collections: make(map[string]int),
		points:      make(map[string]map[string]wirePoint),
	}
	r := chi.NewRouter()
	r.Get("/collections/{name}", f.handleGetCollection)
	r.Put("/collections/{name}", f.handleCreateCollection)
	r.Put("/collections/{name}/points", f.handleUpsert)
	r.Post("/collections/{name}/points/delete", f.handleDelete)
	r.Post("/collections/{name}/points/search", f.handleSearch)
	f.srv = httptest.NewServer(r)
	return f
}

func (f *fakeQdrant) URL() string { return f.srv.URL }

func (f *fakeQdrant) Close() { f.srv.Close() }

func (f *fakeQdrant) handleGetCollection(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	f.mu.Lock()
	_, ok := f.collections[name]
	f.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "collection not found")
		return
	}
	writeResult(w, map[string]any{"status": "green"})
}

func (f *fakeQdrant) handleCreateCollection(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var spec struct {
		Vectors struct {
			Size     int    `json:"size"`
			Distance string `json:"distance"`
		} `json:"vectors"`
	}
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil || spec.Vectors.Size == 0 {
		writeError(w, http.StatusBadRequest, "invalid collection spec")
		return
	}
	f.mu.Lock()
	f.collections[name] = spec.Vectors.Size
	if f.points[name] == nil {
		f.points[name] = make(map[string]wirePoint)
	}
	f.mu.Unlock()
	writeResult(w, true)
}

func (f *fakeQdrant) handleUpsert(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var req struct {
		Points []wirePoint `json:"points"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid upsert body")
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.collections[name]; !ok {
		writeError(w, http.StatusNotFound, "collection not found")
		return
	}
	for _, p := range req.Points {
		f.points[name][p.ID] = p
	}
	writeResult(w, map[string]any{"operation_id": 0, "status": "completed"})
}

func (f *fakeQdrant) handleDelete(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var req struct {
		Points []string `json:"points"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid delete body")
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.collections[name]; !ok {
		writeError(w, http.StatusNotFound, "collection not found")
		return
	}
	for _, id := range req.Points {
		delete(f.points[name], id)
	}
	writeResult(w, map[string]any{"operation_id": 0, "status": "completed"})
}

func (f *fakeQdrant) handleSearch(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var req struct {
		Vector         []float32 `json:"vector"`
		Limit          int       `json:"limit"`
		ScoreThreshold *float64  `json:"score_threshold"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid search body")
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.collections[name]; !ok {
		writeError(w, http.StatusNotFound, "collection not found")
		return
	}

	var hits []wireScored
	for _, p := range f.points[name] {
		score := cosine(req.Vector, p.Vector)
		if req.ScoreThreshold != nil && score < *req.ScoreThreshold {
			continue
		}
		hits = append(hits, wireScored{ID: p.ID, Score: score, Payload: p.Payload})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if req.Limit > 0 && len(hits) > req.Limit {
		hits = hits[:req.Limit]
	}
	writeResult(w, hits)
}

func (f *fakeQdrant) count(collection string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.points[collection])
}

func (f *fakeQdrant) paths(collection string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var paths []string
	for _, p := range f.points[collection] {
		paths = append(paths, p.Payload.Path)
	}
	sort.Strings(paths)
	return paths
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func writeResult(w http.ResponseWriter, result any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"result": result, "status": "ok"})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"status": map[string]string{"error": message}})
}
