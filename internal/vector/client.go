package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

// Client implements Store against a Qdrant-compatible REST API. Like the rest
// of the engine it makes exactly one attempt per operation: no retries and no
// timeout of its own.
type Client struct {
	host       string
	httpClient *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient returns a client for the vector store at host.
func NewClient(host string, opts ...ClientOption) *Client {
	c := &Client{
		host:       strings.TrimRight(host, "/"),
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type collectionSpec struct {
	Vectors vectorSpec `json:"vectors"`
}

type vectorSpec struct {
	Size     int      `json:"size"`
	Distance Distance `json:"distance"`
}

// EnsureCollection creates the collection when it does not exist. Safe to call
// on every startup.
func (c *Client) EnsureCollection(ctx context.Context, name string, dimensions int, distance Distance) error {
	status, _, err := c.do(ctx, http.MethodGet, "/collections/"+name, nil)
	if err != nil {
		return &InitError{Collection: name, Message: "existence check failed", Err: err}
	}
	if status == http.StatusOK {
		return nil
	}
	if status != http.StatusNotFound {
		return &InitError{Collection: name, StatusCode: status, Message: "existence check failed"}
	}

	spec := collectionSpec{Vectors: vectorSpec{Size: dimensions, Distance: distance}}
	status, body, err := c.do(ctx, http.MethodPut, "/collections/"+name, spec)
	if err != nil {
		return &InitError{Collection: name, Message: "create failed", Err: err}
	}
	if status < 200 || status >= 300 {
		return &InitError{Collection: name, StatusCode: status, Message: errMessage(body)}
	}
	return nil
}

type upsertRequest struct {
	Points []Point `json:"points"`
}

// Upsert writes the point, replacing any previous point with the same ID.
func (c *Client) Upsert(ctx context.Context, collection string, point Point) error {
	status, body, err := c.do(ctx, http.MethodPut, "/collections/"+collection+"/points?wait=true", upsertRequest{Points: []Point{point}})
	if err != nil {
		return &WriteError{Op: "upsert", Collection: collection, PointID: point.ID, Err: err}
	}
	if status < 200 || status >= 300 {
		return &WriteError{Op: "upsert", Collection: collection, PointID: point.ID, StatusCode: status, Message: errMessage(body)}
	}
	return nil
}

type deleteRequest struct {
	Points []string `json:"points"`
}

// Delete removes the point with the given ID. Deleting an absent point is not
// an error.
func (c *Client) Delete(ctx context.Context, collection string, id string) error {
	status, body, err := c.do(ctx, http.MethodPost, "/collections/"+collection+"/points/delete?wait=true", deleteRequest{Points: []string{id}})
	if err != nil {
		return &WriteError{Op: "delete", Collection: collection, PointID: id, Err: err}
	}
	if status < 200 || status >= 300 {
		return &WriteError{Op: "delete", Collection: collection, PointID: id, StatusCode: status, Message: errMessage(body)}
	}
	return nil
}

type searchRequest struct {
	Vector         []float32 `json:"vector"`
	Limit          int       `json:"limit"`
	WithPayload    bool      `json:"with_payload"`
	ScoreThreshold *float64  `json:"score_threshold,omitempty"`
}

type searchResponse struct {
	Result []ScoredPoint `json:"result"`
}

// Search returns up to limit points most similar to vector, best first.
func (c *Client) Search(ctx context.Context, collection string, vector []float32, limit int, scoreThreshold float64) ([]ScoredPoint, error) {
	req := searchRequest{
		Vector:      vector,
		Limit:       limit,
		WithPayload: true,
	}
	if scoreThreshold >= 0 {
		req.ScoreThreshold = &scoreThreshold
	}

	status, body, err := c.do(ctx, http.MethodPost, "/collections/"+collection+"/points/search", req)
	if err != nil {
		return nil, &QueryError{Collection: collection, Err: err}
	}
	if status < 200 || status >= 300 {
		return nil, &QueryError{Collection: collection, StatusCode: status, Message: errMessage(body)}
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &QueryError{Collection: collection, Message: "malformed response", Err: err}
	}
	return parsed.Result, nil
}

// Close is a no-op; the client holds no persistent resources.
func (c *Client) Close() error {
	return nil
}

// do performs one HTTP request and returns the status code and response body.
// A non-nil error means the request never completed.
func (c *Client) do(ctx context.Context, method, path string, payload any) (int, []byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.host+path, reqBody)
	if err != nil {
		return 0, nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}

// errMessage extracts a short error description from a response body.
func errMessage(body []byte) string {
	var envelope struct {
		Status struct {
			Error string `json:"error"`
		} `json:"status"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Status.Error != "" {
		return envelope.Status.Error
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 256 {
		msg = msg[:256]
	}
	return msg
}
