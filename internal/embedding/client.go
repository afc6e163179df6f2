package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hyperjump/ruiji/pkg/utils"
)

// Client produces embeddings by calling an Ollama-compatible service over HTTP.
// It performs exactly one request per Embed call: no retries, and no timeout of
// its own. Callers that want a deadline pass one via ctx or install an
// *http.Client with WithHTTPClient.
type Client struct {
	host       string
	model      string
	dimensions int
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

// NewClient returns a client for the embedding service at host. The model
// identifier is sent with every request; dimensions is the expected vector
// length of the configured model.
func NewClient(host, model string, dimensions int, opts ...ClientOption) *Client {
	c := &Client{
		host:       strings.TrimRight(host, "/"),
		model:      model,
		dimensions: dimensions,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float64 `json:"embedding"`
}

// Embed returns the embedding for text, normalized to unit length. Any
// transport failure, non-2xx status, or vector of unexpected length is
// reported as a *ServiceError.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Model: c.model, Prompt: text})
	if err != nil {
		return nil, &ServiceError{Message: "failed to marshal request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, &ServiceError{Message: "failed to create request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ServiceError{Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &ServiceError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, &ServiceError{Message: "failed to decode response", Err: err}
	}
	if len(parsed.Embedding) != c.dimensions {
		return nil, &ServiceError{
			Message: fmt.Sprintf("model %q returned %d dimensions, expected %d", c.model, len(parsed.Embedding), c.dimensions),
		}
	}

	vec := make([]float32, len(parsed.Embedding))
	for i, v := range parsed.Embedding {
		vec[i] = float32(v)
	}
	utils.NormalizeL2(vec)
	return vec, nil
}

// Dimensions returns the configured embedding dimension.
func (c *Client) Dimensions() int {
	return c.dimensions
}

// Close is a no-op; the client holds no persistent resources.
func (c *Client) Close() error {
	return nil
}
