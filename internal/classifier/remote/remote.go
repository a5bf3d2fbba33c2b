// Package remote provides a classifier that calls an HTTP scoring sidecar.
//
// The sidecar exposes GET /healthz and POST /classify. A classify request is
// {"texts": [...], "options": {...}} and the response is
// {"predictions": [{"label": "...", "score": 0.97}, ...]}, one per text.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/straja-ai/detectors/internal/detector"
)

const defaultTimeout = 30 * time.Second

// Client calls one sidecar.
type Client struct {
	baseURL string
	http    *http.Client
}

// New validates baseURL and probes /healthz so a dead sidecar fails at
// construction rather than on the first batch.
func New(ctx context.Context, baseURL string, timeout time.Duration) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("remote classifier: invalid base url %q", baseURL)
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
	if err := c.ping(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("remote classifier: request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("remote classifier: healthz: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("remote classifier: healthz status %d", resp.StatusCode)
	}
	return nil
}

type classifyRequest struct {
	Texts   []string       `json:"texts"`
	Options map[string]any `json:"options,omitempty"`
}

type classifyResponse struct {
	Predictions []detector.Prediction `json:"predictions"`
}

// Classify posts the whole batch in one request.
func (c *Client) Classify(ctx context.Context, texts []string, opts map[string]any) ([]detector.Prediction, error) {
	if len(texts) == 0 {
		return []detector.Prediction{}, nil
	}
	body, err := json.Marshal(classifyRequest{Texts: texts, Options: opts})
	if err != nil {
		return nil, fmt.Errorf("remote classifier: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/classify", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("remote classifier: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote classifier: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errBody [512]byte
		n, _ := io.ReadFull(resp.Body, errBody[:])
		return nil, fmt.Errorf("remote classifier: status %d: %s", resp.StatusCode, strings.TrimSpace(string(errBody[:n])))
	}

	var out classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("remote classifier: decode: %w", err)
	}
	if out.Predictions == nil {
		return nil, fmt.Errorf("remote classifier: response missing predictions")
	}
	return out.Predictions, nil
}
