// Package roboflow provides a client for the Roboflow hosted inference API.
package roboflow

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Client defines the hosted model inference operations.
type Client interface {
	// Infer runs object detection on an encoded image and returns the
	// predictions at or above the given confidence threshold.
	Infer(ctx context.Context, imageData []byte, confidence float64) (*InferResponse, error)
}

// InferResponse is the parsed detection response.
type InferResponse struct {
	Time        float64      `json:"time"`
	Image       ImageInfo    `json:"image"`
	Predictions []Prediction `json:"predictions"`
}

// ImageInfo echoes the dimensions of the submitted image.
type ImageInfo struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Prediction is one detected object. X and Y are the box center in pixels.
type Prediction struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Confidence float64 `json:"confidence"`
	Class      string  `json:"class"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	modelID string
	baseURL string
	http    *http.Client
}

// NewClient creates a hosted inference client for one model, identified as
// "model-name/version".
func NewClient(apiKey, modelID string, opts ...Option) (Client, error) {
	if apiKey == "" {
		return nil, eris.New("roboflow: api key is required")
	}
	if modelID == "" || !strings.Contains(modelID, "/") {
		return nil, eris.Errorf("roboflow: model id %q must be of the form name/version", modelID)
	}

	c := &httpClient{
		apiKey:  apiKey,
		modelID: modelID,
		baseURL: "https://detect.roboflow.com",
		http: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Infer submits a base64-encoded image to the hosted model.
func (c *httpClient) Infer(ctx context.Context, imageData []byte, confidence float64) (*InferResponse, error) {
	endpoint := fmt.Sprintf("%s/%s?%s", c.baseURL, c.modelID, url.Values{
		"api_key":    {c.apiKey},
		"confidence": {fmt.Sprintf("%g", confidence)},
	}.Encode())

	body := base64.StdEncoding.EncodeToString(imageData)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "roboflow: create request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "roboflow: infer request")
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "roboflow: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("roboflow: infer returned %d: %s", resp.StatusCode, truncate(string(data), 200))
	}

	var parsed InferResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, eris.Wrap(err, "roboflow: parse response")
	}
	return &parsed, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
