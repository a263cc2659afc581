package roboflow

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient("", "model/1")
	assert.ErrorContains(t, err, "api key")

	_, err = NewClient("key", "model-without-version")
	assert.ErrorContains(t, err, "name/version")

	_, err = NewClient("key", "model/1")
	assert.NoError(t, err)
}

func TestInfer(t *testing.T) {
	imageData := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x01, 0x02}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/aerial-cars/3", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("api_key"))
		assert.Equal(t, "0.25", r.URL.Query().Get("confidence"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		decoded, err := base64.StdEncoding.DecodeString(string(body))
		require.NoError(t, err)
		assert.Equal(t, imageData, decoded)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"time": 0.12,
			"image": {"width": 512, "height": 512},
			"predictions": [
				{"x": 100.5, "y": 220.0, "width": 40.0, "height": 24.0, "confidence": 0.91, "class": "car"},
				{"x": 300.0, "y": 80.0, "width": 38.0, "height": 22.0, "confidence": 0.44, "class": "car"}
			]
		}`))
	}))
	defer srv.Close()

	c, err := NewClient("secret", "aerial-cars/3", WithBaseURL(srv.URL))
	require.NoError(t, err)

	resp, err := c.Infer(context.Background(), imageData, 0.25)
	require.NoError(t, err)
	assert.Equal(t, 512, resp.Image.Width)
	require.Len(t, resp.Predictions, 2)
	assert.Equal(t, "car", resp.Predictions[0].Class)
	assert.InDelta(t, 0.91, resp.Predictions[0].Confidence, 1e-9)
}

func TestInferServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"message":"invalid api key"}`, http.StatusForbidden)
	}))
	defer srv.Close()

	c, err := NewClient("bad", "aerial-cars/3", WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = c.Infer(context.Background(), []byte{1}, 0.05)
	assert.ErrorContains(t, err, "403")
}

func TestInferBadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c, err := NewClient("key", "m/1", WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = c.Infer(context.Background(), []byte{1}, 0.05)
	assert.ErrorContains(t, err, "parse response")
}
