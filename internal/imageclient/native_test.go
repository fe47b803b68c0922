package imageclient

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kenhuangus/ai-briefing/internal/config"
)

func TestNativeGenerateReturnsInlineImageBytes(t *testing.T) {
	want := []byte("fake-png-bytes")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{
					"content": map[string]any{
						"role": "model",
						"parts": []map[string]any{
							{"inlineData": map[string]any{"mimeType": "image/png", "data": base64.StdEncoding.EncodeToString(want)}},
						},
					},
				},
			},
		})
	}))
	defer srv.Close()

	cfg := config.ImageSection{Mode: config.ImageModeNative, APIKey: "test-key", BaseURL: srv.URL, Model: "gemini-2.5-flash-image"}
	client, err := NewNative(t.Context(), cfg, srv.Client())
	require.NoError(t, err)

	got, err := client.Generate(t.Context(), Request{Prompt: "a briefing hero image", AspectRatio: "16:9"})
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestNativeGenerateErrorsWhenNoInlineData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{{"content": map[string]any{"role": "model", "parts": []map[string]any{{"text": "no image today"}}}}},
		})
	}))
	defer srv.Close()

	cfg := config.ImageSection{Mode: config.ImageModeNative, APIKey: "test-key", BaseURL: srv.URL}
	client, err := NewNative(t.Context(), cfg, srv.Client())
	require.NoError(t, err)

	_, err = client.Generate(t.Context(), Request{Prompt: "a briefing hero image"})
	assert.Error(t, err)
}
