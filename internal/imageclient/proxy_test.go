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

func TestProxyGenerateDecodesDataURL(t *testing.T) {
	want := []byte("fake-png-bytes")
	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(want)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "cmpl_1", "object": "chat.completion", "model": "gpt-image-1",
			"choices": []map[string]any{
				{
					"index": 0,
					"message": map[string]any{
						"role":   "assistant",
						"images": []map[string]any{{"image_url": map[string]any{"url": dataURL}}},
					},
				},
			},
		})
	}))
	defer srv.Close()

	cfg := config.ImageSection{Mode: config.ImageModeProxy, APIKey: "sk-test", Endpoint: srv.URL, Model: "gpt-image-1"}
	client, err := NewProxy(cfg, srv.Client())
	require.NoError(t, err)

	got, err := client.Generate(t.Context(), Request{Prompt: "a briefing hero image"})
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestNewProxyRequiresEndpoint(t *testing.T) {
	_, err := NewProxy(config.ImageSection{Mode: config.ImageModeProxy, APIKey: "k"}, nil)
	require.Error(t, err)
}
